package scan

import (
	"fmt"
	"io"
)

// TargetIterator walks the candidates of a ScanSpec in order. It is not
// restartable; create a new iterator to walk a spec again.
type TargetIterator struct {
	spec  ScanSpec
	index int
}

func NewTargetIterator(spec ScanSpec) (*TargetIterator, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &TargetIterator{
		spec: spec,
	}, nil
}

func (ti *TargetIterator) Next() (Endpoint, error) {
	ep, err := ti.Peek()
	if err != nil {
		return Endpoint{}, err
	}
	ti.index++
	return ep, nil
}

func (ti *TargetIterator) Peek() (Endpoint, error) {

	if ti.index >= ti.spec.Len() {
		return Endpoint{}, io.EOF
	}

	if ti.spec.Mode == ModeExplicitList {
		return ti.spec.Candidates[ti.index], nil
	}

	sweep := ti.spec.Sweep
	host := fmt.Sprintf("%s.%d", sweep.BaseSubnet, sweep.StartHost+ti.index)
	return NewEndpoint(host, sweep.Port)
}

// Remaining is the number of candidates not yet returned by Next.
func (ti *TargetIterator) Remaining() int {
	return ti.spec.Len() - ti.index
}
