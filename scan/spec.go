package scan

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ErrInvalidSpec is returned for scan specs that cannot be expanded.
var ErrInvalidSpec = errors.New("invalid scan spec")

type Mode uint8

const (
	ModeExplicitList Mode = iota
	ModeRangeSweep
)

func (m Mode) String() string {
	switch m {
	case ModeExplicitList:
		return "list"
	case ModeRangeSweep:
		return "sweep"
	}
	return "unknown"
}

// RangeSweep substitutes StartHost..EndHost into the last octet of
// BaseSubnet ("192.168.1").
type RangeSweep struct {
	BaseSubnet string
	StartHost  int
	EndHost    int
	Port       int
}

func (r RangeSweep) String() string {
	return fmt.Sprintf("%s.%d-%d:%d", r.BaseSubnet, r.StartHost, r.EndHost, r.Port)
}

type ScanSpec struct {
	Mode       Mode
	Candidates []Endpoint
	Sweep      RangeSweep
}

// ExplicitList builds a spec that probes the given endpoints in order.
func ExplicitList(candidates ...Endpoint) ScanSpec {
	c := make([]Endpoint, len(candidates))
	copy(c, candidates)
	return ScanSpec{
		Mode:       ModeExplicitList,
		Candidates: c,
	}
}

// Single builds a one-candidate spec.
func Single(ep Endpoint) ScanSpec {
	return ExplicitList(ep)
}

// Sweep builds a range sweep spec. The subnet may be given with or without a
// trailing ".0" host part, e.g. "192.168.1" or "192.168.1.0".
func Sweep(baseSubnet string, startHost, endHost, port int) (ScanSpec, error) {
	spec := ScanSpec{
		Mode: ModeRangeSweep,
		Sweep: RangeSweep{
			BaseSubnet: normaliseSubnet(baseSubnet),
			StartHost:  startHost,
			EndHost:    endHost,
			Port:       port,
		},
	}
	return spec, spec.Validate()
}

func (s ScanSpec) Validate() error {
	switch s.Mode {
	case ModeExplicitList:
		for i, c := range s.Candidates {
			if c.IsZero() {
				return fmt.Errorf("%w: candidate %d is empty", ErrInvalidSpec, i)
			}
		}
		return nil
	case ModeRangeSweep:
		r := s.Sweep
		if !validSubnet(r.BaseSubnet) {
			return fmt.Errorf("%w: base subnet '%s' must be three IPv4 octets", ErrInvalidSpec, r.BaseSubnet)
		}
		if r.StartHost < 0 || r.StartHost > 255 || r.EndHost < 0 || r.EndHost > 255 {
			return fmt.Errorf("%w: host range %d-%d outside 0-255", ErrInvalidSpec, r.StartHost, r.EndHost)
		}
		if r.StartHost > r.EndHost {
			return fmt.Errorf("%w: start host %d is after end host %d", ErrInvalidSpec, r.StartHost, r.EndHost)
		}
		if r.Port < 1 || r.Port > 65535 {
			return fmt.Errorf("%w: port %d out of range", ErrInvalidSpec, r.Port)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown mode %d", ErrInvalidSpec, s.Mode)
}

// Len is the number of candidates the spec expands to.
func (s ScanSpec) Len() int {
	if s.Mode == ModeRangeSweep {
		return s.Sweep.EndHost - s.Sweep.StartHost + 1
	}
	return len(s.Candidates)
}

func (s ScanSpec) String() string {
	if s.Mode == ModeRangeSweep {
		return s.Sweep.String()
	}
	parts := make([]string, len(s.Candidates))
	for i, c := range s.Candidates {
		parts[i] = c.Address()
	}
	return strings.Join(parts, ",")
}

func normaliseSubnet(subnet string) string {
	subnet = strings.TrimSpace(subnet)
	subnet = strings.TrimSuffix(subnet, ".")
	if parts := strings.Split(subnet, "."); len(parts) == 4 {
		return strings.Join(parts[:3], ".")
	}
	return subnet
}

func validSubnet(subnet string) bool {
	parts := strings.Split(subnet, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 || strconv.Itoa(n) != p {
			return false
		}
	}
	return net.ParseIP(subnet+".0").To4() != nil
}
