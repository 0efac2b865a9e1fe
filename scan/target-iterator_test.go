package scan

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestIteration(t *testing.T) {
	spec, err := Sweep("192.168.1", 0, 255, 9100)
	require.Nil(t, err)

	ti, err := NewTargetIterator(spec)
	require.Nil(t, err)

	ep, err := ti.Peek()
	require.Nil(t, err)

	assert.Equal(t, "192.168.1.0", ep.Host())

	for i := 0; i < 256; i++ {

		ep, err := ti.Peek()
		require.Nil(t, err)
		assert.Equal(t, fmt.Sprintf("192.168.1.%d", i), ep.Host())

		ep, err = ti.Next()
		require.Nil(t, err)
		assert.Equal(t, fmt.Sprintf("192.168.1.%d", i), ep.Host())
		assert.Equal(t, 9100, ep.Port())
	}

	_, err = ti.Next()
	assert.Equal(t, io.EOF, err)
}

func TestSweepAcceptsFourOctetBase(t *testing.T) {
	spec, err := Sweep("10.0.0.0", 5, 5, 9100)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0", spec.Sweep.BaseSubnet)
	assert.Equal(t, 1, spec.Len())
}

func TestExplicitListIteration(t *testing.T) {
	candidates := []Endpoint{
		MustEndpoint("10.0.0.9", 9100),
		MustEndpoint("printer.local", 9100),
		MustEndpoint("10.0.0.1", 515),
	}

	ti, err := NewTargetIterator(ExplicitList(candidates...))
	require.NoError(t, err)
	assert.Equal(t, 3, ti.Remaining())

	for _, want := range candidates {
		ep, err := ti.Next()
		require.NoError(t, err)
		assert.Equal(t, want, ep)
	}

	_, err = ti.Next()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 0, ti.Remaining())
}

func TestInvalidSweeps(t *testing.T) {
	tests := []struct {
		name   string
		subnet string
		start  int
		end    int
		port   int
	}{
		{"reversed range", "192.168.1", 20, 10, 9100},
		{"host above 255", "192.168.1", 10, 256, 9100},
		{"negative host", "192.168.1", -1, 10, 9100},
		{"bad subnet", "192.168", 1, 10, 9100},
		{"non numeric subnet", "192.168.x", 1, 10, 9100},
		{"octet out of range", "192.300.1", 1, 10, 9100},
		{"port zero", "192.168.1", 1, 10, 0},
		{"port too high", "192.168.1", 1, 10, 70000},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Sweep(test.subnet, test.start, test.end, test.port)
			assert.ErrorIs(t, err, ErrInvalidSpec)
		})
	}
}

func TestNewEndpointValidation(t *testing.T) {
	_, err := NewEndpoint("", 9100)
	assert.ErrorIs(t, err, ErrInvalidEndpoint)

	_, err = NewEndpoint("10.0.0.1", 0)
	assert.ErrorIs(t, err, ErrInvalidEndpoint)

	_, err = NewEndpoint("10.0.0.1", 65536)
	assert.ErrorIs(t, err, ErrInvalidEndpoint)

	ep, err := NewEndpoint("10.0.0.1", 65535)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:65535", ep.Address())
	assert.Equal(t, TransportTCP, ep.Transport())
}

func TestExplicitListRejectsZeroEndpoint(t *testing.T) {
	err := ExplicitList(MustEndpoint("10.0.0.1", 9100), Endpoint{}).Validate()
	assert.ErrorIs(t, err, ErrInvalidSpec)
}
