package scan

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// ErrInvalidEndpoint is returned when an endpoint cannot be constructed.
var ErrInvalidEndpoint = errors.New("invalid endpoint")

type Transport uint8

const (
	TransportTCP Transport = iota
)

func (t Transport) String() string {
	switch t {
	case TransportTCP:
		return "tcp"
	}
	return "unknown"
}

// Endpoint is a TCP destination. Fields are unexported so a constructed
// Endpoint cannot change.
type Endpoint struct {
	host      string
	port      int
	transport Transport
}

// NewEndpoint validates host and port and returns a TCP endpoint.
func NewEndpoint(host string, port int) (Endpoint, error) {
	if host == "" {
		return Endpoint{}, fmt.Errorf("%w: empty host", ErrInvalidEndpoint)
	}
	if port < 1 || port > 65535 {
		return Endpoint{}, fmt.Errorf("%w: port %d out of range", ErrInvalidEndpoint, port)
	}
	return Endpoint{
		host:      host,
		port:      port,
		transport: TransportTCP,
	}, nil
}

// MustEndpoint is NewEndpoint for values known to be valid.
func MustEndpoint(host string, port int) Endpoint {
	ep, err := NewEndpoint(host, port)
	if err != nil {
		panic(err)
	}
	return ep
}

func (e Endpoint) Host() string         { return e.host }
func (e Endpoint) Port() int            { return e.port }
func (e Endpoint) Transport() Transport { return e.transport }

// IsZero reports whether e was never constructed.
func (e Endpoint) IsZero() bool {
	return e.host == "" && e.port == 0
}

// Address returns host:port suitable for dialing.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.host, strconv.Itoa(e.port))
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s/%s", e.Address(), e.transport)
}
