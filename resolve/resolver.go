// Package resolve turns printer identifiers (IPv4 literals, hostnames and
// hardware addresses) into IPv4 addresses that can be probed.
//
// Hardware address resolution reads the operating system's neighbor cache
// passively. It only finds devices on the local subnet that this host has
// recently exchanged traffic with, and it never sends ARP requests itself.
package resolve

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds a single hostname lookup.
const DefaultTimeout = 2 * time.Second

type Kind uint8

const (
	KindHostname Kind = iota
	KindHardwareAddress
	KindLiteralAddress
)

func (k Kind) String() string {
	switch k {
	case KindHostname:
		return "hostname"
	case KindHardwareAddress:
		return "hardware address"
	case KindLiteralAddress:
		return "address"
	}
	return "unknown"
}

// Request identifies a device to resolve.
type Request struct {
	Kind  Kind
	Value string
}

func Hostname(name string) Request {
	return Request{Kind: KindHostname, Value: name}
}

func HardwareAddress(mac string) Request {
	return Request{Kind: KindHardwareAddress, Value: mac}
}

func LiteralAddress(ip string) Request {
	return Request{Kind: KindLiteralAddress, Value: ip}
}

func (r Request) String() string {
	return r.Kind.String() + " '" + r.Value + "'"
}

// HostLookup is satisfied by *net.Resolver and NameserverLookup.
type HostLookup interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// AddrLookup is satisfied by *net.Resolver.
type AddrLookup interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Resolver resolves Requests to IPv4 literals.
type Resolver struct {
	Timeout time.Duration
	Hosts   HostLookup
	Addrs   AddrLookup
	Cache   NeighborCache
}

// NewResolver creates a resolver using the system resolver and the ARP cache.
func NewResolver() *Resolver {
	return &Resolver{
		Timeout: DefaultTimeout,
		Hosts:   net.DefaultResolver,
		Addrs:   net.DefaultResolver,
		Cache:   NewARPCache(),
	}
}

// Resolve returns the IPv4 address for req. Failures are *Error values whose
// Reason is one of the package's sentinel errors.
func (r *Resolver) Resolve(ctx context.Context, req Request) (string, error) {
	switch req.Kind {
	case KindLiteralAddress:
		return r.resolveLiteral(req)
	case KindHostname:
		return r.resolveHostname(ctx, req)
	case KindHardwareAddress:
		return r.resolveHardwareAddress(req)
	}
	return "", newError(req, ErrInvalidAddress, errors.New("unknown request kind"))
}

// ListNeighbors returns the current neighbor cache entries.
func (r *Resolver) ListNeighbors() ([]Neighbor, error) {
	return r.Cache.Neighbors()
}

// NameNeighbors fills in Name for each neighbor with a reverse lookup of its
// IP. Lookups that fail or time out leave Name empty.
func (r *Resolver) NameNeighbors(ctx context.Context, neighbors []Neighbor) {
	if r.Addrs == nil {
		return
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(16)

	for i := range neighbors {
		neighbor := &neighbors[i]
		group.Go(func() error {
			lookupCtx, cancel := context.WithTimeout(ctx, r.lookupTimeout())
			defer cancel()

			names, err := r.Addrs.LookupAddr(lookupCtx, neighbor.IP)
			if err != nil || len(names) == 0 {
				logrus.Debugf("No name for neighbor %s: %v", neighbor.IP, err)
				return nil
			}
			neighbor.Name = strings.TrimSuffix(names[0], ".")
			return nil
		})
	}

	_ = group.Wait()
}

func (r *Resolver) lookupTimeout() time.Duration {
	if r.Timeout <= 0 {
		return DefaultTimeout
	}
	return r.Timeout
}

func (r *Resolver) resolveLiteral(req Request) (string, error) {
	if !IsIPv4Literal(req.Value) {
		return "", newError(req, ErrInvalidAddress, nil)
	}
	return req.Value, nil
}

func (r *Resolver) resolveHostname(ctx context.Context, req Request) (string, error) {

	name := strings.TrimSuffix(strings.TrimSpace(req.Value), ".")
	if name == "" {
		return "", newError(req, ErrInvalidAddress, errors.New("empty hostname"))
	}

	if IsIPv4Literal(name) {
		return name, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.lookupTimeout())
	defer cancel()

	hosts := r.Hosts
	if hosts == nil {
		hosts = net.DefaultResolver
	}

	addrs, err := hosts.LookupHost(lookupCtx, name)
	if err != nil {
		if ctx.Err() != nil {
			return "", newError(req, ctx.Err(), err)
		}
		var dnsErr *net.DNSError
		if lookupCtx.Err() == context.DeadlineExceeded ||
			errors.Is(err, context.DeadlineExceeded) ||
			(errors.As(err, &dnsErr) && dnsErr.IsTimeout) {
			return "", newError(req, ErrResolutionTimeout, err)
		}
		return "", newError(req, ErrNameNotFound, err)
	}

	addr := firstAddress(addrs)
	if addr == "" {
		return "", newError(req, ErrNameNotFound, errors.New("no addresses returned"))
	}

	logrus.Debugf("Resolved %s to %s (%d addresses)", req, addr, len(addrs))
	return addr, nil
}

func (r *Resolver) resolveHardwareAddress(req Request) (string, error) {

	mac, err := net.ParseMAC(strings.TrimSpace(req.Value))
	if err != nil {
		return "", newError(req, ErrInvalidAddress, err)
	}

	if r.Cache == nil {
		return "", newError(req, ErrHardwareAddressNotFound, ErrNeighborCacheUnavailable)
	}

	neighbors, err := r.Cache.Neighbors()
	if err != nil {
		return "", newError(req, ErrHardwareAddressNotFound, err)
	}

	for _, neighbor := range neighbors {
		if bytes.Equal(neighbor.MAC, mac) {
			logrus.Debugf("Resolved %s to %s from neighbor cache", req, neighbor.IP)
			return neighbor.IP, nil
		}
	}

	return "", newError(req, ErrHardwareAddressNotFound, nil)
}

// firstAddress picks the first IPv4 address in answer order, falling back to
// the first address of any family.
func firstAddress(addrs []string) string {
	for _, addr := range addrs {
		if ip := net.ParseIP(addr); ip != nil && ip.To4() != nil {
			return addr
		}
	}
	if len(addrs) > 0 {
		return addrs[0]
	}
	return ""
}

// IsIPv4Literal reports whether s is a dotted-quad IPv4 address.
func IsIPv4Literal(s string) bool {
	if strings.Count(s, ".") != 3 || strings.Contains(s, ":") {
		return false
	}
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}
