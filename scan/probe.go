package scan

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// Prober performs a single bounded-time reachability check. Implementations
// must return within timeout and must not return OutcomeUnknown.
type Prober interface {
	Probe(ctx context.Context, ep Endpoint, timeout time.Duration) ProbeResult
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, ep Endpoint, timeout time.Duration) ProbeResult

func (f ProberFunc) Probe(ctx context.Context, ep Endpoint, timeout time.Duration) ProbeResult {
	return f(ctx, ep, timeout)
}

// ConnectProber checks reachability with a full TCP handshake. The connection
// is closed as soon as it is established.
type ConnectProber struct {
	// LocalAddr optionally pins the source address of outgoing probes.
	LocalAddr net.Addr
	// Resolver looks up hostname endpoints. nil uses net.DefaultResolver.
	Resolver *net.Resolver
}

func NewConnectProber() *ConnectProber {
	return &ConnectProber{}
}

func (p *ConnectProber) Probe(ctx context.Context, ep Endpoint, timeout time.Duration) ProbeResult {

	start := time.Now()

	if timeout <= 0 {
		return newResult(ep, Error, start, fmt.Sprintf("invalid timeout %s", timeout))
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := net.Dialer{
		Timeout:   timeout,
		LocalAddr: p.LocalAddr,
		Resolver:  p.Resolver,
	}

	conn, err := dialer.DialContext(dialCtx, "tcp", ep.Address())
	if err != nil {
		outcome, detail := classify(ctx, dialCtx, err)
		logrus.Debugf("Probe %s: %s (%s)", ep.Address(), outcome, err)
		return newResult(ep, outcome, start, detail)
	}

	result := newResult(ep, Reachable, start, "")
	if err := conn.Close(); err != nil {
		logrus.Debugf("Probe %s: close failed: %s", ep.Address(), err)
	}
	return result
}

// classify maps a dial error onto an outcome. ctx is the caller's context and
// dialCtx the one bounded by the probe timeout, used to tell a probe timeout
// apart from caller cancellation.
func classify(ctx, dialCtx context.Context, err error) (Outcome, string) {

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case ctx.Err() == context.Canceled:
			return Error, "probe cancelled"
		case dnsErr.IsTimeout || dialCtx.Err() == context.DeadlineExceeded:
			// a lookup that used up the budget is a timeout, not a failed lookup
			return TimedOut, dnsErr.Error()
		}
		return Unresolved, dnsErr.Error()
	}

	if errors.Is(err, syscall.ECONNREFUSED) || strings.Contains(err.Error(), "refused") {
		return Refused, ""
	}

	if ctx.Err() == context.Canceled {
		return Error, "probe cancelled"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return TimedOut, ""
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TimedOut, ""
	}

	return Error, err.Error()
}
