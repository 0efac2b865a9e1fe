package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var ErrInvalidTimeout = errors.New("timeout must be positive")

// Scanner probes every candidate of a ScanSpec with bounded parallelism.
type Scanner struct {
	prober      Prober
	timeout     time.Duration
	parallelism int
	ordered     bool
	limiter     *rate.Limiter
}

type Option func(*Scanner)

// WithOrderedDelivery makes Scan deliver results in candidate order rather
// than completion order.
func WithOrderedDelivery() Option {
	return func(s *Scanner) {
		s.ordered = true
	}
}

// WithRateLimit caps how many probes are started per second. Zero or a
// negative value disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(s *Scanner) {
		if perSecond > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

func NewScanner(prober Prober, timeout time.Duration, parallelism int, options ...Option) *Scanner {
	if prober == nil {
		prober = NewConnectProber()
	}
	if parallelism < 1 {
		parallelism = 1
	}
	s := &Scanner{
		prober:      prober,
		timeout:     timeout,
		parallelism: parallelism,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Scan starts probing spec and returns a stream of results. The stream is
// closed once every dispatched probe has been delivered. Consumers must either
// drain the stream or cancel ctx. Cancelling ctx stops dispatching and drops
// results not yet delivered.
func (s *Scanner) Scan(ctx context.Context, spec ScanSpec) (<-chan ProbeResult, error) {
	ti, err := s.prepare(spec)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"spec":        spec.String(),
		"candidates":  spec.Len(),
		"parallelism": s.parallelism,
		"timeout":     s.timeout,
		"ordered":     s.ordered,
	}).Debug("Starting scan")

	out := make(chan ProbeResult)
	go s.run(ctx, ctx, ctx, nil, ti, s.ordered, out)
	return out, nil
}

// FirstReachable probes spec until a Reachable result is observed. No new
// probes are issued after that; probes already in flight are left to finish
// and their results are discarded. The returned slice holds every result
// observed, in completion order, including the reachable one. If nothing is
// reachable the returned ProbeResult has OutcomeUnknown.
func (s *Scanner) FirstReachable(ctx context.Context, spec ScanSpec) (ProbeResult, []ProbeResult, error) {
	ti, err := s.prepare(spec)
	if err != nil {
		return ProbeResult{}, nil, err
	}

	stopCtx, stop := context.WithCancel(ctx)
	defer stop()

	// results still in flight when we return are dropped
	deliverCtx, abandon := context.WithCancel(ctx)
	defer abandon()

	out := make(chan ProbeResult)
	go s.run(ctx, stopCtx, deliverCtx, stop, ti, false, out)

	observed := []ProbeResult{}
	for result := range out {
		observed = append(observed, result)
		if result.IsReachable() {
			logrus.Debugf("First reachable endpoint: %s after %d results", result.Endpoint.Address(), len(observed))
			return result, observed, nil
		}
	}

	return ProbeResult{}, observed, ctx.Err()
}

// FindFirstReachable is FirstReachable reduced to the endpoint found.
func (s *Scanner) FindFirstReachable(ctx context.Context, spec ScanSpec) (Endpoint, bool, error) {
	result, _, err := s.FirstReachable(ctx, spec)
	if err != nil {
		return Endpoint{}, false, err
	}
	if !result.IsReachable() {
		return Endpoint{}, false, nil
	}
	return result.Endpoint, true, nil
}

func (s *Scanner) prepare(spec ScanSpec) (*TargetIterator, error) {
	if s.timeout <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimeout, s.timeout)
	}
	return NewTargetIterator(spec)
}

// run dispatches probes for every candidate of ti. Probes run under probeCtx,
// dispatch stops when dispatchCtx is done and delivery stops when deliverCtx
// is done. A non-nil stop is called on the first Reachable result, before its
// probe gives up its parallelism slot, so no candidate is dispatched after it.
func (s *Scanner) run(probeCtx, dispatchCtx, deliverCtx context.Context, stop context.CancelFunc, ti *TargetIterator, ordered bool, out chan<- ProbeResult) {

	defer close(out)

	sem := semaphore.NewWeighted(int64(s.parallelism))
	wg := &sync.WaitGroup{}

	deliver := func(result ProbeResult) {
		select {
		case out <- result:
		case <-deliverCtx.Done():
		}
	}

	// in ordered mode each dispatched candidate gets a slot, queued in
	// candidate order and drained by a single deliverer
	slots := make(chan chan ProbeResult, s.parallelism)
	delivered := make(chan struct{})
	if ordered {
		go func() {
			defer close(delivered)
			for slot := range slots {
				deliver(<-slot)
			}
		}()
	} else {
		close(delivered)
	}

	for {
		if dispatchCtx.Err() != nil || ti.Remaining() == 0 {
			break
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(dispatchCtx); err != nil {
				break
			}
		}

		if err := sem.Acquire(dispatchCtx, 1); err != nil {
			break
		}
		if dispatchCtx.Err() != nil {
			sem.Release(1)
			break
		}

		ep, err := ti.Next()
		if err != nil {
			sem.Release(1)
			if err != io.EOF {
				logrus.Debugf("Target expansion failed: %s", err)
			}
			break
		}

		var slot chan ProbeResult
		if ordered {
			slot = make(chan ProbeResult, 1)
			slots <- slot
		}

		wg.Add(1)
		go func(ep Endpoint) {
			defer wg.Done()
			result := s.prober.Probe(probeCtx, ep, s.timeout)
			if stop != nil && result.IsReachable() {
				stop()
			}
			if ordered {
				slot <- result
				sem.Release(1)
				return
			}
			deliver(result)
			sem.Release(1)
		}(ep)
	}

	close(slots)
	wg.Wait()
	<-delivered
}

// Collect drains a result stream into a slice.
func Collect(results <-chan ProbeResult) []ProbeResult {
	collected := []ProbeResult{}
	for result := range results {
		collected = append(collected, result)
	}
	return collected
}
