// Package fallback tries an ordered list of discovery strategies until one
// of them yields a reachable endpoint.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/liamg/printfind/resolve"
	"github.com/liamg/printfind/scan"
	"github.com/sirupsen/logrus"
)

var ErrInvalidPlan = errors.New("invalid fallback plan")

// Entry is one named strategy. When Lookup is set, its resolved address is
// probed on Port and Spec is ignored.
type Entry struct {
	Label   string
	Spec    scan.ScanSpec
	Lookup  *resolve.Request
	Port    int
	Timeout time.Duration
}

func (e Entry) Validate() error {
	if e.Label == "" {
		return fmt.Errorf("%w: entry has no label", ErrInvalidPlan)
	}
	if e.Timeout <= 0 {
		return fmt.Errorf("%w: entry '%s' has non-positive timeout %s", ErrInvalidPlan, e.Label, e.Timeout)
	}
	if e.Lookup != nil {
		if e.Port < 1 || e.Port > 65535 {
			return fmt.Errorf("%w: entry '%s' port %d out of range", ErrInvalidPlan, e.Label, e.Port)
		}
		if e.Lookup.Value == "" {
			return fmt.Errorf("%w: entry '%s' has an empty %s", ErrInvalidPlan, e.Label, e.Lookup.Kind)
		}
		return nil
	}
	if err := e.Spec.Validate(); err != nil {
		return fmt.Errorf("%w: entry '%s': %s", ErrInvalidPlan, e.Label, err)
	}
	if e.Spec.Len() == 0 {
		return fmt.Errorf("%w: entry '%s' has no candidates", ErrInvalidPlan, e.Label)
	}
	return nil
}

func (e Entry) String() string {
	if e.Lookup != nil {
		return fmt.Sprintf("%s (%s, port %d)", e.Label, e.Lookup, e.Port)
	}
	return fmt.Sprintf("%s (%s %s)", e.Label, e.Spec.Mode, e.Spec)
}

type Plan []Entry

func (p Plan) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("%w: no entries", ErrInvalidPlan)
	}
	for _, entry := range p {
		if err := entry.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Success identifies the endpoint a printer client should connect to.
type Success struct {
	Label    string
	Endpoint scan.Endpoint
	Result   scan.ProbeResult
}

type Chain struct {
	prober      scan.Prober
	resolver    *resolve.Resolver
	parallelism int
	options     []scan.Option
}

func NewChain(prober scan.Prober, resolver *resolve.Resolver, parallelism int, options ...scan.Option) *Chain {
	if resolver == nil {
		resolver = resolve.NewResolver()
	}
	return &Chain{
		prober:      prober,
		resolver:    resolver,
		parallelism: parallelism,
		options:     options,
	}
}

// TryInOrder evaluates plan entries in order and returns the first reachable
// endpoint. Later entries are not evaluated once one succeeds. When every
// entry fails the error is an *ExhaustedError.
func (c *Chain) TryInOrder(ctx context.Context, plan Plan) (Success, error) {

	if err := plan.Validate(); err != nil {
		return Success{}, err
	}

	attemptID := uuid.NewString()
	logger := logrus.WithField("attempt", attemptID)

	attempts := make([]Attempt, 0, len(plan))

	for _, entry := range plan {

		if err := ctx.Err(); err != nil {
			return Success{}, err
		}

		logger.WithField("entry", entry.Label).Debugf("Trying %s", entry)

		attempt, success, ok := c.try(ctx, entry)
		if ok {
			logger.WithFields(logrus.Fields{
				"entry":    entry.Label,
				"endpoint": success.Endpoint.Address(),
			}).Debug("Found reachable endpoint")
			return success, nil
		}

		logger.WithFields(logrus.Fields{
			"entry":   entry.Label,
			"outcome": attempt.Outcome,
		}).Debug("Entry exhausted")

		attempts = append(attempts, attempt)
	}

	return Success{}, &ExhaustedError{
		AttemptID: attemptID,
		Plan:      plan,
		Attempts:  attempts,
	}
}

func (c *Chain) try(ctx context.Context, entry Entry) (Attempt, Success, bool) {

	attempt := Attempt{Label: entry.Label}

	spec := entry.Spec
	if entry.Lookup != nil {
		addr, err := c.resolver.Resolve(ctx, *entry.Lookup)
		if err != nil {
			attempt.Outcome = scan.Unresolved
			attempt.Err = err
			return attempt, Success{}, false
		}
		ep, err := scan.NewEndpoint(addr, entry.Port)
		if err != nil {
			attempt.Outcome = scan.Error
			attempt.Err = err
			return attempt, Success{}, false
		}
		spec = scan.Single(ep)
	}

	scanner := scan.NewScanner(c.prober, entry.Timeout, c.parallelism, c.options...)
	result, observed, err := scanner.FirstReachable(ctx, spec)
	attempt.Results = observed
	if err != nil {
		attempt.Outcome = scan.Error
		attempt.Err = err
		return attempt, Success{}, false
	}

	if result.IsReachable() {
		attempt.Outcome = scan.Reachable
		attempt.Last = result
		return attempt, Success{
			Label:    entry.Label,
			Endpoint: result.Endpoint,
			Result:   result,
		}, true
	}

	if len(observed) > 0 {
		attempt.Last = observed[len(observed)-1]
		attempt.Outcome = attempt.Last.Outcome
	} else {
		attempt.Outcome = scan.Error
	}

	return attempt, Success{}, false
}
