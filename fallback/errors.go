package fallback

import (
	"errors"
	"fmt"
	"strings"

	"github.com/liamg/printfind/scan"
)

var ErrAllMethodsExhausted = errors.New("all discovery methods exhausted")

// Attempt records how one plan entry ended.
type Attempt struct {
	Label   string
	Outcome scan.Outcome
	// Last is the last probe result observed for the entry, if any.
	Last    scan.ProbeResult
	Results []scan.ProbeResult
	// Err is set when the entry failed before or instead of probing.
	Err     error
}

func (a Attempt) String() string {
	text := fmt.Sprintf("%s: %s", a.Label, a.Outcome)
	if !a.Last.Endpoint.IsZero() {
		text = fmt.Sprintf("%s at %s", text, a.Last.Endpoint.Address())
	}
	if len(a.Results) > 1 {
		text = fmt.Sprintf("%s (%d probes)", text, len(a.Results))
	}
	if a.Err != nil {
		text = fmt.Sprintf("%s: %s", text, a.Err)
	} else if a.Last.Detail != "" {
		text = fmt.Sprintf("%s: %s", text, a.Last.Detail)
	}
	return text
}

// ExhaustedError is returned when no plan entry produced a reachable endpoint.
// It holds one Attempt per plan entry, in plan order.
type ExhaustedError struct {
	AttemptID string
	Plan      Plan
	Attempts  []Attempt
}

func (e *ExhaustedError) Error() string {
	lines := []string{fmt.Sprintf("%s after %d methods", ErrAllMethodsExhausted, len(e.Attempts))}
	for _, attempt := range e.Attempts {
		lines = append(lines, "\t"+attempt.String())
	}
	return strings.Join(lines, "\n")
}

func (e *ExhaustedError) Unwrap() error {
	return ErrAllMethodsExhausted
}
