package scan

import (
	"fmt"
	"time"
)

type Outcome uint8

const (
	// OutcomeUnknown is the zero value and is never produced by a Prober.
	OutcomeUnknown Outcome = iota
	Reachable
	Refused
	TimedOut
	Unresolved
	Error
)

func (o Outcome) String() string {
	switch o {
	case Reachable:
		return "REACHABLE"
	case Refused:
		return "REFUSED"
	case TimedOut:
		return "TIMEOUT"
	case Unresolved:
		return "UNRESOLVED"
	case Error:
		return "ERROR"
	}
	return "UNKNOWN"
}

// ProbeResult is the terminal record of one probe attempt.
type ProbeResult struct {
	Endpoint Endpoint
	Outcome  Outcome
	Elapsed  time.Duration
	Detail   string
}

func newResult(ep Endpoint, outcome Outcome, start time.Time, detail string) ProbeResult {
	return ProbeResult{
		Endpoint: ep,
		Outcome:  outcome,
		Elapsed:  time.Since(start),
		Detail:   detail,
	}
}

func (r ProbeResult) IsReachable() bool {
	return r.Outcome == Reachable
}

func (r ProbeResult) ElapsedMillis() int64 {
	return r.Elapsed.Milliseconds()
}

func (r ProbeResult) String() string {

	text := fmt.Sprintf(
		"%s\t%s\t%s",
		Pad(r.Endpoint.Address(), 22),
		Pad(r.Outcome.String(), 12),
		Pad(r.Elapsed.Round(time.Microsecond).String(), 12),
	)

	if desc := DescribePort(r.Endpoint.Port()); desc != "" {
		text = fmt.Sprintf("%s\t%s", text, desc)
	}

	if r.Detail != "" {
		text = fmt.Sprintf("%s\t(%s)", text, r.Detail)
	}

	return text
}

// Pad right-pads input with spaces to length, for column output.
func Pad(input string, length int) string {
	for len(input) < length {
		input += " "
	}
	return input
}
