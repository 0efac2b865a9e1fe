package scan

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBehaviour struct {
	outcome Outcome
	delay   time.Duration
}

// mockProber answers from a table keyed by host. Unknown hosts are refused.
type mockProber struct {
	mu        sync.Mutex
	table     map[string]mockBehaviour
	probed    []string
	active    int32
	maxActive int32
}

func newMockProber(table map[string]mockBehaviour) *mockProber {
	return &mockProber{table: table}
}

func (m *mockProber) Probe(ctx context.Context, ep Endpoint, timeout time.Duration) ProbeResult {
	start := time.Now()

	active := atomic.AddInt32(&m.active, 1)
	defer atomic.AddInt32(&m.active, -1)
	for {
		max := atomic.LoadInt32(&m.maxActive)
		if active <= max || atomic.CompareAndSwapInt32(&m.maxActive, max, active) {
			break
		}
	}

	m.mu.Lock()
	m.probed = append(m.probed, ep.Host())
	behaviour, ok := m.table[ep.Host()]
	m.mu.Unlock()

	if !ok {
		behaviour = mockBehaviour{outcome: Refused}
	}

	if behaviour.delay > 0 {
		select {
		case <-time.After(behaviour.delay):
		case <-ctx.Done():
			return newResult(ep, Error, start, "probe cancelled")
		}
	}

	return newResult(ep, behaviour.outcome, start, "")
}

func (m *mockProber) probedHosts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	hosts := make([]string, len(m.probed))
	copy(hosts, m.probed)
	return hosts
}

func hosts(results []ProbeResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Endpoint.Host()
	}
	return out
}

func TestScanExplicitListYieldsOneResultPerCandidate(t *testing.T) {
	candidates := []Endpoint{}
	for i := 1; i <= 20; i++ {
		candidates = append(candidates, MustEndpoint(fmt.Sprintf("10.0.0.%d", i), 9100))
	}

	prober := newMockProber(map[string]mockBehaviour{
		"10.0.0.4":  {outcome: Reachable, delay: 30 * time.Millisecond},
		"10.0.0.7":  {outcome: TimedOut, delay: 10 * time.Millisecond},
		"10.0.0.15": {outcome: Reachable},
	})

	scanner := NewScanner(prober, time.Second, 4, WithOrderedDelivery())
	stream, err := scanner.Scan(context.Background(), ExplicitList(candidates...))
	require.NoError(t, err)

	results := Collect(stream)
	require.Len(t, results, len(candidates))
	for i, result := range results {
		assert.Equal(t, candidates[i], result.Endpoint)
		assert.NotEqual(t, OutcomeUnknown, result.Outcome)
	}
	assert.Equal(t, Reachable, results[3].Outcome)
	assert.Equal(t, TimedOut, results[6].Outcome)
	assert.Equal(t, Refused, results[0].Outcome)
}

func TestScanRangeSweepOrder(t *testing.T) {
	spec, err := Sweep("192.168.1", 10, 12, 9100)
	require.NoError(t, err)

	scanner := NewScanner(newMockProber(nil), time.Second, 1, WithOrderedDelivery())
	stream, err := scanner.Scan(context.Background(), spec)
	require.NoError(t, err)

	results := Collect(stream)
	assert.Equal(t, []string{"192.168.1.10", "192.168.1.11", "192.168.1.12"}, hosts(results))
	for _, result := range results {
		assert.Equal(t, 9100, result.Endpoint.Port())
	}
}

func TestScanOrderedDeliveryWithUnevenLatency(t *testing.T) {
	spec, err := Sweep("10.1.1", 1, 8, 9100)
	require.NoError(t, err)

	table := map[string]mockBehaviour{}
	for i := 1; i <= 8; i++ {
		// earlier candidates finish last
		table[fmt.Sprintf("10.1.1.%d", i)] = mockBehaviour{
			outcome: Refused,
			delay:   time.Duration(9-i) * 10 * time.Millisecond,
		}
	}

	scanner := NewScanner(newMockProber(table), time.Second, 8, WithOrderedDelivery())
	stream, err := scanner.Scan(context.Background(), spec)
	require.NoError(t, err)

	expected := []string{}
	for i := 1; i <= 8; i++ {
		expected = append(expected, fmt.Sprintf("10.1.1.%d", i))
	}
	assert.Equal(t, expected, hosts(Collect(stream)))
}

func TestScanCompletionOrderCoversEveryCandidate(t *testing.T) {
	spec, err := Sweep("10.1.1", 1, 8, 9100)
	require.NoError(t, err)

	table := map[string]mockBehaviour{}
	for i := 1; i <= 8; i++ {
		table[fmt.Sprintf("10.1.1.%d", i)] = mockBehaviour{
			outcome: Refused,
			delay:   time.Duration(9-i) * 10 * time.Millisecond,
		}
	}

	scanner := NewScanner(newMockProber(table), time.Second, 8)
	stream, err := scanner.Scan(context.Background(), spec)
	require.NoError(t, err)

	results := Collect(stream)
	require.Len(t, results, 8)

	expected := []string{}
	for i := 1; i <= 8; i++ {
		expected = append(expected, fmt.Sprintf("10.1.1.%d", i))
	}
	assert.ElementsMatch(t, expected, hosts(results))
	// the slowest probe belongs to the first candidate
	assert.Equal(t, "10.1.1.1", results[len(results)-1].Endpoint.Host())
}

func TestScanRespectsParallelism(t *testing.T) {
	spec, err := Sweep("10.2.2", 0, 40, 9100)
	require.NoError(t, err)

	table := map[string]mockBehaviour{}
	for i := 0; i <= 40; i++ {
		table[fmt.Sprintf("10.2.2.%d", i)] = mockBehaviour{outcome: Refused, delay: 5 * time.Millisecond}
	}
	prober := newMockProber(table)

	scanner := NewScanner(prober, time.Second, 3)
	stream, err := scanner.Scan(context.Background(), spec)
	require.NoError(t, err)

	assert.Len(t, Collect(stream), 41)
	assert.LessOrEqual(t, atomic.LoadInt32(&prober.maxActive), int32(3))
	assert.Greater(t, atomic.LoadInt32(&prober.maxActive), int32(0))
}

func TestFindFirstReachableDoesNotWaitForSlowProbes(t *testing.T) {
	candidates := []Endpoint{
		MustEndpoint("10.0.0.1", 9100),
		MustEndpoint("10.0.0.2", 9100),
		MustEndpoint("10.0.0.3", 9100),
		MustEndpoint("10.0.0.4", 9100),
		MustEndpoint("10.0.0.5", 9100),
	}

	prober := newMockProber(map[string]mockBehaviour{
		"10.0.0.1": {outcome: Refused},
		"10.0.0.2": {outcome: TimedOut, delay: 10 * time.Millisecond},
		"10.0.0.3": {outcome: Reachable, delay: 20 * time.Millisecond},
		"10.0.0.4": {outcome: Refused, delay: 2 * time.Second},
		"10.0.0.5": {outcome: Reachable, delay: 2 * time.Second},
	})

	scanner := NewScanner(prober, 3*time.Second, 5)

	start := time.Now()
	ep, found, err := scanner.FindFirstReachable(context.Background(), ExplicitList(candidates...))
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, candidates[2], ep)
	assert.Less(t, elapsed, time.Second)
}

func TestFindFirstReachableStopsIssuingProbes(t *testing.T) {
	spec, err := Sweep("10.3.3", 1, 50, 9100)
	require.NoError(t, err)

	// the stop has to win against the dispatcher every time, not just usually
	for i := 0; i < 50; i++ {
		prober := newMockProber(map[string]mockBehaviour{
			"10.3.3.2": {outcome: Reachable},
		})

		scanner := NewScanner(prober, time.Second, 1)
		result, observed, err := scanner.FirstReachable(context.Background(), spec)
		require.NoError(t, err)

		assert.Equal(t, "10.3.3.2", result.Endpoint.Host())
		assert.Equal(t, []string{"10.3.3.1", "10.3.3.2"}, hosts(observed))

		time.Sleep(5 * time.Millisecond)
		require.Equal(t, []string{"10.3.3.1", "10.3.3.2"}, prober.probedHosts(), "run %d", i)
	}
}

func TestFindFirstReachableStopsWithParallelProbes(t *testing.T) {
	spec, err := Sweep("10.3.4", 1, 50, 9100)
	require.NoError(t, err)

	prober := newMockProber(map[string]mockBehaviour{
		"10.3.4.1": {outcome: Reachable, delay: 20 * time.Millisecond},
		"10.3.4.2": {outcome: Refused, delay: 100 * time.Millisecond},
		"10.3.4.3": {outcome: Refused, delay: 100 * time.Millisecond},
	})

	scanner := NewScanner(prober, time.Second, 3)
	ep, found, err := scanner.FindFirstReachable(context.Background(), spec)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "10.3.4.1", ep.Host())

	time.Sleep(150 * time.Millisecond)
	assert.ElementsMatch(t, []string{"10.3.4.1", "10.3.4.2", "10.3.4.3"}, prober.probedHosts())
}

func TestFindFirstReachableNothingReachable(t *testing.T) {
	spec, err := Sweep("10.4.4", 1, 5, 9100)
	require.NoError(t, err)

	scanner := NewScanner(newMockProber(nil), time.Second, 2)
	result, observed, err := scanner.FirstReachable(context.Background(), spec)
	require.NoError(t, err)

	assert.Equal(t, OutcomeUnknown, result.Outcome)
	assert.Len(t, observed, 5)

	_, found, err := scanner.FindFirstReachable(context.Background(), spec)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestScanCancellationClosesStream(t *testing.T) {
	spec, err := Sweep("10.5.5", 0, 255, 9100)
	require.NoError(t, err)

	table := map[string]mockBehaviour{}
	for i := 0; i <= 255; i++ {
		table[fmt.Sprintf("10.5.5.%d", i)] = mockBehaviour{outcome: Refused, delay: 20 * time.Millisecond}
	}

	ctx, cancel := context.WithCancel(context.Background())
	scanner := NewScanner(newMockProber(table), time.Second, 2, WithOrderedDelivery())
	stream, err := scanner.Scan(ctx, spec)
	require.NoError(t, err)

	<-stream
	cancel()

	done := make(chan []ProbeResult)
	go func() {
		done <- Collect(stream)
	}()

	select {
	case rest := <-done:
		assert.Less(t, len(rest), 255)
	case <-time.After(2 * time.Second):
		t.Fatal("stream was not closed after cancellation")
	}
}

func TestScanRejectsInvalidInput(t *testing.T) {
	scanner := NewScanner(newMockProber(nil), 0, 1)
	_, err := scanner.Scan(context.Background(), Single(MustEndpoint("10.0.0.1", 9100)))
	assert.ErrorIs(t, err, ErrInvalidTimeout)

	scanner = NewScanner(newMockProber(nil), time.Second, 1)
	_, err = scanner.Scan(context.Background(), ScanSpec{Mode: ModeRangeSweep, Sweep: RangeSweep{BaseSubnet: "10.0.0", StartHost: 5, EndHost: 1, Port: 9100}})
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestScanRateLimit(t *testing.T) {
	spec, err := Sweep("10.6.6", 1, 5, 9100)
	require.NoError(t, err)

	scanner := NewScanner(newMockProber(nil), time.Second, 5, WithRateLimit(20))

	start := time.Now()
	stream, err := scanner.Scan(context.Background(), spec)
	require.NoError(t, err)
	assert.Len(t, Collect(stream), 5)

	// one token up front, then one every 50ms
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestScanAgainstRealSockets(t *testing.T) {
	open, stop := listen(t)
	defer stop()
	closed := closedEndpoint(t)

	scanner := NewScanner(NewConnectProber(), time.Second, 2, WithOrderedDelivery())
	stream, err := scanner.Scan(context.Background(), ExplicitList(closed, open))
	require.NoError(t, err)

	results := Collect(stream)
	require.Len(t, results, 2)
	assert.Equal(t, Refused, results[0].Outcome)
	assert.Equal(t, Reachable, results[1].Outcome)
}

func TestPadColumns(t *testing.T) {
	assert.Equal(t, "ab  ", Pad("ab", 4))
	assert.Equal(t, "abcdef", Pad("abcdef", 4))

	line := newResult(MustEndpoint("10.0.0.1", 9100), Refused, time.Now(), "").String()
	assert.Contains(t, line, Pad("10.0.0.1:9100", 22)+"\t"+Pad("REFUSED", 12))
}
