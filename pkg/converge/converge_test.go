package converge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when the loop sleeps.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
	// probeLatency is added on every observation
	probeLatency time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

// sequence observes values in order, repeating the last one.
func sequence[T any](clock *fakeClock, values ...T) (Observe[T], *int) {
	calls := 0
	return func(ctx context.Context) (T, error) {
		idx := calls
		if idx >= len(values) {
			idx = len(values) - 1
		}
		calls++
		if clock != nil {
			clock.now = clock.now.Add(clock.probeLatency)
		}
		return values[idx], nil
	}, &calls
}

func isZero(v int) bool { return v == 0 }

func TestByRetriesObservationCount(t *testing.T) {
	tests := []struct {
		name       string
		values     []int
		maxRetries int
		wantCalls  int
		wantErr    bool
	}{
		{name: "target on first probe", values: []int{0}, maxRetries: 5, wantCalls: 1},
		{name: "target on third probe", values: []int{7, 7, 0}, maxRetries: 5, wantCalls: 3},
		{name: "target on last allowed probe", values: []int{7, 7, 7, 0}, maxRetries: 3, wantCalls: 4},
		{name: "never converges", values: []int{7}, maxRetries: 3, wantCalls: 4, wantErr: true},
		{name: "zero budget still probes once", values: []int{7}, maxRetries: 0, wantCalls: 1, wantErr: true},
		{name: "target just past the budget", values: []int{7, 7, 0}, maxRetries: 1, wantCalls: 2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			observe, calls := sequence(clock, tt.values...)

			_, err := ByRetries(context.Background(), observe, isZero,
				Retries{Max: tt.maxRetries, Interval: time.Second},
				WithSleeper(clock.Sleep), WithClock(clock.Now))

			assert.Equal(t, tt.wantCalls, *calls)
			assert.Len(t, clock.sleeps, tt.wantCalls-1)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsTimeoutError(err))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestByRetriesTimeoutCarriesDiagnostics(t *testing.T) {
	clock := newFakeClock()
	observe, _ := sequence(clock, 3)

	last, err := ByRetries(context.Background(), observe, isZero,
		Retries{Max: 2, Interval: time.Second},
		WithName("service-start"), WithSleeper(clock.Sleep), WithClock(clock.Now))

	require.Error(t, err)
	assert.Equal(t, 3, last)

	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "service-start", te.Loop)
	assert.Equal(t, 3, te.Last)
	assert.Equal(t, 3, te.Attempts)
	assert.Equal(t, 2*time.Second, te.Elapsed)
	assert.Contains(t, err.Error(), "service-start did not converge after 3 attempts")
}

func TestByRetriesPropagatesObserveError(t *testing.T) {
	boom := errors.New("probe tool missing")
	calls := 0
	observe := func(ctx context.Context) (int, error) {
		calls++
		if calls == 2 {
			return 0, boom
		}
		return 7, nil
	}

	clock := newFakeClock()
	_, err := ByRetries(context.Background(), observe, isZero,
		Retries{Max: 10, Interval: time.Second}, WithSleeper(clock.Sleep))

	require.ErrorIs(t, err, boom)
	assert.False(t, IsTimeoutError(err))
	assert.Equal(t, 2, calls)
}

func TestByRetriesHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	observe, calls := sequence[int](nil, 7)

	sleeper := func(ctx context.Context, d time.Duration) error {
		cancel()
		return Sleep(ctx, d)
	}

	_, err := ByRetries(ctx, observe, isZero, Retries{Max: 60, Interval: time.Hour}, WithSleeper(sleeper))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, *calls)
}

func TestByDeadlineConverges(t *testing.T) {
	clock := newFakeClock()
	observe, calls := sequence(clock, 5, 2, 0)

	got, err := ByDeadline(context.Background(), observe, isZero,
		Deadline{Timeout: 30 * time.Second, Interval: time.Second},
		WithSleeper(clock.Sleep), WithClock(clock.Now))

	require.NoError(t, err)
	assert.Equal(t, 0, got)
	assert.Equal(t, 3, *calls)
}

func TestByDeadlineExpires(t *testing.T) {
	clock := newFakeClock()
	clock.probeLatency = 300 * time.Millisecond
	observe, _ := sequence(clock, 4)

	start := clock.Now()
	_, err := ByDeadline(context.Background(), observe, isZero,
		Deadline{Timeout: 10 * time.Second, Interval: 2 * time.Second},
		WithSleeper(clock.Sleep), WithClock(clock.Now))

	require.Error(t, err)
	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 10*time.Second, te.Timeout)
	assert.Equal(t, 4, te.Last)

	overrun := clock.Now().Sub(start) - 10*time.Second
	assert.GreaterOrEqual(t, overrun, time.Duration(0))
	assert.LessOrEqual(t, overrun, 2*time.Second+clock.probeLatency)
}

func TestByDeadlineWithoutTimeoutWaitsForTarget(t *testing.T) {
	clock := newFakeClock()
	values := make([]int, 500)
	for i := range values {
		values[i] = 1
	}
	values[len(values)-1] = 0
	observe, calls := sequence(clock, values...)

	_, err := ByDeadline(context.Background(), observe, isZero,
		Deadline{Interval: time.Minute}, WithSleeper(clock.Sleep), WithClock(clock.Now))

	require.NoError(t, err)
	assert.Equal(t, 500, *calls)
}

type recorder struct {
	probes   map[string]int
	outcomes []string
}

func (r *recorder) RecordProbe(loop string) {
	if r.probes == nil {
		r.probes = make(map[string]int)
	}
	r.probes[loop]++
}

func (r *recorder) RecordConvergence(loop string, outcome string, d time.Duration) {
	r.outcomes = append(r.outcomes, loop+":"+outcome)
}

func TestRecorderReceivesProbesAndOutcome(t *testing.T) {
	clock := newFakeClock()
	observe, _ := sequence(clock, 1, 0)
	rec := &recorder{}

	_, err := ByRetries(context.Background(), observe, isZero, Retries{Max: 5, Interval: time.Second},
		WithName("queue"), WithSleeper(clock.Sleep), WithClock(clock.Now), WithRecorder(rec))
	require.NoError(t, err)

	assert.Equal(t, 2, rec.probes["queue"])
	assert.Equal(t, []string{"queue:converged"}, rec.outcomes)
}

func TestSleepReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}
