// Package converge turns an externally observed condition into a synchronous
// result by polling it until a target holds or a budget runs out.
//
// Both loop shapes share one body: observe, compare, sleep, bound. They
// always observe once before looking at the budget, so a zero budget still
// yields exactly one probe. Errors returned by the observation propagate
// immediately; they are never treated as "not converged yet".
package converge

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Observe produces one observation of the remote state.
type Observe[T any] func(ctx context.Context) (T, error)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Recorder receives probe and loop outcome metrics.
type Recorder interface {
	RecordProbe(loop string)
	RecordConvergence(loop string, outcome string, duration time.Duration)
}

// Retries bounds a loop by attempt count. The loop observes at most Max+1
// times: the initial probe plus Max retries.
type Retries struct {
	Max      int
	Interval time.Duration
}

func (r Retries) String() string {
	return fmt.Sprintf("%d retries every %s", r.Max, r.Interval)
}

// Deadline bounds a loop by wall-clock time since loop entry. A zero Timeout
// never expires; the loop then runs until the target holds or ctx is done.
type Deadline struct {
	Timeout  time.Duration
	Interval time.Duration
}

func (d Deadline) String() string {
	if d.Timeout <= 0 {
		return fmt.Sprintf("no timeout, polling every %s", d.Interval)
	}
	return fmt.Sprintf("%s timeout, polling every %s", d.Timeout, d.Interval)
}

// Outcomes reported to a Recorder.
const (
	OutcomeConverged = "converged"
	OutcomeExhausted = "exhausted"
	OutcomeError     = "error"
)

type settings struct {
	name     string
	sleep    Sleeper
	now      func() time.Time
	recorder Recorder
}

// Option customizes a loop.
type Option func(*settings)

// WithName labels the loop in logs, metrics and errors.
func WithName(name string) Option {
	return func(s *settings) { s.name = name }
}

// WithSleeper replaces the context-aware default sleeper.
func WithSleeper(sleep Sleeper) Option {
	return func(s *settings) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithClock replaces time.Now for deadline accounting.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRecorder reports probes and outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(s *settings) { s.recorder = r }
}

func newSettings(opts []Option) *settings {
	s := &settings{
		name:  "converge",
		sleep: Sleep,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *settings) probe() {
	if s.recorder != nil {
		s.recorder.RecordProbe(s.name)
	}
}

func (s *settings) finish(outcome string, start time.Time) {
	if s.recorder != nil {
		s.recorder.RecordConvergence(s.name, outcome, s.now().Sub(start))
	}
}

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ByRetries observes until isTarget holds, sleeping budget.Interval between
// probes. After Max+1 observations without reaching the target it returns a
// *TimeoutError carrying the last observation.
func ByRetries[T any](ctx context.Context, observe Observe[T], isTarget func(T) bool, budget Retries, opts ...Option) (T, error) {
	s := newSettings(opts)
	start := s.now()

	obs, err := observeOnce(ctx, s, observe, 1)
	if err != nil {
		s.finish(OutcomeError, start)
		return obs, err
	}
	attempts := 1

	for !isTarget(obs) {
		if attempts > budget.Max {
			s.finish(OutcomeExhausted, start)
			return obs, &TimeoutError{
				Loop:     s.name,
				Last:     obs,
				Attempts: attempts,
				Budget:   budget.String(),
				Elapsed:  s.now().Sub(start),
			}
		}

		if err := s.sleep(ctx, budget.Interval); err != nil {
			s.finish(OutcomeError, start)
			return obs, fmt.Errorf("%s interrupted after %d attempts: %w", s.name, attempts, err)
		}

		attempts++
		obs, err = observeOnce(ctx, s, observe, attempts)
		if err != nil {
			s.finish(OutcomeError, start)
			return obs, err
		}
	}

	s.finish(OutcomeConverged, start)
	log.Debug().
		Str("loop", s.name).
		Int("attempts", attempts).
		Msg("converged")
	return obs, nil
}

// ByDeadline observes until isTarget holds, sleeping budget.Interval between
// probes. Once budget.Timeout has elapsed since loop entry without reaching
// the target it returns a *TimeoutError. Sleeps never run past the deadline,
// so the overrun is bounded by one probe latency.
func ByDeadline[T any](ctx context.Context, observe Observe[T], isTarget func(T) bool, budget Deadline, opts ...Option) (T, error) {
	s := newSettings(opts)
	start := s.now()

	obs, err := observeOnce(ctx, s, observe, 1)
	if err != nil {
		s.finish(OutcomeError, start)
		return obs, err
	}
	attempts := 1

	for !isTarget(obs) {
		wait := budget.Interval
		if budget.Timeout > 0 {
			elapsed := s.now().Sub(start)
			if elapsed >= budget.Timeout {
				s.finish(OutcomeExhausted, start)
				return obs, &TimeoutError{
					Loop:     s.name,
					Last:     obs,
					Attempts: attempts,
					Budget:   budget.String(),
					Elapsed:  elapsed,
					Timeout:  budget.Timeout,
				}
			}
			if remaining := budget.Timeout - elapsed; remaining < wait {
				wait = remaining
			}
		}

		if err := s.sleep(ctx, wait); err != nil {
			s.finish(OutcomeError, start)
			return obs, fmt.Errorf("%s interrupted after %d attempts: %w", s.name, attempts, err)
		}

		attempts++
		obs, err = observeOnce(ctx, s, observe, attempts)
		if err != nil {
			s.finish(OutcomeError, start)
			return obs, err
		}
	}

	s.finish(OutcomeConverged, start)
	log.Debug().
		Str("loop", s.name).
		Int("attempts", attempts).
		Dur("elapsed", s.now().Sub(start)).
		Msg("converged")
	return obs, nil
}

func observeOnce[T any](ctx context.Context, s *settings, observe Observe[T], attempt int) (T, error) {
	s.probe()
	obs, err := observe(ctx)
	if err != nil {
		log.Debug().
			Str("loop", s.name).
			Int("attempt", attempt).
			Err(err).
			Msg("probe failed")
		return obs, err
	}
	log.Debug().
		Str("loop", s.name).
		Int("attempt", attempt).
		Interface("observation", obs).
		Msg("probe")
	return obs, nil
}
