// Package queue waits for the application's embedded command queue to drain.
package queue

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openfroyo/acceptance/pkg/converge"
	acceptErrors "github.com/openfroyo/acceptance/pkg/errors"
	"github.com/openfroyo/acceptance/pkg/remote"
)

const (
	// CommandQueueMBean names the broker queue holding pending commands
	CommandQueueMBean = "org.apache.activemq:BrokerName=localhost,Type=Queue,Destination=com.puppetlabs.puppetdb.commands"

	// DefaultMetricsURL is the base of the mbean metrics endpoint
	DefaultMetricsURL = "http://localhost:8080/v1/metrics/mbean/"

	// DefaultInterval separates queue probes
	DefaultInterval = time.Second

	queueSizeKey = "QueueSize"
)

// ParseQueueSize extracts the QueueSize counter from an mbean payload. The
// payload is split on commas and each field on its first colon, so the order
// of attributes and any surrounding JSON punctuation do not matter.
func ParseQueueSize(payload string) (int, error) {
	for _, field := range strings.Split(payload, ",") {
		key, value, ok := strings.Cut(field, ":")
		if !ok || trimToken(key) != queueSizeKey {
			continue
		}
		size, err := strconv.Atoi(trimToken(value))
		if err != nil {
			return 0, acceptErrors.NewMalformedMetricError(queueSizeKey, payload, "counter is not an integer")
		}
		if size < 0 {
			return 0, acceptErrors.NewMalformedMetricError(queueSizeKey, payload, "counter is negative")
		}
		return size, nil
	}
	return 0, acceptErrors.NewMalformedMetricError(queueSizeKey, payload, "counter not found")
}

func trimToken(s string) string {
	return strings.Trim(s, " \t\r\n\"'{}[]")
}

// Waiter polls the queue metric on a host until it reports zero.
type Waiter struct {
	runner   remote.Runner
	url      string
	interval time.Duration
	sleeper  converge.Sleeper
	clock    func() time.Time
	recorder converge.Recorder
}

// Option configures a Waiter.
type Option func(*Waiter)

// WithInterval overrides the delay between probes.
func WithInterval(d time.Duration) Option {
	return func(w *Waiter) { w.interval = d }
}

// WithSleeper replaces the sleeper between probes.
func WithSleeper(sleeper converge.Sleeper) Option {
	return func(w *Waiter) { w.sleeper = sleeper }
}

// WithClock replaces the clock used for deadline accounting.
func WithClock(now func() time.Time) Option {
	return func(w *Waiter) { w.clock = now }
}

// WithRecorder reports probe metrics to r.
func WithRecorder(r converge.Recorder) Option {
	return func(w *Waiter) { w.recorder = r }
}

// NewWaiter creates a queue waiter.
func NewWaiter(runner remote.Runner, opts ...Option) *Waiter {
	w := &Waiter{
		runner:   runner,
		url:      DefaultMetricsURL + url.QueryEscape(CommandQueueMBean),
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Command is the remote command fetching the queue metric.
func (w *Waiter) Command() string {
	return fmt.Sprintf("curl -H 'Accept: application/json' %s", w.url)
}

// Size reads the current queue size on host.
func (w *Waiter) Size(ctx context.Context, host remote.Host) (int, error) {
	res, err := w.runner.Run(ctx, host, w.Command(), remote.Success)
	if err != nil {
		return 0, fmt.Errorf("failed to read queue metric on %s: %w", host, err)
	}
	return ParseQueueSize(res.Stdout)
}

// WaitForEmpty blocks until the queue on host is empty. A zero timeout waits
// indefinitely.
func (w *Waiter) WaitForEmpty(ctx context.Context, host remote.Host, timeout time.Duration) error {
	observe := func(ctx context.Context) (int, error) {
		return w.Size(ctx, host)
	}

	_, err := converge.ByDeadline(ctx, observe, func(size int) bool { return size == 0 },
		converge.Deadline{Timeout: timeout, Interval: w.interval},
		converge.WithName("queue-drain"),
		converge.WithSleeper(w.sleeper),
		converge.WithClock(w.clock),
		converge.WithRecorder(w.recorder),
	)
	if err != nil {
		if converge.IsTimeoutError(err) {
			return acceptErrors.NewQueueDrainTimeoutError(host.Name, timeout, err)
		}
		return err
	}

	log.Info().Str("host", host.Name).Msg("command queue is empty")
	return nil
}
