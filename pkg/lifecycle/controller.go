// Package lifecycle starts and stops the application service on a host and
// waits until the service is observably in the requested state.
//
// Reachability is observed with curl against the service's HTTP port. curl
// exits 0 when it got an answer and 7 when the connection was refused, which
// are the up and down targets. Any other code below 127 means "not yet";
// 127 and above mean the probe itself could not run and abort the wait.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openfroyo/acceptance/pkg/converge"
	acceptErrors "github.com/openfroyo/acceptance/pkg/errors"
	"github.com/openfroyo/acceptance/pkg/remote"
)

const (
	// DefaultServiceName is the init script controlling the application
	DefaultServiceName = "puppetdb"

	// DefaultProbeURL is polled for reachability
	DefaultProbeURL = "http://localhost:8080"

	// exitReachable is curl's exit code when the server answered
	exitReachable = 0

	// exitRefused is curl's exit code when the connection was refused
	exitRefused = 7
)

// DefaultBudget gives the service 60 probes, one second apart.
var DefaultBudget = converge.Retries{Max: 59, Interval: time.Second}

// probeCodes are the curl exit codes that describe the service rather than
// the probe.
var probeCodes = remote.ExitCodeRange{Min: 0, Max: 127}

// Controller drives service transitions. Transitions on the same host are
// serialized; different hosts proceed independently.
type Controller struct {
	runner   remote.Runner
	service  string
	probeURL string
	budget   converge.Retries
	sleeper  converge.Sleeper
	recorder converge.Recorder

	mu    sync.Mutex
	hosts map[string]*sync.Mutex
}

// Option configures a Controller.
type Option func(*Controller)

// WithServiceName overrides the init script name.
func WithServiceName(name string) Option {
	return func(c *Controller) { c.service = name }
}

// WithProbeURL overrides the URL polled for reachability.
func WithProbeURL(url string) Option {
	return func(c *Controller) { c.probeURL = url }
}

// WithBudget overrides the probe budget.
func WithBudget(budget converge.Retries) Option {
	return func(c *Controller) { c.budget = budget }
}

// WithSleeper replaces the sleeper between probes.
func WithSleeper(sleeper converge.Sleeper) Option {
	return func(c *Controller) { c.sleeper = sleeper }
}

// WithRecorder reports probe metrics to r.
func WithRecorder(r converge.Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// NewController creates a lifecycle controller.
func NewController(runner remote.Runner, opts ...Option) *Controller {
	c := &Controller{
		runner:   runner,
		service:  DefaultServiceName,
		probeURL: DefaultProbeURL,
		budget:   DefaultBudget,
		hosts:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start starts the service and waits until it answers HTTP requests.
func (c *Controller) Start(ctx context.Context, host remote.Host) error {
	unlock := c.lock(host.Name)
	defer unlock()
	return c.start(ctx, host)
}

// Stop stops the service and waits until it refuses connections.
func (c *Controller) Stop(ctx context.Context, host remote.Host) error {
	unlock := c.lock(host.Name)
	defer unlock()
	return c.stop(ctx, host)
}

// Restart stops then starts the service. A failed stop aborts the restart.
func (c *Controller) Restart(ctx context.Context, host remote.Host) error {
	unlock := c.lock(host.Name)
	defer unlock()

	if err := c.stop(ctx, host); err != nil {
		return err
	}
	return c.start(ctx, host)
}

func (c *Controller) start(ctx context.Context, host remote.Host) error {
	log.Info().Str("host", host.Name).Str("service", c.service).Msg("starting service")

	if _, err := c.runner.Run(ctx, host, c.serviceCommand("start"), remote.Success); err != nil {
		return fmt.Errorf("failed to start %s on %s: %w", c.service, host, err)
	}

	if err := c.waitFor(ctx, host, exitReachable, "service-start"); err != nil {
		if converge.IsTimeoutError(err) {
			return acceptErrors.NewServiceStartTimeoutError(host.Name, err)
		}
		return err
	}

	log.Info().Str("host", host.Name).Str("service", c.service).Msg("service started")
	return nil
}

func (c *Controller) stop(ctx context.Context, host remote.Host) error {
	log.Info().Str("host", host.Name).Str("service", c.service).Msg("stopping service")

	if _, err := c.runner.Run(ctx, host, c.serviceCommand("stop"), remote.Success); err != nil {
		return fmt.Errorf("failed to stop %s on %s: %w", c.service, host, err)
	}

	if err := c.waitFor(ctx, host, exitRefused, "service-stop"); err != nil {
		if converge.IsTimeoutError(err) {
			return acceptErrors.NewServiceStopTimeoutError(host.Name, err)
		}
		return err
	}

	log.Info().Str("host", host.Name).Str("service", c.service).Msg("service stopped")
	return nil
}

func (c *Controller) waitFor(ctx context.Context, host remote.Host, target int, loop string) error {
	probe := "curl " + c.probeURL
	observe := func(ctx context.Context) (int, error) {
		res, err := c.runner.Run(ctx, host, probe, probeCodes)
		if err != nil {
			return res.ExitCode, fmt.Errorf("reachability probe failed on %s: %w", host, err)
		}
		return res.ExitCode, nil
	}

	_, err := converge.ByRetries(ctx, observe, func(code int) bool { return code == target }, c.budget,
		converge.WithName(loop),
		converge.WithSleeper(c.sleeper),
		converge.WithRecorder(c.recorder),
	)
	return err
}

func (c *Controller) serviceCommand(action string) string {
	return fmt.Sprintf("service %s %s", c.service, action)
}

func (c *Controller) lock(host string) func() {
	c.mu.Lock()
	m, ok := c.hosts[host]
	if !ok {
		m = &sync.Mutex{}
		c.hosts[host] = m
	}
	c.mu.Unlock()

	m.Lock()
	return m.Unlock
}
