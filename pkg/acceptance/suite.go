package acceptance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/openfroyo/acceptance/pkg/config"
	"github.com/openfroyo/acceptance/pkg/converge"
	"github.com/openfroyo/acceptance/pkg/install"
	"github.com/openfroyo/acceptance/pkg/lifecycle"
	"github.com/openfroyo/acceptance/pkg/manifest"
	"github.com/openfroyo/acceptance/pkg/platform"
	"github.com/openfroyo/acceptance/pkg/queue"
	"github.com/openfroyo/acceptance/pkg/remote"
	"github.com/openfroyo/acceptance/pkg/telemetry"
	"github.com/openfroyo/acceptance/pkg/version"
)

// Suite wires one run's configuration, transport and telemetry into the
// acceptance components.
type Suite struct {
	cfg    *config.Configuration
	runner remote.Runner
	tel    *telemetry.Telemetry

	Detector  *platform.Detector
	Lifecycle *lifecycle.Controller
	Queue     *queue.Waiter
	Version   *version.Validator
	Applier   *manifest.Applier
	Installer *install.Installer

	queueTimeout time.Duration
}

type suiteSettings struct {
	sleeper      converge.Sleeper
	clock        func() time.Time
	queueTimeout time.Duration
	serviceName  string
	probeURL     string
	sourceDir    string
}

// Option configures a Suite.
type Option func(*suiteSettings)

// WithSleeper replaces the sleeper of every convergence loop.
func WithSleeper(sleeper converge.Sleeper) Option {
	return func(s *suiteSettings) { s.sleeper = sleeper }
}

// WithClock replaces the clock of deadline-bounded loops.
func WithClock(now func() time.Time) Option {
	return func(s *suiteSettings) { s.clock = now }
}

// WithQueueTimeout bounds the queue drain wait. Zero waits indefinitely.
func WithQueueTimeout(d time.Duration) Option {
	return func(s *suiteSettings) { s.queueTimeout = d }
}

// WithServiceName overrides the service controlled by the lifecycle steps.
func WithServiceName(name string) Option {
	return func(s *suiteSettings) { s.serviceName = name }
}

// WithProbeURL overrides the URL polled for reachability.
func WithProbeURL(url string) Option {
	return func(s *suiteSettings) { s.probeURL = url }
}

// WithSourceDir overrides the source checkout directory on hosts.
func WithSourceDir(dir string) Option {
	return func(s *suiteSettings) { s.sourceDir = dir }
}

// NewSuite builds every component over runner. A nil tel disables
// telemetry.
func NewSuite(cfg *config.Configuration, runner remote.Runner, tel *telemetry.Telemetry, opts ...Option) *Suite {
	if tel == nil {
		tel = telemetry.Noop()
	}

	s := &suiteSettings{
		serviceName: lifecycle.DefaultServiceName,
		probeURL:    lifecycle.DefaultProbeURL,
		sourceDir:   install.DefaultSourceDir,
	}
	for _, opt := range opts {
		opt(s)
	}

	detector := platform.NewDetector(runner, cfg.OSFamilies)
	applier := manifest.NewApplier(runner, manifest.WithRecorder(tel.Metrics))

	return &Suite{
		cfg:      cfg,
		runner:   runner,
		tel:      tel,
		Detector: detector,
		Lifecycle: lifecycle.NewController(runner,
			lifecycle.WithServiceName(s.serviceName),
			lifecycle.WithProbeURL(s.probeURL),
			lifecycle.WithSleeper(s.sleeper),
			lifecycle.WithRecorder(tel.Metrics),
		),
		Queue: queue.NewWaiter(runner,
			queue.WithSleeper(s.sleeper),
			queue.WithClock(s.clock),
			queue.WithRecorder(tel.Metrics),
		),
		Version:      version.NewValidator(runner, cfg, detector),
		Applier:      applier,
		Installer:    install.NewInstaller(runner, applier, detector, cfg, install.WithSourceDir(s.sourceDir)),
		queueTimeout: s.queueTimeout,
	}
}

// SetQueueTimeout bounds the queue drain wait of later runs. Zero waits
// indefinitely.
func (s *Suite) SetQueueTimeout(d time.Duration) {
	s.queueTimeout = d
}

// Config returns the run configuration.
func (s *Suite) Config() *config.Configuration {
	return s.cfg
}

// Telemetry returns the telemetry bundle steps report to.
func (s *Suite) Telemetry() *telemetry.Telemetry {
	return s.tel
}

// Run executes the scenario on every host concurrently. Steps on one host
// run in order and stop at the first failure; the first host failure
// cancels the others.
func (s *Suite) Run(ctx context.Context, hosts []remote.Host) error {
	if len(hosts) == 0 {
		return fmt.Errorf("no hosts to run against")
	}
	if err := s.cfg.Preflight(); err != nil {
		return err
	}

	runID := uuid.NewString()
	ctx, span := s.tel.Tracer.StartRunSpan(ctx, runID, len(hosts))
	defer span.End()

	logger := telemetry.FromContext(ctx).WithRunID(runID)
	ctx = logger.WithContext(ctx)
	logger.WithField("hosts", len(hosts)).Info("acceptance run started")

	g, gctx := errgroup.WithContext(ctx)
	for _, host := range hosts {
		g.Go(func() error {
			return s.RunHost(gctx, host)
		})
	}

	err := g.Wait()
	if err != nil {
		telemetry.RecordError(span, err)
		logger.WithError(err).Error("acceptance run failed")
		return err
	}

	telemetry.RecordSuccess(span)
	logger.Info("acceptance run finished")
	return nil
}

// RunHost executes the scenario on one host.
func (s *Suite) RunHost(ctx context.Context, host remote.Host) (err error) {
	if err := s.cfg.Preflight(); err != nil {
		return err
	}

	s.tel.Metrics.RecordHostStarted()
	defer func() {
		status := "succeeded"
		if err != nil {
			status = "failed"
		}
		s.tel.Metrics.RecordHostCompleted(status)
	}()

	steps := []struct {
		name    string
		enabled bool
		run     func(ctx context.Context) error
	}{
		{StepInstall, true, func(ctx context.Context) error { return s.Installer.Install(ctx, host) }},
		{StepStart, true, func(ctx context.Context) error { return s.Lifecycle.Start(ctx, host) }},
		{StepValidateVersion, s.cfg.ValidatePackageVersion, func(ctx context.Context) error { return s.Version.Validate(ctx, host) }},
		{StepWaitQueue, true, func(ctx context.Context) error { return s.Queue.WaitForEmpty(ctx, host, s.queueTimeout) }},
		{StepStop, true, func(ctx context.Context) error { return s.Lifecycle.Stop(ctx, host) }},
		{StepPurge, s.cfg.PurgeAfterRun, func(ctx context.Context) error { return s.Installer.Purge(ctx, host) }},
	}

	for _, step := range steps {
		if !step.enabled {
			telemetry.FromContext(ctx).WithHost(host.Name).WithStep(step.name).Debug("step skipped")
			continue
		}
		if err := Step(ctx, s.tel, host, step.name, step.run); err != nil {
			return err
		}
	}
	return nil
}
