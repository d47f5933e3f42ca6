package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/openfroyo/acceptance/pkg/acceptance"
	"github.com/openfroyo/acceptance/pkg/config"
	"github.com/openfroyo/acceptance/pkg/remote"
	"github.com/openfroyo/acceptance/pkg/telemetry"
	"github.com/openfroyo/acceptance/pkg/transports/ssh"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	optionsFile   string
	hosts         []string
	logFormat     string
	metricsAddr   string
	traceExporter string
	traceEndpoint string
	serviceName   string
	probeURL      string
	sourceDir     string

	// options holds one flag per entry of the option table
	options map[string]*string
}

// app is the state built once per invocation.
type app struct {
	flags *globalFlags

	file   *config.File
	cfg    *config.Configuration
	hosts  []remote.Host
	tel    *telemetry.Telemetry
	runner *ssh.Runner
	suite  *acceptance.Suite
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd, a := newRootCommand(version, commit, buildDate)
	err := rootCmd.ExecuteContext(ctx)
	if closeErr := a.close(); err == nil {
		err = closeErr
	}
	return err
}

func newRootCommand(version, commit, buildDate string) (*cobra.Command, *app) {
	flags := &globalFlags{options: make(map[string]*string)}
	a := &app{flags: flags}

	rootCmd := &cobra.Command{
		Use:   "froyo-accept",
		Short: "Acceptance test driver for the PuppetDB service",
		Long: `froyo-accept installs PuppetDB on remote hosts over SSH and drives it
through its lifecycle, waiting on observable signals until each host reaches
the requested state.

Options resolve from flags, then the options file, then environment
variables, then defaults:
  - type                      git, package (manual is package)
  - install-mode              install, upgrade ($PUPPETDB_INSTALL_MODE)
  - database                  postgres, embedded ($PUPPETDB_DATABASE)
  - validate-package-version  true, false ($PUPPETDB_VALIDATE_PACKAGE_VERSION)
  - expected-package-version  ($PUPPETDB_EXPECTED_PACKAGE_VERSION)
  - use-proxies               true, false ($PUPPETDB_USE_PROXIES)
  - purge-after-run           true, false ($PUPPETDB_PURGE_AFTER_RUN)`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd, version)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.optionsFile, "options", "o", "", "options file (YAML) with option values, SSH settings and hosts")
	pf.StringSliceVarP(&flags.hosts, "host", "H", nil, "target host (repeatable); defaults to every host in the options file")
	pf.StringVar(&flags.logFormat, "log-format", "console", "log format (console, json)")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")
	pf.StringVar(&flags.traceExporter, "trace-exporter", "none", "trace exporter (none, stdout, otlp)")
	pf.StringVar(&flags.traceEndpoint, "trace-endpoint", "", "OTLP collector endpoint")
	pf.StringVar(&flags.serviceName, "service", "puppetdb", "service name controlled on hosts")
	pf.StringVar(&flags.probeURL, "probe-url", "http://localhost:8080", "URL polled on hosts for reachability")
	pf.StringVar(&flags.sourceDir, "source-dir", "/opt/puppet-git-repos", "source checkout directory on hosts")

	for _, opt := range config.Options {
		flags.options[opt.Name] = pf.String(opt.Name, "", opt.Description)
	}

	rootCmd.AddCommand(newConfigCommand(a))
	rootCmd.AddCommand(newInstallCommand(a))
	rootCmd.AddCommand(newStartCommand(a))
	rootCmd.AddCommand(newStopCommand(a))
	rootCmd.AddCommand(newRestartCommand(a))
	rootCmd.AddCommand(newWaitQueueCommand(a))
	rootCmd.AddCommand(newValidateVersionCommand(a))
	rootCmd.AddCommand(newApplyCommand(a))
	rootCmd.AddCommand(newRunCommand(a))

	return rootCmd, a
}

// explicitOptions merges the options file with the option flags; flags win.
func (a *app) explicitOptions(cmd *cobra.Command) map[string]string {
	explicit := make(map[string]string)
	if a.file != nil {
		for k, v := range a.file.Explicit() {
			explicit[k] = v
		}
	}
	for name, value := range a.flags.options {
		if cmd.Flags().Changed(name) {
			explicit[name] = *value
		}
	}
	return explicit
}

func (a *app) setup(cmd *cobra.Command, version string) error {
	if a.flags.optionsFile != "" {
		file, err := config.LoadFile(a.flags.optionsFile)
		if err != nil {
			return err
		}
		a.file = file
	} else {
		a.file = &config.File{}
	}

	cfg, err := config.Load(a.explicitOptions(cmd), os.LookupEnv)
	if err != nil {
		return err
	}
	a.cfg = cfg

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = version
	tcfg.Logging.Format = a.flags.logFormat
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		tcfg.Logging.Level = level
	}
	tcfg.Metrics.ListenAddress = a.flags.metricsAddr
	if a.flags.traceExporter != "none" {
		tcfg.Tracing.Enabled = true
		tcfg.Tracing.Exporter = a.flags.traceExporter
		tcfg.Tracing.Endpoint = a.flags.traceEndpoint
	}

	tel, err := telemetry.NewTelemetry(tcfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	tel.Logger.SetGlobal()
	a.tel = tel

	if err := tel.Metrics.StartMetricsServer(cmd.Context()); err != nil {
		return err
	}

	a.hosts = a.selectHosts()
	a.runner = ssh.NewRunner(a.file.SSH, os.LookupEnv)
	a.suite = acceptance.NewSuite(cfg, a.runner, tel,
		acceptance.WithServiceName(a.flags.serviceName),
		acceptance.WithProbeURL(a.flags.probeURL),
		acceptance.WithSourceDir(a.flags.sourceDir),
	)

	log.Debug().
		Str("install_type", string(cfg.InstallType)).
		Str("database", string(cfg.Database)).
		Int("hosts", len(a.hosts)).
		Msg("configuration resolved")
	return nil
}

// selectHosts returns the hosts named by --host, completed from the options
// file inventory, or the whole inventory.
func (a *app) selectHosts() []remote.Host {
	if len(a.flags.hosts) == 0 {
		return a.file.Hosts
	}

	hosts := make([]remote.Host, 0, len(a.flags.hosts))
	for _, name := range a.flags.hosts {
		hosts = append(hosts, a.lookupHost(name))
	}
	return hosts
}

// close releases connections and flushes traces. It is safe to call when
// setup never ran.
func (a *app) close() error {
	var err error
	if a.runner != nil {
		err = a.runner.Close()
	}
	if a.tel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if shutdownErr := a.tel.Shutdown(ctx); shutdownErr != nil {
			log.Warn().Err(shutdownErr).Msg("failed to flush traces")
		}
	}
	return err
}

// requireHosts fails when no target host was given.
func (a *app) requireHosts() error {
	if len(a.hosts) == 0 {
		return fmt.Errorf("no hosts: pass --host or list hosts in the options file")
	}
	return nil
}

// eachHost runs fn as a named step on every target host concurrently.
func (a *app) eachHost(ctx context.Context, step string, fn func(ctx context.Context, host remote.Host) error) error {
	if err := a.requireHosts(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, host := range a.hosts {
		g.Go(func() error {
			return acceptance.Step(gctx, a.tel, host, step, func(ctx context.Context) error {
				return fn(ctx, host)
			})
		})
	}
	return g.Wait()
}
