// Package install puts the application, its report termini and its database
// on hosts, either from published packages or from a source checkout.
package install

import (
	"context"
	"fmt"
	"path"

	"github.com/rs/zerolog/log"

	"github.com/openfroyo/acceptance/pkg/config"
	"github.com/openfroyo/acceptance/pkg/manifest"
	"github.com/openfroyo/acceptance/pkg/platform"
	"github.com/openfroyo/acceptance/pkg/remote"
)

const (
	// DefaultSourceDir is where source checkouts live on hosts
	DefaultSourceDir = "/opt/puppet-git-repos"

	// PackageVersion is the version requested from the package repositories
	PackageVersion = "latest"

	confDir   = "/etc/puppetdb"
	peConfDir = "/etc/puppetlabs/puppetdb"
)

// Packages are removed by Purge.
var Packages = []string{"puppetdb", "puppetdb-terminus"}

// ConfDir returns the application configuration directory on host.
func ConfDir(host remote.Host) string {
	if host.PE {
		return peConfDir
	}
	return confDir
}

// Installer runs install workflows.
type Installer struct {
	runner    remote.Runner
	applier   *manifest.Applier
	detector  *platform.Detector
	cfg       *config.Configuration
	sourceDir string
}

// Option configures an Installer.
type Option func(*Installer)

// WithSourceDir overrides the source checkout directory.
func WithSourceDir(dir string) Option {
	return func(i *Installer) { i.sourceDir = dir }
}

// NewInstaller creates an installer.
func NewInstaller(runner remote.Runner, applier *manifest.Applier, detector *platform.Detector, cfg *config.Configuration, opts ...Option) *Installer {
	i := &Installer{
		runner:    runner,
		applier:   applier,
		detector:  detector,
		cfg:       cfg,
		sourceDir: DefaultSourceDir,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Install installs the application the way the configuration's install type
// asks for.
func (i *Installer) Install(ctx context.Context, host remote.Host) error {
	if i.cfg.InstallType == config.InstallTypeGit {
		if i.cfg.Database == config.DatabasePostgres {
			if err := i.InstallPostgres(ctx, host); err != nil {
				return err
			}
		}
		return i.InstallFromSource(ctx, host)
	}
	return i.InstallApplication(ctx, host)
}

// InstallApplication installs the application package and its database.
func (i *Installer) InstallApplication(ctx context.Context, host remote.Host) error {
	data := map[string]string{
		"Database": string(i.cfg.Database),
		"Version":  PackageVersion,
	}
	if _, err := i.applier.ApplyTemplate(ctx, host, "puppetdb", applicationManifest, data); err != nil {
		return err
	}
	return i.PrintIniFiles(ctx, host)
}

// InstallTermini points the master on host at the application on db.
func (i *Installer) InstallTermini(ctx context.Context, host, db remote.Host) error {
	data := map[string]string{
		"Server":  db.Name,
		"Version": PackageVersion,
	}
	_, err := i.applier.ApplyTemplate(ctx, host, "termini", terminiManifest, data)
	return err
}

// InstallPostgres installs the database server on host.
func (i *Installer) InstallPostgres(ctx context.Context, host remote.Host) error {
	log.Info().Str("host", host.Name).Msg("installing postgres")
	_, err := i.applier.Apply(ctx, host, "postgres", postgresManifest)
	return err
}

// InstallFromSource builds and installs the application from the source
// checkout on host, then writes its database configuration.
func (i *Installer) InstallFromSource(ctx context.Context, host remote.Host) error {
	family, err := i.detector.Family(ctx, host)
	if err != nil {
		return err
	}
	preinst, postinst := family.SourceHooks()

	steps := []string{
		"rm -rf " + path.Join(ConfDir(host), "ssl"),
		i.lein("rake template"),
		"sh " + i.packagingFile(preinst),
		i.lein("rake install"),
		"sh " + i.packagingFile(postinst),
	}
	for _, cmd := range steps {
		if _, err := i.runner.Run(ctx, host, cmd, remote.Success); err != nil {
			return fmt.Errorf("source install failed on %s: %w", host, err)
		}
	}

	data := map[string]string{"Database": string(i.cfg.Database)}
	if _, err := i.applier.ApplyTemplate(ctx, host, "database_ini", databaseIniManifest, data); err != nil {
		return err
	}
	return i.PrintIniFiles(ctx, host)
}

// InstallTerminiFromSource installs the termini from the source checkout on
// host and points them at db.
func (i *Installer) InstallTerminiFromSource(ctx context.Context, host, db remote.Host) error {
	if _, err := i.runner.Run(ctx, host, i.lein("rake sourceterminus"), remote.Success); err != nil {
		return fmt.Errorf("termini source install failed on %s: %w", host, err)
	}
	_, err := i.applier.ApplyTemplate(ctx, host, "source_termini", sourceTerminiManifest, map[string]string{"Server": db.Name})
	return err
}

// PrintIniFiles logs the application's jetty and database configuration.
func (i *Installer) PrintIniFiles(ctx context.Context, host remote.Host) error {
	for _, name := range []string{"jetty.ini", "database.ini"} {
		file := path.Join(ConfDir(host), "conf.d", name)
		res, err := i.runner.Run(ctx, host, "cat "+file, remote.Success)
		if err != nil {
			return fmt.Errorf("failed to read %s on %s: %w", file, host, err)
		}
		log.Info().
			Str("host", host.Name).
			Str("file", file).
			Msgf("%s:\n%s", name, res.Stdout)
	}
	return nil
}

// Purge removes the application packages and their data from host.
func (i *Installer) Purge(ctx context.Context, host remote.Host) error {
	family, err := i.detector.Family(ctx, host)
	if err != nil {
		return err
	}

	cmds := []string{
		family.RemovePackages(Packages...),
		"rm -rf " + ConfDir(host) + " /var/lib/puppetdb /var/log/puppetdb",
	}
	for _, cmd := range cmds {
		if _, err := i.runner.Run(ctx, host, cmd, remote.Success); err != nil {
			return fmt.Errorf("purge failed on %s: %w", host, err)
		}
	}

	log.Info().Str("host", host.Name).Msg("purged application")
	return nil
}

func (i *Installer) lein(task string) string {
	return fmt.Sprintf("cd %s; LEIN_ROOT=true %s", path.Join(i.sourceDir, "puppetdb"), task)
}

func (i *Installer) packagingFile(hook string) string {
	return path.Join(i.sourceDir, "puppetdb", "ext", "files", hook)
}
