package config

import acceptErrors "github.com/openfroyo/acceptance/pkg/errors"

// InstallType selects how the application reaches the host.
type InstallType string

const (
	// InstallTypeGit builds and installs from a source checkout
	InstallTypeGit InstallType = "git"

	// InstallTypePackage installs the published OS package
	InstallTypePackage InstallType = "package"
)

// InstallMode selects between a fresh install and an upgrade run.
type InstallMode string

const (
	InstallModeInstall InstallMode = "install"
	InstallModeUpgrade InstallMode = "upgrade"
)

// Database is the storage backend the application is configured with.
type Database string

const (
	DatabasePostgres Database = "postgres"
	DatabaseEmbedded Database = "embedded"
)

// OSFamily is a coarse platform classification.
type OSFamily string

const (
	OSFamilyRedHat OSFamily = "redhat"
	OSFamilyDebian OSFamily = "debian"
)

// Configuration is the resolved, read-only configuration of one run.
type Configuration struct {
	// PkgDir is the local directory holding built packages
	PkgDir string `json:"pkg_dir" validate:"required"`

	// OSFamilies maps host names to their classified OS family
	OSFamilies *FamilyCache `json:"-" validate:"-"`

	// InstallType is git (from source) or package
	InstallType InstallType `json:"install_type" validate:"required,oneof=git package"`

	// InstallMode is install or upgrade
	InstallMode InstallMode `json:"install_mode" validate:"required,oneof=install upgrade"`

	// Database is postgres or embedded
	Database Database `json:"database" validate:"required,oneof=postgres embedded"`

	// ValidatePackageVersion enables the installed version check
	ValidatePackageVersion bool `json:"validate_package_version"`

	// ExpectedPackageVersion is the version the check expects, if any
	ExpectedPackageVersion string `json:"expected_package_version,omitempty"`

	// UseProxies routes package downloads through the configured proxies
	UseProxies bool `json:"use_proxies"`

	// PurgeAfterRun removes packages and data once the run finishes
	PurgeAfterRun bool `json:"purge_after_run"`
}

// Preflight rejects option combinations a scenario cannot complete with. It
// runs before any remote action so a host is never left half-transitioned.
func (c *Configuration) Preflight() error {
	if c.ValidatePackageVersion && c.ExpectedPackageVersion == "" {
		return acceptErrors.NewMissingConfigurationError("expected package version")
	}
	return nil
}
