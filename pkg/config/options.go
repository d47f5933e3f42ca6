package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Option names, shared by flags, the options file and the explicit map
// passed to Load.
const (
	OptPkgDir                 = "pkg-dir"
	OptInstallType            = "type"
	OptInstallMode            = "install-mode"
	OptDatabase               = "database"
	OptValidatePackageVersion = "validate-package-version"
	OptExpectedPackageVersion = "expected-package-version"
	OptUseProxies             = "use-proxies"
	OptPurgeAfterRun          = "purge-after-run"
)

var booleans = []string{"true", "false"}

// Option declares one configurable value.
type Option struct {
	// Name is the option key
	Name string

	// Description names the option in error messages
	Description string

	// Legal is the allowed set; nil accepts anything
	Legal []string

	// EnvVar is the environment fallback, if any
	EnvVar string

	// Default is used when neither explicit nor environment supply a value
	Default *string
}

// Options is the option table consumed by Load.
var Options = []Option{
	{
		Name:        OptPkgDir,
		Description: "package directory",
		EnvVar:      "ACCEPT_PKG_DIR",
		Default:     String("pkg"),
	},
	{
		Name:        OptInstallType,
		Description: "install type",
		Legal:       []string{"git", "manual", "package"},
	},
	{
		Name:        OptInstallMode,
		Description: "install mode",
		Legal:       []string{string(InstallModeInstall), string(InstallModeUpgrade)},
		EnvVar:      "PUPPETDB_INSTALL_MODE",
		Default:     String(string(InstallModeInstall)),
	},
	{
		Name:        OptDatabase,
		Description: "database",
		Legal:       []string{string(DatabasePostgres), string(DatabaseEmbedded)},
		EnvVar:      "PUPPETDB_DATABASE",
		Default:     String(string(DatabasePostgres)),
	},
	{
		Name:        OptValidatePackageVersion,
		Description: "'validate package version'",
		Legal:       booleans,
		EnvVar:      "PUPPETDB_VALIDATE_PACKAGE_VERSION",
		Default:     String("true"),
	},
	{
		Name:        OptExpectedPackageVersion,
		Description: "'expected package version'",
		EnvVar:      "PUPPETDB_EXPECTED_PACKAGE_VERSION",
	},
	{
		Name:        OptUseProxies,
		Description: "'use proxies'",
		Legal:       booleans,
		EnvVar:      "PUPPETDB_USE_PROXIES",
		Default:     String("true"),
	},
	{
		Name:        OptPurgeAfterRun,
		Description: "'purge packages and perform exhaustive cleanup after run'",
		Legal:       booleans,
		EnvVar:      "PUPPETDB_PURGE_AFTER_RUN",
		Default:     String("false"),
	},
}

// Lookup returns the table row for name.
func Lookup(name string) (Option, bool) {
	for _, o := range Options {
		if o.Name == name {
			return o, true
		}
	}
	return Option{}, false
}

var validate = validator.New()

// Load resolves every option in the table and builds the Configuration.
// explicit holds caller-supplied values keyed by option name; env is the
// environment fallback (usually os.LookupEnv).
func Load(explicit map[string]string, env LookupFunc) (*Configuration, error) {
	for name := range explicit {
		if _, ok := Lookup(name); !ok {
			return nil, fmt.Errorf("unknown option %q", name)
		}
	}

	resolved := make(map[string]string, len(Options))
	for _, opt := range Options {
		var given *string
		if v, ok := explicit[opt.Name]; ok {
			given = &v
		}
		value, err := Resolve(given, opt.Legal, opt.Description, opt.EnvVar, opt.Default, env)
		if err != nil {
			return nil, err
		}
		if value != nil {
			resolved[opt.Name] = *value
		}
	}

	installType := InstallType(resolved[OptInstallType])
	if installType == "manual" {
		installType = InstallTypePackage
	}

	cfg := &Configuration{
		PkgDir:                 resolved[OptPkgDir],
		OSFamilies:             NewFamilyCache(nil),
		InstallType:            installType,
		InstallMode:            InstallMode(resolved[OptInstallMode]),
		Database:               Database(resolved[OptDatabase]),
		ValidatePackageVersion: resolved[OptValidatePackageVersion] == "true",
		ExpectedPackageVersion: resolved[OptExpectedPackageVersion],
		UseProxies:             resolved[OptUseProxies] == "true",
		PurgeAfterRun:          resolved[OptPurgeAfterRun] == "true",
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration failed validation: %w", err)
	}

	return cfg, nil
}
