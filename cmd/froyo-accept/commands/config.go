package commands

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/acceptance/pkg/remote"
)

// resolvedConfig is the printable form of one invocation's configuration.
type resolvedConfig struct {
	PkgDir                 string        `yaml:"pkg_dir"`
	InstallType            string        `yaml:"install_type"`
	InstallMode            string        `yaml:"install_mode"`
	Database               string        `yaml:"database"`
	ValidatePackageVersion bool          `yaml:"validate_package_version"`
	ExpectedPackageVersion string        `yaml:"expected_package_version,omitempty"`
	UseProxies             bool          `yaml:"use_proxies"`
	PurgeAfterRun          bool          `yaml:"purge_after_run"`
	Hosts                  []remote.Host `yaml:"hosts,omitempty"`
}

func newConfigCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Long: `Resolve every option from flags, the options file, the environment and
defaults, validate it, and print the result as YAML.`,
		Example: `  PUPPETDB_DATABASE=embedded froyo-accept config --type git`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := resolvedConfig{
				PkgDir:                 a.cfg.PkgDir,
				InstallType:            string(a.cfg.InstallType),
				InstallMode:            string(a.cfg.InstallMode),
				Database:               string(a.cfg.Database),
				ValidatePackageVersion: a.cfg.ValidatePackageVersion,
				ExpectedPackageVersion: a.cfg.ExpectedPackageVersion,
				UseProxies:             a.cfg.UseProxies,
				PurgeAfterRun:          a.cfg.PurgeAfterRun,
				Hosts:                  a.hosts,
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(out)
		},
	}
}
