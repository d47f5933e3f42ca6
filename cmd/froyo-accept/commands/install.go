package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openfroyo/acceptance/pkg/acceptance"
	"github.com/openfroyo/acceptance/pkg/config"
	"github.com/openfroyo/acceptance/pkg/remote"
)

func newInstallCommand(a *app) *cobra.Command {
	var (
		terminiFor string
		postgres   bool
		printIni   bool
		purge      bool
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the application on target hosts",
		Long: `Install the application on every target host, from published packages or
from the source checkout depending on --type.

With --termini-for, target hosts are treated as masters and get the report
termini pointed at the named database host instead.`,
		Example: `  # Package install with the postgres database
  froyo-accept install --host db1 --type package

  # Source install
  froyo-accept install --host db1 --type git --source-dir /opt/puppet-git-repos

  # Point a master at db1
  froyo-accept install --host master1 --type package --termini-for db1

  # Remove everything again
  froyo-accept install --host db1 --type package --purge`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			installer := a.suite.Installer

			step := acceptance.StepInstall
			var fn func(ctx context.Context, host remote.Host) error

			switch {
			case purge:
				step = acceptance.StepPurge
				fn = installer.Purge
			case printIni:
				step = acceptance.StepPrintIni
				fn = installer.PrintIniFiles
			case postgres:
				step = acceptance.StepInstallPostgres
				fn = installer.InstallPostgres
			case terminiFor != "":
				db := a.lookupHost(terminiFor)
				step = acceptance.StepInstallTermini
				fn = func(ctx context.Context, host remote.Host) error {
					if a.cfg.InstallType == config.InstallTypeGit {
						return installer.InstallTerminiFromSource(ctx, host, db)
					}
					return installer.InstallTermini(ctx, host, db)
				}
			default:
				fn = installer.Install
			}

			return a.eachHost(cmd.Context(), step, fn)
		},
	}

	cmd.Flags().StringVar(&terminiFor, "termini-for", "", "install the report termini pointing at this database host")
	cmd.Flags().BoolVar(&postgres, "postgres", false, "install only the postgres database server")
	cmd.Flags().BoolVar(&printIni, "print-ini", false, "print the jetty and database ini files")
	cmd.Flags().BoolVar(&purge, "purge", false, "remove packages, configuration and data")
	cmd.MarkFlagsMutuallyExclusive("termini-for", "postgres", "print-ini", "purge")

	return cmd
}

// lookupHost returns the inventory entry named name, or a bare host.
func (a *app) lookupHost(name string) remote.Host {
	for _, h := range a.file.Hosts {
		if h.Name == name {
			return h
		}
	}
	return remote.Host{Name: name}
}
