package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/acceptance/pkg/acceptance"
	"github.com/openfroyo/acceptance/pkg/remote"
)

func newValidateVersionCommand(a *app) *cobra.Command {
	var showOnly bool

	cmd := &cobra.Command{
		Use:   "validate-version",
		Short: "Check the installed package version",
		Long: `Query the package manager on every target host and compare the installed
version with expected-package-version.`,
		Example: `  froyo-accept validate-version --host db1 --type package --expected-package-version 3.0.1-1

  # Print the installed versions without comparing
  froyo-accept validate-version --host db1 --type package --show`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.eachHost(cmd.Context(), acceptance.StepValidateVersion, func(ctx context.Context, host remote.Host) error {
				if !showOnly {
					return a.suite.Version.Validate(ctx, host)
				}
				installed, err := a.suite.Version.Installed(ctx, host)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", host.Name, installed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showOnly, "show", false, "print installed versions instead of validating")

	return cmd
}
