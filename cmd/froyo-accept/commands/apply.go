package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfroyo/acceptance/pkg/acceptance"
	"github.com/openfroyo/acceptance/pkg/manifest"
	"github.com/openfroyo/acceptance/pkg/remote"
)

func newApplyCommand(a *app) *cobra.Command {
	var (
		vars     map[string]string
		template bool
	)

	cmd := &cobra.Command{
		Use:   "apply <manifest>",
		Short: "Apply a manifest on target hosts",
		Long: `Ship a manifest to every target host and run puppet apply with detailed
exit codes. "No changes" and "changed" both succeed; anything else fails.
Applies are never retried.

With --template the manifest is rendered first as a Go template with the
sprig functions; --var values are available as {{ .name }}.`,
		Example: `  froyo-accept apply site.pp --host db1 --type package

  # Render before applying
  froyo-accept apply puppetdb.pp.tmpl --template --var database=postgres --host db1 --type package`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read manifest: %w", err)
			}

			name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			body := string(content)
			if template {
				if body, err = manifest.Render(name, body, vars); err != nil {
					return err
				}
			}

			return a.eachHost(cmd.Context(), acceptance.StepApply, func(ctx context.Context, host remote.Host) error {
				outcome, err := a.suite.Applier.Apply(ctx, host, name, body)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", host.Name, outcome)
				return nil
			})
		},
	}

	cmd.Flags().StringToStringVar(&vars, "var", nil, "template variables (key=value)")
	cmd.Flags().BoolVar(&template, "template", false, "render the manifest as a template before applying")

	return cmd
}
