package commands

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRunCommand(a *app) *cobra.Command {
	var queueTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full acceptance scenario",
		Long: `Run the standard scenario on every target host concurrently:

  1. install (from packages, or from source when --type git)
  2. start and wait until reachable
  3. validate the installed version (when validate-package-version is true)
  4. wait for the command queue to drain
  5. stop and wait until unreachable
  6. purge packages and data (when purge-after-run is true)

Steps on one host run in order; the first failure stops that host and
cancels the others.`,
		Example: `  # Package install on two hosts
  froyo-accept run --type package --host db1 --host db2

  # Everything from an options file, with metrics served while running
  froyo-accept run --options accept.yaml --metrics-addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireHosts(); err != nil {
				return err
			}

			a.suite.SetQueueTimeout(queueTimeout)
			if err := a.suite.Run(cmd.Context(), a.hosts); err != nil {
				return err
			}

			log.Info().Int("hosts", len(a.hosts)).Msg("acceptance scenario passed")
			return nil
		},
	}

	cmd.Flags().DurationVar(&queueTimeout, "queue-timeout", 0, "bound the queue drain wait (0 waits indefinitely)")

	return cmd
}
