package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/acceptance/pkg/acceptance"
	"github.com/openfroyo/acceptance/pkg/remote"
)

func newWaitQueueCommand(a *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "wait-queue",
		Short: "Wait until the command queue is empty",
		Long: `Poll the command queue size metric on every target host until it reports
zero. A zero timeout waits indefinitely.`,
		Example: `  froyo-accept wait-queue --host db1 --timeout 5m`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.eachHost(cmd.Context(), acceptance.StepWaitQueue, func(ctx context.Context, host remote.Host) error {
				return a.suite.Queue.WaitForEmpty(ctx, host, timeout)
			})
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (0 waits indefinitely)")

	return cmd
}
