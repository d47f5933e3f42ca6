package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openfroyo/acceptance/pkg/acceptance"
	"github.com/openfroyo/acceptance/pkg/remote"
)

func newStartCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the service and wait until it answers",
		Long: `Start the service on every target host, then poll its HTTP port until
curl connects. Each host gets 60 probes, one second apart.`,
		Example: `  froyo-accept start --host db1 --type package`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.eachHost(cmd.Context(), acceptance.StepStart, func(ctx context.Context, host remote.Host) error {
				return a.suite.Lifecycle.Start(ctx, host)
			})
		},
	}
}

func newStopCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the service and wait until it refuses connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.eachHost(cmd.Context(), acceptance.StepStop, func(ctx context.Context, host remote.Host) error {
				return a.suite.Lifecycle.Stop(ctx, host)
			})
		},
	}
}

func newRestartCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Stop, then start the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.eachHost(cmd.Context(), acceptance.StepRestart, func(ctx context.Context, host remote.Host) error {
				return a.suite.Lifecycle.Restart(ctx, host)
			})
		},
	}
}
