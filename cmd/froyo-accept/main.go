// Command froyo-accept drives PuppetDB acceptance scenarios on remote hosts.
//
// The process exit code tells CI why a run failed:
//
//	0  success
//	1  any other failure
//	2  invalid configuration, nothing was done on the hosts
//	3  a service or the command queue did not converge in time
//	4  the installed package version is not the expected one
//	5  a manifest apply failed
//	130 interrupted
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openfroyo/acceptance/cmd/froyo-accept/commands"
	"github.com/openfroyo/acceptance/pkg/converge"
	acceptErrors "github.com/openfroyo/acceptance/pkg/errors"
	"github.com/openfroyo/acceptance/pkg/telemetry"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

const (
	exitOK = iota
	exitFailure
	exitConfiguration
	exitTimeout
	exitVersionMismatch
	exitApplyFailure

	exitInterrupted = 130
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(telemetry.ParseLevel(os.Getenv("LOG_LEVEL")))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Execute(ctx, Version, Commit, BuildDate)
	stop()

	code := exitCode(err)
	if code != exitOK {
		log.Error().Err(err).Int("exit_code", code).Msg("acceptance command failed")
	}
	os.Exit(code)
}

// exitCode maps a command error onto the documented process exit codes.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case acceptErrors.IsInvalidConfigurationError(err):
		return exitConfiguration
	case acceptErrors.IsServiceStartTimeoutError(err),
		acceptErrors.IsServiceStopTimeoutError(err),
		acceptErrors.IsQueueDrainTimeoutError(err),
		converge.IsTimeoutError(err):
		return exitTimeout
	case acceptErrors.IsVersionMismatchError(err):
		return exitVersionMismatch
	case acceptErrors.IsManifestApplyFailureError(err):
		return exitApplyFailure
	default:
		return exitFailure
	}
}
