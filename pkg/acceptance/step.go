// Package acceptance runs the standard acceptance scenario against a set of
// hosts: install, start, validate the installed version, drain the command
// queue, stop and optionally purge.
package acceptance

import (
	"context"

	"github.com/openfroyo/acceptance/pkg/remote"
	"github.com/openfroyo/acceptance/pkg/telemetry"
)

// Step names used in logs, spans and metrics.
const (
	StepInstall         = "install"
	StepStart           = "start"
	StepValidateVersion = "validate-version"
	StepWaitQueue       = "wait-queue"
	StepStop            = "stop"
	StepPurge           = "purge"
	StepRestart         = "restart"
	StepApply           = "apply"

	StepInstallPostgres = "install-postgres"
	StepInstallTermini  = "install-termini"
	StepPrintIni        = "print-ini"
)

// Step runs fn as a named step on host. The step is logged, traced and
// counted; fn's error is returned unchanged.
func Step(ctx context.Context, tel *telemetry.Telemetry, host remote.Host, name string, fn func(ctx context.Context) error) error {
	ic := tel.StartStep(ctx, name, host.Name)
	ic.Logger.Info("step started")

	err := fn(ic.Ctx)
	ic.End(err)

	if err != nil {
		ic.Logger.WithError(err).Error("step failed")
		return err
	}

	ic.Logger.WithField("duration", ic.Timer.Duration().String()).Info("step finished")
	return nil
}
