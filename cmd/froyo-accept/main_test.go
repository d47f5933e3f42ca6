package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openfroyo/acceptance/pkg/converge"
	acceptErrors "github.com/openfroyo/acceptance/pkg/errors"
)

func TestExitCode(t *testing.T) {
	timeout := &converge.TimeoutError{Loop: "service-start", Attempts: 60}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: exitOK},
		{name: "plain failure", err: errors.New("boom"), want: exitFailure},
		{name: "interrupted", err: fmt.Errorf("start interrupted: %w", context.Canceled), want: exitInterrupted},
		{name: "configuration", err: acceptErrors.NewMissingConfigurationError("expected package version"), want: exitConfiguration},
		{name: "service start timeout", err: acceptErrors.NewServiceStartTimeoutError("db1", timeout), want: exitTimeout},
		{name: "service stop timeout", err: acceptErrors.NewServiceStopTimeoutError("db1", timeout), want: exitTimeout},
		{name: "queue drain timeout", err: acceptErrors.NewQueueDrainTimeoutError("db1", time.Minute, timeout), want: exitTimeout},
		{name: "bare convergence timeout", err: timeout, want: exitTimeout},
		{name: "version mismatch", err: acceptErrors.NewVersionMismatchError("db1", "2.3.8-1", "3.0.1-1"), want: exitVersionMismatch},
		{name: "apply failure", err: acceptErrors.NewManifestApplyFailureError("db1", "/tmp/puppetdb.pp", 4, ""), want: exitApplyFailure},
		{name: "transport fault", err: acceptErrors.NewExitCodeError("db1", "curl", 127, "[0, 127)", ""), want: exitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
