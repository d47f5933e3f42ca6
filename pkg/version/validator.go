// Package version checks that the package installed on a host is the one the
// run expects.
package version

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/openfroyo/acceptance/pkg/config"
	acceptErrors "github.com/openfroyo/acceptance/pkg/errors"
	"github.com/openfroyo/acceptance/pkg/platform"
	"github.com/openfroyo/acceptance/pkg/remote"
)

// DefaultPackage is the package whose version is validated.
const DefaultPackage = "puppetdb"

// Validator compares installed and expected package versions.
type Validator struct {
	runner   remote.Runner
	detector *platform.Detector
	cfg      *config.Configuration
	pkg      string
}

// NewValidator creates a validator. Families are resolved through the
// configuration's family cache.
func NewValidator(runner remote.Runner, cfg *config.Configuration, detector *platform.Detector) *Validator {
	if detector == nil {
		detector = platform.NewDetector(runner, cfg.OSFamilies)
	}
	return &Validator{runner: runner, detector: detector, cfg: cfg, pkg: DefaultPackage}
}

// Installed returns the normalized installed version of the package on host.
func (v *Validator) Installed(ctx context.Context, host remote.Host) (string, error) {
	family, err := v.detector.Family(ctx, host)
	if err != nil {
		return "", err
	}

	res, err := v.runner.Run(ctx, host, family.VersionQuery(v.pkg), remote.Success)
	if err != nil {
		return "", fmt.Errorf("failed to query installed %s version on %s: %w", v.pkg, host, err)
	}
	return family.NormalizeVersion(res.Stdout), nil
}

// Validate checks the installed version on host against the configured
// expected version.
func (v *Validator) Validate(ctx context.Context, host remote.Host) error {
	expected := v.cfg.ExpectedPackageVersion
	if expected == "" {
		return acceptErrors.NewMissingConfigurationError("expected package version")
	}
	return v.ValidateAgainst(ctx, host, expected)
}

// ValidateAgainst checks the installed version on host against expected.
func (v *Validator) ValidateAgainst(ctx context.Context, host remote.Host, expected string) error {
	installed, err := v.Installed(ctx, host)
	if err != nil {
		return err
	}

	if installed != expected {
		return acceptErrors.NewVersionMismatchError(host.Name, installed, expected)
	}

	log.Info().
		Str("host", host.Name).
		Str("installed", installed).
		Str("expected", expected).
		Msg("package version validated")
	return nil
}
