// Package manifest renders configuration-management manifests and applies
// them on remote hosts.
package manifest

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	acceptErrors "github.com/openfroyo/acceptance/pkg/errors"
	"github.com/openfroyo/acceptance/pkg/remote"
)

// Outcome is the result of a successful apply.
type Outcome int

const (
	// NoChanges means the host already matched the manifest
	NoChanges Outcome = iota

	// Changed means resources were modified
	Changed
)

func (o Outcome) String() string {
	switch o {
	case NoChanges:
		return "no_changes"
	case Changed:
		return "changed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// applyCodes are the --detailed-exitcodes results that mean success.
var applyCodes = remote.ExitCodeRange{Min: 0, Max: 1 << 16}

const (
	exitNoChanges = 0
	exitChanged   = 2

	// DefaultTmpDir holds manifests shipped to hosts
	DefaultTmpDir = "/tmp"

	// DefaultPuppet is the apply tool invoked on hosts
	DefaultPuppet = "puppet"
)

// Render executes text as a template with the sprig function map.
func Render(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse manifest template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render manifest template %s: %w", name, err)
	}
	return buf.String(), nil
}

// Recorder receives apply outcomes.
type Recorder interface {
	RecordApply(host string, outcome string)
}

// Applier ships manifests to hosts and applies them.
type Applier struct {
	runner   remote.Runner
	tmpDir   string
	puppet   string
	recorder Recorder
}

// Option configures an Applier.
type Option func(*Applier)

// WithTmpDir overrides the host directory manifests are written to.
func WithTmpDir(dir string) Option {
	return func(a *Applier) { a.tmpDir = dir }
}

// WithPuppet overrides the apply tool path.
func WithPuppet(bin string) Option {
	return func(a *Applier) { a.puppet = bin }
}

// WithRecorder reports apply outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(a *Applier) { a.recorder = r }
}

// NewApplier creates an applier.
func NewApplier(runner remote.Runner, opts ...Option) *Applier {
	a := &Applier{runner: runner, tmpDir: DefaultTmpDir, puppet: DefaultPuppet}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply writes body to a fresh file on host and applies it. Exit code 0 and
// 2 are successes; any other code is a *errors.ManifestApplyFailureError.
// Applies are never retried.
func (a *Applier) Apply(ctx context.Context, host remote.Host, name, body string) (Outcome, error) {
	manifestPath := path.Join(a.tmpDir, fmt.Sprintf("%s-%s.pp", name, uuid.New().String()))

	if err := a.runner.WriteFile(ctx, host, manifestPath, []byte(body)); err != nil {
		return NoChanges, fmt.Errorf("failed to write manifest %s to %s: %w", manifestPath, host, err)
	}

	log.Info().
		Str("host", host.Name).
		Str("manifest", manifestPath).
		Msgf("applying manifest:\n\n%s", body)

	cmd := fmt.Sprintf("%s apply --detailed-exitcodes %s", a.puppet, manifestPath)
	res, err := a.runner.Run(ctx, host, cmd, applyCodes)
	if err != nil {
		return NoChanges, fmt.Errorf("failed to apply manifest %s on %s: %w", manifestPath, host, err)
	}

	var outcome Outcome
	switch res.ExitCode {
	case exitNoChanges:
		outcome = NoChanges
	case exitChanged:
		outcome = Changed
	default:
		a.record(host, "failed")
		return NoChanges, acceptErrors.NewManifestApplyFailureError(host.Name, manifestPath, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	a.record(host, outcome.String())
	log.Info().
		Str("host", host.Name).
		Str("manifest", manifestPath).
		Stringer("outcome", outcome).
		Msg("manifest applied")
	return outcome, nil
}

// ApplyTemplate renders text with data and applies the result.
func (a *Applier) ApplyTemplate(ctx context.Context, host remote.Host, name, text string, data any) (Outcome, error) {
	body, err := Render(name, text, data)
	if err != nil {
		return NoChanges, err
	}
	return a.Apply(ctx, host, name, body)
}

func (a *Applier) record(host remote.Host, outcome string) {
	if a.recorder != nil {
		a.recorder.RecordApply(host.Name, outcome)
	}
}
