package manifest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	acceptErrors "github.com/openfroyo/acceptance/pkg/errors"
	"github.com/openfroyo/acceptance/pkg/remote"
	"github.com/openfroyo/acceptance/pkg/remote/remotetest"
)

var master = remote.Host{Name: "master"}

type applyRecorder struct {
	outcomes []string
}

func (r *applyRecorder) RecordApply(host string, outcome string) {
	r.outcomes = append(r.outcomes, host+":"+outcome)
}

func TestRender(t *testing.T) {
	out, err := Render("db", `class { 'puppetdb': database => {{ .Database | squote }} }`, map[string]string{"Database": "embedded"})
	require.NoError(t, err)
	assert.Equal(t, `class { 'puppetdb': database => 'embedded' }`, out)
}

func TestRenderMissingKey(t *testing.T) {
	_, err := Render("db", `{{ .Database }}`, map[string]string{})
	require.Error(t, err)
}

func TestApplyOutcomes(t *testing.T) {
	tests := []struct {
		code int
		want Outcome
	}{
		{code: 0, want: NoChanges},
		{code: 2, want: Changed},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			runner := remotetest.NewRunner().On("puppet apply", remotetest.Exit(tt.code))
			rec := &applyRecorder{}
			a := NewApplier(runner, WithRecorder(rec))

			got, err := a.Apply(context.Background(), master, "termini", "include puppetdb")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, []string{"master:" + tt.want.String()}, rec.outcomes)
		})
	}
}

func TestApplyShipsManifestBeforeApplying(t *testing.T) {
	runner := remotetest.NewRunner()
	a := NewApplier(runner)

	_, err := a.Apply(context.Background(), master, "postgres", "include postgresql")
	require.NoError(t, err)

	files := runner.Files("master")
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(files[0], "/tmp/postgres-"))
	assert.True(t, strings.HasSuffix(files[0], ".pp"))

	content, ok := runner.File("master", files[0])
	require.True(t, ok)
	assert.Equal(t, "include postgresql", content)

	assert.Equal(t, []string{"puppet apply --detailed-exitcodes " + files[0]}, runner.Commands("master"))
}

func TestApplyUsesFreshPaths(t *testing.T) {
	runner := remotetest.NewRunner()
	a := NewApplier(runner, WithTmpDir("/var/tmp"))

	for i := 0; i < 3; i++ {
		_, err := a.Apply(context.Background(), master, "m", "notice('x')")
		require.NoError(t, err)
	}

	files := runner.Files("master")
	assert.Len(t, files, 3)
	for _, f := range files {
		assert.True(t, strings.HasPrefix(f, "/var/tmp/m-"))
	}
}

func TestApplyFailure(t *testing.T) {
	for _, code := range []int{1, 4, 6} {
		runner := remotetest.NewRunner().On("puppet apply", remotetest.Response{ExitCode: code, Stderr: "Error: Could not find class\n"})
		a := NewApplier(runner)

		_, err := a.Apply(context.Background(), master, "broken", "class { 'nope': }")
		require.Error(t, err)

		var failure *acceptErrors.ManifestApplyFailureError
		require.True(t, errors.As(err, &failure))
		assert.Equal(t, code, failure.ExitCode)
		assert.Equal(t, "master", failure.Host)
		assert.Equal(t, "Error: Could not find class", failure.Stderr)
		assert.Equal(t, 1, runner.Count("puppet apply"), "applies are never retried")
	}
}

func TestApplyWriteFailure(t *testing.T) {
	runner := remotetest.NewRunner()
	a := NewApplier(runner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Apply(ctx, master, "m", "x")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, runner.Calls())
}

func TestApplyTemplate(t *testing.T) {
	runner := remotetest.NewRunner()
	a := NewApplier(runner, WithPuppet("/opt/puppet/bin/puppet"))

	_, err := a.ApplyTemplate(context.Background(), master, "termini",
		`class { 'puppetdb::master::config': puppetdb_server => '{{ .Server }}' }`,
		map[string]string{"Server": "db1"})
	require.NoError(t, err)

	files := runner.Files("master")
	require.Len(t, files, 1)
	content, _ := runner.File("master", files[0])
	assert.Equal(t, `class { 'puppetdb::master::config': puppetdb_server => 'db1' }`, content)
	assert.Equal(t, 1, runner.Count("/opt/puppet/bin/puppet apply --detailed-exitcodes"))
}
