package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	acceptErrors "github.com/openfroyo/acceptance/pkg/errors"
)

func TestExitCodeRange(t *testing.T) {
	probe := ExitCodeRange{Min: 0, Max: 127}

	assert.True(t, probe.Accepts(0))
	assert.True(t, probe.Accepts(7))
	assert.True(t, probe.Accepts(126))
	assert.False(t, probe.Accepts(127))
	assert.False(t, probe.Accepts(-1))
	assert.Equal(t, "[0, 127)", probe.String())
}

func TestExitCodeSet(t *testing.T) {
	apply := ExitCodeSet{2, 0}

	assert.True(t, apply.Accepts(0))
	assert.True(t, apply.Accepts(2))
	assert.False(t, apply.Accepts(1))
	assert.False(t, apply.Accepts(4))
	assert.Equal(t, "{0, 2}", apply.String())
}

func TestCheck(t *testing.T) {
	res := Result{Host: "db1", Command: "curl http://localhost:8080", ExitCode: 127, Stderr: "curl: command not found"}

	err := Check(res, ExitCodeRange{Min: 0, Max: 127})
	require.Error(t, err)
	assert.True(t, acceptErrors.IsExitCodeError(err))
	assert.Contains(t, err.Error(), "exited with code 127")

	res.ExitCode = 0
	assert.NoError(t, Check(res, nil))

	res.ExitCode = 1
	assert.Error(t, Check(res, nil))
}

func TestHostAddr(t *testing.T) {
	assert.Equal(t, "db1", Host{Name: "db1"}.Addr())
	assert.Equal(t, "10.0.0.5", Host{Name: "db1", Address: "10.0.0.5"}.Addr())
	assert.True(t, Host{Roles: []string{"database"}}.HasRole("database"))
	assert.False(t, Host{}.HasRole("master"))
}
