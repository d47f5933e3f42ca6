package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	acceptErrors "github.com/openfroyo/acceptance/pkg/errors"
)

func envFrom(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestResolvePrecedence(t *testing.T) {
	tests := []struct {
		name     string
		explicit *string
		env      map[string]string
		def      *string
		want     *string
	}{
		{
			name:     "explicit wins over env and default",
			explicit: String("explicit"),
			env:      map[string]string{"X_VAR": "env"},
			def:      String("default"),
			want:     String("explicit"),
		},
		{
			name: "env wins over default",
			env:  map[string]string{"X_VAR": "env"},
			def:  String("default"),
			want: String("env"),
		},
		{
			name: "default when nothing else",
			def:  String("default"),
			want: String("default"),
		},
		{
			name: "absent when all sources absent",
			want: nil,
		},
		{
			name:     "empty explicit falls through to env",
			explicit: String(""),
			env:      map[string]string{"X_VAR": "env"},
			want:     String("env"),
		},
		{
			name: "empty env falls through to default",
			env:  map[string]string{"X_VAR": ""},
			def:  String("default"),
			want: String("default"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.explicit, nil, "x", "X_VAR", tt.def, envFrom(tt.env))
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestResolveIgnoresEnvWithoutVarName(t *testing.T) {
	got, err := Resolve(nil, nil, "x", "", String("default"), envFrom(map[string]string{"": "env"}))
	require.NoError(t, err)
	assert.Equal(t, "default", *got)
}

func TestResolveLegalValues(t *testing.T) {
	legal := []string{"a", "b"}

	got, err := Resolve(nil, legal, "x", "X_VAR", String("a"), envFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, "a", *got)

	_, err = Resolve(nil, legal, "x", "X_VAR", String("a"), envFrom(map[string]string{"X_VAR": "c"}))
	require.Error(t, err)
	assert.True(t, acceptErrors.IsInvalidConfigurationError(err))
	assert.Contains(t, err.Error(), "unsupported x 'c'")

	got, err = Resolve(String(" B "), legal, "x", "X_VAR", nil, envFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, "b", *got, "enumerated values are canonicalized")
}

func TestResolveAbsentValue(t *testing.T) {
	_, err := Resolve(nil, []string{"a", "b"}, "x", "X_VAR", nil, envFrom(nil))
	require.Error(t, err)
	assert.True(t, acceptErrors.IsInvalidConfigurationError(err))

	got, err := Resolve(nil, []string{"a", Absent}, "x", "X_VAR", nil, envFrom(nil))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolveFreeFormKeepsCase(t *testing.T) {
	got, err := Resolve(String(" 3.0.1-1.RC1 "), nil, "version", "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "3.0.1-1.RC1", *got)
}
