package config

import (
	"strings"

	acceptErrors "github.com/openfroyo/acceptance/pkg/errors"
)

// Absent is the absence marker. A legal set containing Absent permits an
// option that resolves to no value at all.
const Absent = ""

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Resolve picks the value for one option.
//
// The explicit value wins over the environment variable envVar, which wins
// over def. Empty values count as absent at every layer. When legal is
// non-nil the canonical form of the result (trimmed and lower-cased) must be
// a member, otherwise an InvalidConfigurationError naming description is
// returned. A nil result means no source supplied a value.
func Resolve(explicit *string, legal []string, description string, envVar string, def *string, env LookupFunc) (*string, error) {
	value := firstPresent(explicit, lookup(env, envVar), def)

	if legal == nil {
		if value != nil {
			v := strings.TrimSpace(*value)
			return &v, nil
		}
		return nil, nil
	}

	if value == nil {
		if contains(legal, Absent) {
			return nil, nil
		}
		return nil, acceptErrors.NewInvalidConfigurationError(description, Absent)
	}

	canonical := Canonical(*value)
	if !contains(legal, canonical) {
		return nil, acceptErrors.NewInvalidConfigurationError(description, *value)
	}
	return &canonical, nil
}

// Canonical returns the symbolic form of an enumerated option value.
func Canonical(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// String returns a pointer to s, for building explicit values and defaults.
func String(s string) *string {
	return &s
}

func lookup(env LookupFunc, key string) *string {
	if env == nil || key == "" {
		return nil
	}
	v, ok := env(key)
	if !ok {
		return nil
	}
	return &v
}

func firstPresent(candidates ...*string) *string {
	for _, c := range candidates {
		if c != nil && strings.TrimSpace(*c) != "" {
			return c
		}
	}
	return nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
