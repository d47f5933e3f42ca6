// Package remote defines the contract between the acceptance core and the
// transport that runs commands on target hosts.
package remote

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	acceptErrors "github.com/openfroyo/acceptance/pkg/errors"
)

// Host is a target machine, identified by name.
type Host struct {
	// Name identifies the host in the inventory and in logs
	Name string `yaml:"name" validate:"required"`

	// Address is the SSH address; defaults to Name
	Address string `yaml:"address,omitempty"`

	// Port is the SSH port (default: 22)
	Port int `yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`

	// User is the SSH user
	User string `yaml:"user,omitempty"`

	// PE marks hosts running the enterprise packaging layout
	PE bool `yaml:"pe,omitempty"`

	// Roles lists what the host does in a scenario (database, master)
	Roles []string `yaml:"roles,omitempty"`

	// OSFamily pins the OS family instead of probing for it
	OSFamily string `yaml:"os_family,omitempty"`
}

// String returns the host name.
func (h Host) String() string {
	return h.Name
}

// Addr returns the address to dial, falling back to the name.
func (h Host) Addr() string {
	if h.Address != "" {
		return h.Address
	}
	return h.Name
}

// HasRole reports whether the host carries the given role.
func (h Host) HasRole(role string) bool {
	for _, r := range h.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ExitCodes is the set of exit codes a caller treats as a non-exceptional
// result.
type ExitCodes interface {
	Accepts(code int) bool
	String() string
}

// ExitCodeRange accepts codes in the half-open interval [Min, Max).
type ExitCodeRange struct {
	Min int
	Max int
}

func (r ExitCodeRange) Accepts(code int) bool {
	return code >= r.Min && code < r.Max
}

func (r ExitCodeRange) String() string {
	return fmt.Sprintf("[%d, %d)", r.Min, r.Max)
}

// ExitCodeSet accepts exactly the listed codes.
type ExitCodeSet []int

func (s ExitCodeSet) Accepts(code int) bool {
	for _, c := range s {
		if c == code {
			return true
		}
	}
	return false
}

func (s ExitCodeSet) String() string {
	sorted := append([]int(nil), s...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, c := range sorted {
		parts[i] = fmt.Sprintf("%d", c)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Success accepts only exit code 0.
var Success = ExitCodeSet{0}

// Result is the outcome of a single remote command.
type Result struct {
	Host     string
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner runs commands on, and ships files to, named hosts.
type Runner interface {
	// Run executes cmd on host. Exit codes outside accept are returned as
	// *errors.ExitCodeError alongside the result; a nil accept means Success.
	Run(ctx context.Context, host Host, cmd string, accept ExitCodes) (Result, error)

	// WriteFile creates or truncates path on host with the given content.
	WriteFile(ctx context.Context, host Host, path string, content []byte) error
}

// Check returns an *errors.ExitCodeError when res falls outside accept.
func Check(res Result, accept ExitCodes) error {
	if accept == nil {
		accept = Success
	}
	if accept.Accepts(res.ExitCode) {
		return nil
	}
	return acceptErrors.NewExitCodeError(res.Host, res.Command, res.ExitCode, accept.String(), res.Stderr)
}
