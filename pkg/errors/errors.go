// Package errors defines the failure taxonomy of an acceptance run.
//
// Every failure kind is its own struct type with a NewXxx constructor and an
// IsXxx helper built on errors.As. Nothing in the run recovers from these
// silently: each one either terminates the current scenario or, for
// InvalidConfigurationError, aborts before any remote action.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// InvalidConfigurationError indicates an option resolved to a value outside
// its legal set.
type InvalidConfigurationError struct {
	Description string
	Value       string
	Reason      string
}

func NewInvalidConfigurationError(description, value string) *InvalidConfigurationError {
	return &InvalidConfigurationError{Description: description, Value: value}
}

// NewMissingConfigurationError reports an option that must be set but resolved
// to nothing.
func NewMissingConfigurationError(description string) *InvalidConfigurationError {
	return &InvalidConfigurationError{Description: description, Reason: "no value supplied"}
}

func (e *InvalidConfigurationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s: %s", e.Description, e.Reason)
	}
	return fmt.Sprintf("unsupported %s '%s'", e.Description, e.Value)
}

// IsInvalidConfigurationError checks if the error is an InvalidConfigurationError.
func IsInvalidConfigurationError(err error) bool {
	var e *InvalidConfigurationError
	return errors.As(err, &e)
}

// ServiceStartTimeoutError indicates the application never became reachable.
type ServiceStartTimeoutError struct {
	Host string
	Err  error
}

func NewServiceStartTimeoutError(host string, err error) *ServiceStartTimeoutError {
	return &ServiceStartTimeoutError{Host: host, Err: err}
}

func (e *ServiceStartTimeoutError) Error() string {
	return fmt.Sprintf("unable to start service on %s: %v", e.Host, e.Err)
}

func (e *ServiceStartTimeoutError) Unwrap() error {
	return e.Err
}

// IsServiceStartTimeoutError checks if the error is a ServiceStartTimeoutError.
func IsServiceStartTimeoutError(err error) bool {
	var e *ServiceStartTimeoutError
	return errors.As(err, &e)
}

// ServiceStopTimeoutError indicates the application never stopped refusing
// to answer as expected.
type ServiceStopTimeoutError struct {
	Host string
	Err  error
}

func NewServiceStopTimeoutError(host string, err error) *ServiceStopTimeoutError {
	return &ServiceStopTimeoutError{Host: host, Err: err}
}

func (e *ServiceStopTimeoutError) Error() string {
	return fmt.Sprintf("unable to stop service on %s: %v", e.Host, e.Err)
}

func (e *ServiceStopTimeoutError) Unwrap() error {
	return e.Err
}

// IsServiceStopTimeoutError checks if the error is a ServiceStopTimeoutError.
func IsServiceStopTimeoutError(err error) bool {
	var e *ServiceStopTimeoutError
	return errors.As(err, &e)
}

// QueueDrainTimeoutError indicates the command queue did not empty in time.
type QueueDrainTimeoutError struct {
	Host    string
	Timeout time.Duration
	Err     error
}

func NewQueueDrainTimeoutError(host string, timeout time.Duration, err error) *QueueDrainTimeoutError {
	return &QueueDrainTimeoutError{Host: host, Timeout: timeout, Err: err}
}

func (e *QueueDrainTimeoutError) Error() string {
	return fmt.Sprintf("queue on %s took longer than allowed %s to empty: %v", e.Host, e.Timeout, e.Err)
}

func (e *QueueDrainTimeoutError) Unwrap() error {
	return e.Err
}

// IsQueueDrainTimeoutError checks if the error is a QueueDrainTimeoutError.
func IsQueueDrainTimeoutError(err error) bool {
	var e *QueueDrainTimeoutError
	return errors.As(err, &e)
}

// UnsupportedPlatformError indicates a host whose OS family has no variant.
type UnsupportedPlatformError struct {
	Host   string
	Family string
}

func NewUnsupportedPlatformError(host, family string) *UnsupportedPlatformError {
	return &UnsupportedPlatformError{Host: host, Family: family}
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported OS family '%s' on %s", e.Family, e.Host)
}

// IsUnsupportedPlatformError checks if the error is an UnsupportedPlatformError.
func IsUnsupportedPlatformError(err error) bool {
	var e *UnsupportedPlatformError
	return errors.As(err, &e)
}

// VersionMismatchError indicates the installed package version differs from
// the expected one.
type VersionMismatchError struct {
	Host      string
	Installed string
	Expected  string
}

func NewVersionMismatchError(host, installed, expected string) *VersionMismatchError {
	return &VersionMismatchError{Host: host, Installed: installed, Expected: expected}
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("installed version '%s' on %s did not match expected version '%s'", e.Installed, e.Host, e.Expected)
}

// IsVersionMismatchError checks if the error is a VersionMismatchError.
func IsVersionMismatchError(err error) bool {
	var e *VersionMismatchError
	return errors.As(err, &e)
}

// ManifestApplyFailureError indicates the apply tool exited with a code other
// than 0 (no changes) or 2 (changes applied).
type ManifestApplyFailureError struct {
	Host     string
	Manifest string
	ExitCode int
	Stderr   string
}

func NewManifestApplyFailureError(host, manifest string, exitCode int, stderr string) *ManifestApplyFailureError {
	return &ManifestApplyFailureError{Host: host, Manifest: manifest, ExitCode: exitCode, Stderr: stderr}
}

func (e *ManifestApplyFailureError) Error() string {
	msg := fmt.Sprintf("applying manifest %s on %s failed with exit code %d", e.Manifest, e.Host, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// IsManifestApplyFailureError checks if the error is a ManifestApplyFailureError.
func IsManifestApplyFailureError(err error) bool {
	var e *ManifestApplyFailureError
	return errors.As(err, &e)
}

// ExitCodeError is the transport-level fault raised when a remote command
// exits with a code outside the range the caller declared acceptable.
type ExitCodeError struct {
	Host       string
	Command    string
	ExitCode   int
	Acceptable string
	Stderr     string
}

func NewExitCodeError(host, command string, exitCode int, acceptable string, stderr string) *ExitCodeError {
	return &ExitCodeError{Host: host, Command: command, ExitCode: exitCode, Acceptable: acceptable, Stderr: stderr}
}

func (e *ExitCodeError) Error() string {
	msg := fmt.Sprintf("command %q on %s exited with code %d (acceptable: %s)", e.Command, e.Host, e.ExitCode, e.Acceptable)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// IsExitCodeError checks if the error is an ExitCodeError.
func IsExitCodeError(err error) bool {
	var e *ExitCodeError
	return errors.As(err, &e)
}

// MalformedMetricError indicates telemetry that could not be parsed. It is
// never retried.
type MalformedMetricError struct {
	Metric  string
	Payload string
	Reason  string
}

func NewMalformedMetricError(metric, payload, reason string) *MalformedMetricError {
	return &MalformedMetricError{Metric: metric, Payload: payload, Reason: reason}
}

func (e *MalformedMetricError) Error() string {
	return fmt.Sprintf("malformed %s metric (%s): %q", e.Metric, e.Reason, e.Payload)
}

// IsMalformedMetricError checks if the error is a MalformedMetricError.
func IsMalformedMetricError(err error) bool {
	var e *MalformedMetricError
	return errors.As(err, &e)
}
