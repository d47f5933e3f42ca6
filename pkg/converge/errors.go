package converge

import (
	"errors"
	"fmt"
	"time"
)

// TimeoutError reports a loop that exhausted its budget without reaching the
// target condition.
type TimeoutError struct {
	// Loop names the loop that gave up
	Loop string

	// Last is the final observation
	Last any

	// Attempts is the number of observations made
	Attempts int

	// Budget describes the exhausted budget
	Budget string

	// Elapsed is the time spent in the loop
	Elapsed time.Duration

	// Timeout is the wall-clock budget for deadline loops, zero otherwise
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s did not converge after %d attempts in %s (budget: %s, last observation: %v)",
		e.Loop, e.Attempts, e.Elapsed.Round(time.Millisecond), e.Budget, e.Last)
}

// IsTimeoutError checks if the error is a TimeoutError.
func IsTimeoutError(err error) bool {
	var e *TimeoutError
	return errors.As(err, &e)
}
