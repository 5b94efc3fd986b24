package runner

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotRunning is returned by Stop and DropDatabase on a runner that was
// never started or has already been stopped.
var ErrNotRunning = errors.New("runner: not running")

// ErrTimeout matches every *TimeoutError through errors.Is.
var ErrTimeout = errors.New("runner: timeout")

// TimeoutError reports that a lifecycle step did not finish within its bound.
// Err is the collaborator's own error when it returned one in time to be seen.
type TimeoutError struct {
	Op    string
	After time.Duration
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s", e.After)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

func (e *TimeoutError) Unwrap() error { return e.Err }

// OpError names the lifecycle step that failed: connect, construct, mount,
// bind, close, shutdown, disconnect, drop or purge.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return "runner: " + e.Op + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}
