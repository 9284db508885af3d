package queue

import "errors"

var (
	ErrDuplicateJob = errors.New("queue: job id already exists")
	ErrQueueFull    = errors.New("queue: too many pending jobs")
	ErrJobNotFound  = errors.New("queue: job not found")
	ErrLockLost     = errors.New("queue: job lock lost")
	ErrStalled      = errors.New("job stalled more than allowable limit")

	errNoJob = errors.New("queue: no job available")
)

type unrecoverableError struct {
	err error
}

func (e *unrecoverableError) Error() string { return e.err.Error() }

func (e *unrecoverableError) Unwrap() error { return e.err }

// Unrecoverable marks a processing error as terminal: the job fails on
// the current attempt without further retries.
func Unrecoverable(err error) error {
	if err == nil {
		return nil
	}
	return &unrecoverableError{err: err}
}

// IsUnrecoverable reports whether err was marked with Unrecoverable.
func IsUnrecoverable(err error) bool {
	var u *unrecoverableError
	return errors.As(err, &u)
}
