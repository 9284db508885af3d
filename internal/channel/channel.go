// Package channel holds what the delivery adapters share: the permanent
// failure marker and the conversion of a send result into an outcome.
package channel

import (
	"errors"

	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/models"
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a transport error that retrying cannot fix, such as an
// invalid recipient or a provider rejection.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Result maps a transport result to the adapter contract: a delivered or
// rejected outcome with a nil error, or a transient error for the queue
// to retry.
func Result(ch models.Channel, messageID string, err error) (*models.Outcome, error) {
	if err == nil {
		return models.Delivered(ch, messageID), nil
	}
	if IsPermanent(err) {
		return models.Rejected(ch, err), nil
	}
	return nil, apperrors.NewTransientDeliveryError(string(ch), err)
}
