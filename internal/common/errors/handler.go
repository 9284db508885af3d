package errors

// ErrorHandler logs job errors with standardized fields.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// JobAttemptFailed logs a failed attempt that the queue will retry.
// extra is merged into the entry, e.g. recipient.
func (h *ErrorHandler) JobAttemptFailed(jobID string, attempt, maxAttempts int, err error, extra map[string]interface{}) {
	stdErr := AsStandard(err)
	h.logger.Warn("Job attempt failed", h.fields(jobID, stdErr, extra, map[string]interface{}{
		"attempt":     attempt,
		"maxAttempts": maxAttempts,
	}))
}

// JobFailed logs a job that reached its terminal failed state.
func (h *ErrorHandler) JobFailed(jobID string, attemptsMade int, err error, extra map[string]interface{}) {
	stdErr := AsStandard(err)
	h.logger.Error("Job failed", h.fields(jobID, stdErr, extra, map[string]interface{}{
		"attemptsMade": attemptsMade,
	}))
}

func (h *ErrorHandler) fields(jobID string, stdErr *StandardError, extras ...map[string]interface{}) map[string]interface{} {
	fields := map[string]interface{}{
		"jobId":         jobID,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	for k, v := range stdErr.Metadata {
		fields[k] = v
	}
	for _, extra := range extras {
		for k, v := range extra {
			fields[k] = v
		}
	}
	return fields
}
