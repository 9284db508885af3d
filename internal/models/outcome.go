package models

import "time"

// Outcome is the result of one channel send. The final outcome of a
// completed job is stored as the job's return value.
type Outcome struct {
	Success   bool      `json:"success"`
	MessageID string    `json:"messageId,omitempty"`
	Error     string    `json:"error,omitempty"`
	Channel   Channel   `json:"channel,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Delivered builds a successful outcome.
func Delivered(channel Channel, messageID string) *Outcome {
	return &Outcome{
		Success:   true,
		MessageID: messageID,
		Channel:   channel,
		Timestamp: time.Now().UTC(),
	}
}

// Rejected builds a permanent failure outcome. The error text is kept verbatim.
func Rejected(channel Channel, err error) *Outcome {
	o := &Outcome{
		Success:   false,
		Channel:   channel,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		o.Error = err.Error()
	}
	return o
}

// Failure describes a job that reached the failed state.
type Failure struct {
	JobID        string    `json:"jobId"`
	Reason       string    `json:"reason"`
	AttemptsMade int       `json:"attemptsMade"`
	FailedAt     time.Time `json:"failedAt"`
}
