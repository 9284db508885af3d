package queue

import (
	"fmt"
	"strconv"
	"time"
)

// State is the lifecycle state of a job.
type State string

const (
	StateWaiting   State = "waiting"
	StateDelayed   State = "delayed"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateUnknown   State = "unknown"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Job is a snapshot of a job hash.
type Job struct {
	ID           string
	Name         string
	Data         []byte
	Priority     int
	Attempts     int // maximum attempts
	AttemptsMade int
	Backoff      Backoff
	State        State
	Timestamp    time.Time
	ProcessedOn  time.Time
	FinishedOn   time.Time
	ReturnValue  []byte
	FailedReason string

	token string
}

// JobOptions are the per-job settings given at enqueue time.
type JobOptions struct {
	// JobID pins the job identity. Adding a second job with the same id fails.
	JobID string
	// Priority orders waiting jobs, lower runs first. Zero is the highest priority.
	Priority int
	Attempts int
	Backoff  Backoff
	Delay    time.Duration
}

// MaxPriority bounds priorities so the wait score keeps integer precision.
const MaxPriority = 1 << 21

func parseJob(fields map[string]string) (*Job, error) {
	id, ok := fields["id"]
	if !ok || id == "" {
		return nil, fmt.Errorf("job hash has no id")
	}

	j := &Job{
		ID:           id,
		Name:         fields["name"],
		Data:         []byte(fields["data"]),
		Priority:     atoi(fields["priority"]),
		Attempts:     atoi(fields["attempts"]),
		AttemptsMade: atoi(fields["attemptsMade"]),
		Backoff: Backoff{
			Type:  BackoffType(fields["backoffType"]),
			Delay: time.Duration(atoi64(fields["backoffDelay"])) * time.Millisecond,
		},
		State:        State(fields["state"]),
		Timestamp:    fromMillis(fields["timestamp"]),
		ProcessedOn:  fromMillis(fields["processedOn"]),
		FinishedOn:   fromMillis(fields["finishedOn"]),
		FailedReason: fields["failedReason"],
		token:        fields["lockToken"],
	}
	if rv, ok := fields["returnvalue"]; ok {
		j.ReturnValue = []byte(rv)
	}
	if j.State == "" {
		j.State = StateUnknown
	}
	return j, nil
}

// pairsToMap converts a flat HGETALL reply into a map.
func pairsToMap(reply []interface{}) map[string]string {
	out := make(map[string]string, len(reply)/2)
	for i := 0; i+1 < len(reply); i += 2 {
		k, _ := reply[i].(string)
		v, _ := reply[i+1].(string)
		out[k] = v
	}
	return out
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atoi64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func fromMillis(s string) time.Time {
	ms := atoi64(s)
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
