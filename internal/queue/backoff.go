package queue

import (
	"math"
	"time"
)

type BackoffType string

const (
	BackoffExponential BackoffType = "exponential"
	BackoffFixed       BackoffType = "fixed"
)

// Backoff computes the delay before the next attempt of a failed job.
type Backoff struct {
	Type  BackoffType
	Delay time.Duration
}

// Next returns the delay after attempt number attemptsMade (1-indexed) failed.
// Exponential: Delay * 2^(attemptsMade-1). Fixed: Delay.
func (b Backoff) Next(attemptsMade int) time.Duration {
	if b.Delay <= 0 {
		return 0
	}
	if b.Type == BackoffFixed {
		return b.Delay
	}
	if attemptsMade < 1 {
		attemptsMade = 1
	}
	d := float64(b.Delay) * math.Pow(2, float64(attemptsMade-1))
	if d > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
