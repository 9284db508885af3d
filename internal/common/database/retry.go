package database

import (
	"context"
	"fmt"
	"time"
)

// PingFunc reports whether a backend answers.
type PingFunc func(ctx context.Context) error

// WaitFor calls ping until it succeeds, doubling the wait between tries.
// Each try gets its own timeout of at most 3s.
func WaitFor(ctx context.Context, name string, ping PingFunc, maxRetries int, initialDelay time.Duration) error {
	delay := initialDelay
	var err error
	for i := 0; i < maxRetries; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if i == maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("%s unreachable after %d attempts: %w", name, maxRetries, err)
}
