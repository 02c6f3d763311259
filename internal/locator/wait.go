// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package locator

import (
	"context"
	"time"
)

// Readiness is the outcome of WaitForViewer.
type Readiness int

const (
	TimedOut Readiness = iota
	Ready
)

func (r Readiness) String() string {
	if r == Ready {
		return "ready"
	}
	return "timed-out"
}

// WaitForViewer polls f every interval until its viewer reports a loaded
// document or timeout elapses. Reaching the timeout is not an error: the
// result is TimedOut and the caller falls through to its next method.
// Readiness check errors count as "not ready yet". The error is non-nil
// only when ctx ends first.
func WaitForViewer(ctx context.Context, f Frame, timeout, interval time.Duration) (Readiness, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ready, err := f.ViewerReady(ctx); err == nil && ready {
			return Ready, nil
		}

		select {
		case <-ctx.Done():
			return TimedOut, ctx.Err()
		case <-deadline.C:
			return TimedOut, nil
		case <-ticker.C:
		}
	}
}
