package execution

import (
	"context"
	"time"
)

// sleep suspends the run for d, rechecking the stop flag every poll interval.
func (r *Run) sleep(d time.Duration) error {
	if d <= 0 {
		return r.checkpoint()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	ticker := time.NewTicker(r.limits.PollInterval)
	defer ticker.Stop()

	for {
		if err := r.checkpoint(); err != nil {
			return err
		}
		select {
		case <-timer.C:
			return nil
		case <-ticker.C:
		case <-r.ctx.Done():
			return r.ctx.Err()
		}
	}
}

// pollUntil evaluates cond every interval until it holds or timeout elapses.
// A zero timeout waits indefinitely. The stop flag is rechecked at least every
// poll interval regardless of how long interval is.
func (r *Run) pollUntil(interval, timeout time.Duration, cond func() bool) (bool, error) {
	if interval <= 0 {
		interval = r.limits.PollInterval
	}
	if err := r.checkpoint(); err != nil {
		return false, err
	}
	if cond() {
		return true, nil
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}
	ticker := time.NewTicker(min(interval, r.limits.PollInterval))
	defer ticker.Stop()
	next := time.Now().Add(interval)

	for {
		select {
		case <-r.ctx.Done():
			return false, r.ctx.Err()
		case <-deadline:
			if err := r.checkpoint(); err != nil {
				return false, err
			}
			return cond(), nil
		case now := <-ticker.C:
			if err := r.checkpoint(); err != nil {
				return false, err
			}
			if now.Before(next) {
				continue
			}
			if cond() {
				return true, nil
			}
			next = now.Add(interval)
		}
	}
}

// awaitSignal waits for Continue on nodeID.
func (r *Run) awaitSignal(nodeID string) error {
	ch := r.signal(nodeID)
	ticker := time.NewTicker(r.limits.PollInterval)
	defer ticker.Stop()

	for {
		if err := r.checkpoint(); err != nil {
			return err
		}
		select {
		case <-ch:
			return nil
		case <-ticker.C:
		case <-r.ctx.Done():
			return r.ctx.Err()
		}
	}
}

// dispatch runs fn on its own goroutine and waits for it while polling the
// stop flag. A stop cancels fn's context and returns ErrStopped without
// waiting for fn to notice.
func (r *Run) dispatch(fn func(ctx context.Context) error) error {
	if err := r.checkpoint(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(r.ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	ticker := time.NewTicker(r.limits.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			return err
		case <-ticker.C:
			if r.state.Stopped() {
				return ErrStopped
			}
		case <-r.ctx.Done():
			return r.ctx.Err()
		}
	}
}
