// Package progress synthesizes client-side progress for long-running remote
// calls whose true completion is only known at the end. The backend reports
// no progress of its own, so the estimate is fabricated: an asymptotic decay
// when total duration is unknown, or a linear ramp against a computed
// deadline when it can be derived from input size.
package progress

import (
	"sync"
	"time"
)

type Mode int

const (
	ModeDecay Mode = iota
	ModeDeadline
)

// PublishFunc receives the clamped progress value and, in deadline mode, the
// estimated time remaining. It is invoked from the tick goroutine and from
// Complete/Cancel with the estimator's lock held, so values arrive in commit
// order and nothing is published after the final snap. Callbacks must not
// call back into the estimator.
type PublishFunc func(value float64, remaining time.Duration)

type Estimator struct {
	mu sync.Mutex

	mode     Mode
	value    float64
	cap      float64
	factor   float64
	interval time.Duration
	total    time.Duration
	started  time.Time

	publish PublishFunc
	stopped bool
	done    chan struct{}
}

// NewDecay builds an estimator that asymptotically approaches cap without
// reaching it: value += (cap - value) * factor on every tick.
func NewDecay(cap, factor float64, interval time.Duration, publish PublishFunc) *Estimator {
	return &Estimator{
		mode:     ModeDecay,
		cap:      cap,
		factor:   factor,
		interval: interval,
		publish:  publish,
		done:     make(chan struct{}),
	}
}

// NewDeadline builds an estimator that ramps linearly toward cap over the
// estimated total duration.
func NewDeadline(total time.Duration, cap float64, interval time.Duration, publish PublishFunc) *Estimator {
	return &Estimator{
		mode:     ModeDeadline,
		cap:      cap,
		total:    total,
		interval: interval,
		publish:  publish,
		done:     make(chan struct{}),
	}
}

// Start begins ticking in a background goroutine. The goroutine exits when
// Complete or Cancel is called.
func (e *Estimator) Start() {
	e.mu.Lock()
	e.started = time.Now()
	e.mu.Unlock()

	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-e.done:
				return
			case <-ticker.C:
				e.tick()
			}
		}
	}()
}

func (e *Estimator) tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	switch e.mode {
	case ModeDecay:
		e.value = decayStep(e.value, e.cap, e.factor)
	case ModeDeadline:
		e.value = deadlineValue(time.Since(e.started), e.total, e.cap)
	}
	if e.publish != nil {
		e.publish(e.value, e.remainingLocked())
	}
}

// Value returns the current synthetic percentage.
func (e *Estimator) Value() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// Remaining returns the estimated time left. Zero in decay mode.
func (e *Estimator) Remaining() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remainingLocked()
}

func (e *Estimator) remainingLocked() time.Duration {
	if e.mode != ModeDeadline || e.stopped {
		return 0
	}
	left := e.total - time.Since(e.started)
	if left < 0 {
		return 0
	}
	return left
}

// Complete snaps the value to exactly 100 and stops ticking. Idempotent.
func (e *Estimator) Complete() {
	e.finish(100)
}

// Cancel clears the value back to 0 and stops ticking, so a failed operation
// never leaves a bar stuck mid-way. Idempotent.
func (e *Estimator) Cancel() {
	e.finish(0)
}

// finish publishes while still holding the lock: an in-flight tick either
// completes its own publish first or observes stopped and stays silent, so
// the final value is always the last one delivered.
func (e *Estimator) finish(value float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.stopped = true
	e.value = value
	close(e.done)
	if e.publish != nil {
		e.publish(value, 0)
	}
}

func decayStep(value, cap, factor float64) float64 {
	next := value + (cap-value)*factor
	if next > cap {
		return cap
	}
	if next < 0 {
		return 0
	}
	return next
}

func deadlineValue(elapsed, total time.Duration, cap float64) float64 {
	if total <= 0 {
		return cap
	}
	pct := float64(elapsed) / float64(total) * 100
	if pct > cap {
		return cap
	}
	if pct < 0 {
		return 0
	}
	return pct
}
