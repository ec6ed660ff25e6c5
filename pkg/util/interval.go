package util

import (
	"sync"
	"time"
)

// IntervalRunner invokes a callback on a fixed period, skipping a firing
// entirely when the previous invocation is still in flight. It's thread-safe
// and stops cleanly.
//
// Example usage:
//
//	runner := NewIntervalRunner(5*time.Second, func() { pollWork() })
//	runner.Start()
//	defer runner.Stop()
type IntervalRunner struct {
	period time.Duration
	fn     func()

	mu      sync.Mutex
	running bool
	ticker  *time.Ticker
	done    chan struct{}
	wg      sync.WaitGroup
	busy    sync.Mutex
}

// NewIntervalRunner creates a runner that fires fn every period once started.
func NewIntervalRunner(period time.Duration, fn func()) *IntervalRunner {
	return &IntervalRunner{
		period: period,
		fn:     fn,
	}
}

// Start launches the runner goroutine and fires one invocation immediately.
// Calling Start on a running runner is a no-op.
func (r *IntervalRunner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return
	}
	r.running = true
	r.ticker = time.NewTicker(r.period)
	r.done = make(chan struct{})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		r.fire()
		for {
			select {
			case <-r.ticker.C:
				r.fire()
			case <-r.done:
				return
			}
		}
	}()
}

// fire runs the callback unless a previous run is still in progress.
func (r *IntervalRunner) fire() {
	if !r.busy.TryLock() {
		return
	}
	defer r.busy.Unlock()
	r.fn()
}

// Stop halts the runner and waits for an in-flight invocation to finish.
// It's safe to call Stop multiple times.
func (r *IntervalRunner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.ticker.Stop()
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()
}
