// Package clock abstracts wall-clock time and periodic scheduling so the
// sampler can run on virtual time in tests.
package clock

import (
	"sync"
	"time"
)

// Cancel stops a schedule. It is idempotent and never waits for a callback
// that is already running.
type Cancel func()

// Clock provides the current time and periodic callbacks.
type Clock interface {
	Now() time.Time
	// Every calls fn every interval, the first call one interval after
	// Every returns.
	Every(interval time.Duration, fn func(time.Time)) Cancel
}

// Real is the wall clock, backed by time.Ticker.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) Every(interval time.Duration, fn func(time.Time)) Cancel {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case t := <-ticker.C:
				// A tick that raced with cancel is dropped here.
				select {
				case <-done:
					return
				default:
				}
				fn(t)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}
