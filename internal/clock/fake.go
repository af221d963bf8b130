package clock

import (
	"sync"
	"time"
)

// Fake is a manually advanced clock. Scheduled callbacks run synchronously
// inside Advance, in due-time order.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	next      time.Time
	interval  time.Duration
	fn        func(time.Time)
	cancelled bool
}

// NewFake returns a fake clock reading start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Every(interval time.Duration, fn func(time.Time)) Cancel {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTimer{next: f.now.Add(interval), interval: interval, fn: fn}
	f.timers = append(f.timers, t)

	return func() {
		f.mu.Lock()
		t.cancelled = true
		f.mu.Unlock()
	}
}

// Advance moves the clock forward by d, firing every callback that falls due.
// Callbacks may schedule or cancel timers.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		t := f.nextDue(target)
		if t == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		f.now = t.next
		at := t.next
		t.next = t.next.Add(t.interval)
		f.mu.Unlock()

		t.fn(at)
	}
}

// Active returns the number of schedules that have not been cancelled.
func (f *Fake) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, t := range f.timers {
		if !t.cancelled {
			n++
		}
	}
	return n
}

func (f *Fake) nextDue(target time.Time) *fakeTimer {
	var due *fakeTimer
	live := f.timers[:0]
	for _, t := range f.timers {
		if t.cancelled {
			continue
		}
		live = append(live, t)
		if t.next.After(target) {
			continue
		}
		if due == nil || t.next.Before(due.next) {
			due = t
		}
	}
	f.timers = live
	return due
}
