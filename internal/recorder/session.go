// Package recorder merges the motion and position feeds into a timestamped
// record log at a fixed cadence and exports it when the session stops.
package recorder

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/motion_recorder/internal/clock"
	"github.com/relabs-tech/motion_recorder/internal/export"
	"github.com/relabs-tech/motion_recorder/internal/gps"
	"github.com/relabs-tech/motion_recorder/internal/motion"
	"github.com/relabs-tech/motion_recorder/internal/record"
	"github.com/relabs-tech/motion_recorder/internal/sink"
	"github.com/relabs-tech/motion_recorder/internal/source"
)

// DefaultInterval is the sampling cadence used when Options.Interval is unset.
const DefaultInterval = time.Second

// State is the lifecycle state of a Session.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Options configures a Session. Zero values fall back to DefaultInterval,
// RejectNoFix, the wall clock and the CSV and GPX exporters.
type Options struct {
	Interval  time.Duration
	Policy    Policy
	Clock     clock.Clock
	Sink      sink.Sink
	Exporters []export.Exporter

	// OnRecord is called after every appended record, outside the session
	// lock.
	OnRecord func(record.Record)
}

// Status is a point-in-time summary of a Session.
type Status struct {
	ID        string    `json:"id,omitempty"`
	State     State     `json:"state"`
	Records   int       `json:"records"`
	Rejected  int       `json:"rejected"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// Session is the recording controller. It owns the latest-value cache, the
// sampler and the record log, and moves between Idle and Recording.
//
// Source pushes and sampler ticks may arrive on any goroutine; they are
// serialised by mu. Every Start and Stop bumps gen, and callbacks carrying an
// older generation are dropped, so nothing from a previous session can touch
// the current log.
type Session struct {
	motion   source.MotionSource
	position source.PositionSource
	opts     Options

	// cmdMu serialises Start and Stop. It is never taken by callbacks.
	cmdMu   sync.Mutex
	sampler sampler

	mu        sync.Mutex
	state     State
	gen       uint64
	id        string
	startedAt time.Time
	cache     Cache
	log       record.Log
	rejected  int
}

// NewSession returns an idle session reading from the given sources.
func NewSession(m source.MotionSource, p source.PositionSource, opts Options) *Session {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Exporters == nil {
		opts.Exporters = []export.Exporter{export.CSV, export.GPX}
	}

	return &Session{
		motion:   m,
		position: p,
		opts:     opts,
		sampler:  sampler{clock: opts.Clock, interval: opts.Interval},
	}
}

// Start begins a new recording. It is a no-op while already recording.
func (s *Session) Start() {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	s.mu.Lock()
	if s.state == Recording {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	s.id = uuid.NewString()
	s.startedAt = s.opts.Clock.Now()
	s.log.Reset()
	s.cache.Reset()
	s.rejected = 0
	s.state = Recording
	id := s.id
	s.mu.Unlock()

	if err := s.motion.Subscribe(func(m motion.Sample) { s.onMotion(gen, m) }); err != nil {
		log.Printf("recorder: session %s: motion source: %v", id, err)
	}
	err := s.position.Subscribe(
		func(p gps.Position) { s.onPosition(gen, p) },
		func(err error) { log.Printf("recorder: session %s: position source: %v", id, err) },
	)
	if err != nil {
		log.Printf("recorder: session %s: position source: %v", id, err)
	}

	s.sampler.start(func(time.Time) { s.tick(gen) })

	log.Printf("recorder: session %s started (interval=%s, policy=%s)", id, s.opts.Interval, s.opts.Policy)
}

// Stop ends the recording and emits one CSV and one GPX artifact. It is a
// no-op while idle.
func (s *Session) Stop() {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	s.mu.Lock()
	if s.state == Idle {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.motion.Unsubscribe()
	s.position.Unsubscribe()
	s.sampler.stop()

	s.mu.Lock()
	s.gen++
	s.state = Idle
	id := s.id
	rejected := s.rejected
	records := s.log.Snapshot()
	s.mu.Unlock()

	log.Printf("recorder: session %s stopped (records=%d, rejected=%d)", id, len(records), rejected)
	s.export(id, records)
}

func (s *Session) export(id string, records []record.Record) {
	artifacts, err := export.All(records, s.opts.Clock.Now(), s.opts.Exporters...)
	if err != nil {
		log.Printf("recorder: session %s: export error: %v", id, err)
	}
	if s.opts.Sink == nil {
		log.Printf("recorder: session %s: no sink configured, dropping %d artifacts", id, len(artifacts))
		return
	}
	for _, a := range artifacts {
		if err := s.opts.Sink.Emit(a); err != nil {
			log.Printf("recorder: session %s: emit %s: %v", id, a.Name, err)
		}
	}
}

func (s *Session) onMotion(gen uint64, m motion.Sample) {
	s.mu.Lock()
	if gen == s.gen {
		s.cache.OnMotion(m)
	}
	s.mu.Unlock()
}

func (s *Session) onPosition(gen uint64, p gps.Position) {
	s.mu.Lock()
	if gen == s.gen {
		s.cache.OnPosition(p)
	}
	s.mu.Unlock()
}

func (s *Session) tick(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	r, ok := sample(s.opts.Clock.Now(), &s.cache, s.opts.Policy)
	if !ok {
		s.rejected++
		s.mu.Unlock()
		return
	}
	s.log.Append(r)
	s.mu.Unlock()

	if s.opts.OnRecord != nil {
		s.opts.OnRecord(r)
	}
}

// Status returns the current state and counters.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		ID:        s.id,
		State:     s.state,
		Records:   s.log.Len(),
		Rejected:  s.rejected,
		StartedAt: s.startedAt,
	}
}

// Latest returns the most recent record of the current or last session.
func (s *Session) Latest() (record.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Last()
}

// Records returns a copy of the log.
func (s *Session) Records() []record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Snapshot()
}
