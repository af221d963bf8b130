package recorder

import (
	"bytes"
	"encoding/csv"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/motion_recorder/internal/clock"
	"github.com/relabs-tech/motion_recorder/internal/gps"
	"github.com/relabs-tech/motion_recorder/internal/motion"
	"github.com/relabs-tech/motion_recorder/internal/record"
	"github.com/relabs-tech/motion_recorder/internal/sink"
	"github.com/relabs-tech/motion_recorder/internal/source"
)

type fakeMotion struct {
	mu           sync.Mutex
	h            source.MotionHandler
	subscribed   int
	unsubscribed int
	err          error
}

func (f *fakeMotion) Subscribe(h source.MotionHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed++
	if f.err != nil {
		return f.err
	}
	f.h = h
	return nil
}

func (f *fakeMotion) Unsubscribe() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed++
	f.h = nil
}

func (f *fakeMotion) handler() source.MotionHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.h
}

func (f *fakeMotion) push(x, y, z float64) {
	if h := f.handler(); h != nil {
		h(motion.Axes(x, y, z))
	}
}

type fakePosition struct {
	mu           sync.Mutex
	h            source.PositionHandler
	onErr        source.ErrorHandler
	subscribed   int
	unsubscribed int
}

func (f *fakePosition) Subscribe(h source.PositionHandler, onErr source.ErrorHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed++
	f.h = h
	f.onErr = onErr
	return nil
}

func (f *fakePosition) Unsubscribe() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed++
	f.h = nil
	f.onErr = nil
}

func (f *fakePosition) push(p gps.Position) {
	f.mu.Lock()
	h := f.h
	f.mu.Unlock()
	if h != nil {
		h(p)
	}
}

func (f *fakePosition) fail(err error) {
	f.mu.Lock()
	onErr := f.onErr
	f.mu.Unlock()
	if onErr != nil {
		onErr(err)
	}
}

func fix(lat, lon, speed float64) gps.Position {
	return gps.Position{Latitude: gps.Float(lat), Longitude: gps.Float(lon), Speed: gps.Float(speed)}
}

type harness struct {
	clock    *clock.Fake
	motion   *fakeMotion
	position *fakePosition
	sink     *sink.Memory
	session  *Session
}

func newHarness(t *testing.T, policy Policy, start time.Time) *harness {
	t.Helper()
	h := &harness{
		clock:    clock.NewFake(start),
		motion:   &fakeMotion{},
		position: &fakePosition{},
		sink:     &sink.Memory{},
	}
	h.session = NewSession(h.motion, h.position, Options{
		Interval: time.Second,
		Policy:   policy,
		Clock:    h.clock,
		Sink:     h.sink,
	})
	return h
}

var utcStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestTicksRecordLatestValues(t *testing.T) {
	h := newHarness(t, AcceptAll, utcStart)
	h.session.Start()

	h.clock.Advance(time.Second) // nothing pushed yet
	h.motion.push(0.1, 0.2, 9.8)
	h.motion.push(0.3, 0.4, 9.7) // overwrites
	h.clock.Advance(time.Second)
	h.position.push(fix(35.1, 139.1, 2.5))
	h.clock.Advance(time.Second)
	h.clock.Advance(time.Second) // no new pushes, same values again

	got := h.session.Records()
	want := []record.Record{
		{Timestamp: "2024-01-01T09:00:01.000+09:00"},
		{Timestamp: "2024-01-01T09:00:02.000+09:00", X: 0.3, Y: 0.4, Z: 9.7},
		{Timestamp: "2024-01-01T09:00:03.000+09:00", X: 0.3, Y: 0.4, Z: 9.7, Latitude: 35.1, Longitude: 139.1, Speed: 2.5},
		{Timestamp: "2024-01-01T09:00:04.000+09:00", X: 0.3, Y: 0.4, Z: 9.7, Latitude: 35.1, Longitude: 139.1, Speed: 2.5},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("record %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRejectNoFixSkipsPlaceholderPositions(t *testing.T) {
	h := newHarness(t, RejectNoFix, utcStart)
	h.session.Start()

	h.motion.push(1, 2, 3)
	h.clock.Advance(2 * time.Second) // no position yet: 2 rejected
	h.position.push(fix(0, 0, 0))
	h.clock.Advance(time.Second) // explicit 0,0: rejected
	h.position.push(fix(35.0, 139.0, 0))
	h.clock.Advance(3 * time.Second)

	st := h.session.Status()
	if st.Records != 3 || st.Rejected != 3 {
		t.Fatalf("expected 3 records and 3 rejected, got %+v", st)
	}
	for _, r := range h.session.Records() {
		if r.Latitude != 35.0 || r.X != 1 {
			t.Fatalf("unexpected record %+v", r)
		}
	}
}

// observingMotion reports the session state seen while Start subscribes.
type observingMotion struct {
	fakeMotion
	session *Session
	seen    State
}

func (o *observingMotion) Subscribe(h source.MotionHandler) error {
	o.seen = o.session.Status().State
	return o.fakeMotion.Subscribe(h)
}

func TestStatusIsRecordingWhileStartSubscribes(t *testing.T) {
	m := &observingMotion{}
	m.session = NewSession(m, &fakePosition{}, Options{
		Interval: time.Second,
		Clock:    clock.NewFake(utcStart),
		Sink:     &sink.Memory{},
	})

	m.session.Start()
	if m.seen != Recording {
		t.Fatalf("status during subscribe = %s, want recording", m.seen)
	}
	m.session.Stop()
}

func TestStartIsIdempotent(t *testing.T) {
	h := newHarness(t, AcceptAll, utcStart)
	h.session.Start()
	h.clock.Advance(2 * time.Second)
	h.session.Start()

	if h.motion.subscribed != 1 || h.position.subscribed != 1 {
		t.Fatalf("double subscription: motion=%d position=%d", h.motion.subscribed, h.position.subscribed)
	}
	if n := len(h.session.Records()); n != 2 {
		t.Fatalf("second start must not clear the log, got %d records", n)
	}
	if h.clock.Active() != 1 {
		t.Fatalf("expected a single sampler, got %d", h.clock.Active())
	}
	h.clock.Advance(time.Second)
	if n := len(h.session.Records()); n != 3 {
		t.Fatalf("expected 3 records, got %d", n)
	}
}

func TestStopBeforeStartIsNoop(t *testing.T) {
	h := newHarness(t, AcceptAll, utcStart)
	h.session.Stop()

	if len(h.sink.Artifacts()) != 0 {
		t.Fatalf("no export expected")
	}
	if h.motion.unsubscribed != 0 || h.position.unsubscribed != 0 {
		t.Fatalf("stop before start must not touch sources")
	}
	if h.session.Status().State != Idle {
		t.Fatalf("expected idle")
	}
}

func TestStopExportsOnce(t *testing.T) {
	start := time.Date(2024, 3, 5, 14, 7, 0, 0, time.Local)
	h := newHarness(t, AcceptAll, start)
	h.session.Start()
	h.position.push(fix(35.1, 139.1, 2.5))
	h.clock.Advance(3 * time.Second)

	h.session.Stop()
	h.session.Stop()

	arts := h.sink.Artifacts()
	if len(arts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(arts))
	}
	if arts[0].Name != "202403051407.csv" || arts[1].Name != "202403051407.gpx" {
		t.Fatalf("unexpected names %q %q", arts[0].Name, arts[1].Name)
	}
	rows, err := csv.NewReader(bytes.NewReader(arts[0].Payload)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(rows))
	}
	if bytes.Count(arts[1].Payload, []byte("<trkpt")) != 3 {
		t.Fatalf("expected 3 track points:\n%s", arts[1].Payload)
	}

	if h.motion.unsubscribed != 1 || h.position.unsubscribed != 1 {
		t.Fatalf("expected one unsubscribe per source")
	}
	if h.clock.Active() != 0 {
		t.Fatalf("sampler still scheduled")
	}

	h.clock.Advance(5 * time.Second)
	if n := len(h.session.Records()); n != 3 {
		t.Fatalf("log changed after stop: %d records", n)
	}
}

func TestEmptySessionStillExports(t *testing.T) {
	h := newHarness(t, RejectNoFix, utcStart)
	h.session.Start()
	h.clock.Advance(3 * time.Second)
	h.session.Stop()

	arts := h.sink.Artifacts()
	if len(arts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(arts))
	}
	if string(arts[0].Payload) != "timestamp,x,y,z,latitude,longitude,speed\n" {
		t.Fatalf("unexpected csv %q", arts[0].Payload)
	}
}

func TestRestartResetsLogAndCache(t *testing.T) {
	h := newHarness(t, AcceptAll, utcStart)
	h.session.Start()
	h.motion.push(1, 1, 1)
	h.position.push(fix(35, 139, 1))
	h.clock.Advance(2 * time.Second)
	first := h.session.Status().ID
	h.session.Stop()

	h.session.Start()
	if h.session.Status().ID == first {
		t.Fatalf("expected a new session id")
	}
	if n := len(h.session.Records()); n != 0 {
		t.Fatalf("log not cleared: %d", n)
	}
	h.clock.Advance(time.Second)

	recs := h.session.Records()
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].X != 0 || recs[0].Latitude != 0 {
		t.Fatalf("cache carried over from previous session: %+v", recs[0])
	}
}

func TestStaleCallbacksAreDropped(t *testing.T) {
	h := newHarness(t, AcceptAll, utcStart)
	h.session.Start()
	staleMotion := h.motion.handler()
	h.session.mu.Lock()
	staleGen := h.session.gen
	h.session.mu.Unlock()
	h.session.Stop()

	h.session.Start()
	staleMotion(motion.Axes(7, 7, 7))
	h.session.tick(staleGen)

	if n := len(h.session.Records()); n != 0 {
		t.Fatalf("stale tick appended to the new log")
	}
	h.clock.Advance(time.Second)
	recs := h.session.Records()
	if len(recs) != 1 || recs[0].X != 0 {
		t.Fatalf("stale push reached the new cache: %+v", recs)
	}
}

func TestSourceErrorsDoNotStopRecording(t *testing.T) {
	h := newHarness(t, AcceptAll, utcStart)
	h.motion.err = errors.New("no accelerometer")
	h.session.Start()

	h.position.fail(errors.New("permission denied"))
	h.clock.Advance(2 * time.Second)

	st := h.session.Status()
	if st.State != Recording || st.Records != 2 {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestOnRecordObservesAppendedRecords(t *testing.T) {
	c := clock.NewFake(utcStart)
	m, p := &fakeMotion{}, &fakePosition{}
	var seen []record.Record
	s := NewSession(m, p, Options{
		Interval: 500 * time.Millisecond,
		Clock:    c,
		Sink:     &sink.Memory{},
		OnRecord: func(r record.Record) { seen = append(seen, r) },
	})

	s.Start()
	c.Advance(time.Second) // rejected under the default policy
	p.push(fix(35, 139, 0))
	c.Advance(time.Second)

	if len(seen) != 2 {
		t.Fatalf("expected 2 observed records, got %d", len(seen))
	}
	latest, ok := s.Latest()
	if !ok || latest != seen[1] {
		t.Fatalf("latest %+v does not match last observed %+v", latest, seen[1])
	}
}

func TestPushedValuesAreCopied(t *testing.T) {
	h := newHarness(t, AcceptAll, utcStart)
	h.session.Start()

	lat := 35.0
	h.position.push(gps.Position{Latitude: &lat, Longitude: gps.Float(139)})
	lat = 0
	h.clock.Advance(time.Second)

	if r := h.session.Records()[0]; r.Latitude != 35.0 {
		t.Fatalf("cache aliased the pushed sample: %+v", r)
	}
}

func TestRealClockSession(t *testing.T) {
	m, p := &fakeMotion{}, &fakePosition{}
	mem := &sink.Memory{}
	s := NewSession(m, p, Options{Interval: 5 * time.Millisecond, Policy: AcceptAll, Sink: mem})

	s.Start()
	m.push(0, 0, 9.8)
	deadline := time.Now().Add(time.Second)
	for s.Status().Records < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for records")
		}
		time.Sleep(time.Millisecond)
	}
	s.Stop()

	n := len(s.Records())
	time.Sleep(20 * time.Millisecond)
	if len(s.Records()) != n {
		t.Fatalf("records appended after stop")
	}
	if len(mem.Artifacts()) != 2 {
		t.Fatalf("expected 2 artifacts")
	}
}

func TestParsePolicy(t *testing.T) {
	for _, p := range []Policy{RejectNoFix, AcceptAll} {
		got, err := ParsePolicy(p.String())
		if err != nil || got != p {
			t.Fatalf("ParsePolicy(%q) = %v, %v", p.String(), got, err)
		}
	}
	if _, err := ParsePolicy("sometimes"); err == nil {
		t.Fatalf("expected error")
	}
}
