package app

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/motion_recorder/internal/clock"
	"github.com/relabs-tech/motion_recorder/internal/gps"
	"github.com/relabs-tech/motion_recorder/internal/live"
	"github.com/relabs-tech/motion_recorder/internal/motion"
	"github.com/relabs-tech/motion_recorder/internal/record"
	"github.com/relabs-tech/motion_recorder/internal/recorder"
	"github.com/relabs-tech/motion_recorder/internal/sink"
	"github.com/relabs-tech/motion_recorder/internal/source"
)

type stubMotion struct {
	mu sync.Mutex
	h  source.MotionHandler
}

func (s *stubMotion) Subscribe(h source.MotionHandler) error {
	s.mu.Lock()
	s.h = h
	s.mu.Unlock()
	return nil
}

func (s *stubMotion) Unsubscribe() {
	s.mu.Lock()
	s.h = nil
	s.mu.Unlock()
}

func (s *stubMotion) push(m motion.Sample) {
	s.mu.Lock()
	h := s.h
	s.mu.Unlock()
	if h != nil {
		h(m)
	}
}

type stubPosition struct {
	mu sync.Mutex
	h  source.PositionHandler
}

func (s *stubPosition) Subscribe(h source.PositionHandler, _ source.ErrorHandler) error {
	s.mu.Lock()
	s.h = h
	s.mu.Unlock()
	return nil
}

func (s *stubPosition) Unsubscribe() {
	s.mu.Lock()
	s.h = nil
	s.mu.Unlock()
}

func (s *stubPosition) push(p gps.Position) {
	s.mu.Lock()
	h := s.h
	s.mu.Unlock()
	if h != nil {
		h(p)
	}
}

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type publishedMsg struct {
	topic    string
	retained bool
	payload  []byte
}

// publishClient records Publish calls; everything else is unimplemented.
type publishClient struct {
	mqtt.Client

	mu   sync.Mutex
	msgs []publishedMsg
}

func (c *publishClient) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, publishedMsg{topic: topic, retained: retained, payload: payload.([]byte)})
	return doneToken{}
}

func (c *publishClient) messages() []publishedMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]publishedMsg(nil), c.msgs...)
}

type recorderHarness struct {
	clock    *clock.Fake
	motion   *stubMotion
	position *stubPosition
	sink     *sink.Memory
	session  *recorder.Session
	server   *httptest.Server
}

func newRecorderHarness(t *testing.T) *recorderHarness {
	t.Helper()
	h := &recorderHarness{
		clock:    clock.NewFake(time.Date(2024, 3, 5, 14, 7, 0, 0, time.Local)),
		motion:   &stubMotion{},
		position: &stubPosition{},
		sink:     &sink.Memory{},
	}
	h.session = recorder.NewSession(h.motion, h.position, recorder.Options{
		Interval: time.Second,
		Policy:   recorder.AcceptAll,
		Clock:    h.clock,
		Sink:     h.sink,
	})
	h.server = httptest.NewServer(newRecorderMux(h.session, live.NewHub()))
	t.Cleanup(h.server.Close)
	return h
}

func (h *recorderHarness) do(t *testing.T, method, path string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, h.server.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestRecorderHTTPSessionLifecycle(t *testing.T) {
	h := newRecorderHarness(t)

	resp, body := h.do(t, http.MethodGet, "/api/record/latest")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before any record, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "no data yet") {
		t.Fatalf("unexpected body %q", body)
	}

	resp, body = h.do(t, http.MethodPost, "/api/session/start")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: status %d", resp.StatusCode)
	}
	var st struct {
		ID      string `json:"id"`
		State   string `json:"state"`
		Records int    `json:"records"`
	}
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.State != "recording" || st.ID == "" {
		t.Fatalf("unexpected status after start: %+v", st)
	}

	h.motion.push(motion.Axes(0.5, -0.25, 9.8))
	h.position.push(gps.Position{Latitude: gps.Float(35.5), Longitude: gps.Float(139.25), Speed: gps.Float(3)})
	h.clock.Advance(2 * time.Second)

	resp, body = h.do(t, http.MethodGet, "/api/record/latest")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("latest: status %d", resp.StatusCode)
	}
	var latest struct {
		Record  record.Record  `json:"record"`
		Readout record.Readout `json:"readout"`
	}
	if err := json.Unmarshal(body, &latest); err != nil {
		t.Fatalf("decode latest: %v", err)
	}
	if latest.Record.Latitude != 35.5 || latest.Readout.Speed != "3.00 m/s" {
		t.Fatalf("unexpected latest: %+v", latest)
	}

	resp, body = h.do(t, http.MethodGet, "/api/session")
	if err := json.Unmarshal(body, &st); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("session status: %d %v", resp.StatusCode, err)
	}
	if st.Records != 2 {
		t.Fatalf("expected 2 records, got %d", st.Records)
	}

	resp, body = h.do(t, http.MethodPost, "/api/session/stop")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop: status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.State != "idle" {
		t.Fatalf("expected idle after stop, got %q", st.State)
	}

	artifacts := h.sink.Artifacts()
	if len(artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(artifacts))
	}
	if artifacts[0].Name != "202403051407.csv" || artifacts[1].Name != "202403051407.gpx" {
		t.Fatalf("unexpected artifact names %q %q", artifacts[0].Name, artifacts[1].Name)
	}
}

func TestRecorderHTTPRejectsGETCommands(t *testing.T) {
	h := newRecorderHarness(t)
	for _, path := range []string{"/api/session/start", "/api/session/stop"} {
		resp, _ := h.do(t, http.MethodGet, path)
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Fatalf("GET %s: expected 405, got %d", path, resp.StatusCode)
		}
	}
	if h.session.Status().State != recorder.Idle {
		t.Fatalf("GET must not start a session")
	}
}

func TestHandleControl(t *testing.T) {
	h := newRecorderHarness(t)

	if err := handleControl(h.session, " START\n"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if h.session.Status().State != recorder.Recording {
		t.Fatalf("expected recording")
	}
	if err := handleControl(h.session, "pause"); err == nil {
		t.Fatalf("expected error for unknown command")
	}
	if err := handleControl(h.session, "stop"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if h.session.Status().State != recorder.Idle {
		t.Fatalf("expected idle")
	}
	if len(h.sink.Artifacts()) != 2 {
		t.Fatalf("expected export on stop")
	}
}

func TestReadoutPublisher(t *testing.T) {
	client := &publishClient{}
	hub := live.NewHub()
	ws := hub.Register()

	publish := readoutPublisher(client, "recorder/record", hub)
	publish(record.Record{
		Timestamp: "2024-01-01T09:00:00.000+09:00",
		X:         1.234,
		Latitude:  35.1234567,
		Longitude: 139.1,
		Speed:     2.5,
	})

	msgs := client.messages()
	if len(msgs) != 1 || msgs[0].topic != "recorder/record" || !msgs[0].retained {
		t.Fatalf("unexpected publishes: %+v", msgs)
	}

	var r record.Readout
	if err := json.Unmarshal(msgs[0].payload, &r); err != nil {
		t.Fatalf("decode readout: %v", err)
	}
	if r.X != "1.23" || r.Latitude != "35.123457" || r.Speed != "2.50 m/s" {
		t.Fatalf("unexpected readout %+v", r)
	}

	select {
	case got := <-ws.Send:
		if string(got) != string(msgs[0].payload) {
			t.Fatalf("websocket payload differs from MQTT payload")
		}
	default:
		t.Fatalf("expected websocket broadcast")
	}
}
