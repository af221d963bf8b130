package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/motion_recorder/internal/config"
	"github.com/relabs-tech/motion_recorder/internal/live"
	"github.com/relabs-tech/motion_recorder/internal/record"
	"github.com/relabs-tech/motion_recorder/internal/recorder"
	"github.com/relabs-tech/motion_recorder/internal/sink"
	"github.com/relabs-tech/motion_recorder/internal/source"
)

// RecorderOptions are the command line switches of the recorder binary.
type RecorderOptions struct {
	// GPSSerial reads NMEA straight from GPS_SERIAL_PORT instead of
	// subscribing to TOPIC_POSITION.
	GPSSerial bool
	// AutoStart begins a session as soon as the recorder is up.
	AutoStart bool
	// Duration stops the session and exits after this long. Zero waits for
	// SIGINT/SIGTERM. A non-zero Duration implies AutoStart.
	Duration time.Duration
}

// RunRecorder wires the MQTT sources into a recording session and exposes
// it over HTTP, websocket and the MQTT control topic until interrupted.
func RunRecorder(ro RecorderOptions) error {
	cfg := config.Get()

	policy, err := recorder.ParsePolicy(cfg.ValidityPolicy)
	if err != nil {
		return err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDRecorder)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect: %w", token.Error())
	}
	defer client.Disconnect(250)
	log.Printf("recorder: connected to MQTT broker at %s", cfg.MQTTBroker)

	var positionSrc source.PositionSource = source.NewMQTTPosition(client, cfg.TopicPosition)
	if ro.GPSSerial {
		positionSrc = source.NewNMEA(cfg.GPSSerialPort, cfg.GPSBaudRate)
		log.Printf("recorder: reading GPS directly from %s at %d baud", cfg.GPSSerialPort, cfg.GPSBaudRate)
	}

	hub := live.NewHub()
	sess := recorder.NewSession(source.NewMQTTMotion(client, cfg.TopicMotion), positionSrc, recorder.Options{
		Interval: time.Duration(cfg.SampleInterval) * time.Millisecond,
		Policy:   policy,
		Sink:     sink.NewFile(cfg.ExportDir),
		OnRecord: readoutPublisher(client, cfg.TopicRecord, hub),
	})

	token := client.Subscribe(cfg.TopicControl, 0, func(_ mqtt.Client, msg mqtt.Message) {
		// Stop unsubscribes and waits on the client, which must not happen
		// on the message router goroutine.
		cmd := string(msg.Payload())
		go func() {
			if err := handleControl(sess, cmd); err != nil {
				log.Printf("recorder: control: %v", err)
			}
		}()
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", cfg.TopicControl, token.Error())
	}
	log.Printf("recorder: listening for start/stop on %s", cfg.TopicControl)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler: newRecorderMux(sess, hub),
	}
	go func() {
		log.Printf("recorder: web server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("recorder: web server error: %v", err)
		}
	}()

	if ro.AutoStart || ro.Duration > 0 {
		sess.Start()
	}

	var deadline <-chan time.Time
	if ro.Duration > 0 {
		deadline = time.After(ro.Duration)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Println("recorder: shutting down")
	case <-deadline:
		log.Printf("recorder: duration %s elapsed", ro.Duration)
	}

	sess.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// handleControl applies a start/stop command.
func handleControl(sess *recorder.Session, cmd string) error {
	switch strings.ToLower(strings.TrimSpace(cmd)) {
	case "start":
		sess.Start()
	case "stop":
		sess.Stop()
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

// readoutPublisher returns the per-record callback that pushes the formatted
// readout to MQTT and to websocket clients.
func readoutPublisher(client mqtt.Client, topic string, hub *live.Hub) func(record.Record) {
	return func(r record.Record) {
		payload, err := json.Marshal(r.Readout())
		if err != nil {
			log.Printf("recorder: readout marshal error: %v", err)
			return
		}

		hub.Broadcast(payload)

		// Not waited on: this runs on the sampler goroutine.
		client.Publish(topic, 0, true, payload)
	}
}

func newRecorderMux(sess *recorder.Session, hub *live.Hub) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/session/start", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sess.Start()
		writeJSON(w, sess.Status())
	})

	mux.HandleFunc("/api/session/stop", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sess.Stop()
		writeJSON(w, sess.Status())
	})

	mux.HandleFunc("/api/session", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sess.Status())
	})

	// Latest record, raw and formatted.
	mux.HandleFunc("/api/record/latest", func(w http.ResponseWriter, r *http.Request) {
		rec, ok := sess.Latest()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, struct {
			Record  record.Record  `json:"record"`
			Readout record.Readout `json:"readout"`
		}{rec, rec.Readout()})
	})

	mux.Handle("/ws/live", hub)

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}
