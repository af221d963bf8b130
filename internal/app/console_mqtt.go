package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/motion_recorder/internal/config"
	"github.com/relabs-tech/motion_recorder/internal/gps"
	"github.com/relabs-tech/motion_recorder/internal/motion"
	"github.com/relabs-tech/motion_recorder/internal/record"
)

func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	subs := []struct {
		topic string
		print func(io.Writer, []byte) error
	}{
		{cfg.TopicMotion, printMotion},
		{cfg.TopicPosition, printPosition},
		{cfg.TopicRecord, printReadout},
	}
	for _, sub := range subs {
		sub := sub
		token := client.Subscribe(sub.topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			if err := sub.print(os.Stdout, msg.Payload()); err != nil {
				log.Printf("console: %s unmarshal error: %v", msg.Topic(), err)
			}
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("console: subscribed to %s", sub.topic)
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

func printMotion(w io.Writer, payload []byte) error {
	var s motion.Sample
	if err := json.Unmarshal(payload, &s); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "[MOT ]  x=%s y=%s z=%s\n", axis(s.X), axis(s.Y), axis(s.Z))
	return err
}

func printPosition(w io.Writer, payload []byte) error {
	var p gps.Position
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if !p.HasFix() {
		_, err := fmt.Fprintln(w, "[GPS ]  no fix")
		return err
	}
	speed := "-"
	if p.Speed != nil {
		speed = fmt.Sprintf("%.2f m/s", *p.Speed)
	}
	_, err := fmt.Fprintf(w, "[GPS ]  lat=%.6f lon=%.6f speed=%s\n", *p.Latitude, *p.Longitude, speed)
	return err
}

func printReadout(w io.Writer, payload []byte) error {
	var r record.Readout
	if err := json.Unmarshal(payload, &r); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "[REC ]  %s  x=%s y=%s z=%s  lat=%s lon=%s  speed=%s\n",
		r.Timestamp, r.X, r.Y, r.Z, r.Latitude, r.Longitude, r.Speed)
	return err
}

func axis(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%6.2f", *v)
}
