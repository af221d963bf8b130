package app

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/motion_recorder/internal/config"
	"github.com/relabs-tech/motion_recorder/internal/gps"
	"github.com/relabs-tech/motion_recorder/internal/source"
)

// RunGPSProducer opens the GPS serial port, parses NMEA RMC sentences, and
// publishes each fix as gps.Position JSON to TOPIC_POSITION.
func RunGPSProducer() error {
	cfg := config.Get()

	// ---- 1) Connect to MQTT broker ----
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDGPS)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("gps producer: connected to MQTT broker at %s", cfg.MQTTBroker)

	// ---- 2) Open GPS serial port ----
	serialOpts := source.SerialOptions(cfg.GPSSerialPort, cfg.GPSBaudRate)
	port, err := serial.Open(serialOpts)
	if err != nil {
		return fmt.Errorf("open %s: %w", serialOpts.PortName, err)
	}
	defer port.Close()
	log.Printf("gps producer: serial port opened on %s at %d baud", serialOpts.PortName, serialOpts.BaudRate)

	return streamPositions(port, func(pos gps.Position) error {
		payload, err := json.Marshal(pos)
		if err != nil {
			return err
		}
		if token := client.Publish(cfg.TopicPosition, 0, true, payload); token.Wait() && token.Error() != nil {
			return token.Error()
		}
		return nil
	})
}

// streamPositions reads NMEA lines until r fails and hands every RMC fix to
// publish. Void fixes, other sentence types and garbled lines are skipped.
// Publish errors are logged and do not stop the stream.
func streamPositions(r io.Reader, publish func(gps.Position) error) error {
	reader := bufio.NewReader(r)
	noFix := false

	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			pos, ok, perr := gps.ParseSentence(line)
			switch {
			case errors.Is(perr, gps.ErrNoFix):
				if !noFix {
					log.Println("gps producer: receiver reports no fix, waiting")
					noFix = true
				}
			case perr != nil:
				// noisy GPS or partial sentences
			case ok:
				if noFix {
					log.Println("gps producer: fix acquired")
					noFix = false
				}
				if err := publish(pos); err != nil {
					log.Printf("gps producer: publish error: %v", err)
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("gps read: %w", err)
		}
	}
}
