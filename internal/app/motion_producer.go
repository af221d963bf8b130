// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/motion_recorder/internal/config"
	"github.com/relabs-tech/motion_recorder/internal/motion"
	"github.com/relabs-tech/motion_recorder/internal/sensors"
)

// RunMotionProducer samples the accelerometer (or the mock source) every
// MOTION_SAMPLE_INTERVAL and publishes motion.Sample JSON to TOPIC_MOTION.
func RunMotionProducer() error {
	log.Println("starting motion producer")

	cfg := config.Get()

	// --- Choose motion source (mock vs real IMU) ---
	var src motion.Source
	switch cfg.MotionSource {
	case "imu":
		imuSrc, err := sensors.NewAccelSource(cfg.IMUSPIDevice, cfg.IMUCSPin, cfg.IMUAccelRange)
		if err != nil {
			return fmt.Errorf("motion producer: %w", err)
		}
		log.Printf("motion producer: using MPU9250 on %s (CS %s)", cfg.IMUSPIDevice, cfg.IMUCSPin)
		src = imuSrc
	default:
		log.Println("motion producer: using mock motion source")
		src = motion.NewMockSource()
	}

	// --- connect to MQTT ---
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDMotion)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect: %w", token.Error())
	}
	defer client.Disconnect(250)

	log.Println("motion producer: connected to MQTT, starting publish loop")

	ticker := time.NewTicker(time.Duration(cfg.MotionSampleInterval) * time.Millisecond)
	defer ticker.Stop()

	var published uint64
	for t := range ticker.C {
		payload, err := nextMotionPayload(src)
		if err != nil {
			log.Printf("motion producer: %v", err)
			continue
		}

		if token := client.Publish(cfg.TopicMotion, 0, false, payload); token.Wait() && token.Error() != nil {
			log.Printf("MQTT publish error (motion): %v", token.Error())
			continue
		}

		published++
		if published%100 == 0 {
			log.Printf("%s motion producer: %d samples published, last %s", t.Format(time.RFC3339), published, payload)
		}
	}
	return nil
}

// nextMotionPayload reads one sample and encodes it for the wire.
func nextMotionPayload(src motion.Source) ([]byte, error) {
	s, err := src.Next()
	if err != nil {
		return nil, fmt.Errorf("read motion source: %w", err)
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("json marshal error (motion): %w", err)
	}
	return payload, nil
}
