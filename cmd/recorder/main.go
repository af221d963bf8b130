// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/recorder/main.go
//
// Merges the accelerometer and GPS feeds into a once-per-interval record log
// and writes <YYYYMMDDHHmm>.csv and .gpx into EXPORT_DIR when the session
// stops.
//
// Run:
//
//	go run ./cmd/recorder -start
//	go run ./cmd/recorder -duration 10m -gps-serial
//
// Sessions can also be started and stopped with POST /api/session/start and
// /api/session/stop, or by publishing "start"/"stop" to TOPIC_CONTROL.
package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/motion_recorder/internal/app"
	"github.com/relabs-tech/motion_recorder/internal/config"
)

func main() {
	configPath := flag.String("config", "./recorder_config.txt", "path to configuration file")
	start := flag.Bool("start", false, "start recording immediately")
	duration := flag.Duration("duration", 0, "stop and export after this long (implies -start)")
	gpsSerial := flag.Bool("gps-serial", false, "read NMEA from GPS_SERIAL_PORT instead of MQTT")
	flag.Parse()

	log.Println("starting motion-recorder (motion + GPS → CSV/GPX)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	err := app.RunRecorder(app.RecorderOptions{
		GPSSerial: *gpsSerial,
		AutoStart: *start,
		Duration:  *duration,
	})
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
