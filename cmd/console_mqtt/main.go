package main

import (
	"log"

	"github.com/relabs-tech/motion_recorder/internal/app"
	"github.com/relabs-tech/motion_recorder/internal/config"
)

func main() {
	log.Println("starting motion-recorder console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal("recorder_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsoleMQTT(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
