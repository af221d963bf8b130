package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/motion_recorder/internal/app"
	"github.com/relabs-tech/motion_recorder/internal/config"
)

func main() {
	configPath := flag.String("config", "./recorder_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting motion-recorder display (MQTT → OLED)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunDisplay(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
