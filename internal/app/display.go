package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion_recorder/internal/config"
	"github.com/relabs-tech/motion_recorder/internal/record"
)

const (
	displayWidth  = 128
	displayHeight = 64
	lineHeight    = 13
)

// DisplayData holds the latest readout for display
type DisplayData struct {
	mu      sync.RWMutex
	readout record.Readout
	have    bool
}

func (d *DisplayData) set(r record.Readout) {
	d.mu.Lock()
	d.readout = r
	d.have = true
	d.mu.Unlock()
}

func (d *DisplayData) get() (record.Readout, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.readout, d.have
}

func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Println("display: initialized")

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &DisplayData{}

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicRecord, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r record.Readout
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("display: readout unmarshal error: %v", err)
			return
		}
		data.set(r)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicRecord)

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		r, ok := data.get()
		if err := dev.Draw(dev.Bounds(), renderReadout(r, ok), image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

// readoutLines lays the readout out in rows of at most 18 characters, the
// width of Face7x13 on a 128 pixel panel.
func readoutLines(r record.Readout, have bool) []string {
	if !have {
		return []string{"", "Recorder", "Waiting..."}
	}
	return []string{
		"X:" + r.X + " Y:" + r.Y,
		"Z:" + r.Z,
		"LA:" + r.Latitude,
		"LO:" + r.Longitude,
		"V:" + r.Speed,
	}
}

func renderReadout(r record.Readout, have bool) *image1bit.VerticalLSB {
	return renderLines(readoutLines(r, have))
}

func renderSplash() *image1bit.VerticalLSB {
	return renderLines([]string{"", "Motion Recorder", "Looking for sats"})
}

func renderLines(lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	for i, line := range lines {
		drawer.Dot = fixed.P(0, lineHeight*(i+1)-2)
		drawer.DrawString(line)
	}
	return img
}
