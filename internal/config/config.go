package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDRecorder string
	MQTTClientIDGPS      string
	MQTTClientIDMotion   string
	MQTTClientIDConsole  string
	MQTTClientIDDisplay  string

	// Topics
	TopicMotion   string
	TopicPosition string
	TopicRecord   string
	TopicControl  string

	// GPS
	GPSSerialPort string
	GPSBaudRate   int

	// Accelerometer
	IMUSPIDevice  string
	IMUCSPin      string
	IMUAccelRange byte   // 0=±2g, 1=±4g, 2=±8g, 3=±16g
	MotionSource  string // "imu" or "mock"

	// Timing
	MotionSampleInterval int // milliseconds
	SampleInterval       int // milliseconds

	// Recording
	ValidityPolicy string // "reject_no_fix" or "accept_all"
	ExportDir      string

	// Web Server
	WebServerPort int

	// Display
	DisplayUpdateInterval int // milliseconds
}

// Package-level singleton, set once by InitGlobal and read through Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config with every optional value filled in.
func Default() *Config {
	return &Config{
		MQTTClientIDRecorder: "motion-recorder",
		MQTTClientIDGPS:      "motion-recorder-gps",
		MQTTClientIDMotion:   "motion-recorder-motion",
		MQTTClientIDConsole:  "motion-recorder-console",
		MQTTClientIDDisplay:  "motion-recorder-display",

		TopicMotion:   "recorder/motion",
		TopicPosition: "recorder/position",
		TopicRecord:   "recorder/record",
		TopicControl:  "recorder/control",

		GPSSerialPort: "/dev/serial0",
		GPSBaudRate:   9600,

		IMUSPIDevice: "/dev/spidev0.0",
		IMUCSPin:     "8",
		MotionSource: "mock",

		MotionSampleInterval: 100,
		SampleInterval:       1000,

		ValidityPolicy: "reject_no_fix",
		ExportDir:      "./exports",

		WebServerPort: 8080,

		DisplayUpdateInterval: 500,
	}
}

// Load reads the configuration file and returns a Config struct. Files ending
// in .yaml or .yml hold a flat mapping of the same keys as the KEY=VALUE form.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		return parseYAML(file)
	default:
		return Parse(file)
	}
}

// Parse reads KEY=VALUE lines. Empty lines and lines starting with # are
// skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseYAML(r io.Reader) (*Config, error) {
	var values map[string]yaml.Node
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse yaml config: %w", err)
	}

	// Sorted so the first error reported is stable.
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cfg := Default()
	for _, key := range keys {
		node := values[key]
		if node.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("config key %s: expected a scalar value", key)
		}
		if err := cfg.setValue(key, node.Value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", node.Line, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_RECORDER":
		c.MQTTClientIDRecorder = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value
	case "MQTT_CLIENT_ID_MOTION":
		c.MQTTClientIDMotion = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_MOTION":
		c.TopicMotion = value
	case "TOPIC_POSITION":
		c.TopicPosition = value
	case "TOPIC_RECORD":
		c.TopicRecord = value
	case "TOPIC_CONTROL":
		c.TopicControl = value

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate

	// Accelerometer
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)
	case "MOTION_SOURCE":
		if value != "imu" && value != "mock" {
			return fmt.Errorf("MOTION_SOURCE must be imu or mock, got %q", value)
		}
		c.MotionSource = value

	// Timing
	case "MOTION_SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MOTION_SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.MotionSampleInterval = interval
	case "SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.SampleInterval = interval

	// Recording
	case "VALIDITY_POLICY":
		if value != "reject_no_fix" && value != "accept_all" {
			return fmt.Errorf("VALIDITY_POLICY must be reject_no_fix or accept_all, got %q", value)
		}
		c.ValidityPolicy = value
	case "EXPORT_DIR":
		c.ExportDir = value

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.SampleInterval <= 0 {
		return fmt.Errorf("SAMPLE_INTERVAL must be positive")
	}
	if c.MotionSampleInterval <= 0 {
		return fmt.Errorf("MOTION_SAMPLE_INTERVAL must be positive")
	}
	if c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive")
	}
	if c.GPSBaudRate <= 0 {
		return fmt.Errorf("GPS_BAUD_RATE must be positive")
	}
	if c.ExportDir == "" {
		return fmt.Errorf("EXPORT_DIR is required")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
