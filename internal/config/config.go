package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// Xsens device
	SerialPort string
	BaudRate   int
	MockDevice bool

	// Heading
	HeadingAxes  string // "all" or "yaw"
	HeadingRange string // "none", "360" or "180"

	// Calibration
	CalibrationSamples   int
	CalibrationPollMS    int // milliseconds
	CalibrationTimeoutMS int // milliseconds, 0 waits forever

	LogLevel string

	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDWeb      string
	MQTTClientIDConsole  string
	MQTTClientIDDisplay  string

	// Topics
	TopicHeading string
	TopicSample  string
	TopicCommand string

	PublishInterval int // milliseconds

	// NMEA HDT output, disabled when NMEAOutPort is empty
	NMEAOutPort     string
	NMEAOutBaudRate int

	WebServerPort int

	// Display
	DisplayI2CBus         string
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds
}

// DisplayI2CAddr is the fixed SSD1306 I2C address.
const DisplayI2CAddr = 0x3C

// Default returns a configuration with every optional key set.
func Default() *Config {
	return &Config{
		BaudRate:              115200,
		HeadingAxes:           "all",
		HeadingRange:          "none",
		CalibrationSamples:    100,
		CalibrationPollMS:     10,
		CalibrationTimeoutMS:  10000,
		LogLevel:              "info",
		MQTTClientIDProducer:  "xsens-producer",
		MQTTClientIDWeb:       "xsens-web",
		MQTTClientIDConsole:   "xsens-console",
		MQTTClientIDDisplay:   "xsens-display",
		TopicHeading:          "xsens/heading",
		TopicSample:           "xsens/sample",
		TopicCommand:          "xsens/command",
		PublishInterval:       100,
		NMEAOutBaudRate:       4800,
		WebServerPort:         8080,
		DisplayI2CBus:         "",
		DisplayI2CAddr:        DisplayI2CAddr,
		DisplayUpdateInterval: 500,
	}
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads a KEY=VALUE configuration file on top of Default.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
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

func parseInt(key, value string, min int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < min {
		return 0, fmt.Errorf("%s must be at least %d, got %d", key, min, v)
	}
	return v, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// Xsens device
	case "SERIAL_PORT":
		c.SerialPort = value
	case "BAUD_RATE":
		c.BaudRate, err = parseInt(key, value, 1)
	case "MOCK_DEVICE":
		c.MockDevice, err = strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid MOCK_DEVICE %q: %w", value, err)
		}

	// Heading
	case "HEADING_AXES":
		switch value {
		case "all", "yaw":
		default:
			return fmt.Errorf("HEADING_AXES must be all or yaw, got %q", value)
		}
		c.HeadingAxes = value
	case "HEADING_RANGE":
		switch value {
		case "none", "360", "180":
		default:
			return fmt.Errorf("HEADING_RANGE must be none, 360 or 180, got %q", value)
		}
		c.HeadingRange = value

	// Calibration
	case "CALIBRATION_SAMPLES":
		c.CalibrationSamples, err = parseInt(key, value, 0)
	case "CALIBRATION_POLL_MS":
		c.CalibrationPollMS, err = parseInt(key, value, 1)
	case "CALIBRATION_TIMEOUT_MS":
		c.CalibrationTimeoutMS, err = parseInt(key, value, 0)

	case "LOG_LEVEL":
		c.LogLevel = value

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_HEADING":
		c.TopicHeading = value
	case "TOPIC_SAMPLE":
		c.TopicSample = value
	case "TOPIC_COMMAND":
		c.TopicCommand = value

	case "PUBLISH_INTERVAL":
		c.PublishInterval, err = parseInt(key, value, 1)

	// NMEA output
	case "NMEA_OUT_PORT":
		c.NMEAOutPort = value
	case "NMEA_OUT_BAUD_RATE":
		c.NMEAOutBaudRate, err = parseInt(key, value, 1)

	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value, 1)

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_I2C_ADDR":
		addr, perr := strconv.ParseUint(value, 0, 16)
		if perr != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, perr)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseInt(key, value, 1)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.SerialPort == "" && !c.MockDevice {
		return fmt.Errorf("SERIAL_PORT is required unless MOCK_DEVICE=true")
	}
	if c.DisplayI2CAddr != DisplayI2CAddr {
		return fmt.Errorf("DISPLAY_I2C_ADDR must be 0x%02X, the only address the SSD1306 driver uses, got 0x%02X",
			DisplayI2CAddr, c.DisplayI2CAddr)
	}
	if c.TopicHeading == "" || c.TopicCommand == "" {
		return fmt.Errorf("TOPIC_HEADING and TOPIC_COMMAND are required")
	}
	return nil
}

// InitGlobal initializes the global configuration from file. Only the
// first call loads.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
