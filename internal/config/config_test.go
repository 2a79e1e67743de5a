package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xsens.config")
	test.That(t, os.WriteFile(path, []byte(body), 0o644), test.ShouldBeNil)
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
# device
SERIAL_PORT=/dev/ttyUSB0
BAUD_RATE = 921600
HEADING_AXES=yaw
HEADING_RANGE=180
CALIBRATION_SAMPLES=50
MQTT_BROKER=tcp://localhost:1883
DISPLAY_I2C_ADDR=0x3C
NMEA_OUT_PORT=/dev/ttyUSB1
`)
	cfg, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.SerialPort, test.ShouldEqual, "/dev/ttyUSB0")
	test.That(t, cfg.BaudRate, test.ShouldEqual, 921600)
	test.That(t, cfg.HeadingAxes, test.ShouldEqual, "yaw")
	test.That(t, cfg.HeadingRange, test.ShouldEqual, "180")
	test.That(t, cfg.CalibrationSamples, test.ShouldEqual, 50)
	test.That(t, cfg.DisplayI2CAddr, test.ShouldEqual, uint16(0x3C))
	test.That(t, cfg.NMEAOutPort, test.ShouldEqual, "/dev/ttyUSB1")

	// defaults survive
	test.That(t, cfg.TopicHeading, test.ShouldEqual, "xsens/heading")
	test.That(t, cfg.CalibrationPollMS, test.ShouldEqual, 10)
	test.That(t, cfg.NMEAOutBaudRate, test.ShouldEqual, 4800)
}

func TestLoadMockDeviceNeedsNoPort(t *testing.T) {
	cfg, err := Load(writeConfig(t, "MOCK_DEVICE=true\nMQTT_BROKER=tcp://broker:1883\n"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.MockDevice, test.ShouldBeTrue)
}

func TestLoadErrors(t *testing.T) {
	for _, body := range []string{
		"MQTT_BROKER=tcp://x\n",                                // no port
		"SERIAL_PORT=/dev/x\n",                                 // no broker
		"SERIAL_PORT=/dev/x\nMQTT_BROKER=x\nNOPE=1\n",          // unknown key
		"SERIAL_PORT=/dev/x\nMQTT_BROKER=x\nBAUD_RATE=fast\n",  // not a number
		"SERIAL_PORT=/dev/x\nMQTT_BROKER=x\nHEADING_AXES=xy\n", // bad enum
		"SERIAL_PORT=/dev/x\nMQTT_BROKER=x\njust text\n",
		"SERIAL_PORT=/dev/x\nMQTT_BROKER=x\nDISPLAY_I2C_ADDR=0x3D\n", // fixed display address
	} {
		_, err := Load(writeConfig(t, body))
		test.That(t, err, test.ShouldNotBeNil)
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing"))
	test.That(t, err, test.ShouldNotBeNil)
}
