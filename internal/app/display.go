package app

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
	goutils "go.viam.com/utils"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/xsens_computer/internal/config"
	"github.com/relabs-tech/xsens_computer/internal/imu"
)

// Panel is the part of an OLED driver the display loop draws on.
type Panel interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// DisplayData holds the latest heading for the display.
type DisplayData struct {
	mu      sync.RWMutex
	heading imu.Heading
	have    bool
}

// Update stores a heading payload.
func (d *DisplayData) Update(payload []byte) error {
	var h imu.Heading
	if err := json.Unmarshal(payload, &h); err != nil {
		return err
	}
	d.mu.Lock()
	d.heading = h
	d.have = true
	d.mu.Unlock()
	return nil
}

// Latest returns the stored heading and whether one arrived.
func (d *DisplayData) Latest() (imu.Heading, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.heading, d.have
}

func newFrame() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

// renderHeading draws one 128x64 frame.
func renderHeading(h imu.Heading, have bool) *image1bit.VerticalLSB {
	img, drawer := newFrame()
	line := func(y int, s string) {
		drawer.Dot = fixed.P(0, y)
		drawer.DrawString(s)
	}

	if !have {
		line(26, "Xsens heading")
		line(39, "Waiting...")
		return img
	}
	line(13, fmt.Sprintf("Y: %6.1f", h.Yaw))
	if h.Axes != "yaw" {
		line(26, fmt.Sprintf("P: %6.1f", h.Pitch))
		line(39, fmt.Sprintf("R: %6.1f", h.Roll))
	}
	switch {
	case h.Error != "":
		line(52, "DEVICE ERROR")
	case h.Calibrated:
		line(52, "calibrated")
	default:
		line(52, "not calibrated")
	}
	return img
}

func showSplash(p Panel) error {
	img, drawer := newFrame()
	drawer.Dot = fixed.P(10, 26)
	drawer.DrawString("Xsens MTi")
	drawer.Dot = fixed.P(10, 43)
	drawer.DrawString("Heading")
	return p.Draw(p.Bounds(), img, image.Point{})
}

// runDisplayLoop redraws p from data every interval until ctx ends.
func runDisplayLoop(ctx context.Context, p Panel, data *DisplayData, interval time.Duration, logger *zap.SugaredLogger) {
	for goutils.SelectContextOrWait(ctx, interval) {
		h, have := data.Latest()
		if err := p.Draw(p.Bounds(), renderHeading(h, have), image.Point{}); err != nil {
			logger.Warnw("display: update failed", "error", err)
		}
	}
}

// RunDisplay shows the heading on an SSD1306 OLED until ctx ends.
func RunDisplay(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer func() {
		if err := dev.Halt(); err != nil {
			logger.Warnw("display: halt failed", "error", err)
		}
	}()
	logger.Infof("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := showSplash(dev); err != nil {
		logger.Warnw("display: error showing splash", "error", err)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	logger.Infof("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	data := &DisplayData{}
	if err := subscribeJSON(client, cfg.TopicHeading, logger, data.Update); err != nil {
		return err
	}

	logger.Info("display: starting update loop")
	runDisplayLoop(ctx, dev, data, time.Duration(cfg.DisplayUpdateInterval)*time.Millisecond, logger)
	return nil
}
