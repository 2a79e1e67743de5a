// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	goutils "go.viam.com/utils"

	"github.com/relabs-tech/xsens_computer/internal/config"
	"github.com/relabs-tech/xsens_computer/internal/hdt"
	"github.com/relabs-tech/xsens_computer/internal/imu"
	"github.com/relabs-tech/xsens_computer/internal/mt"
	"github.com/relabs-tech/xsens_computer/internal/orientation"
	"github.com/relabs-tech/xsens_computer/internal/xsens"
)

// mockInterval is the MTData2 period of the simulated device.
const mockInterval = 10 * time.Millisecond

// ErrCalibrating is returned when a calibration is already running.
var ErrCalibrating = errors.New("calibration already running")

// Publisher is the part of an MQTT client used for publishing.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Producer publishes the driver state and executes remote commands.
type Producer struct {
	driver             *xsens.Driver
	pub                Publisher
	logger             *zap.SugaredLogger
	headingTopic       string
	sampleTopic        string
	headingRange       orientation.Range
	calibrationSamples int
	calibrationTimeout time.Duration

	calibrating             atomic.Bool
	activeBackgroundWorkers sync.WaitGroup
}

// NewProducer returns a producer publishing d on the topics in cfg.
func NewProducer(d *xsens.Driver, pub Publisher, cfg *config.Config, logger *zap.SugaredLogger) (*Producer, error) {
	rng, err := orientation.ParseRange(cfg.HeadingRange)
	if err != nil {
		return nil, err
	}
	return &Producer{
		driver:             d,
		pub:                pub,
		logger:             logger,
		headingTopic:       cfg.TopicHeading,
		sampleTopic:        cfg.TopicSample,
		headingRange:       rng,
		calibrationSamples: cfg.CalibrationSamples,
		calibrationTimeout: time.Duration(cfg.CalibrationTimeoutMS) * time.Millisecond,
	}, nil
}

func (p *Producer) publishJSON(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	token := p.pub.Publish(topic, 0, true, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// PublishOnce publishes the current heading and, when a sample topic is
// configured, the latest packet.
func (p *Producer) PublishOnce(now time.Time) error {
	msg := headingOf(p.driver, p.headingRange, now)
	err := p.publishJSON(p.headingTopic, msg)
	if p.sampleTopic != "" {
		err = multierr.Append(err, p.publishJSON(p.sampleTopic, imu.SampleFromPacket(p.driver.Snapshot(), now)))
	}
	return err
}

// Run publishes every interval until ctx ends.
func (p *Producer) Run(ctx context.Context, interval time.Duration) error {
	for goutils.SelectContextOrWait(ctx, interval) {
		if err := p.PublishOnce(time.Now()); err != nil {
			p.logger.Warnw("publish failed", "error", err)
		}
	}
	return ctx.Err()
}

// HandleCommand executes one command payload. Calibration runs in the
// background; Wait blocks until it is done. A calibrate command without
// samples uses the configured count.
func (p *Producer) HandleCommand(ctx context.Context, payload []byte) error {
	cmd, err := imu.ParseCommand(payload)
	if err != nil {
		return err
	}
	p.logger.Infow("command received", "type", cmd.Type)

	switch cmd.Type {
	case imu.CommandCalibrate:
		return p.startCalibration(ctx, cmd.Samples)
	case imu.CommandReset:
		p.driver.ResetHeading(cmd.Pitch, cmd.Roll, cmd.Yaw)
		return nil
	case imu.CommandGoToConfig:
		return p.driver.Send(mt.GoToConfig())
	case imu.CommandGoToMeasurement:
		return p.driver.Send(mt.GoToMeasurement())
	case imu.CommandRequestDeviceID:
		return p.driver.Send(mt.RequestDeviceID())
	case imu.CommandRequestFirmware:
		return p.driver.Send(mt.RequestFirmwareRevision())
	}
	return fmt.Errorf("unhandled command %q", cmd.Type)
}

func (p *Producer) startCalibration(ctx context.Context, samples int) error {
	if samples <= 0 {
		samples = p.calibrationSamples
	}
	if samples <= 0 {
		return fmt.Errorf("calibrate: no sample count given and none configured")
	}
	if !p.calibrating.CompareAndSwap(false, true) {
		return ErrCalibrating
	}
	p.activeBackgroundWorkers.Add(1)
	goutils.PanicCapturingGo(func() {
		defer p.activeBackgroundWorkers.Done()
		defer p.calibrating.Store(false)
		if _, err := p.calibrate(ctx, samples); err != nil {
			p.logger.Warnw("calibration failed", "error", err)
		}
	})
	return nil
}

// calibrate runs one calibration bounded by the configured timeout.
func (p *Producer) calibrate(ctx context.Context, samples int) (CalibrationResult, error) {
	return calibrateDriver(ctx, p.driver, samples, p.calibrationTimeout)
}

// StartRepeater writes the heading as NMEA HDT to port every interval in
// the background. The port is closed once the repeater has stopped.
func (p *Producer) StartRepeater(ctx context.Context, port io.WriteCloser, interval time.Duration) {
	repeater := hdt.NewRepeater(port, p.driver.Yaw, p.logger.Named("hdt"))
	p.activeBackgroundWorkers.Add(1)
	goutils.PanicCapturingGo(func() {
		defer p.activeBackgroundWorkers.Done()
		defer closeLogged(port, p.logger)
		if err := repeater.Run(ctx, interval); err != nil && ctx.Err() == nil {
			p.logger.Errorw("HDT repeater stopped", "error", err)
		}
	})
}

// Wait blocks until background calibrations and the repeater have finished.
func (p *Producer) Wait() {
	p.activeBackgroundWorkers.Wait()
}

// openDriver opens the configured device, or a simulated one.
func openDriver(cfg *config.Config, logger *zap.SugaredLogger) (*xsens.Driver, error) {
	axes, err := xsens.ParseAxes(cfg.HeadingAxes)
	if err != nil {
		return nil, err
	}
	opts := []xsens.Option{
		xsens.WithAxes(axes),
		xsens.WithPollInterval(time.Duration(cfg.CalibrationPollMS) * time.Millisecond),
	}
	if cfg.MockDevice {
		logger.Info("using simulated MTi")
		return xsens.New(mt.NewMockDevice(mockInterval, nil), logger, opts...), nil
	}
	return xsens.Open(cfg.SerialPort, cfg.BaudRate, logger, opts...)
}

// RunIMUProducer runs the heading service until ctx ends: it reads the
// MTi, publishes heading and samples to MQTT, obeys the command topic
// and optionally repeats the heading as NMEA HDT.
func RunIMUProducer(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (err error) {
	driver, err := openDriver(cfg, logger.Named("xsens"))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, driver.Close())
	}()
	if err := driver.Start(); err != nil {
		return err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect: %w", token.Error())
	}
	defer client.Disconnect(250)
	logger.Infof("connected to MQTT broker at %s", cfg.MQTTBroker)

	producer, err := NewProducer(driver, client, cfg, logger.Named("producer"))
	if err != nil {
		return err
	}
	defer producer.Wait()

	if cfg.CalibrationSamples > 0 {
		if _, err := producer.calibrate(ctx, cfg.CalibrationSamples); err != nil {
			logger.Warnw("startup calibration failed, continuing uncalibrated", "error", err)
		}
	}

	token := client.Subscribe(cfg.TopicCommand, 1, func(_ mqtt.Client, msg mqtt.Message) {
		if err := producer.HandleCommand(ctx, msg.Payload()); err != nil {
			logger.Warnw("command failed", "error", err)
		}
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	logger.Infof("subscribed to %s", cfg.TopicCommand)

	interval := time.Duration(cfg.PublishInterval) * time.Millisecond
	if cfg.NMEAOutPort != "" {
		port, err := hdt.OpenSerial(cfg.NMEAOutPort, cfg.NMEAOutBaudRate)
		if err != nil {
			return err
		}
		producer.StartRepeater(ctx, port, interval)
	}

	if err := producer.Run(ctx, interval); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func closeLogged(c io.Closer, logger *zap.SugaredLogger) {
	if err := c.Close(); err != nil {
		logger.Warnw("close failed", "error", err)
	}
}
