// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package xsens drives an Xsens MTi over a serial byte stream. One
// worker reads and decodes the MTData2 stream; the latest packet, the
// gyro bias and the integrated heading share a single mutex.
package xsens

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	slib "github.com/jacobsa/go-serial/serial"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/relabs-tech/xsens_computer/internal/mt"
)

// Axes selects which heading components are tracked.
type Axes int

const (
	// AxesAll integrates pitch, roll and yaw with a per-axis bias.
	AxesAll Axes = iota
	// AxesYaw integrates yaw only. Pitch and roll stay at zero.
	AxesYaw
)

// ParseAxes maps a config value to Axes.
func ParseAxes(s string) (Axes, error) {
	switch s {
	case "", "all", "xyz":
		return AxesAll, nil
	case "yaw":
		return AxesYaw, nil
	}
	return AxesAll, fmt.Errorf("unknown heading axes %q (want all or yaw)", s)
}

func (a Axes) String() string {
	if a == AxesYaw {
		return "yaw"
	}
	return "all"
}

func (a Axes) tracks(axis int) bool {
	return a == AxesAll || axis == yawAxis
}

const (
	pitchAxis = 0
	rollAxis  = 1
	yawAxis   = 2

	// DefaultPollInterval is the calibration polling cadence.
	DefaultPollInterval = 10 * time.Millisecond
)

// Option configures a Driver.
type Option func(*Driver)

// WithAxes selects the tracked heading axes.
func WithAxes(a Axes) Option {
	return func(d *Driver) { d.axes = a }
}

// WithClock replaces the time source used for heading integration.
func WithClock(c clock.Clock) Option {
	return func(d *Driver) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithPollInterval sets how often Calibrate checks for a new packet.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Driver) {
		if interval > 0 {
			d.pollInterval = interval
		}
	}
}

// WithCapacity bounds the accepted message payload size.
func WithCapacity(capacity int) Option {
	return func(d *Driver) { d.capacity = capacity }
}

// Stats counts what the acquisition worker has seen.
type Stats struct {
	Messages       uint64 `json:"messages"`
	Measurements   uint64 `json:"measurements"`
	Ignored        uint64 `json:"ignored"`
	ChecksumErrors uint64 `json:"checksum_errors"`
	LengthErrors   uint64 `json:"length_errors"`
	FieldErrors    uint64 `json:"field_errors"`
}

// Driver is a single MTi connection.
type Driver struct {
	port         io.ReadWriter
	reader       *mt.Reader
	logger       *zap.SugaredLogger
	clock        clock.Clock
	axes         Axes
	pollInterval time.Duration
	capacity     int

	started                 atomic.Bool
	cancelCtx               context.Context
	cancelFunc              context.CancelFunc
	activeBackgroundWorkers sync.WaitGroup

	writeMu sync.Mutex

	// mu guards everything below.
	mu         sync.Mutex
	packet     mt.Packet
	bias       [3]float64
	heading    [3]float64
	lastUpdate time.Time
	calibrated bool
	stats      Stats
	lastErr    error
}

// Open opens the serial port at baudRate and returns a driver reading
// from it. The worker is not started.
func Open(portName string, baudRate int, logger *zap.SugaredLogger, opts ...Option) (*Driver, error) {
	options := slib.OpenOptions{
		PortName:        portName,
		BaudRate:        uint(baudRate),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      slib.PARITY_NONE,
	}
	logger.Debugf("opening xsens serial port with parameters: %+v", options)
	port, err := slib.Open(options)
	if err != nil {
		return nil, fmt.Errorf("xsens: open %s at %d baud: %w", portName, baudRate, err)
	}
	return New(port, logger, opts...), nil
}

// New returns a driver on an already open byte stream. If rw is an
// io.Closer, Close closes it.
func New(rw io.ReadWriter, logger *zap.SugaredLogger, opts ...Option) *Driver {
	d := &Driver{
		port:         rw,
		logger:       logger,
		clock:        clock.New(),
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.reader = mt.NewReader(rw, d.capacity)
	d.cancelCtx, d.cancelFunc = context.WithCancel(context.Background())
	return d
}

// Send writes one command. There is no response correlation; replies
// are ignored by the worker.
func (d *Driver) Send(cmd mt.Command) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	d.logger.Debugf("sending %v", cmd)
	return mt.WriteMessage(d.port, cmd.MID, cmd.Data)
}

// SetDeviceBaudrate asks the device to switch line rate after its next
// reset.
func (d *Driver) SetDeviceBaudrate(rate int) error {
	cmd, err := mt.SetBaudrate(rate)
	if err != nil {
		return err
	}
	return d.Send(cmd)
}

// Axes returns the tracked heading axes.
func (d *Driver) Axes() Axes {
	return d.axes
}

// Stats returns a copy of the worker counters.
func (d *Driver) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Err returns the error that stopped the worker, if any.
func (d *Driver) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// Close stops the worker, returns a started device to config mode and
// closes the port.
func (d *Driver) Close() error {
	d.cancelFunc()
	var err error
	if d.started.Load() {
		err = multierr.Append(err, d.Send(mt.GoToConfig()))
	}
	if c, ok := d.port.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	d.activeBackgroundWorkers.Wait()
	return err
}
