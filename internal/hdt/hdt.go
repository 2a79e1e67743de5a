// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package hdt repeats the integrated yaw as NMEA HDT (true heading)
// sentences on a serial line.
package hdt

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
	"go.uber.org/zap"
	goutils "go.viam.com/utils"

	"github.com/relabs-tech/xsens_computer/internal/orientation"
)

// Talker is the NMEA talker ID for a heading sensor.
const Talker = "HE"

// Sentence returns a complete HDT sentence, CRLF included, for a compass
// heading in degrees.
func Sentence(talker string, heading float64) string {
	body := talker + nmea.TypeHDT + "," + strconv.FormatFloat(heading, 'f', 1, 64) + ",T"
	return "$" + body + "*" + nmea.Checksum(body) + "\r\n"
}

// CompassHeading converts an integrated yaw, counter-clockwise positive,
// into a clockwise compass heading in [0, 360).
func CompassHeading(yaw float64) float64 {
	h := orientation.Normalize(-yaw, orientation.Range360)
	// -0.04 would print as 360.0, and -0 as -0.0
	if h >= 359.95 || h == 0 {
		h = 0
	}
	return h
}

// OpenSerial opens an output-only serial port for the repeater.
func OpenSerial(portName string, baudRate int) (io.WriteCloser, error) {
	port, err := serial.Open(serial.OpenOptions{
		PortName:        portName,
		BaudRate:        uint(baudRate),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
	if err != nil {
		return nil, fmt.Errorf("hdt: open %s at %d baud: %w", portName, baudRate, err)
	}
	return port, nil
}

// YawSource returns the current integrated yaw in degrees.
type YawSource func() float64

// Repeater writes one HDT sentence per interval.
type Repeater struct {
	w      io.Writer
	yaw    YawSource
	logger *zap.SugaredLogger
}

// NewRepeater returns a repeater writing to w.
func NewRepeater(w io.Writer, yaw YawSource, logger *zap.SugaredLogger) *Repeater {
	return &Repeater{w: w, yaw: yaw, logger: logger}
}

// WriteOnce writes the current heading.
func (r *Repeater) WriteOnce() error {
	_, err := io.WriteString(r.w, Sentence(Talker, CompassHeading(r.yaw())))
	return err
}

// Run writes sentences until ctx ends or a write fails.
func (r *Repeater) Run(ctx context.Context, interval time.Duration) error {
	for goutils.SelectContextOrWait(ctx, interval) {
		if err := r.WriteOnce(); err != nil {
			r.logger.Errorw("HDT write failed", "error", err)
			return err
		}
	}
	return ctx.Err()
}
