// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package xsens

import (
	"errors"
	"fmt"

	goutils "go.viam.com/utils"

	"github.com/relabs-tech/xsens_computer/internal/mt"
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("xsens: already started")

// Start zeroes the heading, puts the device in measurement mode and
// launches the acquisition worker. The worker runs until Close or until
// the port fails; Err reports the failure.
func (d *Driver) Start() error {
	if !d.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	d.ResetHeading(0, 0, 0)
	if err := d.Send(mt.GoToMeasurement()); err != nil {
		d.started.Store(false)
		return fmt.Errorf("xsens: enter measurement mode: %w", err)
	}

	d.activeBackgroundWorkers.Add(1)
	goutils.PanicCapturingGo(func() {
		defer d.activeBackgroundWorkers.Done()
		d.acquire()
	})
	return nil
}

func (d *Driver) acquire() {
	for {
		if d.cancelCtx.Err() != nil {
			return
		}
		msg, err := d.reader.Read()
		if err != nil {
			if mt.IsFramingError(err) {
				d.countError(err)
				d.logger.Warnw("dropping message", "error", err)
				continue
			}
			if d.cancelCtx.Err() != nil {
				return
			}
			d.logger.Errorw("xsens read failed, stopping acquisition", "error", err)
			d.mu.Lock()
			d.lastErr = err
			d.mu.Unlock()
			return
		}
		d.handle(msg)
	}
}

func (d *Driver) handle(msg mt.Message) {
	if msg.MID != mt.MIDMTData2 {
		d.logger.Debugw("ignoring message", "mid", msg.MID, "len", len(msg.Data))
		d.mu.Lock()
		d.stats.Messages++
		d.stats.Ignored++
		d.mu.Unlock()
		return
	}
	pkt, err := mt.DecodeMTData2(msg.Data)
	if err != nil {
		d.countError(err)
		d.logger.Warnw("dropping MTData2 message", "error", err)
		return
	}
	d.apply(pkt)
}

func (d *Driver) countError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.Messages++
	switch {
	case errors.Is(err, mt.ErrChecksum):
		d.stats.ChecksumErrors++
	case errors.Is(err, mt.ErrMalformedLength):
		d.stats.LengthErrors++
	default:
		d.stats.FieldErrors++
	}
}
