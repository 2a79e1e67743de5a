// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package xsens

import (
	"math"
	"time"

	"github.com/relabs-tech/xsens_computer/internal/mt"
	"github.com/relabs-tech/xsens_computer/internal/orientation"
)

const degreesPerRadian = 180 / math.Pi

// integrateLocked advances the heading by the bias-corrected rate of
// turn in pkt. The first call only records now. Packets without a rate
// of turn advance the timestamp without integrating. d.mu must be held.
func (d *Driver) integrateLocked(pkt mt.Packet, now time.Time) {
	first := d.lastUpdate.IsZero()
	dt := now.Sub(d.lastUpdate).Seconds()
	d.lastUpdate = now
	if first || !pkt.Has(mt.DataRateOfTurn) {
		return
	}
	for axis := 0; axis < 3; axis++ {
		if !d.axes.tracks(axis) {
			continue
		}
		d.heading[axis] += (pkt.RateOfTurn[axis] - d.bias[axis]) * degreesPerRadian * dt
	}
}

// ResetHeading sets the accumulated heading in degrees. The bias is left
// alone. With AxesYaw only yaw is set.
func (d *Driver) ResetHeading(pitch, roll, yaw float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked([3]float64{pitch, roll, yaw})
}

// ResetYaw sets the accumulated yaw in degrees.
func (d *Driver) ResetYaw(yaw float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.heading[yawAxis] = yaw
}

func (d *Driver) resetLocked(values [3]float64) {
	for axis := 0; axis < 3; axis++ {
		if d.axes.tracks(axis) {
			d.heading[axis] = values[axis]
		}
	}
}

// Pitch returns the accumulated pitch in degrees.
func (d *Driver) Pitch() float64 { return d.axis(pitchAxis) }

// Roll returns the accumulated roll in degrees.
func (d *Driver) Roll() float64 { return d.axis(rollAxis) }

// Yaw returns the accumulated yaw in degrees.
func (d *Driver) Yaw() float64 { return d.axis(yawAxis) }

func (d *Driver) axis(i int) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.heading[i]
}

// Heading returns all accumulated angles wrapped into r. Accumulation
// itself is never wrapped.
func (d *Driver) Heading(r orientation.Range) orientation.Pose {
	d.mu.Lock()
	defer d.mu.Unlock()
	return orientation.FromAxes(d.heading).Normalized(r)
}

// Bias returns the gyro bias in rad/s and whether it came from a
// calibration.
func (d *Driver) Bias() ([3]float64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bias, d.calibrated
}
