// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package xsens

import (
	"context"

	goutils "go.viam.com/utils"

	"github.com/relabs-tech/xsens_computer/internal/mt"
)

// Calibrate averages the rate of turn over samples fresh packets and
// stores it as the gyro bias, then zeroes the heading. The device must be
// still. A packet counts as fresh when its counter differs from the one
// seen at the previous poll, so packets arriving faster than the poll
// interval are sampled once.
//
// samples <= 0 returns the current bias unchanged. If ctx ends first the
// bias is not touched and ctx.Err() is returned.
func (d *Driver) Calibrate(ctx context.Context, samples int) ([3]float64, error) {
	if samples <= 0 {
		bias, _ := d.Bias()
		return bias, nil
	}
	d.logger.Infof("calibrating gyro bias over %d samples", samples)

	last, _ := d.counter()
	var sum [3]float64
	for n := 0; n < samples; {
		if !goutils.SelectContextOrWait(ctx, d.pollInterval) {
			return [3]float64{}, ctx.Err()
		}
		counter, rate := d.counter()
		if counter == last {
			continue
		}
		last = counter
		for axis := range sum {
			sum[axis] += rate[axis]
		}
		n++
	}

	d.mu.Lock()
	for axis := range sum {
		if d.axes.tracks(axis) {
			d.bias[axis] = sum[axis] / float64(samples)
		}
	}
	d.calibrated = true
	d.resetLocked([3]float64{})
	bias := d.bias
	d.mu.Unlock()

	d.logger.Infof("gyro bias: %f %f %f", bias[0], bias[1], bias[2])
	return bias, nil
}

// counter returns the packet counter and rate of turn of the stored
// packet.
func (d *Driver) counter() (uint16, [3]float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.packet.Has(mt.DataPacketCounter) {
		return d.packet.PacketCounter, [3]float64{}
	}
	return d.packet.PacketCounter, d.packet.RateOfTurn
}
