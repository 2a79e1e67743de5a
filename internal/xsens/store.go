// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package xsens

import "github.com/relabs-tech/xsens_computer/internal/mt"

// Snapshot returns a copy of the most recent measurement packet. The
// copy is taken under the same lock the worker holds while applying a
// message, so it never mixes fields of two messages.
func (d *Driver) Snapshot() mt.Packet {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.packet
}

// storeLocked replaces the stored packet. d.mu must be held.
func (d *Driver) storeLocked(pkt mt.Packet) {
	d.packet = pkt
}

// apply stores pkt and integrates it in one critical section.
func (d *Driver) apply(pkt mt.Packet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.storeLocked(pkt)
	d.integrateLocked(pkt, d.clock.Now())
	d.stats.Messages++
	d.stats.Measurements++
}
