// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"fmt"
	"math"
)

// Pose is the canonical representation of orientation for the app, in
// degrees. Axis order on the device is pitch (x), roll (y), yaw (z).
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// FromAxes builds a Pose from device axis order.
func FromAxes(axes [3]float64) Pose {
	return Pose{Pitch: axes[0], Roll: axes[1], Yaw: axes[2]}
}

// Range selects how accumulated angles are wrapped when read.
type Range int

const (
	// Unbounded returns the accumulated angle as is.
	Unbounded Range = iota
	// Range360 wraps into [0, 360).
	Range360
	// Range180 wraps into [-180, 180).
	Range180
)

// ParseRange maps a config value to a Range.
func ParseRange(s string) (Range, error) {
	switch s {
	case "", "none", "unbounded":
		return Unbounded, nil
	case "360":
		return Range360, nil
	case "180":
		return Range180, nil
	}
	return Unbounded, fmt.Errorf("unknown heading range %q (want none, 360 or 180)", s)
}

func (r Range) String() string {
	switch r {
	case Range360:
		return "360"
	case Range180:
		return "180"
	default:
		return "none"
	}
}

// Normalize wraps deg into r.
func Normalize(deg float64, r Range) float64 {
	switch r {
	case Range360:
		deg = math.Mod(deg, 360)
		if deg < 0 {
			deg += 360
		}
		if deg >= 360 {
			deg = 0
		}
	case Range180:
		deg = math.Mod(deg+180, 360)
		if deg < 0 {
			deg += 360
		}
		deg -= 180
		if deg >= 180 {
			deg = -180
		}
	}
	return deg
}

// Normalized applies Normalize to every angle of p.
func (p Pose) Normalized(r Range) Pose {
	return Pose{
		Roll:  Normalize(p.Roll, r),
		Pitch: Normalize(p.Pitch, r),
		Yaw:   Normalize(p.Yaw, r),
	}
}
