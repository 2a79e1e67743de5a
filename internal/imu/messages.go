// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package imu holds the JSON messages exchanged over MQTT between the
// heading producer and its front ends.
package imu

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/relabs-tech/xsens_computer/internal/mt"
	"github.com/relabs-tech/xsens_computer/internal/orientation"
	"github.com/relabs-tech/xsens_computer/internal/xsens"
)

// Sample is the last MTData2 packet. Absent fields are omitted.
type Sample struct {
	Time           time.Time   `json:"time"`
	Fields         []string    `json:"fields"`
	PacketCounter  *uint16     `json:"packet_counter,omitempty"`
	SampleTimeFine *uint32     `json:"sample_time_fine,omitempty"`
	DeltaQ         *[4]float64 `json:"delta_q,omitempty"`
	RateOfTurn     *[3]float64 `json:"rate_of_turn,omitempty"`
	MagneticField  *[3]float64 `json:"magnetic_field,omitempty"`
	DeltaV         *[3]float64 `json:"delta_v,omitempty"`
	Acceleration   *[3]float64 `json:"acceleration,omitempty"`
	StatusWord     *uint32     `json:"status_word,omitempty"`
}

// SampleFromPacket copies the present fields of p.
func SampleFromPacket(p mt.Packet, now time.Time) Sample {
	s := Sample{Time: now, Fields: []string{}}
	for _, id := range p.Fields() {
		s.Fields = append(s.Fields, id.String())
		switch id {
		case mt.DataPacketCounter:
			v := p.PacketCounter
			s.PacketCounter = &v
		case mt.DataSampleTimeFine:
			v := p.SampleTimeFine
			s.SampleTimeFine = &v
		case mt.DataDeltaQ:
			v := p.DeltaQ
			s.DeltaQ = &v
		case mt.DataRateOfTurn:
			v := p.RateOfTurn
			s.RateOfTurn = &v
		case mt.DataMagneticField:
			v := p.MagneticField
			s.MagneticField = &v
		case mt.DataDeltaV:
			v := p.DeltaV
			s.DeltaV = &v
		case mt.DataAcceleration:
			v := p.Acceleration
			s.Acceleration = &v
		case mt.DataStatusWord:
			v := p.StatusWord
			s.StatusWord = &v
		}
	}
	return s
}

// Heading is the integrated orientation published by the producer.
type Heading struct {
	Time time.Time `json:"time"`
	orientation.Pose
	Range      string      `json:"range"`
	Axes       string      `json:"axes"`
	Calibrated bool        `json:"calibrated"`
	Bias       [3]float64  `json:"bias"`
	Stats      xsens.Stats `json:"stats"`
	Error      string      `json:"error,omitempty"`
}

// Command types accepted on the command topic.
const (
	CommandCalibrate       = "calibrate"
	CommandReset           = "reset"
	CommandGoToConfig      = "goto_config"
	CommandGoToMeasurement = "goto_measurement"
	CommandRequestDeviceID = "request_device_id"
	CommandRequestFirmware = "request_firmware"
)

// Command is a remote request to the producer.
type Command struct {
	Type    string  `json:"type"`
	Samples int     `json:"samples,omitempty"`
	Pitch   float64 `json:"pitch,omitempty"`
	Roll    float64 `json:"roll,omitempty"`
	Yaw     float64 `json:"yaw,omitempty"`
}

// ParseCommand decodes and checks a command payload.
func ParseCommand(payload []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(payload, &c); err != nil {
		return Command{}, fmt.Errorf("invalid command: %w", err)
	}
	switch c.Type {
	case CommandCalibrate:
		if c.Samples < 0 {
			return Command{}, fmt.Errorf("calibrate: negative sample count %d", c.Samples)
		}
	case CommandReset, CommandGoToConfig, CommandGoToMeasurement,
		CommandRequestDeviceID, CommandRequestFirmware:
	default:
		return Command{}, fmt.Errorf("unknown command type %q", c.Type)
	}
	return c, nil
}
