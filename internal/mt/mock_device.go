// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mt

import (
	"bytes"
	"errors"
	"io"
	"math"
	"sync"
	"time"
)

// RateFunc returns the simulated rate of turn in rad/s, elapsed seconds
// after the mock device was created.
type RateFunc func(elapsed float64) [3]float32

// SmoothMotion is a slowly swinging rate of turn with a small constant
// gyro bias on every axis.
func SmoothMotion(elapsed float64) [3]float32 {
	return [3]float32{
		float32(0.003 + 0.05*math.Sin(elapsed)),
		float32(-0.002 + 0.04*math.Cos(elapsed*0.7)),
		float32(0.004 + 0.2*math.Sin(elapsed*0.3)),
	}
}

// MockDevice simulates an MTi on the far side of a serial line. It obeys
// GoToConfig and GoToMeasurement, acknowledges other commands and, while
// measuring, streams one MTData2 message per interval.
type MockDevice struct {
	interval time.Duration
	rate     RateFunc
	start    time.Time

	pr *io.PipeReader
	pw *io.PipeWriter

	mu        sync.Mutex
	measuring bool
	counter   uint16
	commands  []MID

	replies   chan []byte
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewMockDevice starts a simulated device. A nil rate selects
// SmoothMotion.
func NewMockDevice(interval time.Duration, rate RateFunc) *MockDevice {
	if rate == nil {
		rate = SmoothMotion
	}
	pr, pw := io.Pipe()
	m := &MockDevice{
		interval: interval,
		rate:     rate,
		start:    time.Now(),
		pr:       pr,
		pw:       pw,
		replies:  make(chan []byte, 16),
		done:     make(chan struct{}),
	}
	m.wg.Add(1)
	go m.stream()
	return m
}

// Read returns bytes sent by the device.
func (m *MockDevice) Read(p []byte) (int, error) {
	return m.pr.Read(p)
}

// Write accepts complete host messages.
func (m *MockDevice) Write(p []byte) (int, error) {
	r := NewReader(bytes.NewReader(p), 0)
	for {
		msg, err := r.Read()
		if errors.Is(err, io.EOF) {
			return len(p), nil
		}
		if err != nil {
			return 0, err
		}
		m.handle(msg)
	}
}

// Close stops streaming and unblocks pending reads.
func (m *MockDevice) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
		m.pr.Close()
		m.pw.Close()
	})
	m.wg.Wait()
	return nil
}

// Commands returns the MIDs received so far.
func (m *MockDevice) Commands() []MID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MID(nil), m.commands...)
}

// Measuring reports whether the device is streaming MTData2.
func (m *MockDevice) Measuring() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.measuring
}

func (m *MockDevice) handle(msg Message) {
	m.mu.Lock()
	m.commands = append(m.commands, msg.MID)
	switch msg.MID {
	case MIDGoToMeasurement:
		m.measuring = true
	case MIDGoToConfig:
		m.measuring = false
	}
	m.mu.Unlock()

	var reply []byte
	if msg.MID == MIDReqDID {
		reply = []byte{0x03, 0x70, 0x00, 0x01}
	}
	ack := Message{BID: BusMaster, MID: msg.MID + 1, Data: reply}.Bytes()
	select {
	case m.replies <- ack:
	default:
	}
}

func (m *MockDevice) stream() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		var frame []byte
		select {
		case <-m.done:
			return
		case frame = <-m.replies:
		case t := <-ticker.C:
			if !m.Measuring() {
				continue
			}
			frame = m.nextFrame(t)
		}
		if _, err := m.pw.Write(frame); err != nil {
			return
		}
	}
}

func (m *MockDevice) nextFrame(t time.Time) []byte {
	m.mu.Lock()
	m.counter++
	counter := m.counter
	m.mu.Unlock()

	elapsed := t.Sub(m.start).Seconds()
	rate := m.rate(elapsed)

	data := AppendUint16Field(nil, DataPacketCounter, counter)
	data = AppendUint32Field(data, DataSampleTimeFine, uint32(elapsed*10000))
	data, _ = AppendFloatField(data, DataRateOfTurn, rate[0], rate[1], rate[2])
	data, _ = AppendFloatField(data, DataAcceleration, 0, 0, 9.81)
	data = AppendUint32Field(data, DataStatusWord, 0)
	return Message{BID: BusMaster, MID: MIDMTData2, Data: data}.Bytes()
}
