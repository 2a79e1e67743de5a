// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mt implements the Xsens MT low-level binary protocol: message
// framing, the command table and the MTData2 field decoder.
//
// A message on the wire is
//
//	[0xFA][BID][MID][LEN][DATA x LEN][CHK]
//
// and every byte after the preamble, checksum included, sums to zero
// modulo 256.
package mt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

const (
	// Preamble marks the start of every message.
	Preamble = 0xFA
	// BusMaster is the BID used for all host to device messages.
	BusMaster = 0xFF
	// ExtendedLength in LEN announces a 2-byte length which this driver
	// does not support.
	ExtendedLength = 0xFF
	// DefaultCapacity is the largest payload accepted by a Reader.
	DefaultCapacity = 254
)

var (
	// ErrChecksum means the message body did not sum to zero.
	ErrChecksum = errors.New("mt: checksum error")
	// ErrMalformedLength means LEN exceeded the payload capacity.
	ErrMalformedLength = errors.New("mt: malformed length")
	// ErrMalformedField means an MTData2 field overran its payload.
	ErrMalformedField = errors.New("mt: malformed field")
	// ErrNotRepresentable means a float was Inf or NaN on the wire.
	ErrNotRepresentable = errors.New("mt: float not representable")
)

// IsFramingError reports whether err is one of the recoverable protocol
// errors a reader can continue after.
func IsFramingError(err error) bool {
	return errors.Is(err, ErrChecksum) ||
		errors.Is(err, ErrMalformedLength) ||
		errors.Is(err, ErrMalformedField) ||
		errors.Is(err, ErrNotRepresentable)
}

// Message is one framed MT message.
type Message struct {
	BID  byte
	MID  MID
	Data []byte
}

// Bytes returns the wire encoding of m, preamble and checksum included.
func (m Message) Bytes() []byte {
	out := make([]byte, 0, len(m.Data)+5)
	out = append(out, Preamble, m.BID, byte(m.MID), byte(len(m.Data)))
	out = append(out, m.Data...)

	var sum byte
	for _, b := range out[1:] {
		sum += b
	}
	return append(out, -sum)
}

// WriteMessage writes a host to device message with BID 0xFF.
func WriteMessage(w io.Writer, mid MID, data []byte) error {
	if len(data) > DefaultCapacity {
		return fmt.Errorf("%w: %d bytes for %v", ErrMalformedLength, len(data), mid)
	}
	if _, err := w.Write(Message{BID: BusMaster, MID: mid, Data: data}.Bytes()); err != nil {
		return fmt.Errorf("write %v: %w", mid, err)
	}
	return nil
}

// Reader reads framed messages from a byte stream.
type Reader struct {
	r        io.ByteReader
	capacity int
	buf      []byte
}

// NewReader returns a Reader accepting payloads up to capacity bytes.
// A capacity outside 1..DefaultCapacity selects DefaultCapacity.
func NewReader(r io.Reader, capacity int) *Reader {
	if capacity <= 0 || capacity > DefaultCapacity {
		capacity = DefaultCapacity
	}
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{r: br, capacity: capacity, buf: make([]byte, capacity)}
}

// Read blocks until one message has been read. Bytes before a preamble
// are discarded. After ErrChecksum the offending message has been
// consumed. After ErrMalformedLength its payload is left unread, and the
// next Read resynchronizes by scanning it for a preamble.
func (r *Reader) Read() (Message, error) {
	for {
		b, err := r.r.ReadByte()
		if err != nil {
			return Message{}, err
		}
		if b == Preamble {
			break
		}
	}

	var sum byte
	next := func() (byte, error) {
		b, err := r.r.ReadByte()
		if err != nil {
			return 0, err
		}
		sum += b
		return b, nil
	}

	bid, err := next()
	if err != nil {
		return Message{}, err
	}
	mid, err := next()
	if err != nil {
		return Message{}, err
	}
	length, err := next()
	if err != nil {
		return Message{}, err
	}
	if int(length) > r.capacity {
		return Message{}, fmt.Errorf("%w: LEN %d exceeds capacity %d (MID 0x%02X)",
			ErrMalformedLength, length, r.capacity, mid)
	}

	for i := 0; i < int(length); i++ {
		if r.buf[i], err = next(); err != nil {
			return Message{}, err
		}
	}
	if _, err := next(); err != nil {
		return Message{}, err
	}
	if sum != 0 {
		return Message{}, fmt.Errorf("%w: MID 0x%02X LEN %d sum 0x%02X", ErrChecksum, mid, length, sum)
	}

	data := make([]byte, length)
	copy(data, r.buf[:length])
	return Message{BID: bid, MID: MID(mid), Data: data}, nil
}
