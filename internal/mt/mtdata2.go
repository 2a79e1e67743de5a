// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mt

import "fmt"

// DataID identifies an MTData2 field.
type DataID uint16

// Fields decoded by DecodeMTData2. Any other id is skipped.
const (
	DataPacketCounter  DataID = 0x1020
	DataSampleTimeFine DataID = 0x1060
	DataDeltaV         DataID = 0x4010
	DataAcceleration   DataID = 0x4020
	DataRateOfTurn     DataID = 0x8020
	DataDeltaQ         DataID = 0x8030
	DataMagneticField  DataID = 0xC020
	DataStatusWord     DataID = 0xE020
)

var dataNames = map[DataID]string{
	DataPacketCounter:  "PacketCounter",
	DataSampleTimeFine: "SampleTimeFine",
	DataDeltaV:         "DeltaV",
	DataAcceleration:   "Acceleration",
	DataRateOfTurn:     "RateOfTurn",
	DataDeltaQ:         "DeltaQ",
	DataMagneticField:  "MagneticField",
	DataStatusWord:     "StatusWord",
}

func (id DataID) String() string {
	if name, ok := dataNames[id]; ok {
		return name
	}
	return fmt.Sprintf("DataID(0x%04X)", uint16(id))
}

// KnownDataIDs lists the decoded fields in a stable order.
var KnownDataIDs = []DataID{
	DataPacketCounter,
	DataSampleTimeFine,
	DataDeltaQ,
	DataRateOfTurn,
	DataMagneticField,
	DataDeltaV,
	DataStatusWord,
	DataAcceleration,
}

// Packet holds the fields of one MTData2 message. A field is only
// meaningful when Has reports it present.
type Packet struct {
	PacketCounter  uint16
	SampleTimeFine uint32
	DeltaQ         [4]float64
	RateOfTurn     [3]float64 // rad/s, sensor frame
	MagneticField  [3]float64
	DeltaV         [3]float64
	StatusWord     uint32
	Acceleration   [3]float64

	present uint16
}

// bit returns the presence bit of a decoded field, 0 for unknown ids.
func bit(id DataID) uint16 {
	for i, known := range KnownDataIDs {
		if known == id {
			return 1 << i
		}
	}
	return 0
}

// Has reports whether the last message carried id.
func (p Packet) Has(id DataID) bool {
	b := bit(id)
	return b != 0 && p.present&b != 0
}

// Fields returns the ids present in p in KnownDataIDs order.
func (p Packet) Fields() []DataID {
	var out []DataID
	for _, id := range KnownDataIDs {
		if p.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

func (p *Packet) mark(id DataID) {
	p.present |= bit(id)
}

// nextField reads the field header at off and returns the field body and
// the offset of the following field.
func nextField(data []byte, off int) (DataID, []byte, int, error) {
	if off+3 > len(data) {
		return 0, nil, off, fmt.Errorf("%w: truncated header at offset %d of %d", ErrMalformedField, off, len(data))
	}
	id := DataID(uint16(data[off])<<8 | uint16(data[off+1]))
	size := int(data[off+2])
	start := off + 3
	if start+size > len(data) {
		return id, nil, off, fmt.Errorf("%w: %v declares %d bytes, %d remain", ErrMalformedField, id, size, len(data)-start)
	}
	return id, data[start : start+size], start + size, nil
}

// ScanFields calls fn for every field of an MTData2 payload, unknown ids
// included. It stops at the first error.
func ScanFields(data []byte, fn func(id DataID, body []byte) error) error {
	for off := 0; off < len(data); {
		id, body, next, err := nextField(data, off)
		if err != nil {
			return err
		}
		if err := fn(id, body); err != nil {
			return err
		}
		off = next
	}
	return nil
}

// DecodeMTData2 decodes the payload of an MTData2 message. Unknown
// fields are skipped. On error nothing of the payload should be used.
func DecodeMTData2(data []byte) (Packet, error) {
	var p Packet
	err := ScanFields(data, func(id DataID, body []byte) error {
		var err error
		switch id {
		case DataDeltaQ:
			err = decodeFloats(p.DeltaQ[:], body)
		case DataRateOfTurn:
			err = decodeFloats(p.RateOfTurn[:], body)
		case DataMagneticField:
			err = decodeFloats(p.MagneticField[:], body)
		case DataDeltaV:
			err = decodeFloats(p.DeltaV[:], body)
		case DataAcceleration:
			err = decodeFloats(p.Acceleration[:], body)
		case DataPacketCounter:
			if len(body) < 2 {
				err = fmt.Errorf("%w: need 2 bytes", ErrMalformedField)
				break
			}
			p.PacketCounter = uint16(body[0])<<8 | uint16(body[1])
		case DataSampleTimeFine:
			p.SampleTimeFine, err = decodeUint32(body)
		case DataStatusWord:
			p.StatusWord, err = decodeUint32(body)
		default:
			return nil
		}
		if err != nil {
			return fmt.Errorf("%v: %w", id, err)
		}
		p.mark(id)
		return nil
	})
	if err != nil {
		return Packet{}, err
	}
	return p, nil
}

// decodeFloats fills out with consecutive 4-byte floats from body.
func decodeFloats(out []float64, body []byte) error {
	if len(body)%4 != 0 || len(body)/4 > len(out) {
		return fmt.Errorf("%w: %d bytes for %d floats", ErrMalformedField, len(body), len(out))
	}
	for i := 0; i < len(body)/4; i++ {
		v, err := DecodeFloat(body[i*4 : i*4+4])
		if err != nil {
			return err
		}
		out[i] = v
	}
	return nil
}

func decodeUint32(body []byte) (uint32, error) {
	if len(body) < 4 {
		return 0, fmt.Errorf("%w: need 4 bytes, got %d", ErrMalformedField, len(body))
	}
	return uint32(body[0])<<24 | uint32(body[1])<<16 | uint32(body[2])<<8 | uint32(body[3]), nil
}

// AppendField appends one MTData2 field record to data.
func AppendField(data []byte, id DataID, body []byte) []byte {
	data = append(data, byte(id>>8), byte(id), byte(len(body)))
	return append(data, body...)
}

// AppendFloatField appends a float group field.
func AppendFloatField(data []byte, id DataID, values ...float32) ([]byte, error) {
	body := make([]byte, 0, 4*len(values))
	for _, v := range values {
		b, err := EncodeFloat(v)
		if err != nil {
			return data, err
		}
		body = append(body, b[:]...)
	}
	return AppendField(data, id, body), nil
}

// AppendUint16Field appends a 2-byte big-endian field such as the
// packet counter.
func AppendUint16Field(data []byte, id DataID, v uint16) []byte {
	return AppendField(data, id, []byte{byte(v >> 8), byte(v)})
}

// AppendUint32Field appends a 4-byte big-endian field.
func AppendUint32Field(data []byte, id DataID, v uint32) []byte {
	return AppendField(data, id, []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}
