package mt

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"go.viam.com/test"
)

func TestReadGoToMeasurementAck(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0xFA, 0xFF, 0x10, 0x00, 0xF1}), 0)
	msg, err := r.Read()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, msg.BID, test.ShouldEqual, byte(0xFF))
	test.That(t, msg.MID, test.ShouldEqual, MIDGoToMeasurement)
	test.That(t, msg.Data, test.ShouldHaveLength, 0)
}

func TestWriteReadRoundTrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		{0x02},
		{0x00, 0x01},
		bytes.Repeat([]byte{0xAB}, DefaultCapacity),
	}
	for _, mid := range []MID{MIDGoToConfig, MIDSetBaudrate, MIDSetErrorMode, MIDMTData2} {
		for _, data := range payloads {
			var buf bytes.Buffer
			test.That(t, WriteMessage(&buf, mid, data), test.ShouldBeNil)

			raw := buf.Bytes()
			test.That(t, raw[0], test.ShouldEqual, byte(Preamble))
			test.That(t, raw[1], test.ShouldEqual, byte(BusMaster))
			var sum byte
			for _, b := range raw[1:] {
				sum += b
			}
			test.That(t, sum, test.ShouldEqual, byte(0))

			msg, err := NewReader(&buf, 0).Read()
			test.That(t, err, test.ShouldBeNil)
			test.That(t, msg.MID, test.ShouldEqual, mid)
			test.That(t, len(msg.Data), test.ShouldEqual, len(data))
			if len(data) > 0 {
				test.That(t, msg.Data, test.ShouldResemble, data)
			}
		}
	}
}

func TestWriteChecksumByte(t *testing.T) {
	var buf bytes.Buffer
	test.That(t, WriteMessage(&buf, MIDSetErrorMode, []byte{0x00, 0x03}), test.ShouldBeNil)
	// 0x100 - ((0xFF + 0xDA + 0x02 + 0x00 + 0x03) mod 256)
	test.That(t, buf.Bytes(), test.ShouldResemble, []byte{0xFA, 0xFF, 0xDA, 0x02, 0x00, 0x03, 0x22})
}

func TestWriteRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	err := WriteMessage(&buf, MIDMTData2, make([]byte, DefaultCapacity+1))
	test.That(t, errors.Is(err, ErrMalformedLength), test.ShouldBeTrue)
	test.That(t, buf.Len(), test.ShouldEqual, 0)
}

func TestReadResynchronizesOnPreamble(t *testing.T) {
	stream := append([]byte{0x00, 0x13, 0x37, 0xFF}, 0xFA, 0xFF, 0x31, 0x00, 0xD0)
	msg, err := NewReader(bytes.NewReader(stream), 0).Read()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, msg.MID, test.ShouldEqual, MIDGoToConfig+1)
}

func TestReadChecksumError(t *testing.T) {
	stream := []byte{
		0xFA, 0xFF, 0x10, 0x00, 0xF2, // bad checksum
		0xFA, 0xFF, 0x10, 0x00, 0xF1,
	}
	r := NewReader(bytes.NewReader(stream), 0)

	_, err := r.Read()
	test.That(t, errors.Is(err, ErrChecksum), test.ShouldBeTrue)
	test.That(t, IsFramingError(err), test.ShouldBeTrue)

	msg, err := r.Read()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, msg.MID, test.ShouldEqual, MIDGoToMeasurement)
}

func TestReadMalformedLength(t *testing.T) {
	// LEN 0x20 against a 16 byte capacity must fail before any payload
	// byte is stored.
	stream := append([]byte{0xFA, 0xFF, 0x36, 0x20}, make([]byte, 0x21)...)
	r := NewReader(bytes.NewReader(stream), 16)
	_, err := r.Read()
	test.That(t, errors.Is(err, ErrMalformedLength), test.ShouldBeTrue)

	// extended length marker
	r = NewReader(bytes.NewReader([]byte{0xFA, 0xFF, 0x36, 0xFF, 0x01, 0x00}), 0)
	_, err = r.Read()
	test.That(t, errors.Is(err, ErrMalformedLength), test.ShouldBeTrue)
}

func TestReadAfterMalformedLengthScansPayload(t *testing.T) {
	// the rejected payload is not skipped, so a message inside it is found
	stream := []byte{
		0xFA, 0xFF, 0x36, 0x20,
		0x00, 0xFA, 0xFF, 0x10, 0x00, 0xF1,
	}
	r := NewReader(bytes.NewReader(stream), 16)
	_, err := r.Read()
	test.That(t, errors.Is(err, ErrMalformedLength), test.ShouldBeTrue)

	msg, err := r.Read()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, msg.MID, test.ShouldEqual, MIDGoToMeasurement)
}

func TestReadTruncatedStream(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte{0xFA, 0xFF, 0x36, 0x04, 0x01}), 0).Read()
	test.That(t, errors.Is(err, io.EOF), test.ShouldBeTrue)
	test.That(t, IsFramingError(err), test.ShouldBeFalse)

	_, err = NewReader(bytes.NewReader([]byte{0x01, 0x02}), 0).Read()
	test.That(t, errors.Is(err, io.EOF), test.ShouldBeTrue)
}

func TestCommandTable(t *testing.T) {
	for _, tc := range []struct {
		cmd  Command
		want []byte
	}{
		{GoToConfig(), []byte{0xFA, 0xFF, 0x30, 0x00, 0xD1}},
		{GoToMeasurement(), []byte{0xFA, 0xFF, 0x10, 0x00, 0xF1}},
		{Reset(), []byte{0xFA, 0xFF, 0x40, 0x00, 0xC1}},
		{RequestDeviceID(), []byte{0xFA, 0xFF, 0x00, 0x00, 0x01}},
		{RequestProductCode(), []byte{0xFA, 0xFF, 0x1C, 0x00, 0xE5}},
		{RequestHardwareVersion(), []byte{0xFA, 0xFF, 0x1E, 0x00, 0xE3}},
		{RequestFirmwareRevision(), []byte{0xFA, 0xFF, 0x12, 0x00, 0xEF}},
		{RunSelfTest(), []byte{0xFA, 0xFF, 0x24, 0x00, 0xDD}},
		{RequestBaudrate(), []byte{0xFA, 0xFF, 0x18, 0x00, 0xE9}},
		{RequestErrorMode(), []byte{0xFA, 0xFF, 0xDA, 0x00, 0x27}},
		{SetErrorMode(0x01), []byte{0xFA, 0xFF, 0xDA, 0x02, 0x00, 0x01, 0x24}},
	} {
		var buf bytes.Buffer
		test.That(t, WriteMessage(&buf, tc.cmd.MID, tc.cmd.Data), test.ShouldBeNil)
		test.That(t, buf.Bytes(), test.ShouldResemble, tc.want)
	}
}

func TestSetBaudrate(t *testing.T) {
	cmd, err := SetBaudrate(115200)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cmd.MID, test.ShouldEqual, MIDSetBaudrate)
	test.That(t, cmd.Data, test.ShouldResemble, []byte{0x02})

	cmd, err = SetBaudrate(921600)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cmd.Data, test.ShouldResemble, []byte{0x80})

	_, err = SetBaudrate(12345)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMIDString(t *testing.T) {
	test.That(t, MIDMTData2.String(), test.ShouldEqual, "MTData2")
	test.That(t, MID(0x3E).String(), test.ShouldEqual, "MID(0x3E)")
	test.That(t, SetErrorMode(2).String(), test.ShouldEqual, "ReqErrorMode 00 02")
}
