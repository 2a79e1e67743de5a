// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mt

import "fmt"

// MID is a message identifier.
type MID byte

// Message identifiers used by the driver. Requests and their Set
// counterparts share a MID; a Set carries data.
const (
	MIDReqDID             MID = 0x00
	MIDGoToMeasurement    MID = 0x10
	MIDReqFWRev           MID = 0x12
	MIDReqBaudrate        MID = 0x18
	MIDSetBaudrate        MID = 0x18
	MIDReqProductCode     MID = 0x1C
	MIDReqHardwareVersion MID = 0x1E
	MIDRunSelfTest        MID = 0x24
	MIDGoToConfig         MID = 0x30
	MIDMTData2            MID = 0x36
	MIDReset              MID = 0x40
	MIDReqErrorMode       MID = 0xDA
	MIDSetErrorMode       MID = 0xDA
)

var midNames = map[MID]string{
	MIDReqDID:             "ReqDID",
	MIDGoToMeasurement:    "GoToMeasurement",
	MIDReqFWRev:           "ReqFWRev",
	MIDReqBaudrate:        "ReqBaudrate",
	MIDReqProductCode:     "ReqProductCode",
	MIDReqHardwareVersion: "ReqHardwareVersion",
	MIDRunSelfTest:        "RunSelfTest",
	MIDGoToConfig:         "GoToConfig",
	MIDMTData2:            "MTData2",
	MIDReset:              "Reset",
	MIDReqErrorMode:       "ReqErrorMode",
}

func (m MID) String() string {
	if name, ok := midNames[m]; ok {
		return name
	}
	return fmt.Sprintf("MID(0x%02X)", byte(m))
}

// Command is an outgoing message.
type Command struct {
	MID  MID
	Data []byte
}

func (c Command) String() string {
	if len(c.Data) == 0 {
		return c.MID.String()
	}
	return fmt.Sprintf("%v % X", c.MID, c.Data)
}

// GoToConfig switches the device to configuration mode.
func GoToConfig() Command { return Command{MID: MIDGoToConfig} }

// GoToMeasurement starts the MTData2 stream.
func GoToMeasurement() Command { return Command{MID: MIDGoToMeasurement} }

// Reset restarts the device. It comes back in configuration mode.
func Reset() Command { return Command{MID: MIDReset} }

// RequestDeviceID asks for the 4-byte device ID.
func RequestDeviceID() Command { return Command{MID: MIDReqDID} }

// RequestProductCode asks for the product code string.
func RequestProductCode() Command { return Command{MID: MIDReqProductCode} }

// RequestHardwareVersion asks for the hardware revision.
func RequestHardwareVersion() Command { return Command{MID: MIDReqHardwareVersion} }

// RequestFirmwareRevision asks for the firmware revision.
func RequestFirmwareRevision() Command { return Command{MID: MIDReqFWRev} }

// RunSelfTest starts the built-in self test.
func RunSelfTest() Command { return Command{MID: MIDRunSelfTest} }

// RequestBaudrate asks for the current baud rate code.
func RequestBaudrate() Command { return Command{MID: MIDReqBaudrate} }

// RequestErrorMode asks for the current error mode.
func RequestErrorMode() Command { return Command{MID: MIDReqErrorMode} }

// SetErrorMode selects how the device reports errors.
func SetErrorMode(mode byte) Command {
	return Command{MID: MIDSetErrorMode, Data: []byte{0x00, mode}}
}

// baudCodes maps a line rate to the device's baud rate code.
var baudCodes = map[int]byte{
	921600: 0x80,
	460800: 0x00,
	230400: 0x01,
	115200: 0x02,
	76800:  0x03,
	57600:  0x04,
	38400:  0x05,
	28800:  0x06,
	19200:  0x07,
	14400:  0x08,
	9600:   0x09,
	4800:   0x0B,
}

// BaudCode returns the device code for a line rate.
func BaudCode(rate int) (byte, error) {
	code, ok := baudCodes[rate]
	if !ok {
		return 0, fmt.Errorf("mt: unsupported baud rate %d", rate)
	}
	return code, nil
}

// SetBaudrate changes the device line rate. It takes effect after a
// Reset.
func SetBaudrate(rate int) (Command, error) {
	code, err := BaudCode(rate)
	if err != nil {
		return Command{}, err
	}
	return Command{MID: MIDSetBaudrate, Data: []byte{code}}, nil
}
