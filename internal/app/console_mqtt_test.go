package app

import (
	"bytes"
	"strings"
	"testing"

	"go.viam.com/test"

	"github.com/relabs-tech/xsens_computer/internal/imu"
	"github.com/relabs-tech/xsens_computer/internal/orientation"
	"github.com/relabs-tech/xsens_computer/internal/xsens"
)

func TestFormatHeading(t *testing.T) {
	line := FormatHeading(imu.Heading{
		Pose:       orientation.Pose{Pitch: 1, Roll: -2, Yaw: 350.5},
		Axes:       "all",
		Range:      "360",
		Calibrated: true,
		Stats:      xsens.Stats{Messages: 10, ChecksumErrors: 1, FieldErrors: 2},
	})
	test.That(t, line, test.ShouldContainSubstring, "YAW= 350.50")
	test.That(t, line, test.ShouldContainSubstring, "(all, 360, cal)")
	test.That(t, line, test.ShouldContainSubstring, "bad=3")
	test.That(t, strings.Contains(line, "ERROR"), test.ShouldBeFalse)

	line = FormatHeading(imu.Heading{Error: "port closed"})
	test.That(t, line, test.ShouldContainSubstring, "uncal")
	test.That(t, line, test.ShouldContainSubstring, "ERROR: port closed")
}

func TestConsoleHandler(t *testing.T) {
	var out bytes.Buffer
	h := consoleHandler(&out)
	test.That(t, h(headingPayload(t, 12)), test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldContainSubstring, "YAW=  12.00")
	test.That(t, h([]byte("garbage")), test.ShouldNotBeNil)
}
