package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"github.com/relabs-tech/xsens_computer/internal/config"
)

func TestRunCalibrationWithMockDevice(t *testing.T) {
	cfg := config.Default()
	cfg.MockDevice = true
	cfg.HeadingAxes = "yaw"
	cfg.CalibrationPollMS = 1

	var out bytes.Buffer
	err := RunCalibration(context.Background(), cfg, 4, &out, zaptest.NewLogger(t).Sugar())
	test.That(t, err, test.ShouldBeNil)

	var result CalibrationResult
	test.That(t, json.Unmarshal(out.Bytes(), &result), test.ShouldBeNil)
	test.That(t, result.Axes, test.ShouldEqual, "yaw")
	test.That(t, result.Samples, test.ShouldEqual, 4)
	// only yaw is calibrated in yaw mode
	test.That(t, result.Bias[0], test.ShouldEqual, 0.0)
	test.That(t, result.Bias[2], test.ShouldNotEqual, 0.0)
	test.That(t, result.Stats.Measurements, test.ShouldBeGreaterThan, uint64(3))
}

func TestRunCalibrationTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.MockDevice = true
	cfg.CalibrationPollMS = 1
	cfg.CalibrationTimeoutMS = 20

	var out bytes.Buffer
	err := RunCalibration(context.Background(), cfg, 1000000, &out, zaptest.NewLogger(t).Sugar())
	test.That(t, errors.Is(err, context.DeadlineExceeded), test.ShouldBeTrue)
	test.That(t, out.Len(), test.ShouldEqual, 0)
}
