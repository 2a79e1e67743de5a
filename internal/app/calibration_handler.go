// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/relabs-tech/xsens_computer/internal/config"
	"github.com/relabs-tech/xsens_computer/internal/xsens"
)

// CalibrationResult is the outcome of a standalone gyro calibration.
type CalibrationResult struct {
	Version   int         `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Axes      string      `json:"axes"`
	Samples   int         `json:"samples"`
	Bias      [3]float64  `json:"gyro_bias"` // rad/s, device axes
	Stats     xsens.Stats `json:"stats"`
}

// calibrateDriver runs one calibration on a started driver.
func calibrateDriver(ctx context.Context, d *xsens.Driver, samples int, timeout time.Duration) (CalibrationResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	bias, err := d.Calibrate(ctx, samples)
	if err != nil {
		return CalibrationResult{}, err
	}
	return CalibrationResult{
		Version:   1,
		Timestamp: time.Now(),
		Axes:      d.Axes().String(),
		Samples:   samples,
		Bias:      bias,
		Stats:     d.Stats(),
	}, nil
}

// RunCalibration opens the device, measures the gyro bias over samples
// packets and writes the result to out as JSON.
func RunCalibration(ctx context.Context, cfg *config.Config, samples int, out io.Writer, logger *zap.SugaredLogger) (err error) {
	driver, err := openDriver(cfg, logger.Named("xsens"))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, driver.Close())
	}()
	if err := driver.Start(); err != nil {
		return err
	}

	logger.Infof("calibration: keep the device still for %d samples", samples)
	result, err := calibrateDriver(ctx, driver, samples, time.Duration(cfg.CalibrationTimeoutMS)*time.Millisecond)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
