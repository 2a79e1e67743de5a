// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	goutils "go.viam.com/utils"

	"github.com/relabs-tech/xsens_computer/internal/config"
	"github.com/relabs-tech/xsens_computer/internal/imu"
	"github.com/relabs-tech/xsens_computer/internal/orientation"
	"github.com/relabs-tech/xsens_computer/internal/xsens"
)

// headingOf builds a heading message straight from the driver.
func headingOf(d *xsens.Driver, rng orientation.Range, now time.Time) imu.Heading {
	bias, calibrated := d.Bias()
	h := imu.Heading{
		Time:       now,
		Pose:       d.Heading(rng),
		Range:      rng.String(),
		Axes:       d.Axes().String(),
		Calibrated: calibrated,
		Bias:       bias,
		Stats:      d.Stats(),
	}
	if err := d.Err(); err != nil {
		h.Error = err.Error()
	}
	return h
}

// printHeadings writes one line per interval until ctx ends or the
// driver stops.
func printHeadings(ctx context.Context, d *xsens.Driver, rng orientation.Range, out io.Writer, interval time.Duration) error {
	for goutils.SelectContextOrWait(ctx, interval) {
		if _, err := fmt.Fprintln(out, FormatHeading(headingOf(d, rng, time.Now()))); err != nil {
			return err
		}
		if err := d.Err(); err != nil {
			return err
		}
	}
	return nil
}

// RunLocalConsole drives the MTi directly, without MQTT, and prints the
// heading to out until ctx ends.
func RunLocalConsole(ctx context.Context, cfg *config.Config, out io.Writer, logger *zap.SugaredLogger) (err error) {
	rng, err := orientation.ParseRange(cfg.HeadingRange)
	if err != nil {
		return err
	}
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

	if cfg.CalibrationSamples > 0 {
		fmt.Fprintf(out, "calibrating over %d samples, keep the device still\n", cfg.CalibrationSamples)
		timeout := time.Duration(cfg.CalibrationTimeoutMS) * time.Millisecond
		if _, err := calibrateDriver(ctx, driver, cfg.CalibrationSamples, timeout); err != nil {
			logger.Warnw("calibration failed, continuing uncalibrated", "error", err)
		}
	}

	return printHeadings(ctx, driver, rng, out, time.Duration(cfg.PublishInterval)*time.Millisecond)
}
