// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/xsens_computer/internal/app"
	"github.com/relabs-tech/xsens_computer/internal/config"
	"github.com/relabs-tech/xsens_computer/internal/logging"
)

func main() {
	configPath := flag.String("config", "./xsens_config.txt", "path to configuration file")
	samples := flag.Int("samples", 500, "number of packets to average")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	logger, err := logging.New("calibration", cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting xsens gyro calibration")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunCalibration(ctx, cfg, *samples, os.Stdout, logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}
