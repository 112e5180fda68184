// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kraklabs/codegraph/internal/config"
	"github.com/kraklabs/codegraph/internal/errors"
	"github.com/kraklabs/codegraph/internal/ui"
)

// runServe executes the 'serve' CLI command: a long-running daemon mode
// that re-runs the analyze pipeline on a fixed interval until interrupted.
// Unlike analyze, serve always keeps the Prometheus /metrics endpoint
// enabled, since a daemon with no observability surface defeats its own
// purpose.
func runServe(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	interval := fs.Duration("interval", 5*time.Minute, "Interval between analysis passes")
	metricsAddr := fs.String("metrics-addr", ":9090", "HTTP listen address for Prometheus metrics")
	parseWorkers := fs.Int("parse-workers", 4, "Number of parallel parse workers per pass")
	runOnce := fs.Bool("run-once", false, "Run a single analysis pass and exit (for testing the schedule wiring)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codegraph serve [options]

Description:
  Runs 'codegraph analyze' on a fixed interval until interrupted, with a
  Prometheus /metrics endpoint kept alive for the whole process lifetime.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  codegraph serve
  codegraph serve --interval 10m --metrics-addr :9100
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ui.Header("codegraph serve")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot load project configuration",
			err.Error(),
			"Run 'codegraph init' to create .codegraph/project.yaml",
			err,
		), globals.JSON)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: *metricsAddr, Handler: mux}
	go func() {
		logger.Info("metrics.http.start", "addr", *metricsAddr, "path", "/metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics.http.error", "err", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("shutdown.signal", "signal", sig.String())
		cancel()
	}()

	cwd, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot get current directory", err.Error(), "", err), globals.JSON)
	}

	ui.Successf("Scheduled analysis every %s (project %s)", interval.String(), cfg.ProjectID)

	for {
		result := runAnalysis(ctx, logger, cfg, cwd, false, *parseWorkers, globals)
		printAnalyzeResult(cfg.ProjectID, result)

		if *runOnce {
			_ = srv.Close()
			return
		}

		select {
		case <-ctx.Done():
			_ = srv.Close()
			ui.Info("serve: shutting down")
			return
		case <-time.After(*interval):
		}
	}
}
