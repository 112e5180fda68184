// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kraklabs/codegraph/internal/analysis"
	"github.com/kraklabs/codegraph/internal/bootstrap"
	"github.com/kraklabs/codegraph/internal/config"
	"github.com/kraklabs/codegraph/internal/model"
	"github.com/kraklabs/codegraph/internal/parse"
)

// runAnalyze executes the 'analyze' CLI command: it runs the
// AnalyzerOrchestrator's full scan/parse/resolve/store sequence against
// the current repository, using configuration from .codegraph/project.yaml.
//
// Flags:
//   - --full: Force a full re-analysis, ignoring the prior index state
//   - --force-full-reindex: Delete all local data and analyze from scratch
//   - --parse-workers: Number of parallel parse workers (default: 4)
//   - --debug: Enable debug logging
//   - --metrics-addr: HTTP address for Prometheus metrics (empty to disable)
func runAnalyze(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	full := fs.Bool("full", false, "Force full re-analysis")
	forceFullReindex := fs.Bool("force-full-reindex", false, "Delete local data and analyze from scratch")
	parseWorkers := fs.Int("parse-workers", 4, "Number of parallel parse workers")
	debug := fs.Bool("debug", false, "Enable debug logging")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codegraph analyze [options]

Analyzes the current repository using configuration from
.codegraph/project.yaml and stores the resulting graph locally in
~/.codegraph/data/<project_id>/

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux}
			logger.Info("metrics.http.start", "addr", *metricsAddr, "path", "/metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

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
		fmt.Fprintf(os.Stderr, "Error: cannot get current directory: %v\n", err)
		os.Exit(1)
	}

	if *forceFullReindex {
		deleteProjectData(cfg, logger)
		if _, err := bootstrap.InitProject(bootstrap.ProjectConfig{ProjectID: cfg.ProjectID, DataDir: cfg.GraphStore.DataDir, BatchTarget: cfg.Indexing.BatchTarget}, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot initialize graph store: %v\n", err)
			os.Exit(1)
		}
		*full = true
	}

	result := runAnalysis(ctx, logger, cfg, cwd, *full, *parseWorkers, globals)
	printAnalyzeResult(cfg.ProjectID, result)
}

func deleteProjectData(cfg *config.Config, logger *slog.Logger) {
	dataDir := cfg.GraphStore.DataDir
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return
		}
		dataDir = filepath.Join(homeDir, ".codegraph", "data", cfg.ProjectID)
	}
	if err := os.RemoveAll(dataDir); err == nil {
		logger.Info("data.deleted", "path", dataDir)
	} else if !os.IsNotExist(err) {
		logger.Warn("data.delete.error", "path", dataDir, "err", err)
	}
}

// resolveHeadSHA returns repoPath's current git HEAD SHA, or "" if repoPath
// isn't a git working tree or the git binary isn't available. CommitSHA is
// advisory only (see internal/incremental) — an empty result just means the
// IncrementalIndexManager falls back to pure content-hash comparison.
func resolveHeadSHA(repoPath string) string {
	cmd := exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = repoPath
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// runAnalysis wires the embedded graph store, the parser registry, and the
// AnalyzerOrchestrator together and runs one analysis pass.
func runAnalysis(ctx context.Context, logger *slog.Logger, cfg *config.Config, repoPath string, full bool, parseWorkers int, globals GlobalFlags) *analysis.AnalyzeResult {
	store, err := bootstrap.OpenProject(bootstrap.ProjectConfig{ProjectID: cfg.ProjectID, DataDir: cfg.GraphStore.DataDir, BatchTarget: cfg.Indexing.BatchTarget}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	parsers := parse.NewRegistry(logger)
	goParser := parse.NewGoParser(logger)
	if cfg.Indexing.MaxFileSizeBytes > 0 {
		goParser.SetMaxCodeTextSize(cfg.Indexing.MaxFileSizeBytes)
	}
	parsers.Register("go", goParser)

	orchestrator := analysis.New(store, parsers, logger)

	progressCfg := NewProgressConfig(globals)
	sink := newCLIProgressSink(progressCfg)

	opts := analysis.AnalyzeOptions{
		RepositoryContext: model.RepositoryContext{
			RepositoryID:  cfg.ProjectID,
			RootDirectory: repoPath,
		},
		ForceFullReindex: full,
		ProgressSink:     sink,
		ParseWorkers:     parseWorkers,
		IgnoreGlobs:      cfg.Indexing.Exclude,
		MaxFileSize:      cfg.Indexing.MaxFileSizeBytes,
		CommitSHA:        resolveHeadSHA(repoPath),
	}

	logger.Info("analyze.starting", "project_id", cfg.ProjectID, "repo_path", repoPath, "full", full)

	result, err := orchestrator.Run(ctx, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: analysis failed: %v\n", err)
		os.Exit(1)
	}
	return result
}

func printAnalyzeResult(projectID string, result *analysis.AnalyzeResult) {
	fmt.Println()
	fmt.Println("=== Analysis Complete ===")
	fmt.Printf("Project ID: %s\n", projectID)
	fmt.Printf("Files Scanned: %d\n", result.FilesScanned)
	fmt.Printf("Files Skipped: %d\n", result.FilesSkipped)
	fmt.Printf("Files Deleted: %d\n", result.FilesDeleted)
	fmt.Printf("Nodes Created: %d\n", result.NodesCreated)
	fmt.Printf("Relationships Created: %d\n", result.RelationshipsCreated)
	fmt.Printf("Incremental: %t\n", result.WasIncremental)
	if result.IndexingReason != "" {
		fmt.Printf("Reason: %s\n", result.IndexingReason)
	}

	if len(result.SkipReasons) > 0 {
		fmt.Println("\nSkipped Files:")
		for reason, count := range result.SkipReasons {
			fmt.Printf("  %s: %d\n", reason, count)
		}
	}

	homeDir, _ := os.UserHomeDir()
	fmt.Printf("\nData stored in: %s\n", filepath.Join(homeDir, ".codegraph", "data", projectID))
}
