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
	"os"
	"time"

	"github.com/kraklabs/codegraph/internal/bootstrap"
	"github.com/kraklabs/codegraph/internal/config"
	"github.com/kraklabs/codegraph/internal/output"
	"github.com/kraklabs/codegraph/internal/ui"
)

// StatusResult is the status command's output shape, local to the
// embedded graph store rather than a distributed hub (there is no
// query API, so this reports index-state/checkpoint bookkeeping only,
// not arbitrary graph counts).
type StatusResult struct {
	ProjectID            string    `json:"project_id"`
	DataDir              string    `json:"data_dir"`
	Connected            bool      `json:"connected"`
	HasIndexState        bool      `json:"has_index_state"`
	FilesIndexed         int       `json:"files_indexed"`
	LastIndexedAt        time.Time `json:"last_indexed_at,omitempty"`
	CommitSHA            string    `json:"commit_sha,omitempty"`
	IncompleteAnalysisID string    `json:"incomplete_analysis_id,omitempty"`
	IncompletePhase      string    `json:"incomplete_phase,omitempty"`
	Error                string    `json:"error,omitempty"`
}

// runStatus executes the 'status' CLI command, reporting the embedded
// graph store's index state and any unfinished checkpoint for the
// current project.
func runStatus(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jsonOut := fs.Bool("json", globals.JSON, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codegraph status [options]

Shows the indexing status of the current project.

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

	result := queryStatus(cfg)

	if *jsonOut {
		if err := output.JSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	printStatus(result)
}

func queryStatus(cfg *config.Config) *StatusResult {
	result := &StatusResult{ProjectID: cfg.ProjectID}

	store, err := bootstrap.OpenProject(bootstrap.ProjectConfig{ProjectID: cfg.ProjectID, DataDir: cfg.GraphStore.DataDir, BatchTarget: cfg.Indexing.BatchTarget}, slog.Default())
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer func() { _ = store.Close() }()
	result.Connected = true

	ctx := context.Background()
	if state, err := store.LoadIndexState(ctx, cfg.ProjectID); err == nil && state != nil {
		result.HasIndexState = true
		result.FilesIndexed = state.TotalFilesIndexed
		result.LastIndexedAt = state.LastIndexedAt
		result.CommitSHA = state.CommitSHA
	}

	if cp, err := store.LoadIncompleteCheckpoint(ctx, cfg.ProjectID); err == nil && cp != nil {
		result.IncompleteAnalysisID = cp.AnalysisID
		result.IncompletePhase = string(cp.Phase)
	}

	return result
}

func printStatus(result *StatusResult) {
	ui.Header(fmt.Sprintf("Project: %s", result.ProjectID))
	fmt.Println()

	if result.Error != "" {
		ui.Errorf("Cannot open graph store: %s", result.Error)
		return
	}

	fmt.Printf("%s %s\n", ui.Label("Connected:"), ui.DimText("yes"))
	if !result.HasIndexState {
		ui.Warning("No index state found. Run 'codegraph analyze' to index this repository.")
		return
	}

	fmt.Printf("%s %s\n", ui.Label("Files indexed:"), ui.CountText(result.FilesIndexed))
	if result.CommitSHA != "" {
		fmt.Printf("%s %s\n", ui.Label("Last commit:"), result.CommitSHA)
	}
	fmt.Printf("%s %s\n", ui.Label("Last indexed at:"), result.LastIndexedAt.Format(time.RFC3339))

	if result.IncompleteAnalysisID != "" {
		fmt.Println()
		ui.Warningf("Incomplete analysis %s stalled at phase %q. Re-run 'codegraph analyze' to resume.", result.IncompleteAnalysisID, result.IncompletePhase)
	}
}
