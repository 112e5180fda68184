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
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/kraklabs/codegraph/internal/analysis"
	"github.com/kraklabs/codegraph/internal/model"
	"github.com/kraklabs/codegraph/internal/ui"
)

// ProgressConfig determines if and how progress should be displayed.
type ProgressConfig struct {
	// Enabled indicates whether progress bars should be shown. Disabled
	// when --json or --quiet are set, or when stderr is not a TTY.
	Enabled bool

	// Writer is where progress output goes (always os.Stderr).
	Writer io.Writer

	// NoColor disables colored output in progress bars.
	NoColor bool
}

// NewProgressConfig creates a progress configuration from global flags and
// TTY detection.
func NewProgressConfig(globals GlobalFlags) ProgressConfig {
	enabled := !globals.Quiet && !globals.JSON && isatty.IsTerminal(os.Stderr.Fd())

	return ProgressConfig{
		Enabled: enabled,
		Writer:  os.Stderr,
		NoColor: globals.NoColor,
	}
}

// NewProgressBar creates a progress bar with consistent styling. Returns
// nil if progress is disabled.
func NewProgressBar(cfg ProgressConfig, total int64, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}

	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.Writer),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(!cfg.NoColor),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// NewSpinner creates an indeterminate spinner for phases with an unknown
// total. Returns nil if progress is disabled.
func NewSpinner(cfg ProgressConfig, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}

	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.Writer),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionEnableColorCodes(!cfg.NoColor),
	)
}

// cliProgressSink implements analysis.ProgressSink with one spinner per
// phase: PhaseChanged finishes the previous phase's spinner and starts a
// new one labelled for the new phase.
type cliProgressSink struct {
	cfg  ProgressConfig
	bar  *progressbar.ProgressBar
	last model.Phase
}

func newCLIProgressSink(cfg ProgressConfig) *cliProgressSink {
	return &cliProgressSink{cfg: cfg}
}

func (s *cliProgressSink) PhaseChanged(phase model.Phase) {
	if s.bar != nil {
		_ = s.bar.Finish()
	}
	s.last = phase
	s.bar = NewSpinner(s.cfg, phaseLabel(phase))
}

func (s *cliProgressSink) Progress(phase model.Phase, pct float64, totals map[string]int) {
	if s.bar == nil {
		return
	}
	if total, ok := totals["total"]; ok && total > 0 {
		done := int(pct * float64(total) / 100)
		_ = s.bar.Set(done)
		return
	}
	_ = s.bar.Set(int(pct))
}

func (s *cliProgressSink) Log(level, phase, message string) {
	if s.cfg.Enabled {
		return
	}
	switch level {
	case "warn":
		ui.Warning(message)
	case "error":
		ui.Error(message)
	default:
		ui.Info(message)
	}
}

func (s *cliProgressSink) Completed(success bool, result analysis.AnalyzeResult) {
	if s.bar != nil {
		_ = s.bar.Finish()
	}
}

func phaseLabel(phase model.Phase) string {
	switch phase {
	case model.PhaseCloning:
		return "Loading repository"
	case model.PhaseIndexingFiles:
		return "Scanning files"
	case model.PhaseIncrementalCheck:
		return "Determining changed files"
	case model.PhaseParsing:
		return "Parsing"
	case model.PhaseStoringNodes:
		return "Storing nodes"
	case model.PhaseStoringRelations:
		return "Storing relationships"
	case model.PhaseComputingPageRank:
		return "Computing PageRank"
	case model.PhaseSavingIndexState:
		return "Saving index state"
	case model.PhaseCompleted:
		return "Completed"
	default:
		return string(phase)
	}
}
