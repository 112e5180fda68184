// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package main implements the codegraph CLI: a repository analyzer that
// scans, parses, and resolves a labeled property graph of code entities
// into an embedded graph store.
//
// Usage:
//
//	codegraph init                 Create .codegraph/project.yaml configuration
//	codegraph analyze              Analyze the current repository
//	codegraph status [--json]      Show project status
//	codegraph reset --yes          Delete local indexed data
//	codegraph serve                Run analyze on a schedule (daemon mode)
//	codegraph completion <shell>   Print a shell completion script
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kraklabs/codegraph/internal/ui"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags carries the top-level flags every subcommand's output
// formatting and progress rendering is sensitive to.
type GlobalFlags struct {
	JSON    bool
	Quiet   bool
	NoColor bool
	Verbose int
}

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		configPath  = flag.String("config", "", "Path to .codegraph/project.yaml (default: ./.codegraph/project.yaml)")
		jsonOutput  = flag.Bool("json", false, "Emit machine-readable JSON output")
		quiet       = flag.Bool("quiet", false, "Suppress progress output")
		noColor     = flag.Bool("no-color", false, "Disable colored output")
		verbose     = flag.Int("verbose", 0, "Increase log verbosity (0-2)")
	)
	flag.BoolVar(quiet, "q", false, "Suppress progress output (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `codegraph - repository code graph analyzer

Usage:
  codegraph <command> [options]

Commands:
  init          Create .codegraph/project.yaml configuration
  analyze       Analyze the current repository and store the resulting graph
  status        Show project status
  reset         Delete local indexed data (destructive!)
  serve         Run analyze on a schedule (daemon mode)
  completion    Print a shell completion script (bash, zsh, fish)

Global Options:
  --config      Path to .codegraph/project.yaml
  --json        Emit machine-readable JSON output
  --quiet, -q   Suppress progress output
  --no-color    Disable colored output
  --verbose     Increase log verbosity (0-2)
  --version     Show version and exit

Examples:
  codegraph init                       Create configuration interactively
  codegraph analyze                    Analyze current repository
  codegraph analyze --full             Force full re-analysis
  codegraph status --json              Output status as JSON
  codegraph serve --interval=10m       Re-analyze every 10 minutes

Data Storage:
  Data is stored locally in ~/.codegraph/data/<project_id>/

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("codegraph version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	globals := GlobalFlags{JSON: *jsonOutput, Quiet: *quiet, NoColor: *noColor, Verbose: *verbose}
	if *noColor {
		ui.InitColors(true)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs)
	case "analyze":
		runAnalyze(cmdArgs, *configPath, globals)
	case "status":
		runStatus(cmdArgs, *configPath, globals)
	case "reset":
		runReset(cmdArgs, *configPath)
	case "serve":
		runServe(cmdArgs, *configPath, globals)
	case "completion":
		runCompletion(cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
