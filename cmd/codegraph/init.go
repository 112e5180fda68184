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
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kraklabs/codegraph/internal/bootstrap"
	"github.com/kraklabs/codegraph/internal/config"
)

// initFlags holds parsed flags for the init command.
type initFlags struct {
	force, nonInteractive bool
	projectID             string
}

// runInit executes the 'init' CLI command, creating a .codegraph/project.yaml
// configuration file.
//
// Flags:
//   - --force: Overwrite existing configuration (default: false)
//   - -y: Non-interactive mode, use all defaults (default: false)
//   - --project-id: Project identifier (default: directory name)
func runInit(args []string) {
	flags := parseInitFlags(args)

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot get current directory: %v\n", err)
		os.Exit(1)
	}

	configPath := config.ConfigPath(cwd)
	if _, err := os.Stat(configPath); err == nil && !flags.force {
		fmt.Fprintf(os.Stderr, "Error: %s already exists. Use --force to overwrite.\n", configPath)
		os.Exit(1)
	}

	cfg := createInitConfig(cwd, flags)
	reader := bufio.NewReader(os.Stdin)

	if !flags.nonInteractive {
		runInteractiveConfig(reader, cfg)
	}

	saveInitConfig(cwd, configPath, cfg)
	printNextSteps()
}

func parseInitFlags(args []string) initFlags {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	var f initFlags
	fs.BoolVar(&f.force, "force", false, "Overwrite existing configuration")
	fs.BoolVar(&f.nonInteractive, "y", false, "Non-interactive mode (use defaults)")
	fs.StringVar(&f.projectID, "project-id", "", "Project identifier")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codegraph init [options]

Creates .codegraph/project.yaml configuration file.

Examples:
  codegraph init                     Interactive setup
  codegraph init -y                  Use all defaults
  codegraph init --project-id svc-a  Set an explicit project id

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	return f
}

func createInitConfig(cwd string, f initFlags) *config.Config {
	pid := f.projectID
	if pid == "" {
		pid = filepath.Base(cwd)
	}
	return config.DefaultConfig(pid)
}

func runInteractiveConfig(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("codegraph Project Configuration")
	fmt.Println("===============================")
	fmt.Println()

	cfg.ProjectID = prompt(reader, "Project ID", cfg.ProjectID)
	dataDir := prompt(reader, "Graph store data directory (blank for default)", cfg.GraphStore.DataDir)
	cfg.GraphStore.DataDir = dataDir
	fmt.Println()
}

func saveInitConfig(cwd, configPath string, cfg *config.Config) {
	if err := os.MkdirAll(config.ConfigDir(cwd), 0750); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot create .codegraph directory: %v\n", err)
		os.Exit(1)
	}
	if err := config.SaveConfig(cfg, configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot save configuration: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created %s\n", configPath)
	if _, err := bootstrap.InitProject(bootstrap.ProjectConfig{ProjectID: cfg.ProjectID, DataDir: cfg.GraphStore.DataDir, BatchTarget: cfg.Indexing.BatchTarget}, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot initialize graph store: %v\n", err)
		os.Exit(1)
	}
	addToGitignore(cwd)
}

func printNextSteps() {
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit .codegraph/project.yaml if needed")
	fmt.Println("  2. Run 'codegraph analyze' to index your repository")
	fmt.Println("  3. Run 'codegraph status' to verify indexing")
}

// prompt displays an interactive prompt and reads user input from stdin.
// If the user presses Enter without providing input, defaultValue is
// returned.
func prompt(reader *bufio.Reader, label, defaultValue string) string {
	if defaultValue != "" {
		fmt.Printf("%s [%s]: ", label, defaultValue)
	} else {
		fmt.Printf("%s: ", label)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultValue
	}
	return input
}

// addToGitignore adds .codegraph/ to the project's .gitignore file if not
// already present. Silently returns if .gitignore does not exist.
func addToGitignore(dir string) {
	gitignorePath := filepath.Join(dir, ".gitignore")

	content, err := os.ReadFile(gitignorePath) //nolint:gosec // G304: gitignorePath built from repo dir
	if err != nil {
		return
	}

	lines := strings.Split(string(content), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == ".codegraph/" || line == ".codegraph" || line == "/.codegraph/" || line == "/.codegraph" {
			return
		}
	}

	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_WRONLY, 0600) //nolint:gosec // G304: gitignorePath built from repo dir
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()

	if len(content) > 0 && content[len(content)-1] != '\n' {
		_, _ = f.WriteString("\n")
	}

	_, _ = f.WriteString("\n# codegraph configuration\n.codegraph/\n")
	fmt.Println("Added .codegraph/ to .gitignore")
}
