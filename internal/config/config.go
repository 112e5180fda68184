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

// Package config loads and saves the .codegraph/project.yaml project file,
// trimmed to the fields an analysis-only tool needs (no embedding provider,
// no LLM narrative settings, no remote hub/edge-cache addresses).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Dir is the project-local configuration directory name.
const Dir = ".codegraph"

// FileName is the configuration file name inside Dir.
const FileName = "project.yaml"

// Config is the parsed contents of .codegraph/project.yaml.
type Config struct {
	// ProjectID identifies this repository's data on disk and in the graph
	// store. Defaults to the repository directory's base name.
	ProjectID string `yaml:"project_id"`

	// GraphStore configures the embedded bbolt-backed graph database.
	GraphStore GraphStoreConfig `yaml:"graph_store"`

	// Indexing controls what AnalyzerOrchestrator.Run scans and batches.
	Indexing IndexingConfig `yaml:"indexing"`

	// Metrics controls the optional Prometheus HTTP endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// GraphStoreConfig locates the embedded graph database on disk.
type GraphStoreConfig struct {
	// DataDir overrides the default ~/.codegraph/data directory.
	DataDir string `yaml:"data_dir,omitempty"`
}

// IndexingConfig controls what AnalyzerOrchestrator.Run scans and batches.
type IndexingConfig struct {
	// Exclude holds additional doublestar glob patterns appended to
	// scan.DefaultIgnoreGlobs.
	Exclude []string `yaml:"exclude,omitempty"`

	// BatchTarget is the target batch size for node/relationship commits,
	// overriding graphstore's defaultNodeBatchSize/defaultRelBatchSize
	// when non-zero.
	BatchTarget int `yaml:"batch_target,omitempty"`

	// MaxFileSizeBytes skips files larger than this during scanning.
	// Zero means no limit beyond scan.Scanner's own default.
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes,omitempty"`
}

// MetricsConfig controls the optional Prometheus HTTP endpoint.
type MetricsConfig struct {
	// Addr is the listen address for the /metrics endpoint. Empty disables it.
	Addr string `yaml:"addr,omitempty"`
}

// DefaultConfig returns the configuration created by `codegraph init` before
// any interactive prompting or flag overrides are applied.
func DefaultConfig(projectID string) *Config {
	return &Config{
		ProjectID: projectID,
		Indexing: IndexingConfig{
			BatchTarget: 500,
		},
	}
}

// ConfigDir returns the .codegraph directory under repoPath.
func ConfigDir(repoPath string) string {
	return filepath.Join(repoPath, Dir)
}

// ConfigPath returns the project.yaml path under repoPath.
func ConfigPath(repoPath string) string {
	return filepath.Join(ConfigDir(repoPath), FileName)
}

// LoadConfig reads and parses the project.yaml file at path. An empty path
// falls back to ./.codegraph/project.yaml under the current directory.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		path = ConfigPath(cwd)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator-supplied config location
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("%s: project_id must not be empty", path)
	}
	return &cfg, nil
}

// SaveConfig marshals cfg as YAML and writes it to path.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
