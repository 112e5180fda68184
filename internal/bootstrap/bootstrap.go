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

package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kraklabs/codegraph/internal/graphstore"
)

// ProjectConfig holds configuration for initializing a repository's graph store.
type ProjectConfig struct {
	// ProjectID is the logical project identifier.
	ProjectID string

	// DataDir is the directory where the bbolt database lives.
	// Defaults to ~/.codegraph/data/<project_id>.
	DataDir string

	// BatchTarget overrides the graph store's node/relationship batch size
	// when non-zero. See graphstore.BoltConfig.NodeBatchSize.
	BatchTarget int
}

// ProjectInfo holds information about an initialized project.
type ProjectInfo struct {
	ProjectID string
	DataDir   string
}

func defaultDataDir(projectID string) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(homeDir, ".codegraph", "data", projectID), nil
}

// InitProject initializes a new codegraph project's bbolt-backed graph
// store. This function is idempotent: calling it multiple times is safe,
// since NewBoltStore creates its buckets with CreateBucketIfNotExists.
//
// Parameters:
//   - config: project configuration
//   - logger: optional logger (nil uses default)
//
// Returns information about the initialized project.
func InitProject(config ProjectConfig, logger *slog.Logger) (*ProjectInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required")
	}
	if config.DataDir == "" {
		dataDir, err := defaultDataDir(config.ProjectID)
		if err != nil {
			return nil, err
		}
		config.DataDir = dataDir
	}

	logger.Info("bootstrap.project.init.start", "project_id", config.ProjectID, "data_dir", config.DataDir)

	store, err := graphstore.NewBoltStore(graphstore.BoltConfig{DataDir: config.DataDir, NodeBatchSize: config.BatchTarget, RelBatchSize: config.BatchTarget}, logger)
	if err != nil {
		return nil, fmt.Errorf("create graph store: %w", err)
	}
	defer func() { _ = store.Close() }()

	logger.Info("bootstrap.project.init.success", "project_id", config.ProjectID, "data_dir", config.DataDir)

	return &ProjectInfo{ProjectID: config.ProjectID, DataDir: config.DataDir}, nil
}

// OpenProject opens an existing codegraph project's graph store. The
// caller is responsible for calling Close on the returned store.
func OpenProject(config ProjectConfig, logger *slog.Logger) (graphstore.GraphStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required")
	}
	if config.DataDir == "" {
		dataDir, err := defaultDataDir(config.ProjectID)
		if err != nil {
			return nil, err
		}
		config.DataDir = dataDir
	}

	if _, err := os.Stat(config.DataDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("project not found: %s (run 'codegraph init' first)", config.DataDir)
	}

	logger.Debug("bootstrap.project.open", "project_id", config.ProjectID, "data_dir", config.DataDir)

	store, err := graphstore.NewBoltStore(graphstore.BoltConfig{DataDir: config.DataDir, NodeBatchSize: config.BatchTarget, RelBatchSize: config.BatchTarget}, logger)
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}
	return store, nil
}

// ListProjects returns the project IDs found in the default data directory.
func ListProjects() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}

	dataDir := filepath.Join(homeDir, ".codegraph", "data")
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var projects []string
	for _, entry := range entries {
		if entry.IsDir() {
			projects = append(projects, entry.Name())
		}
	}
	return projects, nil
}
