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

// Package checkpoint implements the CheckpointManager: every checkpoint is
// a row in the graph store itself, via graphstore.GraphStore, rather than
// a local-disk file. The checkpoint must survive on the same storage
// substrate as the graph it describes, so a machine migration cannot
// strand one without the other.
package checkpoint

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kraklabs/codegraph/internal/graphstore"
	"github.com/kraklabs/codegraph/internal/model"
)

// Manager creates, advances and completes Checkpoints for one analysis run.
type Manager struct {
	store  graphstore.GraphStore
	logger *slog.Logger
}

// New creates a CheckpointManager backed by store.
func New(store graphstore.GraphStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger}
}

// Create starts a new running Checkpoint for (repositoryID, analysisID) and
// persists it immediately so a crash before the first batch still leaves a
// resumable record.
func (m *Manager) Create(ctx context.Context, repositoryID, analysisID string, isFullReindex bool, reason string) (*model.Checkpoint, error) {
	cp := &model.Checkpoint{
		AnalysisID:     analysisID,
		RepositoryID:   repositoryID,
		Phase:          model.PhaseCloning,
		IsFullReindex:  isFullReindex,
		IndexingReason: reason,
		Status:         model.CheckpointRunning,
		LastUpdated:    time.Now(),
	}
	if err := m.save(ctx, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// UpdatePhase advances cp.Phase and persists it, mirroring the
// AnalyzerOrchestrator's 13-step sequence.
func (m *Manager) UpdatePhase(ctx context.Context, cp *model.Checkpoint, phase model.Phase) error {
	cp.Phase = phase
	return m.save(ctx, cp)
}

// MarkBatchComplete records one committed batch's progress. Called from a
// GraphStore batch-complete callback so the checkpoint's view of progress
// never runs ahead of what is actually durable: a checkpoint never claims
// a batch complete before its transaction commits.
func (m *Manager) MarkBatchComplete(ctx context.Context, cp *model.Checkpoint, batchIndex, totalBatches int, filesInBatch []string, nodesAdded, relationshipsAdded int) error {
	cp.BatchIndex = batchIndex
	cp.TotalBatches = totalBatches
	cp.NodesCreated += nodesAdded
	cp.RelationshipsCreated += relationshipsAdded
	if len(filesInBatch) > 0 {
		cp.AddProcessedFiles(filesInBatch)
	}
	return m.save(ctx, cp)
}

// LoadIncomplete returns the repository's most recent running or failed
// checkpoint, if any, for resume-from-crash.
func (m *Manager) LoadIncomplete(ctx context.Context, repositoryID string) (*model.Checkpoint, error) {
	cp, err := m.store.LoadIncompleteCheckpoint(ctx, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("load incomplete checkpoint: %w", err)
	}
	return cp, nil
}

// Complete marks cp completed and releases the repository lock so a
// subsequent analysis run may start.
func (m *Manager) Complete(ctx context.Context, cp *model.Checkpoint) error {
	cp.Phase = model.PhaseCompleted
	cp.Status = model.CheckpointCompleted
	if err := m.save(ctx, cp); err != nil {
		return err
	}
	if err := m.store.ReleaseRepositoryLock(ctx, cp.RepositoryID, cp.AnalysisID); err != nil {
		return fmt.Errorf("release repository lock: %w", err)
	}
	return nil
}

// Fail marks cp failed with errMsg and releases the repository lock, so a
// failed run does not permanently block future analyses of the same
// repository. The checkpoint itself stays resumable: GraphStore indexes
// the most recent failed checkpoint separately from the lock, so the next
// LoadIncomplete still finds it even though the lock is free.
func (m *Manager) Fail(ctx context.Context, cp *model.Checkpoint, errMsg string) error {
	cp.Status = model.CheckpointFailed
	cp.ErrorMessage = errMsg
	if err := m.save(ctx, cp); err != nil {
		return err
	}
	if err := m.store.ReleaseRepositoryLock(ctx, cp.RepositoryID, cp.AnalysisID); err != nil {
		return fmt.Errorf("release repository lock: %w", err)
	}
	return nil
}

func (m *Manager) save(ctx context.Context, cp *model.Checkpoint) error {
	cp.LastUpdated = time.Now()
	if err := m.store.SaveCheckpoint(ctx, *cp); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
