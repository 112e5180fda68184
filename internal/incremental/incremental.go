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

// Package incremental implements the IncrementalIndexManager: it classifies
// a fresh scan against the repository's last-committed IndexState to decide
// which files actually need re-parsing. State is persisted through
// graphstore.GraphStore as rows in the bbolt-backed store rather than a
// local manifest file.
package incremental

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kraklabs/codegraph/internal/graphstore"
	"github.com/kraklabs/codegraph/internal/model"
)

// Manager classifies scans against persisted IndexState and updates that
// state once an analysis run completes.
type Manager struct {
	store  graphstore.GraphStore
	logger *slog.Logger
}

// New creates an IncrementalIndexManager backed by store.
func New(store graphstore.GraphStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger}
}

// DetermineFilesToProcess classifies every scanned file: a file
// with no prior record, or whose content hash differs from the prior
// record, is "changed"; a file present in the prior state but absent from
// the current scan is "deleted"; everything else is "unchanged". No prior
// IndexState at all means a full reindex. repoRoot is optional (pass "" if
// unknown, e.g. a virtual repository) and only ever narrows the git-delta
// pre-filter consulted inside determineFilesToProcessWithHashVerification.
func (m *Manager) DetermineFilesToProcess(ctx context.Context, repositoryID, repoRoot string, scanned []model.FileInfo, commitSHA string) (model.IncrementalResult, error) {
	prior, err := m.store.LoadIndexState(ctx, repositoryID)
	if err != nil {
		return model.IncrementalResult{}, fmt.Errorf("load index state: %w", err)
	}
	if prior == nil {
		m.logger.Info("incremental.full_reindex", "repository_id", repositoryID, "reason", "no_prior_state")
		return model.IncrementalResult{
			ChangedFiles:  scanned,
			IsFullReindex: true,
			Reason:        "no_prior_state",
		}, nil
	}

	return m.determineFilesToProcessWithHashVerification(scanned, prior, repoRoot, commitSHA), nil
}

// determineFilesToProcessWithHashVerification applies an "advisory, not
// authoritative" rule for git metadata: a matching commitSHA
// only short-circuits the decision to treat every file as unchanged when
// every single scanned file's hash also still matches; any hash mismatch
// falls back to full hash-by-hash classification regardless of commitSHA.
// When repoRoot points at a git working tree, `git diff --name-status -M`
// against the prior commit is consulted as a fast pre-filter signal, but the
// per-file content hash always has the final word — git's delta never
// overrides a hash-confirmed verdict, it only flags disagreements worth
// logging (e.g. a file edited then reverted back to its prior content).
func (m *Manager) determineFilesToProcessWithHashVerification(scanned []model.FileInfo, prior *model.IndexState, repoRoot, commitSHA string) model.IncrementalResult {
	result := model.IncrementalResult{}

	candidates, gitDeltaOK := candidateChangedPaths(repoRoot, prior.CommitSHA)
	result.GitDeltaConsulted = gitDeltaOK

	seen := make(map[string]bool, len(scanned))
	allMatchPriorHash := commitSHA != "" && commitSHA == prior.CommitSHA

	for _, f := range scanned {
		seen[f.RelativePath] = true
		prevEntry, existed := prior.FilesIndexed[f.RelativePath]
		if !existed || prevEntry.Hash != f.ContentHash {
			allMatchPriorHash = false
			result.ChangedFiles = append(result.ChangedFiles, f)
			continue
		}
		if gitDeltaOK && candidates[f.RelativePath] {
			m.logger.Debug("incremental.git_delta.disagrees_with_hash",
				"path", f.RelativePath, "git_says", "changed", "hash_says", "unchanged")
		}
		result.UnchangedFiles = append(result.UnchangedFiles, f)
	}

	for path := range prior.FilesIndexed {
		if !seen[path] {
			result.DeletedFiles = append(result.DeletedFiles, path)
		}
	}

	if allMatchPriorHash && len(result.ChangedFiles) == 0 && len(result.DeletedFiles) == 0 {
		result.Reason = "commit_sha_and_hashes_unchanged"
	} else {
		result.Reason = "content_hash_diff"
	}

	m.logger.Info("incremental.classify",
		"changed", len(result.ChangedFiles),
		"unchanged", len(result.UnchangedFiles),
		"deleted", len(result.DeletedFiles),
		"reason", result.Reason,
	)
	return result
}

// UpdateIndexState persists the post-run IndexState: every processed file's
// current hash, replacing the prior record wholesale: the stored state
// always reflects the latest successful run, not a merge.
func (m *Manager) UpdateIndexState(ctx context.Context, repositoryID, commitSHA string, files []model.FileInfo) error {
	indexed := make(map[string]model.IndexedFile, len(files))
	now := time.Now()
	for _, f := range files {
		indexed[f.RelativePath] = model.IndexedFile{Hash: f.ContentHash, IndexedAt: now}
	}
	state := model.IndexState{
		RepositoryID:      repositoryID,
		CommitSHA:         commitSHA,
		FilesIndexed:      indexed,
		TotalFilesIndexed: len(indexed),
		LastIndexedAt:     now,
	}
	if err := m.store.SaveIndexState(ctx, state); err != nil {
		return fmt.Errorf("save index state: %w", err)
	}
	return nil
}

// CleanupDeletedFiles removes the node subtree for every deleted path from
// the graph store, returning the total nodes removed.
func (m *Manager) CleanupDeletedFiles(ctx context.Context, repositoryID string, deletedPaths []string) (int, error) {
	if len(deletedPaths) == 0 {
		return 0, nil
	}
	result, err := m.store.DeleteFilesAndDescendants(ctx, repositoryID, deletedPaths)
	if err != nil {
		return 0, fmt.Errorf("delete files and descendants: %w", err)
	}
	m.logger.Info("incremental.cleanup", "deleted_files", len(deletedPaths), "nodes_deleted", result.NodesDeleted)
	return result.NodesDeleted, nil
}

// FilterAlreadyProcessedFiles removes any file already recorded on cp from
// files, supporting checkpoint resume: a crashed run that already committed
// some files in this batch sequence should not reprocess them.
func FilterAlreadyProcessedFiles(files []model.FileInfo, cp *model.Checkpoint) []model.FileInfo {
	if cp == nil {
		return files
	}
	out := make([]model.FileInfo, 0, len(files))
	for _, f := range files {
		if !cp.HasProcessed(f.RelativePath) {
			out = append(out, f)
		}
	}
	return out
}
