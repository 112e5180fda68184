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

package graphstore

import (
	"context"
	"testing"

	"github.com/kraklabs/codegraph/internal/model"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(BoltConfig{DataDir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBoltStore_SaveNodesBatch_FiresCallbackPerBatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	nodes := make([]model.Node, 0, 3)
	for i := 0; i < 3; i++ {
		nodes = append(nodes, model.Node{EntityID: string(rune('a' + i)), Kind: model.KindFunction, FilePath: "f.go"})
	}

	var batchIndexes []int
	result, err := store.SaveNodesBatch(ctx, "repo", nodes, func(batchIndex int, filesInBatch []string, nodesInBatch int) error {
		batchIndexes = append(batchIndexes, batchIndex)
		if len(filesInBatch) != 1 || filesInBatch[0] != "f.go" {
			t.Errorf("filesInBatch = %v, want [f.go]", filesInBatch)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("SaveNodesBatch: %v", err)
	}
	if result.NodesStored != 3 {
		t.Errorf("NodesStored = %d, want 3", result.NodesStored)
	}
	if len(batchIndexes) != 1 || batchIndexes[0] != 0 {
		t.Errorf("batchIndexes = %v, want [0]", batchIndexes)
	}

	got, err := store.NodesByFilePath(ctx, "repo", "f.go")
	if err != nil {
		t.Fatalf("NodesByFilePath: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("NodesByFilePath returned %d nodes, want 3", len(got))
	}
}

func TestBoltStore_SaveNodesBatch_FileNeverSplitAcrossBatches(t *testing.T) {
	store := newTestStore(t)
	store.nodeBatchSize = 2
	ctx := context.Background()

	// big.go has more nodes than nodeBatchSize on its own, so packing by
	// count alone would span it across multiple transactions; small.go's
	// nodes come after it in the input and would, under count-only
	// chunking, land partly in the same batch as big.go's tail.
	nodes := []model.Node{
		{EntityID: "big:1", Kind: model.KindFunction, FilePath: "big.go"},
		{EntityID: "big:2", Kind: model.KindFunction, FilePath: "big.go"},
		{EntityID: "big:3", Kind: model.KindFunction, FilePath: "big.go"},
		{EntityID: "small:1", Kind: model.KindFunction, FilePath: "small.go"},
	}

	filesSeenInBatch := map[string][]string{}
	_, err := store.SaveNodesBatch(ctx, "repo", nodes, func(batchIndex int, filesInBatch []string, nodesInBatch int) error {
		for _, f := range filesInBatch {
			filesSeenInBatch[f] = append(filesSeenInBatch[f], "seen")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("SaveNodesBatch: %v", err)
	}

	if got := len(filesSeenInBatch["big.go"]); got != 1 {
		t.Errorf("big.go reported in %d batches, want exactly 1", got)
	}
	if got := len(filesSeenInBatch["small.go"]); got != 1 {
		t.Errorf("small.go reported in %d batches, want exactly 1", got)
	}

	got, err := store.NodesByFilePath(ctx, "repo", "big.go")
	if err != nil {
		t.Fatalf("NodesByFilePath: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("NodesByFilePath(big.go) returned %d nodes, want 3", len(got))
	}
}

func TestBoltStore_SaveRelationshipsBatch_FilesInBatchNeverReported(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rels := []model.Relationship{
		{EntityID: "rel:1", Type: model.RelCalls, SourceID: "a", TargetID: "b"},
	}
	stored, err := store.SaveRelationshipsBatch(ctx, "repo", model.RelCalls, rels, func(batchIndex int, relType string, count int) error {
		if relType != model.RelCalls {
			t.Errorf("relType = %q, want CALLS", relType)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("SaveRelationshipsBatch: %v", err)
	}
	if stored != 1 {
		t.Errorf("stored = %d, want 1", stored)
	}
}

func TestBoltStore_DeleteFilesAndDescendants_RemovesNodesAndIncidentRelationships(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	nodes := []model.Node{
		{EntityID: "func:a", Kind: model.KindFunction, FilePath: "a.go"},
		{EntityID: "func:b", Kind: model.KindFunction, FilePath: "b.go"},
	}
	if _, err := store.SaveNodesBatch(ctx, "repo", nodes, nil); err != nil {
		t.Fatalf("SaveNodesBatch: %v", err)
	}
	rels := []model.Relationship{
		{EntityID: "rel:1", Type: model.RelCalls, SourceID: "func:a", TargetID: "func:b"},
	}
	if _, err := store.SaveRelationshipsBatch(ctx, "repo", model.RelCalls, rels, nil); err != nil {
		t.Fatalf("SaveRelationshipsBatch: %v", err)
	}

	result, err := store.DeleteFilesAndDescendants(ctx, "repo", []string{"a.go"})
	if err != nil {
		t.Fatalf("DeleteFilesAndDescendants: %v", err)
	}
	if result.NodesDeleted != 1 {
		t.Errorf("NodesDeleted = %d, want 1", result.NodesDeleted)
	}

	remaining, err := store.NodesByFilePath(ctx, "repo", "b.go")
	if err != nil {
		t.Fatalf("NodesByFilePath: %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("expected b.go's node to survive, got %+v", remaining)
	}
}

func TestBoltStore_IndexStateRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if got, err := store.LoadIndexState(ctx, "repo"); err != nil || got != nil {
		t.Fatalf("LoadIndexState on empty store = (%+v, %v), want (nil, nil)", got, err)
	}

	state := model.IndexState{RepositoryID: "repo", CommitSHA: "abc123", TotalFilesIndexed: 2}
	if err := store.SaveIndexState(ctx, state); err != nil {
		t.Fatalf("SaveIndexState: %v", err)
	}

	got, err := store.LoadIndexState(ctx, "repo")
	if err != nil {
		t.Fatalf("LoadIndexState: %v", err)
	}
	if got == nil || got.CommitSHA != "abc123" {
		t.Errorf("LoadIndexState = %+v, want CommitSHA abc123", got)
	}
}

func TestBoltStore_CheckpointLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cp := model.Checkpoint{RepositoryID: "repo", AnalysisID: "run-1", Status: model.CheckpointRunning}
	if err := store.SaveCheckpoint(ctx, cp); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	loaded, err := store.LoadCheckpoint(ctx, "repo", "run-1")
	if err != nil || loaded == nil {
		t.Fatalf("LoadCheckpoint = (%+v, %v)", loaded, err)
	}

	if err := store.ClearCheckpoint(ctx, "repo", "run-1"); err != nil {
		t.Fatalf("ClearCheckpoint: %v", err)
	}
	loaded, err = store.LoadCheckpoint(ctx, "repo", "run-1")
	if err != nil || loaded != nil {
		t.Fatalf("LoadCheckpoint after clear = (%+v, %v), want (nil, nil)", loaded, err)
	}
}

func TestBoltStore_RepositoryLock_ExclusiveUntilReleased(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	acquired, err := store.TryAcquireRepositoryLock(ctx, "repo", "run-1")
	if err != nil || !acquired {
		t.Fatalf("TryAcquireRepositoryLock(run-1) = (%v, %v), want (true, nil)", acquired, err)
	}

	acquired, err = store.TryAcquireRepositoryLock(ctx, "repo", "run-2")
	if err != nil {
		t.Fatalf("TryAcquireRepositoryLock(run-2): %v", err)
	}
	if acquired {
		t.Error("expected run-2 to be rejected while run-1 holds the lock")
	}

	if err := store.ReleaseRepositoryLock(ctx, "repo", "run-1"); err != nil {
		t.Fatalf("ReleaseRepositoryLock: %v", err)
	}

	acquired, err = store.TryAcquireRepositoryLock(ctx, "repo", "run-2")
	if err != nil || !acquired {
		t.Fatalf("TryAcquireRepositoryLock(run-2) after release = (%v, %v), want (true, nil)", acquired, err)
	}
}

func TestBoltStore_LoadIncompleteCheckpoint_FindsFailedCheckpointAfterLockReleased(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.TryAcquireRepositoryLock(ctx, "repo", "run-1"); err != nil {
		t.Fatalf("TryAcquireRepositoryLock: %v", err)
	}
	cp := model.Checkpoint{RepositoryID: "repo", AnalysisID: "run-1", Status: model.CheckpointFailed, ErrorMessage: "batch store error"}
	if err := store.SaveCheckpoint(ctx, cp); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	if err := store.ReleaseRepositoryLock(ctx, "repo", "run-1"); err != nil {
		t.Fatalf("ReleaseRepositoryLock: %v", err)
	}

	// A new analysis can start immediately (the lock is free)...
	acquired, err := store.TryAcquireRepositoryLock(ctx, "repo", "run-2")
	if err != nil || !acquired {
		t.Fatalf("TryAcquireRepositoryLock(run-2) = (%v, %v), want (true, nil)", acquired, err)
	}
	if err := store.ReleaseRepositoryLock(ctx, "repo", "run-2"); err != nil {
		t.Fatalf("ReleaseRepositoryLock: %v", err)
	}

	// ...but the failed checkpoint is still the one a resume picks up.
	incomplete, err := store.LoadIncompleteCheckpoint(ctx, "repo")
	if err != nil {
		t.Fatalf("LoadIncompleteCheckpoint: %v", err)
	}
	if incomplete == nil || incomplete.AnalysisID != "run-1" {
		t.Fatalf("LoadIncompleteCheckpoint = %+v, want the failed run-1 checkpoint", incomplete)
	}
}

func TestBoltStore_LoadIncompleteCheckpoint(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.TryAcquireRepositoryLock(ctx, "repo", "run-1"); err != nil {
		t.Fatalf("TryAcquireRepositoryLock: %v", err)
	}
	cp := model.Checkpoint{RepositoryID: "repo", AnalysisID: "run-1", Status: model.CheckpointRunning}
	if err := store.SaveCheckpoint(ctx, cp); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	incomplete, err := store.LoadIncompleteCheckpoint(ctx, "repo")
	if err != nil {
		t.Fatalf("LoadIncompleteCheckpoint: %v", err)
	}
	if incomplete == nil || incomplete.AnalysisID != "run-1" {
		t.Fatalf("LoadIncompleteCheckpoint = %+v, want run-1", incomplete)
	}

	cp.Status = model.CheckpointCompleted
	if err := store.SaveCheckpoint(ctx, cp); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	incomplete, err = store.LoadIncompleteCheckpoint(ctx, "repo")
	if err != nil {
		t.Fatalf("LoadIncompleteCheckpoint: %v", err)
	}
	if incomplete != nil {
		t.Errorf("LoadIncompleteCheckpoint after completion = %+v, want nil", incomplete)
	}
}
