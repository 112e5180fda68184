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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/kraklabs/codegraph/internal/contract"
	"github.com/kraklabs/codegraph/internal/model"
)

// Bucket names. checkpointsActive holds one key per repositoryID pointing
// at the analysisID currently holding that repository's lock; it is
// distinct from checkpoints, which is keyed by (repositoryID, analysisID)
// and retains history for inspection.
// bucketCheckpointsFailed holds one key per repositoryID pointing at the
// most recently failed analysisID, independent of checkpointsActive: Fail
// releases the repository lock so a new analysis can start immediately,
// but the failed run should still be the one a later resume picks up.
var (
	bucketNodes             = []byte("nodes")
	bucketRelationships     = []byte("relationships")
	bucketNodesByFile       = []byte("nodes_by_file")
	bucketIndexState        = []byte("index_state")
	bucketCheckpoints       = []byte("checkpoints")
	bucketCheckpointsActive = []byte("checkpoints_active")
	bucketCheckpointsFailed = []byte("checkpoints_failed")
)

// BoltConfig configures a BoltStore.
type BoltConfig struct {
	// DataDir is the directory holding the bbolt file. Defaults to
	// "~/.codegraph/data".
	DataDir string
	// FileName is the bbolt file name within DataDir. Defaults to "graph.db".
	FileName string
	// NodeBatchSize targets this many nodes per committed transaction,
	// clamped to [minBatchSize, maxBatchSize]. Zero uses defaultNodeBatchSize.
	NodeBatchSize int
	// RelBatchSize is the same knob for relationship batches.
	RelBatchSize int
}

// BoltStore is the embedded GraphStore implementation backed by
// go.etcd.io/bbolt. Every batch write commits in
// exactly one bbolt read-write transaction; batch-complete callbacks fire
// only after tx.Commit() returns, so a callback never observes a partially
// durable batch.
type BoltStore struct {
	db            *bbolt.DB
	logger        *slog.Logger
	nodeBatchSize int
	relBatchSize  int
}

// NewBoltStore opens (creating if absent) the bbolt file and ensures its
// buckets exist.
func NewBoltStore(cfg BoltConfig, logger *slog.Logger) (*BoltStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dataDir := cfg.DataDir
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".codegraph", "data")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	fileName := cfg.FileName
	if fileName == "" {
		fileName = "graph.db"
	}

	db, err := bbolt.Open(filepath.Join(dataDir, fileName), 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("open bbolt store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketNodes, bucketRelationships, bucketNodesByFile, bucketIndexState, bucketCheckpoints, bucketCheckpointsActive, bucketCheckpointsFailed} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &BoltStore{
		db:            db,
		logger:        logger,
		nodeBatchSize: clampBatchSize(cfg.NodeBatchSize, defaultNodeBatchSize),
		relBatchSize:  clampBatchSize(cfg.RelBatchSize, defaultRelBatchSize),
	}, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

// defaultNodeBatchSize/defaultRelBatchSize cap the number of nodes or
// relationships committed per bbolt transaction when BoltConfig leaves the
// knob at zero. minBatchSize/maxBatchSize bound an operator-supplied
// override.
const (
	defaultNodeBatchSize = 500
	defaultRelBatchSize  = 500
	minBatchSize         = 500
	maxBatchSize         = 2000
)

func clampBatchSize(configured, fallback int) int {
	if configured == 0 {
		return fallback
	}
	if configured < minBatchSize {
		return minBatchSize
	}
	if configured > maxBatchSize {
		return maxBatchSize
	}
	return configured
}

// SaveNodesBatch implements GraphStore. Nodes are first grouped by
// FilePath so that a file's node and all its descendants always land in
// the same bbolt transaction; groupNodesByFile's atomic groups are then
// packed into transactions by nodeBatcher, which bounds both node count
// and estimated byte size. This keeps filesInBatch's "reported at most
// once, only once fully durable" contract intact regardless of where a
// file's nodes fall relative to the batch target.
func (s *BoltStore) SaveNodesBatch(ctx context.Context, repositoryID string, nodes []model.Node, onBatch NodeBatchCallback) (SaveNodesResult, error) {
	if len(nodes) == 0 {
		return SaveNodesResult{}, nil
	}
	if v := contract.ValidateBatchSize(nodes); !v.OK {
		return SaveNodesResult{}, fmt.Errorf("save nodes batch: %s", v.Message)
	}

	groups := groupNodesByFile(nodes)
	groupBatches, err := nodeBatcher(s.nodeBatchSize).Batch(groups)
	if err != nil {
		return SaveNodesResult{}, fmt.Errorf("plan node batches: %w", err)
	}
	stored := 0

	for i, groupBatch := range groupBatches {
		if err := ctx.Err(); err != nil {
			return SaveNodesResult{NodesStored: stored, TotalBatches: len(groupBatches)}, err
		}

		var batch []model.Node
		filesInBatch := map[string]struct{}{}
		for _, g := range groupBatch {
			batch = append(batch, g...)
			if g[0].FilePath != "" {
				filesInBatch[g[0].FilePath] = struct{}{}
			}
		}

		err := s.db.Update(func(tx *bbolt.Tx) error {
			nb := tx.Bucket(bucketNodes)
			fb := tx.Bucket(bucketNodesByFile)
			for _, n := range batch {
				raw, err := json.Marshal(n)
				if err != nil {
					return fmt.Errorf("marshal node %s: %w", n.EntityID, err)
				}
				if err := nb.Put([]byte(n.EntityID), raw); err != nil {
					return err
				}
				if n.FilePath != "" {
					key := fileIndexKey(repositoryID, n.FilePath, n.EntityID)
					if err := fb.Put(key, []byte(n.EntityID)); err != nil {
						return err
					}
				}
			}
			return nil
		})
		if err != nil {
			return SaveNodesResult{NodesStored: stored, TotalBatches: len(groupBatches)}, fmt.Errorf("commit node batch %d: %w", i, err)
		}

		stored += len(batch)
		if onBatch != nil {
			files := make([]string, 0, len(filesInBatch))
			for f := range filesInBatch {
				files = append(files, f)
			}
			sort.Strings(files)
			if err := onBatch(i, files, len(batch)); err != nil {
				return SaveNodesResult{NodesStored: stored, TotalBatches: len(groupBatches)}, fmt.Errorf("node batch callback %d: %w", i, err)
			}
		}
	}

	return SaveNodesResult{NodesStored: stored, TotalBatches: len(groupBatches)}, nil
}

// SaveRelationshipsBatch implements GraphStore. filesInBatch is never
// reported to the caller's callback: relationship batches are grouped only
// by relType, never by file membership.
func (s *BoltStore) SaveRelationshipsBatch(ctx context.Context, repositoryID string, relType string, rels []model.Relationship, onBatch RelationshipBatchCallback) (int, error) {
	if len(rels) == 0 {
		return 0, nil
	}
	if v := contract.ValidateBatchSize(rels); !v.OK {
		return 0, fmt.Errorf("save relationships batch: %s", v.Message)
	}

	batches, err := relBatcher(s.relBatchSize).Batch(rels)
	if err != nil {
		return 0, fmt.Errorf("plan relationship batches: %w", err)
	}
	stored := 0

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return stored, err
		}

		err := s.db.Update(func(tx *bbolt.Tx) error {
			rb := tx.Bucket(bucketRelationships)
			for _, r := range batch {
				raw, err := json.Marshal(r)
				if err != nil {
					return fmt.Errorf("marshal relationship %s: %w", r.EntityID, err)
				}
				if err := rb.Put([]byte(r.EntityID), raw); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return stored, fmt.Errorf("commit relationship batch %d: %w", i, err)
		}

		stored += len(batch)
		if onBatch != nil {
			if err := onBatch(i, relType, len(batch)); err != nil {
				return stored, fmt.Errorf("relationship batch callback %d: %w", i, err)
			}
		}
	}

	return stored, nil
}

// DeleteFilesAndDescendants removes every node indexed under one of paths,
// the index entries pointing at them, and every relationship that names a
// deleted node as source or target, all within one transaction.
func (s *BoltStore) DeleteFilesAndDescendants(ctx context.Context, repositoryID string, paths []string) (DeleteResult, error) {
	if err := ctx.Err(); err != nil {
		return DeleteResult{}, err
	}
	if len(paths) == 0 {
		return DeleteResult{}, nil
	}

	result := DeleteResult{}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		nb := tx.Bucket(bucketNodes)
		fb := tx.Bucket(bucketNodesByFile)
		rb := tx.Bucket(bucketRelationships)

		deleted := map[string]struct{}{}
		for _, path := range paths {
			prefix := fileIndexPrefix(repositoryID, path)
			c := fb.Cursor()
			var toDelete [][]byte
			for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
				entityID := string(v)
				if err := nb.Delete([]byte(entityID)); err != nil {
					return err
				}
				deleted[entityID] = struct{}{}
				toDelete = append(toDelete, append([]byte(nil), k...))
				result.NodesDeleted++
			}
			for _, k := range toDelete {
				if err := fb.Delete(k); err != nil {
					return err
				}
			}
		}

		if len(deleted) == 0 {
			return nil
		}
		c := rb.Cursor()
		var relsToDelete [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rel model.Relationship
			if err := json.Unmarshal(v, &rel); err != nil {
				continue
			}
			if _, sourceGone := deleted[rel.SourceID]; sourceGone {
				relsToDelete = append(relsToDelete, append([]byte(nil), k...))
				continue
			}
			if _, targetGone := deleted[rel.TargetID]; targetGone {
				relsToDelete = append(relsToDelete, append([]byte(nil), k...))
			}
		}
		for _, k := range relsToDelete {
			if err := rb.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("delete files and descendants: %w", err)
	}
	return result, nil
}

func (s *BoltStore) LoadIndexState(ctx context.Context, repositoryID string) (*model.IndexState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var state *model.IndexState
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketIndexState).Get([]byte(repositoryID))
		if raw == nil {
			return nil
		}
		var s2 model.IndexState
		if err := json.Unmarshal(raw, &s2); err != nil {
			return fmt.Errorf("unmarshal index state: %w", err)
		}
		state = &s2
		return nil
	})
	return state, err
}

func (s *BoltStore) SaveIndexState(ctx context.Context, state model.IndexState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal index state: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIndexState).Put([]byte(state.RepositoryID), raw)
	})
}

func (s *BoltStore) SaveCheckpoint(ctx context.Context, cp model.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	key := checkpointKey(cp.RepositoryID, cp.AnalysisID)
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketCheckpoints).Put(key, raw); err != nil {
			return err
		}
		fb := tx.Bucket(bucketCheckpointsFailed)
		switch cp.Status {
		case model.CheckpointFailed:
			return fb.Put([]byte(cp.RepositoryID), []byte(cp.AnalysisID))
		case model.CheckpointCompleted:
			return fb.Delete([]byte(cp.RepositoryID))
		default:
			return nil
		}
	})
}

func (s *BoltStore) LoadCheckpoint(ctx context.Context, repositoryID, analysisID string) (*model.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var cp *model.Checkpoint
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketCheckpoints).Get(checkpointKey(repositoryID, analysisID))
		if raw == nil {
			return nil
		}
		var c model.Checkpoint
		if err := json.Unmarshal(raw, &c); err != nil {
			return fmt.Errorf("unmarshal checkpoint: %w", err)
		}
		cp = &c
		return nil
	})
	return cp, err
}

// LoadIncompleteCheckpoint returns the most recent running or failed
// checkpoint for repositoryID so a restart can resume from it. Running
// checkpoints are found through the repository-lock record, which is only
// cleared on a clean Complete, and otherwise by scanning the repository's
// checkpoints for the most recently updated running one. Failed
// checkpoints are found through a
// separate index, since Fail releases the repository lock immediately
// (so a new analysis is never blocked by a past failure) and would
// otherwise orphan the failed checkpoint.
func (s *BoltStore) LoadIncompleteCheckpoint(ctx context.Context, repositoryID string) (*model.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var activeID string
	err := s.db.View(func(tx *bbolt.Tx) error {
		if raw := tx.Bucket(bucketCheckpointsActive).Get([]byte(repositoryID)); raw != nil {
			activeID = string(raw)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if activeID != "" {
		cp, err := s.LoadCheckpoint(ctx, repositoryID, activeID)
		if err != nil {
			return nil, err
		}
		if cp != nil && cp.Status == model.CheckpointRunning {
			return cp, nil
		}
	}

	var running *model.Checkpoint
	err = s.db.View(func(tx *bbolt.Tx) error {
		prefix := []byte(repositoryID + "\x00")
		c := tx.Bucket(bucketCheckpoints).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var cp model.Checkpoint
			if json.Unmarshal(v, &cp) == nil && cp.Status == model.CheckpointRunning &&
				(running == nil || cp.LastUpdated.After(running.LastUpdated)) {
				running = &cp
			}
		}
		return nil
	})
	if err != nil || running != nil {
		return running, err
	}

	var failedID string
	err = s.db.View(func(tx *bbolt.Tx) error {
		if raw := tx.Bucket(bucketCheckpointsFailed).Get([]byte(repositoryID)); raw != nil {
			failedID = string(raw)
		}
		return nil
	})
	if err != nil || failedID == "" {
		return nil, err
	}
	cp, err := s.LoadCheckpoint(ctx, repositoryID, failedID)
	if err != nil || cp == nil || cp.Status != model.CheckpointFailed {
		return nil, err
	}
	return cp, nil
}

func (s *BoltStore) ClearCheckpoint(ctx context.Context, repositoryID, analysisID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketCheckpoints).Delete(checkpointKey(repositoryID, analysisID)); err != nil {
			return err
		}
		fb := tx.Bucket(bucketCheckpointsFailed)
		if string(fb.Get([]byte(repositoryID))) == analysisID {
			return fb.Delete([]byte(repositoryID))
		}
		return nil
	})
}

// TryAcquireRepositoryLock enforces at most one active analysis per
// repositoryID. The lock is released by
// ReleaseRepositoryLock once the orchestrator reaches a terminal phase.
func (s *BoltStore) TryAcquireRepositoryLock(ctx context.Context, repositoryID, analysisID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	acquired := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCheckpointsActive)
		existing := b.Get([]byte(repositoryID))
		if existing != nil && string(existing) != analysisID {
			return nil
		}
		acquired = true
		return b.Put([]byte(repositoryID), []byte(analysisID))
	})
	return acquired, err
}

func (s *BoltStore) ReleaseRepositoryLock(ctx context.Context, repositoryID, analysisID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCheckpointsActive)
		existing := b.Get([]byte(repositoryID))
		if existing == nil || string(existing) != analysisID {
			return nil
		}
		return b.Delete([]byte(repositoryID))
	})
}

func (s *BoltStore) NodesByFilePath(ctx context.Context, repositoryID, filePath string) ([]model.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var nodes []model.Node
	err := s.db.View(func(tx *bbolt.Tx) error {
		nb := tx.Bucket(bucketNodes)
		fb := tx.Bucket(bucketNodesByFile)
		prefix := fileIndexPrefix(repositoryID, filePath)
		c := fb.Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			raw := nb.Get(v)
			if raw == nil {
				continue
			}
			var n model.Node
			if err := json.Unmarshal(raw, &n); err != nil {
				return fmt.Errorf("unmarshal node: %w", err)
			}
			nodes = append(nodes, n)
		}
		return nil
	})
	return nodes, err
}

// groupNodesByFile buckets nodes by FilePath, keeping every node for a
// given file in one slice regardless of how far apart they sit in the
// input order; nodes with no FilePath (Repository, Module,
// ExternalDependency) are never grouped with anything. The resulting
// groups are the atomic units nodeBatcher packs: a group never crosses a
// batch boundary, so a file is either fully durable in a batch or absent
// from it.
func groupNodesByFile(nodes []model.Node) [][]model.Node {
	var groups [][]model.Node
	index := make(map[string]int, len(nodes))
	for _, n := range nodes {
		if n.FilePath == "" {
			groups = append(groups, []model.Node{n})
			continue
		}
		if idx, ok := index[n.FilePath]; ok {
			groups[idx] = append(groups[idx], n)
			continue
		}
		index[n.FilePath] = len(groups)
		groups = append(groups, []model.Node{n})
	}
	return groups
}

// nodeBatcher packs file-groups into transactions, bounding the total node
// count by targetSize and the estimated marshaled size by
// contract.SoftLimitBytes.
func nodeBatcher(targetSize int) *Batcher[[]model.Node] {
	return NewWeightedBatcher(targetSize, contract.SoftLimitBytes(), nodeGroupBytes, nodeGroupWeight)
}

func nodeGroupWeight(g []model.Node) int { return len(g) }

func nodeGroupBytes(g []model.Node) int {
	total := 0
	for _, n := range g {
		raw, err := json.Marshal(n)
		if err != nil {
			continue
		}
		total += len(raw)
	}
	return total
}

// relBatcher packs relationships into transactions the same way
// nodeBatcher does for nodes, without the file-grouping concern since
// relationships carry no FilePath.
func relBatcher(targetSize int) *Batcher[model.Relationship] {
	return NewBatcher(targetSize, contract.SoftLimitBytes(), relationshipBytes)
}

func relationshipBytes(r model.Relationship) int {
	raw, err := json.Marshal(r)
	if err != nil {
		return 0
	}
	return len(raw)
}

// fileIndexKey builds a lexicographically-sortable secondary-index key so
// that every node for a given (repositoryID, filePath) sits in one
// contiguous cursor range.
func fileIndexKey(repositoryID, filePath, entityID string) []byte {
	return []byte(repositoryID + "\x00" + filePath + "\x00" + entityID)
}

func fileIndexPrefix(repositoryID, filePath string) []byte {
	return []byte(repositoryID + "\x00" + filePath + "\x00")
}

func checkpointKey(repositoryID, analysisID string) []byte {
	return []byte(repositoryID + "\x00" + analysisID)
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
