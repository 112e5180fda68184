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

// Package graphstore provides the abstract GraphStore contract and an
// embedded implementation backed by go.etcd.io/bbolt (see DESIGN.md for the
// storage-engine rationale). The interface is deliberately narrow:
// transactional batch writes and a small set of indexed lookups.
package graphstore

import (
	"context"

	"github.com/kraklabs/codegraph/internal/model"
)

// NodeBatchCallback fires synchronously after a node batch's transaction
// has durably committed. batchIndex is 0-based; filesInBatch
// is the set of source files whose File node and descendants are wholly
// contained in this batch.
type NodeBatchCallback func(batchIndex int, filesInBatch []string, nodesInBatch int) error

// RelationshipBatchCallback fires synchronously after a relationship
// batch's transaction has durably committed. filesInBatch is always empty —
// relationship batches are file-neutral.
type RelationshipBatchCallback func(batchIndex int, relType string, count int) error

// SaveNodesResult is the outcome of SaveNodesBatch.
type SaveNodesResult struct {
	NodesStored  int
	TotalBatches int
}

// DeleteResult is the outcome of DeleteFilesAndDescendants.
type DeleteResult struct {
	NodesDeleted int
}

// GraphStore is the abstract batch-oriented graph storage contract.
// Implementations must commit nodes before any relationship referencing
// them, group relationships by type, upsert by EntityID, and make batch
// commit failure impossible to observe as a partial commit.
type GraphStore interface {
	// SaveNodesBatch splits nodes into transactionally-committed batches.
	// onBatch fires after each batch durably commits, before the next
	// batch's transaction begins.
	SaveNodesBatch(ctx context.Context, repositoryID string, nodes []model.Node, onBatch NodeBatchCallback) (SaveNodesResult, error)

	// SaveRelationshipsBatch splits rels (all of one type) into
	// transactionally-committed batches.
	SaveRelationshipsBatch(ctx context.Context, repositoryID string, relType string, rels []model.Relationship, onBatch RelationshipBatchCallback) (int, error)

	// DeleteFilesAndDescendants removes the File node for each path in
	// paths, every node whose FilePath matches, and all edges incident to
	// those nodes, within one transaction.
	DeleteFilesAndDescendants(ctx context.Context, repositoryID string, paths []string) (DeleteResult, error)

	// LoadIndexState returns nil, nil when no IndexState is stored yet.
	LoadIndexState(ctx context.Context, repositoryID string) (*model.IndexState, error)
	SaveIndexState(ctx context.Context, state model.IndexState) error

	// Checkpoint persistence, keyed by (repositoryID, analysisID); see
	// internal/checkpoint for the manager built on top of these.
	SaveCheckpoint(ctx context.Context, cp model.Checkpoint) error
	LoadCheckpoint(ctx context.Context, repositoryID, analysisID string) (*model.Checkpoint, error)
	LoadIncompleteCheckpoint(ctx context.Context, repositoryID string) (*model.Checkpoint, error)
	ClearCheckpoint(ctx context.Context, repositoryID, analysisID string) error

	// TryAcquireRepositoryLock enforces at most one active analysis per
	// repositoryID. Returns false if another analysisID already holds the
	// lock.
	TryAcquireRepositoryLock(ctx context.Context, repositoryID, analysisID string) (bool, error)
	ReleaseRepositoryLock(ctx context.Context, repositoryID, analysisID string) error

	// NodesByFilePath supports IncrementalIndexManager's deletion cleanup
	// and RelationshipResolver cross-run lookups.
	NodesByFilePath(ctx context.Context, repositoryID, filePath string) ([]model.Node, error)

	Close() error
}
