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

package testing

import (
	"context"
	"testing"
	"time"

	"github.com/kraklabs/codegraph/internal/graphstore"
	"github.com/kraklabs/codegraph/internal/model"
)

// TestRepositoryID is the repository identifier every helper in this
// package writes under, so callers never need to thread one through.
const TestRepositoryID = "test-repo"

// SetupTestStore creates a bbolt-backed GraphStore rooted in a temporary
// directory. The store is automatically closed when the test finishes.
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    store := testing.SetupTestStore(t)
//	    testing.InsertTestFunction(t, store, "func1", "HandleAuth", "auth.go", 10, 20)
//	}
func SetupTestStore(t *testing.T) graphstore.GraphStore {
	t.Helper()

	store, err := graphstore.NewBoltStore(graphstore.BoltConfig{DataDir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

// InsertTestFunction writes a Function node into store under id.
func InsertTestFunction(t *testing.T, store graphstore.GraphStore, id, name, filePath string, startLine, endLine int) {
	t.Helper()
	insertNode(t, store, model.Node{
		EntityID:  id,
		Kind:      model.KindFunction,
		Name:      name,
		FilePath:  filePath,
		StartLine: startLine,
		EndLine:   endLine,
	})
}

// InsertTestFunctionWithSignature is like InsertTestFunction but also
// records the function's signature string in Properties.
func InsertTestFunctionWithSignature(t *testing.T, store graphstore.GraphStore, id, name, signature, filePath string, startLine, endLine int) {
	t.Helper()
	insertNode(t, store, model.Node{
		EntityID:   id,
		Kind:       model.KindFunction,
		Name:       name,
		FilePath:   filePath,
		StartLine:  startLine,
		EndLine:    endLine,
		Properties: map[string]any{"signature": signature},
	})
}

// InsertTestFile writes a File node into store under id.
func InsertTestFile(t *testing.T, store graphstore.GraphStore, id, path, hash, language string, size int64) {
	t.Helper()
	insertNode(t, store, model.Node{
		EntityID: id,
		Kind:     model.KindFile,
		Name:     path,
		FilePath: path,
		Language: language,
		Properties: map[string]any{
			"content_hash": hash,
			"size":         size,
		},
	})
}

// InsertTestType writes a Class node into store under id. kind distinguishes
// struct/interface/class and is stored in Properties rather than as the
// node's own Kind, mirroring how internal/parse records type flavor.
func InsertTestType(t *testing.T, store graphstore.GraphStore, id, name, kind, filePath string, startLine, endLine int) {
	t.Helper()
	insertNode(t, store, model.Node{
		EntityID:   id,
		Kind:       model.KindClass,
		Name:       name,
		FilePath:   filePath,
		StartLine:  startLine,
		EndLine:    endLine,
		Properties: map[string]any{"type_kind": kind},
	})
}

func insertNode(t *testing.T, store graphstore.GraphStore, n model.Node) {
	t.Helper()
	n.CreatedAt = time.Now()
	_, err := store.SaveNodesBatch(context.Background(), TestRepositoryID, []model.Node{n}, nil)
	if err != nil {
		t.Fatalf("failed to insert test node %s: %v", n.EntityID, err)
	}
}

// InsertTestDefines records a BELONGS_TO edge from functionID to fileID.
func InsertTestDefines(t *testing.T, store graphstore.GraphStore, id, fileID, functionID string) {
	t.Helper()
	insertRelationship(t, store, model.RelBelongsTo, id, functionID, fileID)
}

// InsertTestCalls records a CALLS edge from callerID to calleeID.
func InsertTestCalls(t *testing.T, store graphstore.GraphStore, id, callerID, calleeID string) {
	t.Helper()
	insertRelationship(t, store, model.RelCalls, id, callerID, calleeID)
}

// InsertTestImport records an IMPORTS edge from a File node at filePath to
// a synthetic external-module node built from importPath.
func InsertTestImport(t *testing.T, store graphstore.GraphStore, id, filePath, importPath, alias string, startLine int) {
	t.Helper()
	sourceID := "file:" + filePath
	targetID := "module:" + importPath
	rel := model.Relationship{
		EntityID:  id,
		Type:      model.RelImports,
		SourceID:  sourceID,
		TargetID:  targetID,
		CreatedAt: time.Now(),
		Properties: map[string]any{
			"alias":      alias,
			"start_line": startLine,
		},
	}
	_, err := store.SaveRelationshipsBatch(context.Background(), TestRepositoryID, rel.Type, []model.Relationship{rel}, nil)
	if err != nil {
		t.Fatalf("failed to insert test import: %v", err)
	}
}

func insertRelationship(t *testing.T, store graphstore.GraphStore, relType, id, sourceID, targetID string) {
	t.Helper()
	rel := model.Relationship{
		EntityID:  id,
		Type:      relType,
		SourceID:  sourceID,
		TargetID:  targetID,
		CreatedAt: time.Now(),
	}
	_, err := store.SaveRelationshipsBatch(context.Background(), TestRepositoryID, relType, []model.Relationship{rel}, nil)
	if err != nil {
		t.Fatalf("failed to insert test relationship %s: %v", relType, err)
	}
}

// QueryNodesByFile returns every node stored under filePath, the
// per-file query GraphStore actually exposes (there is no "all functions"
// scan — GraphStore intentionally has no general query API).
func QueryNodesByFile(t *testing.T, store graphstore.GraphStore, filePath string) []model.Node {
	t.Helper()
	nodes, err := store.NodesByFilePath(context.Background(), TestRepositoryID, filePath)
	if err != nil {
		t.Fatalf("failed to query nodes for %s: %v", filePath, err)
	}
	return nodes
}

// CountNodesByKindInFile filters QueryNodesByFile's result down to kind.
func CountNodesByKindInFile(t *testing.T, store graphstore.GraphStore, filePath, kind string) int {
	t.Helper()
	count := 0
	for _, n := range QueryNodesByFile(t, store, filePath) {
		if n.Kind == kind {
			count++
		}
	}
	return count
}
