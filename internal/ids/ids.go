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

// Package ids implements the IdFactory: deterministic entityId generation
// that is stable across runs, processes and machines, plus per-run unique
// instanceId generation.
package ids

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strconv"
	"sync/atomic"
)

// EntityID computes entityId(kind, qualifiedName). The same (kind,
// qualifiedName) input always produces the same byte-identical output,
// independent of process or machine.
func EntityID(kind, qualifiedName string) string {
	idStr := kind + "|" + qualifiedName
	hash := sha256.Sum256([]byte(idStr))
	return fmt.Sprintf("%s:%s", kindPrefix(kind), hex.EncodeToString(hash[:]))
}

// kindPrefix gives generated ids a human-legible prefix; purely cosmetic,
// it plays no role in uniqueness (the hash already covers kind).
func kindPrefix(kind string) string {
	switch kind {
	case "File":
		return "file"
	case "Module":
		return "mod"
	case "Repository":
		return "repo"
	case "ExternalDependency":
		return "dep"
	default:
		return "node"
	}
}

// RelationshipID computes the stable entityId for a relationship, used for
// the dedup-by-entityId rule ("last writer wins").
func RelationshipID(relType, sourceID, targetID string) string {
	idStr := fmt.Sprintf("%s|%s|%s", relType, sourceID, targetID)
	hash := sha256.Sum256([]byte(idStr))
	return fmt.Sprintf("rel:%s", hex.EncodeToString(hash[:]))
}

// Factory generates per-run unique instanceIds via an incrementing counter
// bound to one analysis run. instanceId is never persisted as a key.
type Factory struct {
	counter uint64
	runID   string
}

// NewFactory creates an IdFactory scoped to one analysis run.
func NewFactory(runID string) *Factory {
	return &Factory{runID: runID}
}

// InstanceID returns a value unique within this Factory's run.
func (f *Factory) InstanceID(kind, name string) string {
	n := atomic.AddUint64(&f.counter, 1)
	return f.runID + ":" + kind + ":" + name + ":" + strconv.FormatUint(n, 10)
}

// QualifiedName builders. One rule per kind: symbol-level entities include
// line+column to stay collision-resistant when functions share a line
// range (overloads, nested functions).

// FileQualifiedName builds the qualifiedName for a File node.
func FileQualifiedName(repositoryID, filePath string) string {
	return repositoryID + ":" + NormalizePath(filePath)
}

// ModuleQualifiedName builds the qualifiedName for a Module node.
func ModuleQualifiedName(repositoryID, moduleName string) string {
	return repositoryID + ":" + moduleName
}

// SymbolQualifiedName builds the qualifiedName for Function/Method/Class/
// Type/Field nodes: repositoryId:filePath:name:startLine:startCol.
func SymbolQualifiedName(repositoryID, filePath, name string, startLine, startCol int) string {
	return fmt.Sprintf("%s:%s:%s:%d:%d", repositoryID, NormalizePath(filePath), name, startLine, startCol)
}

// ExternalDependencyQualifiedName builds the qualifiedName for an
// ExternalDependency node, deduplicated by group:artifact:version.
func ExternalDependencyQualifiedName(repositoryID, group, artifact, version string) string {
	return fmt.Sprintf("%s:%s:%s:%s", repositoryID, group, artifact, version)
}

// RepositoryQualifiedName builds the qualifiedName for the Repository node.
func RepositoryQualifiedName(repositoryID string) string {
	return repositoryID
}

// NormalizePath normalizes a file path for consistent, cross-platform id
// generation: strips a leading "./", cleans the path, converts separators
// to forward slashes, and strips a leading "/".
func NormalizePath(path string) string {
	if len(path) >= 2 && path[0:2] == "./" {
		path = path[2:]
	}
	path = filepath.Clean(path)
	path = filepath.ToSlash(path)
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	return path
}
