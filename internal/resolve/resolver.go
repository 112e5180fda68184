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

// Package resolve implements the RelationshipResolver (Pass 2): it builds
// a read-only in-memory index over Pass 1 nodes and resolves relationships
// whose targetId was left unresolved, for any relationship kind.
package resolve

import (
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/kraklabs/codegraph/internal/ids"
	"github.com/kraklabs/codegraph/internal/model"
)

// parallelThreshold is the sequential/parallel split point, avoiding
// goroutine overhead for small relationship sets.
const parallelThreshold = 1000

// maxWorkers caps the resolution worker pool.
const maxWorkers = 8

// Resolver builds the entityId and (filePath, qualifiedName) indexes over
// Pass 1 nodes and resolves unresolved relationships against them.
type Resolver struct {
	byEntityID map[string]model.Node
	// byFileAndName: filePath -> simple name -> entityId, for same-file lookups.
	byFileAndName map[string]map[string]string
	// exportedByPackage: package directory -> simple name -> entityId, for
	// cross-file resolution following the parser's import-alias rules.
	exportedByPackage map[string]map[string]string
	// filesByPackage: package directory -> one representative File node's
	// entityId, the IMPORTS relationship's resolution target for an
	// in-repo import path.
	filesByPackage map[string]string
	// fileImports: filePath -> alias -> import path, populated from IMPORTS
	// relationships emitted in Pass 1.
	fileImports map[string]map[string]string
}

// New creates an empty Resolver; call BuildIndex before Resolve.
func New() *Resolver {
	return &Resolver{
		byEntityID:        make(map[string]model.Node),
		byFileAndName:     make(map[string]map[string]string),
		exportedByPackage: make(map[string]map[string]string),
		filesByPackage:    make(map[string]string),
		fileImports:       make(map[string]map[string]string),
	}
}

// BuildIndex constructs the read-only index from Pass 1 output. Must be
// called once, before any call to Resolve: the index is built once and
// then read-only.
func (r *Resolver) BuildIndex(nodes []model.Node, imports []model.Relationship) {
	for _, n := range nodes {
		r.byEntityID[n.EntityID] = n
		if n.Kind == model.KindFile && n.FilePath != "" {
			pkg := filepath.Dir(n.FilePath)
			if _, ok := r.filesByPackage[pkg]; !ok {
				r.filesByPackage[pkg] = n.EntityID
			}
		}
		if n.FilePath == "" || n.Name == "" {
			continue
		}
		if r.byFileAndName[n.FilePath] == nil {
			r.byFileAndName[n.FilePath] = make(map[string]string)
		}
		r.byFileAndName[n.FilePath][simpleName(n.Name)] = n.EntityID

		if isExported(simpleName(n.Name)) {
			pkg := filepath.Dir(n.FilePath)
			if r.exportedByPackage[pkg] == nil {
				r.exportedByPackage[pkg] = make(map[string]string)
			}
			r.exportedByPackage[pkg][simpleName(n.Name)] = n.EntityID
		}
	}

	for _, imp := range imports {
		props := imp.Properties
		if props == nil {
			continue
		}
		filePath, _ := props["file_path"].(string)
		alias, _ := props["alias"].(string)
		importPath, _ := props["import_path"].(string)
		if filePath == "" || importPath == "" {
			continue
		}
		if alias == "" || alias == "_" {
			alias = filepath.Base(importPath)
		}
		if alias == "_" {
			continue
		}
		if r.fileImports[filePath] == nil {
			r.fileImports[filePath] = make(map[string]string)
		}
		r.fileImports[filePath][alias] = importPath
	}
}

// Resolve attempts to complete every relationship whose TargetID is empty,
// in order: exact entityId match, same-file qualified-name lookup,
// cross-file lookup via import-alias rules, else drop. Already-resolved
// relationships pass through unchanged.
func (r *Resolver) Resolve(relationships []model.Relationship) []model.Relationship {
	var unresolved []model.Relationship
	var resolved []model.Relationship

	for _, rel := range relationships {
		if rel.TargetID != "" {
			if _, ok := r.byEntityID[rel.TargetID]; ok {
				resolved = append(resolved, rel)
				continue
			}
		}
		unresolved = append(unresolved, rel)
	}

	var completed []model.Relationship
	if len(unresolved) < parallelThreshold {
		completed = r.resolveSequential(unresolved)
	} else {
		completed = r.resolveParallel(unresolved)
	}

	return dedupByEntityID(append(resolved, completed...))
}

func (r *Resolver) resolveSequential(unresolved []model.Relationship) []model.Relationship {
	var out []model.Relationship
	for _, rel := range unresolved {
		if target := r.resolveOne(rel); target != "" {
			out = append(out, finalizeRelationship(rel, target))
		}
	}
	return out
}

func (r *Resolver) resolveParallel(unresolved []model.Relationship) []model.Relationship {
	numWorkers := runtime.NumCPU()
	if numWorkers > maxWorkers {
		numWorkers = maxWorkers
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	jobs := make(chan int, len(unresolved))
	results := make(chan model.Relationship, len(unresolved))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rel := unresolved[i]
				if target := r.resolveOne(rel); target != "" {
					results <- finalizeRelationship(rel, target)
				}
			}
		}()
	}
	for i := range unresolved {
		jobs <- i
	}
	close(jobs)
	go func() { wg.Wait(); close(results) }()

	var out []model.Relationship
	for rel := range results {
		out = append(out, rel)
	}
	return out
}

// resolveOne implements steps 2 and 3 (step 1, exact entityId match, was
// already checked by Resolve). Step 4 (drop) is simply returning "".
func (r *Resolver) resolveOne(rel model.Relationship) string {
	if rel.Type == model.RelImports {
		return r.resolveImport(rel)
	}

	name, _ := rel.Properties["unresolved_name"].(string)
	filePath, _ := rel.Properties["file_path"].(string)
	if name == "" || filePath == "" {
		return ""
	}

	// Step 2: same-file qualified-name lookup.
	simple := simpleName(name)
	if id, ok := r.byFileAndName[filePath][simple]; ok {
		return id
	}

	// Step 3: cross-file lookup via the parser's collaborator rules
	// (qualified call through an import alias, or a dot-import).
	if strings.Contains(name, ".") {
		parts := strings.SplitN(name, ".", 2)
		alias, funcName := parts[0], parts[1]
		if idx := strings.LastIndex(funcName, "."); idx >= 0 {
			funcName = funcName[idx+1:]
		}
		if !isExported(funcName) {
			return ""
		}
		importPath, ok := r.fileImports[filePath][alias]
		if !ok {
			return ""
		}
		pkg := r.findPackageByImportPath(importPath)
		if pkg == "" {
			return ""
		}
		if id, ok := r.exportedByPackage[pkg][funcName]; ok {
			return id
		}
		return ""
	}

	for alias, importPath := range r.fileImports[filePath] {
		if alias != "." {
			continue
		}
		pkg := r.findPackageByImportPath(importPath)
		if pkg == "" {
			continue
		}
		if id, ok := r.exportedByPackage[pkg][simple]; ok {
			return id
		}
	}

	return ""
}

// resolveImport resolves an IMPORTS relationship's import_path to the
// entityId of one File node in the matching in-repo package. A path with
// no matching local package (almost always a third-party or standard
// library import, which this codebase has no node for) is left unresolved
// and is dropped by the caller.
func (r *Resolver) resolveImport(rel model.Relationship) string {
	importPath, _ := rel.Properties["import_path"].(string)
	if importPath == "" {
		return ""
	}
	if pkg := matchPackageSuffix(importPath, r.filesByPackage); pkg != "" {
		return r.filesByPackage[pkg]
	}
	return ""
}

func (r *Resolver) findPackageByImportPath(importPath string) string {
	return matchPackageSuffix(importPath, r.exportedByPackage)
}

// matchPackageSuffix finds the package directory key in packages whose
// path matches importPath, first by suffix (the common case: the module
// path prefix differs but the trailing path segments line up with the
// local directory layout) and falling back to a last-segment match.
func matchPackageSuffix[V any](importPath string, packages map[string]V) string {
	for pkg := range packages {
		if strings.HasSuffix(importPath, pkg) {
			return pkg
		}
	}
	base := filepath.Base(importPath)
	for pkg := range packages {
		if filepath.Base(pkg) == base {
			return pkg
		}
	}
	return ""
}

func finalizeRelationship(rel model.Relationship, target string) model.Relationship {
	rel.TargetID = target
	rel.EntityID = ids.RelationshipID(rel.Type, rel.SourceID, rel.TargetID)
	return rel
}

func simpleName(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

func isExported(name string) bool {
	return len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z'
}

// dedupByEntityID applies the dedup rule: if duplicate entityIds are
// produced, the last writer wins.
func dedupByEntityID(relationships []model.Relationship) []model.Relationship {
	byID := make(map[string]model.Relationship, len(relationships))
	order := make([]string, 0, len(relationships))
	for _, rel := range relationships {
		if _, exists := byID[rel.EntityID]; !exists {
			order = append(order, rel.EntityID)
		}
		byID[rel.EntityID] = rel
	}
	out := make([]model.Relationship, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}
