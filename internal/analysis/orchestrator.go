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

// Package analysis implements the AnalyzerOrchestrator: it sequences every
// other component (scan, inspect, classify, parse, synthesize, resolve,
// store, checkpoint) through a fixed thirteen-step run against the abstract
// GraphStore/LanguageParser contracts.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kraklabs/codegraph/internal/buildsystem"
	"github.com/kraklabs/codegraph/internal/checkpoint"
	"github.com/kraklabs/codegraph/internal/graphstore"
	"github.com/kraklabs/codegraph/internal/ids"
	"github.com/kraklabs/codegraph/internal/incremental"
	"github.com/kraklabs/codegraph/internal/model"
	"github.com/kraklabs/codegraph/internal/parse"
	"github.com/kraklabs/codegraph/internal/resolve"
	"github.com/kraklabs/codegraph/internal/scan"
)

// ProgressSink receives best-effort progress events during a run. A sink
// that panics or a nil sink must never abort the analysis: all sink calls
// are best-effort; sink failures must not abort the analysis.
type ProgressSink interface {
	PhaseChanged(phase model.Phase)
	Progress(phase model.Phase, pct float64, totals map[string]int)
	Log(level, phase, message string)
	Completed(success bool, result AnalyzeResult)
}

// AnalyzeOptions configures one Run.
type AnalyzeOptions struct {
	RepositoryContext model.RepositoryContext
	ForceFullReindex  bool
	IncrementalMode   bool // not read by Run; ForceFullReindex selects a full pass
	ProgressSink      ProgressSink
	ResumeHint        string // analysisId to resume, if known
	ParseWorkers      int    // 0 defaults to runtime.NumCPU()
	CommitSHA         string // advisory; see internal/incremental
	Extensions        map[string]bool
	IgnoreGlobs       []string
	MaxFileSize       int64
}

// AnalyzeResult is analyze()'s return value.
type AnalyzeResult struct {
	FilesScanned         int
	NodesCreated         int
	RelationshipsCreated int
	WasIncremental       bool
	FilesSkipped         int
	FilesDeleted         int
	IndexingReason       string
	SkipReasons          map[string]int
}

// Orchestrator sequences the pipeline's nine components into one analyze run.
type Orchestrator struct {
	store       graphstore.GraphStore
	scanner     *scan.Scanner
	inspector   *buildsystem.Inspector
	incremental *incremental.Manager
	checkpoints *checkpoint.Manager
	parsers     *parse.Registry
	logger      *slog.Logger
}

// New creates an AnalyzerOrchestrator wired to store.
func New(store graphstore.GraphStore, parsers *parse.Registry, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:       store,
		scanner:     scan.New(logger),
		inspector:   buildsystem.New(logger),
		incremental: incremental.New(store, logger),
		checkpoints: checkpoint.New(store, logger),
		parsers:     parsers,
		logger:      logger,
	}
}

func emit(sink ProgressSink, fn func(ProgressSink)) {
	if sink == nil {
		return
	}
	defer func() { _ = recover() }()
	fn(sink)
}

// Run executes the full analyze() operation for one repository in its
// fixed thirteen-step sequence.
func (o *Orchestrator) Run(ctx context.Context, opts AnalyzeOptions) (*AnalyzeResult, error) {
	repositoryID := opts.RepositoryContext.RepositoryID
	start := time.Now()
	analysisMetrics.init()

	// Step 1: initialize store; detect existing running|failed checkpoint.
	analysisID := opts.ResumeHint
	var cp *model.Checkpoint
	isResuming := false
	if !opts.ForceFullReindex {
		existing, err := o.checkpoints.LoadIncomplete(ctx, repositoryID)
		if err != nil {
			return nil, fmt.Errorf("load incomplete checkpoint: %w", err)
		}
		if existing != nil {
			cp = existing
			analysisID = existing.AnalysisID
			isResuming = true
		}
	}
	if analysisID == "" {
		analysisID = uuid.NewString()
	}

	acquired, err := o.store.TryAcquireRepositoryLock(ctx, repositoryID, analysisID)
	if err != nil {
		return nil, fmt.Errorf("acquire repository lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("another analysis is already running for repository %q", repositoryID)
	}

	if cp == nil {
		reason := "full_reindex_requested"
		if !opts.ForceFullReindex {
			reason = "no_prior_checkpoint"
		}
		cp, err = o.checkpoints.Create(ctx, repositoryID, analysisID, opts.ForceFullReindex, reason)
		if err != nil {
			_ = o.store.ReleaseRepositoryLock(ctx, repositoryID, analysisID)
			return nil, fmt.Errorf("create checkpoint: %w", err)
		}
	}

	result, runErr := o.run(ctx, opts, cp, isResuming)
	if runErr != nil {
		failMsg := runErr.Error()
		if ctx.Err() != nil {
			failMsg = "cancelled"
			analysisMetrics.runsCancelled.Inc()
		} else {
			analysisMetrics.runsFailed.Inc()
		}
		if failErr := o.checkpoints.Fail(ctx, cp, failMsg); failErr != nil {
			o.logger.Warn("analysis.checkpoint.fail_write_error", "err", failErr)
		}
		emit(opts.ProgressSink, func(s ProgressSink) { s.Completed(false, AnalyzeResult{}) })
		return nil, runErr
	}

	if err := o.checkpoints.Complete(ctx, cp); err != nil {
		o.logger.Warn("analysis.checkpoint.complete_write_error", "err", err)
	}
	analysisMetrics.totalDuration.Observe(time.Since(start).Seconds())
	emit(opts.ProgressSink, func(s ProgressSink) { s.Completed(true, *result) })
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, opts AnalyzeOptions, cp *model.Checkpoint, isResuming bool) (*AnalyzeResult, error) {
	repoCtx := opts.RepositoryContext
	sink := opts.ProgressSink

	phase := func(p model.Phase) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.checkpoints.UpdatePhase(ctx, cp, p); err != nil {
			o.logger.Warn("analysis.checkpoint.phase_write_error", "phase", p, "err", err)
		}
		emit(sink, func(s ProgressSink) { s.PhaseChanged(p) })
		return nil
	}

	// Step 2: scan (with hashes).
	if err := phase(model.PhaseIndexingFiles); err != nil {
		return nil, err
	}
	scanStart := time.Now()
	scanResult, err := o.scanner.Scan(scan.Options{
		RootDirectory: repoCtx.RootDirectory,
		Extensions:    opts.Extensions,
		IgnoreGlobs:   append(append([]string{}, scan.DefaultIgnoreGlobs...), opts.IgnoreGlobs...),
		MaxFileSize:   opts.MaxFileSize,
		WithHashes:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("scan repository: %w", err)
	}
	analysisMetrics.scanDuration.Observe(time.Since(scanStart).Seconds())
	analysisMetrics.filesScanned.Add(float64(len(scanResult.Files)))

	if len(scanResult.Files) == 0 {
		// Step 6: empty repository.
		return &AnalyzeResult{SkipReasons: scanResult.SkipReasons}, nil
	}

	// Step 3: inspect build system.
	if err := phase(model.PhaseIndexingFiles); err != nil {
		return nil, err
	}
	structure, err := o.inspector.Inspect(repoCtx.RootDirectory)
	if err != nil {
		o.logger.Warn("analysis.buildsystem.inspect_error", "err", err)
		structure = &model.MultiModuleProjectStructure{}
	}
	if structure == nil {
		structure = &model.MultiModuleProjectStructure{}
	}
	moduleRoots := make(map[string]string, len(structure.Modules))
	for _, mod := range structure.Modules {
		moduleRoots[mod.Name] = mod.Path
	}
	scan.EnrichWithModules(scanResult.Files, moduleRoots)

	// Step 4: classify files via IncrementalIndexManager; cleanup deleted files.
	if err := phase(model.PhaseIncrementalCheck); err != nil {
		return nil, err
	}
	incResult, err := o.incremental.DetermineFilesToProcess(ctx, repoCtx.RepositoryID, repoCtx.RootDirectory, scanResult.Files, opts.CommitSHA)
	if err != nil {
		return nil, fmt.Errorf("classify files: %w", err)
	}
	if opts.ForceFullReindex {
		incResult.ChangedFiles = scanResult.Files
		incResult.UnchangedFiles = nil
		incResult.IsFullReindex = true
		incResult.Reason = "force_full_reindex"
	}

	cp.FilesDiscovered = len(scanResult.Files)
	cp.ChangedFiles = len(incResult.ChangedFiles)
	cp.UnchangedFiles = len(incResult.UnchangedFiles)
	cp.DeletedFiles = len(incResult.DeletedFiles)
	cp.IsFullReindex = incResult.IsFullReindex
	cp.IndexingReason = incResult.Reason

	filesDeleted := 0
	if len(incResult.DeletedFiles) > 0 {
		filesDeleted, err = o.incremental.CleanupDeletedFiles(ctx, repoCtx.RepositoryID, incResult.DeletedFiles)
		if err != nil {
			return nil, fmt.Errorf("cleanup deleted files: %w", err)
		}
	}
	analysisMetrics.filesChanged.Add(float64(len(incResult.ChangedFiles)))
	analysisMetrics.filesDeleted.Add(float64(len(incResult.DeletedFiles)))

	filesToProcess := incResult.ChangedFiles

	// Step 5: if resuming, filter out checkpoint.filesProcessed.
	if isResuming {
		filesToProcess = incremental.FilterAlreadyProcessedFiles(filesToProcess, cp)
	}

	// Step 6: early exits.
	if len(filesToProcess) == 0 {
		if isResuming {
			return &AnalyzeResult{
				FilesScanned:         len(scanResult.Files),
				NodesCreated:         cp.NodesCreated,
				RelationshipsCreated: cp.RelationshipsCreated,
				WasIncremental:       true,
				FilesSkipped:         len(incResult.UnchangedFiles),
				FilesDeleted:         filesDeleted,
				IndexingReason:       incResult.Reason,
				SkipReasons:          scanResult.SkipReasons,
			}, nil
		}
		if !incResult.IsFullReindex {
			if err := o.incremental.UpdateIndexState(ctx, repoCtx.RepositoryID, opts.CommitSHA, scanResult.Files); err != nil {
				o.logger.Warn("analysis.index_state.save_error", "err", err)
			}
			return &AnalyzeResult{
				FilesScanned:   len(scanResult.Files),
				WasIncremental: true,
				FilesSkipped:   len(incResult.UnchangedFiles),
				FilesDeleted:   filesDeleted,
				IndexingReason: "up_to_date",
				SkipReasons:    scanResult.SkipReasons,
			}, nil
		}
	}

	// Step 7: parse remaining files; collect Pass 1 nodes and relationships.
	if err := phase(model.PhaseParsing); err != nil {
		return nil, err
	}
	parseStart := time.Now()
	nodes, relationships, parseFailures := o.parseFiles(ctx, filesToProcess, repoCtx, opts.ParseWorkers)
	analysisMetrics.parseDuration.Observe(time.Since(parseStart).Seconds())
	analysisMetrics.parseFailures.Add(float64(parseFailures))

	// Step 8: synthesize structural nodes.
	structNodes, structRels := synthesizeStructure(repoCtx, structure, scanResult.Files)
	nodes = append(nodes, structNodes...)
	relationships = append(relationships, structRels...)

	// Step 9: resolve (Pass 2); dedup; combine with Pass 1.
	if err := phase(model.PhaseParsing); err != nil {
		return nil, err
	}
	resolveStart := time.Now()
	resolver := resolve.New()
	var imports []model.Relationship
	for _, r := range relationships {
		if r.Type == model.RelImports {
			imports = append(imports, r)
		}
	}
	resolver.BuildIndex(nodes, imports)
	resolved := resolver.Resolve(relationships)
	analysisMetrics.resolveDuration.Observe(time.Since(resolveStart).Seconds())
	analysisMetrics.resolveMisses.Add(float64(len(relationships) - len(resolved)))

	// Step 10: store nodes with checkpoint callback wiring; then store
	// relationships grouped by type.
	if err := phase(model.PhaseStoringNodes); err != nil {
		return nil, err
	}
	storeStart := time.Now()
	nodesStored, relsStored, err := o.storeAll(ctx, repoCtx.RepositoryID, nodes, resolved, cp)
	if err != nil {
		return nil, err
	}
	analysisMetrics.storeDuration.Observe(time.Since(storeStart).Seconds())
	analysisMetrics.nodesStored.Add(float64(nodesStored))
	analysisMetrics.relsStored.Add(float64(relsStored))

	// Step 11: PageRank/analytics (optional, non-fatal). No graph-analytics
	// library is wired in; this phase only records the phase change and
	// never fails the run.
	if err := phase(model.PhaseComputingPageRank); err != nil {
		return nil, err
	}

	// Step 12: save index state.
	if err := phase(model.PhaseSavingIndexState); err != nil {
		return nil, err
	}
	if err := o.incremental.UpdateIndexState(ctx, repoCtx.RepositoryID, opts.CommitSHA, scanResult.Files); err != nil {
		o.logger.Warn("analysis.index_state.save_error", "err", err)
	}

	// Step 13: complete checkpoint (handled by the caller after run returns).
	return &AnalyzeResult{
		FilesScanned:         len(scanResult.Files),
		NodesCreated:         nodesStored,
		RelationshipsCreated: relsStored,
		WasIncremental:       !incResult.IsFullReindex,
		FilesSkipped:         len(incResult.UnchangedFiles),
		FilesDeleted:         filesDeleted,
		IndexingReason:       incResult.Reason,
		SkipReasons:          scanResult.SkipReasons,
	}, nil
}

// parseFiles runs the registry's parser over each file via a bounded worker
// pool: parsing is parallel per file via a worker pool. Each worker writes
// only to its own result slot, avoiding the contention a shared
// accumulator would need locking for.
func (o *Orchestrator) parseFiles(ctx context.Context, files []model.FileInfo, repoCtx model.RepositoryContext, workers int) ([]model.Node, []model.Relationship, int) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(files) {
		workers = len(files)
	}
	if workers < 1 {
		workers = 1
	}

	type fileResult struct {
		nodes []model.Node
		rels  []model.Relationship
		err   bool
	}
	results := make([]fileResult, len(files))

	jobs := make(chan int, len(files))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					return
				}
				language := parse.DetectLanguage(files[i].Extension)
				r := o.parsers.ParseFile(files[i], repoCtx, language)
				if r == nil {
					results[i] = fileResult{err: true}
					continue
				}
				results[i] = fileResult{nodes: r.Nodes, rels: r.Relationships}
			}
		}()
	}
	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var nodes []model.Node
	var rels []model.Relationship
	failures := 0
	for _, r := range results {
		if r.err {
			failures++
			continue
		}
		nodes = append(nodes, r.nodes...)
		rels = append(rels, r.rels...)
	}
	return nodes, rels, failures
}

// synthesizeStructure builds step 8's Repository/Module/ExternalDependency
// nodes and their structural edges.
func synthesizeStructure(repoCtx model.RepositoryContext, structure *model.MultiModuleProjectStructure, files []model.FileInfo) ([]model.Node, []model.Relationship) {
	var nodes []model.Node
	var rels []model.Relationship
	now := time.Now()

	repoQN := ids.RepositoryQualifiedName(repoCtx.RepositoryID)
	repoEntityID := ids.EntityID(model.KindRepository, repoQN)
	nodes = append(nodes, model.Node{
		EntityID:  repoEntityID,
		Kind:      model.KindRepository,
		Name:      repoCtx.RepositoryName,
		CreatedAt: now,
		Properties: map[string]any{
			"repository_url": repoCtx.RepositoryURL,
		},
	})

	for _, f := range files {
		fileQN := ids.FileQualifiedName(repoCtx.RepositoryID, f.RelativePath)
		fileEntityID := ids.EntityID(model.KindFile, fileQN)
		rels = append(rels, model.Relationship{
			EntityID:  ids.RelationshipID(model.RelBelongsTo, fileEntityID, repoEntityID),
			Type:      model.RelBelongsTo,
			SourceID:  fileEntityID,
			TargetID:  repoEntityID,
			CreatedAt: now,
		})
	}

	depKeys := map[string]bool{}
	moduleEntityIDs := map[string]string{}
	for _, mod := range structure.Modules {
		modQN := ids.ModuleQualifiedName(repoCtx.RepositoryID, mod.Name)
		modEntityID := ids.EntityID(model.KindModule, modQN)
		moduleEntityIDs[mod.Name] = modEntityID
		nodes = append(nodes, model.Node{
			EntityID:  modEntityID,
			Kind:      model.KindModule,
			Name:      mod.Name,
			FilePath:  mod.Path,
			CreatedAt: now,
			Properties: map[string]any{
				"kind":    string(mod.Kind),
				"group":   mod.BuildResult.Group,
				"version": mod.BuildResult.Version,
			},
		})
		rels = append(rels, model.Relationship{
			EntityID:  ids.RelationshipID(model.RelHasModule, repoEntityID, modEntityID),
			Type:      model.RelHasModule,
			SourceID:  repoEntityID,
			TargetID:  modEntityID,
			CreatedAt: now,
		})

		for _, f := range files {
			if f.ModuleName != mod.Name {
				continue
			}
			fileQN := ids.FileQualifiedName(repoCtx.RepositoryID, f.RelativePath)
			fileEntityID := ids.EntityID(model.KindFile, fileQN)
			rels = append(rels, model.Relationship{
				EntityID:  ids.RelationshipID(model.RelContainsFile, modEntityID, fileEntityID),
				Type:      model.RelContainsFile,
				SourceID:  modEntityID,
				TargetID:  fileEntityID,
				CreatedAt: now,
			})
			rels = append(rels, model.Relationship{
				EntityID:  ids.RelationshipID(model.RelDefinedInModule, fileEntityID, modEntityID),
				Type:      model.RelDefinedInModule,
				SourceID:  fileEntityID,
				TargetID:  modEntityID,
				CreatedAt: now,
			})
		}

		for _, dep := range mod.BuildResult.ExternalDependencies {
			key := fmt.Sprintf("%s:%s:%s", dep.Group, dep.Artifact, dep.Version)
			depQN := ids.ExternalDependencyQualifiedName(repoCtx.RepositoryID, dep.Group, dep.Artifact, dep.Version)
			depEntityID := ids.EntityID(model.KindExternalDependency, depQN)
			if !depKeys[key] {
				depKeys[key] = true
				nodes = append(nodes, model.Node{
					EntityID:  depEntityID,
					Kind:      model.KindExternalDependency,
					Name:      key,
					CreatedAt: now,
					Properties: map[string]any{
						"group":    dep.Group,
						"artifact": dep.Artifact,
						"version":  dep.Version,
					},
				})
			}
			rels = append(rels, model.Relationship{
				EntityID:  ids.RelationshipID(model.RelHasDependency, modEntityID, depEntityID),
				Type:      model.RelHasDependency,
				SourceID:  modEntityID,
				TargetID:  depEntityID,
				CreatedAt: now,
			})
		}
	}

	for _, mod := range structure.Modules {
		sourceID, ok := moduleEntityIDs[mod.Name]
		if !ok {
			continue
		}
		for _, projDep := range mod.BuildResult.ProjectDependencies {
			targetID, ok := moduleEntityIDs[projDep.ModuleName]
			if !ok {
				continue
			}
			rels = append(rels, model.Relationship{
				EntityID:  ids.RelationshipID(model.RelDependsOnModule, sourceID, targetID),
				Type:      model.RelDependsOnModule,
				SourceID:  sourceID,
				TargetID:  targetID,
				CreatedAt: now,
			})
		}
	}

	return nodes, rels
}

// storeAll stores nodes then relationships grouped by type, wiring
// CheckpointManager.MarkBatchComplete as the node-batch callback — only
// node batches advance filesProcessed.
func (o *Orchestrator) storeAll(ctx context.Context, repositoryID string, nodes []model.Node, rels []model.Relationship, cp *model.Checkpoint) (int, int, error) {
	nodeResult, err := o.store.SaveNodesBatch(ctx, repositoryID, nodes, func(batchIndex int, filesInBatch []string, nodesInBatch int) error {
		return o.checkpoints.MarkBatchComplete(ctx, cp, batchIndex, batchIndex+1, filesInBatch, nodesInBatch, 0)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("store nodes: %w", err)
	}

	byType := make(map[string][]model.Relationship)
	var order []string
	for _, r := range rels {
		if _, ok := byType[r.Type]; !ok {
			order = append(order, r.Type)
		}
		byType[r.Type] = append(byType[r.Type], r)
	}
	sort.Strings(order)

	relsStored := 0
	for _, relType := range order {
		group := byType[relType]
		count, err := o.store.SaveRelationshipsBatch(ctx, repositoryID, relType, group, func(batchIndex int, relType string, n int) error {
			return o.checkpoints.MarkBatchComplete(ctx, cp, cp.BatchIndex, cp.BatchIndex, nil, 0, n)
		})
		if err != nil {
			return nodeResult.NodesStored, relsStored, fmt.Errorf("store relationships (%s): %w", relType, err)
		}
		relsStored += count
	}

	return nodeResult.NodesStored, relsStored, nil
}
