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

// Package scan implements the FileScanner: a parallel directory walk that
// filters by ignore globs, computes content hashes, and enriches each
// FileInfo with module membership once a build structure is known.
package scan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kraklabs/codegraph/internal/model"
)

// DefaultIgnoreGlobs mirrors the common VCS/build-output excludes every
// scanned repository wants regardless of caller-supplied patterns.
var DefaultIgnoreGlobs = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/.venv/**",
	"**/build/**",
	"**/dist/**",
	"**/target/**",
}

// Scanner walks a repository root and produces FileInfo records.
type Scanner struct {
	logger *slog.Logger
}

// New creates a FileScanner. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{logger: logger}
}

// Options configures one scan.
type Options struct {
	RootDirectory string
	Extensions    map[string]bool // allowed extensions, e.g. ".go": true; nil/empty means "all"
	IgnoreGlobs   []string
	MaxFileSize   int64 // 0 means unlimited
	WithHashes    bool
	Concurrency   int // 0 defaults to runtime.NumCPU()
}

// Result is the scanner's output plus skip-reason accounting.
type Result struct {
	Files       []model.FileInfo
	SkipReasons map[string]int
}

// Scan walks opts.RootDirectory depth-first, filtering by extension and
// ignore glob, and optionally computing a content hash per file in
// parallel across a bounded worker pool (size ~= CPU count).
func (s *Scanner) Scan(opts Options) (*Result, error) {
	root, err := filepath.Abs(opts.RootDirectory)
	if err != nil {
		return nil, fmt.Errorf("resolve root directory: %w", err)
	}

	type candidate struct {
		absPath string
		relPath string
		size    int64
	}

	var candidates []candidate
	skipReasons := make(map[string]int)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("scan.walk.error", "path", path, "err", err)
			return nil
		}
		if path == root {
			return nil
		}
		relPath, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if matchesAny(relPath+"/", opts.IgnoreGlobs) || matchesAny(relPath, opts.IgnoreGlobs) {
				skipReasons["excluded_dir"]++
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			skipReasons["symlink"]++
			return nil
		}

		if matchesAny(relPath, opts.IgnoreGlobs) {
			skipReasons["excluded"]++
			return nil
		}

		ext := strings.ToLower(filepath.Ext(relPath))
		if len(opts.Extensions) > 0 && !opts.Extensions[ext] {
			skipReasons["extension"]++
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		if opts.MaxFileSize > 0 && info.Size() > opts.MaxFileSize {
			skipReasons["too_large"]++
			return nil
		}

		candidates = append(candidates, candidate{absPath: path, relPath: relPath, size: info.Size()})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk repository: %w", walkErr)
	}

	files := make([]model.FileInfo, len(candidates))
	for i, c := range candidates {
		files[i] = model.FileInfo{
			AbsolutePath: c.absPath,
			RelativePath: c.relPath,
			Extension:    strings.ToLower(filepath.Ext(c.relPath)),
			Size:         c.size,
			SourceType:   classifySourceType(c.relPath),
		}
	}

	if opts.WithHashes {
		if err := s.hashAll(files, opts.Concurrency); err != nil {
			return nil, err
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelativePath < files[j].RelativePath })

	return &Result{Files: files, SkipReasons: skipReasons}, nil
}

// hashAll computes content hashes in parallel, bounded by a worker pool.
// Scan output ordering is irrelevant; each worker writes only
// to its own index, so there is no contention.
func (s *Scanner) hashAll(files []model.FileInfo, concurrency int) error {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	if concurrency > len(files) {
		concurrency = len(files)
	}
	if concurrency <= 0 {
		return nil
	}

	jobs := make(chan int, len(files))
	var wg sync.WaitGroup

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				h, err := hashFile(files[idx].AbsolutePath)
				if err != nil {
					s.logger.Warn("scan.hash.error", "path", files[idx].RelativePath, "err", err)
					continue
				}
				files[idx].ContentHash = h
			}
		}()
	}

	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return nil
}

// hashFile computes the content hash of a single file. SHA-256 is used —
// not a faster non-cryptographic hash — collision resistance demands hashes be
// "collision-resistant under adversarial input".
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// matchesAny reports whether relPath matches any of the doublestar glob
// patterns. Using doublestar instead of a hand-rolled matcher (see
// DESIGN.md "Dependency substitutions").
func matchesAny(relPath string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, relPath); ok {
			return true
		}
	}
	return false
}

// classifySourceType applies the common main/test/resource convention used
// by Gradle/Maven-style layouts (src/main, src/test, src/main/resources).
func classifySourceType(relPath string) model.SourceType {
	lower := strings.ToLower(relPath)
	switch {
	case strings.Contains(lower, "src/test/resources/"):
		return model.SourceResource
	case strings.Contains(lower, "src/test/"):
		return model.SourceTest
	case strings.Contains(lower, "src/main/resources/"):
		return model.SourceResource
	case strings.Contains(lower, "src/main/"):
		return model.SourceMain
	case strings.HasSuffix(lower, "_test.go"), strings.Contains(lower, "/test/"), strings.Contains(lower, "/tests/"):
		return model.SourceTest
	default:
		return model.SourceOther
	}
}

// EnrichWithModules sets ModuleName and ModuleRelativePath on each file by
// longest-prefix match against the given module roots.
func EnrichWithModules(files []model.FileInfo, moduleRoots map[string]string) {
	if len(moduleRoots) == 0 {
		return
	}
	// Sort candidate roots by length descending so the longest prefix wins.
	roots := make([]string, 0, len(moduleRoots))
	for name := range moduleRoots {
		roots = append(roots, name)
	}
	sort.Slice(roots, func(i, j int) bool {
		return len(moduleRoots[roots[i]]) > len(moduleRoots[roots[j]])
	})

	for i := range files {
		for _, name := range roots {
			root := moduleRoots[name]
			if root == "" {
				continue
			}
			if files[i].RelativePath == root || strings.HasPrefix(files[i].RelativePath, root+"/") {
				files[i].ModuleName = name
				rel := strings.TrimPrefix(files[i].RelativePath, root)
				files[i].ModuleRelativePath = strings.TrimPrefix(rel, "/")
				break
			}
		}
	}
}
