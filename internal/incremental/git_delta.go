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

package incremental

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// gitDelta is the set of paths git reports as changed between two commits.
// It exists purely as a pre-filter signal alongside the authoritative
// content-hash comparison in determineFilesToProcessWithHashVerification,
// never as a replacement for it.
type gitDelta struct {
	Added    []string
	Modified []string
	Deleted  []string
	Renamed  map[string]string // old path -> new path
}

// isGitRepository reports whether repoRoot is inside a git working tree.
func isGitRepository(repoRoot string) bool {
	cmd := exec.Command("git", "rev-parse", "--git-dir")
	cmd.Dir = repoRoot
	return cmd.Run() == nil
}

// detectGitDelta runs `git diff --name-status -M` between baseSHA and
// headSHA and parses the added/modified/deleted/renamed buckets.
func detectGitDelta(repoRoot, baseSHA, headSHA string) (*gitDelta, error) {
	if headSHA == "" {
		headSHA = "HEAD"
	}
	cmd := exec.Command("git", "diff", "--name-status", "-M", baseSHA, headSHA)
	cmd.Dir = repoRoot
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff --name-status %s %s: %w", baseSHA, headSHA, err)
	}

	delta := &gitDelta{Renamed: make(map[string]string)}
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		status, paths := parts[0], parts[1:]
		switch status[0] {
		case 'A':
			delta.Added = append(delta.Added, paths[0])
		case 'M':
			delta.Modified = append(delta.Modified, paths[0])
		case 'D':
			delta.Deleted = append(delta.Deleted, paths[0])
		case 'R':
			// "R100" or "R95" (similarity percentage); paths[0]=old, paths[1]=new.
			if len(paths) >= 2 {
				delta.Renamed[paths[0]] = paths[1]
			}
		case 'C':
			if len(paths) >= 2 {
				delta.Added = append(delta.Added, paths[1])
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse git diff output: %w", err)
	}
	sort.Strings(delta.Added)
	sort.Strings(delta.Modified)
	sort.Strings(delta.Deleted)
	return delta, nil
}

// candidateChangedPaths returns the set of paths git reports as added,
// modified, or the new side of a rename between baseSHA and the
// repository's current HEAD. ok is false whenever git delta detection
// cannot be used at all (no repo root, no prior commit recorded, the
// directory isn't a git working tree, or the git invocation itself
// fails) — callers must fall back to full content-hash comparison in
// that case rather than treat ok=false as "nothing changed".
func candidateChangedPaths(repoRoot, baseSHA string) (map[string]bool, bool) {
	if repoRoot == "" || baseSHA == "" {
		return nil, false
	}
	if !isGitRepository(repoRoot) {
		return nil, false
	}
	delta, err := detectGitDelta(repoRoot, baseSHA, "HEAD")
	if err != nil {
		return nil, false
	}
	set := make(map[string]bool, len(delta.Added)+len(delta.Modified)+2*len(delta.Renamed))
	for _, p := range delta.Added {
		set[p] = true
	}
	for _, p := range delta.Modified {
		set[p] = true
	}
	for oldPath, newPath := range delta.Renamed {
		set[oldPath] = true
		set[newPath] = true
	}
	return set, true
}
