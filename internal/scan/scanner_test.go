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

package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/codegraph/internal/model"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestScanner_Scan_FiltersIgnoredAndExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "README.md", "# hi")
	writeFile(t, root, "vendor/dep/dep.go", "package dep")
	writeFile(t, root, ".git/HEAD", "ref: refs/heads/main")

	s := New(nil)
	result, err := s.Scan(Options{
		RootDirectory: root,
		Extensions:    map[string]bool{".go": true},
		IgnoreGlobs:   DefaultIgnoreGlobs,
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(result.Files) != 1 {
		t.Fatalf("expected 1 file, got %d: %+v", len(result.Files), result.Files)
	}
	if result.Files[0].RelativePath != "main.go" {
		t.Errorf("RelativePath = %q, want main.go", result.Files[0].RelativePath)
	}
	if result.SkipReasons["excluded_dir"] == 0 {
		t.Error("expected vendor/ and .git/ to be counted as excluded_dir")
	}
	if result.SkipReasons["extension"] == 0 {
		t.Error("expected README.md to be counted as a skipped extension")
	}
}

func TestScanner_Scan_RespectsMaxFileSize(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small.go", "x")
	writeFile(t, root, "big.go", string(make([]byte, 1024)))

	s := New(nil)
	result, err := s.Scan(Options{
		RootDirectory: root,
		Extensions:    map[string]bool{".go": true},
		MaxFileSize:   100,
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(result.Files) != 1 || result.Files[0].RelativePath != "small.go" {
		t.Fatalf("expected only small.go, got %+v", result.Files)
	}
	if result.SkipReasons["too_large"] != 1 {
		t.Errorf("SkipReasons[too_large] = %d, want 1", result.SkipReasons["too_large"])
	}
}

func TestScanner_Scan_WithHashesComputesContentHash(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a")

	s := New(nil)
	result, err := s.Scan(Options{RootDirectory: root, WithHashes: true})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(result.Files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(result.Files))
	}
	if result.Files[0].ContentHash == "" {
		t.Error("expected a non-empty content hash")
	}
}

func TestClassifySourceType(t *testing.T) {
	cases := []struct {
		path string
		want model.SourceType
	}{
		{"src/main/java/Foo.java", model.SourceMain},
		{"src/test/java/FooTest.java", model.SourceTest},
		{"src/main/resources/app.properties", model.SourceResource},
		{"src/test/resources/app.properties", model.SourceResource},
		{"handler_test.go", model.SourceTest},
		{"main.go", model.SourceOther},
	}
	for _, c := range cases {
		if got := classifySourceType(c.path); got != c.want {
			t.Errorf("classifySourceType(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestEnrichWithModules_LongestPrefixWins(t *testing.T) {
	files := []model.FileInfo{
		{RelativePath: "api/service/src/main/Foo.java"},
		{RelativePath: "api/src/main/Bar.java"},
		{RelativePath: "other/Baz.java"},
	}
	moduleRoots := map[string]string{
		"api":         "api",
		"api-service": "api/service",
	}

	EnrichWithModules(files, moduleRoots)

	if files[0].ModuleName != "api-service" {
		t.Errorf("files[0].ModuleName = %q, want api-service", files[0].ModuleName)
	}
	if files[0].ModuleRelativePath != "src/main/Foo.java" {
		t.Errorf("files[0].ModuleRelativePath = %q, want src/main/Foo.java", files[0].ModuleRelativePath)
	}
	if files[1].ModuleName != "api" {
		t.Errorf("files[1].ModuleName = %q, want api", files[1].ModuleName)
	}
	if files[2].ModuleName != "" {
		t.Errorf("files[2].ModuleName = %q, want empty (no matching root)", files[2].ModuleName)
	}
}
