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

package resolve

import (
	"testing"

	"github.com/kraklabs/codegraph/internal/model"
)

func TestResolver_Resolve_ExactEntityIDPassesThrough(t *testing.T) {
	r := New()
	r.BuildIndex([]model.Node{{EntityID: "func:a"}}, nil)

	rels := []model.Relationship{
		{EntityID: "rel:1", Type: model.RelCalls, SourceID: "func:x", TargetID: "func:a"},
	}

	got := r.Resolve(rels)
	if len(got) != 1 || got[0].TargetID != "func:a" {
		t.Fatalf("Resolve() = %+v, want the pre-resolved relationship unchanged", got)
	}
}

func TestResolver_Resolve_SameFileQualifiedName(t *testing.T) {
	r := New()
	nodes := []model.Node{
		{EntityID: "func:caller", FilePath: "main.go", Name: "main"},
		{EntityID: "func:callee", FilePath: "main.go", Name: "helper"},
	}
	r.BuildIndex(nodes, nil)

	rels := []model.Relationship{
		{
			EntityID: "", Type: model.RelCalls, SourceID: "func:caller", TargetID: "",
			Properties: map[string]any{"unresolved_name": "helper", "file_path": "main.go"},
		},
	}

	got := r.Resolve(rels)
	if len(got) != 1 {
		t.Fatalf("expected 1 resolved relationship, got %d", len(got))
	}
	if got[0].TargetID != "func:callee" {
		t.Errorf("TargetID = %q, want func:callee", got[0].TargetID)
	}
	if got[0].EntityID == "" {
		t.Error("expected a freshly-computed EntityID for the resolved relationship")
	}
}

func TestResolver_Resolve_CrossFileViaImportAlias(t *testing.T) {
	r := New()
	nodes := []model.Node{
		{EntityID: "func:caller", FilePath: "app/main.go", Name: "main"},
		{EntityID: "func:helper", FilePath: "util/helpers.go", Name: "Helper"},
	}
	imports := []model.Relationship{
		{
			Properties: map[string]any{
				"file_path":   "app/main.go",
				"alias":       "util",
				"import_path": "example.com/repo/util",
			},
		},
	}
	r.BuildIndex(nodes, imports)

	rels := []model.Relationship{
		{
			Type: model.RelCalls, SourceID: "func:caller",
			Properties: map[string]any{"unresolved_name": "util.Helper", "file_path": "app/main.go"},
		},
	}

	got := r.Resolve(rels)
	if len(got) != 1 || got[0].TargetID != "func:helper" {
		t.Fatalf("Resolve() = %+v, want target resolved to func:helper", got)
	}
}

func TestResolver_Resolve_UnresolvableIsDropped(t *testing.T) {
	r := New()
	r.BuildIndex([]model.Node{{EntityID: "func:a", FilePath: "main.go", Name: "a"}}, nil)

	rels := []model.Relationship{
		{
			Type: model.RelCalls, SourceID: "func:x",
			Properties: map[string]any{"unresolved_name": "doesNotExist", "file_path": "main.go"},
		},
	}

	got := r.Resolve(rels)
	if len(got) != 0 {
		t.Errorf("expected the unresolvable relationship to be dropped, got %+v", got)
	}
}

func TestResolver_Resolve_ImportsResolveToLocalPackageFile(t *testing.T) {
	r := New()
	nodes := []model.Node{
		{EntityID: "file:main", Kind: model.KindFile, FilePath: "app/main.go"},
		{EntityID: "file:util", Kind: model.KindFile, FilePath: "util/helpers.go"},
	}
	r.BuildIndex(nodes, nil)

	rels := []model.Relationship{
		{
			Type: model.RelImports, SourceID: "file:main", TargetID: "",
			Properties: map[string]any{"file_path": "app/main.go", "import_path": "example.com/repo/util", "alias": "util"},
		},
		{
			Type: model.RelImports, SourceID: "file:main", TargetID: "",
			Properties: map[string]any{"file_path": "app/main.go", "import_path": "github.com/prometheus/client_golang/prometheus", "alias": "prometheus"},
		},
	}

	got := r.Resolve(rels)
	if len(got) != 1 {
		t.Fatalf("Resolve() = %+v, want only the in-repo import to resolve", got)
	}
	if got[0].TargetID != "file:util" {
		t.Errorf("TargetID = %q, want file:util", got[0].TargetID)
	}
}

func TestResolver_Resolve_DedupesByEntityIDLastWriterWins(t *testing.T) {
	r := New()
	r.BuildIndex([]model.Node{{EntityID: "func:a"}}, nil)

	rel1 := model.Relationship{EntityID: "rel:dup", Type: model.RelCalls, SourceID: "func:x", TargetID: "func:a", Properties: map[string]any{"v": 1}}
	rel2 := model.Relationship{EntityID: "rel:dup", Type: model.RelCalls, SourceID: "func:x", TargetID: "func:a", Properties: map[string]any{"v": 2}}

	got := r.Resolve([]model.Relationship{rel1, rel2})
	if len(got) != 1 {
		t.Fatalf("expected duplicates to collapse to 1, got %d", len(got))
	}
	if got[0].Properties["v"] != 2 {
		t.Errorf("expected the last writer (v=2) to win, got %+v", got[0].Properties)
	}
}

func TestSimpleName(t *testing.T) {
	cases := map[string]string{
		"helper":      "helper",
		"util.Helper": "Helper",
		"a.b.c":       "c",
	}
	for in, want := range cases {
		if got := simpleName(in); got != want {
			t.Errorf("simpleName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsExported(t *testing.T) {
	if !isExported("Helper") {
		t.Error("isExported(Helper) = false, want true")
	}
	if isExported("helper") {
		t.Error("isExported(helper) = true, want false")
	}
	if isExported("") {
		t.Error("isExported(\"\") = true, want false")
	}
}
