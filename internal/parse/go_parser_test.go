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

package parse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/codegraph/internal/model"
)

const goSource = `package sample

import (
	"fmt"
	fm "fmt"
)

func Helper() int {
	return 1
}

func Caller() int {
	return Helper()
}

type Greeter struct{
	Name string
	Age  int
}

func (g *Greeter) Greet() string {
	return fmt.Sprintf("hi %s, %s", g.Name, fm.Sprint(g.Age))
}
`

func writeGoFile(t *testing.T) model.FileInfo {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.go")
	if err := os.WriteFile(path, []byte(goSource), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return model.FileInfo{AbsolutePath: path, RelativePath: "sample.go", Extension: ".go"}
}

func TestGoParser_ParseFile_ExtractsFunctionsAndMethods(t *testing.T) {
	p := NewGoParser(nil)
	file := writeGoFile(t)

	result, err := p.ParseFile(file, model.RepositoryContext{RepositoryID: "repo"})
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	var sawFile, sawHelper, sawCaller, sawMethod bool
	for _, n := range result.Nodes {
		switch {
		case n.Kind == model.KindFile:
			sawFile = true
		case n.Kind == model.KindFunction && n.Name == "Helper":
			sawHelper = true
		case n.Kind == model.KindFunction && n.Name == "Caller":
			sawCaller = true
		case n.Kind == model.KindMethod && n.Name == "Greeter.Greet":
			sawMethod = true
		}
	}
	if !sawFile {
		t.Error("expected a File node")
	}
	if !sawHelper {
		t.Error("expected a Helper Function node")
	}
	if !sawCaller {
		t.Error("expected a Caller Function node")
	}
	if !sawMethod {
		t.Error("expected a Greeter.Greet Method node")
	}
}

func TestGoParser_ParseFile_ResolvesSameFileCall(t *testing.T) {
	p := NewGoParser(nil)
	file := writeGoFile(t)

	result, err := p.ParseFile(file, model.RepositoryContext{RepositoryID: "repo"})
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	var callerID, helperID string
	for _, n := range result.Nodes {
		if n.Name == "Caller" {
			callerID = n.EntityID
		}
		if n.Name == "Helper" {
			helperID = n.EntityID
		}
	}

	found := false
	for _, rel := range result.Relationships {
		if rel.Type == model.RelCalls && rel.SourceID == callerID && rel.TargetID == helperID {
			found = true
		}
	}
	if !found {
		t.Error("expected a resolved CALLS relationship from Caller to Helper")
	}
}

func TestGoParser_ParseFile_ExtractsStructAndFields(t *testing.T) {
	p := NewGoParser(nil)
	file := writeGoFile(t)

	result, err := p.ParseFile(file, model.RepositoryContext{RepositoryID: "repo"})
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	var classID string
	for _, n := range result.Nodes {
		if n.Kind == model.KindClass && n.Name == "Greeter" {
			classID = n.EntityID
		}
	}
	if classID == "" {
		t.Fatal("expected a Greeter Class node")
	}

	fieldNames := map[string]bool{}
	for _, n := range result.Nodes {
		if n.Kind == model.KindField {
			fieldNames[n.Name] = true
		}
	}
	if !fieldNames["Name"] || !fieldNames["Age"] {
		t.Errorf("expected Name and Age Field nodes, got %v", fieldNames)
	}

	hasFieldCount := 0
	for _, rel := range result.Relationships {
		if rel.Type == model.RelHasField && rel.SourceID == classID {
			hasFieldCount++
		}
	}
	if hasFieldCount != 2 {
		t.Errorf("expected 2 HAS_FIELD relationships from Greeter, got %d", hasFieldCount)
	}
}

func TestGoParser_ParseFile_ExtractsImports(t *testing.T) {
	p := NewGoParser(nil)
	file := writeGoFile(t)

	result, err := p.ParseFile(file, model.RepositoryContext{RepositoryID: "repo"})
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	var importPaths []string
	var sawAlias bool
	for _, rel := range result.Relationships {
		if rel.Type != model.RelImports {
			continue
		}
		importPaths = append(importPaths, rel.Properties["import_path"].(string))
		if rel.Properties["alias"] == "fm" {
			sawAlias = true
		}
	}
	if len(importPaths) != 2 {
		t.Errorf("expected 2 IMPORTS relationships, got %v", importPaths)
	}
	if !sawAlias {
		t.Error("expected the aliased fm \"fmt\" import to carry alias=fm")
	}
}

func TestGoParser_SetMaxCodeTextSize_TruncatesCodeText(t *testing.T) {
	p := NewGoParser(nil)
	p.SetMaxCodeTextSize(5)
	file := writeGoFile(t)

	result, err := p.ParseFile(file, model.RepositoryContext{RepositoryID: "repo"})
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	for _, n := range result.Nodes {
		if n.Name != "Helper" {
			continue
		}
		codeText, _ := n.Properties["code_text"].(string)
		if len(codeText) > 5 {
			t.Errorf("code_text length = %d, want <= 5 after SetMaxCodeTextSize(5)", len(codeText))
		}
	}
}
