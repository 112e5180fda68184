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
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/kraklabs/codegraph/internal/ids"
	"github.com/kraklabs/codegraph/internal/model"
)

// GoParser is the one concrete, demonstrative LanguageParser: tree-sitter
// based extraction of functions, methods, types, imports and same-file
// calls for Go source. Individual language parsers are out of scope beyond
// this one collaborator.
type GoParser struct {
	logger          *slog.Logger
	maxCodeTextSize int64
}

// NewGoParser creates a Go tree-sitter parser.
func NewGoParser(logger *slog.Logger) *GoParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoParser{logger: logger, maxCodeTextSize: 64 * 1024}
}

// SetMaxCodeTextSize bounds the "code_text" property stashed on Function
// nodes.
func (g *GoParser) SetMaxCodeTextSize(size int64) { g.maxCodeTextSize = size }

type goWalkContext struct {
	content      []byte
	filePath     string
	repoCtx      model.RepositoryContext
	funcNameToID map[string]string
	anonCounter  int
	nodes        []model.Node
	funcNodes    []funcWithSyntax
	typeNodes    []model.Node
	fieldRels    []model.Relationship
	imports      []goImport
}

type goImport struct {
	path  string
	alias string // "" for a plain import, "_" for a blank import, "." for a dot import
}

type funcWithSyntax struct {
	node   model.Node
	syntax *sitter.Node
}

// ParseFile implements LanguageParser for Go source.
func (g *GoParser) ParseFile(file model.FileInfo, repoCtx model.RepositoryContext) (*SingleFileParseResult, error) {
	content, err := os.ReadFile(file.AbsolutePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		g.logger.Debug("parse.go.syntax_errors", "path", file.RelativePath)
		// Tree-sitter is error-tolerant; continue parsing the partial tree.
	}

	fileQN := ids.FileQualifiedName(repoCtx.RepositoryID, file.RelativePath)
	fileEntityID := ids.EntityID(model.KindFile, fileQN)
	fileNode := model.Node{
		EntityID:  fileEntityID,
		Kind:      model.KindFile,
		Name:      file.RelativePath,
		FilePath:  file.RelativePath,
		Language:  "go",
		CreatedAt: time.Now(),
		Properties: map[string]any{
			"size":         file.Size,
			"content_hash": file.ContentHash,
			"source_type":  string(file.SourceType),
		},
	}

	ctx := &goWalkContext{
		content:      content,
		filePath:     file.RelativePath,
		repoCtx:      repoCtx,
		funcNameToID: make(map[string]string),
	}
	g.walk(root, ctx)

	result := &SingleFileParseResult{FilePath: file.RelativePath}
	result.Nodes = append(result.Nodes, fileNode)
	result.Nodes = append(result.Nodes, ctx.nodes...)
	result.Nodes = append(result.Nodes, ctx.typeNodes...)

	for _, fn := range ctx.funcNodes {
		result.Relationships = append(result.Relationships, model.Relationship{
			EntityID:  ids.RelationshipID(model.RelHasMethod, fileEntityID, fn.node.EntityID),
			Type:      model.RelHasMethod,
			SourceID:  fileEntityID,
			TargetID:  fn.node.EntityID,
			CreatedAt: time.Now(),
		})
		result.Relationships = append(result.Relationships, g.extractCalls(fn, ctx, fileEntityID)...)
	}
	result.Relationships = append(result.Relationships, ctx.fieldRels...)

	for _, imp := range ctx.imports {
		result.Relationships = append(result.Relationships, model.Relationship{
			EntityID:  ids.RelationshipID(model.RelImports, fileEntityID, "unresolved:"+imp.path),
			Type:      model.RelImports,
			SourceID:  fileEntityID,
			TargetID:  "",
			CreatedAt: time.Now(),
			Properties: map[string]any{
				"file_path":   ctx.filePath,
				"import_path": imp.path,
				"alias":       imp.alias,
			},
		})
	}

	return result, nil
}

// walk recursively visits the AST collecting function/method/closure nodes.
func (g *GoParser) walk(node *sitter.Node, ctx *goWalkContext) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "function_declaration":
		if fn := g.extractFunction(node, ctx); fn != nil {
			ctx.funcNodes = append(ctx.funcNodes, funcWithSyntax{node: *fn, syntax: node})
			ctx.funcNameToID[fn.Name] = fn.EntityID
		}
	case "method_declaration":
		if fn := g.extractMethod(node, ctx); fn != nil {
			ctx.funcNodes = append(ctx.funcNodes, funcWithSyntax{node: *fn, syntax: node})
			simple := fn.Name
			if idx := strings.LastIndex(simple, "."); idx >= 0 {
				simple = simple[idx+1:]
			}
			ctx.funcNameToID[simple] = fn.EntityID
		}
	case "func_literal":
		if fn := g.extractFuncLiteral(node, ctx); fn != nil {
			ctx.funcNodes = append(ctx.funcNodes, funcWithSyntax{node: *fn, syntax: node})
		}
	case "type_declaration":
		g.extractTypeDeclaration(node, ctx)
	case "import_spec":
		g.extractImportSpec(node, ctx)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		g.walk(node.Child(i), ctx)
	}
}

func (g *GoParser) extractFunction(node *sitter.Node, ctx *goWalkContext) *model.Node {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(ctx.content[nameNode.StartByte():nameNode.EndByte()])
	return g.buildFunctionNode(node, ctx, name, model.KindFunction)
}

func (g *GoParser) extractMethod(node *sitter.Node, ctx *goWalkContext) *model.Node {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	methodName := string(ctx.content[nameNode.StartByte():nameNode.EndByte()])
	receiverType := ""
	if recv := node.ChildByFieldName("receiver"); recv != nil {
		receiverType = extractReceiverTypeName(recv, ctx.content)
	}
	fullName := methodName
	if receiverType != "" {
		fullName = receiverType + "." + methodName
	}
	return g.buildFunctionNode(node, ctx, fullName, model.KindMethod)
}

func (g *GoParser) extractFuncLiteral(node *sitter.Node, ctx *goWalkContext) *model.Node {
	ctx.anonCounter++
	name := fmt.Sprintf("$anon_%d", ctx.anonCounter)
	return g.buildFunctionNode(node, ctx, name, model.KindFunction)
}

func (g *GoParser) buildFunctionNode(node *sitter.Node, ctx *goWalkContext, name, kind string) *model.Node {
	startLine := int(node.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1
	startCol := int(node.StartPoint().Column)
	endCol := int(node.EndPoint().Column)

	codeText := string(ctx.content[node.StartByte():node.EndByte()])
	if g.maxCodeTextSize > 0 && int64(len(codeText)) > g.maxCodeTextSize {
		codeText = codeText[:g.maxCodeTextSize]
	}

	qn := ids.SymbolQualifiedName(ctx.repoCtx.RepositoryID, ctx.filePath, name, startLine, startCol)
	n := model.Node{
		EntityID:  ids.EntityID(kind, qn),
		Kind:      kind,
		Name:      name,
		FilePath:  ctx.filePath,
		Language:  "go",
		StartLine: startLine,
		EndLine:   endLine,
		StartCol:  startCol,
		EndCol:    endCol,
		CreatedAt: time.Now(),
		Properties: map[string]any{
			"code_text": codeText,
		},
	}
	ctx.nodes = append(ctx.nodes, n)
	return &n
}

// extractCalls walks fn's subtree for call_expression nodes whose callee
// resolves, by simple name, to another function in the same file. Cross-
// file calls are left as CALLS relationships with an empty TargetID and the
// raw callee text in the unresolved_name property, for RelationshipResolver's
// Pass 2 to complete.
func (g *GoParser) extractCalls(fn funcWithSyntax, ctx *goWalkContext, fileEntityID string) []model.Relationship {
	var rels []model.Relationship
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "call_expression" {
			if fnNode := n.ChildByFieldName("function"); fnNode != nil {
				callee := string(ctx.content[fnNode.StartByte():fnNode.EndByte()])
				simple := callee
				if idx := strings.LastIndex(simple, "."); idx >= 0 {
					simple = simple[idx+1:]
				}
				if targetID, ok := ctx.funcNameToID[simple]; ok && targetID != fn.node.EntityID {
					rels = append(rels, model.Relationship{
						EntityID:  ids.RelationshipID(model.RelCalls, fn.node.EntityID, targetID),
						Type:      model.RelCalls,
						SourceID:  fn.node.EntityID,
						TargetID:  targetID,
						CreatedAt: time.Now(),
					})
				} else {
					// Unresolved: carry the raw callee name for Pass 2.
					rels = append(rels, model.Relationship{
						EntityID:  ids.RelationshipID(model.RelCalls, fn.node.EntityID, "unresolved:"+callee),
						Type:      model.RelCalls,
						SourceID:  fn.node.EntityID,
						TargetID:  "",
						CreatedAt: time.Now(),
						Properties: map[string]any{
							"unresolved_name": callee,
							"file_path":       ctx.filePath,
						},
					})
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			visit(n.Child(i))
		}
	}
	visit(fn.syntax)
	return rels
}

// extractTypeDeclaration handles `type X struct {...}` / `type X interface
// {...}`, emitting a Class node per spec (struct and interface are not
// distinguished at the node-kind level — both map to the "Class" kind)
// plus HAS_FIELD relationships for each struct field.
func (g *GoParser) extractTypeDeclaration(node *sitter.Node, ctx *goWalkContext) {
	for i := 0; i < int(node.ChildCount()); i++ {
		spec := node.Child(i)
		if spec.Type() != "type_spec" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		typeNode := spec.ChildByFieldName("type")
		if nameNode == nil || typeNode == nil {
			continue
		}
		name := string(ctx.content[nameNode.StartByte():nameNode.EndByte()])
		startLine := int(spec.StartPoint().Row) + 1
		endLine := int(spec.EndPoint().Row) + 1

		qn := ids.SymbolQualifiedName(ctx.repoCtx.RepositoryID, ctx.filePath, name, startLine, int(spec.StartPoint().Column))
		typeEntityID := ids.EntityID(model.KindClass, qn)
		classNode := model.Node{
			EntityID:  typeEntityID,
			Kind:      model.KindClass,
			Name:      name,
			FilePath:  ctx.filePath,
			Language:  "go",
			StartLine: startLine,
			EndLine:   endLine,
			CreatedAt: time.Now(),
			Properties: map[string]any{
				"go_type_kind": typeNode.Type(),
			},
		}
		ctx.typeNodes = append(ctx.typeNodes, classNode)

		if typeNode.Type() == "struct_type" {
			ctx.fieldRels = append(ctx.fieldRels, g.extractStructFields(typeNode, ctx, typeEntityID)...)
		}
	}
}

// extractStructFields emits one HAS_FIELD relationship per named field in a
// struct_type's field_declaration_list. Embedded (unnamed) fields are
// skipped — tracking them as EXTENDS-style composition is out of scope.
func (g *GoParser) extractStructFields(structType *sitter.Node, ctx *goWalkContext, typeEntityID string) []model.Relationship {
	fieldList := structType.ChildByFieldName("body")
	if fieldList == nil {
		return nil
	}
	var rels []model.Relationship
	for i := 0; i < int(fieldList.ChildCount()); i++ {
		decl := fieldList.Child(i)
		if decl.Type() != "field_declaration" {
			continue
		}
		nameNode := decl.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		fieldName := string(ctx.content[nameNode.StartByte():nameNode.EndByte()])
		qn := ids.SymbolQualifiedName(ctx.repoCtx.RepositoryID, ctx.filePath, fieldName, int(decl.StartPoint().Row)+1, int(decl.StartPoint().Column))
		fieldEntityID := ids.EntityID(model.KindField, qn)
		ctx.nodes = append(ctx.nodes, model.Node{
			EntityID:  fieldEntityID,
			Kind:      model.KindField,
			Name:      fieldName,
			FilePath:  ctx.filePath,
			Language:  "go",
			StartLine: int(decl.StartPoint().Row) + 1,
			EndLine:   int(decl.EndPoint().Row) + 1,
			CreatedAt: time.Now(),
		})
		rels = append(rels, model.Relationship{
			EntityID:  ids.RelationshipID(model.RelHasField, typeEntityID, fieldEntityID),
			Type:      model.RelHasField,
			SourceID:  typeEntityID,
			TargetID:  fieldEntityID,
			CreatedAt: time.Now(),
		})
	}
	return rels
}

// extractImportSpec records one import_spec's path and optional alias
// (package_identifier, "_", or ".") for Pass 2 cross-file resolution.
func (g *GoParser) extractImportSpec(node *sitter.Node, ctx *goWalkContext) {
	pathNode := node.ChildByFieldName("path")
	if pathNode == nil {
		return
	}
	path := strings.Trim(string(ctx.content[pathNode.StartByte():pathNode.EndByte()]), `"`)
	alias := ""
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		alias = string(ctx.content[nameNode.StartByte():nameNode.EndByte()])
	}
	ctx.imports = append(ctx.imports, goImport{path: path, alias: alias})
}

func extractReceiverTypeName(receiver *sitter.Node, content []byte) string {
	if receiver == nil {
		return ""
	}
	for i := 0; i < int(receiver.ChildCount()); i++ {
		child := receiver.Child(i)
		if child.Type() == "parameter_declaration" {
			typeNode := child.ChildByFieldName("type")
			if typeNode == nil {
				continue
			}
			text := string(content[typeNode.StartByte():typeNode.EndByte()])
			return strings.TrimPrefix(text, "*")
		}
	}
	return ""
}
