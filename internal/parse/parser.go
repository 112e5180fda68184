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

// Package parse implements Parser dispatch: a registry keyed by language
// that routes FileInfo to per-language LanguageParser implementations,
// without any virtual-inheritance-style class hierarchy.
// Concrete per-language parsers are out of scope beyond one demonstrative
// Go implementation; every other extension falls through to genericParser,
// which still satisfies the "every file yields exactly one File node"
// contract.
package parse

import (
	"log/slog"

	"github.com/kraklabs/codegraph/internal/model"
)

// SingleFileParseResult is the output of parsing one file.
type SingleFileParseResult struct {
	FilePath      string
	Nodes         []model.Node
	Relationships []model.Relationship
}

// LanguageParser is the per-language capability the dispatcher routes to.
// Implementations must be pure with respect to their FileInfo input so
// they can run safely across a worker pool.
type LanguageParser interface {
	ParseFile(file model.FileInfo, ctx model.RepositoryContext) (*SingleFileParseResult, error)
}

// Registry dispatches FileInfo to a LanguageParser keyed by language,
// falling back to a generic parser for anything unregistered.
type Registry struct {
	logger  *slog.Logger
	parsers map[string]LanguageParser
	generic LanguageParser
}

// NewRegistry creates an empty dispatch registry with the generic fallback
// wired in for every language not explicitly registered.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:  logger,
		parsers: make(map[string]LanguageParser),
		generic: newGenericParser(),
	}
}

// Register adds (or replaces) the LanguageParser for a language tag.
func (r *Registry) Register(language string, p LanguageParser) {
	r.parsers[language] = p
}

// ParseFile routes file to the parser registered for language (callers
// pass DetectLanguage of the file's extension), or the generic fallback.
// A parse failure of a single file is logged and the file falls back to
// the generic parser's single File node; the pipeline proceeds.
func (r *Registry) ParseFile(file model.FileInfo, ctx model.RepositoryContext, language string) *SingleFileParseResult {
	p, ok := r.parsers[language]
	if !ok {
		p = r.generic
	}
	result, err := p.ParseFile(file, ctx)
	if err != nil {
		r.logger.Warn("parse.file.error", "path", file.RelativePath, "language", language, "err", err)
		// The generic parser only inspects FileInfo metadata, never file
		// content, so it cannot itself fail.
		result, _ = r.generic.ParseFile(file, ctx)
	}
	return result
}

// LanguageExtensions maps file extensions to the language tag the registry
// dispatches on.
var LanguageExtensions = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".cs":    "csharp",
	".rb":    "ruby",
	".php":   "php",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".proto": "protobuf",
}

// DetectLanguage resolves a file's language tag from its extension.
func DetectLanguage(extension string) string {
	if lang, ok := LanguageExtensions[extension]; ok {
		return lang
	}
	return ""
}
