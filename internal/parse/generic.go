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
	"time"

	"github.com/kraklabs/codegraph/internal/ids"
	"github.com/kraklabs/codegraph/internal/model"
)

// genericParser is the fallback for every language without a registered
// LanguageParser. It emits exactly the mandatory File node and nothing
// else — every file yields exactly one node of kind File, so this is a
// legitimate, contract-conformant result on its own.
type genericParser struct{}

func newGenericParser() *genericParser {
	return &genericParser{}
}

func (g *genericParser) ParseFile(file model.FileInfo, repoCtx model.RepositoryContext) (*SingleFileParseResult, error) {
	qn := ids.FileQualifiedName(repoCtx.RepositoryID, file.RelativePath)
	node := model.Node{
		EntityID:  ids.EntityID(model.KindFile, qn),
		Kind:      model.KindFile,
		Name:      file.RelativePath,
		FilePath:  file.RelativePath,
		Language:  DetectLanguage(file.Extension),
		CreatedAt: time.Now(),
		Properties: map[string]any{
			"size":        file.Size,
			"content_hash": file.ContentHash,
			"source_type": string(file.SourceType),
		},
	}
	return &SingleFileParseResult{
		FilePath: file.RelativePath,
		Nodes:    []model.Node{node},
	}, nil
}
