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

// Package testing provides test helpers for codegraph integration tests.
//
// It wraps a temp-directory-backed graphstore.BoltStore with seeding
// utilities for Node/Relationship fixtures, so package tests elsewhere
// don't have to hand-build model.Node/model.Relationship values.
//
// # Quick Start
//
//	func TestMyFeature(t *testing.T) {
//	    store := testing.SetupTestStore(t)
//
//	    testing.InsertTestFunction(t, store, "func1", "TestFunc", "test.go", 10, 20)
//
//	    nodes := testing.QueryNodesByFile(t, store, "test.go")
//	    require.Len(t, nodes, 1)
//	}
//
// # Seeding Test Data
//
//   - InsertTestFunction / InsertTestFunctionWithSignature: add a Function node
//   - InsertTestFile: add a File node
//   - InsertTestType: add a Class/type node
//   - InsertTestDefines: link a file to a function (BELONGS_TO)
//   - InsertTestCalls: link caller to callee (CALLS)
//   - InsertTestImport: record an import statement (IMPORTS)
//
// # Querying Test Data
//
//   - QueryNodesByFile: nodes recorded against one file path
//   - CountNodesByKindInFile: count of one Kind within a file
package testing
