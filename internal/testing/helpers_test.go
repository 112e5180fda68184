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

package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codegraph/internal/model"
)

// TestSetupTestStore verifies the test store is created correctly.
func TestSetupTestStore(t *testing.T) {
	store := SetupTestStore(t)
	require.NotNil(t, store)

	nodes := QueryNodesByFile(t, store, "auth.go")
	assert.Empty(t, nodes, "should start with no nodes")
}

// TestInsertTestFunction verifies function insertion.
func TestInsertTestFunction(t *testing.T) {
	store := SetupTestStore(t)

	InsertTestFunction(t, store, "func_123", "HandleAuth", "auth.go", 10, 25)

	nodes := QueryNodesByFile(t, store, "auth.go")
	require.Len(t, nodes, 1)
	assert.Equal(t, "func_123", nodes[0].EntityID)
	assert.Equal(t, "HandleAuth", nodes[0].Name)
	assert.Equal(t, model.KindFunction, nodes[0].Kind)
}

// TestInsertTestFile verifies file insertion.
func TestInsertTestFile(t *testing.T) {
	store := SetupTestStore(t)

	InsertTestFile(t, store, "file_123", "auth.go", "abc123", "go", 1234)

	nodes := QueryNodesByFile(t, store, "auth.go")
	require.Len(t, nodes, 1)
	assert.Equal(t, "file_123", nodes[0].EntityID)
	assert.Equal(t, model.KindFile, nodes[0].Kind)
}

// TestInsertTestType verifies type insertion.
func TestInsertTestType(t *testing.T) {
	store := SetupTestStore(t)

	InsertTestType(t, store, "type_123", "UserService", "struct", "user.go", 10, 50)

	nodes := QueryNodesByFile(t, store, "user.go")
	require.Len(t, nodes, 1)
	assert.Equal(t, "type_123", nodes[0].EntityID)
	assert.Equal(t, "UserService", nodes[0].Name)
	assert.Equal(t, "struct", nodes[0].Properties["type_kind"])
}

// TestMultipleInserts verifies multiple entities can be inserted.
func TestMultipleInserts(t *testing.T) {
	store := SetupTestStore(t)

	InsertTestFunction(t, store, "func1", "Main", "main.go", 5, 10)
	InsertTestFunction(t, store, "func2", "Helper", "main.go", 15, 20)
	InsertTestFunction(t, store, "func3", "Process", "main.go", 25, 35)

	require.Equal(t, 3, CountNodesByKindInFile(t, store, "main.go", model.KindFunction))
}

// TestEdgeInsertion verifies relationship edges can be inserted.
func TestEdgeInsertion(t *testing.T) {
	store := SetupTestStore(t)

	InsertTestFile(t, store, "file1", "main.go", "hash1", "go", 100)
	InsertTestFunction(t, store, "func1", "main", "main.go", 1, 10)
	InsertTestFunction(t, store, "func2", "helper", "main.go", 12, 15)

	InsertTestDefines(t, store, "def1", "file1", "func1")
	InsertTestCalls(t, store, "call1", "func1", "func2")
}

// TestStoreIsolation verifies each test gets an isolated store.
func TestStoreIsolation(t *testing.T) {
	store1 := SetupTestStore(t)
	InsertTestFunction(t, store1, "func1", "Test1", "file1.go", 1, 10)

	store2 := SetupTestStore(t)
	assert.Empty(t, QueryNodesByFile(t, store2, "file1.go"), "second store should be isolated from first")

	require.Len(t, QueryNodesByFile(t, store1, "file1.go"), 1)
}
