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

package model

import "testing"

func TestCheckpoint_AddProcessedFiles_Dedupes(t *testing.T) {
	c := &Checkpoint{}

	c.AddProcessedFiles([]string{"a.go", "b.go"})
	c.AddProcessedFiles([]string{"b.go", "c.go"})

	want := []string{"a.go", "b.go", "c.go"}
	if len(c.FilesProcessed) != len(want) {
		t.Fatalf("FilesProcessed = %v, want %v", c.FilesProcessed, want)
	}
	for i, p := range want {
		if c.FilesProcessed[i] != p {
			t.Errorf("FilesProcessed[%d] = %q, want %q", i, c.FilesProcessed[i], p)
		}
	}
}

func TestCheckpoint_HasProcessed(t *testing.T) {
	c := &Checkpoint{}
	c.AddProcessedFiles([]string{"a.go"})

	if !c.HasProcessed("a.go") {
		t.Error("HasProcessed(a.go) = false, want true")
	}
	if c.HasProcessed("b.go") {
		t.Error("HasProcessed(b.go) = true, want false")
	}
}

func TestCheckpoint_HasProcessed_PreservesPriorFilesProcessed(t *testing.T) {
	// A Checkpoint loaded from storage arrives with FilesProcessed already
	// populated and the internal set not yet built.
	c := &Checkpoint{FilesProcessed: []string{"x.go", "y.go"}}

	if !c.HasProcessed("x.go") {
		t.Error("HasProcessed(x.go) = false, want true after loading existing FilesProcessed")
	}

	c.AddProcessedFiles([]string{"x.go", "z.go"})
	if len(c.FilesProcessed) != 3 {
		t.Errorf("FilesProcessed = %v, want 3 entries (no duplicate of x.go)", c.FilesProcessed)
	}
}
