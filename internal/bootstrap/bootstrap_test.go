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

package bootstrap

import (
	"path/filepath"
	"sort"
	"testing"
)

func TestInitProject_RequiresProjectID(t *testing.T) {
	_, err := InitProject(ProjectConfig{DataDir: t.TempDir()}, nil)
	if err == nil {
		t.Fatal("expected an error when ProjectID is empty")
	}
}

func TestInitProject_CreatesDataDir(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "proj")

	info, err := InitProject(ProjectConfig{ProjectID: "proj", DataDir: dataDir}, nil)
	if err != nil {
		t.Fatalf("InitProject: %v", err)
	}
	if info.ProjectID != "proj" {
		t.Errorf("ProjectID = %q, want proj", info.ProjectID)
	}
	if info.DataDir != dataDir {
		t.Errorf("DataDir = %q, want %q", info.DataDir, dataDir)
	}
}

func TestInitProject_Idempotent(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "proj")

	if _, err := InitProject(ProjectConfig{ProjectID: "proj", DataDir: dataDir}, nil); err != nil {
		t.Fatalf("first InitProject: %v", err)
	}
	if _, err := InitProject(ProjectConfig{ProjectID: "proj", DataDir: dataDir}, nil); err != nil {
		t.Fatalf("second InitProject: %v", err)
	}
}

func TestOpenProject_MissingProjectErrors(t *testing.T) {
	_, err := OpenProject(ProjectConfig{ProjectID: "missing", DataDir: filepath.Join(t.TempDir(), "absent")}, nil)
	if err == nil {
		t.Fatal("expected an error opening a project that was never initialized")
	}
}

func TestOpenProject_AfterInit(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "proj")

	if _, err := InitProject(ProjectConfig{ProjectID: "proj", DataDir: dataDir}, nil); err != nil {
		t.Fatalf("InitProject: %v", err)
	}

	store, err := OpenProject(ProjectConfig{ProjectID: "proj", DataDir: dataDir}, nil)
	if err != nil {
		t.Fatalf("OpenProject: %v", err)
	}
	defer store.Close()
}

func TestListProjects(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dataDir := filepath.Join(home, ".codegraph", "data")
	for _, id := range []string{"alpha", "beta"} {
		if _, err := InitProject(ProjectConfig{ProjectID: id, DataDir: filepath.Join(dataDir, id)}, nil); err != nil {
			t.Fatalf("InitProject(%s): %v", id, err)
		}
	}

	projects, err := ListProjects()
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	sort.Strings(projects)
	if len(projects) != 2 || projects[0] != "alpha" || projects[1] != "beta" {
		t.Errorf("ListProjects() = %v, want [alpha beta]", projects)
	}
}

func TestListProjects_NoDataDirYet(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	projects, err := ListProjects()
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if projects != nil {
		t.Errorf("ListProjects() = %v, want nil when no data dir exists", projects)
	}
}
