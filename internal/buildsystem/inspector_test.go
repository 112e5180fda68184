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

package buildsystem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/codegraph/internal/model"
)

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestInspect_NoRecognizedBuildSystemReturnsNil(t *testing.T) {
	root := t.TempDir()
	i := New(nil)

	structure, err := i.Inspect(root)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if structure != nil {
		t.Errorf("expected nil structure for a directory with no build markers, got %+v", structure)
	}
}

func TestInspect_GradleMultiModule(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "settings.gradle.kts"), `
rootProject.name = "demo"
include("api")
include("core")
`)
	mustWrite(t, filepath.Join(root, "api", "build.gradle.kts"), `
plugins {
    id("application")
}
group = "com.example"
version = "1.0.0"
dependencies {
    implementation(project(":core"))
    implementation("com.google.guava:guava:32.1.3-jre")
}
`)
	mustWrite(t, filepath.Join(root, "core", "build.gradle.kts"), `
plugins {
    id("java-library")
}
`)

	i := New(nil)
	structure, err := i.Inspect(root)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if structure == nil {
		t.Fatal("expected a non-nil structure for a Gradle multi-module project")
	}
	if structure.BuildSystem != "gradle" {
		t.Errorf("BuildSystem = %q, want gradle", structure.BuildSystem)
	}
	if structure.RootProjectName != "demo" {
		t.Errorf("RootProjectName = %q, want demo", structure.RootProjectName)
	}
	if len(structure.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %d: %+v", len(structure.Modules), structure.Modules)
	}

	var api *model.Module
	for idx := range structure.Modules {
		if structure.Modules[idx].Name == "api" {
			api = &structure.Modules[idx]
		}
	}
	if api == nil {
		t.Fatal("expected an api module")
	}
	if api.Kind != model.ModuleApplication {
		t.Errorf("api module Kind = %q, want application", api.Kind)
	}
	if api.BuildResult.Group != "com.example" {
		t.Errorf("api module Group = %q, want com.example", api.BuildResult.Group)
	}
	if len(api.BuildResult.ExternalDependencies) != 1 || api.BuildResult.ExternalDependencies[0].Artifact != "guava" {
		t.Errorf("expected a single guava external dependency, got %+v", api.BuildResult.ExternalDependencies)
	}
	if deps := structure.ModuleDependencies["api"]; len(deps) != 1 || deps[0] != "core" {
		t.Errorf("ModuleDependencies[api] = %v, want [core]", deps)
	}
	if len(api.BuildResult.ProjectDependencies) != 1 || api.BuildResult.ProjectDependencies[0].ModuleName != "core" {
		t.Errorf("expected api's BuildResult.ProjectDependencies to name core, got %+v", api.BuildResult.ProjectDependencies)
	}
}

func TestInspect_GradleSingleModuleFallsBackToRoot(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "build.gradle"), `
plugins {
    id 'java-library'
}
`)

	i := New(nil)
	structure, err := i.Inspect(root)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if structure == nil || len(structure.Modules) != 1 {
		t.Fatalf("expected a single fallback module, got %+v", structure)
	}
}

func TestInspect_GradleUnreadableBuildFileDegradesGracefully(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "settings.gradle"), `include 'missingmodule'`)
	// Intentionally no build.gradle under missingmodule/.

	i := New(nil)
	structure, err := i.Inspect(root)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if len(structure.Modules) != 1 {
		t.Fatalf("expected the module to still be listed with an empty BuildResult, got %+v", structure.Modules)
	}
	if structure.Modules[0].Kind != model.ModuleUnknown {
		t.Errorf("Kind = %q, want unknown for an unreadable build file", structure.Modules[0].Kind)
	}
}

func TestInspect_MavenMultiModule(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "pom.xml"), `<project>
  <groupId>com.example</groupId>
  <artifactId>demo-parent</artifactId>
  <version>1.0.0</version>
  <packaging>pom</packaging>
  <modules>
    <module>service</module>
  </modules>
</project>`)
	mustWrite(t, filepath.Join(root, "service", "pom.xml"), `<project>
  <groupId>com.example</groupId>
  <artifactId>demo-service</artifactId>
  <version>1.0.0</version>
  <packaging>war</packaging>
  <dependencies>
    <dependency>
      <groupId>org.springframework</groupId>
      <artifactId>spring-core</artifactId>
      <version>6.1.0</version>
      <scope>compile</scope>
    </dependency>
  </dependencies>
</project>`)

	i := New(nil)
	structure, err := i.Inspect(root)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if structure.BuildSystem != "maven" {
		t.Errorf("BuildSystem = %q, want maven", structure.BuildSystem)
	}
	if structure.RootProjectName != "demo-parent" {
		t.Errorf("RootProjectName = %q, want demo-parent", structure.RootProjectName)
	}
	if len(structure.Modules) != 1 {
		t.Fatalf("expected 1 module, got %d", len(structure.Modules))
	}
	mod := structure.Modules[0]
	if mod.Name != "demo-service" {
		t.Errorf("module Name = %q, want demo-service", mod.Name)
	}
	if mod.Kind != model.ModuleWar {
		t.Errorf("module Kind = %q, want war", mod.Kind)
	}
	if len(mod.BuildResult.ExternalDependencies) != 1 || mod.BuildResult.ExternalDependencies[0].Artifact != "spring-core" {
		t.Errorf("expected a single spring-core dependency, got %+v", mod.BuildResult.ExternalDependencies)
	}
}

func TestClassifyModule(t *testing.T) {
	cases := []struct {
		plugins []string
		want    model.ModuleKind
	}{
		{[]string{"org.springframework.boot"}, model.ModuleSpringBoot},
		{[]string{"war"}, model.ModuleWar},
		{[]string{"ear"}, model.ModuleEar},
		{[]string{"application"}, model.ModuleApplication},
		{[]string{"java-library"}, model.ModuleJavaLibrary},
		{[]string{"unknown-plugin"}, model.ModuleUnknown},
		{nil, model.ModuleUnknown},
	}
	for _, c := range cases {
		if got := classifyModule(c.plugins); got != c.want {
			t.Errorf("classifyModule(%v) = %q, want %q", c.plugins, got, c.want)
		}
	}
}
