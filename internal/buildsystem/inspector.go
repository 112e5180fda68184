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

// Package buildsystem implements the BuildSystemInspector: best-effort
// detection and structural inference for Gradle- and Maven-style
// repositories. Parsing degrades gracefully — a module whose build file
// cannot be parsed still participates as a module node with an empty
// BuildResult, it is never dropped.
package buildsystem

import (
	"encoding/xml"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kraklabs/codegraph/internal/model"
)

// Inspector detects and parses Gradle/Maven build structure.
type Inspector struct {
	logger *slog.Logger
}

// New creates a BuildSystemInspector. A nil logger falls back to
// slog.Default().
func New(logger *slog.Logger) *Inspector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inspector{logger: logger}
}

var (
	includeRe        = regexp.MustCompile(`include\s*\(?\s*['"]([^'"]+)['"]`)
	rootProjectRe    = regexp.MustCompile(`rootProject\.name\s*=\s*['"]([^'"]+)['"]`)
	pluginIDRe       = regexp.MustCompile(`id\s*\(?\s*['"]([^'"]+)['"]`)
	pluginShorthandRe = regexp.MustCompile(`(?m)^\s*(java|java-library|application|war|ear)\b`)
	depRe            = regexp.MustCompile(`(implementation|api|compileOnly|runtimeOnly|testImplementation|testRuntimeOnly|annotationProcessor)\s*\(?\s*(platform\()?['"]([^'"]+)['"]`)
	projectDepRe     = regexp.MustCompile(`(implementation|api|compileOnly|runtimeOnly|testImplementation)\s*\(?\s*project\(['"]([^'"]+)['"]\)`)
	groupRe          = regexp.MustCompile(`group\s*=?\s*['"]([^'"]+)['"]`)
	versionRe        = regexp.MustCompile(`version\s*=?\s*['"]([^'"]+)['"]`)
	sourceCompatRe   = regexp.MustCompile(`sourceCompatibility\s*=?\s*['"]?([\w.]+)['"]?`)
	targetCompatRe   = regexp.MustCompile(`targetCompatibility\s*=?\s*['"]?([\w.]+)['"]?`)
)

// Inspect detects the build system at root and, if found, enumerates
// modules and parses each module's build file. Returns nil, nil when no
// recognized build system marker is present — this is not an error.
func (i *Inspector) Inspect(root string) (*model.MultiModuleProjectStructure, error) {
	if isGradleRoot(root) {
		return i.inspectGradle(root)
	}
	if isMavenRoot(root) {
		return i.inspectMaven(root)
	}
	return nil, nil
}

func isGradleRoot(root string) bool {
	for _, name := range []string{"settings.gradle", "settings.gradle.kts", "build.gradle", "build.gradle.kts"} {
		if fileExists(filepath.Join(root, name)) {
			return true
		}
	}
	return false
}

func isMavenRoot(root string) bool {
	return fileExists(filepath.Join(root, "pom.xml"))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// inspectGradle parses settings.gradle[.kts] for included modules, then
// parses each module's build.gradle[.kts] best-effort.
func (i *Inspector) inspectGradle(root string) (*model.MultiModuleProjectStructure, error) {
	settingsPath := firstExisting(root, "settings.gradle.kts", "settings.gradle")
	rootName := filepath.Base(root)
	var includes []string

	if settingsPath != "" {
		content, err := os.ReadFile(settingsPath)
		if err != nil {
			i.logger.Warn("buildsystem.settings.read_error", "path", settingsPath, "err", err)
		} else {
			text := string(content)
			if m := rootProjectRe.FindStringSubmatch(text); len(m) == 2 {
				rootName = m[1]
			}
			for _, m := range includeRe.FindAllStringSubmatch(text, -1) {
				includes = append(includes, strings.TrimPrefix(strings.ReplaceAll(m[1], ":", "/"), "/"))
			}
		}
	}

	if len(includes) == 0 {
		// Single-module project: treat the root itself as the sole module.
		includes = []string{"."}
	}

	structure := &model.MultiModuleProjectStructure{
		RootProjectName:    rootName,
		BuildSystem:        "gradle",
		ModuleDependencies: make(map[string][]string),
	}

	for _, modPath := range includes {
		modDir := filepath.Join(root, modPath)
		modName := filepath.Base(modPath)
		if modPath == "." {
			modName = rootName
		}
		buildFile := firstExisting(modDir, "build.gradle.kts", "build.gradle")
		result := i.parseGradleBuildFile(buildFile)
		structure.Modules = append(structure.Modules, model.Module{
			Name:        modName,
			Path:        modPath,
			Kind:        classifyModule(result.Plugins),
			BuildResult: result,
		})
		depNames := make([]string, len(result.ProjectDependencies))
		for idx, d := range result.ProjectDependencies {
			depNames[idx] = d.ModuleName
		}
		structure.ModuleDependencies[modName] = depNames
	}

	return structure, nil
}

// parseGradleBuildFile is a best-effort, resilient regex scan of a Gradle
// build file — not a Groovy/Kotlin DSL parser, which is out of scope.
// Missing or unreadable files yield a zero-value BuildResult, not an error.
func (i *Inspector) parseGradleBuildFile(path string) model.BuildResult {
	var result model.BuildResult
	result.ExtProperties = make(map[string]string)

	if path == "" {
		return result
	}
	content, err := os.ReadFile(path)
	if err != nil {
		i.logger.Warn("buildsystem.build_file.read_error", "path", path, "err", err)
		return result
	}
	text := string(content)

	for _, m := range pluginIDRe.FindAllStringSubmatch(text, -1) {
		result.Plugins = append(result.Plugins, m[1])
	}
	for _, m := range pluginShorthandRe.FindAllStringSubmatch(text, -1) {
		result.Plugins = append(result.Plugins, m[1])
	}

	for _, m := range depRe.FindAllStringSubmatch(text, -1) {
		coord := m[3]
		parts := strings.Split(coord, ":")
		dep := model.ExternalDependency{Configuration: m[1], IsPlatform: m[2] != ""}
		if len(parts) >= 2 {
			dep.Group = parts[0]
			dep.Artifact = parts[1]
		}
		if len(parts) >= 3 {
			dep.Version = parts[2]
		}
		if dep.Group != "" && dep.Artifact != "" {
			result.ExternalDependencies = append(result.ExternalDependencies, dep)
		}
	}

	for _, m := range projectDepRe.FindAllStringSubmatch(text, -1) {
		projectPath := m[2]
		moduleName := filepath.Base(strings.ReplaceAll(projectPath, ":", "/"))
		result.ProjectDependencies = append(result.ProjectDependencies, model.ModuleDependency{
			Configuration: m[1],
			ProjectPath:   projectPath,
			ModuleName:    moduleName,
		})
	}

	if m := groupRe.FindStringSubmatch(text); len(m) == 2 {
		result.Group = m[1]
	}
	if m := versionRe.FindStringSubmatch(text); len(m) == 2 {
		result.Version = m[1]
	}
	if m := sourceCompatRe.FindStringSubmatch(text); len(m) == 2 {
		result.SourceCompatibility = m[1]
	}
	if m := targetCompatRe.FindStringSubmatch(text); len(m) == 2 {
		result.TargetCompatibility = m[1]
	}

	result.SourceDirs = []string{"src/main/java", "src/main/kotlin"}
	result.TestDirs = []string{"src/test/java", "src/test/kotlin"}
	result.ResourceDirs = []string{"src/main/resources"}

	return result
}

func classifyModule(plugins []string) model.ModuleKind {
	for _, p := range plugins {
		switch {
		case strings.Contains(p, "org.springframework.boot"):
			return model.ModuleSpringBoot
		case p == "war":
			return model.ModuleWar
		case p == "ear":
			return model.ModuleEar
		case p == "application":
			return model.ModuleApplication
		case p == "java-library" || p == "java":
			return model.ModuleJavaLibrary
		}
	}
	return model.ModuleUnknown
}

func firstExisting(dir string, names ...string) string {
	for _, n := range names {
		p := filepath.Join(dir, n)
		if fileExists(p) {
			return p
		}
	}
	return ""
}

// --- Maven ---

type mavenProject struct {
	XMLName      xml.Name       `xml:"project"`
	GroupID      string         `xml:"groupId"`
	ArtifactID   string         `xml:"artifactId"`
	Version      string         `xml:"version"`
	Packaging    string         `xml:"packaging"`
	Modules      []string       `xml:"modules>module"`
	Properties   mavenProps     `xml:"properties"`
	Dependencies []mavenDep     `xml:"dependencies>dependency"`
}

type mavenProps struct {
	SourceCompat string `xml:"maven.compiler.source"`
	TargetCompat string `xml:"maven.compiler.target"`
}

type mavenDep struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Scope      string `xml:"scope"`
}

// inspectMaven parses pom.xml with encoding/xml — the one stdlib exception
// in this component, justified in DESIGN.md (no XML library appears
// anywhere in the example pack).
func (i *Inspector) inspectMaven(root string) (*model.MultiModuleProjectStructure, error) {
	pomPath := filepath.Join(root, "pom.xml")
	rootProj, err := parsePom(pomPath)
	if err != nil {
		i.logger.Warn("buildsystem.pom.read_error", "path", pomPath, "err", err)
		rootProj = &mavenProject{ArtifactID: filepath.Base(root)}
	}

	structure := &model.MultiModuleProjectStructure{
		RootProjectName:    rootProj.ArtifactID,
		BuildSystem:        "maven",
		ModuleDependencies: make(map[string][]string),
	}

	modulePaths := rootProj.Modules
	if len(modulePaths) == 0 {
		modulePaths = []string{"."}
	}

	for _, modPath := range modulePaths {
		modDir := filepath.Join(root, modPath)
		proj, perr := parsePom(filepath.Join(modDir, "pom.xml"))
		modName := filepath.Base(modPath)
		if modPath == "." {
			modName = rootProj.ArtifactID
		}

		var result model.BuildResult
		result.ExtProperties = make(map[string]string)
		if perr == nil && proj != nil {
			if proj.ArtifactID != "" {
				modName = proj.ArtifactID
			}
			result.Group = proj.GroupID
			result.Version = proj.Version
			result.SourceCompatibility = proj.Properties.SourceCompat
			result.TargetCompatibility = proj.Properties.TargetCompat
			result.Plugins = []string{proj.Packaging}
			for _, d := range proj.Dependencies {
				if d.ArtifactID == "" {
					continue
				}
				// A dependency whose groupId matches the root project is
				// treated as an inter-module dependency, mirroring Gradle's
				// project(":module") convention in the absence of one.
				if d.GroupID == rootProj.GroupID && d.GroupID != "" {
					result.ProjectDependencies = append(result.ProjectDependencies, model.ModuleDependency{
						Configuration: d.Scope,
						ProjectPath:   d.ArtifactID,
						ModuleName:    d.ArtifactID,
					})
					continue
				}
				result.ExternalDependencies = append(result.ExternalDependencies, model.ExternalDependency{
					Group: d.GroupID, Artifact: d.ArtifactID, Version: d.Version, Configuration: d.Scope,
				})
			}
		} else if perr != nil {
			i.logger.Warn("buildsystem.module_pom.read_error", "path", modDir, "err", perr)
		}
		result.SourceDirs = []string{"src/main/java"}
		result.TestDirs = []string{"src/test/java"}
		result.ResourceDirs = []string{"src/main/resources"}

		structure.Modules = append(structure.Modules, model.Module{
			Name: modName, Path: modPath, Kind: classifyMavenPackaging(result.Plugins), BuildResult: result,
		})
		depNames := make([]string, len(result.ProjectDependencies))
		for idx, d := range result.ProjectDependencies {
			depNames[idx] = d.ModuleName
		}
		structure.ModuleDependencies[modName] = depNames
	}

	return structure, nil
}

func classifyMavenPackaging(plugins []string) model.ModuleKind {
	if len(plugins) == 0 {
		return model.ModuleUnknown
	}
	switch plugins[0] {
	case "war":
		return model.ModuleWar
	case "ear":
		return model.ModuleEar
	case "jar", "":
		return model.ModuleJavaLibrary
	default:
		return model.ModuleUnknown
	}
}

func parsePom(path string) (*mavenProject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var proj mavenProject
	if err := xml.Unmarshal(data, &proj); err != nil {
		return nil, err
	}
	return &proj, nil
}
