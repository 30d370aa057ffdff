// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package skills discovers SKILL.md-described capabilities the agent can
// read on demand. A skill is a directory containing a SKILL.md file; its
// first "# Title" line becomes the skill's name and the following
// paragraph becomes its one-line summary. Skills are looked up across
// three tiers in precedence order — workspace, global (user home), and
// builtin (bundled with the binary) — with a workspace skill shadowing a
// global or builtin skill of the same name.
package skills

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Skill is one discovered SKILL.md entry.
type Skill struct {
	Name        string
	Summary     string
	Path        string
	Tier        string // "workspace", "global", or "builtin"
}

// SkillsLoader discovers skills across the three lookup tiers.
type SkillsLoader struct {
	workspaceDir string
	globalDir    string
	builtinDir   string
}

// NewSkillsLoader builds a loader that looks for a "skills/" directory
// under workspaceDir, plus the given global and builtin directories
// directly.
func NewSkillsLoader(workspaceDir, globalDir, builtinDir string) *SkillsLoader {
	return &SkillsLoader{
		workspaceDir: filepath.Join(workspaceDir, "skills"),
		globalDir:    globalDir,
		builtinDir:   builtinDir,
	}
}

// Discover returns every skill found, workspace skills shadowing global
// ones, global shadowing builtin, deduplicated by name.
func (l *SkillsLoader) Discover() []Skill {
	seen := make(map[string]struct{})
	var result []Skill

	tiers := []struct {
		dir  string
		name string
	}{
		{l.workspaceDir, "workspace"},
		{l.globalDir, "global"},
		{l.builtinDir, "builtin"},
	}

	for _, tier := range tiers {
		for _, skill := range discoverIn(tier.dir, tier.name) {
			key := strings.ToLower(skill.Name)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			result = append(result, skill)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// BuildSkillsSummary renders the discovered skills as a markdown bullet
// list suitable for embedding in a system prompt. Returns "" when no
// skills are found.
func (l *SkillsLoader) BuildSkillsSummary() string {
	discovered := l.Discover()
	if len(discovered) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, skill := range discovered {
		summary := skill.Summary
		if summary == "" {
			summary = "(no description)"
		}
		fmt.Fprintf(&sb, "- **%s**: %s (%s)\n", skill.Name, summary, skill.Path)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func discoverIn(dir, tier string) []Skill {
	if dir == "" {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var skills []Skill
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		skillPath := filepath.Join(dir, entry.Name(), "SKILL.md")
		name, summary, err := parseSkillFile(skillPath)
		if err != nil {
			continue
		}
		if name == "" {
			name = entry.Name()
		}
		skills = append(skills, Skill{Name: name, Summary: summary, Path: skillPath, Tier: tier})
	}
	return skills
}

// parseSkillFile extracts a skill's name from its first "# Title" heading
// and its summary from the first non-empty paragraph line after it.
func parseSkillFile(path string) (name, summary string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "# ") {
			name = strings.TrimSpace(strings.TrimPrefix(line, "#"))
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		summary = line
		break
	}
	return name, summary, scanner.Err()
}
