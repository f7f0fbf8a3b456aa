// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package forge holds the repo-level configuration shared by the git
// hosting connectors: a nandam.yml at the repository root that overrides
// branch selection, observability rules and subproject carving.
package forge

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is looked up at the repository root
const ConfigFileName = "nandam.yml"

// defaultAllowedExtensions is the allow-list applied when the repo
// config carries no explicit rules for a path
var defaultAllowedExtensions = map[string]bool{
	"md":   true,
	"mdx":  true,
	"txt":  true,
	"rst":  true,
	"adoc": true,
}

// RepoConfig is the parsed nandam.yml of one repository
type RepoConfig struct {
	// Branch overrides the default branch for canonical URIs
	Branch string `yaml:"branch,omitempty"`
	// Allowed are path prefixes observable regardless of extension
	Allowed []string `yaml:"allowed,omitempty"`
	// Skipped are path prefixes never observable
	Skipped []string `yaml:"skipped,omitempty"`
	// SkippedNotify are skipped prefixes the caller should be told about
	SkippedNotify []string `yaml:"skipped_notify,omitempty"`
	// Subprojects carves path prefixes out into separate resources,
	// keyed by prefix with the subproject name as value
	Subprojects map[string]string `yaml:"subprojects,omitempty"`
}

// ParseRepoConfig decodes a nandam.yml body
func ParseRepoConfig(data []byte) (*RepoConfig, error) {
	var cfg RepoConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ConfigFileName, err)
	}
	return &cfg, nil
}

func matchesPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		prefix = strings.Trim(prefix, "/")
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// Allows reports whether a repository path is observable. Explicit repo
// rules win over the default allow-list, and skip rules win over allow
// rules when both match.
func (c *RepoConfig) Allows(path []string) bool {
	joined := strings.Join(path, "/")
	if c != nil {
		if matchesPrefix(joined, c.Skipped) || matchesPrefix(joined, c.SkippedNotify) {
			return false
		}
		if matchesPrefix(joined, c.Allowed) {
			return true
		}
	}
	if len(path) == 0 {
		return true
	}
	last := path[len(path)-1]
	if dot := strings.LastIndex(last, "."); dot >= 0 {
		return defaultAllowedExtensions[strings.ToLower(last[dot+1:])]
	}
	return false
}

// ShouldNotify reports whether a skipped path warrants an explicit
// skip signal instead of silence
func (c *RepoConfig) ShouldNotify(path []string) bool {
	if c == nil {
		return false
	}
	return matchesPrefix(strings.Join(path, "/"), c.SkippedNotify)
}

// InferSubproject finds the subproject a path belongs to. It returns
// the subproject name, the path relative to the subproject root and
// whether a subproject matched.
func (c *RepoConfig) InferSubproject(path []string) (string, []string, bool) {
	if c == nil {
		return "", nil, false
	}
	joined := strings.Join(path, "/")
	var bestPrefix, bestName string
	for prefix, name := range c.Subprojects {
		trimmed := strings.Trim(prefix, "/")
		if joined == trimmed || strings.HasPrefix(joined, trimmed+"/") {
			// the longest matching prefix wins
			if len(trimmed) > len(bestPrefix) {
				bestPrefix, bestName = trimmed, name
			}
		}
	}
	if bestName == "" {
		return "", nil, false
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(joined, bestPrefix), "/")
	if rest == "" {
		return bestName, nil, true
	}
	return bestName, strings.Split(rest, "/"), true
}
