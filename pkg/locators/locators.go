// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package locators defines the closed set of backend locator variants. A
// locator carries the minimum machine-readable inputs needed to re-fetch a
// resource and derives the canonical ndk:// URI for it. Decoding is
// discriminated on the kind field through a static table; there is no
// runtime registration.
package locators

import (
	"fmt"

	"github.com/nandam/nandam/pkg/uri"
	"gopkg.in/yaml.v3"
)

// Locator addresses a resource in its backend system
type Locator interface {
	// Kind is the codec discriminator
	Kind() string
	// Realm is the connector namespace the locator belongs to
	Realm() string
	// ResourceURI is the deterministic canonical URI
	ResourceURI() uri.ResourceURI
	// ContentURL is the source-system URL to follow for bytes, nil when the
	// content is not addressable by URL
	ContentURL() *uri.WebURL
	// CitationURL is the URL shown to humans, nil when there is none
	CitationURL() *uri.WebURL
}

// kinds is the static decode table; every variant registers its zero
// constructor here and nowhere else
var kinds = map[string]func() Locator{
	KindGitHubRepo:       func() Locator { return &GitHubRepo{} },
	KindGitHubFile:       func() Locator { return &GitHubFile{} },
	KindGitHubTree:       func() Locator { return &GitHubTree{} },
	KindGitHubCommit:     func() Locator { return &GitHubCommit{} },
	KindGitHubCompare:    func() Locator { return &GitHubCompare{} },
	KindGitLabProject:    func() Locator { return &GitLabProject{} },
	KindGitLabFile:       func() Locator { return &GitLabFile{} },
	KindGitLabTree:       func() Locator { return &GitLabTree{} },
	KindGitLabCommit:     func() Locator { return &GitLabCommit{} },
	KindGitLabCompare:    func() Locator { return &GitLabCompare{} },
	KindConfluencePage:   func() Locator { return &ConfluencePage{} },
	KindJiraIssue:        func() Locator { return &JiraIssue{} },
	KindSharePointFile:   func() Locator { return &MsSharePointFile{} },
	KindOneDriveFile:     func() Locator { return &MsOneDriveFile{} },
	KindOutlookMessage:   func() Locator { return &MsOutlookMessage{} },
	KindTeamsMessage:     func() Locator { return &MsTeamsMessage{} },
	KindTestRailCase:     func() Locator { return &TestRailCase{} },
	KindTestRailRun:      func() Locator { return &TestRailRun{} },
	KindGeorgesBlob:      func() Locator { return &GeorgesBlob{} },
	KindArXivPaper:       func() Locator { return &ArXivPaper{} },
	KindYouTubeVideo:     func() Locator { return &YouTubeVideo{} },
	KindWebPage:          func() Locator { return &WebPage{} },
}

type envelope struct {
	Kind string    `yaml:"kind"`
	Spec yaml.Node `yaml:"spec"`
}

// EncodeYAML wraps a locator in its kind envelope
func EncodeYAML(l Locator) (*yaml.Node, error) {
	var spec yaml.Node
	if err := spec.Encode(l); err != nil {
		return nil, err
	}
	var out yaml.Node
	if err := out.Encode(envelope{Kind: l.Kind(), Spec: spec}); err != nil {
		return nil, err
	}
	return &out, nil
}

// DecodeYAML restores a locator from its kind envelope
func DecodeYAML(node *yaml.Node) (Locator, error) {
	var env envelope
	if err := node.Decode(&env); err != nil {
		return nil, err
	}
	ctor, ok := kinds[env.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown locator kind %q", env.Kind)
	}
	l := ctor()
	if err := env.Spec.Decode(l); err != nil {
		return nil, fmt.Errorf("decoding %s locator: %w", env.Kind, err)
	}
	return l, nil
}

// Marshal serializes a locator to YAML bytes
func Marshal(l Locator) ([]byte, error) {
	node, err := EncodeYAML(l)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(node)
}

// Unmarshal restores a locator from YAML bytes
func Unmarshal(data []byte) (Locator, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	return DecodeYAML(&node)
}

// mustParseWebURL builds web URLs out of parts already validated by the
// locator constructors
func mustParseWebURL(s string) *uri.WebURL {
	u, err := uri.ParseWebURL(s)
	if err != nil {
		panic(err)
	}
	return u
}
