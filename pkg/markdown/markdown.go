// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package markdown parses fragment text: title extraction, link
// harvesting for relation generation and link rewriting towards
// canonical resource URIs.
package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

var (
	// parser extensions for GitHub Flavored Markdown & frontmatter support
	extensions = []goldmark.Extender{
		extension.GFM,
		meta.Meta,
	}
	gmParser = goldmark.New(goldmark.WithExtensions(extensions...))
)

// Parse parses markdown content and returns the AST root; frontmatter
// metadata is attached to the document node
func Parse(source []byte) (ast.Node, error) {
	reader := text.NewReader(source)
	context := parser.NewContext()
	doc := gmParser.Parser().Parse(reader, parser.WithContext(context))
	fmb, err := meta.TryGet(context)
	if err != nil {
		return nil, err
	}
	if doc.Kind() == ast.KindDocument {
		doc.(*ast.Document).SetMeta(fmb)
	}
	return doc, nil
}

// Title extracts the document title: the frontmatter title field when
// present, the first level-1 heading otherwise
func Title(source []byte) (string, bool) {
	doc, err := Parse(source)
	if err != nil {
		return "", false
	}
	if document, ok := doc.(*ast.Document); ok {
		if title, ok := document.Meta()["title"].(string); ok && title != "" {
			return title, true
		}
	}
	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if heading, ok := n.(*ast.Heading); ok && heading.Level == 1 {
			title = string(heading.Text(source))
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return title, title != ""
}

// LinkRef is one outgoing link or image embed found in a document
type LinkRef struct {
	Destination string
	Text        string
	IsImage     bool
}

// ExtractLinks walks the AST and collects links, images and autolinks
// in document order
func ExtractLinks(source []byte) ([]LinkRef, error) {
	doc, err := Parse(source)
	if err != nil {
		return nil, err
	}
	var refs []LinkRef
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Link:
			refs = append(refs, LinkRef{
				Destination: string(node.Destination),
				Text:        string(node.Text(source)),
			})
		case *ast.Image:
			refs = append(refs, LinkRef{
				Destination: string(node.Destination),
				Text:        string(node.Text(source)),
				IsImage:     true,
			})
		case *ast.AutoLink:
			refs = append(refs, LinkRef{
				Destination: string(node.URL(source)),
				Text:        string(node.Label(source)),
			})
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// WebDestinations filters extracted links down to absolute http(s)
// destinations, deduplicated in document order
func WebDestinations(source []byte) ([]string, error) {
	refs, err := ExtractLinks(source)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, ref := range refs {
		dest := ref.Destination
		if !strings.HasPrefix(dest, "http://") && !strings.HasPrefix(dest, "https://") {
			continue
		}
		if !seen[dest] {
			seen[dest] = true
			out = append(out, dest)
		}
	}
	return out, nil
}
