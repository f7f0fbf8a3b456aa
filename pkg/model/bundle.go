// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/uri"
)

// BundleKind discriminates the bundle variants
type BundleKind string

// Bundle kinds
const (
	BundleKindFragment   BundleKind = "fragment"
	BundleKindCollection BundleKind = "collection"
	BundleKindFile       BundleKind = "file"
	BundleKindPlain      BundleKind = "plain"
)

// Bundle is the uniform content payload a connector returns for one
// affordance of a resource
type Bundle interface {
	BundleKind() BundleKind
	Validate() error
}

// FragmentMode tells the caller how to interpret fragment text
type FragmentMode string

// Fragment modes
const (
	FragmentData     FragmentMode = "data"
	FragmentMarkdown FragmentMode = "markdown"
	FragmentPlain    FragmentMode = "plain"
)

var embedPattern = regexp.MustCompile(`!\[[^\]]*\]\((self://[^)\s]+)\)`)

// Fragment is parsed content with inline blob embeds. Every key in Blobs is
// referenced in Text as an image embed and vice versa.
type Fragment struct {
	Mode  FragmentMode                      `yaml:"mode"`
	Text  string                            `yaml:"text"`
	Blobs map[uri.FragmentURI]ident.DataURI `yaml:"blobs,omitempty"`
}

func (f *Fragment) BundleKind() BundleKind { return BundleKindFragment }

// EmbedRefs returns the self:// references found in Text, deduplicated
func (f *Fragment) EmbedRefs() []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range embedPattern.FindAllStringSubmatch(f.Text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// Validate checks the embed invariant both ways
func (f *Fragment) Validate() error {
	switch f.Mode {
	case FragmentData, FragmentMarkdown, FragmentPlain:
	default:
		return fmt.Errorf("unknown fragment mode %q", f.Mode)
	}
	refs := map[string]bool{}
	for _, r := range f.EmbedRefs() {
		refs[r] = true
	}
	for key := range f.Blobs {
		if !refs[key.String()] {
			return fmt.Errorf("blob %s is not referenced in the fragment text", key)
		}
		delete(refs, key.String())
	}
	for r := range refs {
		return fmt.Errorf("embed reference %s has no blob", r)
	}
	return nil
}

// TrimText strips leading and trailing blank lines while preserving
// indentation and inner whitespace
func TrimText(text string) string {
	lines := strings.Split(text, "\n")
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}

// BundleCollection lists the children of a resource
type BundleCollection struct {
	URI     uri.ResourceURI   `yaml:"uri"`
	Results []uri.ResourceURI `yaml:"results"`
}

func (b *BundleCollection) BundleKind() BundleKind { return BundleKindCollection }

// Validate always succeeds; an empty collection is a valid result
func (b *BundleCollection) Validate() error { return nil }

// DownloadURL is either a source-system web URL or an inline data URI
type DownloadURL struct {
	value string
}

// DownloadFromWebURL wraps a web URL
func DownloadFromWebURL(u *uri.WebURL) DownloadURL { return DownloadURL{value: u.String()} }

// DownloadFromDataURI wraps inline bytes
func DownloadFromDataURI(d ident.DataURI) DownloadURL { return DownloadURL{value: d.String()} }

// DecodeDownloadURL parses either form
func DecodeDownloadURL(s string) (DownloadURL, error) {
	if strings.HasPrefix(s, "data:") {
		if _, err := ident.DecodeDataURI(s); err != nil {
			return DownloadURL{}, err
		}
		return DownloadURL{value: s}, nil
	}
	if _, err := uri.ParseWebURL(s); err != nil {
		return DownloadURL{}, err
	}
	return DownloadURL{value: s}, nil
}

func (d DownloadURL) String() string { return d.value }

// IsData reports whether the URL carries inline bytes
func (d DownloadURL) IsData() bool { return strings.HasPrefix(d.value, "data:") }

// AsWebURL returns the web form when the URL is not inline data
func (d DownloadURL) AsWebURL() (*uri.WebURL, bool) {
	if d.IsData() {
		return nil, false
	}
	u, err := uri.ParseWebURL(d.value)
	return u, err == nil
}

// AsDataURI returns the inline form when present
func (d DownloadURL) AsDataURI() (ident.DataURI, bool) {
	if !d.IsData() {
		return ident.DataURI{}, false
	}
	du, err := ident.DecodeDataURI(d.value)
	return du, err == nil
}

// BundleFile is a raw-file stub pointing at downloadable bytes
type BundleFile struct {
	URI         uri.ResourceURI `yaml:"uri"`
	MimeType    ident.MimeType  `yaml:"mime_type"`
	DownloadURL DownloadURL     `yaml:"download_url"`
	Expiry      *time.Time      `yaml:"expiry,omitempty"`
	Description string          `yaml:"description,omitempty"`
}

func (b *BundleFile) BundleKind() BundleKind { return BundleKindFile }

// Validate checks the download URL is present
func (b *BundleFile) Validate() error {
	if b.DownloadURL.value == "" {
		return fmt.Errorf("file bundle for %s has no download URL", b.URI)
	}
	return nil
}

// BundlePlain is unparsed text content
type BundlePlain struct {
	URI      uri.ResourceURI `yaml:"uri"`
	MimeType ident.MimeType  `yaml:"mime_type"`
	Text     string          `yaml:"text"`
}

func (b *BundlePlain) BundleKind() BundleKind { return BundleKindPlain }

// Validate always succeeds; empty files are valid plain bundles
func (b *BundlePlain) Validate() error { return nil }
