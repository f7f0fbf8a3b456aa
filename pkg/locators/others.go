// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package locators

import (
	"crypto/sha1"
	"encoding/hex"

	"github.com/nandam/nandam/pkg/uri"
)

// Remaining locator kinds
const (
	KindTestRailCase = "testrail-case"
	KindTestRailRun  = "testrail-run"
	KindGeorgesBlob  = "georges-blob"
	KindArXivPaper   = "arxiv"
	KindYouTubeVideo = "youtube"
	KindWebPage      = "web"
)

// TestRailCase addresses a test case
type TestRailCase struct {
	RealmName string `yaml:"realm"`
	Domain    string `yaml:"domain"`
	CaseID    string `yaml:"case_id"`
}

func (l *TestRailCase) Kind() string  { return KindTestRailCase }
func (l *TestRailCase) Realm() string { return l.RealmName }

func (l *TestRailCase) ResourceURI() uri.ResourceURI {
	return uri.MustResourceURI(l.RealmName, "case", l.CaseID)
}

func (l *TestRailCase) ContentURL() *uri.WebURL {
	return mustParseWebURL("https://" + l.Domain + "/index.php?/api/v2/get_case/" + l.CaseID)
}

func (l *TestRailCase) CitationURL() *uri.WebURL {
	return mustParseWebURL("https://" + l.Domain + "/index.php?/cases/view/" + l.CaseID)
}

// TestRailRun addresses a test run
type TestRailRun struct {
	RealmName string `yaml:"realm"`
	Domain    string `yaml:"domain"`
	RunID     string `yaml:"run_id"`
}

func (l *TestRailRun) Kind() string  { return KindTestRailRun }
func (l *TestRailRun) Realm() string { return l.RealmName }

func (l *TestRailRun) ResourceURI() uri.ResourceURI {
	return uri.MustResourceURI(l.RealmName, "run", l.RunID)
}

func (l *TestRailRun) ContentURL() *uri.WebURL {
	return mustParseWebURL("https://" + l.Domain + "/index.php?/api/v2/get_run/" + l.RunID)
}

func (l *TestRailRun) CitationURL() *uri.WebURL {
	return mustParseWebURL("https://" + l.Domain + "/index.php?/runs/view/" + l.RunID)
}

// GeorgesBlob addresses a generated image in the georges blob store
type GeorgesBlob struct {
	RealmName string `yaml:"realm"`
	Domain    string `yaml:"domain"`
	BlobID    string `yaml:"blob_id"`
}

func (l *GeorgesBlob) Kind() string  { return KindGeorgesBlob }
func (l *GeorgesBlob) Realm() string { return l.RealmName }

func (l *GeorgesBlob) ResourceURI() uri.ResourceURI {
	return uri.MustResourceURI(l.RealmName, "blob", l.BlobID)
}

func (l *GeorgesBlob) ContentURL() *uri.WebURL {
	return mustParseWebURL("https://" + l.Domain + "/api/blobs/" + l.BlobID)
}

// CitationURL is nil: generated blobs have no human-facing page
func (l *GeorgesBlob) CitationURL() *uri.WebURL { return nil }

// ArXivPaper addresses a public paper, optionally version-pinned
type ArXivPaper struct {
	PaperID string `yaml:"paper_id"`
}

func (l *ArXivPaper) Kind() string  { return KindArXivPaper }
func (l *ArXivPaper) Realm() string { return "public" }

func (l *ArXivPaper) ResourceURI() uri.ResourceURI {
	return uri.MustResourceURI("public", "arxiv", l.PaperID)
}

func (l *ArXivPaper) ContentURL() *uri.WebURL {
	return mustParseWebURL("https://arxiv.org/src/" + l.PaperID)
}

func (l *ArXivPaper) CitationURL() *uri.WebURL {
	return mustParseWebURL("https://arxiv.org/abs/" + l.PaperID)
}

// PDFURL is the fallback content location when no LaTeX source exists
func (l *ArXivPaper) PDFURL() *uri.WebURL {
	return mustParseWebURL("https://arxiv.org/pdf/" + l.PaperID)
}

// YouTubeVideo addresses a public video
type YouTubeVideo struct {
	VideoID string `yaml:"video_id"`
}

func (l *YouTubeVideo) Kind() string  { return KindYouTubeVideo }
func (l *YouTubeVideo) Realm() string { return "public" }

func (l *YouTubeVideo) ResourceURI() uri.ResourceURI {
	return uri.MustResourceURI("public", "youtube", l.VideoID)
}

func (l *YouTubeVideo) ContentURL() *uri.WebURL {
	return mustParseWebURL("https://www.youtube.com/watch?v=" + l.VideoID)
}

func (l *YouTubeVideo) CitationURL() *uri.WebURL { return l.ContentURL() }

// WebPage is the catch-all locator for any public http(s) URL. Its URI path
// is a digest of the URL, so the reverse mapping goes through the persisted
// alias store.
type WebPage struct {
	URL string `yaml:"url"`
}

func (l *WebPage) Kind() string  { return KindWebPage }
func (l *WebPage) Realm() string { return "www" }

func (l *WebPage) ResourceURI() uri.ResourceURI {
	sum := sha1.Sum([]byte(l.URL))
	return uri.MustResourceURI("www", "page", hex.EncodeToString(sum[:]))
}

func (l *WebPage) ContentURL() *uri.WebURL { return mustParseWebURL(l.URL) }

func (l *WebPage) CitationURL() *uri.WebURL { return mustParseWebURL(l.URL) }
