// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package public

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/downloader"
	"github.com/nandam/nandam/pkg/downloader/downloaderfakes"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

func requestContext(dl *downloaderfakes.FakeInterface) *connectors.Context {
	return connectors.NewContext(dl, nil, nil)
}

func webRef(t *testing.T, raw string) connectors.Reference {
	t.Helper()
	wu, err := uri.ParseWebURL(raw)
	require.NoError(t, err)
	return connectors.RefWeb(wu)
}

func TestArXivLocatorScenario(t *testing.T) {
	c := NewConnector()
	rctx := requestContext(&downloaderfakes.FakeInterface{})

	loc, err := c.Locator(context.Background(), rctx, webRef(t, "https://arxiv.org/abs/2301.00001v2"))
	require.NoError(t, err)
	paper, ok := loc.(*locators.ArXivPaper)
	require.True(t, ok)
	assert.Equal(t, "2301.00001v2", paper.PaperID)
	assert.Equal(t, "ndk://public/arxiv/2301.00001v2", paper.ResourceURI().String())

	loc, err = c.Locator(context.Background(), rctx, webRef(t, "https://arxiv.org/pdf/2301.00001v2.pdf"))
	require.NoError(t, err)
	paper, ok = loc.(*locators.ArXivPaper)
	require.True(t, ok)
	assert.Equal(t, "2301.00001v2", paper.PaperID)

	loc, err = c.Locator(context.Background(), rctx, webRef(t, "https://arxiv.org/list/cs.LG/recent"))
	require.NoError(t, err)
	assert.Nil(t, loc)
}

func TestYouTubeLocatorForms(t *testing.T) {
	c := NewConnector()
	rctx := requestContext(&downloaderfakes.FakeInterface{})

	for _, raw := range []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
	} {
		loc, err := c.Locator(context.Background(), rctx, webRef(t, raw))
		require.NoError(t, err, raw)
		video, ok := loc.(*locators.YouTubeVideo)
		require.True(t, ok, raw)
		assert.Equal(t, "dQw4w9WgXcQ", video.VideoID)
	}
}

func TestObservePaperFallsBackToPDF(t *testing.T) {
	c := NewConnector()
	var requested []string
	dl := &downloaderfakes.FakeInterface{
		ReadDownloadStub: func(ctx context.Context, u *uri.WebURL, authorization string, headers http.Header, opts downloader.ReadOptions) (*downloader.DocumentsReadResponse, error) {
			requested = append(requested, u.String())
			if len(requested) == 1 {
				return nil, downloader.UnavailableError(u.String() + " is unavailable (status 404)")
			}
			return &downloader.DocumentsReadResponse{Mode: model.FragmentMarkdown, Text: "# Paper"}, nil
		},
	}
	l := &locators.ArXivPaper{PaperID: "2301.00001v2"}

	res, err := c.Observe(context.Background(), requestContext(dl), l, uri.AffordanceBody, nil)
	require.NoError(t, err)
	require.Len(t, requested, 2)
	assert.Equal(t, "https://arxiv.org/src/2301.00001v2", requested[0], "LaTeX source is tried first")
	assert.Equal(t, "https://arxiv.org/pdf/2301.00001v2", requested[1])
	fragment, ok := res.Bundle.(*model.Fragment)
	require.True(t, ok)
	assert.Equal(t, "# Paper", fragment.Text)
	assert.True(t, res.Post.Cache)
}

func TestObservePaperUsesSourceWhenAvailable(t *testing.T) {
	c := NewConnector()
	dl := &downloaderfakes.FakeInterface{
		ReadDownloadStub: func(ctx context.Context, u *uri.WebURL, authorization string, headers http.Header, opts downloader.ReadOptions) (*downloader.DocumentsReadResponse, error) {
			return &downloader.DocumentsReadResponse{Mode: model.FragmentMarkdown, Text: "# From source"}, nil
		},
	}
	l := &locators.ArXivPaper{PaperID: "2301.00001"}

	res, err := c.Observe(context.Background(), requestContext(dl), l, uri.AffordanceBody, nil)
	require.NoError(t, err)
	require.Len(t, dl.ReadDownloadCalls, 1)
	assert.Equal(t, "https://arxiv.org/src/2301.00001", dl.ReadDownloadCalls[0])
	fragment, ok := res.Bundle.(*model.Fragment)
	require.True(t, ok)
	assert.Equal(t, "# From source", fragment.Text)
}
