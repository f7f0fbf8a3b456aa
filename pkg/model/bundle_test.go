// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package model_test

import (
	"testing"
	"time"

	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fragmentKey(t *testing.T, s string) uri.FragmentURI {
	t.Helper()
	k, err := uri.DecodeFragmentURI(s)
	require.NoError(t, err)
	return k
}

func TestFragmentEmbedInvariant(t *testing.T) {
	valid := &model.Fragment{
		Mode: model.FragmentMarkdown,
		Text: "# Title\n\n![diagram](self://img/d.png)\n",
		Blobs: map[uri.FragmentURI]ident.DataURI{
			fragmentKey(t, "self://img/d.png"): ident.NewDataURI("image/png", []byte{1}),
		},
	}
	assert.NoError(t, valid.Validate())

	selfOnly := &model.Fragment{
		Mode: model.FragmentData,
		Text: "![photo](self://~)",
		Blobs: map[uri.FragmentURI]ident.DataURI{
			uri.SelfFragmentURI(): ident.NewDataURI("image/jpeg", []byte{1}),
		},
	}
	assert.NoError(t, selfOnly.Validate())

	danglingBlob := &model.Fragment{
		Mode: model.FragmentMarkdown,
		Text: "no embeds here",
		Blobs: map[uri.FragmentURI]ident.DataURI{
			fragmentKey(t, "self://img/d.png"): ident.NewDataURI("image/png", []byte{1}),
		},
	}
	assert.Error(t, danglingBlob.Validate())

	danglingRef := &model.Fragment{
		Mode: model.FragmentMarkdown,
		Text: "![missing](self://img/gone.png)",
	}
	assert.Error(t, danglingRef.Validate())
}

func TestTrimText(t *testing.T) {
	in := "\n\n  indented line\n\tcode\n\n\n"
	assert.Equal(t, "  indented line\n\tcode", model.TrimText(in))
	assert.Equal(t, "", model.TrimText("\n \n"))
}

func TestBundleCodecRoundtrip(t *testing.T) {
	u := uri.MustResourceURI("github", "file", "acme", "widget", "README.md")
	expiry := time.Date(2024, 3, 1, 12, 5, 0, 0, time.UTC)
	web, err := uri.ParseWebURL("https://cdn.example.com/signed?sig=abc")
	require.NoError(t, err)

	bundles := []model.Bundle{
		&model.Fragment{
			Mode: model.FragmentMarkdown,
			Text: "![d](self://img/d.png)",
			Blobs: map[uri.FragmentURI]ident.DataURI{
				fragmentKey(t, "self://img/d.png"): ident.NewDataURI("image/png", []byte{1, 2}),
			},
		},
		&model.BundleCollection{
			URI: uri.MustResourceURI("github", "tree", "acme", "widget"),
			Results: []uri.ResourceURI{
				u,
				uri.MustResourceURI("github", "file", "acme", "widget", "LICENSE"),
			},
		},
		&model.BundleFile{
			URI:         u,
			MimeType:    "application/pdf",
			DownloadURL: model.DownloadFromWebURL(web),
			Expiry:      &expiry,
			Description: "signed download",
		},
		&model.BundlePlain{URI: u, MimeType: "text/plain", Text: "raw"},
	}
	for _, b := range bundles {
		t.Run(string(b.BundleKind()), func(t *testing.T) {
			require.NoError(t, b.Validate())
			data, err := model.MarshalBundle(b)
			require.NoError(t, err)
			back, err := model.UnmarshalBundle(data)
			require.NoError(t, err)
			assert.Equal(t, b, back)
		})
	}
}

func TestDownloadURLForms(t *testing.T) {
	d := model.DownloadFromDataURI(ident.NewDataURI("image/png", []byte{9}))
	assert.True(t, d.IsData())
	du, ok := d.AsDataURI()
	require.True(t, ok)
	assert.Equal(t, ident.MimeType("image/png"), du.MimeType())
	_, ok = d.AsWebURL()
	assert.False(t, ok)

	w, err := uri.ParseWebURL("https://example.com/f.pdf")
	require.NoError(t, err)
	wd := model.DownloadFromWebURL(w)
	assert.False(t, wd.IsData())
	got, ok := wd.AsWebURL()
	require.True(t, ok)
	assert.Equal(t, w.String(), got.String())

	_, err = model.DecodeDownloadURL("ftp://example.com/x")
	assert.Error(t, err)
}
