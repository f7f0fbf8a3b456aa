// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package ident_test

import (
	"testing"

	"github.com/nandam/nandam/pkg/ident"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFileName(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"README.md", true},
		{"widget", true},
		{"-", true},
		{"v1.0_2", true},
		{"", false},
		{".", false},
		{"..", false},
		{"...", false},
		{"___", false},
		{"._-", false},
		{"a/b", false},
		{"naïve", false},
		{"with space", false},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			got, err := ident.DecodeFileName(c.in)
			if !c.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.in, got.String())
		})
	}
}

func TestNormalizeFileName(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Naïve Résumé.pdf", "Naive_Resume.pdf", true},
		{"feature/x", "feature_x", true},
		{"hello,  world!", "hello_world", true},
		{"already-fine", "already-fine", true},
		{"日本語", "", false},
		{"!!!", "", false},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			got, err := ident.NormalizeFileName(c.in)
			if !c.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, got.String())
		})
	}
}

func TestFilePathRoundtrip(t *testing.T) {
	p, err := ident.DecodeFilePath("docs/usage/README.md")
	require.NoError(t, err)
	assert.Equal(t, "docs/usage/README.md", p.String())
	assert.Equal(t, ident.FileName("README.md"), p.Base())
	assert.Equal(t, "md", p.Base().Extension())

	_, err = ident.DecodeFilePath("")
	assert.Error(t, err)
	_, err = ident.DecodeFilePath("a//b")
	assert.Error(t, err)
	_, err = ident.DecodeFilePath("a/../b")
	assert.Error(t, err)
}
