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

func TestDataURIRoundtrip(t *testing.T) {
	d := ident.NewDataURI("image/png", []byte{1, 2, 3, 4})
	decoded, err := ident.DecodeDataURI(d.String())
	require.NoError(t, err)
	assert.Equal(t, d.MimeType(), decoded.MimeType())
	assert.Equal(t, d.Bytes(), decoded.Bytes())
	assert.Equal(t, d.String(), decoded.String())
}

func TestDecodeDataURITolerantPadding(t *testing.T) {
	// "hi" encodes as aGk= ; the decoder accepts the unpadded form too
	d, err := ident.DecodeDataURI("data:text/plain;base64,aGk")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), d.Bytes())
}

func TestDecodeDataURIErrors(t *testing.T) {
	for _, in := range []string{
		"http://example.com",
		"data:text/plain,hi",
		"data:;base64,aGk=",
		"data:text/plain;base64",
	} {
		_, err := ident.DecodeDataURI(in)
		assert.Error(t, err, in)
	}
}

func TestBase64SafeConversion(t *testing.T) {
	std := ident.EncodeBase64Std([]byte{0xfb, 0xff, 0xfe, 0x01})
	safe := ident.Base64StdToSafe(std)
	assert.NotContains(t, safe, "+")
	assert.NotContains(t, safe, "/")
	assert.NotContains(t, safe, "=")
	assert.Equal(t, std, ident.Base64SafeToStd(safe))

	decoded, err := ident.DecodeBase64Safe(safe)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xfb, 0xff, 0xfe, 0x01}, decoded)
}

func TestRelationIDRoundtrip(t *testing.T) {
	id := ident.NewRelationID("link", []byte(`{"source":"a","target":"b"}`))
	parsed, err := ident.DecodeRelationID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
	assert.Equal(t, "link", parsed.Kind())

	// deterministic across calls
	again := ident.NewRelationID("link", []byte(`{"source":"a","target":"b"}`))
	assert.Equal(t, id, again)

	// different body, different digest
	other := ident.NewRelationID("link", []byte(`{"source":"a","target":"c"}`))
	assert.NotEqual(t, id, other)

	for _, in := range []string{"link", "link-xyz", "Link-0123456789abcdef0123456789abcdef", "link-0123"} {
		_, err := ident.DecodeRelationID(in)
		assert.Error(t, err, in)
	}
}
