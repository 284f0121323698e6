// SPDX-License-Identifier: GPL-3.0-or-later

package httprouter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCGIGetPreservesQueryOrder(t *testing.T) {
	req := &Request{Verb: "GET", Path: "/search", RawQuery: "name=dave%20b&lvl=3"}
	pieces, ok := decodeCGI(req, nil)
	require.True(t, ok)
	require.Len(t, pieces, 2)
	assert.Equal(t, "name", pieces[0].ID)
	assert.Equal(t, "dave b", string(pieces[0].Bytes))
	assert.Equal(t, "lvl", pieces[1].ID)
	assert.Equal(t, "3", string(pieces[1].Bytes))
}

func TestDecodeCGIGetWithoutQueryIsNotCGI(t *testing.T) {
	req := &Request{Verb: "GET", Path: "/search"}
	_, ok := decodeCGI(req, nil)
	assert.False(t, ok)
}

func TestDecodeCGIPostURLEncoded(t *testing.T) {
	req := &Request{Verb: "POST", RawContentType: "application/x-www-form-urlencoded"}
	req.ParseContentType()
	body := streamFromBytes([]byte("a=1&b=2"), nil)
	pieces, ok := decodeCGI(req, body)
	require.True(t, ok)
	require.Len(t, pieces, 2)
	assert.Equal(t, "a", pieces[0].ID)
	assert.Equal(t, "b", pieces[1].ID)
}

func TestDecodeCGIPostMultipart(t *testing.T) {
	const boundary = "XYZ"
	body := strings.Join([]string{
		"--" + boundary,
		`Content-Disposition: form-data; name="field1"`,
		"",
		"value1",
		"--" + boundary,
		`Content-Disposition: form-data; name="field2"`,
		"",
		"value2",
		"--" + boundary + "--",
		"",
	}, "\r\n")

	req := &Request{Verb: "POST", RawContentType: `multipart/form-data; boundary=` + boundary}
	req.ParseContentType()
	stream := streamFromBytes([]byte(body), nil)
	pieces, ok := decodeCGI(req, stream)
	require.True(t, ok)
	require.Len(t, pieces, 2)
	assert.Equal(t, "field1", pieces[0].ID)
	assert.Equal(t, "value1", string(pieces[0].Bytes))
	assert.Equal(t, "field2", pieces[1].ID)
	assert.Equal(t, "value2", string(pieces[1].Bytes))
}

func TestDecodeCGIUnsupportedVerbIsNotCGI(t *testing.T) {
	req := &Request{Verb: "PUT"}
	_, ok := decodeCGI(req, nil)
	assert.False(t, ok)
}
