// SPDX-License-Identifier: GPL-3.0-or-later

package httprouter

import (
	"io"
	"mime/multipart"
	"net/url"
	"strings"

	"github.com/loopkit/evcore"
)

// decodeCGI decodes req/postData into an ordered slice of form pieces per
// §4.6.3: a GET with a query string, a POST with an urlencoded body, or a
// POST with a multipart body. Anything else reports isCGI=false so the
// caller chains to the next handler instead of treating the request as a
// form submission.
func decodeCGI(req *Request, postData *evcore.Stream) (pieces []Piece, isCGI bool) {
	switch {
	case strings.EqualFold(req.Verb, "GET"):
		if req.RawQuery == "" {
			return nil, false
		}
		return decodeURLEncoded(req.RawQuery), true

	case strings.EqualFold(req.Verb, "POST") && contentTypeMatches(req, "application", "x-www-form-urlencoded"):
		body, err := readAll(postData)
		if err != nil {
			return nil, false
		}
		return decodeURLEncoded(string(body)), true

	case strings.EqualFold(req.Verb, "POST") && contentTypeMatches(req, "multipart", "form-data"):
		boundary, ok := req.ContentTypeArgs["boundary"]
		if !ok || postData == nil {
			return nil, false
		}
		return decodeMultipart(postData, boundary), true

	default:
		return nil, false
	}
}

func readAll(s *evcore.Stream) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := s.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			return out, err
		}
		if n == 0 {
			return out, nil
		}
	}
}

// decodeURLEncoded splits query on '&' then '=' by hand, rather than via
// url.ParseQuery, because ParseQuery collapses fields into an unordered map:
// form submission order (name before level, e.g.) must survive into pieces
// for a handler that treats position as meaningful.
func decodeURLEncoded(query string) []Piece {
	if query == "" {
		return nil
	}
	var pieces []Piece
	for _, field := range strings.Split(query, "&") {
		if field == "" {
			continue
		}
		key, value, _ := cutOnce(field, '=')
		id, err := url.QueryUnescape(key)
		if err != nil {
			id = key
		}
		val, err := url.QueryUnescape(value)
		if err != nil {
			val = value
		}
		pieces = append(pieces, Piece{ID: id, Bytes: []byte(val)})
	}
	return pieces
}

// decodeMultipart reads every part of a multipart/form-data body in
// stream order, preserving the order fields and files appeared on the wire.
func decodeMultipart(postData *evcore.Stream, boundary string) []Piece {
	var pieces []Piece
	mr := multipart.NewReader(postData, boundary)
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			break
		}
		pieces = append(pieces, Piece{ID: part.FormName(), Bytes: data})
	}
	return pieces
}
