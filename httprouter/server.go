// SPDX-License-Identifier: GPL-3.0-or-later

package httprouter

import (
	"errors"
	"mime"

	"github.com/loopkit/evcore"
)

// Request is the subset of an HTTP/1.x request the router needs to
// dispatch and that a CGI handler needs to decode form input; parsing the
// wire format itself is the external HTTP server stream's job (§4.7).
type Request struct {
	Verb string
	// Path is the request path with any query string already stripped;
	// routing matches against this field. RawQuery holds the part after
	// '?', if any.
	Path      string
	RawQuery  string
	Host      string
	UserAgent string

	RawContentType  string
	ContentTypeMain string
	ContentTypeSub  string
	ContentTypeArgs map[string]string
}

// ParseContentType fills ContentTypeMain/Sub/Args from RawContentType. A
// server stream implementation calls this once after populating
// RawContentType; a malformed or empty header simply leaves the type
// fields empty, which routes CGI decoding to ResultChain.
func (r *Request) ParseContentType() {
	if r.RawContentType == "" {
		return
	}
	mediatype, params, err := mime.ParseMediaType(r.RawContentType)
	if err != nil {
		return
	}
	main, sub, ok := cutOnce(mediatype, '/')
	if !ok {
		return
	}
	r.ContentTypeMain, r.ContentTypeSub, r.ContentTypeArgs = main, sub, params
}

func cutOnce(s string, sep byte) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

// Response is what a handler hands back to the server stream.
type Response struct {
	Status        int
	ContentType   MimeType
	ContentLength int64
	Header        map[string]string
}

// ServerStream is the external HTTP server boundary the router consumes
// (§4.7): get a pending request, respond to it, trap the stream's read hook
// for readiness, and configure the keepalive idle timeout.
type ServerStream interface {
	// GetRequest pops one pending request, if any, returning its parsed
	// headers, a stream over the request body (nil if there is none), and
	// whether a request was actually available.
	GetRequest() (*Request, *evcore.Stream, bool)

	// Respond sends resp as the reply to req, streaming body (which may be
	// nil for an empty body) as the payload.
	Respond(req *Request, resp *Response, body *evcore.Stream) error

	// ReadHook exposes the hook the router traps to learn about newly
	// arrived requests.
	ReadHook() *evcore.Hook

	// SetIdleTimeout configures how long a keepalive connection may sit
	// idle before the server stream closes it.
	SetIdleTimeout(ms int64)
}

// Piece is one decoded CGI form field or multipart part.
type Piece struct {
	ID    string
	Bytes []byte
}

// byteSourceOps is a read-only evcore.StreamOps over a fixed byte slice,
// used to hand AddData/AddFile/error-body responses a fresh Stream each
// time without re-reading from disk mid-response.
type byteSourceOps struct {
	data []byte
	pos  int
}

func newByteSourceOps(data []byte) *byteSourceOps { return &byteSourceOps{data: data} }

func (b *byteSourceOps) RawRead(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, nil
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}

func (b *byteSourceOps) RawReadBuffer(buf *evcore.Buffer) (int, error) {
	if b.pos >= len(b.data) {
		return 0, nil
	}
	n := len(b.data) - b.pos
	buf.Append(b.data[b.pos:])
	b.pos = len(b.data)
	return n, nil
}

func (b *byteSourceOps) RawWrite(p []byte) (int, error) { return 0, errors.New("response body is read-only") }
func (b *byteSourceOps) ShutdownRead() (bool, error)    { return true, nil }
func (b *byteSourceOps) ShutdownWrite() (bool, error)   { return true, nil }

func streamFromBytes(data []byte, logger evcore.SLogger) *evcore.Stream {
	return evcore.NewStream(nil, logger, newByteSourceOps(data))
}

// StreamFromBytes wraps data as a read-only evcore.Stream, for handlers
// outside this package that need to hand a fixed response body to
// ServerStream.Respond.
func StreamFromBytes(data []byte, logger evcore.SLogger) *evcore.Stream {
	return streamFromBytes(data, logger)
}
