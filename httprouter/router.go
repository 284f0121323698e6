// SPDX-License-Identifier: GPL-3.0-or-later

// Package httprouter implements a multi-axis HTTP content dispatch table:
// requests are routed by user-agent prefix, virtual host, then exact path,
// path prefix, or path suffix, to an ordered chain of handlers.
package httprouter

import (
	"fmt"
	"strings"

	"github.com/loopkit/evcore"
)

// MimeType is a (type, subtype) pair, e.g. {"text", "html"}.
type MimeType struct {
	Type    string
	Subtype string
}

func (m MimeType) String() string {
	return fmt.Sprintf("%s/%s", m.Type, m.Subtype)
}

// ContentID selects where a handler is registered. An empty field means
// "unset" (matches the default at that axis). Path and PathPrefix are
// mutually exclusive; PathSuffix composes with either.
type ContentID struct {
	UserAgentPrefix string
	Host            string
	Path            string
	PathPrefix      string
	PathSuffix      string
}

// ContentDB is the dispatch table: a database of handler rings reachable
// by (user-agent prefix, host, path axis, path suffix), plus a MIME lookup
// table and the error handler invoked on a 404/500 fallthrough.
type ContentDB struct {
	byUserAgent  *evcore.PrefixTree[*pathVHostTable]
	defaultVHost *pathVHostTable

	mimeBySuffix     *evcore.PrefixTree[*evcore.PrefixTree[MimeType]]
	mimeBySuffixOnly *evcore.PrefixTree[MimeType]
	mimeByPrefix     *evcore.PrefixTree[MimeType]
	mimeDefault      *MimeType

	// ErrorHandler is invoked when every candidate ring falls through
	// (status 404) or a handler reports a fatal error (status 500). A nil
	// ErrorHandler gets a minimal built-in HTML body.
	ErrorHandler func(server ServerStream, req *Request, status int)

	// KeepaliveIdleTimeoutMS is forwarded to ServerStream.SetIdleTimeout
	// by Serve.
	KeepaliveIdleTimeoutMS int64

	logger evcore.SLogger
}

// NewContentDB creates an empty dispatch table. A nil logger defaults to
// evcore.DefaultSLogger().
func NewContentDB(logger evcore.SLogger) *ContentDB {
	if logger == nil {
		logger = evcore.DefaultSLogger()
	}
	return &ContentDB{logger: logger}
}

// Serve traps server's read hook and drains and dispatches every request it
// produces on each ready event, per the distilled spec's request/response
// interaction contract (§4.7).
func (db *ContentDB) Serve(server ServerStream) error {
	if db.KeepaliveIdleTimeoutMS > 0 {
		server.SetIdleTimeout(db.KeepaliveIdleTimeoutMS)
	}
	return server.ReadHook().Trap(func(data any) bool {
		for {
			req, postData, ok := server.GetRequest()
			if !ok {
				break
			}
			db.Respond(server, req, postData)
		}
		return true
	}, nil, nil, nil)
}

func reverseString(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

func hasPathTraversal(rel string) bool {
	return strings.Contains(rel, "../") || strings.Contains(rel, "/..") || strings.HasSuffix(rel, "/..")
}
