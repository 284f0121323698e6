// SPDX-License-Identifier: GPL-3.0-or-later

package httprouter

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/loopkit/evcore"
)

// Respond dispatches req against the precedence order fixed by the
// distilled spec: user-agent match before default, host match before
// default, exact path before prefix before no-prefix, suffix match before
// no-suffix; within one ring, ring order starting at the head (since
// [ActionAppend] inserts right after the head, later appends run before
// earlier ones).
func (db *ContentDB) Respond(server ServerStream, req *Request, postData *evcore.Stream) {
	spanID := evcore.NewSpanID()
	db.logger.Info("routerDispatchStart", slog.String("spanID", spanID), slog.String("path", req.Path), slog.String("verb", req.Verb))

	for _, r := range db.collectRings(req) {
		res := r.dispatch(func(h *Handler) Result {
			return db.invokeHandler(h, server, req, postData)
		})
		switch res {
		case ResultOK:
			db.logger.Info("routerDispatchDone", slog.String("spanID", spanID), slog.Int("status", 200))
			return
		case ResultError:
			db.logger.Info("routerDispatchDone", slog.String("spanID", spanID), slog.Int("status", 500))
			db.InvokeError(server, req, 500)
			return
		}
	}

	db.logger.Info("routerDispatchDone", slog.String("spanID", spanID), slog.Int("status", 404))
	db.InvokeError(server, req, 404)
}

// collectRings builds the ordered candidate-ring sequence for req, per the
// fixed per-axis precedence table in §4.6.2.
func (db *ContentDB) collectRings(req *Request) []*ring {
	var vhosts []*pathVHostTable
	if db.byUserAgent != nil {
		vhosts = append(vhosts, db.byUserAgent.LookupAll([]byte(req.UserAgent))...)
	}
	if db.defaultVHost != nil {
		vhosts = append(vhosts, db.defaultVHost)
	}

	var rings []*ring
	for _, vhost := range vhosts {
		for _, pt := range vhost.candidatePathTables(req.Host) {
			for _, sl := range pt.candidateSuffixLists(req.Path) {
				rings = append(rings, sl.candidateRings(req.Path)...)
			}
		}
	}
	return rings
}

func (db *ContentDB) invokeHandler(h *Handler, server ServerStream, req *Request, postData *evcore.Stream) Result {
	if h.Kind == HandlerRaw {
		return h.Raw(db, h, server, req, postData)
	}
	pieces, isCGI := decodeCGI(req, postData)
	if !isCGI {
		return ResultChain
	}
	return h.CGI(db, h, server, req, pieces)
}

// InvokeError calls db.ErrorHandler if set, else produces a minimal HTML
// error body itself.
func (db *ContentDB) InvokeError(server ServerStream, req *Request, status int) {
	if db.ErrorHandler != nil {
		db.ErrorHandler(server, req, status)
		return
	}
	body := fmt.Sprintf("<html><body><h1>%d</h1></body></html>", status)
	resp := &Response{Status: status, ContentType: MimeType{Type: "text", Subtype: "html"}, ContentLength: int64(len(body))}
	_ = server.Respond(req, resp, streamFromBytes([]byte(body), db.logger))
}

func contentTypeMatches(req *Request, typ, sub string) bool {
	return strings.EqualFold(req.ContentTypeMain, typ) && strings.EqualFold(req.ContentTypeSub, sub)
}
