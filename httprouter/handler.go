// SPDX-License-Identifier: GPL-3.0-or-later

package httprouter

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/loopkit/evcore"
)

// FileMode selects how AddFile serves the filesystem path it is given.
type FileMode int

const (
	// FileExact serves a single file at the registered ContentID.
	FileExact FileMode = iota
	// FileDirectory serves every file under root, joining the request's
	// matched path-prefix suffix onto root to resolve the file to send.
	FileDirectory
)

// AddData registers a handler that serves data verbatim whenever id
// matches, and calls destroy (if non-nil) once the handler is fully
// unregistered (ring ref-count reaches zero).
func (db *ContentDB) AddData(id ContentID, data []byte, contentType MimeType, destroy func(), action Action) {
	body := append([]byte(nil), data...)
	h := &Handler{
		Kind: HandlerRaw,
		Raw: func(content *ContentDB, h *Handler, server ServerStream, req *Request, postData *evcore.Stream) Result {
			resp := &Response{Status: 200, ContentType: contentType, ContentLength: int64(len(body))}
			if err := server.Respond(req, resp, streamFromBytes(body, content.logger)); err != nil {
				return ResultError
			}
			return ResultOK
		},
	}
	if destroy != nil {
		h.Destroy = func(any) { destroy() }
	}
	db.AddHandler(id, h, action)
}

// AddFile registers a handler serving file content read from disk relative
// to root. A path escaping root via "../" is rejected with 400 rather than
// read; a missing file is rejected with 404.
func (db *ContentDB) AddFile(id ContentID, root string, mode FileMode, action Action) {
	h := &Handler{
		Kind: HandlerRaw,
		Raw: func(content *ContentDB, h *Handler, server ServerStream, req *Request, postData *evcore.Stream) Result {
			fsPath, ok := resolveFilePath(root, id, req, mode)
			if !ok {
				content.InvokeError(server, req, 400)
				return ResultOK
			}
			data, err := os.ReadFile(fsPath)
			if err != nil {
				content.InvokeError(server, req, 404)
				return ResultOK
			}
			mt, hasType := content.GetMimeType(req.Path)
			if !hasType {
				mt = MimeType{Type: "application", Subtype: "octet-stream"}
			}
			resp := &Response{Status: 200, ContentType: mt, ContentLength: int64(len(data))}
			if err := server.Respond(req, resp, streamFromBytes(data, content.logger)); err != nil {
				return ResultError
			}
			return ResultOK
		},
	}
	db.AddHandler(id, h, action)
}

func resolveFilePath(root string, id ContentID, req *Request, mode FileMode) (string, bool) {
	if mode == FileExact {
		return root, true
	}
	rel := strings.TrimPrefix(req.Path, id.PathPrefix)
	if hasPathTraversal(rel) {
		return "", false
	}
	return filepath.Join(root, rel), true
}
