// SPDX-License-Identifier: GPL-3.0-or-later

package httprouter

import "github.com/loopkit/evcore"

// HandlerKind distinguishes a raw handler from one adapted through the CGI
// form/multipart decoder.
type HandlerKind int

const (
	HandlerRaw HandlerKind = iota
	HandlerCGI
)

// Result is a handler's verdict: stop with a response, keep trying the next
// handler in the chain, or stop with a fatal error.
type Result int

const (
	ResultOK Result = iota
	ResultChain
	ResultError
)

// RawHandlerFunc handles a request directly.
type RawHandlerFunc func(content *ContentDB, h *Handler, server ServerStream, req *Request, postData *evcore.Stream) Result

// CGIHandlerFunc receives form/multipart input already decoded into pieces.
type CGIHandlerFunc func(content *ContentDB, h *Handler, server ServerStream, req *Request, pieces []Piece) Result

// Handler is a ref-counted record linked into one or more rings. Destroy
// runs once ref-count drops to zero (every ring it was inserted into has
// removed or replaced it).
type Handler struct {
	Kind    HandlerKind
	Data    any
	Destroy func(data any)
	Raw     RawHandlerFunc
	CGI     CGIHandlerFunc

	refs int
}

func (h *Handler) ref() { h.refs++ }

func (h *Handler) unref() {
	h.refs--
	if h.refs <= 0 && h.Destroy != nil {
		h.Destroy(h.Data)
		h.Destroy = nil
	}
}

// Action selects how a handler is linked into a ring.
type Action int

const (
	// ActionAppend inserts immediately after the current head; the head
	// itself is unchanged.
	ActionAppend Action = iota
	// ActionPrepend inserts the new handler as the new head.
	ActionPrepend
	// ActionReplace unrefs every existing handler in the ring and installs
	// a singleton ring holding only the new handler.
	ActionReplace
)

// ring is a handler chain represented as a slice with an explicit head at
// index 0 — the redesign of the source's circular doubly-linked list noted
// in the distilled spec's design notes (§9).
type ring struct {
	handlers []*Handler
}

func (r *ring) apply(action Action, h *Handler) {
	switch action {
	case ActionAppend:
		h.ref()
		if len(r.handlers) == 0 {
			r.handlers = []*Handler{h}
			return
		}
		tail := make([]*Handler, 0, len(r.handlers))
		tail = append(tail, r.handlers[0], h)
		tail = append(tail, r.handlers[1:]...)
		r.handlers = tail
	case ActionPrepend:
		h.ref()
		r.handlers = append([]*Handler{h}, r.handlers...)
	case ActionReplace:
		h.ref()
		for _, old := range r.handlers {
			old.unref()
		}
		r.handlers = []*Handler{h}
	}
}

// dispatch walks the ring from the head, invoking each handler until one
// returns something other than ResultChain.
func (r *ring) dispatch(invoke func(h *Handler) Result) Result {
	for _, h := range r.handlers {
		if res := invoke(h); res != ResultChain {
			return res
		}
	}
	return ResultChain
}
