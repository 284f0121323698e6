// SPDX-License-Identifier: GPL-3.0-or-later

package httprouter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopkit/evcore"
)

// fakeServerStream is a minimal in-memory ServerStream for exercising
// ContentDB.Respond without a real socket.
type fakeServerStream struct {
	readHook *evcore.Hook
	pending  []*Request
	postData map[*Request]*evcore.Stream

	responses []fakeResponse
}

type fakeResponse struct {
	req  *Request
	resp *Response
	body []byte
}

func newFakeServerStream() *fakeServerStream {
	s := &fakeServerStream{postData: map[*Request]*evcore.Stream{}}
	s.readHook = evcore.NewHook(nil, s)
	return s
}

func (s *fakeServerStream) SetPoll(h *evcore.Hook, want bool) {}
func (s *fakeServerStream) Shutdown(h *evcore.Hook) (bool, error) { return true, nil }

func (s *fakeServerStream) GetRequest() (*Request, *evcore.Stream, bool) {
	if len(s.pending) == 0 {
		return nil, nil, false
	}
	req := s.pending[0]
	s.pending = s.pending[1:]
	return req, s.postData[req], true
}

func (s *fakeServerStream) Respond(req *Request, resp *Response, body *evcore.Stream) error {
	var data []byte
	if body != nil {
		buf := make([]byte, 0)
		tmp := make([]byte, 256)
		for {
			n, err := body.Read(tmp)
			buf = append(buf, tmp[:n]...)
			if n == 0 || err != nil {
				break
			}
		}
		data = buf
	}
	s.responses = append(s.responses, fakeResponse{req: req, resp: resp, body: data})
	return nil
}

func (s *fakeServerStream) ReadHook() *evcore.Hook { return s.readHook }
func (s *fakeServerStream) SetIdleTimeout(ms int64) {}

func (s *fakeServerStream) enqueue(req *Request) {
	s.pending = append(s.pending, req)
}

func okHandler(label string) *Handler {
	return &Handler{
		Kind: HandlerRaw,
		Raw: func(content *ContentDB, h *Handler, server ServerStream, req *Request, postData *evcore.Stream) Result {
			_ = server.Respond(req, &Response{Status: 200}, streamFromBytes([]byte(label), content.logger))
			return ResultOK
		},
	}
}

func TestRouterExactPathBeatsPrefix(t *testing.T) {
	db := NewContentDB(nil)
	db.AddHandler(ContentID{PathPrefix: "/api/"}, okHandler("prefix"), ActionAppend)
	db.AddHandler(ContentID{Path: "/api/status"}, okHandler("exact"), ActionAppend)

	server := newFakeServerStream()
	req := &Request{Verb: "GET", Path: "/api/status", Host: "example.com"}
	server.enqueue(req)
	require.True(t, server.ReadHook().Trap(func(any) bool {
		for {
			r, pd, ok := server.GetRequest()
			if !ok {
				break
			}
			db.Respond(server, r, pd)
		}
		return true
	}, nil, nil, nil) == nil)
	server.ReadHook().Notify()

	require.Len(t, server.responses, 1)
	assert.Equal(t, "exact", string(server.responses[0].body))
}

func TestRouterPrefixFallsBackWhenNoExactMatch(t *testing.T) {
	db := NewContentDB(nil)
	db.AddHandler(ContentID{PathPrefix: "/api/"}, okHandler("prefix"), ActionAppend)

	server := newFakeServerStream()
	req := &Request{Verb: "GET", Path: "/api/other", Host: "example.com"}
	server.enqueue(req)
	_ = server.ReadHook().Trap(func(any) bool {
		for {
			r, pd, ok := server.GetRequest()
			if !ok {
				break
			}
			db.Respond(server, r, pd)
		}
		return true
	}, nil, nil, nil)
	server.ReadHook().Notify()

	require.Len(t, server.responses, 1)
	assert.Equal(t, "prefix", string(server.responses[0].body))
}

func TestRouterSuffixMatchWinsOverNoSuffix(t *testing.T) {
	db := NewContentDB(nil)
	db.AddHandler(ContentID{PathPrefix: "/assets/"}, okHandler("default"), ActionAppend)
	db.AddHandler(ContentID{PathPrefix: "/assets/", PathSuffix: ".css"}, okHandler("css"), ActionAppend)

	server := newFakeServerStream()
	req := &Request{Verb: "GET", Path: "/assets/site.css", Host: "example.com"}
	server.enqueue(req)
	_ = server.ReadHook().Trap(func(any) bool {
		for {
			r, pd, ok := server.GetRequest()
			if !ok {
				break
			}
			db.Respond(server, r, pd)
		}
		return true
	}, nil, nil, nil)
	server.ReadHook().Notify()

	require.Len(t, server.responses, 1)
	assert.Equal(t, "css", string(server.responses[0].body))
}

func TestRouterFallthroughTo404(t *testing.T) {
	db := NewContentDB(nil)
	server := newFakeServerStream()
	req := &Request{Verb: "GET", Path: "/nowhere", Host: "example.com"}
	server.enqueue(req)
	_ = server.ReadHook().Trap(func(any) bool {
		for {
			r, pd, ok := server.GetRequest()
			if !ok {
				break
			}
			db.Respond(server, r, pd)
		}
		return true
	}, nil, nil, nil)
	server.ReadHook().Notify()

	require.Len(t, server.responses, 1)
	assert.Equal(t, 404, server.responses[0].resp.Status)
}

func TestHandlerDestroyedOnceRefCountReachesZero(t *testing.T) {
	destroyed := 0
	h := &Handler{Kind: HandlerRaw, Destroy: func(any) { destroyed++ }}
	r := &ring{}
	r.apply(ActionAppend, h)
	assert.Equal(t, 0, destroyed)

	other := &Handler{Kind: HandlerRaw, Destroy: func(any) { destroyed++ }}
	r.apply(ActionReplace, other)
	assert.Equal(t, 1, destroyed, "replacing the ring must destroy the displaced handler exactly once")

	r.apply(ActionReplace, other)
	assert.Equal(t, 1, destroyed, "re-registering the same handler must not double-destroy it")
}
