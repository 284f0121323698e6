// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"io"
	"net/http"

	"github.com/loopkit/evcore"
	"github.com/loopkit/evcore/httprouter"
)

// netHTTPServerStream adapts net/http's per-connection callback model onto
// httprouter.ServerStream's pull-based contract. Each inbound request
// arrives on its own net/http goroutine (ServeHTTP); it is posted onto loop
// via MainLoop.Post — the same bridge dnsdemo uses for its background
// upstream exchange — and the goroutine blocks on a per-request channel
// until db.Respond (running on the loop goroutine) has written a reply.
type netHTTPServerStream struct {
	loop     *evcore.MainLoop
	readHook *evcore.Hook
	db       *httprouter.ContentDB

	pending  []pendingRequest
	inflight []chan *respondCall
}

type pendingRequest struct {
	req  *httprouter.Request
	body *evcore.Stream
	done chan *respondCall
}

type respondCall struct {
	resp *httprouter.Response
	body *evcore.Stream
}

func newNetHTTPServerStream(loop *evcore.MainLoop, db *httprouter.ContentDB) *netHTTPServerStream {
	s := &netHTTPServerStream{loop: loop, db: db}
	s.readHook = evcore.NewHook(loop, s)
	return s
}

func (s *netHTTPServerStream) SetPoll(h *evcore.Hook, want bool)     {}
func (s *netHTTPServerStream) Shutdown(h *evcore.Hook) (bool, error) { return true, nil }

func (s *netHTTPServerStream) GetRequest() (*httprouter.Request, *evcore.Stream, bool) {
	if len(s.pending) == 0 {
		return nil, nil, false
	}
	p := s.pending[0]
	s.pending = s.pending[1:]
	s.inflight = append(s.inflight, p.done)
	return p.req, p.body, true
}

func (s *netHTTPServerStream) Respond(req *httprouter.Request, resp *httprouter.Response, body *evcore.Stream) error {
	if len(s.inflight) == 0 {
		return nil
	}
	done := s.inflight[0]
	s.inflight = s.inflight[1:]
	done <- &respondCall{resp: resp, body: body}
	return nil
}

func (s *netHTTPServerStream) ReadHook() *evcore.Hook { return s.readHook }
func (s *netHTTPServerStream) SetIdleTimeout(ms int64) {}

// ServeHTTP implements http.Handler, bridging one inbound connection's
// request into the router and writing back whatever it decides.
func (s *netHTTPServerStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := &httprouter.Request{
		Verb:      r.Method,
		Path:      r.URL.Path,
		RawQuery:  r.URL.RawQuery,
		Host:      r.Host,
		UserAgent: r.UserAgent(),
	}
	req.RawContentType = r.Header.Get("Content-Type")
	req.ParseContentType()

	var bodyStream *evcore.Stream
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		bodyStream = httprouter.StreamFromBytes(data, nil)
	}

	done := make(chan *respondCall, 1)
	s.loop.Post(func() {
		s.pending = append(s.pending, pendingRequest{req: req, body: bodyStream, done: done})
		s.readHook.Notify()
	})

	call := <-done
	if call == nil || call.resp == nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", call.resp.ContentType.String())
	w.WriteHeader(call.resp.Status)
	if call.body != nil {
		buf := make([]byte, 4096)
		for {
			n, err := call.body.Read(buf)
			if n > 0 {
				_, _ = w.Write(buf[:n])
			}
			if n == 0 || err != nil {
				break
			}
		}
	}
}
