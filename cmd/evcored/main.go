// SPDX-License-Identifier: GPL-3.0-or-later

// Command evcored wires one MainLoop, one HTTP content router serving a
// static directory plus a CGI echo handler, and one DNS forwarding demo,
// to show the core pieces cooperating inside a single process.
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"

	"github.com/loopkit/evcore"
	"github.com/loopkit/evcore/dnsdemo"
	"github.com/loopkit/evcore/httprouter"
)

func main() {
	httpListen := flag.String("http", "127.0.0.1:8080", "HTTP listen address")
	dnsListen := flag.String("dns", "127.0.0.1:5300", "DNS listen address")
	dnsUpstream := flag.String("dns-upstream", "8.8.8.8:53", "DNS upstream address")
	staticDir := flag.String("static-dir", "testdata", "directory served at /static/")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	cfg := evcore.NewConfig()
	cfg.Logger = logger

	loop := evcore.NewMainLoop(cfg)

	db := httprouter.NewContentDB(logger)
	db.SetDefaultMimeType("application", "octet-stream")
	db.SetMimeType("", ".html", "text", "html")
	db.SetMimeType("", ".css", "text", "css")
	db.SetMimeType("", ".json", "application", "json")
	db.AddFile(httprouter.ContentID{PathPrefix: "/static/"}, *staticDir, httprouter.FileDirectory, httprouter.ActionAppend)
	db.AddHandler(httprouter.ContentID{Path: "/echo"}, echoHandler(), httprouter.ActionAppend)

	resolver, err := dnsdemo.NewForwardingResolver(loop, cfg, *dnsListen, *dnsUpstream, logger)
	if err != nil {
		logger.Error("evcored: failed to start DNS forwarder", slog.Any("err", err))
		os.Exit(1)
	}
	if err := resolver.Start(); err != nil {
		logger.Error("evcored: failed to trap DNS listener", slog.Any("err", err))
		os.Exit(1)
	}
	defer resolver.Close()

	server := newNetHTTPServerStream(loop, db)
	if err := db.Serve(server); err != nil {
		logger.Error("evcored: failed to trap HTTP listener", slog.Any("err", err))
		os.Exit(1)
	}
	go func() {
		if err := http.ListenAndServe(*httpListen, server); err != nil {
			logger.Error("evcored: http server exited", slog.Any("err", err))
		}
	}()

	logger.Info("evcored: listening",
		slog.String("http", *httpListen),
		slog.String("dns", *dnsListen),
		slog.String("dnsUpstream", *dnsUpstream))

	loop.Run()
}

// echoHandler responds to GET/POST form submissions at /echo by relaying
// the decoded pieces back as the body, one "id=value" line each.
func echoHandler() *httprouter.Handler {
	return &httprouter.Handler{
		Kind: httprouter.HandlerCGI,
		CGI: func(content *httprouter.ContentDB, h *httprouter.Handler, server httprouter.ServerStream, req *httprouter.Request, pieces []httprouter.Piece) httprouter.Result {
			var body []byte
			for _, p := range pieces {
				body = append(body, p.ID...)
				body = append(body, '=')
				body = append(body, p.Bytes...)
				body = append(body, '\n')
			}
			resp := &httprouter.Response{
				Status:        200,
				ContentType:   httprouter.MimeType{Type: "text", Subtype: "plain"},
				ContentLength: int64(len(body)),
			}
			respBody := httprouter.StreamFromBytes(body, nil)
			if err := server.Respond(req, resp, respBody); err != nil {
				return httprouter.ResultError
			}
			return httprouter.ResultOK
		},
	}
}
