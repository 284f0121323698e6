// SPDX-License-Identifier: GPL-3.0-or-later

// Package dnsdemo implements a thin DNS-over-UDP forwarding resolver built
// as one evcore.Stream: it relays queries to a single configured upstream
// and relays the answer back, with no caching, no retry, and no zone data.
package dnsdemo

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/bassosimone/dnscodec"
	"github.com/bassosimone/minest"
	"github.com/bassosimone/sud"
	"github.com/miekg/dns"

	"github.com/loopkit/evcore"
)

// queryTimeoutMS bounds how long one forwarded exchange may take before the
// resolver gives up on that client's query and moves on.
const queryTimeoutMS = 5000

// ForwardingResolver owns a UDP listener and forwards every query it
// receives to a single upstream resolver, relaying the response back to the
// original peer address. It runs on loop and uses loop.Post to bring the
// results of its two off-loop goroutines back onto it: the packetConn
// reader that receives client datagrams, and the upstream exchange.
type ForwardingResolver struct {
	loop     *evcore.MainLoop
	logger   evcore.SLogger
	upstream string
	udpConn  *net.UDPConn
	pc       *packetConn
	stream   *evcore.Stream
	timeNow  func() time.Time
}

// NewForwardingResolver listens on listenAddr (host:port) and forwards
// queries to upstream (host:port).
func NewForwardingResolver(loop *evcore.MainLoop, cfg *evcore.Config, listenAddr, upstream string, logger evcore.SLogger) (*ForwardingResolver, error) {
	if cfg == nil {
		cfg = evcore.NewConfig()
	}
	if logger == nil {
		logger = cfg.Logger
	}
	addr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, evcore.NewError(evcore.ErrIO, "dnsdemo.listen", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, evcore.NewError(evcore.ErrIO, "dnsdemo.listen", err)
	}
	pc := newPacketConn(loop, conn)
	stream := evcore.NewStream(loop, logger, pc)
	stream.SetClassifier(cfg.ErrClassifier)

	r := &ForwardingResolver{
		loop:     loop,
		logger:   logger,
		upstream: upstream,
		udpConn:  conn,
		pc:       pc,
		stream:   stream,
		timeNow:  cfg.TimeNow,
	}
	return r, nil
}

// Start traps the listener's read hook and spawns the background reader
// goroutine. It must be called once before the owning loop starts running.
func (r *ForwardingResolver) Start() error {
	go r.pc.run(func() { r.stream.ReadHook.Notify() })
	return r.stream.ReadHook.Trap(func(any) bool {
		r.handleDatagram()
		return true
	}, nil, nil, nil)
}

// Close shuts down the listener; the background reader goroutine exits once
// its next ReadFromUDP call fails against the closed socket.
func (r *ForwardingResolver) Close() error {
	_, err := r.stream.ShutdownRead()
	if _, werr := r.stream.ShutdownWrite(); err == nil {
		err = werr
	}
	return err
}

func (r *ForwardingResolver) handleDatagram() {
	var buf evcore.Buffer
	n, err := r.stream.ReadBuffer(&buf)
	if err != nil || n == 0 {
		return
	}
	raw := buf.Read(n)
	peer := r.pc.LastPeer()
	if peer == nil {
		return
	}

	var msg dns.Msg
	if err := msg.Unpack(raw); err != nil {
		r.logger.Info("dnsForwardDropped", slog.String("reason", "unpack"), slog.Any("err", err))
		return
	}
	if len(msg.Question) != 1 {
		r.logger.Info("dnsForwardDropped", slog.String("reason", "questionCount"))
		return
	}
	question := msg.Question[0]

	spanID := evcore.NewSpanID()
	r.logger.Info("dnsForwardStart",
		slog.String("spanID", spanID),
		slog.String("name", question.Name),
		slog.String("peer", peer.String()))

	id := msg.Id
	name := question.Name
	qtype := question.Qtype

	go r.forward(spanID, id, name, qtype, peer)
}

// forward runs off the loop goroutine: it dials a fresh upstream connection,
// performs the exchange, and posts the reply back for the loop to write out.
func (r *ForwardingResolver) forward(spanID string, id uint16, name string, qtype uint16, peer *net.UDPAddr) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeoutMS*time.Millisecond)
	defer cancel()

	conn, err := net.Dial("udp", r.upstream)
	if err != nil {
		r.loop.Post(func() {
			r.logger.Info("dnsForwardDone", slog.String("spanID", spanID), slog.Any("err", err))
		})
		return
	}
	defer conn.Close()

	dialer := sud.NewSingleUseDialer(conn)
	localAddr := netip.AddrPortFrom(netip.IPv4Unspecified(), 0)
	txp := minest.NewDNSOverUDPTransport(dialer, localAddr)

	query := dnscodec.NewQuery(name, qtype)
	resp, err := txp.ExchangeWithConn(ctx, conn, query)

	r.loop.Post(func() {
		r.logger.Info("dnsForwardDone", slog.String("spanID", spanID), slog.Any("err", err))
		if err != nil {
			return
		}
		r.replyWithAnswer(id, name, qtype, resp, peer)
	})
}

// replyWithAnswer rebuilds a minimal reply message from the upstream's
// decoded A records and writes it back to peer. Only A lookups are
// relayed end to end; this is a thin demo, not a general resolver, and
// dnscodec's retrieval-pack footprint only demonstrates the A-record
// accessor (see the distilled spec's forwarding-demo Non-goals).
func (r *ForwardingResolver) replyWithAnswer(id uint16, name string, qtype uint16, resp *dnscodec.Response, peer *net.UDPAddr) {
	reply := new(dns.Msg)
	reply.Id = id
	reply.Response = true
	reply.RecursionAvailable = true
	reply.Question = []dns.Question{{Name: name, Qtype: qtype, Qclass: dns.ClassINET}}

	if qtype == dns.TypeA {
		addrs, err := resp.RecordsA()
		if err == nil {
			for _, addr := range addrs {
				reply.Answer = append(reply.Answer, &dns.A{
					Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
					A:   net.ParseIP(addr),
				})
			}
		}
	}

	out, err := reply.Pack()
	if err != nil {
		return
	}
	_ = r.pc.writeTo(peer, out)
}
