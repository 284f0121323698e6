// SPDX-License-Identifier: GPL-3.0-or-later

package dnsdemo

import (
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"

	"github.com/loopkit/evcore"
)

// startFakeUpstream starts a UDP server that answers every A query, echoing
// its name, with one fixed address, just enough to drive ForwardingResolver end to end.
func startFakeUpstream(t *testing.T) (addr string, stop func()) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		buf := make([]byte, maxDatagramSize)
		for {
			n, peer, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			var q dns.Msg
			if err := q.Unpack(buf[:n]); err != nil {
				continue
			}
			reply := new(dns.Msg)
			reply.SetReply(&q)
			if len(q.Question) == 1 && q.Question[0].Qtype == dns.TypeA {
				reply.Answer = append(reply.Answer, &dns.A{
					Hdr: dns.RR_Header{Name: q.Question[0].Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
					A:   net.ParseIP("203.0.113.9"),
				})
			}
			out, err := reply.Pack()
			if err != nil {
				continue
			}
			_, _ = conn.WriteToUDP(out, peer)
		}
	}()
	return conn.LocalAddr().String(), func() { close(done); conn.Close() }
}

func TestForwardingResolverRelaysAnswer(t *testing.T) {
	upstreamAddr, stopUpstream := startFakeUpstream(t)
	defer stopUpstream()

	loop := evcore.NewMainLoop(nil)
	resolver, err := NewForwardingResolver(loop, nil, "127.0.0.1:0", upstreamAddr, nil)
	require.NoError(t, err)
	require.NoError(t, resolver.Start())
	defer resolver.Close()

	client, err := net.DialUDP("udp", nil, resolver.udpConn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer client.Close()

	query := new(dns.Msg)
	query.SetQuestion("example.com.", dns.TypeA)
	raw, err := query.Pack()
	require.NoError(t, err)
	_, err = client.Write(raw)
	require.NoError(t, err)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		loop.RunOnce()
		time.Sleep(5 * time.Millisecond)
	}

	buf := make([]byte, maxDatagramSize)
	n, err := client.Read(buf)
	require.NoError(t, err)

	var reply dns.Msg
	require.NoError(t, reply.Unpack(buf[:n]))
	require.Len(t, reply.Answer, 1)
	a, ok := reply.Answer[0].(*dns.A)
	require.True(t, ok)
	require.Equal(t, "203.0.113.9", a.A.String())
}
