// SPDX-License-Identifier: GPL-3.0-or-later

package dnsdemo

import (
	"net"
	"sync"

	"github.com/loopkit/evcore"
)

// maxDatagramSize bounds one DNS-over-UDP datagram per RFC 1035's classic
// 512-byte limit plus generous headroom for EDNS0 responses.
const maxDatagramSize = 4096

// packetConn adapts one *net.UDPConn into an evcore.StreamOps, holding at
// most one pending inbound datagram at a time: a background goroutine does
// the blocking ReadFromUDP and posts each datagram onto the loop goroutine,
// the only place this package's Post bridge is used for *inbound* I/O (the
// outbound upstream exchange is a second, independent bridge; see
// resolver.go). This keeps the single-packet-at-a-time scope explicit: a
// forwarding demo has no business pipelining client datagrams ahead of
// their responses.
type packetConn struct {
	conn *net.UDPConn
	loop *evcore.MainLoop

	mu       sync.Mutex
	pending  []byte
	peer     *net.UDPAddr
	lastPeer *net.UDPAddr

	closed bool
}

func newPacketConn(loop *evcore.MainLoop, conn *net.UDPConn) *packetConn {
	return &packetConn{conn: conn, loop: loop}
}

// run is the background reader goroutine; it blocks on ReadFromUDP and
// hands each datagram to the loop via Post, then calls notify once the
// datagram has been stashed so the stream's read hook fires on the loop
// goroutine.
func (p *packetConn) run(notify func()) {
	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := p.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		datagram := append([]byte(nil), buf[:n]...)
		p.loop.Post(func() {
			p.mu.Lock()
			p.pending = datagram
			p.peer = addr
			p.mu.Unlock()
			notify()
		})
	}
}

// RawRead is unused; the resolver drains datagrams via RawReadBuffer. Both
// return only the payload; the sender's address is recorded by
// [packetConn.takePending] and read back with [packetConn.LastPeer].
func (p *packetConn) RawRead(b []byte) (int, error) {
	data, _, ok := p.takePending()
	if !ok {
		return 0, nil
	}
	return copy(b, data), nil
}

func (p *packetConn) RawReadBuffer(buf *evcore.Buffer) (int, error) {
	data, _, ok := p.takePending()
	if !ok {
		return 0, nil
	}
	buf.Append(data)
	return len(data), nil
}

func (p *packetConn) takePending() ([]byte, *net.UDPAddr, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return nil, nil, false
	}
	data, peer := p.pending, p.peer
	p.pending, p.peer = nil, nil
	p.lastPeer = peer
	return data, peer, true
}

// LastPeer returns the address of the most recently delivered datagram,
// valid once the resolver's read-hook callback has drained it from the
// stream (arrival is serialized through the loop goroutine, so there is no
// race between the take and this read).
func (p *packetConn) LastPeer() *net.UDPAddr {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPeer
}

func (p *packetConn) RawWrite(b []byte) (int, error) {
	return 0, nil // writes happen via writeTo, addressed per-datagram
}

func (p *packetConn) writeTo(addr *net.UDPAddr, b []byte) error {
	_, err := p.conn.WriteToUDP(b, addr)
	return err
}

func (p *packetConn) ShutdownRead() (bool, error) {
	return true, nil
}

func (p *packetConn) ShutdownWrite() (bool, error) {
	p.mu.Lock()
	already := p.closed
	p.closed = true
	p.mu.Unlock()
	if already {
		return true, nil
	}
	return true, p.conn.Close()
}
