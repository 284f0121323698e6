// SPDX-License-Identifier: GPL-3.0-or-later

package evcore

import "log/slog"

// attachChunkSize bounds how much an [Attach] pump pulls from src in a
// single read-hook notification before trying to drain it into dst.
const attachChunkSize = 4096

// attachment holds the pump state for one direction of a wired pair of
// streams: src's read-hook readiness drives reads into a small pending
// buffer, which is drained into dst, with backpressure applied to src's
// read hook whenever dst cannot accept the full pending buffer yet.
type attachment struct {
	src, dst *Stream
	pending  Buffer
	blocked  bool
}

// Attach wires src's read-ready edge to dst's write side: each time src
// becomes readable, bytes are pulled into a temporary buffer and written
// into dst. If dst cannot accept everything immediately, src's read hook
// is blocked until dst drains, so src never loses bytes to the void. When
// src's read hook shuts down, shutdown propagates to dst's write hook.
//
// The installed trap can be removed independently of any reverse
// attachment by calling src.ReadHook.Untrap().
func Attach(src, dst *Stream) error {
	at := &attachment{src: src, dst: dst}
	if err := src.ReadHook.Trap(at.onReady, at.onShutdown, nil, nil); err != nil {
		return err
	}
	src.logger.Info("streamAttachStart", slog.String("spanID", NewSpanID()))
	return nil
}

// AttachPair wires a and b in both directions: a's reads flow to b's
// writes, and b's reads flow to a's writes. Each half can later
// be torn down independently.
func AttachPair(a, b *Stream) error {
	if err := Attach(a, b); err != nil {
		return err
	}
	if err := Attach(b, a); err != nil {
		a.ReadHook.Untrap()
		return err
	}
	return nil
}

func (at *attachment) onReady(data any) bool {
	if at.pending.Size() == 0 {
		buf := make([]byte, attachChunkSize)
		n, err := at.src.ops.RawRead(buf)
		if err != nil {
			at.src.fail(err)
			return false
		}
		if n > 0 {
			at.pending.Append(buf[:n])
		}
	}

	drained, err := at.tryFlush()
	if err != nil {
		at.dst.fail(err)
		return false
	}
	if !drained && !at.blocked {
		at.blocked = true
		at.src.ReadHook.Block()
		at.armRetry()
	}
	return true
}

func (at *attachment) onShutdown(data any) bool {
	at.dst.WriteHook.Shutdown()
	return false
}

// tryFlush writes as much of the pending buffer into dst as dst will
// currently accept, returning drained=true once pending is fully written.
func (at *attachment) tryFlush() (drained bool, err error) {
	for at.pending.Size() > 0 {
		chunk := at.pending.Peek(attachChunkSize)
		n, werr := at.dst.ops.RawWrite(chunk)
		if werr != nil {
			return false, werr
		}
		if n == 0 {
			return false, nil
		}
		at.pending.Read(n)
	}
	return true, nil
}

// armRetry schedules idle retries of tryFlush until dst drains the
// pending buffer, then unblocks src's read hook. Used instead of trapping
// dst.WriteHook directly, since dst's write hook may already be trapped
// by an unrelated consumer (e.g. the other half of an [AttachPair]).
func (at *attachment) armRetry() {
	if at.src.loop == nil {
		return
	}
	at.src.loop.AddIdle(func(data any) bool {
		drained, err := at.tryFlush()
		if err != nil {
			at.dst.fail(err)
			at.blocked = false
			at.src.ReadHook.Unblock()
			return false
		}
		if drained {
			at.blocked = false
			at.src.ReadHook.Unblock()
			return false
		}
		return true
	}, nil, nil)
}
