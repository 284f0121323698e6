// SPDX-License-Identifier: GPL-3.0-or-later

package evcore

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"log/slog"
)

// Deflator is a [Stream] that compresses everything written to it and makes
// the compressed bytes available for reading. It never blocks on Write:
// compression runs synchronously to a scratch buffer on every RawWrite, and
// backpressure is applied only via the internal output buffer's bound.
//
// When flushMillis is >= 0, each write arms (or re-arms) a one-shot timer
// that performs a sync-flush point once the loop has been otherwise idle
// for that long, so small, bursty writes still reach the peer without
// waiting for [Deflator.ShutdownWrite].
type Deflator struct {
	*Stream

	loop          *MainLoop
	zw            writeFlusher
	useGzip       bool
	maxBufferSize int
	flushMillis   int64
	flushTimer    Source

	scratch  bytes.Buffer
	internal Buffer
	finished bool
}

// writeFlusher unifies *zlib.Writer and *gzip.Writer behind the subset of
// methods Deflator needs.
type writeFlusher interface {
	Write(p []byte) (int, error)
	Flush() error
	Close() error
}

// NewDeflator creates a Deflator writing level-compressed data (gzip-framed
// iff useGzip) onto loop. level must be [LevelDefault] or in 0..9.
func NewDeflator(loop *MainLoop, cfg *Config, level int, useGzip bool, flushMillis int64) (*Deflator, error) {
	if err := validateLevel(level); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = NewConfig()
	}
	d := &Deflator{
		loop:          loop,
		useGzip:       useGzip,
		maxBufferSize: cfg.MaxBufferSize,
		flushMillis:   flushMillis,
	}
	d.Stream = NewStream(loop, cfg.Logger, d)
	d.Stream.SetClassifier(cfg.ErrClassifier)

	resolved := resolveLevel(level)
	var zw writeFlusher
	var err error
	if useGzip {
		zw, err = gzip.NewWriterLevel(&d.scratch, resolved)
	} else {
		zw, err = zlib.NewWriterLevel(&d.scratch, resolved)
	}
	if err != nil {
		return nil, NewCodecError(CodecVersionMismatch, "deflator.new", err)
	}
	d.zw = zw
	return d, nil
}

// RawWrite implements [StreamOps]: it feeds p through the codec, drains the
// scratch buffer into the internal output buffer, and arms the flush timer.
// A return of (0, nil) signals the internal buffer is already at its bound.
func (d *Deflator) RawWrite(p []byte) (int, error) {
	if d.finished {
		return 0, NewError(ErrInvalidArgument, "deflator.write", errAfterFinish)
	}
	if d.internal.Size() >= d.maxBufferSize {
		return 0, nil
	}
	n, err := d.zw.Write(p)
	if err != nil {
		return 0, NewCodecError(CodecUnknown, "deflator.write", err)
	}
	d.drainScratch()
	d.armFlushTimer()
	return n, nil
}

// RawRead implements [StreamOps], draining the internal compressed buffer.
func (d *Deflator) RawRead(p []byte) (int, error) {
	out := d.internal.Read(len(p))
	n := copy(p, out)
	d.checkReadDrained()
	return n, nil
}

// RawReadBuffer implements [StreamOps].
func (d *Deflator) RawReadBuffer(buf *Buffer) (int, error) {
	n := d.internal.Size()
	buf.DrainFrom(&d.internal)
	d.checkReadDrained()
	return n, nil
}

// ShutdownWrite implements [StreamOps]: it performs the codec's FINISH
// operation (emitting the final block and any trailer), drains whatever that
// produced, and marks the deflator finished.
func (d *Deflator) ShutdownWrite() (bool, error) {
	d.cancelFlushTimer()
	if !d.finished {
		if err := d.zw.Close(); err != nil {
			d.finished = true
			return true, NewCodecError(CodecUnknown, "deflator.finish", err)
		}
		d.drainScratch()
		d.finished = true
	}
	d.checkReadDrained()
	return true, nil
}

// ShutdownRead implements [StreamOps]; a reader giving up early has no
// effect on the write side of a Deflator.
func (d *Deflator) ShutdownRead() (bool, error) { return true, nil }

func (d *Deflator) drainScratch() {
	if d.scratch.Len() == 0 {
		return
	}
	d.internal.Append(d.scratch.Bytes())
	d.scratch.Reset()
	d.checkReadDrained()
}

// checkReadDrained keeps the read hook's idle-notify flag and the write
// hook's backpressure bookkeeping in sync with the internal buffer's
// occupancy, and triggers read shutdown once a finished deflator has
// emitted its last byte.
func (d *Deflator) checkReadDrained() {
	if d.internal.Size() == 0 {
		d.ReadHook.ClearIdleNotify()
		if d.finished {
			d.ReadHook.Shutdown()
		}
	} else {
		d.ReadHook.MarkIdleNotify()
	}
	if d.internal.Size() < d.maxBufferSize {
		d.WriteHook.MarkIdleNotify()
	} else {
		d.WriteHook.ClearIdleNotify()
	}
}

func (d *Deflator) armFlushTimer() {
	if d.flushMillis < 0 || d.loop == nil {
		return
	}
	if d.flushTimer != 0 {
		d.loop.AdjustTimer(d.flushTimer, d.flushMillis, 0)
		return
	}
	d.flushTimer = d.loop.AddTimer(func(data any) bool {
		d.flushTimer = 0
		d.doSyncFlush()
		return false
	}, nil, nil, d.flushMillis, 0)
}

func (d *Deflator) cancelFlushTimer() {
	if d.flushTimer == 0 || d.loop == nil {
		return
	}
	d.loop.Remove(d.flushTimer)
	d.flushTimer = 0
}

func (d *Deflator) doSyncFlush() {
	if d.finished {
		return
	}
	spanID := NewSpanID()
	d.logger.Debug("codecFlushStart", slog.String("spanID", spanID))
	if err := d.zw.Flush(); err != nil {
		d.logger.Debug("codecFlushDone", slog.String("spanID", spanID), slog.Any("err", err))
		d.fail(NewCodecError(CodecUnknown, "deflator.flush", err))
		return
	}
	d.drainScratch()
	d.logger.Debug("codecFlushDone", slog.String("spanID", spanID), slog.Any("err", nil))
}
