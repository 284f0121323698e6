// SPDX-License-Identifier: GPL-3.0-or-later

package evcore

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"io"
)

// Inflator is a [Stream] that decompresses everything written to it. Go's
// standard library offers no incremental, one-chunk-at-a-time decompressor
// that can be fed new bytes and asked "what's newly decoded so far", so
// Inflator instead replays the full compressed prefix accumulated so far
// through a fresh reader on every write and keeps only the decompressed
// suffix beyond what was already emitted. This is O(n^2) in the total
// compressed size, the accepted cost of staying entirely single-threaded
// and lock-free rather than shelling out to a goroutine-driven pipe.
//
// Gzip vs raw zlib framing is auto-detected from the gzip magic bytes,
// mirroring the C library's windowBits = 15|32 behavior.
type Inflator struct {
	*Stream

	maxBufferSize int
	compressed    []byte
	emitted       int
	internal      Buffer
	writeShutdown bool
}

// NewInflator creates an Inflator auto-detecting zlib vs gzip framing.
func NewInflator(loop *MainLoop, cfg *Config) *Inflator {
	if cfg == nil {
		cfg = NewConfig()
	}
	i := &Inflator{maxBufferSize: cfg.MaxBufferSize}
	i.Stream = NewStream(loop, cfg.Logger, i)
	i.Stream.SetClassifier(cfg.ErrClassifier)
	return i
}

// RawWrite implements [StreamOps]: it appends p to the accumulated
// compressed prefix and replays decompression. A return of (0, nil) signals
// the internal output buffer is already at its bound.
func (i *Inflator) RawWrite(p []byte) (int, error) {
	if i.writeShutdown {
		return 0, NewError(ErrInvalidArgument, "inflator.write", errAfterFinish)
	}
	if i.internal.Size() >= i.maxBufferSize {
		return 0, nil
	}
	i.compressed = append(i.compressed, p...)
	if err := i.replay(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// RawRead implements [StreamOps], draining the internal decompressed
// buffer.
func (i *Inflator) RawRead(p []byte) (int, error) {
	out := i.internal.Read(len(p))
	n := copy(p, out)
	i.checkReadDrained()
	return n, nil
}

// RawReadBuffer implements [StreamOps].
func (i *Inflator) RawReadBuffer(buf *Buffer) (int, error) {
	n := i.internal.Size()
	buf.DrainFrom(&i.internal)
	i.checkReadDrained()
	return n, nil
}

// ShutdownWrite implements [StreamOps]: the peer has no more compressed
// bytes to offer. One final replay tolerates a truncated trailing block (an
// incomplete final deflate block with no more bytes coming is simply
// whatever it decoded so far); anything genuinely malformed is reported.
func (i *Inflator) ShutdownWrite() (bool, error) {
	i.writeShutdown = true
	if err := i.replay(); err != nil {
		return true, err
	}
	i.checkReadDrained()
	return true, nil
}

// ShutdownRead implements [StreamOps].
func (i *Inflator) ShutdownRead() (bool, error) { return true, nil }

func (i *Inflator) replay() error {
	var r io.ReadCloser
	var err error
	if looksLikeGzip(i.compressed) {
		r, err = gzip.NewReader(bytes.NewReader(i.compressed))
	} else {
		r, err = zlib.NewReader(bytes.NewReader(i.compressed))
	}
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil // header not fully buffered yet
		}
		return NewCodecError(CodecBadFormat, "inflator.write", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return NewCodecError(CodecBadFormat, "inflator.write", err)
	}
	if len(out) > i.emitted {
		fresh := out[i.emitted:]
		i.internal.Append(fresh)
		i.emitted = len(out)
	}
	i.checkReadDrained()
	return nil
}

func (i *Inflator) checkReadDrained() {
	if i.internal.Size() == 0 {
		i.ReadHook.ClearIdleNotify()
		if i.writeShutdown {
			i.ReadHook.Shutdown()
		}
	} else {
		i.ReadHook.MarkIdleNotify()
	}
	if i.internal.Size() < i.maxBufferSize {
		i.WriteHook.MarkIdleNotify()
	} else {
		i.WriteHook.ClearIdleNotify()
	}
}
