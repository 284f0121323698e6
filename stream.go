// SPDX-License-Identifier: GPL-3.0-or-later

package evcore

import "log/slog"

// StreamOps is the raw I/O routine set a [Stream] delegates to — the
// "source and sink raw-I/O routine set" of the distilled spec. Concrete
// implementations include a raw socket/pipe adapter, a codec context (the
// zlib [Deflator]/[Inflator] implement this on themselves), or an
// in-memory byte source for tests.
type StreamOps interface {
	// RawRead copies up to len(p) bytes into p, returning the number of
	// bytes produced. A return of (0, nil) means "nothing ready right
	// now, keep the read hook trapped"; EAGAIN-equivalent partial
	// results are not errors.
	RawRead(p []byte) (int, error)

	// RawReadBuffer behaves like RawRead but appends directly to buf,
	// letting implementations that already hold queued bytes (like a
	// codec's internal buffer) avoid an intermediate copy.
	RawReadBuffer(buf *Buffer) (int, error)

	// RawWrite consumes a prefix of p, returning how many bytes were
	// accepted. A return less than len(p) (including 0) signals
	// backpressure: the caller must wait for the write hook to become
	// ready again before retrying the remainder.
	RawWrite(p []byte) (int, error)

	// ShutdownRead and ShutdownWrite perform the host-specific teardown
	// for each half of the stream; semantics match [HookHost.Shutdown].
	ShutdownRead() (bool, error)
	ShutdownWrite() (bool, error)
}

// Pollable is an optional interface a [StreamOps] may implement when it
// wraps a real OS readiness source (a socket, a pipe). [Stream.SetPoll]
// forwards to it; ops that don't implement it (in-memory sources, codec
// contexts) are simply never asked to poll anything external.
type Pollable interface {
	SetPoll(forRead bool, want bool)
}

// Stream is a host owning a [Hook] pair — ReadHook and WriteHook — layered
// on a [StreamOps]. ReadHook.Available() holds iff the stream can still
// produce bytes; WriteHook.Available() holds iff it can still accept them.
//
// A Stream implements [HookHost] for its own two hooks, so hook-level
// poll/shutdown plumbing is internal; callers interact with Read/Write/
// ShutdownRead/ShutdownWrite and with [Attach]/[AttachPair] for wiring two
// streams together.
type Stream struct {
	ReadHook  *Hook
	WriteHook *Hook

	ops        StreamOps
	loop       *MainLoop
	logger     SLogger
	classifier ErrClassifier

	sticky error
}

var _ HookHost = (*Stream)(nil)

// NewStream creates a Stream driven by ops on loop (loop may be nil for
// streams exercised directly in tests without idle-notify semantics).
func NewStream(loop *MainLoop, logger SLogger, ops StreamOps) *Stream {
	if logger == nil {
		logger = DefaultSLogger()
	}
	s := &Stream{ops: ops, loop: loop, logger: logger, classifier: DefaultErrClassifier}
	s.ReadHook = NewHook(loop, s)
	s.WriteHook = NewHook(loop, s)
	s.ReadHook.SetLogger(logger)
	s.WriteHook.SetLogger(logger)
	return s
}

// SetClassifier replaces the error classifier used to label the stream's
// sticky failure and its hooks' shutdown errors for structured logging. A
// nil classifier is rejected (left unchanged).
func (s *Stream) SetClassifier(classifier ErrClassifier) {
	if classifier == nil {
		return
	}
	s.classifier = classifier
	s.ReadHook.SetClassifier(classifier)
	s.WriteHook.SetClassifier(classifier)
}

// SetPoll implements [HookHost], forwarding to ops if it implements
// [Pollable].
func (s *Stream) SetPoll(h *Hook, want bool) {
	if p, ok := s.ops.(Pollable); ok {
		p.SetPoll(h == s.ReadHook, want)
	}
}

// Shutdown implements [HookHost], dispatching to the matching half of ops.
func (s *Stream) Shutdown(h *Hook) (bool, error) {
	if h == s.ReadHook {
		return s.ops.ShutdownRead()
	}
	return s.ops.ShutdownWrite()
}

// Err returns the sticky error that terminated both halves of the stream,
// or nil if none has occurred.
func (s *Stream) Err() error { return s.sticky }

// Read copies up to len(p) bytes from the stream into p.
func (s *Stream) Read(p []byte) (int, error) {
	if s.sticky != nil {
		return 0, s.sticky
	}
	n, err := s.ops.RawRead(p)
	if err != nil {
		s.fail(err)
	}
	return n, err
}

// ReadBuffer appends available bytes directly into buf.
func (s *Stream) ReadBuffer(buf *Buffer) (int, error) {
	if s.sticky != nil {
		return 0, s.sticky
	}
	n, err := s.ops.RawReadBuffer(buf)
	if err != nil {
		s.fail(err)
	}
	return n, err
}

// Write consumes a prefix of p; see [StreamOps.RawWrite] for the
// backpressure contract.
func (s *Stream) Write(p []byte) (int, error) {
	if s.sticky != nil {
		return 0, s.sticky
	}
	n, err := s.ops.RawWrite(p)
	if err != nil {
		s.fail(err)
	}
	return n, err
}

// ShutdownRead shuts down the read half.
func (s *Stream) ShutdownRead() (bool, error) {
	return s.ReadHook.Shutdown()
}

// ShutdownWrite shuts down the write half. Per the distilled spec this
// flushes remaining internal state and, once drained, triggers read
// shutdown — codec streams implement that draining in ShutdownWrite
// itself before reporting completion.
func (s *Stream) ShutdownWrite() (bool, error) {
	return s.WriteHook.Shutdown()
}

// fail records a sticky error and shuts both hooks down, terminating both
// halves of the stream (§7: "any stream operation may fail with a
// structured error... a per-stream sticky error terminates both halves").
func (s *Stream) fail(err error) {
	if s.sticky != nil {
		return
	}
	s.sticky = err
	s.logger.Info("streamFail", slog.String("label", s.classifier.Classify(err)))
	s.ReadHook.Shutdown()
	s.WriteHook.Shutdown()
}
