// SPDX-License-Identifier: GPL-3.0-or-later

package evcore

import "fmt"

// ErrorKind classifies the structured errors returned by this package.
type ErrorKind int

const (
	// ErrUnknown is the zero value; never returned deliberately.
	ErrUnknown ErrorKind = iota
	// ErrIO marks a read/write/shutdown failure on a raw I/O routine.
	ErrIO
	// ErrCodec marks a fatal zlib/gzip codec failure; see [CodecErrorKind].
	ErrCodec
	// ErrInvalidArgument marks a construction-time or registration-time
	// configuration failure.
	ErrInvalidArgument
	// ErrNotFound marks a failed lookup (no handler, no such file).
	ErrNotFound
	// ErrNoData marks a router fallthrough with no matching handler.
	ErrNoData
	// ErrInternal marks an unexpected internal condition.
	ErrInternal
	// ErrShutdown marks a host shutdown method that reported failure.
	ErrShutdown
)

func (k ErrorKind) String() string {
	switch k {
	case ErrIO:
		return "io_error"
	case ErrCodec:
		return "codec_error"
	case ErrInvalidArgument:
		return "invalid_argument"
	case ErrNotFound:
		return "not_found"
	case ErrNoData:
		return "no_data"
	case ErrInternal:
		return "internal"
	case ErrShutdown:
		return "shutdown_error"
	default:
		return "unknown"
	}
}

// CodecErrorKind refines [ErrCodec] with the canonical set of fatal codec
// return codes from RFC 1950/1952 codec implementations.
type CodecErrorKind int

const (
	CodecUnknown CodecErrorKind = iota
	CodecBadFormat
	CodecOutOfMemory
	CodecBufferFull
	CodecVersionMismatch
)

func (k CodecErrorKind) String() string {
	switch k {
	case CodecBadFormat:
		return "bad_format"
	case CodecOutOfMemory:
		return "out_of_memory"
	case CodecBufferFull:
		return "buffer_full"
	case CodecVersionMismatch:
		return "version_mismatch"
	default:
		return "unknown"
	}
}

// Error is the structured error type returned throughout this package.
//
// It carries an [ErrorKind], the operation that produced it, and the
// wrapped cause (if any), so callers can use [errors.Is]/[errors.As] to
// recover the original error while structured logging uses Kind/Codec for
// classification.
type Error struct {
	Kind  ErrorKind
	Codec CodecErrorKind
	Op    string
	Err   error
}

// NewError builds an [*Error] of the given kind for the named operation,
// wrapping err (which may be nil).
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NewCodecError builds an [*Error] of kind [ErrCodec] with the given
// [CodecErrorKind] detail.
func NewCodecError(codec CodecErrorKind, op string, err error) *Error {
	return &Error{Kind: ErrCodec, Codec: codec, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Kind == ErrCodec {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s (%s): %v", e.Op, e.Kind, e.Codec, e.Err)
		}
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Kind, e.Codec)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an [*Error] with the same Kind, so callers
// can write errors.Is(err, &evcore.Error{Kind: evcore.ErrNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}
