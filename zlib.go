// SPDX-License-Identifier: GPL-3.0-or-later

package evcore

import "errors"

var errLevelOutOfRange = errors.New("compression level must be -1 or in 0..9")
var errAfterFinish = errors.New("write after codec stream finished")

// LevelDefault requests the package's default compression level,
// [defaultDeflateLevel] (7).
const LevelDefault = -1

// defaultDeflateLevel is substituted for [LevelDefault]; the distilled
// spec calls out 7 explicitly rather than delegating to the codec
// library's own default.
const defaultDeflateLevel = 7

func validateLevel(level int) error {
	if level == LevelDefault {
		return nil
	}
	if level < 0 || level > 9 {
		return NewError(ErrInvalidArgument, "zlib.level", errLevelOutOfRange)
	}
	return nil
}

func resolveLevel(level int) int {
	if level == LevelDefault {
		return defaultDeflateLevel
	}
	return level
}

// gzipMagic is the two-byte gzip header (RFC 1952 §2.3.1), used to
// distinguish a gzip-wrapped stream from a raw zlib stream (RFC 1950)
// when the inflator is asked to auto-detect, mirroring the C library's
// windowBits = 15|32 behavior.
var gzipMagic = [2]byte{0x1f, 0x8b}

func looksLikeGzip(p []byte) bool {
	return len(p) >= 2 && p[0] == gzipMagic[0] && p[1] == gzipMagic[1]
}

// flusher is implemented by both *zlib.Writer and *gzip.Writer; Flush
// performs a sync-flush point without closing the stream, the Go stdlib
// equivalent of Z_SYNC_FLUSH.
type flusher interface {
	Flush() error
}
