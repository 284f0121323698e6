// SPDX-License-Identifier: GPL-3.0-or-later

package evcore

import "time"

// DefaultMaxBufferSize is the default bound on a codec stream's
// ([Deflator], [Inflator]) internal output buffer.
const DefaultMaxBufferSize = 4096

// Config holds common configuration for the hooks, streams, and codec
// streams constructed by this package.
//
// Pass this to constructor functions to pre-wire dependencies. All fields
// have sensible defaults set by [NewConfig]. Constructors copy out the
// fields they need; they never retain the [*Config] pointer itself.
type Config struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// Logger receives structured lifecycle and I/O events.
	//
	// Set by [NewConfig] to [DefaultSLogger].
	Logger SLogger

	// MaxBufferSize bounds the internal buffer a codec stream will grow to
	// before applying backpressure; a plain [Stream] has no buffer of its
	// own and does not use it.
	//
	// Set by [NewConfig] to [DefaultMaxBufferSize].
	MaxBufferSize int

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		ErrClassifier: DefaultErrClassifier,
		Logger:        DefaultSLogger(),
		MaxBufferSize: DefaultMaxBufferSize,
		TimeNow:       time.Now,
	}
}
