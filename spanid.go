package evcore

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSpanID returns a UUIDv7 representing a span.
//
// A span is a sequence of operations that can fail in a single, specific
// way. For example, a hook's trap-to-shutdown lifetime, or a single
// codec stream flush cycle.
//
// We recommend using a span ID for uniquely identifying spans.
//
// The span terminology is borrowed from OTel.
//
// This function panics if the system random number generator fails,
// which should only happen under extraordinary circumstances.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
