// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/common/errclass/errclass.go
//

// Package errclass classifies network and system errors into short,
// platform-independent labels suitable for structured logging and metrics.
//
// The platform-specific error tables live in unix.go and windows.go; this
// file holds the dispatch logic shared by both.
package errclass

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"
)

// Classification labels returned by [Classify].
const (
	EADDRINUSE      = "EADDRINUSE"
	EADDRNOTAVAIL   = "EADDRNOTAVAIL"
	ECONNABORTED    = "ECONNABORTED"
	ECONNREFUSED    = "ECONNREFUSED"
	ECONNRESET      = "ECONNRESET"
	EGENERIC        = "EGENERIC"
	EHOSTUNREACH    = "EHOSTUNREACH"
	EINTR           = "EINTR"
	EINVAL          = "EINVAL"
	ENETDOWN        = "ENETDOWN"
	ENETUNREACH     = "ENETUNREACH"
	ENOBUFS         = "ENOBUFS"
	ENOTCONN        = "ENOTCONN"
	EPROTONOSUPPORT = "EPROTONOSUPPORT"
	ETIMEDOUT       = "ETIMEDOUT"
)

// Classify maps err to a short classification label.
//
// It returns the empty string for a nil error, one of the constants above
// for errors it recognizes, and [EGENERIC] for anything else. Callers
// should treat the return value as an opaque label suitable for log
// fields or metric tags, not as a substitute for [errors.Is]/[errors.As].
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return ETIMEDOUT
	}
	if errors.Is(err, net.ErrClosed) {
		return EGENERIC
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		if label, ok := classifyErrno(errno); ok {
			return label
		}
	}
	return EGENERIC
}

// classifyErrno maps a platform errno to a classification label.
func classifyErrno(errno syscall.Errno) (string, bool) {
	switch errno {
	case errEADDRINUSE:
		return EADDRINUSE, true
	case errEADDRNOTAVAIL:
		return EADDRNOTAVAIL, true
	case errECONNABORTED:
		return ECONNABORTED, true
	case errECONNREFUSED:
		return ECONNREFUSED, true
	case errECONNRESET:
		return ECONNRESET, true
	case errEHOSTUNREACH:
		return EHOSTUNREACH, true
	case errEINTR:
		return EINTR, true
	case errEINVAL:
		return EINVAL, true
	case errENETDOWN:
		return ENETDOWN, true
	case errENETUNREACH:
		return ENETUNREACH, true
	case errENOBUFS:
		return ENOBUFS, true
	case errENOTCONN:
		return ENOTCONN, true
	case errEPROTONOSUPPORT:
		return EPROTONOSUPPORT, true
	case errETIMEDOUT:
		return ETIMEDOUT, true
	default:
		return "", false
	}
}
