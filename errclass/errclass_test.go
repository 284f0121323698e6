// SPDX-License-Identifier: GPL-3.0-or-later

package errclass

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	// nil error classifies as empty string
	assert.Equal(t, "", Classify(nil))

	// context deadline exceeded classifies as ETIMEDOUT
	assert.Equal(t, ETIMEDOUT, Classify(context.DeadlineExceeded))

	// unknown errors classify as EGENERIC
	assert.Equal(t, EGENERIC, Classify(errors.New("unknown error")))
}

func TestClassifyErrno(t *testing.T) {
	tests := []struct {
		name  string
		errno error
		want  string
	}{
		{"econnreset", errECONNRESET, ECONNRESET},
		{"econnrefused", errECONNREFUSED, ECONNREFUSED},
		{"etimedout", errETIMEDOUT, ETIMEDOUT},
		{"eaddrinuse", errEADDRINUSE, EADDRINUSE},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.errno))
		})
	}
}
