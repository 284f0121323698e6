// SPDX-License-Identifier: GPL-3.0-or-later

package evcore

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInflatorAutoDetectsGzip covers scenario S3: an Inflator with no
// explicit framing hint correctly distinguishes a gzip-wrapped stream from
// a raw zlib one via the leading magic bytes.
func TestInflatorAutoDetectsGzip(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte("gzip framed payload"))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	inf := NewInflator(nil, nil)
	_, err = inf.RawWrite(buf.Bytes())
	require.NoError(t, err)
	_, err = inf.ShutdownWrite()
	require.NoError(t, err)

	out := drainAll(t, inf)
	assert.Equal(t, []byte("gzip framed payload"), out)
}

func TestInflatorIncrementalWritesNoDuplication(t *testing.T) {
	d, err := NewDeflator(nil, nil, LevelDefault, false, -1)
	require.NoError(t, err)
	payload := bytes.Repeat([]byte("incremental-chunked-payload;"), 50)
	_, err = d.RawWrite(payload)
	require.NoError(t, err)
	_, err = d.ShutdownWrite()
	require.NoError(t, err)
	compressed := drainAll(t, d)
	require.NotEmpty(t, compressed)

	inf := NewInflator(nil, nil)
	for i := 0; i < len(compressed); i += 7 {
		end := i + 7
		if end > len(compressed) {
			end = len(compressed)
		}
		_, err := inf.RawWrite(compressed[i:end])
		require.NoError(t, err)
	}
	_, err = inf.ShutdownWrite()
	require.NoError(t, err)

	out := drainAll(t, inf)
	assert.Equal(t, payload, out)
}

func TestInflatorRejectsMalformedStream(t *testing.T) {
	inf := NewInflator(nil, nil)
	_, err := inf.RawWrite([]byte("not a valid zlib or gzip header"))
	assert.Error(t, err)
}

func TestInflatorBackpressureAtBufferBound(t *testing.T) {
	d, err := NewDeflator(nil, nil, LevelDefault, false, -1)
	require.NoError(t, err)
	payload := bytes.Repeat([]byte("a"), 8192)
	_, err = d.RawWrite(payload)
	require.NoError(t, err)
	_, err = d.ShutdownWrite()
	require.NoError(t, err)
	compressed := drainAll(t, d)

	cfg := NewConfig()
	cfg.MaxBufferSize = 1
	inf := NewInflator(nil, cfg)
	n, err := inf.RawWrite(compressed)
	require.NoError(t, err)
	assert.Greater(t, n, 0)

	n, err = inf.RawWrite([]byte("more"))
	require.NoError(t, err)
	assert.Equal(t, 0, n, "must apply backpressure once the decompressed buffer exceeds its bound")
}
