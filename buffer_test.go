// SPDX-License-Identifier: GPL-3.0-or-later

package evcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferAppendReadFIFO(t *testing.T) {
	var b Buffer

	b.Append([]byte("hello"))
	b.Append([]byte(" world"))
	require.Equal(t, 11, b.Size())

	assert.Equal(t, []byte("hello"), b.Read(5))
	assert.Equal(t, 6, b.Size())
	assert.Equal(t, []byte(" world"), b.Read(100))
	assert.Equal(t, 0, b.Size())
}

func TestBufferReadPartial(t *testing.T) {
	var b Buffer
	b.Append([]byte("abcdef"))

	assert.Equal(t, []byte("ab"), b.Read(2))
	assert.Equal(t, []byte("cd"), b.Read(2))
	assert.Equal(t, []byte("ef"), b.Read(2))
	assert.Equal(t, []byte{}, b.Read(2))
}

func TestBufferReadEmpty(t *testing.T) {
	var b Buffer
	assert.Equal(t, []byte{}, b.Read(10))
	assert.Equal(t, []byte{}, b.Read(0))
}

func TestBufferPeekNonDestructive(t *testing.T) {
	var b Buffer
	b.Append([]byte("hello"))

	assert.Equal(t, []byte("hel"), b.Peek(3))
	assert.Equal(t, []byte("hel"), b.Peek(3), "peek must not consume")
	assert.Equal(t, 5, b.Size())

	assert.Equal(t, []byte("hello"), b.Read(5))
}

func TestBufferPeekAcrossChunks(t *testing.T) {
	var b Buffer
	b.Append([]byte("ab"))
	b.Append([]byte("cd"))
	b.Append([]byte("ef"))

	assert.Equal(t, []byte("abcde"), b.Peek(5))
	assert.Equal(t, 6, b.Size())
}

func TestBufferDrainFromEmptiesSource(t *testing.T) {
	var src, dst Buffer
	src.Append([]byte("abc"))
	dst.Append([]byte("xyz"))

	dst.DrainFrom(&src)

	assert.Equal(t, 0, src.Size())
	assert.Equal(t, []byte{}, src.Read(10))
	assert.Equal(t, 6, dst.Size())
	assert.Equal(t, []byte("xyzabc"), dst.Read(6))
}

func TestBufferDrainFromIntoEmpty(t *testing.T) {
	var src, dst Buffer
	src.Append([]byte("abc"))

	dst.DrainFrom(&src)

	assert.Equal(t, 3, dst.Size())
	assert.Equal(t, []byte("abc"), dst.Read(3))
}

func TestBufferDrainFromPartiallyReadSource(t *testing.T) {
	var src, dst Buffer
	src.Append([]byte("abcdef"))
	src.Read(2) // consume "ab", leaving "cdef" across the chunk offset

	dst.DrainFrom(&src)

	assert.Equal(t, []byte("cdef"), dst.Read(4))
}

func TestBufferSizeInvariant(t *testing.T) {
	var b Buffer
	appended, consumed := 0, 0

	for i := range 20 {
		p := []byte{byte(i), byte(i + 1)}
		b.Append(p)
		appended += len(p)
		if i%3 == 0 {
			consumed += len(b.Read(1))
		}
	}
	assert.Equal(t, appended-consumed, b.Size())
}
