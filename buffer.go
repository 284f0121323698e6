// SPDX-License-Identifier: GPL-3.0-or-later

package evcore

// Buffer is a FIFO queue of bytes.
//
// It is implemented as a queue of chunks rather than one contiguous slice,
// so [Buffer.DrainFrom] can move another buffer's entire backlog in O(1) by
// splicing chunk lists instead of copying bytes. [Buffer.Append] and
// [Buffer.Read] are amortized O(1) per call and O(n) in the bytes they
// touch.
//
// The zero value is an empty, ready-to-use buffer. Not safe for concurrent
// use; buffers are always owned by a single [Stream] driven from the main
// loop goroutine.
type Buffer struct {
	chunks [][]byte
	// off is the read offset into chunks[0].
	off  int
	size int
}

// Size returns the number of bytes currently queued.
func (b *Buffer) Size() int {
	return b.size
}

// Append copies p onto the end of the buffer.
func (b *Buffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	b.chunks = append(b.chunks, cp)
	b.size += len(p)
}

// Read removes and returns up to n bytes from the front of the buffer.
//
// The returned slice may be shorter than n if fewer bytes are queued; it is
// empty (never nil) if the buffer is empty. The caller owns the returned
// slice.
func (b *Buffer) Read(n int) []byte {
	if n <= 0 || b.size == 0 {
		return []byte{}
	}
	if n > b.size {
		n = b.size
	}
	out := make([]byte, 0, n)
	for len(out) < n {
		chunk := b.chunks[0]
		avail := chunk[b.off:]
		need := n - len(out)
		if need >= len(avail) {
			out = append(out, avail...)
			b.chunks = b.chunks[1:]
			b.off = 0
		} else {
			out = append(out, avail[:need]...)
			b.off += need
		}
	}
	b.size -= len(out)
	b.compact()
	return out
}

// Peek returns up to n bytes from the front of the buffer without removing
// them. The returned slice is a fresh copy; mutating it does not affect the
// buffer.
func (b *Buffer) Peek(n int) []byte {
	if n <= 0 || b.size == 0 {
		return []byte{}
	}
	if n > b.size {
		n = b.size
	}
	out := make([]byte, 0, n)
	off := b.off
	for i := 0; len(out) < n; i++ {
		chunk := b.chunks[i]
		avail := chunk
		if i == 0 {
			avail = chunk[off:]
		}
		need := n - len(out)
		if need >= len(avail) {
			out = append(out, avail...)
		} else {
			out = append(out, avail[:need]...)
		}
	}
	return out
}

// DrainFrom moves all bytes from other into b, leaving other empty. This is
// O(1): it splices other's chunk list onto the end of b's.
func (b *Buffer) DrainFrom(other *Buffer) {
	if other.size == 0 {
		return
	}
	if b.size == 0 {
		b.chunks = other.chunks
		b.off = other.off
		b.size = other.size
	} else {
		// Keep other's unread prefix intact when splicing.
		rest := other.chunks
		if other.off > 0 {
			first := make([]byte, len(other.chunks[0])-other.off)
			copy(first, other.chunks[0][other.off:])
			rest = append([][]byte{first}, other.chunks[1:]...)
		}
		b.chunks = append(b.chunks, rest...)
		b.size += other.size
	}
	other.chunks = nil
	other.off = 0
	other.size = 0
}

// compact releases the chunk slice and resets the read offset once the
// buffer is empty; a buffer that still holds data is left unchanged.
func (b *Buffer) compact() {
	if b.size == 0 {
		b.chunks = nil
		b.off = 0
	}
}
