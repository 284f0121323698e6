// SPDX-License-Identifier: GPL-3.0-or-later

package evcore

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixTreeInsertAndLookupExact(t *testing.T) {
	tr := NewPrefixTree[string]()

	_, had := tr.Insert([]byte("team"), "a")
	assert.False(t, had)
	_, had = tr.Insert([]byte("test"), "b")
	assert.False(t, had)
	_, had = tr.Insert([]byte("toast"), "c")
	assert.False(t, had)

	v, ok := tr.LookupExact([]byte("team"))
	require.True(t, ok)
	assert.Equal(t, "a", v)

	v, ok = tr.LookupExact([]byte("test"))
	require.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok = tr.LookupExact([]byte("te"))
	assert.False(t, ok, "an internal split node with no stored value must not match")
}

func TestPrefixTreeInsertOverwritesAndReturnsOld(t *testing.T) {
	tr := NewPrefixTree[int]()
	tr.Insert([]byte("x"), 1)
	old, had := tr.Insert([]byte("x"), 2)
	assert.True(t, had)
	assert.Equal(t, 1, old)

	v, ok := tr.LookupExact([]byte("x"))
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestPrefixTreeLookupLongestMatchingPrefix(t *testing.T) {
	tr := NewPrefixTree[string]()
	tr.Insert([]byte("/static"), "static-root")
	tr.Insert([]byte("/static/css"), "css-root")

	v, ok := tr.Lookup([]byte("/static/css/site.css"))
	require.True(t, ok)
	assert.Equal(t, "css-root", v, "deepest value along the path must win")

	v, ok = tr.Lookup([]byte("/static/js/app.js"))
	require.True(t, ok)
	assert.Equal(t, "static-root", v)

	_, ok = tr.Lookup([]byte("/other"))
	assert.False(t, ok)
}

// TestPrefixTreeLookupAllOrder pins down the walk-order Open Question
// decision: LookupAll returns values outermost (shortest prefix) first.
func TestPrefixTreeLookupAllOrder(t *testing.T) {
	tr := NewPrefixTree[string]()
	tr.Insert([]byte("/a"), "short")
	tr.Insert([]byte("/a/b"), "medium")
	tr.Insert([]byte("/a/b/c"), "long")

	got := tr.LookupAll([]byte("/a/b/c/d"))
	assert.Equal(t, []string{"short", "medium", "long"}, got)
}

func TestPrefixTreeSplitOnDivergence(t *testing.T) {
	tr := NewPrefixTree[string]()
	tr.Insert([]byte("hello"), "1")
	tr.Insert([]byte("help"), "2")

	v, ok := tr.LookupExact([]byte("hello"))
	require.True(t, ok)
	assert.Equal(t, "1", v)

	v, ok = tr.LookupExact([]byte("help"))
	require.True(t, ok)
	assert.Equal(t, "2", v)

	_, ok = tr.LookupExact([]byte("hel"))
	assert.False(t, ok)
}

func TestPrefixTreeForEachVisitsAllEntries(t *testing.T) {
	tr := NewPrefixTree[int]()
	entries := map[string]int{"a": 1, "ab": 2, "abc": 3, "b": 4}
	for k, v := range entries {
		tr.Insert([]byte(k), v)
	}

	var seen []string
	tr.ForEach(func(key []byte, value int) {
		assert.Equal(t, entries[string(key)], value)
		seen = append(seen, string(key))
	})
	sort.Strings(seen)

	var want []string
	for k := range entries {
		want = append(want, k)
	}
	sort.Strings(want)
	assert.Equal(t, want, seen)
}

func TestPrefixTreeEmptyKeyStoresAtRoot(t *testing.T) {
	tr := NewPrefixTree[string]()
	tr.Insert([]byte(""), "root-default")

	v, ok := tr.Lookup([]byte("anything"))
	require.True(t, ok)
	assert.Equal(t, "root-default", v)
}
