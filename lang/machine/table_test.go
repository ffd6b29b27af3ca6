package machine

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableSetGetDelete(t *testing.T) {
	h := NewHeap(DefaultConfig(), io.Discard)
	var tbl Table

	k := h.NewString("key")
	_, ok := tbl.Get(k)
	assert.False(t, ok)

	assert.True(t, tbl.Set(k, Number(1)))
	assert.False(t, tbl.Set(k, Number(2)), "second set of same key is an update")
	v, ok := tbl.Get(k)
	require.True(t, ok)
	assert.Equal(t, Number(2), v)

	assert.True(t, tbl.Delete(k))
	assert.False(t, tbl.Delete(k))
	_, ok = tbl.Get(k)
	assert.False(t, ok)
}

func TestTableGrowth(t *testing.T) {
	h := NewHeap(DefaultConfig(), io.Discard)
	var tbl Table

	keys := make([]*Str, 100)
	for i := range keys {
		keys[i] = h.NewString(fmt.Sprintf("k%d", i))
		tbl.Set(keys[i], Number(i))
	}
	for i, k := range keys {
		v, ok := tbl.Get(k)
		require.True(t, ok, "key k%d", i)
		assert.Equal(t, Number(i), v)
	}
}

func TestTableTombstoneReuse(t *testing.T) {
	h := NewHeap(DefaultConfig(), io.Discard)
	var tbl Table

	k1 := h.NewString("one")
	k2 := h.NewString("two")
	tbl.Set(k1, Number(1))
	tbl.Set(k2, Number(2))

	tbl.Delete(k1)
	count := tbl.count
	assert.True(t, tbl.Set(k1, Number(11)), "reinsertion after delete is a new key")
	assert.Equal(t, count, tbl.count, "reinsertion reuses the tombstone slot")

	// the other key still probes correctly past the reused slot
	v, ok := tbl.Get(k2)
	require.True(t, ok)
	assert.Equal(t, Number(2), v)
}

func TestTableProbesPastTombstone(t *testing.T) {
	h := NewHeap(DefaultConfig(), io.Discard)
	var tbl Table

	// these six keys all hash to slot 5 of the 8-slot initial table, so they
	// fill one probe run and every later key probes past the deleted ones
	ids := []int{0, 8, 15, 20, 28, 33}
	keys := make([]*Str, len(ids))
	for i := range keys {
		keys[i] = h.NewString(fmt.Sprintf("p%d", ids[i]))
		tbl.Set(keys[i], Number(i))
	}
	tbl.Delete(keys[0])
	tbl.Delete(keys[3])
	for i, k := range keys {
		v, ok := tbl.Get(k)
		if i == 0 || i == 3 {
			assert.False(t, ok)
			continue
		}
		require.True(t, ok, "key p%d", ids[i])
		assert.Equal(t, Number(i), v)
	}
}

func TestTableAddAll(t *testing.T) {
	h := NewHeap(DefaultConfig(), io.Discard)
	var src, dst Table

	ka := h.NewString("a")
	kb := h.NewString("b")
	src.Set(ka, Number(1))
	src.Set(kb, Number(2))
	dst.Set(kb, Number(20))

	// AddAll overwrites, which is why INHERIT copies before the subclass
	// defines its own methods: later definitions win
	dst.AddAll(&src)
	v, _ := dst.Get(ka)
	assert.Equal(t, Number(1), v)
	v, _ = dst.Get(kb)
	assert.Equal(t, Number(2), v)
}

func TestTableFindString(t *testing.T) {
	h := NewHeap(DefaultConfig(), io.Discard)
	var tbl Table

	k := h.NewString("needle")
	tbl.Set(k, Nil)

	got := tbl.FindString("needle", hashString("needle"))
	assert.Same(t, k, got, "FindString matches content, returns the canonical key")
	assert.Nil(t, tbl.FindString("missing", hashString("missing")))
}
