package dheap

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

type item struct {
	elem Elem
	pri  int
}

func (i *item) Link() *Elem { return &i.elem }

func less(a, b *item) bool { return a.pri < b.pri }

func TestInsertFirstOrdering(t *testing.T) {
	h := New[item](less)
	items := []*item{{pri: 5}, {pri: 1}, {pri: 3}, {pri: 4}, {pri: 2}}
	for _, it := range items {
		h.Insert(it)
	}
	require.Equal(t, 5, h.Len())

	var got []int
	for !h.Empty() {
		head := h.First()
		got = append(got, head.pri)
		h.Remove(head)
	}
	require.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestRemoveArbitrary(t *testing.T) {
	h := New[item](less)
	a := &item{pri: 1}
	b := &item{pri: 2}
	c := &item{pri: 3}
	h.Insert(a)
	h.Insert(b)
	h.Insert(c)

	h.Remove(b)
	require.Equal(t, 2, h.Len())
	require.Equal(t, a, h.First())

	// removing something already out is a no-op
	h.Remove(b)
	require.Equal(t, 2, h.Len())
}

func TestExtractIf(t *testing.T) {
	h := New[item](less)
	h.Insert(&item{pri: 10})

	require.Nil(t, h.ExtractIf(func(head *item) bool { return head.pri < 5 }))
	require.Equal(t, 1, h.Len())

	got := h.ExtractIf(func(head *item) bool { return head.pri <= 10 })
	require.NotNil(t, got)
	require.Equal(t, 0, h.Len())
}

func TestRandomizedOrdering(t *testing.T) {
	h := New[item](less)
	const n = 500
	items := make([]*item, n)
	for i := range items {
		items[i] = &item{pri: rand.Intn(1000)}
		h.Insert(items[i])
	}

	last := -1
	for !h.Empty() {
		head := h.First()
		require.GreaterOrEqual(t, head.pri, last)
		last = head.pri
		h.Remove(head)
	}
}
