package dlist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type node struct {
	e    Elem[node]
	name string
}

func link(n *node) *Elem[node] { return &n.e }

func TestPushBackOrder(t *testing.T) {
	l := New(link)
	a := &node{name: "a"}
	b := &node{name: "b"}
	c := &node{name: "c"}
	l.PushBack(a)
	l.PushBack(b)
	l.PushBack(c)

	var got []string
	for n := l.First(); n != nil; n = l.Next(n) {
		got = append(got, n.name)
	}
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestRemoveMiddleHeadTail(t *testing.T) {
	l := New(link)
	a := &node{name: "a"}
	b := &node{name: "b"}
	c := &node{name: "c"}
	l.PushBack(a)
	l.PushBack(b)
	l.PushBack(c)

	l.Remove(b)
	var got []string
	for n := l.First(); n != nil; n = l.Next(n) {
		got = append(got, n.name)
	}
	require.Equal(t, []string{"a", "c"}, got)

	l.Remove(a)
	require.Equal(t, c, l.First())

	l.Remove(c)
	require.True(t, l.Empty())
}

func TestIndependentLinks(t *testing.T) {
	// the same element can be a member of two independent lists as
	// long as each uses its own Elem.
	type dual struct {
		l1, l2 Elem[dual]
	}
	la := New(func(d *dual) *Elem[dual] { return &d.l1 })
	lb := New(func(d *dual) *Elem[dual] { return &d.l2 })

	d := &dual{}
	la.PushBack(d)
	lb.PushBack(d)

	require.Equal(t, d, la.First())
	require.Equal(t, d, lb.First())

	la.Remove(d)
	require.True(t, la.Empty())
	require.False(t, lb.Empty())
}
