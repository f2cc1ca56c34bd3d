package set

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyOf(s string) string { return s }

func TestSet_AddHasRemove(t *testing.T) {
	s := New(keyOf)
	assert.True(t, s.Empty())

	s.Add("a")
	s.Add("b")
	assert.Equal(t, 2, s.Size())
	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("z"))

	s.Remove("a")
	assert.False(t, s.Has("a"))
	assert.Equal(t, 1, s.Size())
}

func TestSet_Of(t *testing.T) {
	s := Of(keyOf, "a", "b", "a")
	assert.Equal(t, 2, s.Size())
}

func TestSet_Get(t *testing.T) {
	type item struct {
		id   string
		data int
	}
	s := New(func(i item) string { return i.id })
	s.Add(item{id: "x", data: 1})
	s.Add(item{id: "x", data: 2})

	got, ok := s.Get(item{id: "x"})
	require.True(t, ok)
	assert.Equal(t, 2, got.data, "later Add with same key overwrites")
}

func TestSet_Equals(t *testing.T) {
	a := Of(keyOf, "a", "b")
	b := Of(keyOf, "b", "a")
	c := Of(keyOf, "a")

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
	assert.False(t, a.Equals(nil))
	assert.True(t, New(keyOf).Equals(nil))
}

func TestSet_Union(t *testing.T) {
	a := Of(keyOf, "a", "b")
	b := Of(keyOf, "b", "c")

	u := a.Union(b)
	assert.Equal(t, 3, u.Size())
	assert.True(t, u.Has("a"))
	assert.True(t, u.Has("c"))

	assert.Equal(t, 2, a.Size(), "Union must not mutate the receiver")
}

func TestSet_Intersect(t *testing.T) {
	a := Of(keyOf, "a", "b", "c")
	b := Of(keyOf, "b", "c", "d")

	i := a.Intersect(b)
	assert.Equal(t, 2, i.Size())
	assert.True(t, i.Has("b"))
	assert.True(t, i.Has("c"))
	assert.False(t, i.Has("a"))

	assert.True(t, a.Intersect(nil).Empty())
}

func TestSet_Minus(t *testing.T) {
	a := Of(keyOf, "a", "b", "c")
	b := Of(keyOf, "b")

	m := a.Minus(b)
	assert.Equal(t, 2, m.Size())
	assert.False(t, m.Has("b"))

	assert.True(t, a.Minus(nil).Equals(a))
}

func TestSet_Filter(t *testing.T) {
	s := Of(keyOf, "a", "bb", "ccc")
	long := s.Filter(func(v string) bool { return len(v) > 1 })
	assert.Equal(t, 2, long.Size())
	assert.False(t, long.Has("a"))
}

func TestSet_SomeEvery(t *testing.T) {
	s := Of(keyOf, "a", "b", "c")
	assert.True(t, s.Some(func(v string) bool { return v == "b" }))
	assert.False(t, s.Some(func(v string) bool { return v == "z" }))
	assert.True(t, s.Every(func(v string) bool { return len(v) == 1 }))

	empty := New(keyOf)
	assert.False(t, empty.Some(func(v string) bool { return true }))
	assert.True(t, empty.Every(func(v string) bool { return false }))
}

func TestMap(t *testing.T) {
	s := Of(keyOf, "a", "bb", "ccc")
	lengths := Map(s, func(n int) int { return n }, func(v string) int { return len(v) })
	assert.Equal(t, 3, lengths.Size())
	assert.True(t, lengths.HasKey(1))
	assert.True(t, lengths.HasKey(2))
	assert.True(t, lengths.HasKey(3))
}

func TestProduct(t *testing.T) {
	a := Of(keyOf, "a", "b")
	b := Of(keyOf, "1", "2")

	pairs := Product(a, b)
	assert.Len(t, pairs, 4)
}

func TestSet_TakePop(t *testing.T) {
	s := Of(keyOf, "a")
	v, err := s.Take()
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	assert.True(t, s.Empty())

	_, err = s.Pop()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestSet_Clone(t *testing.T) {
	a := Of(keyOf, "a", "b")
	b := a.Clone()

	b.Add("c")
	assert.Equal(t, 2, a.Size(), "Clone must be independent of the original")
	assert.Equal(t, 3, b.Size())
}
