package set

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBits(t *testing.T) {
	s := MakeBits(0)

	assert.True(t, s.Empty())
	assert.False(t, s.IsSet(3))

	s.Set(3)
	s.Set(70)
	s.Set(0)

	assert.True(t, s.IsSet(3))
	assert.True(t, s.IsSet(70))
	assert.False(t, s.IsSet(4))
	assert.Equal(t, 3, s.Size())
	assert.Equal(t, []int{0, 3, 70}, s.Slice())

	s.Clear(3)
	s.Clear(1000)

	assert.Equal(t, []int{0, 70}, s.Slice())
}

func TestBitsMerge(t *testing.T) {
	a := MakeBits[uint8](0)
	b := MakeBits[uint8](0)

	a.Set(1)
	b.Set(2)
	b.Set(31)

	a.Merge(b)

	assert.Equal(t, []uint8{1, 2, 31}, a.Slice())
	assert.Equal(t, []uint8{2, 31}, b.Slice())

	c := MakeBits(10)
	d := MakeBits(0)
	d.Set(1)

	assert.Panics(t, func() { c.Merge(d) })
}

func TestBitsRange(t *testing.T) {
	s := MakeBits(100)

	for _, k := range []int{100, 101, 164, 300} {
		s.Set(k)
	}

	var got []int

	s.Range(func(k int) bool {
		got = append(got, k)
		return len(got) < 3
	})

	assert.Equal(t, []int{100, 101, 164}, got)
	assert.Panics(t, func() { s.Set(99) })
}
