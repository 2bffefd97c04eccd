package set

import (
	"math/bits"

	"tlog.app/go/tlog/tlwire"
)

type (
	Key interface {
		~int | ~int64 | ~uint8
	}

	// Bits is a set of small keys starting at base.
	// The zero value is an empty set with base 0.
	Bits[K Key] struct {
		base  K
		words []uint64
	}
)

func MakeBits[K Key](base K) Bits[K] {
	return Bits[K]{base: base}
}

func (s *Bits[K]) Set(k K) {
	w, m := s.pos(k)

	for w >= len(s.words) {
		s.words = append(s.words, 0)
	}

	s.words[w] |= m
}

func (s Bits[K]) IsSet(k K) bool {
	w, m := s.pos(k)

	return w < len(s.words) && s.words[w]&m != 0
}

func (s *Bits[K]) Clear(k K) {
	w, m := s.pos(k)

	if w < len(s.words) {
		s.words[w] &^= m
	}
}

// Merge adds all members of x. Both sets must share the base.
func (s *Bits[K]) Merge(x Bits[K]) {
	if len(x.words) != 0 && s.base != x.base {
		panic("set: merge of sets with different bases")
	}

	for len(s.words) < len(x.words) {
		s.words = append(s.words, 0)
	}

	for i, w := range x.words {
		s.words[i] |= w
	}
}

func (s Bits[K]) Size() (n int) {
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}

	return n
}

func (s Bits[K]) Empty() bool {
	for _, w := range s.words {
		if w != 0 {
			return false
		}
	}

	return true
}

// Range calls f for members in increasing order until it returns false.
func (s Bits[K]) Range(f func(k K) bool) {
	for i, w := range s.words {
		for w != 0 {
			j := bits.TrailingZeros64(w)
			w &^= 1 << j

			if !f(s.base + K(i*64+j)) {
				return
			}
		}
	}
}

// Slice returns the members in increasing order.
func (s Bits[K]) Slice() (r []K) {
	s.Range(func(k K) bool {
		r = append(r, k)
		return true
	})

	return r
}

func (s Bits[K]) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	b = e.AppendTag(b, tlwire.Array, -1)

	s.Range(func(k K) bool {
		b = e.AppendInt(b, int(k))
		return true
	})

	return e.AppendBreak(b)
}

func (s Bits[K]) pos(k K) (int, uint64) {
	if k < s.base {
		panic("set: key below base")
	}

	p := int(k - s.base)

	return p / 64, 1 << (p % 64)
}
