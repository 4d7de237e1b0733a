package dofs

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// Subset marks a set of degrees of freedom in [0, Len()).
// A nil *Subset means every dof is included.
type Subset struct {
	n    int
	bits *roaring.Bitmap
}

// NewSubset returns an empty subset over n dofs
func NewSubset(n int) *Subset {
	if n < 0 {
		panic(fmt.Sprintf("negative subset length %d", n))
	}
	return &Subset{n: n, bits: roaring.New()}
}

// FullSubset returns a subset over n dofs with every dof set
func FullSubset(n int) *Subset {
	s := NewSubset(n)
	s.bits.AddRange(0, uint64(n))
	return s
}

// SubsetOf returns a subset over n dofs with the given dofs set
func SubsetOf(n int, idx ...int) *Subset {
	s := NewSubset(n)
	for _, i := range idx {
		s.Set(i)
	}
	return s
}

func (s *Subset) check(i int) {
	if i < 0 || i >= s.n {
		panic(fmt.Sprintf("dof %d out of range [0,%d)", i, s.n))
	}
}

func (s *Subset) Set(i int) {
	s.check(i)
	s.bits.Add(uint32(i))
}

func (s *Subset) Clear(i int) {
	s.check(i)
	s.bits.Remove(uint32(i))
}

// Test reports whether dof i is included. It is true for every i on a nil subset.
func (s *Subset) Test(i int) bool {
	if s == nil {
		return true
	}
	return s.bits.Contains(uint32(i))
}

// Len is the number of dofs the subset ranges over. A nil subset does not
// know its range and reports 0; callers holding the dof count use that instead.
func (s *Subset) Len() int {
	if s == nil {
		return 0
	}
	return s.n
}

// NumSet is the number of included dofs. It is 0 for a nil subset, which
// includes everything, so callers must substitute the dof count themselves.
func (s *Subset) NumSet() int {
	if s == nil {
		return 0
	}
	return int(s.bits.GetCardinality())
}

func (s *Subset) Clone() *Subset {
	if s == nil {
		return nil
	}
	return &Subset{n: s.n, bits: s.bits.Clone()}
}

// Indices returns the included dofs in increasing order
func (s *Subset) Indices() []int {
	if s == nil {
		return nil
	}
	out := make([]int, 0, s.bits.GetCardinality())
	it := s.bits.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

func (s *Subset) String() string {
	if s == nil {
		return "all"
	}
	return fmt.Sprintf("%d/%d", s.NumSet(), s.n)
}
