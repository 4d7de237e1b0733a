package dofs

// Excluded marks a dof dropped by Compact
const Excluded = -1

// Compaction maps an original dof to its dense new index, or Excluded
type Compaction []int

// Compact renumbers the dofs in [0,n) kept by s densely, preserving order.
// It returns the map and the number of retained dofs.
func Compact(n int, s *Subset) (Compaction, int) {
	c := make(Compaction, n)
	m := 0
	for k := range c {
		if s.Test(k) {
			c[k] = m
			m++
		} else {
			c[k] = Excluded
		}
	}
	return c, m
}

// Kept returns the original indices that survived, in new-index order
func (c Compaction) Kept() []int {
	out := make([]int, 0, len(c))
	for k, v := range c {
		if v != Excluded {
			out = append(out, k)
		}
	}
	return out
}

// Retained counts the dofs that were not excluded
func (c Compaction) Retained() (m int) {
	for _, v := range c {
		if v != Excluded {
			m++
		}
	}
	return
}
