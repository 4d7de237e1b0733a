package comm

import (
	"fmt"
	"sort"
)

// Op is a reduction operator
type Op uint8

const (
	Sum Op = iota
	Max
	Min
)

func (op Op) apply(a, b int) int {
	switch op {
	case Max:
		if b > a {
			return b
		}
		return a
	case Min:
		if b < a {
			return b
		}
		return a
	default:
		return a + b
	}
}

// AllReduceInt combines v over all ranks
func AllReduceInt(c Communicator, v int, op Op) int {
	all := c.AllGather(v)
	acc := all[0].(int)
	for _, x := range all[1:] {
		acc = op.apply(acc, x.(int))
	}
	return acc
}

// AllReduceFloat sums v over all ranks
func AllReduceFloat(c Communicator, v float64) float64 {
	var s float64
	for _, x := range c.AllGather(v) {
		s += x.(float64)
	}
	return s
}

// AllReduceFloats sums xs element-wise over all ranks, in place
func AllReduceFloats(c Communicator, xs []float64) {
	if IsSelf(c) {
		return
	}
	contrib := append([]float64(nil), xs...)
	all := c.AllGather(contrib)
	for i := range xs {
		xs[i] = 0
	}
	for r, x := range all {
		ys := x.([]float64)
		if len(ys) != len(xs) {
			panic(fmt.Sprintf("rank %d contributed %d values, expected %d", r, len(ys), len(xs)))
		}
		for i, y := range ys {
			xs[i] += y
		}
	}
}

// AllGatherInts returns every rank's v indexed by rank
func AllGatherInts(c Communicator, v int) []int {
	all := c.AllGather(v)
	out := make([]int, len(all))
	for r, x := range all {
		out[r] = x.(int)
	}
	return out
}

// AllGatherFloats concatenates every rank's slice in rank order
func AllGatherFloats(c Communicator, xs []float64) []float64 {
	if IsSelf(c) {
		return append([]float64(nil), xs...)
	}
	all := c.AllGather(append([]float64(nil), xs...))
	n := 0
	for _, x := range all {
		n += len(x.([]float64))
	}
	out := make([]float64, 0, n)
	for _, x := range all {
		out = append(out, x.([]float64)...)
	}
	return out
}

// ExclusiveScan returns the sum of v over the ranks below the caller, and the total
func ExclusiveScan(c Communicator, v int) (offset, total int) {
	for r, x := range AllGatherInts(c, v) {
		if r < c.Rank() {
			offset += x
		}
		total += x
	}
	return
}

// ExchangeFloats sends send[q] to rank q and returns what each rank sent to the caller.
// Every rank must call it, possibly with an empty map.
func ExchangeFloats(c Communicator, send map[int][]float64) map[int][]float64 {
	recv := make(map[int][]float64)
	for src, x := range c.AllGather(send) {
		if src == c.Rank() {
			continue
		}
		if vals, ok := x.(map[int][]float64)[c.Rank()]; ok {
			recv[src] = append([]float64(nil), vals...)
		}
	}
	return recv
}

// ExchangeInts is ExchangeFloats for integer payloads
func ExchangeInts(c Communicator, send map[int][]int) map[int][]int {
	recv := make(map[int][]int)
	for src, x := range c.AllGather(send) {
		if src == c.Rank() {
			continue
		}
		if vals, ok := x.(map[int][]int)[c.Rank()]; ok {
			recv[src] = append([]int(nil), vals...)
		}
	}
	return recv
}

// Neighbors returns the keys of a plan in increasing rank order
func Neighbors[T any](plan map[int]T) []int {
	out := make([]int, 0, len(plan))
	for q := range plan {
		out = append(out, q)
	}
	sort.Ints(out)
	return out
}
