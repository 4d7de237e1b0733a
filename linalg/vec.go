// Package linalg is a handle based distributed linear algebra object model:
// vectors with a contiguous per-rank ownership range, block sparse, assembled
// (IS), AIJ and shell matrices, and null spaces. Objects are created on a
// communicator and every reduction is collective over it.
package linalg

import (
	"fmt"
	"math"

	"github.com/notargets/DGBridge/comm"
	"gonum.org/v1/gonum/floats"
)

// Decide lets a constructor compute a global size from the local sizes
const Decide = -1

// Vec is a vector distributed in contiguous, rank ordered pieces
type Vec struct {
	comm      comm.Communicator
	n, N      int
	rstart    int
	data      []float64
	checkout  bool
	destroyed bool
}

// NewVecSeq creates a zero vector of n entries on a single rank
func NewVecSeq(n int) *Vec {
	if n < 0 {
		panic(fmt.Sprintf("negative vector size %d", n))
	}
	return &Vec{comm: comm.Self(), n: n, N: n, data: make([]float64, n)}
}

// NewVecMPI creates a zero vector with n local entries. N is the global size, or
// Decide. A global size different from the sum of the local sizes panics. Collective.
func NewVecMPI(c comm.Communicator, n, N int) *Vec {
	if n < 0 {
		panic(fmt.Sprintf("negative local vector size %d", n))
	}
	rstart, total := comm.ExclusiveScan(c, n)
	if N != Decide && N != total {
		panic(fmt.Sprintf("global size %d != sum of local sizes %d", N, total))
	}
	return &Vec{comm: c, n: n, N: total, rstart: rstart, data: make([]float64, n)}
}

func (v *Vec) Comm() comm.Communicator { return v.comm }
func (v *Vec) LocalSize() int          { return v.n }
func (v *Vec) Size() int               { return v.N }

// OwnershipRange returns the global indices [lo, hi) stored on this rank
func (v *Vec) OwnershipRange() (lo, hi int) { return v.rstart, v.rstart + v.n }

// GetArray checks out the local values for writing; RestoreArray must follow
func (v *Vec) GetArray() []float64 {
	v.alive()
	if v.checkout {
		panic("vector array already checked out")
	}
	v.checkout = true
	return v.data
}

func (v *Vec) RestoreArray(a []float64) {
	if !v.checkout || (len(a) > 0 && &a[0] != &v.data[0]) {
		panic("restoring an array that was not checked out from this vector")
	}
	v.checkout = false
}

// GetArrayRead checks out the local values for reading
func (v *Vec) GetArrayRead() []float64 { return v.GetArray() }

func (v *Vec) RestoreArrayRead(a []float64) { v.RestoreArray(a) }

// Set assigns a to every entry
func (v *Vec) Set(a float64) {
	v.alive()
	for i := range v.data {
		v.data[i] = a
	}
}

// Copy writes the values of v into w, which must have the same layout
func (v *Vec) Copy(w *Vec) {
	v.sameLayout(w)
	copy(w.data, v.data)
}

// Duplicate creates a zero vector with the layout of v
func (v *Vec) Duplicate() *Vec {
	v.alive()
	return &Vec{comm: v.comm, n: v.n, N: v.N, rstart: v.rstart, data: make([]float64, v.n)}
}

// Scale computes v = a v
func (v *Vec) Scale(a float64) {
	v.alive()
	floats.Scale(a, v.data)
}

// AXPY computes v = v + a x
func (v *Vec) AXPY(a float64, x *Vec) {
	v.sameLayout(x)
	floats.AddScaled(v.data, a, x.data)
}

// MAXPY computes v = v + sum_i alphas[i] xs[i]
func (v *Vec) MAXPY(alphas []float64, xs []*Vec) {
	if len(alphas) < len(xs) {
		panic(fmt.Sprintf("%d coefficients for %d vectors", len(alphas), len(xs)))
	}
	for i, x := range xs {
		v.AXPY(alphas[i], x)
	}
}

// Dot returns v·w. Collective.
func (v *Vec) Dot(w *Vec) float64 {
	v.sameLayout(w)
	return comm.AllReduceFloat(v.comm, floats.Dot(v.data, w.data))
}

// MDot computes dots[i] = v·xs[i] with a single reduction. Collective.
func (v *Vec) MDot(xs []*Vec, dots []float64) {
	if len(dots) < len(xs) {
		panic(fmt.Sprintf("%d result slots for %d vectors", len(dots), len(xs)))
	}
	local := make([]float64, len(xs))
	for i, x := range xs {
		v.sameLayout(x)
		local[i] = floats.Dot(v.data, x.data)
	}
	comm.AllReduceFloats(v.comm, local)
	copy(dots, local)
}

// Sum returns the sum of all entries. Collective.
func (v *Vec) Sum() float64 {
	v.alive()
	return comm.AllReduceFloat(v.comm, floats.Sum(v.data))
}

// Norm returns the 2-norm. Collective.
func (v *Vec) Norm() float64 {
	v.alive()
	return math.Sqrt(comm.AllReduceFloat(v.comm, floats.Dot(v.data, v.data)))
}

// Normalize scales v to unit 2-norm and returns the previous norm. Collective.
func (v *Vec) Normalize() (float64, error) {
	nrm := v.Norm()
	if nrm == 0 {
		return 0, ErrZeroNorm
	}
	v.Scale(1 / nrm)
	return nrm, nil
}

// Destroy releases the storage; any further use panics
func (v *Vec) Destroy() {
	if v == nil {
		return
	}
	v.data = nil
	v.destroyed = true
}

func (v *Vec) alive() {
	if v.destroyed {
		panic(ErrDestroyed)
	}
}

func (v *Vec) sameLayout(w *Vec) {
	v.alive()
	w.alive()
	if v.n != w.n || v.N != w.N {
		panic(fmt.Sprintf("vector layouts differ: %d/%d vs %d/%d", v.n, v.N, w.n, w.N))
	}
}

// newVecOn creates a vector on c, sequential when c spans one rank
func newVecOn(c comm.Communicator, n, N int) *Vec {
	if comm.IsSelf(c) {
		return NewVecSeq(n)
	}
	return NewVecMPI(c, n, N)
}

// wrapSeq views data as a sequential vector
func wrapSeq(data []float64) *Vec {
	return &Vec{comm: comm.Self(), n: len(data), N: len(data), data: data}
}
