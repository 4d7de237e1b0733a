package linalg

import (
	"fmt"

	"github.com/notargets/DGBridge/comm"
)

// LocalToGlobalMapping numbers the local blocks of a rank in the global space
type LocalToGlobalMapping struct {
	comm    comm.Communicator
	bs      int
	indices []int
}

// NewLocalToGlobalMapping copies the block indices
func NewLocalToGlobalMapping(c comm.Communicator, bs int, indices []int) *LocalToGlobalMapping {
	if bs < 1 {
		panic(fmt.Sprintf("block size %d", bs))
	}
	return &LocalToGlobalMapping{comm: c, bs: bs, indices: append([]int(nil), indices...)}
}

func (l *LocalToGlobalMapping) Comm() comm.Communicator { return l.comm }
func (l *LocalToGlobalMapping) BlockSize() int          { return l.bs }
func (l *LocalToGlobalMapping) Size() int               { return len(l.indices) }
func (l *LocalToGlobalMapping) Indices() []int          { return l.indices }

// Apply maps local block indices to global block indices
func (l *LocalToGlobalMapping) Apply(local []int) []int {
	out := make([]int, len(local))
	for k, i := range local {
		out[k] = l.indices[i]
	}
	return out
}

// scalar maps a local scalar index to its global scalar index
func (l *LocalToGlobalMapping) scalar(i int) int {
	return l.indices[i/l.bs]*l.bs + i%l.bs
}

// IS is a parallel matrix stored as unassembled per-rank local matrices,
// A = sum_p R_p^T A_p C_p, with the row and column mappings giving R_p and C_p
type IS struct {
	matBase
	rstart, cstart int
	rmap, cmap     *LocalToGlobalMapping
	local          Mat
}

// NewIS creates the matrix with m x n owned scalar rows and columns out of M x N.
// Either global size may be Decide. Collective; inconsistent sizes panic.
func NewIS(c comm.Communicator, bs, m, n, M, N int, rmap, cmap *LocalToGlobalMapping) *IS {
	if rmap == nil {
		panic("IS matrix without a row mapping")
	}
	if cmap == nil {
		cmap = rmap
	}
	if rmap.bs != bs || cmap.bs != bs {
		panic(fmt.Sprintf("mapping block sizes %d/%d differ from %d", rmap.bs, cmap.bs, bs))
	}
	a := &IS{matBase: newMatBase(c, bs, m, n, M, N), rmap: rmap, cmap: cmap}
	a.rstart, _ = comm.ExclusiveScan(c, m)
	a.cstart, _ = comm.ExclusiveScan(c, n)
	return a
}

func (a *IS) Type() MatType { return MatTypeIS }

func (a *IS) LocalToGlobalMappings() (rmap, cmap *LocalToGlobalMapping) { return a.rmap, a.cmap }

// OwnershipRange returns the scalar rows [lo, hi) owned by this rank
func (a *IS) OwnershipRange() (lo, hi int) { return a.rstart, a.rstart + a.m }

// SetLocalMat attaches this rank's local matrix. Its sizes must match the mappings.
func (a *IS) SetLocalMat(local Mat) {
	a.alive()
	if local == nil {
		panic("nil local matrix")
	}
	lm, ln := local.Size()
	if lm != a.rmap.Size()*a.bs || ln != a.cmap.Size()*a.bs {
		panic(fmt.Sprintf("local matrix %d x %d does not fit mappings %d x %d (bs %d)",
			lm, ln, a.rmap.Size(), a.cmap.Size(), a.bs))
	}
	a.local = local
	a.assembled = false
}

func (a *IS) LocalMat() Mat { return a.local }

func (a *IS) AssemblyEnd() {
	if a.local == nil || !a.local.Assembled() {
		panic("IS assembly needs an assembled local matrix")
	}
	a.matBase.AssemblyEnd()
}

// Mult gathers x, applies the local matrix on the local columns and sums the
// local results into the owned rows. Collective.
func (a *IS) Mult(x, y *Vec) error {
	if err := a.checkMult(x, y); err != nil {
		return err
	}
	xg := comm.AllGatherFloats(a.comm, x.data)
	lm, ln := a.local.Size()
	xl := NewVecSeq(ln)
	for i := range xl.data {
		xl.data[i] = xg[a.cmap.scalar(i)]
	}
	yl := NewVecSeq(lm)
	// every rank joins the reduction even when its local product failed
	err := a.local.Mult(xl, yl)
	yg := make([]float64, a.M)
	if err == nil {
		for i, v := range yl.data {
			yg[a.rmap.scalar(i)] += v
		}
	}
	comm.AllReduceFloats(a.comm, yg)
	if err != nil {
		return fmt.Errorf("local mult: %w", err)
	}
	copy(y.data, yg[a.rstart:a.rstart+a.m])
	return nil
}

// walk visits every local entry in global scalar numbering
func (a *IS) walk(fn func(i, j int, v float64)) {
	w, ok := a.local.(walker)
	if !ok {
		panic(fmt.Sprintf("local matrix of type %s cannot be traversed", a.local.Type()))
	}
	w.walk(func(i, j int, v float64) {
		fn(a.rmap.scalar(i), a.cmap.scalar(j), v)
	})
}

func (a *IS) Destroy() {
	a.matBase.Destroy()
	if a.local != nil {
		a.local.Destroy()
		a.local = nil
	}
}

// walker is implemented by matrices whose stored entries can be enumerated
type walker interface {
	walk(fn func(i, j int, v float64))
}
