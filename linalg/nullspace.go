package linalg

import (
	"fmt"

	"github.com/notargets/DGBridge/comm"
)

// NullSpace is an orthonormal basis, optionally completed by the constant
// vector, that a solver projects out of its iterates
type NullSpace struct {
	comm      comm.Communicator
	hasConst  bool
	vecs      []*Vec
	destroyed bool
}

// NewNullSpace copies vecs; the caller keeps ownership of its vectors. The
// vectors are expected orthonormal and orthogonal to the constant when hasConst.
func NewNullSpace(c comm.Communicator, hasConst bool, vecs []*Vec) *NullSpace {
	ns := &NullSpace{comm: c, hasConst: hasConst, vecs: make([]*Vec, len(vecs))}
	for i, v := range vecs {
		ns.vecs[i] = v.Duplicate()
		v.Copy(ns.vecs[i])
	}
	return ns
}

func (ns *NullSpace) Comm() comm.Communicator { return ns.comm }
func (ns *NullSpace) HasConstant() bool       { return ns.hasConst }
func (ns *NullSpace) Vecs() []*Vec            { return ns.vecs }

// Dim counts the basis vectors, the constant included
func (ns *NullSpace) Dim() int {
	if ns.hasConst {
		return len(ns.vecs) + 1
	}
	return len(ns.vecs)
}

// Remove projects the null space out of v. Collective.
func (ns *NullSpace) Remove(v *Vec) {
	ns.alive()
	if ns.hasConst && v.Size() > 0 {
		mean := v.Sum() / float64(v.Size())
		for i := range v.data {
			v.data[i] -= mean
		}
	}
	if len(ns.vecs) == 0 {
		return
	}
	dots := make([]float64, len(ns.vecs))
	v.MDot(ns.vecs, dots)
	for i := range dots {
		dots[i] = -dots[i]
	}
	v.MAXPY(dots, ns.vecs)
}

// Test reports whether A maps every basis vector to within tol of zero, and
// the largest residual norm found. Collective.
func (ns *NullSpace) Test(a Mat, tol float64) (bool, float64, error) {
	ns.alive()
	x, y := a.CreateVecs()
	defer x.Destroy()
	defer y.Destroy()
	var worst float64
	check := func() error {
		if err := a.Mult(x, y); err != nil {
			return fmt.Errorf("null space test: %w", err)
		}
		worst = max(worst, y.Norm())
		return nil
	}
	if ns.hasConst {
		x.Set(1)
		if x.Size() > 0 {
			x.Scale(1 / x.Norm())
		}
		if err := check(); err != nil {
			return false, 0, err
		}
	}
	for _, v := range ns.vecs {
		v.Copy(x)
		if err := check(); err != nil {
			return false, 0, err
		}
	}
	return worst <= tol, worst, nil
}

func (ns *NullSpace) Destroy() {
	if ns == nil || ns.destroyed {
		return
	}
	for _, v := range ns.vecs {
		v.Destroy()
	}
	ns.vecs = nil
	ns.destroyed = true
}

func (ns *NullSpace) alive() {
	if ns.destroyed {
		panic(ErrDestroyed)
	}
}
