package bridge

import (
	"errors"
	"fmt"
	"time"

	"github.com/notargets/DGBridge/fem"
	"github.com/notargets/DGBridge/linalg"
)

// NewNullSpace copies vecs through m and builds an external null space from
// them. Unless isOrthonormal, the copies are orthonormalized with modified
// Gram-Schmidt first. constKernel adds the constant vector to the basis.
// The source vectors are cumulated as a side effect. Collective.
func NewNullSpace(vecs []*fem.Vector, m *VecMap, isOrthonormal, constKernel bool, opts ...Option) (*linalg.NullSpace, error) {
	o := newOptions(opts)
	start := time.Now()
	ns, err := newNullSpace(vecs, m, isOrthonormal, constKernel)
	o.observer.OnNullSpace(len(vecs), time.Since(start), err)
	return ns, err
}

// relative norm below which an orthogonalized vector counts as dependent
const dependenceTol = 1.e-12

func newNullSpace(vecs []*fem.Vector, m *VecMap, isOrthonormal, constKernel bool) (*linalg.NullSpace, error) {
	ext := make([]*linalg.Vec, len(vecs))
	defer func() {
		for _, v := range ext {
			v.Destroy()
		}
	}()
	for k, v := range vecs {
		ext[k] = m.CreateExternalVector()
		if err := m.ToExternal(v, ext[k]); err != nil {
			return nil, fmt.Errorf("null space vector %d: %w", k, err)
		}
	}

	if !isOrthonormal && len(ext) > 0 {
		if err := normalize(ext[0], 0); err != nil {
			return nil, err
		}
		dots := make([]float64, len(ext))
		for i := 1; i < len(ext); i++ {
			before := ext[i].Norm()
			ext[i].MDot(ext[:i], dots[:i])
			for j := 0; j < i; j++ {
				dots[j] = -dots[j]
			}
			ext[i].MAXPY(dots[:i], ext[:i])
			// what is left of a dependent vector is rounding noise
			if ext[i].Norm() <= dependenceTol*before {
				return nil, fmt.Errorf("%w: vector %d", ErrDegenerateNullSpace, i)
			}
			if err := normalize(ext[i], i); err != nil {
				return nil, err
			}
		}
	}
	return linalg.NewNullSpace(m.Comm(), constKernel, ext), nil
}

func normalize(v *linalg.Vec, k int) error {
	if _, err := v.Normalize(); err != nil {
		if errors.Is(err, linalg.ErrZeroNorm) {
			return fmt.Errorf("%w: vector %d", ErrDegenerateNullSpace, k)
		}
		return err
	}
	return nil
}
