package bridge

import (
	"fmt"

	"github.com/notargets/DGBridge/comm"
	"github.com/notargets/DGBridge/dofs"
	"github.com/notargets/DGBridge/fem"
	"github.com/notargets/DGBridge/linalg"
)

// VecMap copies vectors between the source layout (ndof entries of bs values,
// possibly shared between ranks) and the external layout (the owned, included
// values packed contiguously). A dof is copied when this rank is its master and
// subset includes it; the same predicate is used in both directions.
type VecMap struct {
	ndof, bs   int
	pardofs    *fem.ParallelDofs
	subset     *dofs.Subset
	nrowsLocal int
	nrowsGlob  int
	obs        Observer
}

// NewVecMap derives the local and global row counts. pd and subset may be nil.
// Collective when pd is not nil.
func NewVecMap(ndof, bs int, pd *fem.ParallelDofs, subset *dofs.Subset, opts ...Option) *VecMap {
	if bs < 1 {
		panic(fmt.Sprintf("block size must be positive, got %d", bs))
	}
	if pd != nil && pd.NDofLocal() != ndof {
		panic(fmt.Sprintf("vector map over %d dofs with parallel dofs of %d", ndof, pd.NDofLocal()))
	}
	o := newOptions(opts)
	m := &VecMap{ndof: ndof, bs: bs, pardofs: pd, subset: subset, obs: o.observer}
	if pd == nil && subset == nil {
		m.nrowsLocal = bs * ndof
	} else {
		for k := 0; k < ndof; k++ {
			if m.included(k) {
				m.nrowsLocal += bs
			}
		}
	}
	m.nrowsGlob = m.nrowsLocal
	if pd != nil {
		m.nrowsGlob = comm.AllReduceInt(pd.Comm(), m.nrowsLocal, comm.Sum)
	}
	o.logger.LogVecMap(m)
	return m
}

func (m *VecMap) NDof() int                       { return m.ndof }
func (m *VecMap) BlockSize() int                  { return m.bs }
func (m *VecMap) ParallelDofs() *fem.ParallelDofs { return m.pardofs }
func (m *VecMap) Subset() *dofs.Subset            { return m.subset }
func (m *VecMap) NRowsLocal() int                 { return m.nrowsLocal }
func (m *VecMap) NRowsGlobal() int                { return m.nrowsGlob }

// Comm is the communicator of the external vectors
func (m *VecMap) Comm() comm.Communicator {
	if m.pardofs == nil {
		return comm.Self()
	}
	return m.pardofs.Comm()
}

func (m *VecMap) included(k int) bool {
	return (m.pardofs == nil || m.pardofs.IsMasterDof(k)) && m.subset.Test(k)
}

// ToExternal cumulates src, then packs the values of the included dofs into dst
func (m *VecMap) ToExternal(src *fem.Vector, dst *linalg.Vec) error {
	if err := m.checkSizes(src, dst); err != nil {
		return err
	}
	src.Cumulate()
	fv := src.FV()
	pvs := dst.GetArray()
	cnt := 0
	for k := 0; k < m.ndof; k++ {
		if m.included(k) {
			cnt += copy(pvs[cnt:cnt+m.bs], fv[m.bs*k:m.bs*(k+1)])
		}
	}
	dst.RestoreArray(pvs)
	m.obs.OnVectorTransfer(ToExternal, cnt)
	return nil
}

// FromExternal unpacks src into the included dofs of dst, zeroes every other
// dof and marks dst distributed
func (m *VecMap) FromExternal(src *linalg.Vec, dst *fem.Vector) error {
	if err := m.checkSizes(dst, src); err != nil {
		return err
	}
	fv := dst.FV()
	pvs := src.GetArrayRead()
	cnt := 0
	for k := 0; k < m.ndof; k++ {
		slot := fv[m.bs*k : m.bs*(k+1)]
		if m.included(k) {
			cnt += copy(slot, pvs[cnt:cnt+m.bs])
			continue
		}
		for l := range slot {
			slot[l] = 0
		}
	}
	src.RestoreArrayRead(pvs)
	dst.SetStatus(fem.Distributed)
	m.obs.OnVectorTransfer(FromExternal, cnt)
	return nil
}

func (m *VecMap) checkSizes(v *fem.Vector, x *linalg.Vec) error {
	if len(v.FV()) != m.ndof*m.bs {
		return fmt.Errorf("source vector has %d values, map expects %d x %d", len(v.FV()), m.ndof, m.bs)
	}
	if x.LocalSize() != m.nrowsLocal {
		return fmt.Errorf("external vector has %d local values, map expects %d", x.LocalSize(), m.nrowsLocal)
	}
	return nil
}

// CreateExternalVector allocates a zero external vector with the map's layout
func (m *VecMap) CreateExternalVector() *linalg.Vec {
	if m.pardofs == nil {
		return linalg.NewVecSeq(m.nrowsLocal)
	}
	return linalg.NewVecMPI(m.pardofs.Comm(), m.nrowsLocal, m.nrowsGlob)
}

// CreateSourceVector allocates a zero source vector over the map's dofs
func (m *VecMap) CreateSourceVector() *fem.Vector {
	if m.pardofs != nil {
		return fem.NewParallelVector(m.pardofs, fem.Distributed)
	}
	return fem.NewVector(m.ndof, m.bs)
}

// sameSpace reports whether one map can serve both axes
func sameSpace(rowPD, colPD *fem.ParallelDofs, rowSubset, colSubset *dofs.Subset) bool {
	return rowPD == colPD && rowSubset == colSubset
}
