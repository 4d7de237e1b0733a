package fem

import "fmt"

// Operator is a linear map y = A x between vectors of the finite element side.
// Following the usual convention, a row vector has Width() entries (x) and a
// column vector has Height() entries (y).
type Operator interface {
	Height() int
	Width() int
	Mult(x, y *Vector) error
	CreateRowVector() *Vector
	CreateColVector() *Vector
}

// ParallelDofsProvider is implemented by operators acting on parallel vectors
type ParallelDofsProvider interface {
	ParallelDofs() *ParallelDofs
}

// ParallelMatrix is the rank-local piece of a distributed matrix. The global
// operator is the sum of the local pieces, glued through the shared dofs.
type ParallelMatrix struct {
	local      *SparseMatrix
	rowPardofs *ParallelDofs
	colPardofs *ParallelDofs
}

// NewParallelMatrix glues local to the dof ownership descriptions. rowPD describes
// the Width() side, colPD the Height() side.
func NewParallelMatrix(local *SparseMatrix, rowPD, colPD *ParallelDofs) *ParallelMatrix {
	if rowPD.NDofLocal() != local.Width() || colPD.NDofLocal() != local.Height() {
		panic(fmt.Sprintf("local matrix %d x %d does not match parallel dofs %d x %d",
			local.Height(), local.Width(), colPD.NDofLocal(), rowPD.NDofLocal()))
	}
	return &ParallelMatrix{local: local, rowPardofs: rowPD, colPardofs: colPD}
}

func (pm *ParallelMatrix) Local() *SparseMatrix           { return pm.local }
func (pm *ParallelMatrix) RowParallelDofs() *ParallelDofs { return pm.rowPardofs }
func (pm *ParallelMatrix) ColParallelDofs() *ParallelDofs { return pm.colPardofs }
func (pm *ParallelMatrix) ParallelDofs() *ParallelDofs    { return pm.rowPardofs }
func (pm *ParallelMatrix) Height() int                    { return pm.local.Height() }
func (pm *ParallelMatrix) Width() int                     { return pm.local.Width() }

// Mult cumulates x and leaves y distributed
func (pm *ParallelMatrix) Mult(x, y *Vector) error {
	x.Cumulate()
	if err := pm.local.Mult(x, y); err != nil {
		return err
	}
	y.SetStatus(Distributed)
	return nil
}

func (pm *ParallelMatrix) CreateRowVector() *Vector {
	return NewParallelVector(pm.rowPardofs, Distributed)
}

func (pm *ParallelMatrix) CreateColVector() *Vector {
	return NewParallelVector(pm.colPardofs, Distributed)
}

// ScaledOperator applies Alpha * Op. It has no stored entries of its own.
type ScaledOperator struct {
	Alpha float64
	Op    Operator
}

func (s *ScaledOperator) Height() int              { return s.Op.Height() }
func (s *ScaledOperator) Width() int               { return s.Op.Width() }
func (s *ScaledOperator) CreateRowVector() *Vector { return s.Op.CreateRowVector() }
func (s *ScaledOperator) CreateColVector() *Vector { return s.Op.CreateColVector() }

func (s *ScaledOperator) Mult(x, y *Vector) error {
	if err := s.Op.Mult(x, y); err != nil {
		return err
	}
	for i := range y.data {
		y.data[i] *= s.Alpha
	}
	return nil
}

// ParallelDofs forwards the inner operator's dofs, nil when it is sequential
func (s *ScaledOperator) ParallelDofs() *ParallelDofs {
	if p, ok := s.Op.(ParallelDofsProvider); ok {
		return p.ParallelDofs()
	}
	return nil
}
