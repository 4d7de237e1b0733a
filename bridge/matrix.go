// Package bridge moves finite element matrices and vectors into the linalg
// object model and back: block matrix builders, vector maps, materialized and
// shell matrix facades, and null space construction.
package bridge

import (
	"fmt"
	"time"

	"github.com/notargets/DGBridge/dofs"
	"github.com/notargets/DGBridge/fem"
	"github.com/notargets/DGBridge/linalg"
)

// Facade is a source operator paired with its external matrix
type Facade interface {
	fem.Operator
	fem.ParallelDofsProvider
	Handle() linalg.Mat
	Source() fem.Operator
	RowMap() *VecMap
	ColMap() *VecMap
	Apply(x, y *fem.Vector) error
	SetNullSpaceVectors(vecs []*fem.Vector) error
	SetNearNullSpaceVectors(vecs []*fem.Vector) error
	Destroy()
}

var (
	_ Facade = (*Matrix)(nil)
	_ Facade = (*FlatMatrix)(nil)
)

// baseMatrix is the state shared by the materialized and the shell facade.
// The source operator is shared, the external handle is owned.
type baseMatrix struct {
	src                  fem.Operator
	rowSubset, colSubset *dofs.Subset
	rowMap, colMap       *VecMap
	handle               linalg.Mat
	log                  *Logger
	obs                  Observer
	destroyed            bool
}

// Handle returns the external matrix
func (b *baseMatrix) Handle() linalg.Mat { return b.handle }

// Source returns the wrapped operator
func (b *baseMatrix) Source() fem.Operator { return b.src }

// RowMap converts domain vectors (x in y = A x)
func (b *baseMatrix) RowMap() *VecMap { return b.rowMap }

// ColMap converts range vectors (y in y = A x)
func (b *baseMatrix) ColMap() *VecMap { return b.colMap }

func (b *baseMatrix) SetNullSpace(ns *linalg.NullSpace)     { b.handle.SetNullSpace(ns) }
func (b *baseMatrix) SetNearNullSpace(ns *linalg.NullSpace) { b.handle.SetNearNullSpace(ns) }

// SetNullSpaceVectors orthonormalizes vecs through the row map and attaches
// the result as the null space
func (b *baseMatrix) SetNullSpaceVectors(vecs []*fem.Vector) error {
	ns, err := NewNullSpace(vecs, b.rowMap, false, false, WithObserver(b.obs))
	if err != nil {
		return err
	}
	b.SetNullSpace(ns)
	return nil
}

// SetNearNullSpaceVectors is SetNullSpaceVectors for the near null space
func (b *baseMatrix) SetNearNullSpaceVectors(vecs []*fem.Vector) error {
	ns, err := NewNullSpace(vecs, b.rowMap, false, false, WithObserver(b.obs))
	if err != nil {
		return err
	}
	b.SetNearNullSpace(ns)
	return nil
}

// Apply computes y = A x with the external matrix, converting through the maps
func (b *baseMatrix) Apply(x, y *fem.Vector) error {
	if b.destroyed {
		return ErrDestroyed
	}
	ex := b.rowMap.CreateExternalVector()
	defer ex.Destroy()
	ey := b.colMap.CreateExternalVector()
	defer ey.Destroy()
	if err := b.rowMap.ToExternal(x, ex); err != nil {
		return fmt.Errorf("apply: %w", err)
	}
	if err := b.handle.Mult(ex, ey); err != nil {
		return fmt.Errorf("apply: %w", err)
	}
	if err := b.colMap.FromExternal(ey, y); err != nil {
		return fmt.Errorf("apply: %w", err)
	}
	return nil
}

// The facade is itself an operator on the source side

func (b *baseMatrix) Height() int                  { return b.src.Height() }
func (b *baseMatrix) Width() int                   { return b.src.Width() }
func (b *baseMatrix) Mult(x, y *fem.Vector) error  { return b.Apply(x, y) }
func (b *baseMatrix) CreateRowVector() *fem.Vector { return b.rowMap.CreateSourceVector() }
func (b *baseMatrix) CreateColVector() *fem.Vector { return b.colMap.CreateSourceVector() }

func (b *baseMatrix) ParallelDofs() *fem.ParallelDofs { return b.rowMap.ParallelDofs() }

// Destroy releases the external handle. The source operator is untouched.
func (b *baseMatrix) Destroy() {
	if b.destroyed {
		return
	}
	b.handle.Destroy()
	b.destroyed = true
}

// Matrix holds a materialized copy of a sparse source matrix: a sequential
// block matrix, glued into an IS matrix when the source is parallel
type Matrix struct {
	baseMatrix
	sparse    *fem.SparseMatrix
	local     *linalg.SeqBAIJ
	converted bool
}

// NewMatrix builds the external matrix of src, which must be a
// *fem.SparseMatrix or a *fem.ParallelMatrix. Collective for parallel sources.
func NewMatrix(src fem.Operator, opts ...Option) (*Matrix, error) {
	o := newOptions(opts)
	log := o.logger.WithKind("materialized")

	var (
		sp           *fem.SparseMatrix
		rowPD, colPD *fem.ParallelDofs
	)
	switch s := src.(type) {
	case *fem.SparseMatrix:
		sp = s
	case *fem.ParallelMatrix:
		sp, rowPD, colPD = s.Local(), s.RowParallelDofs(), s.ColParallelDofs()
	default:
		err := &UnsupportedMatrixError{Type: fmt.Sprintf("%T", src)}
		log.LogMatrixBuild("", 0, 0, err)
		o.observer.OnMatrixBuild("", 0, 0, 0, err)
		return nil, err
	}
	if rowPD != nil {
		log = log.WithRank(rowPD.Comm().Rank())
	}

	start := time.Now()
	m := &Matrix{
		baseMatrix: baseMatrix{
			src:       src,
			rowSubset: o.rowSubset,
			colSubset: o.colSubset,
			log:       log,
			obs:       o.observer,
		},
		sparse: sp,
	}
	err := m.build(rowPD, colPD, o)
	kind := ""
	rows, blocks := 0, 0
	if err == nil {
		kind = string(m.handle.Type())
		rows, _ = m.handle.LocalSize()
		if m.local != nil {
			blocks = m.local.NNZBlocks()
		}
	}
	log.LogMatrixBuild(kind, rows, blocks, err)
	o.observer.OnMatrixBuild(kind, rows, blocks, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Matrix) build(rowPD, colPD *fem.ParallelDofs, o *options) error {
	if err := checkBlockSize(m.sparse.EntryWidth()); err != nil {
		return err
	}
	local, err := CreateSeqBAIJ(m.sparse, m.rowSubset, m.colSubset)
	if err != nil {
		return err
	}
	m.local = local
	m.handle = local
	if rowPD != nil {
		is, err := CreateIS(local, rowPD, colPD, m.rowSubset, m.colSubset)
		if err != nil {
			local.Destroy()
			return err
		}
		m.handle = is
	}
	bs := m.handle.BlockSize()

	if o.matType != "" && o.matType != m.handle.Type() {
		conv, err := linalg.Convert(m.handle, o.matType)
		if err != nil {
			m.handle.Destroy()
			return fmt.Errorf("convert: %w", err)
		}
		if conv != m.handle {
			m.handle.Destroy()
			m.handle, m.local, m.converted = conv, nil, true
		}
	}

	m.rowMap, m.colMap = o.rowMap, o.colMap
	mapOpts := []Option{WithLogger(m.log), WithObserver(m.obs)}
	if m.rowMap == nil {
		if rowPD != nil {
			m.rowMap = NewVecMap(rowPD.NDofLocal(), bs, rowPD, m.rowSubset, mapOpts...)
		} else {
			m.rowMap = NewVecMap(m.sparse.Width(), bs, nil, m.rowSubset, mapOpts...)
		}
	}
	if m.colMap == nil {
		switch {
		case sameSpace(rowPD, colPD, m.rowSubset, m.colSubset) && m.sparse.Width() == m.sparse.Height():
			m.colMap = m.rowMap
		case colPD != nil:
			m.colMap = NewVecMap(colPD.NDofLocal(), bs, colPD, m.colSubset, mapOpts...)
		default:
			m.colMap = NewVecMap(m.sparse.Height(), bs, nil, m.colSubset, mapOpts...)
		}
	}
	return nil
}

// Local returns the rank-local block matrix, nil once the handle was converted
func (m *Matrix) Local() *linalg.SeqBAIJ { return m.local }

// checkBlockSize admits the block sizes 1..fem.MaxSysDim. Block storage is
// generic over the size, so this bound is the only size-specific step of
// building and refreshing a matrix.
func checkBlockSize(bs int) error {
	if bs < 1 || bs > fem.MaxSysDim {
		return &UnsupportedBlockSizeError{Size: bs}
	}
	return nil
}

// UpdateValues copies the current source values into the external matrix. The
// sparsity pattern must be the one the matrix was built with.
func (m *Matrix) UpdateValues() error {
	start := time.Now()
	err := m.updateValues()
	if err != nil {
		m.log.Error("update values failed", "error", err)
	}
	m.obs.OnValuesUpdate(time.Since(start), err)
	return err
}

func (m *Matrix) updateValues() error {
	if m.destroyed {
		return ErrDestroyed
	}
	if m.converted {
		return ErrConverted
	}
	if err := checkBlockSize(m.sparse.EntryWidth()); err != nil {
		return err
	}
	if err := SetSeqBAIJValues(m.local, m.sparse, m.rowSubset, m.colSubset); err != nil {
		return err
	}
	if is, ok := m.handle.(*linalg.IS); ok {
		is.AssemblyBegin()
		is.AssemblyEnd()
	}
	return nil
}
