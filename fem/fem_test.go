package fem

import (
	"fmt"
	"testing"

	"github.com/notargets/DGBridge/comm"
	"github.com/notargets/DGBridge/dofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func scalar4x4() *SparseMatrix {
	return NewSparseBuilder(4, 4, 1, 1).
		Add(0, 0, 2).Add(0, 1, -1).
		Add(1, 0, -1).Add(1, 1, 2).
		Add(2, 2, 3).
		Add(3, 3, 4).
		Build()
}

func TestSparseMatrix_Scalar(t *testing.T) {
	sp := scalar4x4()
	assert.Equal(t, 6, sp.NZE())
	assert.Equal(t, []int{0, 1}, sp.RowIndices(0))
	assert.Equal(t, []float64{-1, 2}, sp.RowValues(1))
	assert.Equal(t, 1, sp.Position(1, 1))
	assert.Equal(t, -1, sp.Position(2, 0))

	x := sp.CreateRowVector()
	x.SetScalar(1)
	y := sp.CreateColVector()
	require.NoError(t, sp.Mult(x, y))
	assert.Equal(t, []float64{1, 1, 3, 4}, y.FV())
}

func TestSparseMatrix_DuplicatesAreSummed(t *testing.T) {
	sp := NewSparseBuilder(2, 3, 1, 1).Add(1, 2, 1).Add(1, 0, 5).Add(1, 2, 2).Build()
	assert.Equal(t, 2, sp.NZE())
	assert.Equal(t, []int{0, 2}, sp.RowIndices(1))
	assert.Equal(t, []float64{5, 3}, sp.RowValues(1))
	assert.Empty(t, sp.RowIndices(0))
}

func TestSparseMatrix_Blocks(t *testing.T) {
	dense := mat.NewDense(4, 4, []float64{
		1, 2, 0, 0,
		3, 4, 0, 0,
		0, 0, 5, 6,
		1, 0, 7, 8,
	})
	sp := FromDense(dense, 2)
	assert.Equal(t, 2, sp.EntryHeight())
	assert.Equal(t, 2, sp.EntryWidth())
	assert.Equal(t, 3, sp.NZE())
	assert.True(t, mat.Equal(dense, sp.ToDense()))
	assert.True(t, mat.Equal(mat.NewDense(2, 2, []float64{0, 0, 1, 0}), sp.Block(1, 0)))

	x := NewVectorFrom(2, []float64{1, 2, 3, 4})
	y := sp.CreateColVector()
	require.NoError(t, sp.Mult(x, y))
	want := mat.NewVecDense(4, nil)
	want.MulVec(dense, mat.NewVecDense(4, []float64{1, 2, 3, 4}))
	assert.InDeltaSlicef(t, want.RawVector().Data, y.FV(), 1.e-12, "")

	// views alias storage
	sp.Block(0, 0).Set(0, 0, 10)
	assert.Equal(t, 10., sp.BlockValues(0, 0)[0])
}

func TestSparseMatrix_MultDimensionMismatch(t *testing.T) {
	sp := scalar4x4()
	assert.Error(t, sp.Mult(NewVector(3, 1), NewVector(4, 1)))
	assert.Error(t, sp.Mult(NewVector(4, 1), NewVector(4, 2)))
}

func TestSparseBuilder_Panics(t *testing.T) {
	b := NewSparseBuilder(2, 2, 2, 2)
	assert.Panics(t, func() { b.Add(0, 0, 1) })
	assert.Panics(t, func() { b.Add(2, 0, 1, 2, 3, 4) })
}

// chain builds the two rank split of a five dof chain, dof 2 shared
//
//	rank 0: global 0 1 2     rank 1: global 2 3 4
func chain(c comm.Communicator, bs int) *ParallelDofs {
	if c.Rank() == 0 {
		return NewParallelDofs(c, bs, [][]int{nil, nil, {1}}, nil)
	}
	return NewParallelDofs(c, bs, [][]int{{0}, nil, nil}, nil)
}

func TestParallelDofs_Ownership(t *testing.T) {
	err := comm.Run(2, func(c comm.Communicator) error {
		pd := chain(c, 1)
		if c.Rank() == 0 {
			if !pd.IsMasterDof(2) || pd.MasterRank(2) != 0 {
				return fmt.Errorf("rank 0 should own dof 2")
			}
		} else {
			if pd.IsMasterDof(0) || pd.MasterRank(0) != 0 {
				return fmt.Errorf("rank 1 should not own its dof 0")
			}
		}
		if pd.NMasterDofs(nil) != 3-c.Rank() {
			return fmt.Errorf("bad master count %d", pd.NMasterDofs(nil))
		}
		return nil
	})
	assert.NoError(t, err)
}

func TestParallelDofs_EnumerateGlobally(t *testing.T) {
	got := make([][]int, 2)
	totals := make([]int, 2)
	err := comm.Run(2, func(c comm.Communicator) error {
		pd := chain(c, 1)
		got[c.Rank()], totals[c.Rank()] = pd.EnumerateGlobally(nil)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, got[0])
	assert.Equal(t, []int{2, 3, 4}, got[1])
	assert.Equal(t, []int{5, 5}, totals)
}

func TestParallelDofs_EnumerateGloballySubset(t *testing.T) {
	got := make([][]int, 2)
	totals := make([]int, 2)
	err := comm.Run(2, func(c comm.Communicator) error {
		pd := chain(c, 1)
		// global dof 0 and 4 are constrained
		s := dofs.FullSubset(3)
		if c.Rank() == 0 {
			s.Clear(0)
		} else {
			s.Clear(2)
		}
		got[c.Rank()], totals[c.Rank()] = pd.EnumerateGlobally(s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{-1, 0, 1}, got[0])
	assert.Equal(t, []int{1, 2, -1}, got[1])
	assert.Equal(t, 3, totals[1])
}

func TestVector_CumulateDistribute(t *testing.T) {
	out := make([][]float64, 2)
	err := comm.Run(2, func(c comm.Communicator) error {
		pd := chain(c, 2)
		v := NewParallelVector(pd, Distributed)
		for k := 0; k < v.Size(); k++ {
			e := v.Entry(k)
			e[0], e[1] = 1, float64(c.Rank()+1)
		}
		v.Cumulate()
		if v.Status() != Cumulated {
			return fmt.Errorf("status %v", v.Status())
		}
		cum := append([]float64(nil), v.FV()...)
		v.Distribute()
		out[c.Rank()] = append(cum, v.FV()...)
		return nil
	})
	require.NoError(t, err)
	// rank 0: shared dof 2 sums to (2, 3), stays on the master after Distribute
	assert.Equal(t, []float64{1, 1, 1, 1, 2, 3, 1, 1, 1, 1, 2, 3}, out[0])
	// rank 1: shared local dof 0 is cumulated, then zeroed on the copy
	assert.Equal(t, []float64{2, 3, 1, 2, 1, 2, 0, 0, 1, 2, 1, 2}, out[1])
}

func TestVector_SequentialIgnoresStatus(t *testing.T) {
	v := NewVector(3, 1)
	v.SetStatus(Distributed)
	assert.Equal(t, NotParallel, v.Status())
	v.Cumulate()
	v.Distribute()
	assert.Equal(t, "Vector(3 x 1, not-parallel)", v.String())
}

func TestParallelMatrix_Mult(t *testing.T) {
	// 1D Laplacian pieces: each rank holds the element matrices of its two elements
	out := make([][]float64, 2)
	err := comm.Run(2, func(c comm.Communicator) error {
		pd := chain(c, 1)
		b := NewSparseBuilder(3, 3, 1, 1)
		for e := 0; e < 2; e++ {
			b.Add(e, e, 1).Add(e, e+1, -1).Add(e+1, e, -1).Add(e+1, e+1, 1)
		}
		pm := NewParallelMatrix(b.Build(), pd, pd)
		x := pm.CreateRowVector()
		for k := 0; k < x.Size(); k++ {
			gk := k + 2*c.Rank()
			x.FV()[k] = float64(gk * gk)
		}
		x.SetStatus(Cumulated)
		y := pm.CreateColVector()
		if err := pm.Mult(x, y); err != nil {
			return err
		}
		y.Cumulate()
		out[c.Rank()] = y.FV()
		return nil
	})
	require.NoError(t, err)
	// A x for x = k^2 on the global chain: [-1, -2, -2, -2, 7]
	assert.Equal(t, []float64{-1, -2, -2}, out[0])
	assert.Equal(t, []float64{-2, -2, 7}, out[1])
}

func TestScaledOperator(t *testing.T) {
	op := &ScaledOperator{Alpha: -2, Op: scalar4x4()}
	x := op.CreateRowVector()
	x.SetScalar(1)
	y := op.CreateColVector()
	require.NoError(t, op.Mult(x, y))
	assert.Equal(t, []float64{-2, -2, -6, -8}, y.FV())
	assert.Nil(t, op.ParallelDofs())
}
