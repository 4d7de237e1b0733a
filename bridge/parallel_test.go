package bridge

import (
	"testing"

	"github.com/notargets/DGBridge/comm"
	"github.com/notargets/DGBridge/dofs"
	"github.com/notargets/DGBridge/fem"
	"github.com/notargets/DGBridge/linalg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chain is the 1D Laplacian on global dofs 0..4, split over two ranks that
// share global dof 2. Rank 0 holds global 0,1,2 and owns dof 2.
func chain(c comm.Communicator) *fem.ParallelMatrix {
	dist := [][]int{{}, {}, {1}}
	if c.Rank() == 1 {
		dist = [][]int{{0}, {}, {}}
	}
	pd := fem.NewParallelDofs(c, 1, dist, nil)
	b := fem.NewSparseBuilder(3, 3, 1, 1)
	for e := 0; e < 2; e++ {
		b.Add(e, e, 1).Add(e, e+1, -1).Add(e+1, e, -1).Add(e+1, e+1, 1)
	}
	return fem.NewParallelMatrix(b.Build(), pd, pd)
}

// squares sets x to the square of each dof's global number
func squares(c comm.Communicator, x *fem.Vector) {
	off := 2 * c.Rank()
	for k := range x.FV() {
		x.FV()[k] = float64((off + k) * (off + k))
	}
	x.SetStatus(fem.Cumulated)
}

// applyChain runs y = A x on every rank and returns the cumulated results
func applyChain(t *testing.T, build func(c comm.Communicator, pm *fem.ParallelMatrix) (Facade, error)) [][]float64 {
	out := make([][]float64, 2)
	err := comm.Run(2, func(c comm.Communicator) error {
		f, err := build(c, chain(c))
		if err != nil {
			return err
		}
		defer f.Destroy()
		x := f.CreateRowVector()
		squares(c, x)
		y := f.CreateColVector()
		if err := f.Apply(x, y); err != nil {
			return err
		}
		y.Cumulate()
		out[c.Rank()] = y.FV()
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestParallel_IS(t *testing.T) {
	var types [2]linalg.MatType
	out := applyChain(t, func(c comm.Communicator, pm *fem.ParallelMatrix) (Facade, error) {
		m, err := NewMatrix(pm)
		if err != nil {
			return nil, err
		}
		types[c.Rank()] = m.Handle().Type()
		assert.Equal(t, 5, m.RowMap().NRowsGlobal())
		assert.Equal(t, 3-c.Rank(), m.RowMap().NRowsLocal())
		assert.Same(t, m.RowMap(), m.ColMap())
		ml, nl := m.Handle().LocalSize()
		assert.Equal(t, [2]int{3 - c.Rank(), 3 - c.Rank()}, [2]int{ml, nl})
		return m, nil
	})
	assert.Equal(t, [2]linalg.MatType{linalg.MatTypeIS, linalg.MatTypeIS}, types)
	assert.Equal(t, []float64{-1, -2, -2}, out[0])
	assert.Equal(t, []float64{-2, -2, 7}, out[1])
}

func TestParallel_DirichletSubset(t *testing.T) {
	out := applyChain(t, func(c comm.Communicator, pm *fem.ParallelMatrix) (Facade, error) {
		free := dofs.FullSubset(3)
		if c.Rank() == 0 {
			free.Clear(0)
		} else {
			free.Clear(2)
		}
		m, err := NewMatrix(pm, WithFreeDofs(free))
		if err != nil {
			return nil, err
		}
		assert.Equal(t, 3, m.RowMap().NRowsGlobal())
		assert.Equal(t, 2-c.Rank(), m.RowMap().NRowsLocal())
		return m, nil
	})
	assert.Equal(t, []float64{0, -2, -2}, out[0])
	assert.Equal(t, []float64{-2, 14, 0}, out[1])
}

func TestParallel_ConvertToAIJ(t *testing.T) {
	out := applyChain(t, func(c comm.Communicator, pm *fem.ParallelMatrix) (Facade, error) {
		m, err := NewMatrix(pm, WithMatType(linalg.MatTypeAIJ))
		if err != nil {
			return nil, err
		}
		assert.Equal(t, linalg.MatTypeMPIAIJ, m.Handle().Type())
		assert.Nil(t, m.Local())
		return m, nil
	})
	assert.Equal(t, []float64{-1, -2, -2}, out[0])
	assert.Equal(t, []float64{-2, -2, 7}, out[1])
}

func TestParallel_Shell(t *testing.T) {
	out := applyChain(t, func(c comm.Communicator, pm *fem.ParallelMatrix) (Facade, error) {
		f, err := NewFlatMatrix(pm)
		if err != nil {
			return nil, err
		}
		assert.Equal(t, linalg.MatTypeShell, f.Handle().Type())
		mg, ng := f.Handle().Size()
		assert.Equal(t, [2]int{5, 5}, [2]int{mg, ng})
		return f, nil
	})
	assert.Equal(t, []float64{-1, -2, -2}, out[0])
	assert.Equal(t, []float64{-2, -2, 7}, out[1])
}

func TestParallel_UpdateValues(t *testing.T) {
	err := comm.Run(2, func(c comm.Communicator) error {
		pm := chain(c)
		m, err := NewMatrix(pm)
		if err != nil {
			return err
		}
		vals := pm.Local().RowValues(1)
		for k := range vals {
			vals[k] *= 3
		}
		if err := m.UpdateValues(); err != nil {
			return err
		}
		x := m.CreateRowVector()
		x.SetScalar(1)
		y := m.CreateColVector()
		if err := m.Apply(x, y); err != nil {
			return err
		}
		y.Cumulate()
		// local row 1 is interior on both ranks, its row sum stays zero
		assert.InDeltaSlice(t, []float64{0, 0, 0}, y.FV(), 1.e-14)
		return nil
	})
	require.NoError(t, err)
}

func TestParallel_NullSpace(t *testing.T) {
	err := comm.Run(2, func(c comm.Communicator) error {
		m, err := NewMatrix(chain(c))
		if err != nil {
			return err
		}
		one := m.CreateRowVector()
		one.SetScalar(1)
		if err := m.SetNullSpaceVectors([]*fem.Vector{one}); err != nil {
			return err
		}
		ns := m.Handle().NullSpace()
		v := ns.Vecs()[0]
		assert.InDelta(t, 1., v.Norm(), 1.e-14)
		ok, _, err := ns.Test(m.Handle(), 1.e-12)
		if err != nil {
			return err
		}
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestParallel_ShellOnEmptyPartition(t *testing.T) {
	out := make([][]float64, 2)
	var sizes [2]int
	err := comm.Run(2, func(c comm.Communicator) error {
		n := 2 * c.Rank()
		pd := fem.NewParallelDofs(c, 2, make([][]int, n), nil)
		b := fem.NewSparseBuilder(n, n, 2, 2)
		if n > 0 {
			b.Add(0, 0, 1, 0, 0, 1).Add(1, 1, 2, 0, 0, 2)
		}
		pm := fem.NewParallelMatrix(b.Build(), pd, pd)

		f, err := NewFlatMatrix(pm)
		if err != nil {
			return err
		}
		sizes[c.Rank()] = f.Handle().BlockSize()
		x, y := f.Handle().CreateVecs()
		x.Set(1)
		if err := f.Handle().Mult(x, y); err != nil {
			return err
		}
		out[c.Rank()] = values(y)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, [2]int{2, 2}, sizes)
	assert.Empty(t, out[0])
	assert.Equal(t, []float64{1, 1, 2, 2}, out[1])
}
