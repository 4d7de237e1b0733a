package linalg

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/notargets/DGBridge/comm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVec_Seq(t *testing.T) {
	v := NewVecSeq(3)
	a := v.GetArray()
	copy(a, []float64{3, 0, 4})
	v.RestoreArray(a)

	assert.Equal(t, 5., v.Norm())
	assert.Equal(t, 7., v.Sum())
	lo, hi := v.OwnershipRange()
	assert.Equal(t, [2]int{0, 3}, [2]int{lo, hi})

	w := v.Duplicate()
	w.Set(1)
	assert.Equal(t, 7., v.Dot(w))
	w.AXPY(2, v)
	assert.Equal(t, []float64{7, 1, 9}, w.GetArrayRead())
	w.RestoreArrayRead(w.data)

	nrm, err := v.Normalize()
	require.NoError(t, err)
	assert.Equal(t, 5., nrm)
	assert.InDelta(t, 1., v.Norm(), 1.e-14)

	dots := make([]float64, 2)
	w.MDot([]*Vec{v, w}, dots)
	assert.InDelta(t, (21+36)/5., dots[0], 1.e-12)
	assert.InDelta(t, 131., dots[1], 1.e-12)

	w.MAXPY([]float64{-1, 1}, []*Vec{w, v})
	assert.InDeltaSlice(t, []float64{0.6, 0, 0.8}, w.data, 1.e-14)
}

func TestVec_ArrayCheckout(t *testing.T) {
	v := NewVecSeq(2)
	a := v.GetArray()
	assert.Panics(t, func() { v.GetArray() })
	v.RestoreArray(a)
	assert.Panics(t, func() { v.RestoreArray(a) })
}

func TestVec_ZeroNorm(t *testing.T) {
	_, err := NewVecSeq(4).Normalize()
	assert.ErrorIs(t, err, ErrZeroNorm)
}

func TestVec_Destroy(t *testing.T) {
	v := NewVecSeq(2)
	v.Destroy()
	assert.Panics(t, func() { v.Set(1) })
	var nilVec *Vec
	assert.NotPanics(t, func() { nilVec.Destroy() })
}

func TestVec_MPI(t *testing.T) {
	err := comm.Run(2, func(c comm.Communicator) error {
		n := 3 - c.Rank()
		v := NewVecMPI(c, n, Decide)
		assert.Equal(t, 5, v.Size())
		lo, hi := v.OwnershipRange()
		if c.Rank() == 0 {
			assert.Equal(t, [2]int{0, 3}, [2]int{lo, hi})
		} else {
			assert.Equal(t, [2]int{3, 5}, [2]int{lo, hi})
		}
		v.Set(2)
		assert.Equal(t, 20., v.Dot(v))
		assert.InDelta(t, math.Sqrt(20), v.Norm(), 1.e-14)
		return nil
	})
	require.NoError(t, err)

	err = comm.Run(2, func(c comm.Communicator) error {
		assert.Panics(t, func() { NewVecMPI(c, 1, 3) })
		return nil
	})
	require.NoError(t, err)
}

// laplace3 is the 3x3 stiffness matrix of two linear 1D elements
func laplace3(t *testing.T) *SeqBAIJ {
	a := NewSeqBAIJ(1, 3, 3, []int{2, 3, 2})
	require.NoError(t, a.SetColumnIndices([]int{0, 1, 0, 1, 2, 1, 2}))
	for e := 0; e < 2; e++ {
		require.NoError(t, a.SetValuesBlocked([]int{e, e + 1}, []int{e, e + 1},
			[]float64{1, -1, -1, 1}, AddValues))
	}
	a.AssemblyBegin()
	a.AssemblyEnd()
	return a
}

func TestSeqBAIJ_Assemble(t *testing.T) {
	a := laplace3(t)
	assert.Equal(t, 7, a.NNZBlocks())
	blk, ok := a.GetBlock(1, 1)
	require.True(t, ok)
	assert.Equal(t, []float64{2}, blk)
	_, ok = a.GetBlock(0, 2)
	assert.False(t, ok)

	x, y := a.CreateVecs()
	copy(x.data, []float64{1, 2, 4})
	require.NoError(t, a.Mult(x, y))
	assert.Equal(t, []float64{-1, -1, 2}, y.data)

	err := a.SetValuesBlocked([]int{0}, []int{2}, []float64{1}, InsertValues)
	var nz *NewNonzeroError
	require.ErrorAs(t, err, &nz)
	assert.Equal(t, 2, nz.Col)
}

func TestSeqBAIJ_BlocksAndIncrementalPattern(t *testing.T) {
	a := NewSeqBAIJ(2, 4, 4, []int{2, 1})
	// no column indices given up front, rows fill their preallocated slots
	require.NoError(t, a.SetValuesBlocked([]int{0}, []int{1}, []float64{1, 2, 3, 4}, InsertValues))
	require.NoError(t, a.SetValuesBlocked([]int{0}, []int{0}, []float64{5, 6, 7, 8}, InsertValues))
	require.NoError(t, a.SetValuesBlocked([]int{1}, []int{1}, []float64{1, 0, 0, 1}, InsertValues))
	assert.Equal(t, []int{0, 1}, a.RowIndices(0))

	x, y := a.CreateVecs()
	assert.ErrorIs(t, a.Mult(x, y), ErrNotAssembled)
	a.AssemblyBegin()
	a.AssemblyEnd()

	copy(x.data, []float64{1, 1, 1, 1})
	require.NoError(t, a.Mult(x, y))
	assert.Equal(t, []float64{14, 22, 1, 1}, y.data)
	assert.Equal(t, MatTypeSeqBAIJ, a.Type())
	assert.Equal(t, 2, a.BlockSize())
}

func TestSeqBAIJ_Preconditions(t *testing.T) {
	assert.Panics(t, func() { NewSeqBAIJ(2, 3, 4, []int{1}) })
	assert.Panics(t, func() { NewSeqBAIJ(1, 2, 2, []int{1}) })
	a := NewSeqBAIJ(1, 2, 2, []int{1, 1})
	assert.Error(t, a.SetColumnIndices([]int{0}))
	assert.Error(t, a.SetColumnIndices([]int{0, 2}))
	assert.Panics(t, func() { a.AssemblyEnd() })
}

func TestConvert_SeqBAIJ(t *testing.T) {
	a := laplace3(t)
	ns := NewNullSpace(comm.Self(), true, nil)
	a.SetNullSpace(ns)
	m, err := Convert(a, MatTypeAIJ)
	require.NoError(t, err)
	aij := m.(*AIJ)
	assert.Equal(t, MatTypeSeqAIJ, aij.Type())
	cols, vals := aij.Row(1)
	assert.Equal(t, []int{0, 1, 2}, cols)
	assert.Equal(t, []float64{-1, 2, -1}, vals)
	assert.Same(t, ns, aij.NullSpace())

	same, err := Convert(a, MatTypeSeqBAIJ)
	require.NoError(t, err)
	assert.Same(t, a, same)

	_, err = Convert(a, MatTypeShell)
	var ce *ConversionError
	assert.ErrorAs(t, err, &ce)
}

// chainIS assembles the 5 dof 1D Laplacian from two ranks sharing global dof 2
func chainIS(t *testing.T, c comm.Communicator) *IS {
	local := laplace3(t)
	idx := []int{0, 1, 2}
	m := 3
	if c.Rank() == 1 {
		idx = []int{2, 3, 4}
		m = 2
	}
	l2g := NewLocalToGlobalMapping(c, 1, idx)
	a := NewIS(c, 1, m, m, Decide, Decide, l2g, nil)
	a.SetLocalMat(local)
	a.AssemblyBegin()
	a.AssemblyEnd()
	return a
}

func TestIS_Mult(t *testing.T) {
	out := make([][]float64, 2)
	err := comm.Run(2, func(c comm.Communicator) error {
		a := chainIS(t, c)
		x, y := a.CreateVecs()
		lo, hi := x.OwnershipRange()
		for i := lo; i < hi; i++ {
			x.data[i-lo] = float64(i * i)
		}
		if err := a.Mult(x, y); err != nil {
			return err
		}
		out[c.Rank()] = y.data
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, -2, -2}, out[0])
	assert.Equal(t, []float64{-2, 7}, out[1])
}

func TestIS_Convert(t *testing.T) {
	err := comm.Run(2, func(c comm.Communicator) error {
		a := chainIS(t, c)
		m, err := Convert(a, MatTypeAIJ)
		if err != nil {
			return err
		}
		aij := m.(*AIJ)
		assert.Equal(t, MatTypeMPIAIJ, aij.Type())
		if c.Rank() == 0 {
			cols, vals := aij.Row(2)
			assert.Equal(t, []int{1, 2, 3}, cols)
			assert.Equal(t, []float64{-1, 2, -1}, vals)
			assert.Equal(t, 8, aij.NNZ())
		} else {
			cols, vals := aij.Row(1)
			assert.Equal(t, []int{3, 4}, cols)
			assert.Equal(t, []float64{-1, 1}, vals)
		}

		x, y := aij.CreateVecs()
		x.Set(1)
		if err := aij.Mult(x, y); err != nil {
			return err
		}
		assert.Equal(t, 0., y.Norm())
		return nil
	})
	require.NoError(t, err)
}

func TestIS_InconsistentSizesPanic(t *testing.T) {
	err := comm.Run(2, func(c comm.Communicator) error {
		l2g := NewLocalToGlobalMapping(c, 1, []int{0})
		assert.Panics(t, func() { NewIS(c, 1, 1, 1, 3, Decide, l2g, l2g) })
		return nil
	})
	require.NoError(t, err)
}

func TestShell(t *testing.T) {
	type ctx struct{ scale float64 }
	s := NewShell(comm.Self(), 2, 2, Decide, Decide, &ctx{scale: 3})
	x, y := s.CreateVecs()
	assert.Error(t, s.Mult(x, y))

	s.SetOperation(OpMult, func(a *Shell, x, y *Vec) error {
		c := a.Context().(*ctx)
		x.Copy(y)
		y.Scale(c.scale)
		return nil
	})
	x.Set(1)
	require.NoError(t, s.Mult(x, y))
	assert.Equal(t, []float64{3, 3}, y.data)

	s.Destroy()
	assert.Nil(t, s.Context())
	assert.ErrorIs(t, s.Mult(x, y), ErrDestroyed)
}

func TestNullSpace_RemoveAndTest(t *testing.T) {
	a := laplace3(t)
	ns := NewNullSpace(comm.Self(), true, nil)
	ok, worst, err := ns.Test(a, 1.e-12)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 0., worst, 1.e-12)

	v := NewVecSeq(3)
	copy(v.data, []float64{1, 2, 6})
	ns.Remove(v)
	assert.InDeltaSlice(t, []float64{-2, -1, 3}, v.data, 1.e-14)

	u := NewVecSeq(3)
	copy(u.data, []float64{1, 0, 0})
	ns2 := NewNullSpace(comm.Self(), false, []*Vec{u})
	u.Set(7)
	assert.Equal(t, []float64{1, 0, 0}, ns2.Vecs()[0].data)
	ok, worst, err = ns2.Test(a, 1.e-12)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.InDelta(t, math.Sqrt(2), worst, 1.e-14)

	ns2.Destroy()
	assert.Panics(t, func() { ns2.Remove(v) })
}

func TestViewer_RoundTrip(t *testing.T) {
	for _, ct := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		nnz := make([]int, 20)
		for i := range nnz {
			nnz[i] = 1
		}
		a := NewSeqBAIJ(2, 40, 40, nnz)
		for i := 0; i < 20; i++ {
			require.NoError(t, a.SetValuesBlocked([]int{i}, []int{i}, []float64{2, 0, 0, 2}, InsertValues))
		}
		var buf bytes.Buffer
		require.NoError(t, WriteSeqBAIJ(&buf, a, ct))
		b, err := ReadSeqBAIJ(&buf)
		require.NoError(t, err)
		assert.Equal(t, a.NNZBlocks(), b.NNZBlocks())
		blk, ok := b.GetBlock(7, 7)
		require.True(t, ok)
		assert.Equal(t, []float64{2, 0, 0, 2}, blk)
		assert.True(t, b.Assembled())

		v := NewVecSeq(64)
		v.Set(0.5)
		buf.Reset()
		require.NoError(t, WriteVec(&buf, v, ct))
		w, err := ReadVec(&buf)
		require.NoError(t, err)
		assert.Equal(t, v.data, w.data)
	}
}

func TestViewer_Corrupt(t *testing.T) {
	_, err := ReadVec(bytes.NewReader([]byte("DGBMxxxxxxxxxxxxx")))
	assert.Error(t, err)
	_, err = ReadSeqBAIJ(bytes.NewReader(nil))
	assert.ErrorIs(t, err, io.EOF)
}
