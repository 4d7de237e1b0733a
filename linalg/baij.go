package linalg

import (
	"fmt"
	"sort"

	"github.com/notargets/DGBridge/comm"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// SeqBAIJ is a sequential block compressed row matrix with square bs x bs
// blocks. Each block row owns a fixed preallocated slot range; inserting more
// blocks than preallocated fails.
type SeqBAIJ struct {
	matBase
	mbs, nbs int
	nnz      []int // preallocated blocks per block row
	rowStart []int // slot range of block row i is rowStart[i]:rowStart[i+1]
	rowLen   []int // blocks in use per block row
	cols     []int
	vals     []float64
}

// NewSeqBAIJ creates an m x n matrix (scalar sizes, multiples of bs) with
// nnz[i] block slots reserved for block row i
func NewSeqBAIJ(bs, m, n int, nnz []int) *SeqBAIJ {
	if m%bs != 0 || n%bs != 0 {
		panic(fmt.Sprintf("sizes %d x %d are not multiples of block size %d", m, n, bs))
	}
	mbs, nbs := m/bs, n/bs
	if len(nnz) != mbs {
		panic(fmt.Sprintf("%d preallocation counts for %d block rows", len(nnz), mbs))
	}
	a := &SeqBAIJ{
		matBase:  newMatBase(comm.Self(), bs, m, n, m, n),
		mbs:      mbs,
		nbs:      nbs,
		nnz:      append([]int(nil), nnz...),
		rowStart: make([]int, mbs+1),
		rowLen:   make([]int, mbs),
	}
	for i, c := range nnz {
		if c < 0 || c > nbs {
			panic(fmt.Sprintf("block row %d: %d preallocated blocks with %d block columns", i, c, nbs))
		}
		a.rowStart[i+1] = a.rowStart[i] + c
	}
	nslots := a.rowStart[mbs]
	a.cols = make([]int, nslots)
	a.vals = make([]float64, nslots*bs*bs)
	return a
}

func (a *SeqBAIJ) Type() MatType { return MatTypeSeqBAIJ }

// BlockRows returns the number of block rows and block columns
func (a *SeqBAIJ) BlockRows() (mbs, nbs int) { return a.mbs, a.nbs }

// SetColumnIndices fills the whole sparsity pattern in one call. cols lists the
// block columns of every block row back to back, strictly increasing per row,
// exactly nnz[i] of them for row i.
func (a *SeqBAIJ) SetColumnIndices(cols []int) error {
	a.alive()
	if len(cols) != len(a.cols) {
		return fmt.Errorf("%d column indices for %d preallocated blocks", len(cols), len(a.cols))
	}
	for i := 0; i < a.mbs; i++ {
		row := cols[a.rowStart[i]:a.rowStart[i+1]]
		for k, c := range row {
			if c < 0 || c >= a.nbs {
				return fmt.Errorf("block row %d: column %d out of range [0,%d)", i, c, a.nbs)
			}
			if k > 0 && row[k-1] >= c {
				return fmt.Errorf("block row %d: columns not strictly increasing at %d", i, c)
			}
		}
	}
	copy(a.cols, cols)
	copy(a.rowLen, a.nnz)
	for i := range a.vals {
		a.vals[i] = 0
	}
	a.assembled = false
	return nil
}

// SetValuesBlocked sets the blocks (rows[r], cols[c]). vals is a row-major
// (len(rows)*bs) x (len(cols)*bs) array.
func (a *SeqBAIJ) SetValuesBlocked(rows, cols []int, vals []float64, mode InsertMode) error {
	a.alive()
	bs := a.bs
	ld := len(cols) * bs
	if len(vals) < len(rows)*bs*ld {
		return fmt.Errorf("%d values for %d x %d blocks of size %d", len(vals), len(rows), len(cols), bs)
	}
	for r, i := range rows {
		if i < 0 || i >= a.mbs {
			return fmt.Errorf("block row %d out of range [0,%d)", i, a.mbs)
		}
		for c, j := range cols {
			if j < 0 || j >= a.nbs {
				return fmt.Errorf("block column %d out of range [0,%d)", j, a.nbs)
			}
			slot, err := a.slot(i, j)
			if err != nil {
				return err
			}
			blk := a.vals[slot*bs*bs : (slot+1)*bs*bs]
			for p := 0; p < bs; p++ {
				src := vals[(r*bs+p)*ld+c*bs : (r*bs+p)*ld+(c+1)*bs]
				dst := blk[p*bs : (p+1)*bs]
				if mode == AddValues {
					for q := range dst {
						dst[q] += src[q]
					}
				} else {
					copy(dst, src)
				}
			}
		}
	}
	a.assembled = false
	return nil
}

// slot finds block (i, j), inserting it into the free preallocated slots of row i
func (a *SeqBAIJ) slot(i, j int) (int, error) {
	start := a.rowStart[i]
	row := a.cols[start : start+a.rowLen[i]]
	k := sort.SearchInts(row, j)
	if k < len(row) && row[k] == j {
		return start + k, nil
	}
	if a.rowLen[i] == a.nnz[i] {
		return 0, &NewNonzeroError{Row: i, Col: j}
	}
	bsz := a.bs * a.bs
	end := start + a.rowLen[i]
	copy(a.cols[start+k+1:end+1], a.cols[start+k:end])
	copy(a.vals[(start+k+1)*bsz:(end+1)*bsz], a.vals[(start+k)*bsz:end*bsz])
	a.cols[start+k] = j
	for q := (start + k) * bsz; q < (start+k+1)*bsz; q++ {
		a.vals[q] = 0
	}
	a.rowLen[i]++
	return start + k, nil
}

// RowIndices returns the block columns in use in block row i
func (a *SeqBAIJ) RowIndices(i int) []int {
	return a.cols[a.rowStart[i] : a.rowStart[i]+a.rowLen[i]]
}

// GetBlock returns the row-major values of block (i, j). The slice aliases the
// matrix storage.
func (a *SeqBAIJ) GetBlock(i, j int) ([]float64, bool) {
	row := a.RowIndices(i)
	k := sort.SearchInts(row, j)
	if k == len(row) || row[k] != j {
		return nil, false
	}
	bsz := a.bs * a.bs
	s := a.rowStart[i] + k
	return a.vals[s*bsz : (s+1)*bsz], true
}

// NNZBlocks is the number of blocks in use
func (a *SeqBAIJ) NNZBlocks() (n int) {
	for _, l := range a.rowLen {
		n += l
	}
	return n
}

func (a *SeqBAIJ) Mult(x, y *Vec) error {
	if err := a.checkMult(x, y); err != nil {
		return err
	}
	a.mult(x.data, y.data)
	return nil
}

func (a *SeqBAIJ) mult(x, y []float64) {
	bs := a.bs
	for i := range y {
		y[i] = 0
	}
	for i := 0; i < a.mbs; i++ {
		yv := blas64.Vector{N: bs, Inc: 1, Data: y[i*bs : (i+1)*bs]}
		for k, j := range a.RowIndices(i) {
			s := a.rowStart[i] + k
			blk := blas64.General{Rows: bs, Cols: bs, Stride: bs, Data: a.vals[s*bs*bs : (s+1)*bs*bs]}
			xv := blas64.Vector{N: bs, Inc: 1, Data: x[j*bs : (j+1)*bs]}
			blas64.Gemv(blas.NoTrans, 1, blk, xv, 1, yv)
		}
	}
}

// walk visits every stored scalar entry in local row-major order
func (a *SeqBAIJ) walk(fn func(i, j int, v float64)) {
	bs := a.bs
	for i := 0; i < a.mbs; i++ {
		for k, j := range a.RowIndices(i) {
			s := a.rowStart[i] + k
			blk := a.vals[s*bs*bs : (s+1)*bs*bs]
			for p := 0; p < bs; p++ {
				for q := 0; q < bs; q++ {
					fn(i*bs+p, j*bs+q, blk[p*bs+q])
				}
			}
		}
	}
}

func (a *SeqBAIJ) Destroy() {
	a.matBase.Destroy()
	a.cols, a.vals = nil, nil
}
