package fem

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"
)

// MaxSysDim is the largest block entry size the converters are instantiated for
const MaxSysDim = 8

// SparseMatrix is a compressed row matrix whose entries are dense
// EntryHeight() x EntryWidth() blocks, stored row-major and contiguously.
// Height and Width count block rows and block columns.
type SparseMatrix struct {
	height, width int
	bh, bw        int

	firstInRow []int // len height+1
	colnr      []int // sorted within each row
	data       []float64
}

func (sp *SparseMatrix) Height() int      { return sp.height }
func (sp *SparseMatrix) Width() int       { return sp.width }
func (sp *SparseMatrix) EntryHeight() int { return sp.bh }
func (sp *SparseMatrix) EntryWidth() int  { return sp.bw }

// NZE is the number of stored block entries
func (sp *SparseMatrix) NZE() int { return len(sp.colnr) }

// RowIndices returns the sorted block column indices of row i
func (sp *SparseMatrix) RowIndices(i int) []int {
	return sp.colnr[sp.firstInRow[i]:sp.firstInRow[i+1]]
}

// RowValues returns the blocks of row i back to back. The slice aliases the
// matrix storage.
func (sp *SparseMatrix) RowValues(i int) []float64 {
	bsz := sp.bh * sp.bw
	return sp.data[sp.firstInRow[i]*bsz : sp.firstInRow[i+1]*bsz]
}

// BlockValues returns the k-th block of row i
func (sp *SparseMatrix) BlockValues(i, k int) []float64 {
	bsz := sp.bh * sp.bw
	off := (sp.firstInRow[i] + k) * bsz
	return sp.data[off : off+bsz]
}

// Block returns the k-th block of row i as a view sharing the matrix storage
func (sp *SparseMatrix) Block(i, k int) *mat.Dense {
	return mat.NewDense(sp.bh, sp.bw, sp.BlockValues(i, k))
}

// Position returns the index of block column j within row i, or -1
func (sp *SparseMatrix) Position(i, j int) int {
	cols := sp.RowIndices(i)
	k := sort.SearchInts(cols, j)
	if k < len(cols) && cols[k] == j {
		return k
	}
	return -1
}

// ToDense expands the matrix into a (Height*EntryHeight) x (Width*EntryWidth) dense matrix
func (sp *SparseMatrix) ToDense() *mat.Dense {
	d := mat.NewDense(max(sp.height*sp.bh, 1), max(sp.width*sp.bw, 1), nil)
	for i := 0; i < sp.height; i++ {
		for k, j := range sp.RowIndices(i) {
			blk := sp.BlockValues(i, k)
			for a := 0; a < sp.bh; a++ {
				for b := 0; b < sp.bw; b++ {
					d.Set(i*sp.bh+a, j*sp.bw+b, blk[a*sp.bw+b])
				}
			}
		}
	}
	return d
}

// Mult computes y = A x
func (sp *SparseMatrix) Mult(x, y *Vector) error {
	for i := range y.data {
		y.data[i] = 0
	}
	return sp.MultAdd(1, x, y)
}

// MultAdd computes y += s A x
func (sp *SparseMatrix) MultAdd(s float64, x, y *Vector) error {
	if len(x.data) != sp.width*sp.bw {
		return fmt.Errorf("x has %d values, matrix width is %d x %d", len(x.data), sp.width, sp.bw)
	}
	if len(y.data) != sp.height*sp.bh {
		return fmt.Errorf("y has %d values, matrix height is %d x %d", len(y.data), sp.height, sp.bh)
	}
	for i := 0; i < sp.height; i++ {
		yv := blas64.Vector{N: sp.bh, Inc: 1, Data: y.data[i*sp.bh : (i+1)*sp.bh]}
		for k, j := range sp.RowIndices(i) {
			a := blas64.General{Rows: sp.bh, Cols: sp.bw, Stride: sp.bw, Data: sp.BlockValues(i, k)}
			xv := blas64.Vector{N: sp.bw, Inc: 1, Data: x.data[j*sp.bw : (j+1)*sp.bw]}
			blas64.Gemv(blas.NoTrans, s, a, xv, 1, yv)
		}
	}
	return nil
}

// CreateRowVector allocates a vector x suitable for y = A x
func (sp *SparseMatrix) CreateRowVector() *Vector { return NewVector(sp.width, sp.bw) }

// CreateColVector allocates a vector y suitable for y = A x
func (sp *SparseMatrix) CreateColVector() *Vector { return NewVector(sp.height, sp.bh) }

// SparseBuilder collects block entries before compressing them into a SparseMatrix
type SparseBuilder struct {
	height, width int
	bh, bw        int
	rows          []map[int][]float64
}

// NewSparseBuilder starts a height x width block matrix with bh x bw entries
func NewSparseBuilder(height, width, bh, bw int) *SparseBuilder {
	if bh < 1 || bw < 1 {
		panic(fmt.Sprintf("invalid entry size %d x %d", bh, bw))
	}
	return &SparseBuilder{
		height: height,
		width:  width,
		bh:     bh,
		bw:     bw,
		rows:   make([]map[int][]float64, height),
	}
}

// Add sums block into entry (i, j). The block is row-major with bh*bw values.
func (b *SparseBuilder) Add(i, j int, block ...float64) *SparseBuilder {
	if i < 0 || i >= b.height || j < 0 || j >= b.width {
		panic(fmt.Sprintf("entry (%d,%d) outside %d x %d", i, j, b.height, b.width))
	}
	if len(block) != b.bh*b.bw {
		panic(fmt.Sprintf("block has %d values, expected %d", len(block), b.bh*b.bw))
	}
	if b.rows[i] == nil {
		b.rows[i] = make(map[int][]float64)
	}
	cur, ok := b.rows[i][j]
	if !ok {
		cur = make([]float64, len(block))
		b.rows[i][j] = cur
	}
	for l, v := range block {
		cur[l] += v
	}
	return b
}

// Build compresses the collected entries. Explicitly added zero blocks are kept.
func (b *SparseBuilder) Build() *SparseMatrix {
	sp := &SparseMatrix{
		height:     b.height,
		width:      b.width,
		bh:         b.bh,
		bw:         b.bw,
		firstInRow: make([]int, b.height+1),
	}
	for i, row := range b.rows {
		sp.firstInRow[i+1] = sp.firstInRow[i] + len(row)
	}
	sp.colnr = make([]int, 0, sp.firstInRow[b.height])
	sp.data = make([]float64, 0, sp.firstInRow[b.height]*b.bh*b.bw)
	for _, row := range b.rows {
		cols := make([]int, 0, len(row))
		for j := range row {
			cols = append(cols, j)
		}
		sort.Ints(cols)
		for _, j := range cols {
			sp.colnr = append(sp.colnr, j)
			sp.data = append(sp.data, row[j]...)
		}
	}
	return sp
}

// FromDense builds a block sparse matrix from the nonzero bs x bs blocks of a.
// The dimensions of a must be multiples of bs.
func FromDense(a mat.Matrix, bs int) *SparseMatrix {
	r, c := a.Dims()
	if r%bs != 0 || c%bs != 0 {
		panic(fmt.Sprintf("%d x %d matrix does not split into %d x %d blocks", r, c, bs, bs))
	}
	b := NewSparseBuilder(r/bs, c/bs, bs, bs)
	blk := make([]float64, bs*bs)
	for i := 0; i < r/bs; i++ {
		for j := 0; j < c/bs; j++ {
			nonzero := false
			for p := 0; p < bs; p++ {
				for q := 0; q < bs; q++ {
					blk[p*bs+q] = a.At(i*bs+p, j*bs+q)
					nonzero = nonzero || blk[p*bs+q] != 0
				}
			}
			if nonzero {
				b.Add(i, j, blk...)
			}
		}
	}
	return b.Build()
}
