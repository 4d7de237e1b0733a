package linalg

import (
	"sort"

	"github.com/notargets/DGBridge/comm"
)

// AIJ is a scalar compressed row matrix distributed by contiguous row ranges.
// Column indices are global.
type AIJ struct {
	matBase
	rstart int
	rowPtr []int
	colIdx []int
	vals   []float64
}

func (a *AIJ) Type() MatType {
	if comm.IsSelf(a.comm) {
		return MatTypeSeqAIJ
	}
	return MatTypeMPIAIJ
}

// OwnershipRange returns the global rows [lo, hi) stored on this rank
func (a *AIJ) OwnershipRange() (lo, hi int) { return a.rstart, a.rstart + a.m }

// Row returns the global columns and values of owned row i (local numbering)
func (a *AIJ) Row(i int) ([]int, []float64) {
	return a.colIdx[a.rowPtr[i]:a.rowPtr[i+1]], a.vals[a.rowPtr[i]:a.rowPtr[i+1]]
}

// NNZ is the number of entries stored on this rank
func (a *AIJ) NNZ() int { return len(a.colIdx) }

func (a *AIJ) Mult(x, y *Vec) error {
	if err := a.checkMult(x, y); err != nil {
		return err
	}
	xg := x.data
	if !comm.IsSelf(a.comm) {
		xg = comm.AllGatherFloats(a.comm, x.data)
	}
	for i := 0; i < a.m; i++ {
		cols, vals := a.Row(i)
		var s float64
		for k, j := range cols {
			s += vals[k] * xg[j]
		}
		y.data[i] = s
	}
	return nil
}

func (a *AIJ) walk(fn func(i, j int, v float64)) {
	for i := 0; i < a.m; i++ {
		cols, vals := a.Row(i)
		for k, j := range cols {
			fn(a.rstart+i, j, vals[k])
		}
	}
}

func (a *AIJ) Destroy() {
	a.matBase.Destroy()
	a.rowPtr, a.colIdx, a.vals = nil, nil, nil
}

type triplet struct {
	row, col int
	val      float64
}

// newAIJ builds the owned rows from triplets in global numbering; duplicates are summed
func newAIJ(base matBase, rstart int, ts []triplet) *AIJ {
	sort.Slice(ts, func(p, q int) bool {
		if ts[p].row != ts[q].row {
			return ts[p].row < ts[q].row
		}
		return ts[p].col < ts[q].col
	})
	a := &AIJ{matBase: base, rstart: rstart, rowPtr: make([]int, base.m+1)}
	for k := 0; k < len(ts); {
		t := ts[k]
		v := t.val
		for k++; k < len(ts) && ts[k].row == t.row && ts[k].col == t.col; k++ {
			v += ts[k].val
		}
		a.colIdx = append(a.colIdx, t.col)
		a.vals = append(a.vals, v)
		a.rowPtr[t.row-rstart+1]++
	}
	for i := 0; i < base.m; i++ {
		a.rowPtr[i+1] += a.rowPtr[i]
	}
	a.assembled = true
	return a
}

// Convert returns a to the requested type. Converting to the current type
// returns a itself. SeqBAIJ and IS matrices convert to AIJ; the null spaces are
// carried over. Collective for parallel matrices.
func Convert(a Mat, t MatType) (Mat, error) {
	if t == a.Type() {
		return a, nil
	}
	var out *AIJ
	switch src := a.(type) {
	case *SeqBAIJ:
		if t != MatTypeAIJ && t != MatTypeSeqAIJ {
			return nil, &ConversionError{From: a.Type(), To: t}
		}
		var ts []triplet
		src.walk(func(i, j int, v float64) { ts = append(ts, triplet{i, j, v}) })
		out = newAIJ(src.matBase, 0, ts)
	case *IS:
		if t != MatTypeAIJ && t != MatTypeMPIAIJ {
			return nil, &ConversionError{From: a.Type(), To: t}
		}
		out = convertIS(src)
	case *AIJ:
		if t == MatTypeAIJ {
			return a, nil
		}
		return nil, &ConversionError{From: a.Type(), To: t}
	default:
		return nil, &ConversionError{From: a.Type(), To: t}
	}
	out.bs = a.BlockSize()
	out.SetNullSpace(a.NullSpace())
	out.SetNearNullSpace(a.NearNullSpace())
	return out, nil
}

// convertIS sends every local entry to the rank owning its row
func convertIS(src *IS) *AIJ {
	c := src.comm
	starts := comm.AllGatherInts(c, src.rstart)
	owner := func(row int) int {
		return sort.Search(len(starts), func(p int) bool {
			return p+1 == len(starts) || starts[p+1] > row
		})
	}
	rows := make(map[int][]int)
	vals := make(map[int][]float64)
	src.walk(func(i, j int, v float64) {
		p := owner(i)
		rows[p] = append(rows[p], i, j)
		vals[p] = append(vals[p], v)
	})
	var ts []triplet
	gotRows := comm.ExchangeInts(c, rows)
	gotVals := comm.ExchangeFloats(c, vals)
	// entries this rank routes to itself never leave the maps
	if mine, ok := rows[c.Rank()]; ok {
		gotRows[c.Rank()], gotVals[c.Rank()] = mine, vals[c.Rank()]
	}
	for p, rc := range gotRows {
		vs := gotVals[p]
		for k := range vs {
			ts = append(ts, triplet{rc[2*k], rc[2*k+1], vs[k]})
		}
	}
	base := src.matBase
	base.nullsp, base.nearNullsp = nil, nil
	return newAIJ(base, src.rstart, ts)
}
