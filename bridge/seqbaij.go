package bridge

import (
	"fmt"

	"github.com/notargets/DGBridge/dofs"
	"github.com/notargets/DGBridge/fem"
	"github.com/notargets/DGBridge/linalg"
)

// CreateSeqBAIJ copies sp into a new sequential block matrix. Following the
// source convention, rowSubset filters the source columns (the domain, sized
// by Width) and colSubset filters the source rows (the range, sized by Height).
// Blocks are copied as stored, row-major. Non-square blocks panic.
func CreateSeqBAIJ(sp *fem.SparseMatrix, rowSubset, colSubset *dofs.Subset) (*linalg.SeqBAIJ, error) {
	bh, bw := sp.EntryHeight(), sp.EntryWidth()
	if bh != bw {
		panic(fmt.Sprintf("only square block entries can be converted, got %d x %d", bh, bw))
	}

	rowCompress, nbrow := dofs.Compact(sp.Width(), rowSubset)
	colCompress, nbcol := dofs.Compact(sp.Height(), colSubset)

	// exact preallocation: retained blocks per retained source row
	nnz := make([]int, 0, nbcol)
	for k := 0; k < sp.Height(); k++ {
		if colCompress[k] == dofs.Excluded {
			continue
		}
		c := 0
		for _, j := range sp.RowIndices(k) {
			if rowCompress[j] != dofs.Excluded {
				c++
			}
		}
		nnz = append(nnz, c)
	}
	a := linalg.NewSeqBAIJ(bh, nbcol*bh, nbrow*bw, nnz)

	cols := make([]int, 0, sp.NZE())
	for k := 0; k < sp.Height(); k++ {
		if colCompress[k] == dofs.Excluded {
			continue
		}
		for _, j := range sp.RowIndices(k) {
			if cj := rowCompress[j]; cj != dofs.Excluded {
				cols = append(cols, cj)
			}
		}
	}
	if err := a.SetColumnIndices(cols); err != nil {
		return nil, fmt.Errorf("set column indices: %w", err)
	}

	if err := insertBlocks(a, sp, rowCompress, colCompress); err != nil {
		return nil, err
	}
	return a, nil
}

// SetSeqBAIJValues refreshes the values of a matrix built by CreateSeqBAIJ
// from the same sparsity pattern and subsets
func SetSeqBAIJValues(a *linalg.SeqBAIJ, sp *fem.SparseMatrix, rowSubset, colSubset *dofs.Subset) error {
	if bs := a.BlockSize(); bs != sp.EntryWidth() {
		return &BlockSizeMismatchError{External: bs, Source: sp.EntryWidth()}
	}
	rowCompress, _ := dofs.Compact(sp.Width(), rowSubset)
	colCompress, _ := dofs.Compact(sp.Height(), colSubset)
	return insertBlocks(a, sp, rowCompress, colCompress)
}

// insertBlocks inserts every retained block once, in source row then column order
func insertBlocks(a *linalg.SeqBAIJ, sp *fem.SparseMatrix, rowCompress, colCompress dofs.Compaction) error {
	var row, col [1]int
	for k := 0; k < sp.Height(); k++ {
		ck := colCompress[k]
		if ck == dofs.Excluded {
			continue
		}
		row[0] = ck
		for p, j := range sp.RowIndices(k) {
			cj := rowCompress[j]
			if cj == dofs.Excluded {
				continue
			}
			col[0] = cj
			if err := a.SetValuesBlocked(row[:], col[:], sp.BlockValues(k, p), linalg.InsertValues); err != nil {
				return fmt.Errorf("source block (%d,%d): %w", k, j, err)
			}
		}
	}
	a.AssemblyBegin()
	a.AssemblyEnd()
	return nil
}
