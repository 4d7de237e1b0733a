package bridge

import (
	"github.com/notargets/DGBridge/dofs"
	"github.com/notargets/DGBridge/fem"
	"github.com/notargets/DGBridge/linalg"
)

// CreateIS glues the rank-local block matrix built by CreateSeqBAIJ into the
// global index space. The external rows follow colPD/colSubset (the source
// range), the external columns rowPD/rowSubset (the source domain). When both
// axes use the same ParallelDofs and subset the mapping is built once. Collective.
func CreateIS(local *linalg.SeqBAIJ, rowPD, colPD *fem.ParallelDofs, rowSubset, colSubset *dofs.Subset) (*linalg.IS, error) {
	bs := rowPD.EntrySize()
	if colPD.EntrySize() != bs {
		return nil, &BlockSizeMismatchError{External: colPD.EntrySize(), Source: bs}
	}
	if local.BlockSize() != bs {
		return nil, &BlockSizeMismatchError{External: local.BlockSize(), Source: bs}
	}
	sameSpaces := sameSpace(rowPD, colPD, rowSubset, colSubset)

	rowMap, globRow := localToGlobal(rowPD, rowSubset)
	colMap, globCol := rowMap, globRow
	if !sameSpaces {
		colMap, globCol = localToGlobal(colPD, colSubset)
	}

	nRowOwned := rowPD.NMasterDofs(rowSubset)
	nColOwned := nRowOwned
	if !sameSpaces {
		nColOwned = colPD.NMasterDofs(colSubset)
	}

	a := linalg.NewIS(rowPD.Comm(), bs,
		nColOwned*bs, nRowOwned*bs,
		globCol*bs, globRow*bs,
		colMap, rowMap)
	a.SetLocalMat(local)
	a.AssemblyBegin()
	a.AssemblyEnd()
	return a, nil
}

// localToGlobal numbers the subset dofs of this rank globally, keeping only the
// retained numbers in increasing local order
func localToGlobal(pd *fem.ParallelDofs, subset *dofs.Subset) (*linalg.LocalToGlobalMapping, int) {
	globnums, nGlobal := pd.EnumerateGlobally(subset)
	kept := make([]int, 0, subsetLen(subset, pd.NDofLocal()))
	for _, g := range globnums {
		if g != dofs.Excluded {
			kept = append(kept, g)
		}
	}
	return linalg.NewLocalToGlobalMapping(pd.Comm(), pd.EntrySize(), kept), nGlobal
}
