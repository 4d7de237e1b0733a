package bridge

import (
	"fmt"
	"time"

	"github.com/notargets/DGBridge/comm"
	"github.com/notargets/DGBridge/fem"
	"github.com/notargets/DGBridge/linalg"
)

// FlatMatrix exposes any source operator as a matrix-free external shell. The
// shell's context points back at the facade; callbacks run one at a time and
// reuse the facade's scratch vectors, so the facade must not be changed while
// the shell is in use.
type FlatMatrix struct {
	baseMatrix
	rowVec, colVec *fem.Vector
}

// NewFlatMatrix wraps src in a shell matrix. Collective for parallel operators.
func NewFlatMatrix(src fem.Operator, opts ...Option) (*FlatMatrix, error) {
	o := newOptions(opts)
	log := o.logger.WithKind("shell")
	start := time.Now()

	var rowPD, colPD *fem.ParallelDofs
	switch s := src.(type) {
	case *fem.ParallelMatrix:
		rowPD, colPD = s.RowParallelDofs(), s.ColParallelDofs()
	case fem.ParallelDofsProvider:
		rowPD = s.ParallelDofs()
		colPD = rowPD
	}
	c := comm.Self()
	if rowPD != nil {
		c = rowPD.Comm()
		log = log.WithRank(c.Rank())
	}

	fm := &FlatMatrix{
		baseMatrix: baseMatrix{
			src:       src,
			rowSubset: o.rowSubset,
			colSubset: o.colSubset,
			log:       log,
			obs:       o.observer,
		},
		rowVec: src.CreateRowVector(),
		colVec: src.CreateColVector(),
	}

	// an empty local partition has no values to infer the block size from
	var bs int
	switch {
	case src.Width() > 0:
		bs = len(fm.rowVec.FV()) / src.Width()
	case rowPD != nil:
		bs = rowPD.EntrySize()
	default:
		bs = 1
	}
	log.Debug("shell block size", "block_size", bs, "width", src.Width(),
		"row_values", len(fm.rowVec.FV()), "operator", fmt.Sprintf("%T", src))

	mapOpts := []Option{WithLogger(log), WithObserver(o.observer)}
	fm.rowMap = o.rowMap
	if fm.rowMap == nil {
		fm.rowMap = NewVecMap(src.Width(), bs, rowPD, o.rowSubset, mapOpts...)
	}
	fm.colMap = o.colMap
	if fm.colMap == nil {
		if sameSpace(rowPD, colPD, o.rowSubset, o.colSubset) && src.Width() == src.Height() {
			fm.colMap = fm.rowMap
		} else {
			fm.colMap = NewVecMap(src.Height(), bs, colPD, o.colSubset, mapOpts...)
		}
	}

	shell := linalg.NewShell(c,
		fm.colMap.NRowsLocal(), fm.rowMap.NRowsLocal(),
		fm.colMap.NRowsGlobal(), fm.rowMap.NRowsGlobal(),
		fm)
	shell.SetBlockSize(bs)
	shell.SetOperation(linalg.OpMult, shellMult)
	fm.handle = shell

	rows, _ := shell.LocalSize()
	log.LogMatrixBuild(string(shell.Type()), rows, 0, nil)
	o.observer.OnMatrixBuild(string(shell.Type()), rows, 0, time.Since(start), nil)
	return fm, nil
}

// shellMult is the shell's product: y = A x evaluated by the source operator
func shellMult(a *linalg.Shell, x, y *linalg.Vec) error {
	fm, ok := a.Context().(*FlatMatrix)
	if !ok {
		return fmt.Errorf("shell context is %T, not a flat matrix", a.Context())
	}
	start := time.Now()
	err := fm.mult(x, y)
	fm.obs.OnShellMult(time.Since(start), err)
	return err
}

func (fm *FlatMatrix) mult(x, y *linalg.Vec) error {
	if err := fm.rowMap.FromExternal(x, fm.rowVec); err != nil {
		return err
	}
	if err := fm.src.Mult(fm.rowVec, fm.colVec); err != nil {
		return fmt.Errorf("source mult: %w", err)
	}
	return fm.colMap.ToExternal(fm.colVec, y)
}
