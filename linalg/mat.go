package linalg

import (
	"fmt"

	"github.com/notargets/DGBridge/comm"
)

type MatType string

const (
	MatTypeSeqBAIJ MatType = "seqbaij"
	MatTypeIS      MatType = "is"
	MatTypeShell   MatType = "shell"
	MatTypeAIJ     MatType = "aij"
	MatTypeSeqAIJ  MatType = "seqaij"
	MatTypeMPIAIJ  MatType = "mpiaij"
)

type InsertMode uint8

const (
	InsertValues InsertMode = iota
	AddValues
)

// Mat is a matrix handle. Sizes are scalar rows and columns; the local sizes are
// the ownership of y and x in y = A x.
type Mat interface {
	Type() MatType
	Comm() comm.Communicator
	Size() (M, N int)
	LocalSize() (m, n int)
	BlockSize() int
	Mult(x, y *Vec) error
	AssemblyBegin()
	AssemblyEnd()
	Assembled() bool
	SetNullSpace(ns *NullSpace)
	NullSpace() *NullSpace
	SetNearNullSpace(ns *NullSpace)
	NearNullSpace() *NullSpace
	CreateVecs() (right, left *Vec)
	Destroy()
}

// matBase carries the state every matrix type shares
type matBase struct {
	comm       comm.Communicator
	m, n       int
	M, N       int
	bs         int
	assembled  bool
	assembling bool
	destroyed  bool
	nullsp     *NullSpace
	nearNullsp *NullSpace
}

func newMatBase(c comm.Communicator, bs, m, n, M, N int) matBase {
	if bs < 1 {
		panic(fmt.Sprintf("block size %d", bs))
	}
	if m < 0 || n < 0 {
		panic(fmt.Sprintf("negative local sizes %d x %d", m, n))
	}
	_, sumM := comm.ExclusiveScan(c, m)
	_, sumN := comm.ExclusiveScan(c, n)
	if M == Decide {
		M = sumM
	}
	if N == Decide {
		N = sumN
	}
	if M != sumM || N != sumN {
		panic(fmt.Sprintf("global sizes %d x %d inconsistent with local sums %d x %d", M, N, sumM, sumN))
	}
	return matBase{comm: c, m: m, n: n, M: M, N: N, bs: bs}
}

func (b *matBase) Comm() comm.Communicator { return b.comm }
func (b *matBase) Size() (M, N int)        { return b.M, b.N }
func (b *matBase) LocalSize() (m, n int)   { return b.m, b.n }
func (b *matBase) BlockSize() int          { return b.bs }
func (b *matBase) Assembled() bool         { return b.assembled }

func (b *matBase) AssemblyBegin() {
	b.alive()
	b.assembling = true
}

func (b *matBase) AssemblyEnd() {
	b.alive()
	if !b.assembling {
		panic("AssemblyEnd without AssemblyBegin")
	}
	b.assembling = false
	b.assembled = true
}

func (b *matBase) SetNullSpace(ns *NullSpace)     { b.nullsp = ns }
func (b *matBase) NullSpace() *NullSpace          { return b.nullsp }
func (b *matBase) SetNearNullSpace(ns *NullSpace) { b.nearNullsp = ns }
func (b *matBase) NearNullSpace() *NullSpace      { return b.nearNullsp }

// CreateVecs returns vectors laid out like x and y of y = A x
func (b *matBase) CreateVecs() (right, left *Vec) {
	b.alive()
	return newVecOn(b.comm, b.n, b.N), newVecOn(b.comm, b.m, b.M)
}

func (b *matBase) Destroy() {
	b.destroyed = true
	b.nullsp, b.nearNullsp = nil, nil
}

func (b *matBase) alive() {
	if b.destroyed {
		panic(ErrDestroyed)
	}
}

// checkMult validates the operands of y = A x
func (b *matBase) checkMult(x, y *Vec) error {
	if b.destroyed {
		return ErrDestroyed
	}
	if !b.assembled {
		return ErrNotAssembled
	}
	if x.LocalSize() != b.n || y.LocalSize() != b.m {
		return fmt.Errorf("mult: x has %d and y has %d local entries, matrix is %d x %d",
			x.LocalSize(), y.LocalSize(), b.m, b.n)
	}
	return nil
}
