package linalg

import (
	"fmt"

	"github.com/notargets/DGBridge/comm"
)

type Op uint8

const (
	OpMult Op = iota
)

// MultFunc computes y = A x for a shell matrix
type MultFunc func(a *Shell, x, y *Vec) error

// Shell is a matrix defined only by a user supplied product and context
type Shell struct {
	matBase
	ctx  any
	mult MultFunc
}

// NewShell creates a shell with m x n local sizes. Collective.
func NewShell(c comm.Communicator, m, n, M, N int, ctx any) *Shell {
	s := &Shell{matBase: newMatBase(c, 1, m, n, M, N), ctx: ctx}
	s.assembled = true
	return s
}

func (s *Shell) Type() MatType { return MatTypeShell }

// SetBlockSize records the block size reported by BlockSize
func (s *Shell) SetBlockSize(bs int) {
	if bs < 1 || s.m%bs != 0 || s.n%bs != 0 {
		panic(fmt.Sprintf("block size %d does not divide local sizes %d x %d", bs, s.m, s.n))
	}
	s.bs = bs
}

// SetOperation registers the callback for op
func (s *Shell) SetOperation(op Op, fn MultFunc) {
	s.alive()
	switch op {
	case OpMult:
		s.mult = fn
	default:
		panic(fmt.Sprintf("unsupported shell operation %d", op))
	}
}

// Context returns the value given at creation, nil after Destroy
func (s *Shell) Context() any { return s.ctx }

func (s *Shell) Mult(x, y *Vec) error {
	if err := s.checkMult(x, y); err != nil {
		return err
	}
	if s.mult == nil {
		return fmt.Errorf("shell matrix has no mult operation")
	}
	return s.mult(s, x, y)
}

// Destroy drops the context and the callbacks
func (s *Shell) Destroy() {
	s.matBase.Destroy()
	s.ctx, s.mult = nil, nil
}
