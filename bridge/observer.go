package bridge

import (
	"sync/atomic"
	"time"
)

// Direction of a vector transfer
type Direction uint8

const (
	ToExternal Direction = iota
	FromExternal
)

func (d Direction) String() string {
	if d == ToExternal {
		return "to-external"
	}
	return "from-external"
}

// Observer receives translation events. Implement it to feed a metrics system.
type Observer interface {
	// OnMatrixBuild is called when an external matrix handle is built.
	// kind is the external matrix type, rows the local scalar rows.
	OnMatrixBuild(kind string, rows, blocks int, duration time.Duration, err error)

	// OnValuesUpdate is called after UpdateValues.
	OnValuesUpdate(duration time.Duration, err error)

	// OnVectorTransfer is called after a vector map copy of n local values.
	OnVectorTransfer(dir Direction, n int)

	// OnShellMult is called after each shell callback.
	OnShellMult(duration time.Duration, err error)

	// OnNullSpace is called after a null space of n vectors is built.
	OnNullSpace(n int, duration time.Duration, err error)
}

// NoopObserver ignores every event
type NoopObserver struct{}

func (NoopObserver) OnMatrixBuild(string, int, int, time.Duration, error) {}
func (NoopObserver) OnValuesUpdate(time.Duration, error)                 {}
func (NoopObserver) OnVectorTransfer(Direction, int)                     {}
func (NoopObserver) OnShellMult(time.Duration, error)                    {}
func (NoopObserver) OnNullSpace(int, time.Duration, error)               {}

// BasicObserver counts events in memory
type BasicObserver struct {
	MatrixBuilds    atomic.Int64
	BuildErrors     atomic.Int64
	BlocksBuilt     atomic.Int64
	ValuesUpdates   atomic.Int64
	UpdateErrors    atomic.Int64
	ToExternal      atomic.Int64
	FromExternal    atomic.Int64
	ValuesMoved     atomic.Int64
	ShellMults      atomic.Int64
	ShellErrors     atomic.Int64
	ShellTotalNanos atomic.Int64
	NullSpaces      atomic.Int64
	NullSpaceErrors atomic.Int64
}

func (b *BasicObserver) OnMatrixBuild(_ string, _, blocks int, _ time.Duration, err error) {
	b.MatrixBuilds.Add(1)
	b.BlocksBuilt.Add(int64(blocks))
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

func (b *BasicObserver) OnValuesUpdate(_ time.Duration, err error) {
	b.ValuesUpdates.Add(1)
	if err != nil {
		b.UpdateErrors.Add(1)
	}
}

func (b *BasicObserver) OnVectorTransfer(dir Direction, n int) {
	if dir == ToExternal {
		b.ToExternal.Add(1)
	} else {
		b.FromExternal.Add(1)
	}
	b.ValuesMoved.Add(int64(n))
}

func (b *BasicObserver) OnShellMult(duration time.Duration, err error) {
	b.ShellMults.Add(1)
	b.ShellTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ShellErrors.Add(1)
	}
}

func (b *BasicObserver) OnNullSpace(_ int, _ time.Duration, err error) {
	b.NullSpaces.Add(1)
	if err != nil {
		b.NullSpaceErrors.Add(1)
	}
}
