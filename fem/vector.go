package fem

import (
	"fmt"

	"github.com/notargets/DGBridge/comm"
)

// Status is the distribution state of a parallel vector
type Status uint8

const (
	// NotParallel vectors live on one rank only
	NotParallel Status = iota
	// Cumulated vectors hold the full value of every shared dof on each rank
	Cumulated
	// Distributed vectors hold partial sums of shared dofs, the full value is their sum
	Distributed
)

func (s Status) String() string {
	switch s {
	case Cumulated:
		return "cumulated"
	case Distributed:
		return "distributed"
	default:
		return "not-parallel"
	}
}

// Vector stores EntrySize() values per dof, contiguously
type Vector struct {
	data      []float64
	entrySize int
	pardofs   *ParallelDofs
	status    Status
}

// NewVector allocates a zero, single rank vector of ndof entries
func NewVector(ndof, entrySize int) *Vector {
	if entrySize < 1 {
		panic(fmt.Sprintf("entry size must be positive, got %d", entrySize))
	}
	return &Vector{
		data:      make([]float64, ndof*entrySize),
		entrySize: entrySize,
	}
}

// NewVectorFrom wraps data as a single rank vector
func NewVectorFrom(entrySize int, data []float64) *Vector {
	if entrySize < 1 || len(data)%entrySize != 0 {
		panic(fmt.Sprintf("length %d is not a multiple of entry size %d", len(data), entrySize))
	}
	return &Vector{data: data, entrySize: entrySize}
}

// NewParallelVector allocates a zero vector over the local dofs of pd
func NewParallelVector(pd *ParallelDofs, status Status) *Vector {
	v := NewVector(pd.NDofLocal(), pd.EntrySize())
	v.pardofs = pd
	v.status = status
	return v
}

func (v *Vector) Size() int                   { return len(v.data) / v.entrySize }
func (v *Vector) EntrySize() int              { return v.entrySize }
func (v *Vector) FV() []float64               { return v.data }
func (v *Vector) ParallelDofs() *ParallelDofs { return v.pardofs }
func (v *Vector) Status() Status              { return v.status }

// SetStatus changes the state flag without touching the values
func (v *Vector) SetStatus(s Status) {
	if v.pardofs == nil {
		return
	}
	v.status = s
}

// Entry returns the values of dof k
func (v *Vector) Entry(k int) []float64 {
	return v.data[k*v.entrySize : (k+1)*v.entrySize]
}

// SetScalar sets every value to a; parallel vectors become cumulated
func (v *Vector) SetScalar(a float64) {
	for i := range v.data {
		v.data[i] = a
	}
	v.SetStatus(Cumulated)
}

// Copy returns an independent vector with the same layout, values and status
func (v *Vector) Copy() *Vector {
	return &Vector{
		data:      append([]float64(nil), v.data...),
		entrySize: v.entrySize,
		pardofs:   v.pardofs,
		status:    v.status,
	}
}

// Cumulate sums the partial values of shared dofs across ranks. Collective when
// the vector is distributed.
func (v *Vector) Cumulate() {
	if v.pardofs == nil || v.status != Distributed {
		return
	}
	pd, bs := v.pardofs, v.entrySize
	send := make(map[int][]float64, len(pd.exchange))
	for q, ks := range pd.exchange {
		buf := make([]float64, 0, len(ks)*bs)
		for _, k := range ks {
			buf = append(buf, v.Entry(k)...)
		}
		send[q] = buf
	}
	for src, buf := range comm.ExchangeFloats(pd.comm, send) {
		for i, k := range pd.exchange[src] {
			e := v.Entry(k)
			for l := range e {
				e[l] += buf[i*bs+l]
			}
		}
	}
	v.status = Cumulated
}

// Distribute keeps the value of every shared dof on its master only
func (v *Vector) Distribute() {
	if v.pardofs == nil || v.status != Cumulated {
		return
	}
	for k := 0; k < v.Size(); k++ {
		if !v.pardofs.IsMasterDof(k) {
			e := v.Entry(k)
			for l := range e {
				e[l] = 0
			}
		}
	}
	v.status = Distributed
}

func (v *Vector) String() string {
	return fmt.Sprintf("Vector(%d x %d, %s)", v.Size(), v.entrySize, v.status)
}
