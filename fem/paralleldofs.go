package fem

import (
	"fmt"
	"sort"

	"github.com/notargets/DGBridge/comm"
	"github.com/notargets/DGBridge/dofs"
)

// ParallelDofs describes how the local dofs of one rank are shared with other ranks.
// A shared dof is owned by exactly one rank, its master, the lowest rank holding a copy.
type ParallelDofs struct {
	comm      comm.Communicator
	entrySize int
	distProcs [][]int // other ranks holding a copy, sorted
	master    []bool

	// exchange[q] lists the local dofs shared with rank q, ordered the same way
	// on both sides
	exchange map[int][]int
}

// NewParallelDofs builds the ownership description of ndof local dofs.
// distProcs[k] lists the other ranks holding dof k. When exchange is nil the
// plan is derived from distProcs in local dof order, which requires every pair
// of ranks to number their shared dofs in the same relative order.
func NewParallelDofs(c comm.Communicator, entrySize int, distProcs [][]int, exchange map[int][]int) *ParallelDofs {
	if entrySize < 1 {
		panic(fmt.Sprintf("entry size must be positive, got %d", entrySize))
	}
	if c == nil {
		c = comm.Self()
	}
	pd := &ParallelDofs{
		comm:      c,
		entrySize: entrySize,
		distProcs: make([][]int, len(distProcs)),
		master:    make([]bool, len(distProcs)),
	}
	me := c.Rank()
	for k, procs := range distProcs {
		ps := append([]int(nil), procs...)
		sort.Ints(ps)
		pd.distProcs[k] = ps
		pd.master[k] = len(ps) == 0 || me < ps[0]
	}
	if exchange == nil {
		exchange = make(map[int][]int)
		for k, ps := range pd.distProcs {
			for _, q := range ps {
				exchange[q] = append(exchange[q], k)
			}
		}
	}
	pd.exchange = exchange
	return pd
}

// SequentialDofs describes ndof dofs that are all local to a single rank
func SequentialDofs(ndof, entrySize int) *ParallelDofs {
	return NewParallelDofs(comm.Self(), entrySize, make([][]int, ndof), nil)
}

func (pd *ParallelDofs) Comm() comm.Communicator { return pd.comm }
func (pd *ParallelDofs) NDofLocal() int          { return len(pd.master) }
func (pd *ParallelDofs) EntrySize() int          { return pd.entrySize }
func (pd *ParallelDofs) IsMasterDof(k int) bool  { return pd.master[k] }
func (pd *ParallelDofs) DistantProcs(k int) []int {
	return pd.distProcs[k]
}

// MasterRank is the rank owning local dof k
func (pd *ParallelDofs) MasterRank(k int) int {
	if pd.master[k] {
		return pd.comm.Rank()
	}
	return pd.distProcs[k][0]
}

// Neighbors returns the ranks sharing at least one dof with this rank
func (pd *ParallelDofs) Neighbors() []int { return comm.Neighbors(pd.exchange) }

// ExchangeDofs returns the local dofs shared with rank q in exchange order
func (pd *ParallelDofs) ExchangeDofs(q int) []int { return pd.exchange[q] }

// NMasterDofs counts the master dofs included in subset
func (pd *ParallelDofs) NMasterDofs(subset *dofs.Subset) (n int) {
	for k, m := range pd.master {
		if m && subset.Test(k) {
			n++
		}
	}
	return
}

// EnumerateGlobally assigns a global number to every local dof in subset.
// Master dofs are numbered contiguously, rank after rank, in increasing local order;
// copies on other ranks receive their master's number; dofs outside subset get -1.
// It returns the numbering and the global number of dofs. Collective.
func (pd *ParallelDofs) EnumerateGlobally(subset *dofs.Subset) (globnums []int, nGlobal int) {
	nOwned := pd.NMasterDofs(subset)
	offset, total := comm.ExclusiveScan(pd.comm, nOwned)

	globnums = make([]int, pd.NDofLocal())
	next := offset
	for k := range globnums {
		globnums[k] = -1
		if pd.master[k] && subset.Test(k) {
			globnums[k] = next
			next++
		}
	}

	send := make(map[int][]int, len(pd.exchange))
	for q, ks := range pd.exchange {
		nums := make([]int, len(ks))
		for i, k := range ks {
			nums[i] = globnums[k]
		}
		send[q] = nums
	}
	for src, nums := range comm.ExchangeInts(pd.comm, send) {
		for i, k := range pd.exchange[src] {
			if pd.MasterRank(k) == src && subset.Test(k) {
				globnums[k] = nums[i]
			}
		}
	}
	return globnums, total
}
