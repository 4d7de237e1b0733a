package partitions

import (
	"fmt"
	"slices"

	"github.com/notargets/DGBridge/comm"
	"github.com/notargets/DGBridge/dofs"
	"github.com/notargets/DGBridge/fem"
	"github.com/notargets/DGBridge/utils"
)

// DofLayout distributes the dofs of a mesh over the partitions of a layout.
// Each partition holds a copy of every dof touched by its elements, numbered
// locally in increasing global order.
type DofLayout struct {
	Mesh      *DofMesh
	Layout    *PartitionLayout
	Connector *utils.DofConnector

	// elemDofs[e] are the local numbers of element e's dofs in its partition
	elemDofs [][]int
}

// BuildDofLayout numbers the dofs of every partition and connects the copies
func BuildDofLayout(mesh *DofMesh, layout *PartitionLayout) (*DofLayout, error) {
	if layout.TotalElements != mesh.NumElements {
		return nil, fmt.Errorf("layout has %d elements, mesh has %d",
			layout.TotalElements, mesh.NumElements)
	}
	l2g := make([][]int, layout.NumPartitions)
	for p, part := range layout.Partitions {
		var ds []int
		for _, e := range part.Elements {
			ds = append(ds, mesh.EToD[e]...)
		}
		slices.Sort(ds)
		l2g[p] = slices.Compact(ds)
	}
	dc, err := utils.NewDofConnector(l2g)
	if err != nil {
		return nil, fmt.Errorf("connect partition dofs: %w", err)
	}

	dl := &DofLayout{
		Mesh:      mesh,
		Layout:    layout,
		Connector: dc,
		elemDofs:  make([][]int, mesh.NumElements),
	}
	for e, ds := range mesh.EToD {
		g2l := dc.GlobalToLocalDof[layout.EToP[e]]
		local := make([]int, len(ds))
		for i, d := range ds {
			local[i] = g2l[d]
		}
		dl.elemDofs[e] = local
	}
	return dl, nil
}

// NumLocalDofs is the number of dof copies held by partition p
func (dl *DofLayout) NumLocalDofs(p int) int { return len(dl.Connector.LocalToGlobalDof[p]) }

// LocalToGlobal returns partition p's local to global dof numbering
func (dl *DofLayout) LocalToGlobal(p int) []int { return dl.Connector.LocalToGlobalDof[p] }

// SharedDofs counts the dofs held by more than one partition
func (dl *DofLayout) SharedDofs() (n int) {
	for _, parts := range dl.Connector.DofPartitions {
		if len(parts) > 1 {
			n++
		}
	}
	return
}

// ParallelDofs describes the calling rank's partition, the partition whose ID
// is the rank
func (dl *DofLayout) ParallelDofs(c comm.Communicator, entrySize int) *fem.ParallelDofs {
	if c.Size() != dl.Layout.NumPartitions {
		panic(fmt.Sprintf("%d ranks for %d partitions", c.Size(), dl.Layout.NumPartitions))
	}
	p := c.Rank()
	return fem.NewParallelDofs(c, entrySize, dl.Connector.DistantPartitions(p), dl.Connector.ExchangePlan(p))
}

// ElementBlock returns the bs x bs block coupling local dofs i and j of element e,
// row-major
type ElementBlock func(e, i, j int) []float64

// LocalMatrix assembles partition p's piece of a global matrix from element
// contributions. Summing the pieces over the shared dofs gives the global matrix.
func (dl *DofLayout) LocalMatrix(p, bs int, block ElementBlock) *fem.SparseMatrix {
	n := dl.NumLocalDofs(p)
	b := fem.NewSparseBuilder(n, n, bs, bs)
	for _, e := range dl.Layout.Partitions[p].Elements {
		ds := dl.elemDofs[e]
		for i, di := range ds {
			for j, dj := range ds {
				b.Add(di, dj, block(e, i, j)...)
			}
		}
	}
	return b.Build()
}

// Subset selects partition p's local dofs whose global number satisfies keep
func (dl *DofLayout) Subset(p int, keep func(global int) bool) *dofs.Subset {
	l2g := dl.LocalToGlobal(p)
	s := dofs.NewSubset(len(l2g))
	for k, g := range l2g {
		if keep(g) {
			s.Set(k)
		}
	}
	return s
}

// LocalVector fills a cumulated vector on pd from a function of the global dof
// number, which returns the bs values of that dof
func (dl *DofLayout) LocalVector(pd *fem.ParallelDofs, f func(global int) []float64) *fem.Vector {
	v := fem.NewParallelVector(pd, fem.Cumulated)
	for k, g := range dl.LocalToGlobal(pd.Comm().Rank()) {
		copy(v.Entry(k), f(g))
	}
	return v
}
