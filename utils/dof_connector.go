package utils

import (
	"fmt"
	"sort"
)

// DofConnector manages pick and place indices for dofs shared between partitions
type DofConnector struct {
	NumPartitions int
	NumGlobalDofs int

	// Partition mappings
	LocalToGlobalDof [][]int       // [partition][localDof] → globalDof
	GlobalToLocalDof []map[int]int // [partition][globalDof] → localDof
	DofPartitions    [][]int       // [globalDof] → partitions holding a copy, sorted

	// Pick/Place indices per partition pair
	PickIndices  [][]PickBuffer  // [sourcePartition][targetPartition]
	PlaceIndices [][]PlaceBuffer // [targetPartition][sourcePartition]
}

// PickBuffer contains local dof indices gathered for sending
type PickBuffer struct {
	Indices         []int
	TargetPartition int
}

// PlaceBuffer contains local dof indices receiving the matching picked values
type PlaceBuffer struct {
	Indices         []int
	SourcePartition int
}

// NewDofConnector creates a dof connector from each partition's local to global dof map.
// Local dof lists must not contain duplicates.
func NewDofConnector(localToGlobal [][]int) (*DofConnector, error) {
	if len(localToGlobal) == 0 {
		return nil, fmt.Errorf("no partitions")
	}

	dc := &DofConnector{
		NumPartitions:    len(localToGlobal),
		LocalToGlobalDof: localToGlobal,
	}

	if err := dc.buildPartitionMappings(); err != nil {
		return nil, err
	}

	dc.initializeBuffers()
	dc.BuildIndices()

	return dc, nil
}

// buildPartitionMappings creates the reverse numbering and the sharing lists
func (dc *DofConnector) buildPartitionMappings() error {
	dc.GlobalToLocalDof = make([]map[int]int, dc.NumPartitions)
	for p, l2g := range dc.LocalToGlobalDof {
		dc.GlobalToLocalDof[p] = make(map[int]int, len(l2g))
		for local, global := range l2g {
			if global < 0 {
				return fmt.Errorf("partition %d: negative global dof %d", p, global)
			}
			if _, dup := dc.GlobalToLocalDof[p][global]; dup {
				return fmt.Errorf("partition %d: global dof %d appears twice", p, global)
			}
			dc.GlobalToLocalDof[p][global] = local
			if global+1 > dc.NumGlobalDofs {
				dc.NumGlobalDofs = global + 1
			}
		}
	}

	dc.DofPartitions = make([][]int, dc.NumGlobalDofs)
	for p, l2g := range dc.LocalToGlobalDof {
		for _, global := range l2g {
			dc.DofPartitions[global] = append(dc.DofPartitions[global], p)
		}
	}
	return nil
}

// initializeBuffers creates empty pick and place buffer structures
func (dc *DofConnector) initializeBuffers() {
	dc.PickIndices = make([][]PickBuffer, dc.NumPartitions)
	dc.PlaceIndices = make([][]PlaceBuffer, dc.NumPartitions)

	for p := 0; p < dc.NumPartitions; p++ {
		dc.PickIndices[p] = make([]PickBuffer, dc.NumPartitions)
		dc.PlaceIndices[p] = make([]PlaceBuffer, dc.NumPartitions)

		for q := 0; q < dc.NumPartitions; q++ {
			dc.PickIndices[p][q] = PickBuffer{TargetPartition: q}
			dc.PlaceIndices[p][q] = PlaceBuffer{SourcePartition: q}
		}
	}
}

// BuildIndices walks the global dofs in increasing order, so both sides of
// every pair list their shared dofs in the same order
func (dc *DofConnector) BuildIndices() {
	for global, parts := range dc.DofPartitions {
		for _, p := range parts {
			for _, q := range parts {
				if p == q {
					continue
				}
				// p sends its copy of global to q, q places it on its own copy
				dc.PickIndices[p][q].Indices = append(dc.PickIndices[p][q].Indices,
					dc.GlobalToLocalDof[p][global])
				dc.PlaceIndices[q][p].Indices = append(dc.PlaceIndices[q][p].Indices,
					dc.GlobalToLocalDof[q][global])
			}
		}
	}
}

// GetPickIndices returns pick indices for sending from source to target partition
func (dc *DofConnector) GetPickIndices(sourcePartition, targetPartition int) []int {
	if sourcePartition < 0 || sourcePartition >= dc.NumPartitions ||
		targetPartition < 0 || targetPartition >= dc.NumPartitions {
		return nil
	}
	return dc.PickIndices[sourcePartition][targetPartition].Indices
}

// GetPlaceIndices returns place indices for target partition receiving from source
func (dc *DofConnector) GetPlaceIndices(targetPartition, sourcePartition int) []int {
	if targetPartition < 0 || targetPartition >= dc.NumPartitions ||
		sourcePartition < 0 || sourcePartition >= dc.NumPartitions {
		return nil
	}
	return dc.PlaceIndices[targetPartition][sourcePartition].Indices
}

// ExchangePlan returns partition p's plan: for each neighbor q, the local dofs
// shared with q. Because pick and place lists follow the same global order, the
// same list serves for sending to and receiving from q.
func (dc *DofConnector) ExchangePlan(p int) map[int][]int {
	plan := make(map[int][]int)
	for q := 0; q < dc.NumPartitions; q++ {
		if idx := dc.PickIndices[p][q].Indices; len(idx) > 0 {
			plan[q] = idx
		}
	}
	return plan
}

// DistantPartitions returns, for every local dof of partition p, the other
// partitions holding a copy
func (dc *DofConnector) DistantPartitions(p int) [][]int {
	out := make([][]int, len(dc.LocalToGlobalDof[p]))
	for local, global := range dc.LocalToGlobalDof[p] {
		for _, q := range dc.DofPartitions[global] {
			if q != p {
				out[local] = append(out[local], q)
			}
		}
		sort.Ints(out[local])
	}
	return out
}

// Verify checks index validity and conservation properties
func (dc *DofConnector) Verify() error {
	// Verify 1: Local validity - all pick and place indices are within bounds
	for p := 0; p < dc.NumPartitions; p++ {
		nLocal := len(dc.LocalToGlobalDof[p])
		for q := 0; q < dc.NumPartitions; q++ {
			for _, idx := range dc.PickIndices[p][q].Indices {
				if idx < 0 || idx >= nLocal {
					return fmt.Errorf("invalid pick index %d for partition %d (max %d)",
						idx, p, nLocal-1)
				}
			}
			for _, idx := range dc.PlaceIndices[p][q].Indices {
				if idx < 0 || idx >= nLocal {
					return fmt.Errorf("invalid place index %d for partition %d (max %d)",
						idx, p, nLocal-1)
				}
			}
		}
	}

	// Verify 2: Correspondence - pick and place arrays name the same global dofs
	for p := 0; p < dc.NumPartitions; p++ {
		for q := 0; q < dc.NumPartitions; q++ {
			pick := dc.PickIndices[p][q].Indices
			place := dc.PlaceIndices[q][p].Indices
			if len(pick) != len(place) {
				return fmt.Errorf("length mismatch: pick[%d][%d]=%d, place[%d][%d]=%d",
					p, q, len(pick), q, p, len(place))
			}
			for i := range pick {
				gp := dc.LocalToGlobalDof[p][pick[i]]
				gq := dc.LocalToGlobalDof[q][place[i]]
				if gp != gq {
					return fmt.Errorf("pick[%d][%d][%d] is global %d, place holds global %d",
						p, q, i, gp, gq)
				}
			}
		}
	}

	// Verify 3: Conservation - every copy talks to every other copy once
	totalPicks, expected := 0, 0
	for p := 0; p < dc.NumPartitions; p++ {
		for q := 0; q < dc.NumPartitions; q++ {
			totalPicks += len(dc.PickIndices[p][q].Indices)
		}
	}
	for _, parts := range dc.DofPartitions {
		expected += len(parts) * (len(parts) - 1)
	}
	if totalPicks != expected {
		return fmt.Errorf("conservation error: total picks %d != shared copies %d",
			totalPicks, expected)
	}

	return nil
}
