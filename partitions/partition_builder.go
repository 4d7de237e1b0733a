package partitions

import (
	"fmt"
	"math"
)

// PartitionBuilder constructs partitions from mesh connectivity
type PartitionBuilder struct {
	Mesh *DofMesh

	// NumPartitions wins over TargetPartitionSize when positive
	NumPartitions       int
	TargetPartitionSize int
	Strategy            PartitionStrategy
}

// DofMesh is the element to dof connectivity of a finite element space
type DofMesh struct {
	NumElements int
	NumDofs     int
	EToD        [][]int // Element-to-dof connectivity, global dof numbers
}

// Validate checks that every element dof is in range
func (m *DofMesh) Validate() error {
	if len(m.EToD) != m.NumElements {
		return fmt.Errorf("EToD has %d rows for %d elements", len(m.EToD), m.NumElements)
	}
	for e, ds := range m.EToD {
		for _, d := range ds {
			if d < 0 || d >= m.NumDofs {
				return fmt.Errorf("element %d: dof %d outside [0,%d)", e, d, m.NumDofs)
			}
		}
	}
	return nil
}

// PartitionStrategy defines how elements are grouped
type PartitionStrategy int

const (
	BlockPartition PartitionStrategy = iota // Consecutive elements
	RoundRobin                              // Distribute cyclically
)

// BuildPartitions creates a partition layout from mesh connectivity
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if err := pb.Mesh.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mesh: %w", err)
	}
	numPartitions := pb.calculateNumPartitions()

	eToP, err := pb.partitionElements(numPartitions)
	if err != nil {
		return nil, err
	}
	partitions := pb.createPartitions(eToP, numPartitions)

	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      calculateKpartMax(partitions),
		TotalElements: pb.Mesh.NumElements,
		NumPartitions: numPartitions,
		EToP:          eToP,
	}
	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}
	return layout, nil
}

func (pb *PartitionBuilder) calculateNumPartitions() int {
	if pb.NumPartitions > 0 {
		return pb.NumPartitions
	}
	numPartitions := 1
	if pb.TargetPartitionSize > 0 {
		numPartitions = int(math.Ceil(float64(pb.Mesh.NumElements) / float64(pb.TargetPartitionSize)))
	}
	if numPartitions < 1 {
		numPartitions = 1
	}
	return numPartitions
}

// partitionElements assigns elements to partitions
func (pb *PartitionBuilder) partitionElements(numPartitions int) ([]int, error) {
	eToP := make([]int, pb.Mesh.NumElements)

	switch pb.Strategy {
	case BlockPartition:
		elementsPerPartition := int(math.Ceil(float64(pb.Mesh.NumElements) / float64(numPartitions)))
		if elementsPerPartition < 1 {
			elementsPerPartition = 1
		}
		for i := range eToP {
			eToP[i] = min(i/elementsPerPartition, numPartitions-1)
		}
	case RoundRobin:
		for i := range eToP {
			eToP[i] = i % numPartitions
		}
	default:
		return nil, fmt.Errorf("unknown partition strategy %d", pb.Strategy)
	}
	return eToP, nil
}

// createPartitions builds partition structures from element assignments
func (pb *PartitionBuilder) createPartitions(eToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)
	for i := range partitions {
		partitions[i] = Partition{ID: i, Elements: make([]int, 0)}
	}
	for elem, part := range eToP {
		partitions[part].Elements = append(partitions[part].Elements, elem)
		partitions[part].NumElements++
	}
	return partitions
}

func calculateKpartMax(partitions []Partition) int {
	kpartMax := 0
	for _, p := range partitions {
		kpartMax = max(kpartMax, p.NumElements)
	}
	return kpartMax
}
