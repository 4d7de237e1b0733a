package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// three partitions of a 7 dof chain, partitions overlap in one dof each,
// dof 3 is held by all three
func threeWay() [][]int {
	return [][]int{
		{0, 1, 3},
		{3, 4, 2},
		{3, 5, 6},
	}
}

func TestDofConnector_Indices(t *testing.T) {
	dc, err := NewDofConnector(threeWay())
	require.NoError(t, err)
	require.NoError(t, dc.Verify())

	assert.Equal(t, 7, dc.NumGlobalDofs)
	assert.Equal(t, []int{0, 1, 2}, dc.DofPartitions[3])
	assert.Equal(t, []int{1}, dc.DofPartitions[2])

	assert.Equal(t, []int{2}, dc.GetPickIndices(0, 1))
	assert.Equal(t, []int{0}, dc.GetPlaceIndices(1, 0))
	assert.Equal(t, []int{0}, dc.GetPickIndices(2, 0))
	assert.Nil(t, dc.GetPickIndices(0, 3))

	plan := dc.ExchangePlan(1)
	assert.Equal(t, map[int][]int{0: {0}, 2: {0}}, plan)

	assert.Equal(t, [][]int{{0, 2}, nil, nil}, dc.DistantPartitions(1))
}

func TestDofConnector_OrderFollowsGlobalNumbering(t *testing.T) {
	// local orders differ between the two partitions
	dc, err := NewDofConnector([][]int{
		{9, 4, 7, 1},
		{7, 1, 9, 0},
	})
	require.NoError(t, err)
	require.NoError(t, dc.Verify())
	// shared globals in increasing order: 1, 7, 9
	assert.Equal(t, []int{3, 2, 0}, dc.GetPickIndices(0, 1))
	assert.Equal(t, []int{1, 0, 2}, dc.GetPickIndices(1, 0))
	assert.Equal(t, dc.GetPickIndices(1, 0), dc.GetPlaceIndices(1, 0))
}

func TestDofConnector_Errors(t *testing.T) {
	_, err := NewDofConnector(nil)
	assert.Error(t, err)
	_, err = NewDofConnector([][]int{{0, 0}})
	assert.Error(t, err)
	_, err = NewDofConnector([][]int{{-1}})
	assert.Error(t, err)
}

func TestDofConnector_VerifyDetectsCorruption(t *testing.T) {
	dc, err := NewDofConnector(threeWay())
	require.NoError(t, err)
	dc.PlaceIndices[1][0].Indices = []int{1}
	assert.Error(t, dc.Verify())
}
