package comm

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelf(t *testing.T) {
	c := Self()
	assert.Equal(t, 0, c.Rank())
	assert.Equal(t, 1, c.Size())
	assert.True(t, IsSelf(c))
	assert.Equal(t, 7, AllReduceInt(c, 7, Sum))
	xs := []float64{1, 2}
	AllReduceFloats(c, xs)
	assert.Equal(t, []float64{1, 2}, xs)
	off, tot := ExclusiveScan(c, 5)
	assert.Equal(t, 0, off)
	assert.Equal(t, 5, tot)
	assert.Empty(t, ExchangeFloats(c, nil))
}

func TestWorld_Reductions(t *testing.T) {
	const n = 4
	var mu sync.Mutex
	got := make(map[int][]int)
	err := Run(n, func(c Communicator) error {
		r := c.Rank()
		sum := AllReduceInt(c, r+1, Sum)
		max := AllReduceInt(c, r, Max)
		min := AllReduceInt(c, r, Min)
		off, tot := ExclusiveScan(c, r+1)
		mu.Lock()
		got[r] = []int{sum, max, min, off, tot}
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	offsets := []int{0, 1, 3, 6}
	for r := 0; r < n; r++ {
		assert.Equal(t, []int{10, 3, 0, offsets[r], 10}, got[r])
	}
}

func TestWorld_RepeatedCollectives(t *testing.T) {
	err := Run(3, func(c Communicator) error {
		for it := 0; it < 200; it++ {
			xs := []float64{float64(c.Rank()), float64(it)}
			AllReduceFloats(c, xs)
			if xs[0] != 3 || xs[1] != float64(3*it) {
				return errors.New("bad reduction")
			}
			all := AllGatherFloats(c, []float64{float64(c.Rank())})
			if len(all) != 3 || all[2] != 2 {
				return errors.New("bad gather")
			}
		}
		return nil
	})
	assert.NoError(t, err)
}

func TestWorld_Exchange(t *testing.T) {
	err := Run(3, func(c Communicator) error {
		r := c.Rank()
		send := map[int][]float64{}
		for q := 0; q < c.Size(); q++ {
			if q != r {
				send[q] = []float64{float64(10*r + q)}
			}
		}
		recv := ExchangeFloats(c, send)
		if len(recv) != 2 {
			return errors.New("expected two messages")
		}
		for src, vals := range recv {
			if vals[0] != float64(10*src+r) {
				return errors.New("wrong payload")
			}
		}
		ints := ExchangeInts(c, map[int][]int{(r + 1) % 3: {r}})
		if ints[(r+2)%3][0] != (r+2)%3 {
			return errors.New("wrong int payload")
		}
		return nil
	})
	assert.NoError(t, err)
}

func TestRun_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := Run(2, func(c Communicator) error {
		c.Barrier()
		if c.Rank() == 1 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "rank 1")
}

func TestNeighbors(t *testing.T) {
	assert.Equal(t, []int{0, 2, 5}, Neighbors(map[int]bool{5: true, 0: true, 2: false}))
}
