// Package comm provides the process-group abstraction the distributed objects
// communicate through. A World runs its ranks as goroutines of one process,
// each rank executing single-threaded code that meets the others only inside
// collective calls.
package comm

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Communicator is one rank's view of a process group
type Communicator interface {
	Rank() int
	Size() int
	// Barrier blocks until every rank has entered it
	Barrier()
	// AllGather deposits v and returns every rank's contribution indexed by rank.
	// The returned slice must be treated as read-only.
	AllGather(v any) []any
}

type self struct{}

// Self returns the single-rank communicator
func Self() Communicator { return self{} }

func (self) Rank() int             { return 0 }
func (self) Size() int             { return 1 }
func (self) Barrier()              {}
func (self) AllGather(v any) []any { return []any{v} }

// IsSelf reports whether c spans a single rank
func IsSelf(c Communicator) bool {
	return c == nil || c.Size() == 1
}

// world is the shared rendezvous of an in-process group
type world struct {
	mu      sync.Mutex
	cond    *sync.Cond
	size    int
	arrived int
	gen     uint64
	slots   []any
	result  []any
}

type member struct {
	w    *world
	rank int
}

// NewWorld returns the communicators of an in-process group of n ranks
func NewWorld(n int) []Communicator {
	if n < 1 {
		panic(fmt.Sprintf("world size must be positive, got %d", n))
	}
	w := &world{size: n, slots: make([]any, n)}
	w.cond = sync.NewCond(&w.mu)
	comms := make([]Communicator, n)
	for r := range comms {
		comms[r] = &member{w: w, rank: r}
	}
	return comms
}

func (m *member) Rank() int { return m.rank }
func (m *member) Size() int { return m.w.size }

func (m *member) Barrier() { m.AllGather(nil) }

func (m *member) AllGather(v any) []any {
	w := m.w
	w.mu.Lock()
	defer w.mu.Unlock()
	w.slots[m.rank] = v
	w.arrived++
	if w.arrived == w.size {
		w.result = make([]any, w.size)
		copy(w.result, w.slots)
		w.arrived = 0
		w.gen++
		w.cond.Broadcast()
		return w.result
	}
	gen := w.gen
	for gen == w.gen {
		w.cond.Wait()
	}
	// the next generation cannot complete before this rank deposits again
	return w.result
}

// Run executes fn on every rank of a new n-rank world and waits for all of them.
// A rank that fails must still take part in the collectives the others reach,
// otherwise the group deadlocks.
func Run(n int, fn func(c Communicator) error) error {
	var g errgroup.Group
	for _, c := range NewWorld(n) {
		g.Go(func() error {
			if err := fn(c); err != nil {
				return fmt.Errorf("rank %d: %w", c.Rank(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
