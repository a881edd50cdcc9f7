package adaptive

import (
	"math/rand/v2"
	"sync"
)

// Rand is the random source used for step sizes and tie-breaking.
type Rand interface {
	// IntN returns a value in [0, n).
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// DefaultRand returns the process-wide random source.
func DefaultRand() Rand { return globalRand{} }

type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSeededRand returns a deterministic, goroutine-safe source.
func NewSeededRand(seed uint64) Rand {
	return &lockedRand{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *lockedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.IntN(n)
}
