package service

import (
	"math/rand"
	"sync"
	"time"
)

// ShuffleFunc returns a permutation of the indices 0..n-1.
type ShuffleFunc func(n int) []int

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// RandomPermutation is the default ShuffleFunc. Loader workers call it
// concurrently, so the shared source is guarded.
func RandomPermutation(n int) []int {
	rngMu.Lock()
	defer rngMu.Unlock()
	return fisherYates(n, rng)
}

// NewSeededShuffle returns a deterministic ShuffleFunc for reproducible banks.
func NewSeededShuffle(seed int64) ShuffleFunc {
	var mu sync.Mutex
	r := rand.New(rand.NewSource(seed))
	return func(n int) []int {
		mu.Lock()
		defer mu.Unlock()
		return fisherYates(n, r)
	}
}

// fisherYates shuffles the identity permutation; every ordering is equally
// likely.
func fisherYates(n int, r *rand.Rand) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}
