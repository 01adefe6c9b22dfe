package testutil

import (
	"math/rand"
	"sync"
)

// RNG wraps a seeded math/rand source. It is safe for concurrent use.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset rewinds the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// RandomBytes returns n pseudo-random bytes.
func (r *RNG) RandomBytes(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	_, _ = r.rand.Read(b)
	return b
}

const nameAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomName returns an 8.3 name with a base of 1 to 8 and an extension of 0
// to 3 characters, already upper case.
func (r *RNG) RandomName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	base := r.pick(1 + r.rand.Intn(8))
	ext := r.pick(r.rand.Intn(4))
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// Text returns n bytes of printable ASCII.
func (r *RNG) Text(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(' ' + r.rand.Intn('~'-' '+1))
	}
	return b
}

func (r *RNG) pick(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = nameAlphabet[r.rand.Intn(len(nameAlphabet))]
	}
	return string(b)
}
