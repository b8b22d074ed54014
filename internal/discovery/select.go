package discovery

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

// Selector picks one encrypted settings file at random. All candidates are
// equally trusted lab configurations, so the choice only spreads load across
// lab accounts and needs no cryptographic randomness.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector returns a Selector seeded from the runtime's random source
func NewSelector() *Selector {
	return NewSeededSelector(rand.Uint64())
}

// NewSeededSelector returns a Selector with reproducible choices
func NewSeededSelector(seed uint64) *Selector {
	return &Selector{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Select lists the files in dir matching pattern and returns one of them
// uniformly at random.
func (s *Selector) Select(dir, pattern string) (string, error) {
	files, err := ListEncryptedFiles(dir, pattern)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoEncryptedFiles, dir)
	}

	s.mu.Lock()
	i := s.rng.IntN(len(files))
	s.mu.Unlock()

	return files[i], nil
}
