package order

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	numberCapacity = 1_000_000
	numberFPR      = 0.0001
)

// NumberGenerator issues human-readable order numbers of the form
// ORD-<unix millis>-<4 digits>.
//
// Issued numbers are remembered in a bloom filter and a number that may have
// been issued before is regenerated. False positives only cost a retry. The
// filter is reset after capacity numbers, when the millisecond prefix has long
// moved on.
type NumberGenerator struct {
	mu       sync.Mutex
	seen     *bloom.BloomFilter
	issued   uint
	capacity uint
	rand     func(n int) int
}

// NewNumberGenerator creates a generator sized for capacity numbers between
// filter resets.
func NewNumberGenerator(capacity uint) *NumberGenerator {
	if capacity == 0 {
		capacity = numberCapacity
	}
	return &NumberGenerator{
		seen:     bloom.NewWithEstimates(capacity, numberFPR),
		capacity: capacity,
		rand:     rand.IntN,
	}
}

// Next returns a number not issued by this generator before.
func (g *NumberGenerator) Next(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.issued >= g.capacity {
		g.seen.ClearAll()
		g.issued = 0
	}

	for {
		n := fmt.Sprintf("ORD-%d-%04d", now.UnixMilli(), g.rand(10000))
		if !g.seen.TestAndAddString(n) {
			g.issued++
			return n
		}
		now = now.Add(time.Millisecond)
	}
}
