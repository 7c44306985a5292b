package repl

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/czhu95/zsim/stats"
)

// LRU evicts the least recently used block of a set. Invalid blocks are taken
// first, in LRU-queue order. Recency lives in the akita directory's LRU queue,
// which the array refreshes on every hit and insertion; a fresh set queues
// its ways by index, so ties break towards the lowest way.
type LRU struct {
	finder *akitacache.LRUVictimFinder
	prof   profile
}

// NewLRU creates an LRU policy.
func NewLRU() *LRU {
	return &LRU{
		finder: akitacache.NewLRUVictimFinder(),
		prof:   newProfile(),
	}
}

// FindVictim returns the block to replace in set.
func (p *LRU) FindVictim(set *akitacache.Set) *akitacache.Block {
	b := p.finder.FindVictim(set)
	p.prof.recordVictim(b)

	return b
}

// Update records a hit.
func (p *LRU) Update(_ *akitacache.Block) {
	p.prof.hits.Inc()
}

// Replaced records an insertion.
func (p *LRU) Replaced(_ *akitacache.Block) {}

// InitStats registers the policy counters.
func (p *LRU) InitStats(parent *stats.Aggregate) {
	p.prof.initStats(parent, "LRU replacement")
}
