package repl

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/czhu95/zsim/stats"
)

const (
	rrpvMax    = uint8(3)
	insertRRPV = uint8(2)
	hitRRPV    = uint8(0)
)

// SRRIP is static re-reference interval prediction with 2-bit counters.
// Inserted lines start at RRPV 2, hits reset to 0 and the victim is the first
// unlocked block, in LRU-queue order, whose RRPV is 3. When no block is at 3,
// every valid block is aged by one and the search repeats.
type SRRIP struct {
	rrpv map[*akitacache.Block]uint8
	prof profile
}

// NewSRRIP creates an SRRIP policy.
func NewSRRIP() *SRRIP {
	return &SRRIP{
		rrpv: make(map[*akitacache.Block]uint8),
		prof: newProfile(),
	}
}

// FindVictim returns the block to replace in set.
func (p *SRRIP) FindVictim(set *akitacache.Set) *akitacache.Block {
	b := p.findVictim(set)
	p.prof.recordVictim(b)

	return b
}

func (p *SRRIP) findVictim(set *akitacache.Set) *akitacache.Block {
	for _, b := range set.LRUQueue {
		if !b.IsValid && !b.IsLocked {
			return b
		}
	}

	for age := uint8(0); age <= rrpvMax; age++ {
		if v := p.distant(set); v != nil {
			return v
		}
		p.ageAll(set)
	}

	if len(set.LRUQueue) > 0 {
		return set.LRUQueue[0]
	}

	return nil
}

func (p *SRRIP) distant(set *akitacache.Set) *akitacache.Block {
	for _, b := range set.LRUQueue {
		if !b.IsLocked && p.get(b) == rrpvMax {
			return b
		}
	}

	return nil
}

func (p *SRRIP) ageAll(set *akitacache.Set) {
	for _, b := range set.LRUQueue {
		if b.IsLocked || !b.IsValid {
			continue
		}

		if v := p.get(b); v < rrpvMax {
			p.rrpv[b] = v + 1
		}
	}
}

func (p *SRRIP) get(b *akitacache.Block) uint8 {
	v, ok := p.rrpv[b]
	if !ok {
		v = insertRRPV
		p.rrpv[b] = v
	}

	return v
}

// RRPV returns the re-reference prediction of block.
func (p *SRRIP) RRPV(b *akitacache.Block) uint8 {
	return p.get(b)
}

// Update records a hit.
func (p *SRRIP) Update(b *akitacache.Block) {
	p.rrpv[b] = hitRRPV
	p.prof.hits.Inc()
}

// Replaced records an insertion.
func (p *SRRIP) Replaced(b *akitacache.Block) {
	p.rrpv[b] = insertRRPV
}

// InitStats registers the policy counters.
func (p *SRRIP) InitStats(parent *stats.Aggregate) {
	p.prof.initStats(parent, "SRRIP replacement")
}
