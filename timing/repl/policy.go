// Package repl provides the replacement policies cache arrays consult to pick
// eviction victims.
//
// A Policy is an akita VictimFinder, so it plugs directly into an akita cache
// directory. The array notifies the policy of hits and insertions so that
// policies keeping their own metadata can update it.
package repl

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/czhu95/zsim/stats"
)

// A Policy picks victims and tracks reuse.
type Policy interface {
	akitacache.VictimFinder

	// Update records a hit on block.
	Update(block *akitacache.Block)
	// Replaced records that block now holds a new line.
	Replaced(block *akitacache.Block)

	InitStats(parent *stats.Aggregate)
}

// New creates a policy by name. Known names are "lru" and "srrip".
func New(name string) (Policy, error) {
	switch name {
	case "", "lru", "LRU":
		return NewLRU(), nil
	case "srrip", "SRRIP":
		return NewSRRIP(), nil
	default:
		return nil, fmt.Errorf("unknown replacement policy %q", name)
	}
}

type profile struct {
	victims   *stats.Counter
	evictions *stats.Counter
	hits      *stats.Counter
}

func newProfile() profile {
	return profile{
		victims:   stats.NewCounter("victims", "Victim selections"),
		evictions: stats.NewCounter("evictions", "Victims that held a valid line"),
		hits:      stats.NewCounter("updates", "Hits recorded"),
	}
}

func (p profile) recordVictim(b *akitacache.Block) {
	p.victims.Inc()
	if b != nil && b.IsValid {
		p.evictions.Inc()
	}
}

func (p profile) initStats(parent *stats.Aggregate, desc string) {
	agg := stats.NewAggregate("repl", desc)
	agg.Append(p.victims)
	agg.Append(p.evictions)
	agg.Append(p.hits)
	parent.Append(agg)
}
