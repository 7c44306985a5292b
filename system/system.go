// Package system assembles cores, TLBs, caches and memory into a simulated
// system and drives it with translation traces.
package system

import (
	"fmt"

	"github.com/czhu95/zsim/config"
	"github.com/czhu95/zsim/stats"
	"github.com/czhu95/zsim/timing/cache"
	"github.com/czhu95/zsim/timing/core"
	"github.com/czhu95/zsim/timing/memctrl"
	"github.com/czhu95/zsim/timing/tlb"
)

// System is a built hierarchy.
type System struct {
	config *config.Config

	Cores []*core.Core
	TLBs  []*tlb.Comp

	// Caches holds the caches of each level, closest to the cores first.
	Caches [][]*cache.Cache

	Memory *memctrl.SimpleMemory
	Stats  *stats.Aggregate
}

// Config returns the configuration the system was built from.
func (s *System) Config() *config.Config {
	return s.config
}

// Run issues the records in order. Each core first computes for the record's
// gap and then blocks on the translation.
func (s *System) Run(records []core.Record) error {
	return s.RunPhases(records, 0, nil)
}

// RunPhases runs the records like Run and calls endPhase after every
// phaseLen records and once more after the last one. A phaseLen of zero
// makes the whole trace one phase.
func (s *System) RunPhases(
	records []core.Record,
	phaseLen int,
	endPhase func() error,
) error {
	for i, r := range records {
		if int(r.Core) >= len(s.Cores) {
			return fmt.Errorf("record %d: core %d does not exist", i, r.Core)
		}

		c := s.Cores[r.Core]
		c.Advance(r.Gap)
		c.Issue(r.VAddr)

		if phaseLen > 0 && (i+1)%phaseLen == 0 && i+1 < len(records) {
			if err := callPhase(endPhase); err != nil {
				return err
			}
		}
	}

	return callPhase(endPhase)
}

func callPhase(endPhase func() error) error {
	if endPhase == nil {
		return nil
	}

	return endPhase()
}

// Cycles returns the cycle of the core that finished last.
func (s *System) Cycles() uint64 {
	var cycles uint64
	for _, c := range s.Cores {
		cycles = max(cycles, c.Cycle())
	}

	return cycles
}

// Cache returns the cache called name.
func (s *System) Cache(name string) (*cache.Cache, bool) {
	for _, level := range s.Caches {
		for _, c := range level {
			if c.Name() == name {
				return c, true
			}
		}
	}

	return nil, false
}
