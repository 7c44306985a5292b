// Package core provides the simulated cores that issue address translations.
// A core blocks on every translation: its next request is issued at the
// cycle the previous one completed, plus any compute gap in between.
package core

import (
	"fmt"
	"log"

	"github.com/czhu95/zsim/mem"
	"github.com/czhu95/zsim/stats"
)

// A Translator turns virtual addresses into completion cycles.
type Translator interface {
	Translate(vAddr mem.Address, cycle uint64) uint64
	SetProcMask(mask mem.Address)
}

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the current cycle of the core.
	Cycles uint64
	// Translations is the number of translations issued.
	Translations uint64
	// TranslationCycles is the number of cycles spent waiting on
	// translations.
	TranslationCycles uint64
	// ComputeCycles is the number of cycles spent between translations.
	ComputeCycles uint64
}

// Name returns the statistics name of core id.
func Name(id uint32) string {
	return fmt.Sprintf("core-%d", id)
}

// Core represents a simulated core with a private TLB.
type Core struct {
	ID  uint32
	TLB Translator

	sched Scheduler
	cycle uint64

	translations      *stats.Counter
	translationCycles *stats.Counter
	computeCycles     *stats.Counter
}

// NewCore creates a core that asks sched which process it runs.
func NewCore(id uint32, tlb Translator, sched Scheduler) *Core {
	return &Core{
		ID:                id,
		TLB:               tlb,
		sched:             sched,
		translations:      stats.NewCounter("translations", "Translations issued"),
		translationCycles: stats.NewCounter("translationCycles", "Cycles waiting on translations"),
		computeCycles:     stats.NewCounter("computeCycles", "Cycles between translations"),
	}
}

// Cycle returns the current cycle of the core.
func (c *Core) Cycle() uint64 {
	return c.cycle
}

// Advance moves the core forward by cycles of computation.
func (c *Core) Advance(cycles uint64) {
	c.cycle += cycles
	c.computeCycles.Add(cycles)
}

// Issue translates vAddr for the process scheduled on the core and blocks
// until the translation completes. It returns the completion cycle.
func (c *Core) Issue(vAddr mem.Address) uint64 {
	procIdx, ok := c.sched.ScheduledProcess(c.ID)
	if !ok {
		log.Panicf("core %d: no process scheduled", c.ID)
	}

	c.TLB.SetProcMask(mem.ProcMask(procIdx))

	done := c.TLB.Translate(vAddr, c.cycle)
	if done < c.cycle {
		log.Panicf("core %d: translation of %#x completed at %d, before %d",
			c.ID, uint64(vAddr), done, c.cycle)
	}

	c.translations.Inc()
	c.translationCycles.Add(done - c.cycle)
	c.cycle = done

	return done
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	return Stats{
		Cycles:            c.cycle,
		Translations:      c.translations.Get(),
		TranslationCycles: c.translationCycles.Get(),
		ComputeCycles:     c.computeCycles.Get(),
	}
}

// InitStats registers the core counters under parent.
func (c *Core) InitStats(parent *stats.Aggregate) {
	agg := stats.NewAggregate(Name(c.ID), "Core stats")
	agg.Append(c.translations)
	agg.Append(c.translationCycles)
	agg.Append(c.computeCycles)
	parent.Append(agg)
}

// Reset rewinds the core to cycle zero and clears its statistics.
func (c *Core) Reset() {
	c.cycle = 0
	c.translations.Reset()
	c.translationCycles.Reset()
	c.computeCycles.Reset()
}
