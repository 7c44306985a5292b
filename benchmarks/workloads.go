package benchmarks

import (
	"fmt"

	"github.com/czhu95/zsim/config"
	"github.com/czhu95/zsim/mem"
	"github.com/czhu95/zsim/timing/core"
)

const pageSize = 1 << mem.PageBits

// GetWorkloads returns the standard set of workloads sized for TLBs of
// tlbLines entries.
func GetWorkloads(tlbLines int) []Benchmark {
	return []Benchmark{
		Sequential(tlbLines/2, 2),
		Strided(tlbLines/2, 16, 2),
		Thrashing(tlbLines*2, 2),
		MultiProcess(tlbLines/4, 2),
		SharedPages(tlbLines/4, 2),
	}
}

// Sequential touches pages consecutive pages on core 0, passes times.
func Sequential(pages, passes int) Benchmark {
	return Benchmark{
		Name:        "sequential",
		Description: fmt.Sprintf("%d consecutive pages, %d passes", pages, passes),
		Records:     sweep(0, pages, 1, passes, 1),
	}
}

// Strided touches pages that are stride pages apart on core 0.
func Strided(pages, stride, passes int) Benchmark {
	return Benchmark{
		Name:        "strided",
		Description: fmt.Sprintf("%d pages %d apart, %d passes", pages, stride, passes),
		Records:     sweep(0, pages, stride, passes, 1),
	}
}

// Thrashing cycles through a working set that should not fit in the TLB.
func Thrashing(pages, passes int) Benchmark {
	b := Sequential(pages, passes)
	b.Name = "thrashing"
	b.Description = fmt.Sprintf("%d-page working set, %d passes", pages, passes)

	return b
}

// MultiProcess runs two processes on two cores touching the same virtual
// pages. Their translations never alias.
func MultiProcess(pages, passes int) Benchmark {
	return Benchmark{
		Name:        "multi_process",
		Description: fmt.Sprintf("2 processes, %d pages each, %d passes", pages, passes),
		Setup: func(c *config.Config) {
			c.Cores = max(c.Cores, 2)
			if c.Schedule == nil {
				c.Schedule = make(map[uint32]uint32)
			}
			c.Schedule[0] = 0
			c.Schedule[1] = 1
		},
		Records: interleave(sweep(0, pages, 1, passes, 1), sweep(1, pages, 1, passes, 1)),
	}
}

// SharedPages runs one process on two cores touching the same pages, so
// the page-table lines are shared through the hierarchy.
func SharedPages(pages, passes int) Benchmark {
	b := MultiProcess(pages, passes)
	b.Name = "shared_pages"
	b.Description = fmt.Sprintf("1 process on 2 cores, %d pages, %d passes", pages, passes)
	b.Setup = func(c *config.Config) {
		c.Cores = max(c.Cores, 2)
		if c.Schedule != nil {
			c.Schedule[1] = c.Schedule[0]
		}
	}

	return b
}

func sweep(coreID uint32, pages, stride, passes int, gap uint64) []core.Record {
	records := make([]core.Record, 0, pages*passes)
	for p := 0; p < passes; p++ {
		for i := 0; i < pages; i++ {
			records = append(records, core.Record{
				Core:  coreID,
				VAddr: mem.Address(i * stride * pageSize),
				Gap:   gap,
			})
		}
	}

	return records
}

func interleave(a, b []core.Record) []core.Record {
	out := make([]core.Record, 0, len(a)+len(b))
	for i := 0; i < len(a) || i < len(b); i++ {
		if i < len(a) {
			out = append(out, a[i])
		}
		if i < len(b) {
			out = append(out, b[i])
		}
	}

	return out
}
