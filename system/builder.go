package system

import (
	"fmt"

	"github.com/czhu95/zsim/config"
	"github.com/czhu95/zsim/internal/simlog"
	"github.com/czhu95/zsim/mem"
	"github.com/czhu95/zsim/network"
	"github.com/czhu95/zsim/stats"
	"github.com/czhu95/zsim/timing/cache"
	"github.com/czhu95/zsim/timing/coherence"
	"github.com/czhu95/zsim/timing/core"
	"github.com/czhu95/zsim/timing/memctrl"
	"github.com/czhu95/zsim/timing/repl"
	"github.com/czhu95/zsim/timing/tlb"
)

// A Builder builds systems.
type Builder struct {
	config *config.Config
	net    *network.Network
}

// MakeBuilder creates a builder for the default configuration without
// interconnect latencies.
func MakeBuilder() Builder {
	return Builder{config: config.Default()}
}

// WithConfig sets the configuration of the system.
func (b Builder) WithConfig(c *config.Config) Builder {
	b.config = c
	return b
}

// WithNetwork sets the interconnect. Every parent and child pair must have a
// link in it.
func (b Builder) WithNetwork(n *network.Network) Builder {
	b.net = n
	return b
}

// Build creates the components, connects them and registers their
// statistics.
func (b Builder) Build() (*System, error) {
	if err := b.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &System{
		config: b.config.Clone(),
		Memory: memctrl.New(b.config.Memory.Name, b.config.Memory.Latency),
	}

	if err := b.buildCaches(s); err != nil {
		return nil, err
	}
	b.connectCaches(s)

	if err := b.buildTLBs(s); err != nil {
		return nil, err
	}
	b.buildCores(s)
	b.buildStats(s)

	simlog.Default().Infof("built %d cores, %d cache levels, memory %s",
		len(s.Cores), len(s.Caches), s.Memory.Name())

	return s, nil
}

func (b Builder) buildCaches(s *System) error {
	s.Caches = make([][]*cache.Cache, len(b.config.Caches))
	for i, level := range b.config.Caches {
		for _, name := range b.cacheNames(level) {
			c, err := cache.NewMESI(level.CacheConfig(name))
			if err != nil {
				return fmt.Errorf("failed to build cache %s: %w", name, err)
			}
			s.Caches[i] = append(s.Caches[i], c)
		}
	}

	return nil
}

func (b Builder) cacheNames(level config.CacheLevel) []string {
	var names []string
	switch {
	case level.Private:
		for c := 0; c < b.config.Cores; c++ {
			names = append(names, fmt.Sprintf("%s-%d", level.Name, c))
		}
	case level.NumBanks() == 1:
		names = append(names, level.Name)
	default:
		for i := 0; i < level.NumBanks(); i++ {
			names = append(names, fmt.Sprintf("%s-%d", level.Name, i))
		}
	}

	return names
}

// connectCaches wires every level to the one above it. Consecutive private
// levels connect core by core; otherwise each cache of a level sees every
// cache of the next.
func (b Builder) connectCaches(s *System) {
	levels := b.config.Caches
	for i, caches := range s.Caches {
		for j, c := range caches {
			var parents []mem.MemObject
			switch {
			case i+1 == len(levels):
				parents = []mem.MemObject{s.Memory}
			case levels[i].Private && levels[i+1].Private:
				parents = []mem.MemObject{s.Caches[i+1][j]}
			default:
				parents = memObjects(s.Caches[i+1])
			}

			childID := uint32(j)
			if i+1 < len(levels) && levels[i].Private && levels[i+1].Private {
				childID = 0
			}
			c.SetParents(childID, parents, b.net)

			var children []mem.BaseCache
			switch {
			case i == 0:
			case levels[i-1].Private && levels[i].Private:
				children = []mem.BaseCache{s.Caches[i-1][j]}
			default:
				children = baseCaches(s.Caches[i-1])
			}
			c.SetChildren(children, b.net)
		}
	}
}

func (b Builder) buildTLBs(s *System) error {
	for id := 0; id < b.config.Cores; id++ {
		coreID := uint32(id)
		tc := b.config.TLBConfig(coreID)

		policy, err := repl.New(b.config.TLB.Repl)
		if err != nil {
			return fmt.Errorf("failed to build %s: %w", tc.Name, err)
		}

		array := cache.NewSetAssocArray(tc.NumLines, b.config.TLB.Ways, policy)
		cc := coherence.NewTerminalCC(tc.Name, tc.NumLines, coherence.WithSink())
		t := tlb.New(tc, cc, array, policy)
		t.SetParents(coreID, b.tlbParents(s, id), b.net)

		s.TLBs = append(s.TLBs, t)
	}

	return nil
}

func (b Builder) tlbParents(s *System, coreID int) []mem.MemObject {
	switch {
	case len(s.Caches) == 0:
		return []mem.MemObject{s.Memory}
	case b.config.Caches[0].Private:
		return []mem.MemObject{s.Caches[0][coreID]}
	default:
		return memObjects(s.Caches[0])
	}
}

func (b Builder) buildCores(s *System) {
	assignment := make(map[uint32]uint32, b.config.Cores)
	for id := 0; id < b.config.Cores; id++ {
		assignment[uint32(id)] = b.config.ProcessOf(uint32(id))
	}
	sched := core.NewStaticScheduler(assignment)

	for id, t := range s.TLBs {
		s.Cores = append(s.Cores, core.NewCore(uint32(id), t, sched))
	}
}

func (b Builder) buildStats(s *System) {
	s.Stats = stats.NewAggregate("root", "Stats")

	for _, c := range s.Cores {
		c.InitStats(s.Stats)
	}
	for _, t := range s.TLBs {
		t.InitStats(s.Stats)
	}
	for _, level := range s.Caches {
		for _, c := range level {
			c.InitStats(s.Stats)
		}
	}
	s.Memory.InitStats(s.Stats)

	s.Stats.MakeImmutable()
}

func memObjects(caches []*cache.Cache) []mem.MemObject {
	objs := make([]mem.MemObject, len(caches))
	for i, c := range caches {
		objs[i] = c
	}

	return objs
}

func baseCaches(caches []*cache.Cache) []mem.BaseCache {
	objs := make([]mem.BaseCache, len(caches))
	for i, c := range caches {
		objs[i] = c
	}

	return objs
}
