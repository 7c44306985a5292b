// Package cache provides the tag arrays and the coherent cache levels of the
// simulated memory hierarchy.
package cache

import (
	"fmt"
	"log"

	"github.com/czhu95/zsim/internal/simlog"
	"github.com/czhu95/zsim/mem"
	"github.com/czhu95/zsim/network"
	"github.com/czhu95/zsim/stats"
	"github.com/czhu95/zsim/timing/coherence"
	"github.com/czhu95/zsim/timing/repl"
)

// Config holds cache configuration parameters.
type Config struct {
	// Name identifies the cache in statistics and the network.
	Name string
	// NumLines is the capacity in lines.
	NumLines int
	// Ways is the associativity.
	Ways int
	// AccessLatency in cycles, charged on every access.
	AccessLatency uint64
	// InvLatency in cycles, charged on every invalidation.
	InvLatency uint64
	// Repl names the replacement policy.
	Repl string
}

// DefaultL2Config returns the configuration of a private L2.
// 256KB, 8-way, 64B lines.
func DefaultL2Config() Config {
	return Config{
		Name:          "l2",
		NumLines:      4096,
		Ways:          8,
		AccessLatency: 7,
		InvLatency:    7,
		Repl:          "lru",
	}
}

// DefaultL3Config returns the configuration of a shared last-level cache.
// 8MB, 16-way, 64B lines.
func DefaultL3Config() Config {
	return Config{
		Name:          "l3",
		NumLines:      131072,
		Ways:          16,
		AccessLatency: 27,
		InvLatency:    27,
		Repl:          "lru",
	}
}

// Validate checks that the configuration describes a buildable cache.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("cache has no name")
	}

	if c.NumLines <= 0 {
		return fmt.Errorf("cache %s: lines must be positive, got %d",
			c.Name, c.NumLines)
	}

	if c.Ways <= 0 || c.NumLines%c.Ways != 0 {
		return fmt.Errorf("cache %s: %d lines cannot be split into %d ways",
			c.Name, c.NumLines, c.Ways)
	}

	if c.AccessLatency == 0 {
		return fmt.Errorf("cache %s: access latency must be positive", c.Name)
	}

	if _, err := repl.New(c.Repl); err != nil {
		return fmt.Errorf("cache %s: %w", c.Name, err)
	}

	return nil
}

// Cache is a coherent cache level with parents and children.
type Cache struct {
	config Config
	cc     coherence.Controller
	array  Array
	policy repl.Policy
}

// New creates a cache from its collaborators. The array capacity must match
// the configuration.
func New(
	config Config,
	cc coherence.Controller,
	array Array,
	policy repl.Policy,
) *Cache {
	if array.NumLines() != config.NumLines {
		log.Panicf("[%s] array has %d lines, want %d",
			config.Name, array.NumLines(), config.NumLines)
	}

	return &Cache{
		config: config,
		cc:     cc,
		array:  array,
		policy: policy,
	}
}

// NewMESI creates an inclusive shared cache with a set-associative array and
// a MESI controller.
func NewMESI(config Config) (*Cache, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	policy, err := repl.New(config.Repl)
	if err != nil {
		return nil, err
	}

	array := NewSetAssocArray(config.NumLines, config.Ways, policy)
	cc := coherence.NewMESICC(config.Name, config.NumLines)

	return New(config, cc, array, policy), nil
}

// Name returns the cache name.
func (c *Cache) Name() string {
	return c.config.Name
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Controller returns the coherence controller of the cache.
func (c *Cache) Controller() coherence.Controller {
	return c.cc
}

// Array returns the tag array of the cache.
func (c *Cache) Array() Array {
	return c.array
}

// SetParents connects the cache to the levels above it.
func (c *Cache) SetParents(
	childID uint32,
	parents []mem.MemObject,
	net *network.Network,
) {
	c.cc.SetParents(childID, parents, net)
}

// SetChildren connects the cache to the levels below it.
func (c *Cache) SetChildren(children []mem.BaseCache, net *network.Network) {
	c.cc.SetChildren(children, net)
}

// InitStats registers the cache counters under parent.
func (c *Cache) InitStats(parent *stats.Aggregate) {
	agg := stats.NewAggregate(c.config.Name, "Cache stats")
	c.cc.InitStats(agg)
	c.array.InitStats(agg)
	c.policy.InitStats(agg)
	parent.Append(agg)
}

// Access serves a request from a child and returns its completion cycle.
// Fetches that miss allocate a line; the eviction that frees the slot is off
// the critical path.
func (c *Cache) Access(req *mem.Request) uint64 {
	respCycle := req.Cycle
	skip := c.cc.StartAccess(req)
	defer c.cc.EndAccess(req)

	if skip {
		return respCycle
	}

	lineID := c.array.Lookup(req.LineAddr, req, req.Type.IsGet())
	respCycle += c.config.AccessLatency

	if lineID == NotFound && c.cc.ShouldAllocate(req) {
		victim := c.array.Preinsert(req.LineAddr, req)
		if victim.LineID == NotFound {
			log.Panicf("[%s] no victim for %s", c.config.Name, req)
		}

		if victim.Valid {
			simlog.Default().Tracef("[%s] evicting %#x for %#x",
				c.config.Name, uint64(victim.Addr), uint64(req.LineAddr))
		}

		c.cc.ProcessEviction(req, victim.Addr, victim.LineID, respCycle)
		c.array.Postinsert(req.LineAddr, req, victim.LineID)
		lineID = victim.LineID
	}

	return c.cc.ProcessAccess(req, lineID, respCycle)
}

// Invalidate applies an invalidation from a parent. The line must be
// present.
func (c *Cache) Invalidate(req mem.InvRequest) uint64 {
	lineID := c.array.Lookup(req.LineAddr, nil, false)
	if lineID == NotFound {
		log.Panicf("[%s] %s on %#x, which is not present",
			c.config.Name, req.Type, uint64(req.LineAddr))
	}

	respCycle := req.Cycle + c.config.InvLatency

	return c.cc.ProcessInv(req, lineID, respCycle)
}
