// Package tlb provides a translation lookaside buffer that takes part in the
// coherent memory hierarchy.
//
// The TLB is a presence cache of page numbers. Hits are resolved locally
// after a fixed lookup latency. Misses go through the TLB's coherence
// controller: the victim slot is evicted and the new translation is fetched
// from the hierarchy, optionally as a fetch of the page-table line that holds
// it. The controller owns all coherence state; the TLB never inspects it.
package tlb

import (
	"log"

	"github.com/czhu95/zsim/internal/simlog"
	"github.com/czhu95/zsim/mem"
	"github.com/czhu95/zsim/network"
	"github.com/czhu95/zsim/stats"
	"github.com/czhu95/zsim/timing/cache"
	"github.com/czhu95/zsim/timing/coherence"
	"github.com/czhu95/zsim/timing/repl"
)

// Comp is a TLB.
type Comp struct {
	config Config
	cc     coherence.Controller
	array  cache.Array
	policy repl.Policy

	procMask mem.Address
	flags    mem.Flags
}

// New creates a TLB from its collaborators. It aborts if the configuration
// is invalid or if the array capacity does not match it.
func New(
	config Config,
	cc coherence.Controller,
	array cache.Array,
	policy repl.Policy,
) *Comp {
	if err := config.Validate(); err != nil {
		log.Panicf("[%s] %v", config.Name, err)
	}

	if cc == nil || array == nil || policy == nil {
		log.Panicf("[%s] needs a controller, an array and a policy",
			config.Name)
	}

	if array.NumLines() != config.NumLines {
		log.Panicf("[%s] array has %d lines, want %d",
			config.Name, array.NumLines(), config.NumLines)
	}

	return &Comp{
		config: config,
		cc:     cc,
		array:  array,
		policy: policy,
		flags:  mem.FlagPTEFetch,
	}
}

// Name returns the TLB name.
func (c *Comp) Name() string {
	return c.config.Name
}

// Config returns the TLB configuration.
func (c *Comp) Config() Config {
	return c.config
}

// SetProcMask installs the address-space mask of the process running on the
// owning core.
func (c *Comp) SetProcMask(mask mem.Address) {
	c.procMask = mask
}

// ProcMask returns the installed address-space mask.
func (c *Comp) ProcMask() mem.Address {
	return c.procMask
}

// SetParents connects the TLB to the caches it fetches from.
func (c *Comp) SetParents(
	childID uint32,
	parents []mem.MemObject,
	net *network.Network,
) {
	c.cc.SetParents(childID, parents, net)
}

// SetChildren connects the TLB to caches below it.
func (c *Comp) SetChildren(children []mem.BaseCache, net *network.Network) {
	c.cc.SetChildren(children, net)
}

// InitStats registers the TLB counters under parent.
func (c *Comp) InitStats(parent *stats.Aggregate) {
	agg := stats.NewAggregate(c.config.Name, "TLB stats")
	c.cc.InitStats(agg)
	c.array.InitStats(agg)
	c.policy.InitStats(agg)
	parent.Append(agg)
}

// Translate returns the cycle at which the translation of vAddr, issued at
// cycle, completes.
func (c *Comp) Translate(vAddr mem.Address, cycle uint64) uint64 {
	ppn := c.procMask | mem.PageNumber(vAddr)
	state := mem.I
	req := &mem.Request{
		LineAddr:     ppn,
		Type:         mem.GETS,
		State:        &state,
		InitialState: state,
		Cycle:        cycle,
		SrcID:        c.config.SrcID,
		Flags:        c.flags,
	}

	return c.Access(req)
}

// Access looks up the page in req.LineAddr and returns the completion cycle.
// A miss evicts a victim and fetches the translation through the
// controller.
func (c *Comp) Access(req *mem.Request) uint64 {
	ppn := req.LineAddr
	lineID := c.array.Lookup(ppn, req, false)
	respCycle := req.Cycle + c.config.AccessLatency

	if lineID != cache.NotFound {
		c.array.Touch(lineID)
		return respCycle
	}

	if req.State == nil {
		log.Panicf("[%s] %s carries no state", c.config.Name, req)
	}

	if c.cc.StartAccess(req) {
		log.Panicf("[%s] controller skipped %s", c.config.Name, req)
	}
	defer c.cc.EndAccess(req)

	victim := c.array.Preinsert(ppn, req)
	if victim.LineID == cache.NotFound {
		log.Panicf("[%s] no victim for page %#x", c.config.Name, uint64(ppn))
	}

	if victim.Valid {
		simlog.Default().Debugf("[%s] evicting page %#x for %#x",
			c.config.Name, uint64(victim.Addr), uint64(ppn))
	}

	respCycle = c.cc.ProcessEviction(req, victim.Addr, victim.LineID, respCycle)

	if !c.config.PageWalk.Enabled {
		c.array.Postinsert(ppn, req, victim.LineID)
		return c.cc.ProcessAccess(req, victim.LineID, respCycle)
	}

	respCycle += c.config.PageWalk.Latency
	walkReq := &mem.Request{
		LineAddr:     c.pteLine(ppn),
		Type:         mem.GETS,
		ChildID:      req.ChildID,
		State:        req.State,
		InitialState: *req.State,
		Cycle:        respCycle,
		SrcID:        req.SrcID,
		Flags:        req.Flags,
	}

	simlog.Default().Tracef("[%s] page walk for %#x: %s",
		c.config.Name, uint64(ppn), walkReq)

	respCycle = c.cc.ProcessAccess(walkReq, victim.LineID, respCycle)
	c.array.Postinsert(ppn, walkReq, victim.LineID)

	return respCycle
}

// pteLine returns the line address of the page-table entry of ppn.
func (c *Comp) pteLine(ppn mem.Address) mem.Address {
	w := c.config.PageWalk
	return (ppn / mem.Address(w.PTEsPerLine)) >> w.LineBits
}

// Invalidate always aborts. Caches below a TLB must never invalidate its
// entries; receiving an invalidation means the hierarchy is miswired.
func (c *Comp) Invalidate(req mem.InvRequest) uint64 {
	lineID := c.array.Lookup(req.LineAddr, nil, false)

	wb := "n/a"
	if req.Writeback != nil {
		if *req.Writeback {
			wb = "true"
		} else {
			wb = "false"
		}
	}

	log.Panicf("[%s] TLB entries cannot be invalidated by other caches: "+
		"address %#x type %s lineID %d writeback %s",
		c.config.Name, uint64(req.LineAddr), req.Type, lineID, wb)

	return 0
}
