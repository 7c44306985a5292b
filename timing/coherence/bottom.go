package coherence

import (
	"log"

	"github.com/czhu95/zsim/internal/simlog"
	"github.com/czhu95/zsim/mem"
	"github.com/czhu95/zsim/network"
	"github.com/czhu95/zsim/stats"
)

type bottomProfile struct {
	hGETS, hGETX            *stats.Counter
	mGETS, mGETXIM, mGETXSM *stats.Counter
	puts, putx              *stats.Counter
	inv, invx, fwd          *stats.Counter
	latGETnl, latGETnet     *stats.Counter
}

func newBottomProfile() bottomProfile {
	return bottomProfile{
		hGETS:     stats.NewCounter("hGETS", "GETS hits"),
		hGETX:     stats.NewCounter("hGETX", "GETX hits"),
		mGETS:     stats.NewCounter("mGETS", "GETS misses"),
		mGETXIM:   stats.NewCounter("mGETXIM", "GETX I->M misses"),
		mGETXSM:   stats.NewCounter("mGETXSM", "GETX S->M misses (upgrade misses)"),
		puts:      stats.NewCounter("PUTS", "Clean evictions (from lower level)"),
		putx:      stats.NewCounter("PUTX", "Dirty evictions (from lower level)"),
		inv:       stats.NewCounter("INV", "Invalidates (from upper level)"),
		invx:      stats.NewCounter("INVX", "Downgrades (from upper level)"),
		fwd:       stats.NewCounter("FWD", "Forwards (from upper level)"),
		latGETnl:  stats.NewCounter("latGETnl", "GET request latency on next level"),
		latGETnet: stats.NewCounter("latGETnet", "GET request latency on network to next level"),
	}
}

func (p bottomProfile) appendTo(agg *stats.Aggregate) {
	for _, c := range []*stats.Counter{
		p.hGETS, p.hGETX, p.mGETS, p.mGETXIM, p.mGETXSM,
		p.puts, p.putx, p.inv, p.invx, p.fwd,
		p.latGETnl, p.latGETnet,
	} {
		agg.Append(c)
	}
}

// bottomCC keeps the state of every line of a cache with respect to its
// parents. It fetches and upgrades lines, writes them back on eviction and
// applies invalidations coming from above.
type bottomCC struct {
	name       string
	states     []mem.MESIState
	selfID     uint32
	parents    []mem.MemObject
	parentRTTs []uint64
	prof       bottomProfile
}

func newBottomCC(name string, numLines int) *bottomCC {
	return &bottomCC{
		name:   name,
		states: make([]mem.MESIState, numLines),
		prof:   newBottomProfile(),
	}
}

func (b *bottomCC) setParents(
	childID uint32,
	parents []mem.MemObject,
	net *network.Network,
) {
	if len(parents) == 0 {
		log.Panicf("[%s] needs at least one parent", b.name)
	}

	b.selfID = childID
	b.parents = append([]mem.MemObject(nil), parents...)
	b.parentRTTs = make([]uint64, len(parents))
	for i, p := range parents {
		b.parentRTTs[i] = net.RTT(b.name, p.Name())
	}
}

func (b *bottomCC) state(lineID int) *mem.MESIState {
	if lineID < 0 || lineID >= len(b.states) {
		log.Panicf("[%s] line %d out of range [0, %d)",
			b.name, lineID, len(b.states))
	}

	return &b.states[lineID]
}

func (b *bottomCC) isValid(lineID int) bool {
	return b.state(lineID).IsValid()
}

func (b *bottomCC) isExclusive(lineID int) bool {
	return b.state(lineID).IsExclusive()
}

func (b *bottomCC) parentFor(lineAddr mem.Address) int {
	if len(b.parents) == 0 {
		log.Panicf("[%s] has no parents", b.name)
	}

	return mem.ParentIndex(lineAddr, len(b.parents))
}

// processEviction writes back the line held in lineID. A child write-back
// observed by the top half turns an E line into M before it is sent.
func (b *bottomCC) processEviction(
	wbLineAddr mem.Address,
	lineID int,
	lowerLevelWriteback bool,
	cycle uint64,
	srcID uint32,
) uint64 {
	state := b.state(lineID)
	if lowerLevelWriteback {
		if !state.IsExclusive() {
			log.Panicf("[%s] writeback from below into %s line %#x",
				b.name, *state, uint64(wbLineAddr))
		}
		*state = mem.M
	}

	respCycle := cycle
	switch *state {
	case mem.I:
		return respCycle
	case mem.S, mem.E:
		respCycle = b.put(mem.PUTS, wbLineAddr, state, cycle, srcID)
	case mem.M:
		respCycle = b.put(mem.PUTX, wbLineAddr, state, cycle, srcID)
	}

	if *state != mem.I {
		log.Panicf("[%s] evicted line %#x left in %s",
			b.name, uint64(wbLineAddr), *state)
	}

	return respCycle
}

func (b *bottomCC) put(
	t mem.AccessType,
	lineAddr mem.Address,
	state *mem.MESIState,
	cycle uint64,
	srcID uint32,
) uint64 {
	req := &mem.Request{
		LineAddr:     lineAddr,
		Type:         t,
		ChildID:      b.selfID,
		State:        state,
		InitialState: *state,
		Cycle:        cycle,
		SrcID:        srcID,
	}

	simlog.Default().Tracef("[%s] %s", b.name, req)

	return b.parents[b.parentFor(lineAddr)].Access(req)
}

// processAccess brings lineID into a state that satisfies t, fetching from
// the parents when needed.
func (b *bottomCC) processAccess(
	lineAddr mem.Address,
	lineID int,
	t mem.AccessType,
	cycle uint64,
	srcID uint32,
	flags mem.Flags,
) uint64 {
	state := b.state(lineID)
	respCycle := cycle

	switch t {
	case mem.PUTS:
		if *state == mem.I {
			log.Panicf("[%s] PUTS into invalid line %#x", b.name, uint64(lineAddr))
		}
		b.prof.puts.Inc()
	case mem.PUTX:
		if !state.IsExclusive() {
			log.Panicf("[%s] PUTX into %s line %#x",
				b.name, *state, uint64(lineAddr))
		}
		*state = mem.M
		b.prof.putx.Inc()
	case mem.GETS:
		if *state != mem.I {
			b.prof.hGETS.Inc()
			break
		}

		respCycle = b.fetch(mem.GETS, lineAddr, state, cycle, srcID, flags)
		b.prof.mGETS.Inc()
		if *state != mem.S && *state != mem.E {
			log.Panicf("[%s] GETS on %#x left line in %s",
				b.name, uint64(lineAddr), *state)
		}
	case mem.GETX:
		switch *state {
		case mem.I, mem.S:
			if *state == mem.I {
				b.prof.mGETXIM.Inc()
			} else {
				b.prof.mGETXSM.Inc()
			}
			respCycle = b.fetch(mem.GETX, lineAddr, state, cycle, srcID, flags)
		case mem.E:
			*state = mem.M
			b.prof.hGETX.Inc()
		case mem.M:
			b.prof.hGETX.Inc()
		}

		if *state != mem.M {
			log.Panicf("[%s] GETX on %#x left line in %s",
				b.name, uint64(lineAddr), *state)
		}
	default:
		log.Panicf("[%s] unknown access type %s", b.name, t)
	}

	return respCycle
}

func (b *bottomCC) fetch(
	t mem.AccessType,
	lineAddr mem.Address,
	state *mem.MESIState,
	cycle uint64,
	srcID uint32,
	flags mem.Flags,
) uint64 {
	parentID := b.parentFor(lineAddr)
	req := &mem.Request{
		LineAddr:     lineAddr,
		Type:         t,
		ChildID:      b.selfID,
		State:        state,
		InitialState: *state,
		Cycle:        cycle,
		SrcID:        srcID,
		Flags:        flags,
	}

	nextLevelCycle := b.parents[parentID].Access(req)
	netLat := b.parentRTTs[parentID]
	b.prof.latGETnl.Add(nextLevelCycle - cycle)
	b.prof.latGETnet.Add(netLat)

	simlog.Default().Tracef("[%s] %s -> %s done at %d",
		b.name, req, b.parents[parentID].Name(), nextLevelCycle+netLat)

	return nextLevelCycle + netLat
}

// processWritebackOnAccess records that a child wrote back dirty data.
func (b *bottomCC) processWritebackOnAccess(lineAddr mem.Address, lineID int) {
	state := b.state(lineID)
	if !state.IsExclusive() {
		log.Panicf("[%s] child writeback into %s line %#x",
			b.name, *state, uint64(lineAddr))
	}
	*state = mem.M
}

// processInval applies an invalidation or downgrade from a parent.
func (b *bottomCC) processInval(
	lineAddr mem.Address,
	lineID int,
	t mem.InvType,
	writeback *bool,
) {
	state := b.state(lineID)
	if *state == mem.I {
		log.Panicf("[%s] %s on invalid line %#x", b.name, t, uint64(lineAddr))
	}

	switch t {
	case mem.INVX:
		if !state.IsExclusive() {
			log.Panicf("[%s] INVX on %s line %#x", b.name, *state, uint64(lineAddr))
		}
		if *state == mem.M {
			setWriteback(writeback)
		}
		*state = mem.S
		b.prof.invx.Inc()
	case mem.INV:
		if *state == mem.M {
			setWriteback(writeback)
		}
		*state = mem.I
		b.prof.inv.Inc()
	case mem.FWD:
		if *state != mem.S {
			log.Panicf("[%s] FWD on %s line %#x", b.name, *state, uint64(lineAddr))
		}
		b.prof.fwd.Inc()
	default:
		log.Panicf("[%s] unknown invalidation type %s", b.name, t)
	}
}

func setWriteback(wb *bool) {
	if wb != nil {
		*wb = true
	}
}
