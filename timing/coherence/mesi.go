package coherence

import (
	"log"

	"github.com/czhu95/zsim/mem"
	"github.com/czhu95/zsim/network"
	"github.com/czhu95/zsim/stats"
)

// MESICC is the controller of a cache that has both parents and children.
// The hierarchy is inclusive: every line a child holds is present here.
type MESICC struct {
	name   string
	bcc    *bottomCC
	tcc    *topCC
	active bool
}

// NewMESICC creates the controller of a shared cache with numLines lines.
func NewMESICC(name string, numLines int) *MESICC {
	return &MESICC{
		name: name,
		bcc:  newBottomCC(name, numLines),
		tcc:  newTopCC(name, numLines),
	}
}

// SetParents connects the cache to the caches or memories above it.
func (cc *MESICC) SetParents(
	childID uint32,
	parents []mem.MemObject,
	net *network.Network,
) {
	cc.bcc.setParents(childID, parents, net)
}

// SetChildren connects the cache to the caches below it.
func (cc *MESICC) SetChildren(children []mem.BaseCache, net *network.Network) {
	cc.tcc.setChildren(children, net)
}

// InitStats registers the protocol counters.
func (cc *MESICC) InitStats(parent *stats.Aggregate) {
	cc.bcc.prof.appendTo(parent)
	parent.Append(cc.tcc.untracked)
}

// StartAccess opens the access bracket and resolves races with the
// requester's copy of the line.
func (cc *MESICC) StartAccess(req *mem.Request) bool {
	cc.enter(req)

	return checkRace(cc.name, req)
}

// EndAccess closes the access bracket.
func (cc *MESICC) EndAccess(_ *mem.Request) {
	cc.active = false
}

func (cc *MESICC) enter(req *mem.Request) {
	if cc.active {
		log.Panicf("[%s] %s started while another access is in flight",
			cc.name, req)
	}
	cc.active = true
}

// ShouldAllocate returns true for fetches. Write-backs from children always
// hit since the hierarchy is inclusive.
func (cc *MESICC) ShouldAllocate(req *mem.Request) bool {
	return req.Type.IsGet()
}

// ProcessEviction invalidates the children's copies of the line leaving
// lineID, then writes it back to the parent.
func (cc *MESICC) ProcessEviction(
	trigger *mem.Request,
	wbLineAddr mem.Address,
	lineID int,
	cycle uint64,
) uint64 {
	lowerLevelWriteback := false
	evCycle := cc.tcc.processEviction(wbLineAddr, lineID,
		&lowerLevelWriteback, cycle, trigger.SrcID)

	return cc.bcc.processEviction(wbLineAddr, lineID, lowerLevelWriteback,
		evCycle, trigger.SrcID)
}

// ProcessAccess fetches or upgrades the line if needed, then updates the
// sharers and grants the requester its state.
func (cc *MESICC) ProcessAccess(
	req *mem.Request,
	lineID int,
	cycle uint64,
) uint64 {
	if lineID < 0 {
		log.Panicf("[%s] %s missed in an inclusive cache", cc.name, req)
	}

	if !req.Type.IsGet() && !cc.bcc.isValid(lineID) {
		log.Panicf("[%s] %s on a line this cache does not hold",
			cc.name, req)
	}

	// Translation fetches are tracked normally above this level.
	flags := req.Flags &^ mem.FlagPTEFetch
	respCycle := cc.bcc.processAccess(req.LineAddr, lineID, req.Type,
		cycle, req.SrcID, flags)

	lowerLevelWriteback := false
	respCycle = cc.tcc.processAccess(req, lineID, cc.bcc.isExclusive(lineID),
		&lowerLevelWriteback, respCycle)
	if lowerLevelWriteback {
		cc.bcc.processWritebackOnAccess(req.LineAddr, lineID)
	}

	return respCycle
}

// ProcessInv forwards an invalidation to the children, then applies it to
// this cache.
func (cc *MESICC) ProcessInv(req mem.InvRequest, lineID int, cycle uint64) uint64 {
	respCycle := cc.tcc.processInval(req.LineAddr, lineID, req.Type,
		req.Writeback, cycle, req.SrcID)
	cc.bcc.processInval(req.LineAddr, lineID, req.Type, req.Writeback)

	return respCycle
}

// State returns the coherence state of lineID.
func (cc *MESICC) State(lineID int) mem.MESIState {
	return *cc.bcc.state(lineID)
}

// Sharers returns the ids of the children holding lineID.
func (cc *MESICC) Sharers(lineID int) []uint32 {
	return cc.tcc.sharersOf(lineID)
}

// TerminalCC is the controller of a cache without children, such as a
// first-level cache or a translation cache.
type TerminalCC struct {
	name   string
	bcc    *bottomCC
	sink   bool
	drops  *stats.Counter
	active bool
}

// A TerminalOption configures a TerminalCC.
type TerminalOption func(*TerminalCC)

// WithSink makes the controller drop clean lines on eviction without telling
// its parents. Parents serving translation fetches do not track the
// requester, so there is nobody to tell.
func WithSink() TerminalOption {
	return func(cc *TerminalCC) {
		cc.sink = true
	}
}

// NewTerminalCC creates the controller of a childless cache with numLines
// lines.
func NewTerminalCC(name string, numLines int, opts ...TerminalOption) *TerminalCC {
	cc := &TerminalCC{
		name:  name,
		bcc:   newBottomCC(name, numLines),
		drops: stats.NewCounter("drops", "Clean lines dropped on eviction"),
	}

	for _, o := range opts {
		o(cc)
	}

	return cc
}

// SetParents connects the cache to the caches or memories above it.
func (cc *TerminalCC) SetParents(
	childID uint32,
	parents []mem.MemObject,
	net *network.Network,
) {
	cc.bcc.setParents(childID, parents, net)
}

// SetChildren always aborts. A terminal cache has no children.
func (cc *TerminalCC) SetChildren(_ []mem.BaseCache, _ *network.Network) {
	log.Panicf("[%s] terminal controller cannot have children", cc.name)
}

// InitStats registers the protocol counters.
func (cc *TerminalCC) InitStats(parent *stats.Aggregate) {
	cc.bcc.prof.appendTo(parent)
	if cc.sink {
		parent.Append(cc.drops)
	}
}

// StartAccess opens the access bracket. Only fetches reach a terminal
// cache, and nobody else changes its lines while they are in flight, so the
// access is never skipped.
func (cc *TerminalCC) StartAccess(req *mem.Request) bool {
	if !req.Type.IsGet() {
		log.Panicf("[%s] terminal controller received %s", cc.name, req)
	}

	if cc.active {
		log.Panicf("[%s] %s started while another access is in flight",
			cc.name, req)
	}
	cc.active = true

	return false
}

// EndAccess closes the access bracket.
func (cc *TerminalCC) EndAccess(_ *mem.Request) {
	cc.active = false
}

// ShouldAllocate always returns true.
func (cc *TerminalCC) ShouldAllocate(_ *mem.Request) bool {
	return true
}

// ProcessEviction writes back the line held in lineID. A sink drops clean
// lines at no cost.
func (cc *TerminalCC) ProcessEviction(
	trigger *mem.Request,
	wbLineAddr mem.Address,
	lineID int,
	cycle uint64,
) uint64 {
	state := cc.bcc.state(lineID)
	if cc.sink && (*state == mem.S || *state == mem.E) {
		*state = mem.I
		cc.drops.Inc()

		return cycle
	}

	return cc.bcc.processEviction(wbLineAddr, lineID, false, cycle,
		trigger.SrcID)
}

// ProcessAccess fetches or upgrades the line if needed.
func (cc *TerminalCC) ProcessAccess(
	req *mem.Request,
	lineID int,
	cycle uint64,
) uint64 {
	return cc.bcc.processAccess(req.LineAddr, lineID, req.Type, cycle,
		req.SrcID, req.Flags)
}

// ProcessInv applies an invalidation from a parent.
func (cc *TerminalCC) ProcessInv(req mem.InvRequest, lineID int, cycle uint64) uint64 {
	cc.bcc.processInval(req.LineAddr, lineID, req.Type, req.Writeback)

	return cycle
}

// State returns the coherence state of lineID.
func (cc *TerminalCC) State(lineID int) mem.MESIState {
	return *cc.bcc.state(lineID)
}
