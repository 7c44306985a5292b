package coherence

import (
	"log"

	"github.com/czhu95/zsim/mem"
	"github.com/czhu95/zsim/network"
	"github.com/czhu95/zsim/stats"
)

// sharerEntry is the directory entry of one line. Exclusive is only
// meaningful while exactly one child shares the line.
type sharerEntry struct {
	sharers    []bool
	numSharers int
	exclusive  bool
}

func (e *sharerEntry) isEmpty() bool {
	return e.numSharers == 0
}

func (e *sharerEntry) isExclusive() bool {
	return e.numSharers == 1 && e.exclusive
}

func (e *sharerEntry) add(childID uint32) {
	e.sharers[childID] = true
	e.numSharers++
}

func (e *sharerEntry) remove(childID uint32) {
	e.sharers[childID] = false
	e.numSharers--
}

// topCC tracks which children share each line and sends them invalidations
// and downgrades. A cache may have no tracked children at all when it only
// serves translation fetches.
type topCC struct {
	name      string
	entries   []sharerEntry
	children  []mem.BaseCache
	childRTTs []uint64
	untracked *stats.Counter
}

func newTopCC(name string, numLines int) *topCC {
	untracked := stats.NewCounter("untrackedGETS",
		"Translation fetches served without tracking the requester")

	return &topCC{
		name:      name,
		entries:   make([]sharerEntry, numLines),
		untracked: untracked,
	}
}

func (t *topCC) setChildren(children []mem.BaseCache, net *network.Network) {
	t.children = append([]mem.BaseCache(nil), children...)
	t.childRTTs = make([]uint64, len(children))
	for i, c := range children {
		t.childRTTs[i] = net.RTT(t.name, c.Name())
	}
}

func (t *topCC) entry(lineID int) *sharerEntry {
	if lineID < 0 || lineID >= len(t.entries) {
		log.Panicf("[%s] line %d out of range [0, %d)",
			t.name, lineID, len(t.entries))
	}

	e := &t.entries[lineID]
	if e.sharers == nil {
		e.sharers = make([]bool, len(t.children))
	}

	return e
}

func (t *topCC) checkChild(childID uint32) {
	if int(childID) >= len(t.children) {
		log.Panicf("[%s] unknown child %d", t.name, childID)
	}
}

// processAccess updates the sharers of lineID for a request from childID and
// sets the state granted to the child. haveExclusive tells whether this
// cache holds the line in E or M. inducedWriteback is set when a child had
// to write back dirty data.
func (t *topCC) processAccess(
	req *mem.Request,
	lineID int,
	haveExclusive bool,
	inducedWriteback *bool,
	cycle uint64,
) uint64 {
	e := t.entry(lineID)
	respCycle := cycle
	childID := req.ChildID
	childState := req.State
	if childState == nil {
		log.Panicf("[%s] %s carries no state", t.name, req)
	}

	switch req.Type {
	case mem.PUTX, mem.PUTS:
		t.checkChild(childID)
		if !e.sharers[childID] {
			log.Panicf("[%s] %s from a child that does not share the line",
				t.name, req)
		}
		if req.Type == mem.PUTX && !e.isExclusive() {
			log.Panicf("[%s] %s on a shared line", t.name, req)
		}

		e.remove(childID)
		*childState = mem.I
		if req.Type == mem.PUTX {
			*inducedWriteback = true
		}
	case mem.GETS:
		if req.Flags.Has(mem.FlagPTEFetch) {
			if e.isExclusive() {
				respCycle = t.sendInvalidates(req.LineAddr, lineID, mem.INVX,
					inducedWriteback, cycle, req.SrcID)
			}
			*childState = mem.S
			t.untracked.Inc()

			break
		}

		t.checkChild(childID)
		if e.isEmpty() && haveExclusive && !req.Flags.Has(mem.FlagNoExcl) {
			e.add(childID)
			e.exclusive = true
			*childState = mem.E

			break
		}

		if e.sharers[childID] {
			log.Panicf("[%s] %s from a child that already shares the line",
				t.name, req)
		}

		if e.isExclusive() {
			respCycle = t.sendInvalidates(req.LineAddr, lineID, mem.INVX,
				inducedWriteback, cycle, req.SrcID)
		}

		e.add(childID)
		e.exclusive = false
		*childState = mem.S
	case mem.GETX:
		t.checkChild(childID)
		if !haveExclusive {
			log.Panicf("[%s] %s without exclusive permission", t.name, req)
		}

		if e.sharers[childID] {
			if e.isExclusive() {
				log.Panicf("[%s] spurious %s from the exclusive owner",
					t.name, req)
			}
			e.remove(childID)
		}

		respCycle = t.sendInvalidates(req.LineAddr, lineID, mem.INV,
			inducedWriteback, cycle, req.SrcID)

		e.add(childID)
		e.exclusive = true
		*childState = mem.M
	default:
		log.Panicf("[%s] unknown access type %s", t.name, req.Type)
	}

	return respCycle
}

// processEviction invalidates every child copy of the line leaving lineID.
func (t *topCC) processEviction(
	wbLineAddr mem.Address,
	lineID int,
	reqWriteback *bool,
	cycle uint64,
	srcID uint32,
) uint64 {
	return t.sendInvalidates(wbLineAddr, lineID, mem.INV, reqWriteback,
		cycle, srcID)
}

// processInval propagates an invalidation from a parent to the children.
// FWD leaves the children alone; this cache answers it.
func (t *topCC) processInval(
	lineAddr mem.Address,
	lineID int,
	kind mem.InvType,
	reqWriteback *bool,
	cycle uint64,
	srcID uint32,
) uint64 {
	if kind == mem.FWD {
		return cycle
	}

	return t.sendInvalidates(lineAddr, lineID, kind, reqWriteback, cycle, srcID)
}

// sendInvalidates sends kind to every sharer of lineID in parallel and
// returns when the slowest child answers. INVX is only sent to an exclusive
// sharer.
func (t *topCC) sendInvalidates(
	lineAddr mem.Address,
	lineID int,
	kind mem.InvType,
	reqWriteback *bool,
	cycle uint64,
	srcID uint32,
) uint64 {
	e := t.entry(lineID)
	if kind == mem.INVX && !e.isExclusive() {
		return cycle
	}

	if e.isEmpty() {
		return cycle
	}

	maxCycle := cycle
	sent := 0
	for c, child := range t.children {
		if !e.sharers[c] {
			continue
		}

		respCycle := child.Invalidate(mem.InvRequest{
			LineAddr:  lineAddr,
			Type:      kind,
			Writeback: reqWriteback,
			Cycle:     cycle,
			SrcID:     srcID,
		})
		respCycle += t.childRTTs[c]
		maxCycle = max(maxCycle, respCycle)

		if kind == mem.INV {
			e.sharers[c] = false
		}
		sent++
	}

	if sent != e.numSharers {
		log.Panicf("[%s] sent %d invalidations for %d sharers of %#x",
			t.name, sent, e.numSharers, uint64(lineAddr))
	}

	if kind == mem.INV {
		e.numSharers = 0
	} else {
		e.exclusive = false
	}

	return maxCycle
}

// sharersOf returns the ids of the children sharing lineID.
func (t *topCC) sharersOf(lineID int) []uint32 {
	e := t.entry(lineID)
	ids := make([]uint32, 0, e.numSharers)
	for c, s := range e.sharers {
		if s {
			ids = append(ids, uint32(c))
		}
	}

	return ids
}
