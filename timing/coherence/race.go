package coherence

import (
	"log"

	"github.com/czhu95/zsim/mem"
)

// checkRace compares the requester's current line state with the state it
// saw when it built req. A write-back whose line was invalidated meanwhile is
// skipped, a dirty write-back whose line was downgraded becomes a clean one,
// and an upgrade whose shared copy was invalidated proceeds as a full miss.
// Any other change cannot happen under MESI.
func checkRace(name string, req *mem.Request) (skip bool) {
	if req.State == nil || *req.State == req.InitialState {
		return false
	}

	cur := *req.State
	switch req.Type {
	case mem.PUTX:
		if !req.InitialState.IsExclusive() {
			break
		}

		switch cur {
		case mem.I:
			return true
		case mem.S:
			req.Type = mem.PUTS
			return false
		}
	case mem.PUTS:
		if (req.InitialState == mem.S || req.InitialState == mem.E) &&
			cur == mem.I {
			return true
		}
	case mem.GETX:
		if req.InitialState == mem.S && cur == mem.I {
			return false
		}
	}

	log.Panicf("[%s] unexpected race on %s: state %s changed to %s",
		name, req.Type, req.InitialState, cur)

	return false
}
