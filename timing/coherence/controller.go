// Package coherence implements the MESI coherence controllers that sit next
// to every cache array of the simulated hierarchy.
//
// A controller owns the coherence state of the lines in its array. Its bottom
// half talks to the parents of the cache and its top half tracks which
// children share each line. Every call returns the cycle at which the
// operation completes, so the protocol runs as a sequence of ordered events.
package coherence

import (
	"github.com/czhu95/zsim/mem"
	"github.com/czhu95/zsim/network"
	"github.com/czhu95/zsim/stats"
)

// A Controller keeps the lines of one cache coherent with the rest of the
// hierarchy.
//
// StartAccess and EndAccess bracket an access. StartAccess may rewrite
// req.Type when it detects that the requester's copy changed after the
// request was built, and returns true when the access must be skipped.
type Controller interface {
	SetParents(childID uint32, parents []mem.MemObject, net *network.Network)
	SetChildren(children []mem.BaseCache, net *network.Network)
	InitStats(parent *stats.Aggregate)

	StartAccess(req *mem.Request) (skip bool)
	ProcessAccess(req *mem.Request, lineID int, cycle uint64) uint64
	ProcessEviction(
		trigger *mem.Request,
		wbLineAddr mem.Address,
		lineID int,
		cycle uint64,
	) uint64
	ProcessInv(req mem.InvRequest, lineID int, cycle uint64) uint64
	EndAccess(req *mem.Request)

	// ShouldAllocate returns true if a miss on req installs the line.
	ShouldAllocate(req *mem.Request) bool
}
