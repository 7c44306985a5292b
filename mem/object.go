package mem

import (
	"github.com/czhu95/zsim/network"
	"github.com/czhu95/zsim/stats"
)

// A MemObject serves access requests and returns the cycle at which the
// request completes.
type MemObject interface {
	Name() string
	Access(req *Request) uint64
}

// A BaseCache is a MemObject that takes part in the coherent hierarchy. It has
// parents it fetches from, children it may invalidate, and statistics.
type BaseCache interface {
	MemObject

	SetParents(childID uint32, parents []MemObject, net *network.Network)
	SetChildren(children []BaseCache, net *network.Network)
	Invalidate(req InvRequest) uint64
	InitStats(parent *stats.Aggregate)
}
