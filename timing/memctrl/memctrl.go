// Package memctrl models main memory as the top of the coherent hierarchy.
package memctrl

import (
	"log"

	"github.com/czhu95/zsim/mem"
	"github.com/czhu95/zsim/stats"
)

// SimpleMemory answers every request after a fixed latency. It grants lines
// in E unless asked not to, and takes back write-backs.
type SimpleMemory struct {
	name    string
	latency uint64

	// requests is indexed by mem.AccessType.
	requests *stats.VectorCounter
}

// New creates a memory called name with the given latency in cycles.
func New(name string, latency uint64) *SimpleMemory {
	requests := stats.NewVectorCounter("requests", "Requests by type", 4).
		WithCounterNames("GETS", "GETX", "PUTS", "PUTX")

	return &SimpleMemory{
		name:     name,
		latency:  latency,
		requests: requests,
	}
}

// Name returns the memory name.
func (m *SimpleMemory) Name() string {
	return m.name
}

// Latency returns the access latency.
func (m *SimpleMemory) Latency() uint64 {
	return m.latency
}

// Access serves req. Clean write-backs complete immediately.
func (m *SimpleMemory) Access(req *mem.Request) uint64 {
	if req.State == nil {
		log.Panicf("[%s] %s carries no state", m.name, req)
	}

	switch req.Type {
	case mem.PUTS:
		*req.State = mem.I
		m.requests.Inc(int(mem.PUTS))
		return req.Cycle
	case mem.PUTX:
		*req.State = mem.I
		m.requests.Inc(int(mem.PUTX))
	case mem.GETS:
		if req.Flags.Has(mem.FlagNoExcl) {
			*req.State = mem.S
		} else {
			*req.State = mem.E
		}
		m.requests.Inc(int(mem.GETS))
	case mem.GETX:
		*req.State = mem.M
		m.requests.Inc(int(mem.GETX))
	default:
		log.Panicf("[%s] unknown access type %s", m.name, req.Type)
	}

	return req.Cycle + m.latency
}

// InitStats registers the memory counters.
func (m *SimpleMemory) InitStats(parent *stats.Aggregate) {
	agg := stats.NewAggregate(m.name, "Memory controller stats")
	agg.Append(m.requests)
	parent.Append(agg)
}
