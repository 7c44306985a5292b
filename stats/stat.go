// Package stats provides the statistics tree components register their
// counters into. A Stat is one of three closed kinds: an Aggregate holding an
// ordered list of children, a scalar Counter, or a VectorCounter.
package stats

import "log"

// A Stat is a named node of the statistics tree. The set of implementations is
// closed: *Aggregate, *Counter and *VectorCounter.
type Stat interface {
	Name() string
	Desc() string

	sealed()
}

type meta struct {
	name string
	desc string
}

func (m meta) Name() string { return m.name }
func (m meta) Desc() string { return m.desc }

// An Aggregate groups other stats.
type Aggregate struct {
	meta

	children  []Stat
	immutable bool
}

// NewAggregate creates an empty aggregate.
func NewAggregate(name, desc string) *Aggregate {
	return &Aggregate{meta: meta{name: name, desc: desc}}
}

func (*Aggregate) sealed() {}

// Append adds a child at the end of the aggregate.
func (a *Aggregate) Append(s Stat) {
	if a.immutable {
		log.Panicf("stats: cannot append %s to immutable aggregate %s",
			s.Name(), a.name)
	}

	a.children = append(a.children, s)
}

// MakeImmutable forbids further appends. Dumpers that snapshot the layout of
// the tree call it.
func (a *Aggregate) MakeImmutable() {
	a.immutable = true
	for _, c := range a.children {
		if ca, ok := c.(*Aggregate); ok {
			ca.MakeImmutable()
		}
	}
}

// Len returns the number of direct children.
func (a *Aggregate) Len() int {
	return len(a.children)
}

// Get returns the i-th child.
func (a *Aggregate) Get(i int) Stat {
	return a.children[i]
}

// Find returns the direct child with the given name.
func (a *Aggregate) Find(name string) (Stat, bool) {
	for _, c := range a.children {
		if c.Name() == name {
			return c, true
		}
	}

	return nil, false
}

// A Counter is a scalar statistic.
type Counter struct {
	meta

	value uint64
}

// NewCounter creates a zeroed counter.
func NewCounter(name, desc string) *Counter {
	return &Counter{meta: meta{name: name, desc: desc}}
}

func (*Counter) sealed() {}

// Inc adds one.
func (c *Counter) Inc() {
	c.value++
}

// Add adds n.
func (c *Counter) Add(n uint64) {
	c.value += n
}

// Get returns the current value.
func (c *Counter) Get() uint64 {
	return c.value
}

// Reset sets the counter back to zero.
func (c *Counter) Reset() {
	c.value = 0
}

// A VectorCounter is a fixed-size array of counters, optionally with a name per
// element.
type VectorCounter struct {
	meta

	counts       []uint64
	counterNames []string
}

// NewVectorCounter creates a vector of size zeroed counters.
func NewVectorCounter(name, desc string, size int) *VectorCounter {
	return &VectorCounter{
		meta:   meta{name: name, desc: desc},
		counts: make([]uint64, size),
	}
}

func (*VectorCounter) sealed() {}

// WithCounterNames names each element. The number of names must match the size
// of the vector.
func (v *VectorCounter) WithCounterNames(names ...string) *VectorCounter {
	if len(names) != len(v.counts) {
		log.Panicf("stats: vector %s has %d elements but %d names",
			v.name, len(v.counts), len(names))
	}

	v.counterNames = names

	return v
}

// Len returns the number of elements.
func (v *VectorCounter) Len() int {
	return len(v.counts)
}

// Inc adds one to element i.
func (v *VectorCounter) Inc(i int) {
	v.counts[i]++
}

// Add adds n to element i.
func (v *VectorCounter) Add(i int, n uint64) {
	v.counts[i] += n
}

// Count returns element i.
func (v *VectorCounter) Count(i int) uint64 {
	return v.counts[i]
}

// CounterName returns the name of element i, or "" if the vector is unnamed.
func (v *VectorCounter) CounterName(i int) string {
	if v.counterNames == nil {
		return ""
	}

	return v.counterNames[i]
}
