package cache

import (
	"log"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/czhu95/zsim/mem"
	"github.com/czhu95/zsim/stats"
	"github.com/czhu95/zsim/timing/repl"
)

// NotFound is the line id returned by a lookup that misses.
const NotFound = -1

// A Victim is the slot chosen to receive a new tag. Addr is the tag the slot
// held before, and is only meaningful when Valid is true.
type Victim struct {
	LineID int
	Addr   mem.Address
	Valid  bool
	Dirty  bool
}

// An Array maps tags to line slots. Slot ids run from 0 to NumLines()-1.
type Array interface {
	NumLines() int

	// Lookup returns the slot holding tag, or NotFound. When
	// updateReplacement is set, a hit is recorded with the policy.
	Lookup(tag mem.Address, req *mem.Request, updateReplacement bool) int

	// Touch records a hit on a slot found by an earlier lookup.
	Touch(lineID int)

	// Preinsert picks the slot that will receive tag. It consults the
	// replacement policy once and does not modify the array.
	Preinsert(tag mem.Address, req *mem.Request) Victim

	// Postinsert commits tag into the slot returned by Preinsert.
	Postinsert(tag mem.Address, req *mem.Request, lineID int)

	InitStats(parent *stats.Aggregate)
}

// Statistics holds array counters.
type Statistics struct {
	Hits      uint64
	Misses    uint64
	Inserts   uint64
	Evictions uint64
}

// SetAssocArray is a set-associative array backed by an akita directory. The
// directory uses a block size of one, so a tag is its own block address and
// the set is tag modulo the number of sets.
type SetAssocArray struct {
	numLines  int
	ways      int
	directory *akitacache.DirectoryImpl
	policy    repl.Policy

	hits      *stats.Counter
	misses    *stats.Counter
	inserts   *stats.Counter
	evictions *stats.Counter
}

// NewSetAssocArray creates an array of numLines slots grouped in sets of
// ways. A ways value equal to numLines gives a fully associative array.
func NewSetAssocArray(numLines, ways int, policy repl.Policy) *SetAssocArray {
	if numLines <= 0 || ways <= 0 || numLines%ways != 0 {
		log.Panicf("cache: %d lines cannot be split into sets of %d ways",
			numLines, ways)
	}

	if policy == nil {
		log.Panicf("cache: array needs a replacement policy")
	}

	return &SetAssocArray{
		numLines:  numLines,
		ways:      ways,
		directory: akitacache.NewDirectory(numLines/ways, ways, 1, policy),
		policy:    policy,
		hits:      stats.NewCounter("hits", "Array lookup hits"),
		misses:    stats.NewCounter("misses", "Array lookup misses"),
		inserts:   stats.NewCounter("inserts", "Tags committed"),
		evictions: stats.NewCounter("evictions", "Valid tags replaced"),
	}
}

// NumLines returns the capacity of the array.
func (a *SetAssocArray) NumLines() int {
	return a.numLines
}

// Ways returns the associativity of the array.
func (a *SetAssocArray) Ways() int {
	return a.ways
}

// Lookup returns the slot holding tag, or NotFound.
func (a *SetAssocArray) Lookup(
	tag mem.Address,
	_ *mem.Request,
	updateReplacement bool,
) int {
	block := a.directory.Lookup(0, uint64(tag))
	if block == nil || !block.IsValid {
		a.misses.Inc()
		return NotFound
	}

	a.hits.Inc()
	if updateReplacement {
		a.touch(block)
	}

	return a.lineID(block)
}

// Touch records a hit on lineID.
func (a *SetAssocArray) Touch(lineID int) {
	a.touch(a.block(lineID))
}

func (a *SetAssocArray) touch(block *akitacache.Block) {
	a.directory.Visit(block)
	a.policy.Update(block)
}

// Preinsert picks the slot that will receive tag.
func (a *SetAssocArray) Preinsert(tag mem.Address, _ *mem.Request) Victim {
	block := a.directory.FindVictim(uint64(tag))
	if block == nil {
		return Victim{LineID: NotFound}
	}

	v := Victim{
		LineID: a.lineID(block),
		Valid:  block.IsValid,
		Dirty:  block.IsDirty,
	}
	if block.IsValid {
		v.Addr = mem.Address(block.Tag)
	}

	return v
}

// Postinsert commits tag into lineID. The slot is marked dirty when req is a
// write.
func (a *SetAssocArray) Postinsert(
	tag mem.Address,
	req *mem.Request,
	lineID int,
) {
	block := a.block(lineID)
	if block.IsValid {
		a.evictions.Inc()
	}

	block.PID = 0
	block.Tag = uint64(tag)
	block.IsValid = true
	block.IsDirty = req != nil && (req.Type == mem.GETX || req.Type == mem.PUTX)

	a.directory.Visit(block)
	a.policy.Replaced(block)
	a.inserts.Inc()
}

// Tag returns the tag held by lineID and whether the slot is valid.
func (a *SetAssocArray) Tag(lineID int) (mem.Address, bool) {
	block := a.block(lineID)
	return mem.Address(block.Tag), block.IsValid
}

// Stats returns a snapshot of the array counters.
func (a *SetAssocArray) Stats() Statistics {
	return Statistics{
		Hits:      a.hits.Get(),
		Misses:    a.misses.Get(),
		Inserts:   a.inserts.Get(),
		Evictions: a.evictions.Get(),
	}
}

// Reset invalidates every slot.
func (a *SetAssocArray) Reset() {
	a.directory.Reset()
}

// InitStats registers the array counters.
func (a *SetAssocArray) InitStats(parent *stats.Aggregate) {
	agg := stats.NewAggregate("array", "Tag array")
	agg.Append(a.hits)
	agg.Append(a.misses)
	agg.Append(a.inserts)
	agg.Append(a.evictions)
	parent.Append(agg)
}

func (a *SetAssocArray) lineID(block *akitacache.Block) int {
	return block.SetID*a.ways + block.WayID
}

func (a *SetAssocArray) block(lineID int) *akitacache.Block {
	if lineID < 0 || lineID >= a.numLines {
		log.Panicf("cache: line %d out of range [0, %d)", lineID, a.numLines)
	}

	sets := a.directory.GetSets()

	return sets[lineID/a.ways].Blocks[lineID%a.ways]
}
