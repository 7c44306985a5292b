package mem

import "fmt"

// AccessType is the kind of an access request travelling up the hierarchy.
type AccessType int

const (
	// GETS asks for a readable copy.
	GETS AccessType = iota
	// GETX asks for a writable copy.
	GETX
	// PUTS announces the eviction of a clean copy.
	PUTS
	// PUTX writes back a dirty or exclusive copy.
	PUTX
)

func (t AccessType) String() string {
	switch t {
	case GETS:
		return "GETS"
	case GETX:
		return "GETX"
	case PUTS:
		return "PUTS"
	case PUTX:
		return "PUTX"
	default:
		return fmt.Sprintf("AccessType(%d)", int(t))
	}
}

// IsGet returns true for requests that fetch a line.
func (t AccessType) IsGet() bool {
	return t == GETS || t == GETX
}

// InvType is the kind of an invalidation travelling down the hierarchy.
type InvType int

const (
	// INV removes the line from the child.
	INV InvType = iota
	// INVX downgrades an exclusive child to shared.
	INVX
	// FWD asks the child to forward the line and drop it.
	FWD
)

func (t InvType) String() string {
	switch t {
	case INV:
		return "INV"
	case INVX:
		return "INVX"
	case FWD:
		return "FWD"
	default:
		return fmt.Sprintf("InvType(%d)", int(t))
	}
}

// MESIState is the coherence state of a cached line.
type MESIState int

const (
	// I means the line is not present.
	I MESIState = iota
	// S means the line is present and may be shared with others.
	S
	// E means the line is present, clean and held by nobody else.
	E
	// M means the line is present, dirty and held by nobody else.
	M
)

func (s MESIState) String() string {
	switch s {
	case I:
		return "I"
	case S:
		return "S"
	case E:
		return "E"
	case M:
		return "M"
	default:
		return fmt.Sprintf("MESIState(%d)", int(s))
	}
}

// IsValid returns true if the line is present.
func (s MESIState) IsValid() bool {
	return s != I
}

// IsExclusive returns true if nobody else holds the line.
func (s MESIState) IsExclusive() bool {
	return s == E || s == M
}

// Flags qualify a request.
type Flags uint32

const (
	// FlagPTEFetch marks requests issued by a translation cache. Parents
	// serve them as shared reads without tracking the requester, so they
	// never send invalidations back to it.
	FlagPTEFetch Flags = 1 << iota
	// FlagNoExcl forbids granting the line in E.
	FlagNoExcl
)

// Has returns true if all bits of f2 are set.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// A Request is an access to a line. State points at the requester's copy of
// the line state; the component serving the request updates it. InitialState
// records what the requester saw when it built the request so that races can
// be detected.
type Request struct {
	LineAddr     Address
	Type         AccessType
	ChildID      uint32
	State        *MESIState
	InitialState MESIState
	Cycle        uint64
	SrcID        uint32
	Flags        Flags
}

func (r *Request) String() string {
	state := "nil"
	if r.State != nil {
		state = r.State.String()
	}

	return fmt.Sprintf("%s %#x child %d state %s (was %s) cycle %d src %d",
		r.Type, uint64(r.LineAddr), r.ChildID, state, r.InitialState,
		r.Cycle, r.SrcID)
}

// An InvRequest asks a child to invalidate or downgrade a line. The child
// sets *Writeback when it held the line dirty.
type InvRequest struct {
	LineAddr  Address
	Type      InvType
	Writeback *bool
	Cycle     uint64
	SrcID     uint32
}
