package core

// A Scheduler tells which process runs on a core.
type Scheduler interface {
	ScheduledProcess(coreID uint32) (procIdx uint32, ok bool)
}

// StaticScheduler pins processes to cores for the whole run.
type StaticScheduler struct {
	procs map[uint32]uint32
}

// NewStaticScheduler creates a scheduler from a core-to-process map.
func NewStaticScheduler(assignment map[uint32]uint32) *StaticScheduler {
	s := &StaticScheduler{procs: make(map[uint32]uint32, len(assignment))}
	for c, p := range assignment {
		s.procs[c] = p
	}

	return s
}

// Assign runs procIdx on coreID.
func (s *StaticScheduler) Assign(coreID, procIdx uint32) {
	s.procs[coreID] = procIdx
}

// ScheduledProcess returns the process running on coreID.
func (s *StaticScheduler) ScheduledProcess(coreID uint32) (uint32, bool) {
	p, ok := s.procs[coreID]
	return p, ok
}
