package stats

import (
	"log"
	"strconv"
)

// Size returns the number of scalar values held under s.
func Size(s Stat) int {
	switch st := s.(type) {
	case *Aggregate:
		sz := 0
		for _, c := range st.children {
			sz += Size(c)
		}
		return sz
	case *Counter:
		return 1
	case *VectorCounter:
		return st.Len()
	default:
		log.Panicf("stats: unrecognized stat type %T", s)
	}

	return 0
}

// Flatten returns all scalar values under s in tree order.
func Flatten(s Stat) []uint64 {
	out := make([]uint64, 0, Size(s))
	return flatten(s, out)
}

func flatten(s Stat, out []uint64) []uint64 {
	switch st := s.(type) {
	case *Aggregate:
		for _, c := range st.children {
			out = flatten(c, out)
		}
	case *Counter:
		out = append(out, st.Get())
	case *VectorCounter:
		out = append(out, st.counts...)
	default:
		log.Panicf("stats: unrecognized stat type %T", s)
	}

	return out
}

// A Sample is one scalar value reached by Walk.
type Sample struct {
	// Path is the dot-separated list of names from the walk root.
	Path string
	// Index is the element of a vector, or -1 for a scalar counter.
	Index int
	// Label is the element name of a named vector.
	Label string
	Desc  string
	Value uint64
}

// Walk calls fn for every scalar value under s. The root name is included in
// the paths.
func Walk(s Stat, fn func(Sample)) {
	walk(s, "", fn)
}

func walk(s Stat, prefix string, fn func(Sample)) {
	path := s.Name()
	if prefix != "" {
		path = prefix + "." + s.Name()
	}

	switch st := s.(type) {
	case *Aggregate:
		for _, c := range st.children {
			walk(c, path, fn)
		}
	case *Counter:
		fn(Sample{Path: path, Index: -1, Desc: st.desc, Value: st.Get()})
	case *VectorCounter:
		for i := range st.counts {
			label := st.CounterName(i)
			if label == "" {
				label = strconv.Itoa(i)
			}

			fn(Sample{
				Path:  path,
				Index: i,
				Label: label,
				Desc:  st.desc,
				Value: st.counts[i],
			})
		}
	default:
		log.Panicf("stats: unrecognized stat type %T", s)
	}
}

// Lookup follows a dot-separated path of names below root.
func Lookup(root *Aggregate, path ...string) (Stat, bool) {
	var cur Stat = root
	for _, name := range path {
		agg, ok := cur.(*Aggregate)
		if !ok {
			return nil, false
		}

		cur, ok = agg.Find(name)
		if !ok {
			return nil, false
		}
	}

	return cur, true
}

// Value returns the scalar at path below root. The last name may select an
// element of a named vector.
func Value(root *Aggregate, path ...string) (uint64, bool) {
	if s, ok := Lookup(root, path...); ok {
		if c, ok := s.(*Counter); ok {
			return c.Get(), true
		}

		return 0, false
	}

	if len(path) == 0 {
		return 0, false
	}

	s, ok := Lookup(root, path[:len(path)-1]...)
	if !ok {
		return 0, false
	}

	v, ok := s.(*VectorCounter)
	if !ok {
		return 0, false
	}

	label := path[len(path)-1]
	for i := range v.counts {
		if v.CounterName(i) == label || strconv.Itoa(i) == label {
			return v.counts[i], true
		}
	}

	return 0, false
}
