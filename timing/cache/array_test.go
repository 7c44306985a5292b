package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/czhu95/zsim/mem"
	"github.com/czhu95/zsim/stats"
	"github.com/czhu95/zsim/timing/cache"
	"github.com/czhu95/zsim/timing/repl"
)

var _ = Describe("SetAssocArray", func() {
	var a *cache.SetAssocArray

	insert := func(tag mem.Address) int {
		v := a.Preinsert(tag, nil)
		a.Postinsert(tag, &mem.Request{Type: mem.GETS}, v.LineID)
		return v.LineID
	}

	BeforeEach(func() {
		a = cache.NewSetAssocArray(8, 2, repl.NewLRU())
	})

	It("should reject shapes that do not divide", func() {
		Expect(func() { cache.NewSetAssocArray(6, 4, repl.NewLRU()) }).To(Panic())
		Expect(func() { cache.NewSetAssocArray(0, 1, repl.NewLRU()) }).To(Panic())
	})

	It("should miss on an empty array", func() {
		Expect(a.NumLines()).To(Equal(8))
		Expect(a.Lookup(0x5, nil, true)).To(Equal(cache.NotFound))
		Expect(a.Stats().Misses).To(Equal(uint64(1)))
	})

	It("should map a tag to a way of its set", func() {
		id := insert(0x5)

		// 4 sets; tag 5 lives in set 1.
		Expect(id / 2).To(Equal(1))
		Expect(a.Lookup(0x5, nil, false)).To(Equal(id))

		tag, valid := a.Tag(id)
		Expect(valid).To(BeTrue())
		Expect(tag).To(Equal(mem.Address(0x5)))
	})

	It("should not modify the array in preinsert", func() {
		v := a.Preinsert(0x5, nil)
		Expect(v.Valid).To(BeFalse())
		Expect(a.Lookup(0x5, nil, false)).To(Equal(cache.NotFound))
	})

	It("should report the victim's tag", func() {
		insert(0x1)
		insert(0x5)

		v := a.Preinsert(0x9, nil)
		Expect(v.Valid).To(BeTrue())
		Expect(v.Addr).To(Equal(mem.Address(0x1)))
		Expect(v.Dirty).To(BeFalse())
	})

	It("should keep recently touched tags", func() {
		id := insert(0x1)
		insert(0x5)
		a.Touch(id)

		v := a.Preinsert(0x9, nil)
		Expect(v.Addr).To(Equal(mem.Address(0x5)))
	})

	It("should only update recency on request", func() {
		insert(0x1)
		insert(0x5)
		a.Lookup(0x1, nil, false)
		Expect(a.Preinsert(0x9, nil).Addr).To(Equal(mem.Address(0x1)))

		a.Lookup(0x1, nil, true)
		Expect(a.Preinsert(0x9, nil).Addr).To(Equal(mem.Address(0x5)))
	})

	It("should mark lines written by GETX dirty", func() {
		v := a.Preinsert(0x2, nil)
		a.Postinsert(0x2, &mem.Request{Type: mem.GETX}, v.LineID)
		insert(0x6)

		victim := a.Preinsert(0xa, nil)
		Expect(victim.Addr).To(Equal(mem.Address(0x2)))
		Expect(victim.Dirty).To(BeTrue())
	})

	It("should count replacements", func() {
		insert(0x1)
		insert(0x5)
		insert(0x9)

		Expect(a.Lookup(0x1, nil, false)).To(Equal(cache.NotFound))
		Expect(a.Stats().Inserts).To(Equal(uint64(3)))
		Expect(a.Stats().Evictions).To(Equal(uint64(1)))

		root := stats.NewAggregate("root", "")
		a.InitStats(root)
		s, ok := stats.Lookup(root, "array", "evictions")
		Expect(ok).To(BeTrue())
		Expect(s.(*stats.Counter).Get()).To(Equal(uint64(1)))
	})

	It("should forget everything on reset", func() {
		insert(0x1)
		a.Reset()
		Expect(a.Lookup(0x1, nil, false)).To(Equal(cache.NotFound))
	})

	It("should work with SRRIP", func() {
		a = cache.NewSetAssocArray(2, 2, repl.NewSRRIP())
		id := insert(0x1)
		insert(0x2)
		a.Touch(id)

		Expect(a.Preinsert(0x3, nil).Addr).To(Equal(mem.Address(0x2)))
	})
})
