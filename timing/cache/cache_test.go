package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/czhu95/zsim/mem"
	"github.com/czhu95/zsim/stats"
	"github.com/czhu95/zsim/timing/cache"
	"github.com/czhu95/zsim/timing/coherence"
	"github.com/czhu95/zsim/timing/memctrl"
	"github.com/czhu95/zsim/timing/repl"
)

var _ = Describe("Config", func() {
	It("should accept the defaults", func() {
		Expect(cache.DefaultL2Config().Validate()).To(Succeed())
		Expect(cache.DefaultL3Config().Validate()).To(Succeed())
	})

	DescribeTable("should reject",
		func(mutate func(*cache.Config), msg string) {
			c := cache.DefaultL2Config()
			mutate(&c)
			Expect(c.Validate()).To(MatchError(ContainSubstring(msg)))
		},
		Entry("no name", func(c *cache.Config) { c.Name = "" }, "no name"),
		Entry("no lines", func(c *cache.Config) { c.NumLines = 0 }, "lines"),
		Entry("bad ways", func(c *cache.Config) { c.Ways = 3 }, "ways"),
		Entry("no latency", func(c *cache.Config) { c.AccessLatency = 0 }, "latency"),
		Entry("bad policy", func(c *cache.Config) { c.Repl = "mru" }, "mru"),
	)
})

var _ = Describe("Cache", func() {
	var (
		l2     *cache.Cache
		memory *memctrl.SimpleMemory
	)

	BeforeEach(func() {
		var err error
		l2, err = cache.NewMESI(cache.Config{
			Name:          "l2",
			NumLines:      4,
			Ways:          2,
			AccessLatency: 5,
			InvLatency:    3,
			Repl:          "lru",
		})
		Expect(err).NotTo(HaveOccurred())

		memory = memctrl.New("mem", 40)
		l2.SetParents(0, []mem.MemObject{memory}, nil)

		policy := repl.NewLRU()
		child := cache.New(cache.Config{
			Name: "l1", NumLines: 1, Ways: 1, AccessLatency: 1, InvLatency: 1,
		},
			coherence.NewTerminalCC("l1", 1),
			cache.NewSetAssocArray(1, 1, policy),
			policy,
		)
		l2.SetChildren([]mem.BaseCache{child}, nil)
	})

	It("should reject an invalid configuration", func() {
		_, err := cache.NewMESI(cache.Config{Name: "bad"})
		Expect(err).To(HaveOccurred())
	})

	It("should charge the access latency on hits and misses", func() {
		state := mem.I
		req := &mem.Request{
			LineAddr: 0x3, Type: mem.GETS, State: &state, Flags: mem.FlagPTEFetch,
		}
		Expect(l2.Access(req)).To(Equal(uint64(45)))
		Expect(state).To(Equal(mem.S))

		other := mem.I
		req = &mem.Request{
			LineAddr: 0x3, Type: mem.GETS, ChildID: 0, State: &other,
			Cycle: 100, Flags: mem.FlagPTEFetch,
		}
		Expect(l2.Access(req)).To(Equal(uint64(105)))
	})

	It("should skip write-backs of lines lost in a race", func() {
		state := mem.I
		req := &mem.Request{
			LineAddr: 0x3, Type: mem.PUTS, State: &state, InitialState: mem.S,
			Cycle: 10,
		}
		Expect(l2.Access(req)).To(Equal(uint64(10)))

		// The bracket was closed.
		state = mem.I
		req = &mem.Request{
			LineAddr: 0x3, Type: mem.GETS, State: &state, Flags: mem.FlagPTEFetch,
		}
		Expect(func() { l2.Access(req) }).NotTo(Panic())
	})

	It("should abort on invalidations of absent lines", func() {
		Expect(func() {
			l2.Invalidate(mem.InvRequest{LineAddr: 0x7, Type: mem.INV})
		}).To(PanicWith(ContainSubstring("not present")))
	})

	It("should invalidate present lines after the invalidation latency", func() {
		state := mem.I
		l2.Access(&mem.Request{
			LineAddr: 0x3, Type: mem.GETS, State: &state, Flags: mem.FlagPTEFetch,
		})

		wb := false
		Expect(l2.Invalidate(mem.InvRequest{
			LineAddr: 0x3, Type: mem.INV, Writeback: &wb, Cycle: 50,
		})).To(Equal(uint64(53)))

		cc := l2.Controller().(*coherence.MESICC)
		Expect(cc.State(l2.Array().Lookup(0x3, nil, false))).To(Equal(mem.I))
	})

	It("should register its stats under its name", func() {
		root := stats.NewAggregate("root", "")
		l2.InitStats(root)

		for _, path := range [][]string{
			{"l2", "hGETS"},
			{"l2", "untrackedGETS"},
			{"l2", "array", "hits"},
			{"l2", "repl", "victims"},
		} {
			_, ok := stats.Lookup(root, path...)
			Expect(ok).To(BeTrue(), "missing %v", path)
		}
	})
})
