package tlb

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/czhu95/zsim/mem"
	"github.com/czhu95/zsim/network"
	"github.com/czhu95/zsim/stats"
	"github.com/czhu95/zsim/timing/cache"
	"github.com/czhu95/zsim/timing/coherence"
	"github.com/czhu95/zsim/timing/memctrl"
	"github.com/czhu95/zsim/timing/repl"
)

// stubController charges a fixed round trip on every access and on every
// eviction of an occupied slot.
type stubController struct {
	rtt       uint64
	occupied  map[int]bool
	evictions []mem.Address
	accesses  []*mem.Request
}

func newStubController(rtt uint64) *stubController {
	return &stubController{rtt: rtt, occupied: make(map[int]bool)}
}

func (s *stubController) SetParents(uint32, []mem.MemObject, *network.Network) {}
func (s *stubController) SetChildren([]mem.BaseCache, *network.Network) {}
func (s *stubController) InitStats(*stats.Aggregate) {}
func (s *stubController) StartAccess(*mem.Request) bool { return false }
func (s *stubController) EndAccess(*mem.Request) {}
func (s *stubController) ShouldAllocate(*mem.Request) bool { return true }

func (s *stubController) ProcessAccess(
	req *mem.Request,
	lineID int,
	cycle uint64,
) uint64 {
	s.occupied[lineID] = true
	s.accesses = append(s.accesses, req)

	return cycle + s.rtt
}

func (s *stubController) ProcessEviction(
	_ *mem.Request,
	wbLineAddr mem.Address,
	lineID int,
	cycle uint64,
) uint64 {
	if !s.occupied[lineID] {
		return cycle
	}

	s.evictions = append(s.evictions, wbLineAddr)

	return cycle + s.rtt
}

func (s *stubController) ProcessInv(mem.InvRequest, int, uint64) uint64 {
	panic("not expected")
}

func pageAddr(page uint64) mem.Address {
	return mem.Address(page << mem.PageBits)
}

func smallConfig() Config {
	return Config{
		Name:          "tlb-0",
		NumLines:      4,
		AccessLatency: 2,
		InvLatency:    1,
	}
}

func newLRUArray(lines int) (*cache.SetAssocArray, *repl.LRU) {
	policy := repl.NewLRU()
	return cache.NewSetAssocArray(lines, lines, policy), policy
}

var _ = Describe("TLB", func() {
	var (
		mockCtrl *gomock.Controller
		cc       *MockController
		array    *cache.SetAssocArray
		policy   *repl.LRU
		t        *Comp
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		cc = NewMockController(mockCtrl)
		array, policy = newLRUArray(4)
		t = New(smallConfig(), cc, array, policy)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Context("construction", func() {
		It("should reject an array of the wrong size", func() {
			other, p := newLRUArray(8)
			Expect(func() { New(smallConfig(), cc, other, p) }).
				To(PanicWith(ContainSubstring("array has 8 lines, want 4")))
		})

		It("should reject an invalid configuration", func() {
			cfg := smallConfig()
			cfg.InvLatency = 0
			Expect(func() { New(cfg, cc, array, policy) }).To(Panic())
		})

		It("should shift page-table lines by the hierarchy's line width", func() {
			Expect(DefaultConfig().PageWalk.LineBits).To(Equal(uint(mem.LineBits)))
		})
	})

	Context("hit", func() {
		It("should only charge the access latency", func() {
			cc.EXPECT().StartAccess(gomock.Any()).Return(false)
			cc.EXPECT().ProcessEviction(gomock.Any(), gomock.Any(), 0, uint64(102)).
				Return(uint64(102))
			cc.EXPECT().ProcessAccess(gomock.Any(), 0, uint64(102)).
				Return(uint64(150))
			cc.EXPECT().EndAccess(gomock.Any())

			Expect(t.Translate(pageAddr(7), 100)).To(Equal(uint64(150)))

			Expect(t.Translate(pageAddr(7), 200)).To(Equal(uint64(202)))
			Expect(t.Translate(pageAddr(7)+0x123, 300)).To(Equal(uint64(302)))
		})
	})

	Context("miss", func() {
		It("should run the controller protocol in order", func() {
			var seen *mem.Request
			gomock.InOrder(
				cc.EXPECT().StartAccess(gomock.Any()).
					DoAndReturn(func(req *mem.Request) bool {
						seen = req
						return false
					}),
				cc.EXPECT().ProcessEviction(gomock.Any(), gomock.Any(), 0, uint64(12)).
					Return(uint64(17)),
				cc.EXPECT().ProcessAccess(gomock.Any(), 0, uint64(17)).
					Return(uint64(24)),
				cc.EXPECT().EndAccess(gomock.Any()),
			)

			t.SetProcMask(mem.ProcMask(1))
			Expect(t.Translate(pageAddr(3), 10)).To(Equal(uint64(24)))

			Expect(seen.Type).To(Equal(mem.GETS))
			Expect(seen.LineAddr).To(Equal(mem.ProcMask(1) | 3))
			Expect(seen.Flags.Has(mem.FlagPTEFetch)).To(BeTrue())
			Expect(seen.InitialState).To(Equal(mem.I))
		})

		It("should abort when the controller skips a fetch", func() {
			cc.EXPECT().StartAccess(gomock.Any()).Return(true)

			Expect(func() { t.Translate(pageAddr(1), 0) }).
				To(PanicWith(ContainSubstring("skipped")))
		})

		It("should name the victim's page in the eviction", func() {
			stub := newStubController(3)
			t = New(smallConfig(), stub, array, policy)

			for p := uint64(0); p < 5; p++ {
				t.Translate(pageAddr(p), 0)
			}

			Expect(stub.evictions).To(Equal([]mem.Address{0}))
		})
	})

	Context("page walk", func() {
		BeforeEach(func() {
			cfg := smallConfig()
			cfg.PageWalk = PageWalkConfig{
				Enabled:     true,
				Latency:     20,
				PTEsPerLine: 8,
				LineBits:    1,
			}
			t = New(cfg, cc, array, policy)
		})

		It("should fetch the page-table line after the walk latency", func() {
			var walk *mem.Request
			gomock.InOrder(
				cc.EXPECT().StartAccess(gomock.Any()).Return(false),
				cc.EXPECT().ProcessEviction(gomock.Any(), gomock.Any(), 0, uint64(102)).
					Return(uint64(105)),
				cc.EXPECT().ProcessAccess(gomock.Any(), 0, uint64(125)).
					DoAndReturn(func(req *mem.Request, _ int, cycle uint64) uint64 {
						walk = req
						return cycle + 7
					}),
				cc.EXPECT().EndAccess(gomock.Any()),
			)

			Expect(t.Translate(pageAddr(0x50), 100)).To(Equal(uint64(132)))

			Expect(walk.LineAddr).To(Equal(mem.Address((0x50 / 8) >> 1)))
			Expect(walk.Type).To(Equal(mem.GETS))
			Expect(walk.Cycle).To(Equal(uint64(125)))
			Expect(walk.InitialState).To(Equal(mem.I))
			Expect(walk.Flags.Has(mem.FlagPTEFetch)).To(BeTrue())

			_, ok := array.Tag(0)
			Expect(ok).To(BeTrue())
		})
	})

	Context("latency decomposition", func() {
		DescribeTable("miss cost",
			func(walk bool, want uint64) {
				cfg := smallConfig()
				cfg.PageWalk = PageWalkConfig{
					Enabled:     walk,
					Latency:     20,
					PTEsPerLine: 8,
				}
				t = New(cfg, cc, array, policy)

				cc.EXPECT().StartAccess(gomock.Any()).Return(false)
				cc.EXPECT().ProcessEviction(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ *mem.Request, _ mem.Address, _ int, c uint64) uint64 {
						return c + 5
					})
				cc.EXPECT().ProcessAccess(gomock.Any(), gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ *mem.Request, _ int, c uint64) uint64 {
						return c + 11
					})
				cc.EXPECT().EndAccess(gomock.Any())

				Expect(t.Translate(pageAddr(9), 1000)).To(Equal(want))
			},
			Entry("without walk", false, uint64(1000+2+5+11)),
			Entry("with walk", true, uint64(1000+2+5+20+11)),
		)
	})

	Context("invalidate", func() {
		DescribeTable("always aborts",
			func(req mem.InvRequest) {
				Expect(func() { t.Invalidate(req) }).
					To(PanicWith(ContainSubstring("tlb-0")))
			},
			Entry("absent line without writeback flag",
				mem.InvRequest{LineAddr: 5, Type: mem.INV}),
			Entry("downgrade", mem.InvRequest{
				LineAddr: 5, Type: mem.INVX, Writeback: new(bool),
			}),
			Entry("forward", mem.InvRequest{LineAddr: 1 << 40, Type: mem.FWD}),
		)

		It("should report the line holding the page", func() {
			stub := newStubController(3)
			t = New(smallConfig(), stub, array, policy)
			t.Translate(pageAddr(0), 0)
			t.Translate(pageAddr(5), 0)

			wb := true
			Expect(func() {
				t.Invalidate(mem.InvRequest{LineAddr: 5, Type: mem.INV, Writeback: &wb})
			}).To(PanicWith(And(
				ContainSubstring("lineID 1"),
				ContainSubstring("type INV"),
				ContainSubstring("writeback true"),
			)))
		})
	})

	Context("topology", func() {
		It("should forward parents and children to the controller", func() {
			net := network.New(nil)
			parents := []mem.MemObject{memctrl.New("mem", 10)}

			cc.EXPECT().SetParents(uint32(3), parents, net)
			cc.EXPECT().SetChildren(gomock.Nil(), net)

			t.SetParents(3, parents, net)
			t.SetChildren(nil, net)
		})
	})

	Context("stats", func() {
		It("should register its collaborators under its own name", func() {
			root := stats.NewAggregate("root", "")
			cc.EXPECT().InitStats(gomock.Any()).Do(func(agg *stats.Aggregate) {
				Expect(agg.Name()).To(Equal("tlb-0"))
			})

			t.InitStats(root)

			_, ok := stats.Lookup(root, "tlb-0", "array", "hits")
			Expect(ok).To(BeTrue())
			_, ok = stats.Lookup(root, "tlb-0", "repl", "victims")
			Expect(ok).To(BeTrue())
		})
	})
})

var _ = Describe("TLB with a fixed round trip", func() {
	var (
		stub *stubController
		t    *Comp
	)

	BeforeEach(func() {
		stub = newStubController(3)
		array, policy := newLRUArray(4)
		t = New(smallConfig(), stub, array, policy)
	})

	It("should replay the four-page scenario", func() {
		for p := uint64(0); p < 4; p++ {
			Expect(t.Translate(pageAddr(p), 100)).To(Equal(uint64(105)))
		}
		Expect(stub.evictions).To(BeEmpty())

		Expect(t.Translate(pageAddr(0), 200)).To(Equal(uint64(202)))

		Expect(t.Translate(pageAddr(4), 300)).To(Equal(uint64(308)))
		Expect(stub.evictions).To(Equal([]mem.Address{1}))

		Expect(t.Translate(pageAddr(1), 400)).To(Equal(uint64(408)))
		Expect(stub.evictions).To(Equal([]mem.Address{1, 2}))
	})

	It("should evict exactly once when overflowing by one page", func() {
		for p := uint64(10); p < 15; p++ {
			t.Translate(pageAddr(p), 0)
		}

		Expect(stub.evictions).To(Equal([]mem.Address{10}))
		Expect(stub.accesses).To(HaveLen(5))

		for p := uint64(11); p < 15; p++ {
			Expect(t.Translate(pageAddr(p), 50)).To(Equal(uint64(52)))
		}
	})
})

var _ = Describe("TLB in a hierarchy", func() {
	It("should fetch translations from memory and drop them silently", func() {
		array, policy := newLRUArray(2)
		cc := coherence.NewTerminalCC("tlb-0", 2, coherence.WithSink())
		cfg := smallConfig()
		cfg.NumLines = 2
		t := New(cfg, cc, array, policy)

		memory := memctrl.New("mem", 100)
		net := network.New([]network.Link{{Src: "tlb-0", Dst: "mem", Latency: 5}})
		t.SetParents(0, []mem.MemObject{memory}, net)

		root := stats.NewAggregate("root", "")
		t.InitStats(root)

		Expect(t.Translate(pageAddr(1), 0)).To(Equal(uint64(2 + 100 + 10)))
		Expect(cc.State(0)).To(Equal(mem.E))
		Expect(t.Translate(pageAddr(1), 200)).To(Equal(uint64(202)))

		t.Translate(pageAddr(2), 300)
		Expect(t.Translate(pageAddr(3), 400)).To(Equal(uint64(400 + 2 + 100 + 10)))

		s, ok := stats.Lookup(root, "tlb-0", "drops")
		Expect(ok).To(BeTrue())
		Expect(s.(*stats.Counter).Get()).To(Equal(uint64(1)))

		s, _ = stats.Lookup(root, "tlb-0", "mGETS")
		Expect(s.(*stats.Counter).Get()).To(Equal(uint64(3)))
	})
})
