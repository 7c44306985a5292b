package system_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/czhu95/zsim/config"
	"github.com/czhu95/zsim/mem"
	"github.com/czhu95/zsim/network"
	"github.com/czhu95/zsim/stats"
	"github.com/czhu95/zsim/system"
	"github.com/czhu95/zsim/timing/coherence"
	"github.com/czhu95/zsim/timing/core"
)

func smallConfig() *config.Config {
	c := config.Default()
	c.Memory.Latency = 100
	c.Caches = []config.CacheLevel{
		{Name: "l2", Lines: 8, Ways: 2, AccessLatency: 5, InvLatency: 5, Repl: "lru", Private: true},
		{Name: "l3", Lines: 16, Ways: 4, AccessLatency: 10, InvLatency: 10, Repl: "lru", Banks: 1},
	}
	c.TLB.Lines = 4
	c.TLB.Ways = 4

	return c
}

func counter(root *stats.Aggregate, path ...string) uint64 {
	v, ok := stats.Value(root, path...)
	Expect(ok).To(BeTrue(), "missing stat %v", path)

	return v
}

var _ = Describe("System", func() {
	Describe("Build", func() {
		It("should name private caches after cores and banks by index", func() {
			c := smallConfig()
			c.Cores = 3
			c.Caches[1].Banks = 2

			s, err := system.MakeBuilder().WithConfig(c).Build()
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Cores).To(HaveLen(3))
			Expect(s.TLBs).To(HaveLen(3))
			Expect(s.Caches[0]).To(HaveLen(3))
			Expect(s.Caches[0][2].Name()).To(Equal("l2-2"))
			Expect(s.Caches[1][1].Name()).To(Equal("l3-1"))
			Expect(s.TLBs[1].Name()).To(Equal("tlb-1"))

			_, ok := s.Cache("l3-0")
			Expect(ok).To(BeTrue())
			_, ok = s.Cache("l3")
			Expect(ok).To(BeFalse())
		})

		It("should name a single bank after its level", func() {
			s, err := system.MakeBuilder().WithConfig(smallConfig()).Build()
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Caches[1]).To(HaveLen(1))
			Expect(s.Caches[1][0].Name()).To(Equal("l3"))
		})

		It("should reject an invalid config", func() {
			c := smallConfig()
			c.Cores = 0

			_, err := system.MakeBuilder().WithConfig(c).Build()
			Expect(err).To(MatchError(ContainSubstring("invalid config")))
		})

		It("should register every component under the root", func() {
			s, err := system.MakeBuilder().WithConfig(smallConfig()).Build()
			Expect(err).NotTo(HaveOccurred())

			for _, name := range []string{"core-0", "tlb-1", "l2-0", "l3", "mem"} {
				_, ok := stats.Lookup(s.Stats, name)
				Expect(ok).To(BeTrue(), name)
			}
		})

		It("should connect TLBs straight to memory without caches", func() {
			c := smallConfig()
			c.Caches = nil

			s, err := system.MakeBuilder().WithConfig(c).Build()
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Cores[0].Issue(0x1000)).To(Equal(uint64(101)))
		})
	})

	Describe("Run", func() {
		var s *system.System

		BeforeEach(func() {
			var err error
			s, err = system.MakeBuilder().WithConfig(smallConfig()).Build()
			Expect(err).NotTo(HaveOccurred())
		})

		It("should charge misses through the hierarchy", func() {
			Expect(s.Run([]core.Record{{Core: 0, VAddr: 0x1000}})).To(Succeed())

			Expect(s.Cores[0].Cycle()).To(Equal(uint64(116)))
			Expect(counter(s.Stats, "l3", "untrackedGETS")).To(Equal(uint64(0)))
			Expect(counter(s.Stats, "l2-0", "untrackedGETS")).To(Equal(uint64(1)))
			Expect(counter(s.Stats, "mem", "requests", "GETS")).To(Equal(uint64(1)))
		})

		It("should downgrade the other core when sharing a page", func() {
			Expect(s.Run([]core.Record{
				{Core: 0, VAddr: 0x1000},
				{Core: 1, VAddr: 0x1fff},
			})).To(Succeed())

			Expect(s.Cores[1].Cycle()).To(Equal(uint64(21)))
			Expect(counter(s.Stats, "l2-0", "INVX")).To(Equal(uint64(1)))
			Expect(counter(s.Stats, "l3", "hGETS")).To(Equal(uint64(1)))

			l2 := s.Caches[0][0]
			lineID := l2.Array().Lookup(1, nil, false)
			cc := l2.Controller().(*coherence.MESICC)
			Expect(cc.State(lineID)).To(Equal(mem.S))
		})

		It("should hit in the TLB after the gap", func() {
			Expect(s.Run([]core.Record{
				{Core: 0, VAddr: 0x1000},
				{Core: 0, VAddr: 0x1008, Gap: 4},
			})).To(Succeed())

			Expect(s.Cores[0].Cycle()).To(Equal(uint64(121)))
			Expect(s.Cores[0].Stats().ComputeCycles).To(Equal(uint64(4)))
			Expect(s.Cycles()).To(Equal(uint64(121)))
		})

		It("should separate processes", func() {
			c := smallConfig()
			c.Schedule = map[uint32]uint32{1: 1}
			s, err := system.MakeBuilder().WithConfig(c).Build()
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Run([]core.Record{
				{Core: 0, VAddr: 0x1000},
				{Core: 1, VAddr: 0x1000},
			})).To(Succeed())

			Expect(s.Cores[1].Cycle()).To(Equal(uint64(116)))
			Expect(counter(s.Stats, "mem", "requests", "GETS")).To(Equal(uint64(2)))
		})

		It("should place processes by their core masks", func() {
			c := smallConfig()
			c.Processes = []config.ProcessConfig{{Mask: "0"}, {Mask: "1"}}
			s, err := system.MakeBuilder().WithConfig(c).Build()
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Run([]core.Record{
				{Core: 0, VAddr: 0x1000},
				{Core: 1, VAddr: 0x1000},
			})).To(Succeed())

			Expect(counter(s.Stats, "mem", "requests", "GETS")).To(Equal(uint64(2)))
		})

		It("should end a phase every few records and at the end", func() {
			records := []core.Record{
				{Core: 0, VAddr: 0x1000},
				{Core: 0, VAddr: 0x2000},
				{Core: 1, VAddr: 0x1000},
			}

			var done []uint64
			Expect(s.RunPhases(records, 2, func() error {
				done = append(done, s.Cores[0].Stats().Translations)
				return nil
			})).To(Succeed())

			Expect(done).To(Equal([]uint64{2, 2}))
		})

		It("should stop on a failing phase", func() {
			err := s.RunPhases([]core.Record{{Core: 0, VAddr: 0x1000}}, 0,
				func() error { return errors.New("disk full") })
			Expect(err).To(MatchError("disk full"))
		})

		It("should reject records for unknown cores", func() {
			err := s.Run([]core.Record{{Core: 9, VAddr: 0x1000}})
			Expect(err).To(MatchError(ContainSubstring("core 9")))
		})
	})

	Describe("with a network", func() {
		It("should add the round trip of every hop", func() {
			c := smallConfig()
			c.Cores = 1
			c.Network.Links = []network.Link{
				{Src: "tlb-0", Dst: "l2-0", Latency: 1},
				{Src: "l2-0", Dst: "l3", Latency: 2},
				{Src: "l3", Dst: "l2-0", Latency: 2},
				{Src: "l3", Dst: "mem", Latency: 5},
			}
			net, err := c.BuildNetwork()
			Expect(err).NotTo(HaveOccurred())

			s, err := system.MakeBuilder().WithConfig(c).WithNetwork(net).Build()
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Cores[0].Issue(0x1000)).To(Equal(uint64(132)))
			Expect(counter(s.Stats, "l2-0", "latGETnet")).To(Equal(uint64(4)))
		})

		It("should abort on a missing link", func() {
			c := smallConfig()
			net := network.New([]network.Link{{Src: "tlb-0", Dst: "l2-0", Latency: 1}})

			Expect(func() {
				_, _ = system.MakeBuilder().WithConfig(c).WithNetwork(net).Build()
			}).To(PanicWith(ContainSubstring("no link")))
		})
	})
})
