package memsys

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/coreforge/memsim/memsys/agents"
	"github.com/coreforge/memsim/sim"
)

var _ = Describe("Subsystem", func() {
	var engine sim.Engine

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
	})

	It("should serve random traffic through the router", func() {
		ms := MakeBuilder().
			WithEngine(engine).
			WithStream(StreamConfig{
				Name: "Proc", Backend: BackendDDR, Slot: 0,
				InWordBytes: 2, Depth: 2, Wrapping: true,
			}).
			WithStream(StreamConfig{
				Name: "Rom", Backend: BackendSDRAM, Slot: 0,
				InWordBytes: 2,
			}).
			Build("MemSys")

		ms.LoadProfile(Profile{
			Name: "test",
			Offsets: map[string]uint64{
				"Proc": 0x400000,
				"Rom":  0x100000,
			},
			Ranges: []ProfileRange{
				{Lo: 0x00000, Hi: 0x10000, Stream: "Proc"},
				{Lo: 0x10000, Hi: 0x20000, Stream: "Rom"},
			},
		})

		agent := agents.NewAccessAgent("Agent", engine, 100*sim.MHz,
			ms.RouterPort(), 2, 0x0, 0x20000, 500, 1)
		ms.ConnectSystemMaster(agent.MemPort())

		agent.TickLater()
		Expect(engine.Run()).To(Succeed())

		Expect(agent.Done()).To(BeTrue())
	})

	It("should land evicted lines at the slot offset", func() {
		ms := MakeBuilder().
			WithEngine(engine).
			WithStream(StreamConfig{
				Name: "Proc", Backend: BackendDDR, Slot: 0,
				InWordBytes: 2, Depth: 1,
			}).
			Build("MemSys")

		ms.LoadProfile(Profile{
			Name:    "test",
			Offsets: map[string]uint64{"Proc": 0x400000},
			Ranges: []ProfileRange{
				{Lo: 0x0, Hi: 0x10000, Stream: "Proc"},
			},
		})

		image := make([]byte, 64)
		rand.New(rand.NewSource(7)).Read(image)
		writer := agents.NewDownloadAgent("Writer", engine, 100*sim.MHz,
			ms.RouterPort(), 2, 0x100, image)
		ms.ConnectSystemMaster(writer.MemPort())

		writer.TickLater()
		Expect(engine.Run()).To(Succeed())
		Expect(writer.Done()).To(BeTrue())

		// The second line's tag conflict evicted the first line, so the
		// first 32 bytes are durable in the DDR backend at the offset
		// carve-out of the stream.
		stored, err := ms.DDR.Storage.Read(0x400000+0x100, 32)
		Expect(err).To(BeNil())
		Expect(stored).To(Equal(image[:32]))
	})

	It("should download into both backends through the loader", func() {
		ms := MakeBuilder().
			WithEngine(engine).
			WithStream(StreamConfig{
				Name: "DownloadDDR", Backend: BackendDDR, Slot: 0,
				InWordBytes: 2, WriteCombining: true,
			}).
			WithStream(StreamConfig{
				Name: "DownloadSDRAM", Backend: BackendSDRAM, Slot: 0,
				InWordBytes: 2, WriteCombining: true,
			}).
			Build("MemSys")

		ms.LoadProfile(Profile{
			Name: "test",
			Offsets: map[string]uint64{
				"DownloadDDR":   0x200000,
				"DownloadSDRAM": 0x0,
			},
		})

		image := make([]byte, 128)
		rand.New(rand.NewSource(3)).Read(image)
		download := agents.NewDownloadAgent("Download", engine, 100*sim.MHz,
			ms.LoaderPort(), 2, 0x0, image)
		ms.ConnectSystemMaster(download.MemPort())

		download.TickLater()
		Expect(engine.Run()).To(Succeed())
		Expect(download.Done()).To(BeTrue())

		ddr, err := ms.DDR.Storage.Read(0x200000, 128)
		Expect(err).To(BeNil())
		Expect(ddr).To(Equal(image))

		sdram, err := ms.SDRAM.Storage.Read(0x0, 128)
		Expect(err).To(BeNil())
		Expect(sdram).To(Equal(image))
	})

	It("should serve a video master across the clock domains", func() {
		ms := MakeBuilder().
			WithEngine(engine).
			WithStream(StreamConfig{
				Name: "Video", Backend: BackendDDR, Slot: 0,
				InWordBytes: 8, Wrapping: true, VideoDomain: true,
			}).
			Build("MemSys")

		ms.LoadProfile(Profile{
			Name:    "test",
			Offsets: map[string]uint64{"Video": 0x0},
		})

		agent := agents.NewAccessAgent("VideoAgent", engine, 25*sim.MHz,
			ms.CachePort("Video"), 8, 0x0, 0x1000, 100, 2)
		ms.ConnectVideoMaster("Video", agent.MemPort())

		agent.TickLater()
		Expect(engine.Run()).To(Succeed())

		Expect(agent.Done()).To(BeTrue())
	})

	It("should share one backend between competing streams", func() {
		ms := MakeBuilder().
			WithEngine(engine).
			WithStream(StreamConfig{
				Name: "ProcA", Backend: BackendDDR, Slot: 0,
				InWordBytes: 2, Wrapping: true,
			}).
			WithStream(StreamConfig{
				Name: "ProcB", Backend: BackendDDR, Slot: 1,
				InWordBytes: 2,
			}).
			Build("MemSys")

		ms.LoadProfile(Profile{
			Name: "test",
			Offsets: map[string]uint64{
				"ProcA": 0x000000,
				"ProcB": 0x800000,
			},
			Ranges: []ProfileRange{
				{Lo: 0x00000, Hi: 0x08000, Stream: "ProcA"},
				{Lo: 0x08000, Hi: 0x10000, Stream: "ProcB"},
			},
		})

		agentA := agents.NewAccessAgent("AgentA", engine, 100*sim.MHz,
			ms.RouterPort(), 2, 0x0, 0x8000, 200, 4)
		ms.ConnectSystemMaster(agentA.MemPort())
		agentB := agents.NewAccessAgent("AgentB", engine, 100*sim.MHz,
			ms.CachePort("ProcB"), 2, 0x8000, 0x10000, 200, 5)
		ms.ConnectSystemMaster(agentB.MemPort())

		agentA.TickLater()
		agentB.TickLater()
		Expect(engine.Run()).To(Succeed())

		Expect(agentA.Done()).To(BeTrue())
		Expect(agentB.Done()).To(BeTrue())
	})

	Context("when validating the topology", func() {
		It("should reject duplicate stream names", func() {
			Expect(func() {
				MakeBuilder().
					WithEngine(engine).
					WithStream(StreamConfig{
						Name: "A", Backend: BackendDDR, Slot: 0,
						InWordBytes: 2,
					}).
					WithStream(StreamConfig{
						Name: "A", Backend: BackendSDRAM, Slot: 0,
						InWordBytes: 2,
					}).
					Build("MemSys")
			}).To(Panic())
		})

		It("should reject shared arbiter slots", func() {
			Expect(func() {
				MakeBuilder().
					WithEngine(engine).
					WithStream(StreamConfig{
						Name: "A", Backend: BackendDDR, Slot: 0,
						InWordBytes: 2,
					}).
					WithStream(StreamConfig{
						Name: "B", Backend: BackendDDR, Slot: 0,
						InWordBytes: 2,
					}).
					Build("MemSys")
			}).To(Panic())
		})

		It("should reject a lone download cache", func() {
			Expect(func() {
				MakeBuilder().
					WithEngine(engine).
					WithStream(StreamConfig{
						Name: "Download", Backend: BackendDDR, Slot: 0,
						InWordBytes: 2, WriteCombining: true,
					}).
					Build("MemSys")
			}).To(Panic())
		})

		It("should reject download caches on the same backend", func() {
			Expect(func() {
				MakeBuilder().
					WithEngine(engine).
					WithStream(StreamConfig{
						Name: "A", Backend: BackendDDR, Slot: 0,
						InWordBytes: 2, WriteCombining: true,
					}).
					WithStream(StreamConfig{
						Name: "B", Backend: BackendDDR, Slot: 1,
						InWordBytes: 2, WriteCombining: true,
					}).
					Build("MemSys")
			}).To(Panic())
		})
	})

	Context("when loading a profile", func() {
		var ms *Subsystem

		BeforeEach(func() {
			ms = MakeBuilder().
				WithEngine(engine).
				WithStream(StreamConfig{
					Name: "Proc", Backend: BackendDDR, Slot: 0,
					InWordBytes: 2,
				}).
				WithStream(StreamConfig{
					Name: "Video", Backend: BackendDDR, Slot: 1,
					InWordBytes: 8, VideoDomain: true,
				}).
				Build("MemSys")
		})

		It("should reject offsets for unknown streams", func() {
			Expect(func() {
				ms.LoadProfile(Profile{
					Offsets: map[string]uint64{"Nope": 0x100},
				})
			}).To(Panic())
		})

		It("should reject ranges naming non-routable streams", func() {
			Expect(func() {
				ms.LoadProfile(Profile{
					Ranges: []ProfileRange{
						{Lo: 0x0, Hi: 0x1000, Stream: "Video"},
					},
				})
			}).To(Panic())
		})

		It("should apply a valid profile", func() {
			Expect(func() {
				ms.LoadProfile(Profile{
					Offsets: map[string]uint64{"Proc": 0x400000},
					Ranges: []ProfileRange{
						{Lo: 0x0, Hi: 0x10000, Stream: "Proc"},
					},
				})
			}).NotTo(Panic())
		})
	})

	Context("when asked for unknown streams", func() {
		It("should panic", func() {
			ms := MakeBuilder().
				WithEngine(engine).
				WithStream(StreamConfig{
					Name: "Proc", Backend: BackendDDR, Slot: 0,
					InWordBytes: 2,
				}).
				Build("MemSys")

			Expect(func() { ms.CachePort("Nope") }).To(Panic())
			Expect(func() {
				ms.ConnectVideoMaster("Proc", nil)
			}).To(Panic())
		})
	})
})
