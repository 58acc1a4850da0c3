package burstmem

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/coreforge/memsim/mem"
	"github.com/coreforge/memsim/sim"
)

var _ = Describe("Burst Memory", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *MockEngine
		conn     *MockConnection
		memory   *Comp
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())

		engine = NewMockEngine(mockCtrl)
		engine.EXPECT().CurrentTime().Return(sim.VTimeInSec(0)).AnyTimes()
		engine.EXPECT().Schedule(gomock.Any()).AnyTimes()

		conn = NewMockConnection(mockCtrl)
		conn.EXPECT().Name().Return("Conn").AnyTimes()
		conn.EXPECT().NotifySend().AnyTimes()
		conn.EXPECT().NotifyAvailable(gomock.Any()).AnyTimes()

		memory = MakeBuilder().
			WithEngine(engine).
			WithLatency(2).
			WithNewStorage(1 * mem.MB).
			Build("Mem")
		memory.TopPort().SetConnection(conn)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	burstRead := func(addr uint64, wrap bool, critical int) *mem.BurstReadReq {
		b := mem.BurstReadReqBuilder{}.
			WithSrc("Arb").
			WithDst(memory.TopPort().AsRemote()).
			WithBaseAddress(addr).
			WithWordBytes(8).
			WithWordCount(4)
		if wrap {
			b = b.WithWrap(critical)
		}
		return b.Build()
	}

	It("should wait out the latency before the first beat", func() {
		req := burstRead(0x40, false, 0)
		memory.TopPort().Deliver(req)

		memory.Tick()
		Expect(memory.TopPort().PeekOutgoing()).To(BeNil())
		memory.Tick()
		Expect(memory.TopPort().PeekOutgoing()).To(BeNil())
		memory.Tick()
		Expect(memory.TopPort().PeekOutgoing()).To(BeNil())

		memory.Tick()
		beat := memory.TopPort().RetrieveOutgoing().(*mem.BurstBeat)
		Expect(beat.RespondTo).To(Equal(req.ID))
		Expect(beat.WordIndex).To(Equal(0))
		Expect(beat.Last).To(BeFalse())
	})

	It("should stream one word per cycle in natural order", func() {
		for w := 0; w < 4; w++ {
			memory.Storage.Write(0x40+uint64(w)*8, []byte{byte(w + 1)})
		}

		req := burstRead(0x40, false, 0)
		memory.TopPort().Deliver(req)

		memory.Tick()
		memory.Tick()
		memory.Tick()

		for w := 0; w < 4; w++ {
			memory.Tick()
			beat := memory.TopPort().RetrieveOutgoing().(*mem.BurstBeat)
			Expect(beat.WordIndex).To(Equal(w))
			Expect(beat.Data[0]).To(Equal(byte(w + 1)))
			Expect(beat.Last).To(Equal(w == 3))
		}

		Expect(memory.Tick()).To(BeFalse())
	})

	It("should rotate delivery from the critical word", func() {
		req := burstRead(0x40, true, 2)
		memory.TopPort().Deliver(req)

		memory.Tick()
		memory.Tick()
		memory.Tick()

		wantOrder := []int{2, 3, 0, 1}
		for i, w := range wantOrder {
			memory.Tick()
			beat := memory.TopPort().RetrieveOutgoing().(*mem.BurstBeat)
			Expect(beat.WordIndex).To(Equal(w))
			Expect(beat.Last).To(Equal(i == 3))
		}
	})

	It("should stall the stream when the outgoing buffer is full", func() {
		req := burstRead(0x40, false, 0)
		memory.TopPort().Deliver(req)

		memory.Tick()
		memory.Tick()
		memory.Tick()

		// Outgoing capacity is 2; without draining, the third beat cannot
		// go out.
		memory.Tick()
		memory.Tick()
		Expect(memory.Tick()).To(BeFalse())

		first := memory.TopPort().RetrieveOutgoing().(*mem.BurstBeat)
		Expect(first.WordIndex).To(Equal(0))

		memory.Tick()
		second := memory.TopPort().RetrieveOutgoing().(*mem.BurstBeat)
		Expect(second.WordIndex).To(Equal(1))
	})

	It("should absorb a write over latency plus one cycle per word", func() {
		data := make([]byte, 32)
		data[0] = 0xAA
		data[31] = 0xBB
		req := mem.BurstWriteReqBuilder{}.
			WithSrc("Arb").
			WithDst(memory.TopPort().AsRemote()).
			WithBaseAddress(0x80).
			WithWordBytes(8).
			WithData(data).
			Build()
		memory.TopPort().Deliver(req)

		memory.Tick()
		for i := 0; i < 6; i++ {
			Expect(memory.TopPort().PeekOutgoing()).To(BeNil())
			memory.Tick()
		}

		memory.Tick()
		done := memory.TopPort().RetrieveOutgoing().(*mem.WriteDoneRsp)
		Expect(done.RespondTo).To(Equal(req.ID))

		stored, err := memory.Storage.Read(0x80, 32)
		Expect(err).To(BeNil())
		Expect(stored[0]).To(Equal(byte(0xAA)))
		Expect(stored[31]).To(Equal(byte(0xBB)))
	})

	It("should honor the dirty mask of a write", func() {
		memory.Storage.Write(0x80, []byte{1, 2})

		mask := make([]bool, 16)
		mask[1] = true
		data := make([]byte, 16)
		data[1] = 0x99
		req := mem.BurstWriteReqBuilder{}.
			WithSrc("Arb").
			WithDst(memory.TopPort().AsRemote()).
			WithBaseAddress(0x80).
			WithWordBytes(8).
			WithData(data).
			WithDirtyMask(mask).
			Build()
		memory.TopPort().Deliver(req)

		for i := 0; i < 10; i++ {
			memory.Tick()
		}

		stored, err := memory.Storage.Read(0x80, 2)
		Expect(err).To(BeNil())
		Expect(stored).To(Equal([]byte{1, 0x99}))
	})

	It("should panic when bursts overlap", func() {
		memory.TopPort().Deliver(burstRead(0x40, false, 0))
		memory.Tick()
		memory.TopPort().Deliver(burstRead(0x80, false, 0))

		Expect(func() { memory.Tick() }).To(Panic())
	})

	It("should require an engine at build time", func() {
		Expect(func() { MakeBuilder().Build("M") }).To(Panic())
	})

	It("should reject a zero latency", func() {
		Expect(func() {
			MakeBuilder().WithEngine(engine).WithLatency(0).Build("M")
		}).To(Panic())
	})
})
