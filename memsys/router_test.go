package memsys

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/coreforge/memsim/mem"
	"github.com/coreforge/memsim/sim"
)

var _ = Describe("Router", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *MockEngine
		conn     *MockConnection
		router   *Router
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

		router = NewRouter("Router", engine, 100*sim.MHz)
		router.TopPort().SetConnection(conn)
		router.BottomPort().SetConnection(conn)

		mapper := mem.NewRangedPortMapper()
		mapper.AddRange(0x0, 0x10000, "CacheA")
		mapper.AddRange(0x10000, 0x20000, "CacheB")
		router.SetMapper(mapper)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	read := func(addr uint64) *mem.ReadReq {
		return mem.ReadReqBuilder{}.
			WithSrc("Master").
			WithDst(router.TopPort().AsRemote()).
			WithAddress(addr).
			WithByteSize(2).
			Build()
	}

	write := func(addr uint64) *mem.WriteReq {
		return mem.WriteReqBuilder{}.
			WithSrc("Master").
			WithDst(router.TopPort().AsRemote()).
			WithAddress(addr).
			WithData([]byte{1, 2}).
			Build()
	}

	It("should forward a mapped access to its cache", func() {
		router.TopPort().Deliver(read(0x10004))

		router.Tick()

		fwd := router.BottomPort().RetrieveOutgoing().(*mem.ReadReq)
		Expect(fwd.Address).To(Equal(uint64(0x10004)))
		Expect(fwd.Dst).To(Equal(sim.RemotePort("CacheB")))
	})

	It("should route the response back to the original master", func() {
		req := read(0x4)
		router.TopPort().Deliver(req)
		router.Tick()
		fwd := router.BottomPort().RetrieveOutgoing().(*mem.ReadReq)

		rsp := mem.DataReadyRspBuilder{}.
			WithSrc("CacheA").
			WithDst(router.BottomPort().AsRemote()).
			WithRspTo(fwd.ID).
			WithData([]byte{7, 8}).
			Build()
		router.BottomPort().Deliver(rsp)
		router.Tick()

		out := router.TopPort().RetrieveOutgoing().(*mem.DataReadyRsp)
		Expect(out.RespondTo).To(Equal(req.ID))
		Expect(out.Dst).To(Equal(sim.RemotePort("Master")))
		Expect(out.Data).To(Equal([]byte{7, 8}))
	})

	It("should answer unmapped reads with the open-bus pattern", func() {
		req := read(0x30000)
		router.TopPort().Deliver(req)

		router.Tick()

		out := router.TopPort().RetrieveOutgoing().(*mem.DataReadyRsp)
		Expect(out.RespondTo).To(Equal(req.ID))
		Expect(out.Data).To(Equal([]byte{0xFF, 0xFF}))
		Expect(router.BottomPort().PeekOutgoing()).To(BeNil())
	})

	It("should discard unmapped writes but still ack them", func() {
		req := write(0x30000)
		router.TopPort().Deliver(req)

		router.Tick()

		out := router.TopPort().RetrieveOutgoing().(*mem.WriteDoneRsp)
		Expect(out.RespondTo).To(Equal(req.ID))
		Expect(router.BottomPort().PeekOutgoing()).To(BeNil())
	})

	It("should panic on a response to an unknown request", func() {
		rsp := mem.DataReadyRspBuilder{}.
			WithSrc("CacheA").
			WithDst(router.BottomPort().AsRemote()).
			WithRspTo("stray").
			WithData([]byte{0}).
			Build()
		router.BottomPort().Deliver(rsp)

		Expect(func() { router.Tick() }).To(Panic())
	})

	It("should refuse a map swap while accesses are pending", func() {
		router.TopPort().Deliver(read(0x4))
		router.Tick()

		Expect(func() {
			router.SetMapper(mem.NewRangedPortMapper())
		}).To(Panic())
	})

	It("should allow a map swap when idle", func() {
		Expect(func() {
			router.SetMapper(mem.NewRangedPortMapper())
		}).NotTo(Panic())
	})
})
