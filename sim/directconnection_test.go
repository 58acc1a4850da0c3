package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"
)

var _ = Describe("DirectConnection", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *MockEngine
		comp1    *MockComponent
		comp2    *MockComponent
		port1    Port
		port2    Port
		conn     *DirectConnection
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())

		engine = NewMockEngine(mockCtrl)
		engine.EXPECT().CurrentTime().Return(VTimeInSec(0)).AnyTimes()
		engine.EXPECT().Schedule(gomock.Any()).AnyTimes()

		comp1 = NewMockComponent(mockCtrl)
		comp1.EXPECT().NotifyRecv(gomock.Any()).AnyTimes()
		comp1.EXPECT().NotifyPortFree(gomock.Any()).AnyTimes()
		comp2 = NewMockComponent(mockCtrl)
		comp2.EXPECT().NotifyRecv(gomock.Any()).AnyTimes()
		comp2.EXPECT().NotifyPortFree(gomock.Any()).AnyTimes()

		port1 = NewPort(comp1, 4, 4, "Port1")
		port2 = NewPort(comp2, 4, 4, "Port2")

		conn = NewDirectConnection("Conn", engine, 1*GHz)
		conn.PlugIn(port1)
		conn.PlugIn(port2)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should forward a message to its destination", func() {
		msg := newSampleMsg()
		msg.Src = port1.AsRemote()
		msg.Dst = port2.AsRemote()

		port1.Send(msg)

		madeProgress := conn.Tick()

		Expect(madeProgress).To(BeTrue())
		Expect(port2.PeekIncoming()).To(BeIdenticalTo(msg))
		Expect(port1.PeekOutgoing()).To(BeNil())
	})

	It("should panic when the destination is not plugged in", func() {
		msg := newSampleMsg()
		msg.Src = port1.AsRemote()
		msg.Dst = "Nowhere"

		port1.Send(msg)

		Expect(func() { conn.Tick() }).To(Panic())
	})

	It("should make no progress when idle", func() {
		Expect(conn.Tick()).To(BeFalse())
	})

	It("should stop forwarding when the destination is full", func() {
		for i := 0; i < 4; i++ {
			msg := newSampleMsg()
			msg.Src = port1.AsRemote()
			msg.Dst = port2.AsRemote()
			Expect(port1.Send(msg)).To(BeNil())
		}
		conn.Tick()

		msg := newSampleMsg()
		msg.Src = port1.AsRemote()
		msg.Dst = port2.AsRemote()
		Expect(port1.Send(msg)).To(BeNil())

		madeProgress := conn.Tick()

		Expect(madeProgress).To(BeFalse())
		Expect(port1.PeekOutgoing()).To(BeIdenticalTo(msg))
	})
})
