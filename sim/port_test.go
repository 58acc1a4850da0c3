package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"
)

type sampleMsg struct {
	MsgMeta
}

func newSampleMsg() *sampleMsg {
	return &sampleMsg{}
}

func (m *sampleMsg) Meta() *MsgMeta {
	return &m.MsgMeta
}

var _ = Describe("DefaultPort", func() {
	var (
		mockCtrl *gomock.Controller
		comp     *MockComponent
		conn     *MockConnection
		port     *defaultPort
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		comp = NewMockComponent(mockCtrl)
		conn = NewMockConnection(mockCtrl)
		port = NewPort(comp, 2, 2, "Port").(*defaultPort)
		port.SetConnection(conn)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should return component", func() {
		Expect(port.Component()).To(BeIdenticalTo(comp))
	})

	It("should return name", func() {
		Expect(port.Name()).To(Equal("Port"))
	})

	It("should panic if the port is not the msg src", func() {
		msg := newSampleMsg()
		msg.Dst = "SomewhereElse"

		Expect(func() { port.Send(msg) }).To(Panic())
	})

	It("should panic if the msg dst is not set", func() {
		msg := newSampleMsg()
		msg.Src = port.AsRemote()

		Expect(func() { port.Send(msg) }).To(Panic())
	})

	It("should panic if the msg src equals the dst", func() {
		msg := newSampleMsg()
		msg.Src = port.AsRemote()
		msg.Dst = port.AsRemote()

		Expect(func() { port.Send(msg) }).To(Panic())
	})

	It("should send and notify the connection on the first msg", func() {
		msg := newSampleMsg()
		msg.Src = port.AsRemote()
		msg.Dst = "AnotherPort"

		conn.EXPECT().NotifySend()

		err := port.Send(msg)

		Expect(err).To(BeNil())
		Expect(port.PeekOutgoing()).To(BeIdenticalTo(msg))
	})

	It("should fail to send when the outgoing buffer is full", func() {
		conn.EXPECT().NotifySend()
		for i := 0; i < 2; i++ {
			msg := newSampleMsg()
			msg.Src = port.AsRemote()
			msg.Dst = "AnotherPort"
			port.Send(msg)
		}

		msg := newSampleMsg()
		msg.Src = port.AsRemote()
		msg.Dst = "AnotherPort"
		err := port.Send(msg)

		Expect(err).NotTo(BeNil())
	})

	It("should deliver and notify the component", func() {
		msg := newSampleMsg()

		comp.EXPECT().NotifyRecv(port)

		err := port.Deliver(msg)

		Expect(err).To(BeNil())
		Expect(port.PeekIncoming()).To(BeIdenticalTo(msg))
	})

	It("should fail to deliver when the incoming buffer is full", func() {
		comp.EXPECT().NotifyRecv(port)
		for i := 0; i < 2; i++ {
			port.Deliver(newSampleMsg())
		}

		err := port.Deliver(newSampleMsg())

		Expect(err).NotTo(BeNil())
	})

	It("should notify the connection when a full buffer frees up", func() {
		comp.EXPECT().NotifyRecv(port)
		for i := 0; i < 2; i++ {
			port.Deliver(newSampleMsg())
		}

		conn.EXPECT().NotifyAvailable(port)

		msg := port.RetrieveIncoming()

		Expect(msg).NotTo(BeNil())
	})
})
