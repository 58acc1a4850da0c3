package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Buffer", func() {
	var buf Buffer

	BeforeEach(func() {
		buf = NewBuffer("Buf", 2)
	})

	It("should push and pop in order", func() {
		buf.Push(1)
		buf.Push(2)

		Expect(buf.Pop()).To(Equal(1))
		Expect(buf.Pop()).To(Equal(2))
		Expect(buf.Pop()).To(BeNil())
	})

	It("should report capacity and size", func() {
		Expect(buf.Capacity()).To(Equal(2))
		Expect(buf.Size()).To(Equal(0))

		buf.Push(1)

		Expect(buf.Size()).To(Equal(1))
		Expect(buf.CanPush()).To(BeTrue())

		buf.Push(2)

		Expect(buf.CanPush()).To(BeFalse())
	})

	It("should panic when pushing to a full buffer", func() {
		buf.Push(1)
		buf.Push(2)

		Expect(func() { buf.Push(3) }).To(Panic())
	})

	It("should peek without removing", func() {
		buf.Push(1)

		Expect(buf.Peek()).To(Equal(1))
		Expect(buf.Size()).To(Equal(1))
	})

	It("should clear", func() {
		buf.Push(1)
		buf.Clear()

		Expect(buf.Size()).To(Equal(0))
		Expect(buf.Peek()).To(BeNil())
	})
})
