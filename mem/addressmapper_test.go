package mem

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/coreforge/memsim/sim"
)

var _ = Describe("RangedPortMapper", func() {
	var mapper *RangedPortMapper

	BeforeEach(func() {
		mapper = NewRangedPortMapper()
		mapper.AddRange(0x10000, 0x20000, "PortB")
		mapper.AddRange(0x0, 0x10000, "PortA")
		mapper.AddRange(0x40000, 0x50000, "PortC")
	})

	It("should find the port backing an address", func() {
		port, found := mapper.Find(0x0)
		Expect(found).To(BeTrue())
		Expect(port).To(Equal(sim.RemotePort("PortA")))

		port, found = mapper.Find(0x1FFFF)
		Expect(found).To(BeTrue())
		Expect(port).To(Equal(sim.RemotePort("PortB")))

		port, found = mapper.Find(0x40000)
		Expect(found).To(BeTrue())
		Expect(port).To(Equal(sim.RemotePort("PortC")))
	})

	It("should miss on unmapped addresses", func() {
		_, found := mapper.Find(0x30000)
		Expect(found).To(BeFalse())

		_, found = mapper.Find(0x50000)
		Expect(found).To(BeFalse())
	})

	It("should reject overlapping ranges", func() {
		Expect(func() {
			mapper.AddRange(0x1F000, 0x21000, "PortD")
		}).To(Panic())
	})

	It("should reject empty ranges", func() {
		Expect(func() {
			mapper.AddRange(0x60000, 0x60000, "PortD")
		}).To(Panic())
	})
})

var _ = Describe("SinglePortMapper", func() {
	It("should map every address to its one port", func() {
		mapper := &SinglePortMapper{Port: "Solo"}

		port, found := mapper.Find(0xDEADBEEF)
		Expect(found).To(BeTrue())
		Expect(port).To(Equal(sim.RemotePort("Solo")))
	})
})
