package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Freq", func() {
	It("should get period", func() {
		var f = 1 * GHz
		Expect(f.Period()).To(BeNumerically("==", 1e-9))
	})

	It("should get cycle number", func() {
		var f = 100 * MHz
		Expect(f.Cycle(1e-8 * 5)).To(BeNumerically("==", 5))
	})

	It("should get this tick", func() {
		var f = 1 * Hz
		Expect(f.ThisTick(1)).To(BeNumerically("~", 1, 1e-12))
	})

	It("should get the next tick", func() {
		var f = 1 * GHz
		Expect(f.NextTick(102.000000001)).To(
			BeNumerically("~", 102.000000002, 1e-12))
	})

	It("should get the next tick if now is not on a tick", func() {
		var f = 1 * GHz
		Expect(f.NextTick(102.0000000011)).To(
			BeNumerically("~", 102.000000002, 1e-12))
	})

	It("should get n cycles later", func() {
		var f = 1 * GHz
		Expect(f.NCyclesLater(12, 102.000000001)).To(
			BeNumerically("~", 102.000000013, 1e-12))
	})

	It("should get no earlier than", func() {
		var f = 1 * GHz
		Expect(f.NoEarlierThan(102.0000000011)).To(
			BeNumerically("~", 102.000000002, 1e-12))
	})
})
