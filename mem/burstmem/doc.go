// Package burstmem provides a burst-oriented memory model that stands in
// for wide backends such as DDR or SDRAM. The model accepts one burst at a
// time, waits a fixed access latency, and then transfers one word per
// cycle. Burst reads can wrap so that the beat holding the critical word is
// delivered first.
package burstmem
