// Package arbiter provides a fixed-priority arbiter that multiplexes N
// burst-request streams onto one shared backend.
//
// Slot 0 has the highest priority. A grant is non-preemptive: once a burst
// is forwarded to the backend, the arbiter stays committed to that slot
// until the burst fully completes, even if a lower-indexed slot starts
// requesting meanwhile. Under sustained traffic from low-indexed slots the
// high-indexed slots can starve; this is the documented behavior of the
// arbitration scheme, there is no aging or round-robin fallback.
//
// Each slot carries a configurable address offset that is added to burst
// base addresses before they reach the backend, so independent masters can
// occupy disjoint carve-outs of one flat backend address space.
package arbiter
