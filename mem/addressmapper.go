package mem

import (
	"fmt"
	"sort"

	"github.com/coreforge/memsim/sim"
)

// AddressMapper finds the port that backs a given address. The second
// return value is false when no peripheral is mapped at the address, in
// which case the caller must apply open-bus behavior.
type AddressMapper interface {
	Find(address uint64) (sim.RemotePort, bool)
}

// SinglePortMapper is used when a unit is connected to only one module
// below it.
type SinglePortMapper struct {
	Port sim.RemotePort
}

// Find returns the solo port that the unit connects to.
func (m *SinglePortMapper) Find(_ uint64) (sim.RemotePort, bool) {
	return m.Port, true
}

// A MappedRange is one address carve-out of the flat space, backed by one
// port. Lo is inclusive, Hi exclusive.
type MappedRange struct {
	Lo, Hi uint64
	Port   sim.RemotePort
}

// RangedPortMapper routes addresses through a table of disjoint ranges. The
// table is built once per configuration load and then only read.
type RangedPortMapper struct {
	ranges []MappedRange
}

// NewRangedPortMapper creates an empty RangedPortMapper.
func NewRangedPortMapper() *RangedPortMapper {
	return &RangedPortMapper{}
}

// AddRange adds one address range to the table. Ranges must not overlap;
// overlapping ranges are a configuration error and panic.
func (m *RangedPortMapper) AddRange(lo, hi uint64, port sim.RemotePort) {
	if hi <= lo {
		panic(fmt.Sprintf("invalid address range [0x%X, 0x%X)", lo, hi))
	}

	for _, r := range m.ranges {
		if lo < r.Hi && r.Lo < hi {
			panic(fmt.Sprintf(
				"address range [0x%X, 0x%X) overlaps with [0x%X, 0x%X)",
				lo, hi, r.Lo, r.Hi))
		}
	}

	m.ranges = append(m.ranges, MappedRange{Lo: lo, Hi: hi, Port: port})
	sort.Slice(m.ranges, func(i, j int) bool {
		return m.ranges[i].Lo < m.ranges[j].Lo
	})
}

// Find returns the port backing the address, or false when the address is
// unmapped.
func (m *RangedPortMapper) Find(address uint64) (sim.RemotePort, bool) {
	lo, hi := 0, len(m.ranges)
	for lo < hi {
		mid := (lo + hi) / 2
		r := m.ranges[mid]

		switch {
		case address < r.Lo:
			hi = mid
		case address >= r.Hi:
			lo = mid + 1
		default:
			return r.Port, true
		}
	}

	return "", false
}
