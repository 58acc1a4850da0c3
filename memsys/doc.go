// Package memsys assembles the memory subsystem: one line cache per
// peripheral stream, two priority arbiters in front of two burst backends,
// an address router with open-bus behavior for unmapped ranges, and a
// loader that lands one download stream in both backends.
package memsys
