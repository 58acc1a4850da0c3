// Package mem defines the request/response contracts of the memory
// subsystem. Narrow requests (ReadReq, WriteReq) are what peripherals issue
// to caches. Burst requests (BurstReadReq, BurstWriteReq) are what caches
// and arbiters issue to backends. The package also provides the storage
// that backs the memory models and the address-to-port mapping used to
// route peripheral accesses.
package mem

// Size units in bytes.
const (
	KB = 1 << 10
	MB = 1 << 20
	GB = 1 << 30
)

// OpenBusByte is the byte pattern returned when reading an address that no
// peripheral backs. Writes to such addresses are silently discarded.
const OpenBusByte = 0xFF
