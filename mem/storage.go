package mem

import "errors"

// A Storage keeps the content of a simulated memory device.
//
// The storage manages its content in fixed-size units and only allocates a
// unit when it is first touched. Addresses that were never written read
// back as zero bytes.
type Storage struct {
	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage object with the given capacity in bytes.
func NewStorage(capacity uint64) *Storage {
	s := new(Storage)

	s.unitSize = 4096
	s.capacity = capacity
	s.data = make(map[uint64][]byte)

	return s
}

// Capacity returns the capacity of the storage in bytes.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

func (s *Storage) createOrGetUnit(address uint64) ([]byte, error) {
	if address >= s.capacity {
		return nil, errors.New("accessing address beyond the storage capacity")
	}

	baseAddr, _ := s.parseAddress(address)
	unit, ok := s.data[baseAddr]
	if !ok {
		unit = make([]byte, s.unitSize)
		s.data[baseAddr] = unit
	}

	return unit, nil
}

func (s *Storage) parseAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % s.unitSize
	baseAddr = addr - inUnitAddr
	return
}

// Read returns the content stored at the given address.
func (s *Storage) Read(address, byteSize uint64) ([]byte, error) {
	res := make([]byte, byteSize)

	currAddr := address
	dataOffset := uint64(0)

	for currAddr < address+byteSize {
		unit, err := s.createOrGetUnit(currAddr)
		if err != nil {
			return nil, err
		}

		baseAddr, inUnitAddr := s.parseAddress(currAddr)
		lenLeft := byteSize - dataOffset
		lenLeftInUnit := baseAddr + s.unitSize - currAddr

		lenToRead := lenLeftInUnit
		if lenLeft < lenLeftInUnit {
			lenToRead = lenLeft
		}

		copy(res[dataOffset:dataOffset+lenToRead],
			unit[inUnitAddr:inUnitAddr+lenToRead])

		dataOffset += lenToRead
		currAddr += lenToRead
	}

	return res, nil
}

// Write stores data at the given address.
func (s *Storage) Write(address uint64, data []byte) error {
	currAddr := address
	dataOffset := uint64(0)

	for dataOffset < uint64(len(data)) {
		unit, err := s.createOrGetUnit(currAddr)
		if err != nil {
			return err
		}

		_, inUnitAddr := s.parseAddress(currAddr)
		lenLeftInData := uint64(len(data)) - dataOffset
		lenLeftInUnit := s.unitSize - inUnitAddr

		lenToWrite := lenLeftInUnit
		if lenLeftInData < lenLeftInUnit {
			lenToWrite = lenLeftInData
		}

		copy(unit[inUnitAddr:inUnitAddr+lenToWrite],
			data[dataOffset:dataOffset+lenToWrite])

		dataOffset += lenToWrite
		currAddr += lenToWrite
	}

	return nil
}

// MaskedWrite stores the bytes of data whose mask bit is set. A nil mask
// writes all the bytes.
func (s *Storage) MaskedWrite(address uint64, data []byte, mask []bool) error {
	if mask == nil {
		return s.Write(address, data)
	}

	old, err := s.Read(address, uint64(len(data)))
	if err != nil {
		return err
	}

	for i := range data {
		if mask[i] {
			old[i] = data[i]
		}
	}

	return s.Write(address, old)
}
