package burstmem

import (
	"github.com/coreforge/memsim/mem"
	"github.com/coreforge/memsim/sim"
)

// A Builder builds burst memory models.
type Builder struct {
	engine   sim.Engine
	freq     sim.Freq
	latency  int
	capacity uint64
	storage  *mem.Storage
}

// MakeBuilder returns a Builder with default configuration.
func MakeBuilder() Builder {
	return Builder{
		freq:     100 * sim.MHz,
		latency:  6,
		capacity: 64 * mem.MB,
	}
}

// WithEngine sets the engine that the memory model uses.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the memory model.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithLatency sets the access latency in cycles before the first beat of a
// burst.
func (b Builder) WithLatency(latency int) Builder {
	b.latency = latency
	return b
}

// WithNewStorage makes the memory model allocate its own storage with the
// given capacity.
func (b Builder) WithNewStorage(capacity uint64) Builder {
	b.capacity = capacity
	b.storage = nil
	return b
}

// WithStorage sets the storage that backs the memory model. Sharing one
// storage between models is useful in tests.
func (b Builder) WithStorage(storage *mem.Storage) Builder {
	b.storage = storage
	return b
}

// Build creates a new burst memory component.
func (b Builder) Build(name string) *Comp {
	if b.engine == nil {
		panic("burst memory requires an engine")
	}

	if b.latency < 1 {
		panic("burst memory latency must be at least 1 cycle")
	}

	c := &Comp{
		latency: b.latency,
	}

	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	if b.storage == nil {
		c.Storage = mem.NewStorage(b.capacity)
	} else {
		c.Storage = b.storage
	}

	c.topPort = sim.NewPort(c, 1, 2, name+".TopPort")
	c.AddPort("Top", c.topPort)

	return c
}
