package arbiter

import (
	"github.com/coreforge/memsim/sim"
)

// A Builder builds arbiters.
type Builder struct {
	engine   sim.Engine
	freq     sim.Freq
	numSlots int
	backend  sim.RemotePort
}

// MakeBuilder returns a Builder with default configuration.
func MakeBuilder() Builder {
	return Builder{
		freq:     100 * sim.MHz,
		numSlots: 2,
	}
}

// WithEngine sets the engine that the arbiter uses.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the arbiter.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithNumSlots sets the number of master slots.
func (b Builder) WithNumSlots(n int) Builder {
	b.numSlots = n
	return b
}

// WithBackend sets the backend port that the arbiter forwards bursts to.
func (b Builder) WithBackend(backend sim.RemotePort) Builder {
	b.backend = backend
	return b
}

// Build creates a new arbiter component.
func (b Builder) Build(name string) *Comp {
	if b.engine == nil {
		panic("arbiter requires an engine")
	}

	if b.numSlots < 1 {
		panic("arbiter requires at least one slot")
	}

	if b.backend == "" {
		panic("arbiter requires a backend port")
	}

	c := &Comp{
		backend:     b.backend,
		offsets:     make([]uint64, b.numSlots),
		grantedSlot: -1,
	}

	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	c.slotPorts = make([]sim.Port, b.numSlots)
	for i := range c.slotPorts {
		portName := sim.BuildNameWithIndex(name, "Slot", i)
		c.slotPorts[i] = sim.NewPort(c, 1, 2, portName)
		c.AddPort(sim.BuildNameWithIndex("", "Slot", i), c.slotPorts[i])
	}

	c.bottomPort = sim.NewPort(c, 8, 2, name+".BottomPort")
	c.AddPort("Bottom", c.bottomPort)

	return c
}
