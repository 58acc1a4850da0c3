package linecache

import (
	"fmt"

	"github.com/coreforge/memsim/mem"
	"github.com/coreforge/memsim/sim"
)

// A Builder builds line caches. Invalid configurations are rejected here,
// at construction time, with a panic.
type Builder struct {
	engine         sim.Engine
	freq           sim.Freq
	inWordBytes    uint64
	wordBytes      uint64
	lineWords      int
	depth          int
	wrapping       bool
	writeCombining bool
	bottomMapper   mem.AddressMapper
}

// MakeBuilder returns a Builder with default configuration.
func MakeBuilder() Builder {
	return Builder{
		freq:        100 * sim.MHz,
		inWordBytes: 2,
		wordBytes:   8,
		lineWords:   4,
		depth:       1,
	}
}

// WithEngine sets the engine that the cache uses.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the cache.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithInWordBytes sets the size of the words that the peripheral side
// issues.
func (b Builder) WithInWordBytes(n uint64) Builder {
	b.inWordBytes = n
	return b
}

// WithWordBytes sets the size of the backend burst words.
func (b Builder) WithWordBytes(n uint64) Builder {
	b.wordBytes = n
	return b
}

// WithLineWords sets the number of backend words per line.
func (b Builder) WithLineWords(n int) Builder {
	b.lineWords = n
	return b
}

// WithDepth sets the number of independently tracked resident lines.
func (b Builder) WithDepth(n int) Builder {
	b.depth = n
	return b
}

// WithWrapping enables critical-word-first fills.
func (b Builder) WithWrapping() Builder {
	b.wrapping = true
	return b
}

// WithWriteCombining turns the cache into a pure write path that
// accumulates narrow writes and flushes full lines autonomously.
func (b Builder) WithWriteCombining() Builder {
	b.writeCombining = true
	return b
}

// WithBottomMapper sets the mapper that locates the backend-facing port for
// each address. Most caches talk to a single arbiter slot and use a
// SinglePortMapper.
func (b Builder) WithBottomMapper(m mem.AddressMapper) Builder {
	b.bottomMapper = m
	return b
}

// Build creates a new cache component.
func (b Builder) Build(name string) *Comp {
	b.configMustBeValid()

	c := &Comp{
		inWordBytes:    b.inWordBytes,
		wordBytes:      b.wordBytes,
		lineWords:      b.lineWords,
		lineBytes:      b.wordBytes * uint64(b.lineWords),
		depth:          b.depth,
		wrapping:       b.wrapping,
		writeCombining: b.writeCombining,
		bottomMapper:   b.bottomMapper,
		state:          stateIdle,
	}

	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	c.lines = make([]cacheLine, b.depth)
	for i := range c.lines {
		c.lines[i].data = make([]byte, c.lineBytes)
		c.lines[i].written = make([]bool, c.lineBytes)
	}

	// Top capacity of 1 is what makes the busy signal: a master's send
	// fails until the previous request has been absorbed.
	c.topPort = sim.NewPort(c, 1, 1, name+".TopPort")
	c.bottomPort = sim.NewPort(c, b.lineWords+2, 2, name+".BottomPort")
	c.AddPort("Top", c.topPort)
	c.AddPort("Bottom", c.bottomPort)

	return c
}

func (b Builder) configMustBeValid() {
	if b.engine == nil {
		panic("line cache requires an engine")
	}

	if b.bottomMapper == nil {
		panic("line cache requires a bottom mapper")
	}

	if b.depth < 1 {
		panic("line cache depth must be at least 1")
	}

	mustBePowerOfTwo("input word bytes", b.inWordBytes)
	mustBePowerOfTwo("backend word bytes", b.wordBytes)
	mustBePowerOfTwo("line words", uint64(b.lineWords))
	mustBePowerOfTwo("depth", uint64(b.depth))

	lineBytes := b.wordBytes * uint64(b.lineWords)
	if b.inWordBytes > lineBytes {
		panic(fmt.Sprintf(
			"input word of %d bytes does not fit in a line of %d bytes",
			b.inWordBytes, lineBytes))
	}

	if b.writeCombining && b.depth != 1 {
		panic("write-combining caches must have depth 1")
	}

	if b.writeCombining && b.wrapping {
		panic("write-combining caches never fill, wrapping is meaningless")
	}
}

func mustBePowerOfTwo(what string, n uint64) {
	if n == 0 || n&(n-1) != 0 {
		panic(fmt.Sprintf("%s must be a power of two, got %d", what, n))
	}
}
