package memsys

import (
	"fmt"

	"github.com/coreforge/memsim/mem"
	"github.com/coreforge/memsim/mem/arbiter"
	"github.com/coreforge/memsim/mem/burstmem"
	"github.com/coreforge/memsim/mem/linecache"
	"github.com/coreforge/memsim/sim"
)

// BackendKind selects which of the two burst backends a stream targets.
type BackendKind int

// The two backends of the subsystem.
const (
	BackendDDR BackendKind = iota
	BackendSDRAM
)

// A StreamConfig describes one peripheral request stream and the cache that
// fronts it.
type StreamConfig struct {
	Name    string
	Backend BackendKind

	// Slot is the stream's arbiter slot. Lower slots win arbitration.
	Slot int

	InWordBytes    uint64
	Depth          int
	Wrapping       bool
	WriteCombining bool

	// VideoDomain streams reach their cache through a fixed-latency
	// connection instead of the system connection.
	VideoDomain bool
}

// A Builder builds memory subsystems.
type Builder struct {
	engine     sim.Engine
	simulation *sim.Simulation

	freq            sim.Freq
	videoFreq       sim.Freq
	crossingLatency int
	wordBytes       uint64
	lineWords       int
	ddrLatency      int
	sdramLatency    int
	ddrCapacity     uint64
	sdramCapacity   uint64
	streams         []StreamConfig
}

// MakeBuilder returns a Builder with default configuration.
func MakeBuilder() Builder {
	return Builder{
		freq:            100 * sim.MHz,
		videoFreq:       25 * sim.MHz,
		crossingLatency: 2,
		wordBytes:       8,
		lineWords:       4,
		ddrLatency:      6,
		sdramLatency:    4,
		ddrCapacity:     64 * mem.MB,
		sdramCapacity:   32 * mem.MB,
	}
}

// WithEngine sets the engine that all the components use.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithSimulation registers every built component with the simulation and
// uses the simulation's engine.
func (b Builder) WithSimulation(s *sim.Simulation) Builder {
	b.simulation = s
	b.engine = s.GetEngine()
	return b
}

// WithFreq sets the system domain frequency.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithVideoFreq sets the video domain frequency.
func (b Builder) WithVideoFreq(freq sim.Freq) Builder {
	b.videoFreq = freq
	return b
}

// WithCrossingLatency sets the latency, in video-domain cycles, of the
// domain-crossing connections.
func (b Builder) WithCrossingLatency(cycles int) Builder {
	b.crossingLatency = cycles
	return b
}

// WithBurstShape sets the backend burst geometry shared by every cache and
// backend.
func (b Builder) WithBurstShape(wordBytes uint64, lineWords int) Builder {
	b.wordBytes = wordBytes
	b.lineWords = lineWords
	return b
}

// WithDDR sets the latency and capacity of the DDR backend.
func (b Builder) WithDDR(latency int, capacity uint64) Builder {
	b.ddrLatency = latency
	b.ddrCapacity = capacity
	return b
}

// WithSDRAM sets the latency and capacity of the SDRAM backend.
func (b Builder) WithSDRAM(latency int, capacity uint64) Builder {
	b.sdramLatency = latency
	b.sdramCapacity = capacity
	return b
}

// WithStream adds one peripheral stream to the topology.
func (b Builder) WithStream(s StreamConfig) Builder {
	b.streams = append(b.streams, s)
	return b
}

// Build creates the subsystem component graph.
func (b Builder) Build(name string) *Subsystem {
	b.configMustBeValid()

	s := &Subsystem{
		name:       name,
		engine:     b.engine,
		freq:       b.freq,
		Caches:     make(map[string]*linecache.Comp),
		streams:    make(map[string]StreamConfig),
		videoConns: make(map[string]*sim.FixedLatencyConnection),
	}

	s.SystemConn = sim.NewDirectConnection(name+".SysConn", b.engine, b.freq)

	b.buildBackends(s, name)
	b.buildArbiters(s, name)
	b.buildStreams(s, name)
	b.buildLoader(s, name)
	b.buildRouter(s, name)

	b.register(s)

	return s
}

func (b Builder) buildBackends(s *Subsystem, name string) {
	s.DDR = burstmem.MakeBuilder().
		WithEngine(b.engine).
		WithFreq(b.freq).
		WithLatency(b.ddrLatency).
		WithNewStorage(b.ddrCapacity).
		Build(name + ".DDR")
	s.SDRAM = burstmem.MakeBuilder().
		WithEngine(b.engine).
		WithFreq(b.freq).
		WithLatency(b.sdramLatency).
		WithNewStorage(b.sdramCapacity).
		Build(name + ".SDRAM")

	s.SystemConn.PlugIn(s.DDR.TopPort())
	s.SystemConn.PlugIn(s.SDRAM.TopPort())
}

func (b Builder) buildArbiters(s *Subsystem, name string) {
	s.DDRArbiter = arbiter.MakeBuilder().
		WithEngine(b.engine).
		WithFreq(b.freq).
		WithNumSlots(b.numSlots(BackendDDR)).
		WithBackend(s.DDR.TopPort().AsRemote()).
		Build(name + ".DDRArbiter")
	s.SDRAMArbiter = arbiter.MakeBuilder().
		WithEngine(b.engine).
		WithFreq(b.freq).
		WithNumSlots(b.numSlots(BackendSDRAM)).
		WithBackend(s.SDRAM.TopPort().AsRemote()).
		Build(name + ".SDRAMArbiter")

	s.SystemConn.PlugIn(s.DDRArbiter.BottomPort())
	s.SystemConn.PlugIn(s.SDRAMArbiter.BottomPort())
}

func (b Builder) buildStreams(s *Subsystem, name string) {
	for _, sc := range b.streams {
		arb := s.arbiterFor(sc.Backend)

		depth := sc.Depth
		if depth == 0 {
			depth = 1
		}

		cb := linecache.MakeBuilder().
			WithEngine(b.engine).
			WithFreq(b.freq).
			WithInWordBytes(sc.InWordBytes).
			WithWordBytes(b.wordBytes).
			WithLineWords(b.lineWords).
			WithDepth(depth).
			WithBottomMapper(&mem.SinglePortMapper{
				Port: arb.SlotPort(sc.Slot).AsRemote(),
			})
		if sc.Wrapping {
			cb = cb.WithWrapping()
		}
		if sc.WriteCombining {
			cb = cb.WithWriteCombining()
		}

		cache := cb.Build(name + "." + sc.Name + "Cache")

		s.SystemConn.PlugIn(cache.BottomPort())
		s.SystemConn.PlugIn(arb.SlotPort(sc.Slot))

		if sc.VideoDomain {
			conn := sim.NewFixedLatencyConnection(
				name+"."+sc.Name+"Conn",
				b.engine, b.videoFreq, b.crossingLatency)
			conn.PlugIn(cache.TopPort())
			s.videoConns[sc.Name] = conn
		} else {
			s.SystemConn.PlugIn(cache.TopPort())
		}

		s.Caches[sc.Name] = cache
		s.streams[sc.Name] = sc
	}
}

func (b Builder) buildLoader(s *Subsystem, name string) {
	var targets []sim.RemotePort
	for _, sc := range b.streams {
		if sc.WriteCombining {
			targets = append(targets,
				s.Caches[sc.Name].TopPort().AsRemote())
		}
	}

	if len(targets) == 0 {
		return
	}

	s.Loader = NewLoader(name+".Loader", b.engine, b.freq,
		[2]sim.RemotePort{targets[0], targets[1]})
	s.SystemConn.PlugIn(s.Loader.TopPort())
	s.SystemConn.PlugIn(s.Loader.BottomPort())
}

func (b Builder) buildRouter(s *Subsystem, name string) {
	s.Router = NewRouter(name+".Router", b.engine, b.freq)
	s.SystemConn.PlugIn(s.Router.TopPort())
	s.SystemConn.PlugIn(s.Router.BottomPort())
}

func (b Builder) register(s *Subsystem) {
	if b.simulation == nil {
		return
	}

	b.simulation.RegisterComponent(s.DDR)
	b.simulation.RegisterComponent(s.SDRAM)
	b.simulation.RegisterComponent(s.DDRArbiter)
	b.simulation.RegisterComponent(s.SDRAMArbiter)
	for _, c := range s.Caches {
		b.simulation.RegisterComponent(c)
	}
	if s.Loader != nil {
		b.simulation.RegisterComponent(s.Loader)
	}
	b.simulation.RegisterComponent(s.Router)
}

func (b Builder) numSlots(kind BackendKind) int {
	max := -1
	for _, sc := range b.streams {
		if sc.Backend == kind && sc.Slot > max {
			max = sc.Slot
		}
	}

	if max < 0 {
		// An arbiter still fronts a backend no stream uses.
		return 1
	}

	return max + 1
}

func (b Builder) configMustBeValid() {
	if b.engine == nil {
		panic("memory subsystem requires an engine")
	}

	seen := make(map[string]bool)
	slots := make(map[BackendKind]map[int]string)
	slots[BackendDDR] = make(map[int]string)
	slots[BackendSDRAM] = make(map[int]string)

	combiningPerBackend := make(map[BackendKind]int)
	combining := 0

	for _, sc := range b.streams {
		if seen[sc.Name] {
			panic("duplicate stream " + sc.Name)
		}
		seen[sc.Name] = true

		if other, taken := slots[sc.Backend][sc.Slot]; taken {
			panic(fmt.Sprintf("streams %s and %s share arbiter slot %d",
				other, sc.Name, sc.Slot))
		}
		slots[sc.Backend][sc.Slot] = sc.Name

		if sc.WriteCombining {
			combining++
			combiningPerBackend[sc.Backend]++
		}

		if sc.WriteCombining && sc.VideoDomain {
			panic("the download path lives in the system domain")
		}
	}

	if combining != 0 && combining != 2 {
		panic("the download path needs exactly one write-combining " +
			"cache per backend")
	}

	if combining == 2 &&
		(combiningPerBackend[BackendDDR] != 1 ||
			combiningPerBackend[BackendSDRAM] != 1) {
		panic("the two download caches must target different backends")
	}
}
