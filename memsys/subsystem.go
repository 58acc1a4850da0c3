package memsys

import (
	"github.com/coreforge/memsim/mem"
	"github.com/coreforge/memsim/mem/arbiter"
	"github.com/coreforge/memsim/mem/burstmem"
	"github.com/coreforge/memsim/mem/linecache"
	"github.com/coreforge/memsim/sim"
)

// A Subsystem is the assembled memory subsystem. It performs no caching or
// arbitration itself; the components do, and the subsystem holds the wiring
// and applies profiles.
type Subsystem struct {
	name   string
	engine sim.Engine
	freq   sim.Freq

	DDR   *burstmem.Comp
	SDRAM *burstmem.Comp

	DDRArbiter   *arbiter.Comp
	SDRAMArbiter *arbiter.Comp

	Caches map[string]*linecache.Comp
	Loader *Loader
	Router *Router

	SystemConn *sim.DirectConnection

	streams    map[string]StreamConfig
	videoConns map[string]*sim.FixedLatencyConnection
}

// Name returns the name of the subsystem.
func (s *Subsystem) Name() string {
	return s.name
}

func (s *Subsystem) arbiterFor(kind BackendKind) *arbiter.Comp {
	if kind == BackendDDR {
		return s.DDRArbiter
	}

	return s.SDRAMArbiter
}

// LoadProfile applies one configuration's address map: it sets the arbiter
// offset of every stream the profile names and rebuilds the router's range
// table. Call it between sessions, never while traffic is in flight.
func (s *Subsystem) LoadProfile(p Profile) {
	for stream, offset := range p.Offsets {
		sc, found := s.streams[stream]
		if !found {
			panic("profile names unknown stream " + stream)
		}

		s.arbiterFor(sc.Backend).SetSlotOffset(sc.Slot, offset)
	}

	mapper := mem.NewRangedPortMapper()
	for _, r := range p.Ranges {
		sc, found := s.streams[r.Stream]
		if !found {
			panic("profile range names unknown stream " + r.Stream)
		}

		if sc.VideoDomain || sc.WriteCombining {
			panic("stream " + r.Stream + " is not router reachable")
		}

		mapper.AddRange(r.Lo, r.Hi, s.Caches[r.Stream].TopPort().AsRemote())
	}

	s.Router.SetMapper(mapper)
}

// ConnectSystemMaster plugs a master port into the system connection, where
// it can reach the router, the loader, and any system-domain cache.
func (s *Subsystem) ConnectSystemMaster(p sim.Port) {
	s.SystemConn.PlugIn(p)
}

// ConnectVideoMaster plugs a master port into the domain-crossing
// connection of a video stream.
func (s *Subsystem) ConnectVideoMaster(stream string, p sim.Port) {
	conn, found := s.videoConns[stream]
	if !found {
		panic("stream " + stream + " is not a video stream")
	}

	conn.PlugIn(p)
}

// RouterPort returns the destination masters use for flat-space accesses.
func (s *Subsystem) RouterPort() sim.RemotePort {
	return s.Router.TopPort().AsRemote()
}

// LoaderPort returns the destination masters use for download writes.
func (s *Subsystem) LoaderPort() sim.RemotePort {
	return s.Loader.TopPort().AsRemote()
}

// CachePort returns the top-port destination of one stream's cache, for
// masters that talk to their cache directly.
func (s *Subsystem) CachePort(stream string) sim.RemotePort {
	c, found := s.Caches[stream]
	if !found {
		panic("unknown stream " + stream)
	}

	return c.TopPort().AsRemote()
}
