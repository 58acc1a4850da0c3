package memsys

import (
	"log"
	"reflect"

	"github.com/coreforge/memsim/mem"
	"github.com/coreforge/memsim/sim"
)

// Router is the flat-address front door of the subsystem. It forwards each
// access to the cache that backs its address range and applies open-bus
// behavior to unmapped addresses: reads return the stub pattern, writes are
// discarded.
type Router struct {
	*sim.TickingComponent

	topPort    sim.Port
	bottomPort sim.Port

	mapper mem.AddressMapper

	// forwarded request ID -> original request
	pending map[string]mem.AccessReq
}

// NewRouter creates a router. The mapper table is installed later, when a
// profile is loaded.
func NewRouter(name string, engine sim.Engine, freq sim.Freq) *Router {
	r := &Router{
		pending: make(map[string]mem.AccessReq),
	}
	r.TickingComponent = sim.NewTickingComponent(name, engine, freq, r)

	r.topPort = sim.NewPort(r, 4, 4, name+".TopPort")
	r.bottomPort = sim.NewPort(r, 4, 4, name+".BottomPort")
	r.AddPort("Top", r.topPort)
	r.AddPort("Bottom", r.bottomPort)

	return r
}

// TopPort returns the port that masters send flat-space accesses to.
func (r *Router) TopPort() sim.Port {
	return r.topPort
}

// BottomPort returns the port that talks to the caches.
func (r *Router) BottomPort() sim.Port {
	return r.bottomPort
}

// SetMapper installs the range table. Called once per configuration load,
// never mid-access.
func (r *Router) SetMapper(m mem.AddressMapper) {
	if len(r.pending) > 0 {
		panic("cannot swap the address map while accesses are in flight")
	}

	r.mapper = m
}

// Tick updates the state of the router.
func (r *Router) Tick() bool {
	madeProgress := r.routeRsps()
	madeProgress = r.forwardReqs() || madeProgress

	return madeProgress
}

func (r *Router) routeRsps() bool {
	msg := r.bottomPort.PeekIncoming()
	if msg == nil {
		return false
	}

	var out sim.Msg

	switch rsp := msg.(type) {
	case *mem.DataReadyRsp:
		orig := r.origReq(rsp.RespondTo)
		out = mem.DataReadyRspBuilder{}.
			WithSrc(r.topPort.AsRemote()).
			WithDst(orig.Meta().Src).
			WithRspTo(orig.Meta().ID).
			WithData(rsp.Data).
			Build()
	case *mem.WriteDoneRsp:
		orig := r.origReq(rsp.RespondTo)
		out = mem.WriteDoneRspBuilder{}.
			WithSrc(r.topPort.AsRemote()).
			WithDst(orig.Meta().Src).
			WithRspTo(orig.Meta().ID).
			Build()
	default:
		log.Panicf("router cannot handle message of type %s",
			reflect.TypeOf(msg))
	}

	if err := r.topPort.Send(out); err != nil {
		return false
	}

	switch rsp := msg.(type) {
	case *mem.DataReadyRsp:
		delete(r.pending, rsp.RespondTo)
	case *mem.WriteDoneRsp:
		delete(r.pending, rsp.RespondTo)
	}

	r.bottomPort.RetrieveIncoming()

	return true
}

func (r *Router) origReq(rspTo string) mem.AccessReq {
	orig, found := r.pending[rspTo]
	if !found {
		panic("router received a response to an unknown request")
	}

	return orig
}

func (r *Router) forwardReqs() bool {
	msg := r.topPort.PeekIncoming()
	if msg == nil {
		return false
	}

	req, ok := msg.(mem.AccessReq)
	if !ok {
		log.Panicf("router cannot handle message of type %s",
			reflect.TypeOf(msg))
	}

	if r.mapper == nil {
		panic("no address map loaded")
	}

	dst, found := r.mapper.Find(req.GetAddress())
	if !found {
		return r.serveOpenBus(req)
	}

	return r.forwardTo(req, dst)
}

func (r *Router) forwardTo(req mem.AccessReq, dst sim.RemotePort) bool {
	var fwd mem.AccessReq

	switch req := req.(type) {
	case *mem.ReadReq:
		fwd = mem.ReadReqBuilder{}.
			WithSrc(r.bottomPort.AsRemote()).
			WithDst(dst).
			WithAddress(req.Address).
			WithByteSize(req.AccessByteSize).
			Build()
	case *mem.WriteReq:
		fwd = mem.WriteReqBuilder{}.
			WithSrc(r.bottomPort.AsRemote()).
			WithDst(dst).
			WithAddress(req.Address).
			WithData(req.Data).
			WithDirtyMask(req.DirtyMask).
			Build()
	}

	if err := r.bottomPort.Send(fwd); err != nil {
		return false
	}

	r.pending[fwd.Meta().ID] = req
	r.topPort.RetrieveIncoming()

	return true
}

// serveOpenBus answers an unmapped access locally. Reads see the open-bus
// pattern on every byte, writes complete without touching anything.
func (r *Router) serveOpenBus(req mem.AccessReq) bool {
	var out sim.Msg

	switch req := req.(type) {
	case *mem.ReadReq:
		data := make([]byte, req.AccessByteSize)
		for i := range data {
			data[i] = mem.OpenBusByte
		}

		out = mem.DataReadyRspBuilder{}.
			WithSrc(r.topPort.AsRemote()).
			WithDst(req.Src).
			WithRspTo(req.ID).
			WithData(data).
			Build()
	case *mem.WriteReq:
		out = mem.WriteDoneRspBuilder{}.
			WithSrc(r.topPort.AsRemote()).
			WithDst(req.Src).
			WithRspTo(req.ID).
			Build()
	}

	if err := r.topPort.Send(out); err != nil {
		return false
	}

	r.topPort.RetrieveIncoming()

	return true
}
