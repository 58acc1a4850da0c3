// Package agents provides traffic generators for exercising the memory
// subsystem in acceptance tests and demo runs.
package agents

import (
	"log"
	"math/rand"
	"reflect"

	"github.com/coreforge/memsim/mem"
	"github.com/coreforge/memsim/sim"
)

// An AccessAgent issues random narrow reads and writes against one
// destination and checks every read result against the values it wrote
// before.
type AccessAgent struct {
	*sim.TickingComponent

	memPort sim.Port

	Dst       sim.RemotePort
	WordBytes uint64
	Lo, Hi    uint64

	AccessesLeft int

	known        map[uint64][]byte
	pendingRead  *mem.ReadReq
	pendingWrite *mem.WriteReq
	rng          *rand.Rand
}

// NewAccessAgent creates an access agent that exercises addresses in
// [lo, hi) with the given access word size.
func NewAccessAgent(
	name string,
	engine sim.Engine,
	freq sim.Freq,
	dst sim.RemotePort,
	wordBytes uint64,
	lo, hi uint64,
	numAccesses int,
	seed int64,
) *AccessAgent {
	a := &AccessAgent{
		Dst:          dst,
		WordBytes:    wordBytes,
		Lo:           lo,
		Hi:           hi,
		AccessesLeft: numAccesses,
		known:        make(map[uint64][]byte),
		rng:          rand.New(rand.NewSource(seed)),
	}
	a.TickingComponent = sim.NewTickingComponent(name, engine, freq, a)

	a.memPort = sim.NewPort(a, 1, 1, name+".MemPort")
	a.AddPort("Mem", a.memPort)

	return a
}

// MemPort returns the port the agent accesses memory through.
func (a *AccessAgent) MemPort() sim.Port {
	return a.memPort
}

// Done reports whether all accesses have been issued and answered.
func (a *AccessAgent) Done() bool {
	return a.AccessesLeft == 0 &&
		a.pendingRead == nil && a.pendingWrite == nil
}

// Tick updates the state of the agent.
func (a *AccessAgent) Tick() bool {
	madeProgress := a.processRsp()

	if a.AccessesLeft == 0 {
		return madeProgress
	}

	if a.pendingRead != nil || a.pendingWrite != nil {
		return madeProgress
	}

	if a.shouldRead() {
		madeProgress = a.doRead() || madeProgress
	} else {
		madeProgress = a.doWrite() || madeProgress
	}

	return madeProgress
}

func (a *AccessAgent) processRsp() bool {
	msg := a.memPort.RetrieveIncoming()
	if msg == nil {
		return false
	}

	switch msg := msg.(type) {
	case *mem.WriteDoneRsp:
		if a.pendingWrite == nil || a.pendingWrite.ID != msg.RespondTo {
			panic("agent received an ack for an unknown write")
		}

		a.pendingWrite = nil
	case *mem.DataReadyRsp:
		if a.pendingRead == nil || a.pendingRead.ID != msg.RespondTo {
			panic("agent received data for an unknown read")
		}

		a.checkReadResult(a.pendingRead, msg)
		a.pendingRead = nil
	default:
		log.Panicf("agent cannot process message of type %s",
			reflect.TypeOf(msg))
	}

	return true
}

func (a *AccessAgent) checkReadResult(
	req *mem.ReadReq,
	rsp *mem.DataReadyRsp,
) {
	expected, written := a.known[req.Address]
	if !written {
		return
	}

	for i := range expected {
		if rsp.Data[i] != expected[i] {
			log.Panicf(
				"read 0x%X returned %v, last written value was %v",
				req.Address, rsp.Data, expected)
		}
	}
}

func (a *AccessAgent) shouldRead() bool {
	if len(a.known) == 0 {
		return false
	}

	return a.rng.Float64() > 0.5
}

func (a *AccessAgent) doRead() bool {
	address := a.randomWrittenAddress()

	readReq := mem.ReadReqBuilder{}.
		WithSrc(a.memPort.AsRemote()).
		WithDst(a.Dst).
		WithAddress(address).
		WithByteSize(a.WordBytes).
		Build()

	if err := a.memPort.Send(readReq); err != nil {
		return false
	}

	a.pendingRead = readReq
	a.AccessesLeft--

	return true
}

func (a *AccessAgent) doWrite() bool {
	address := a.randomAddress()

	data := make([]byte, a.WordBytes)
	for i := range data {
		data[i] = byte(a.rng.Uint32())
	}

	writeReq := mem.WriteReqBuilder{}.
		WithSrc(a.memPort.AsRemote()).
		WithDst(a.Dst).
		WithAddress(address).
		WithData(data).
		Build()

	if err := a.memPort.Send(writeReq); err != nil {
		return false
	}

	a.pendingWrite = writeReq
	a.known[address] = data
	a.AccessesLeft--

	return true
}

func (a *AccessAgent) randomAddress() uint64 {
	words := (a.Hi - a.Lo) / a.WordBytes
	return a.Lo + a.rng.Uint64()%words*a.WordBytes
}

func (a *AccessAgent) randomWrittenAddress() uint64 {
	for {
		addr := a.randomAddress()
		if _, written := a.known[addr]; written {
			return addr
		}
	}
}
