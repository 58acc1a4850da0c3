package burstmem

import (
	"log"
	"reflect"

	"github.com/coreforge/memsim/mem"
	"github.com/coreforge/memsim/sim"
)

// currentBurst is the one transaction in flight. The backend channel
// carries exactly one burst at any instant.
type currentBurst struct {
	read  *mem.BurstReadReq
	write *mem.BurstWriteReq

	cyclesLeft int // latency cycles before the data phase starts
	nextBeat   int // beats already sent, in delivery order
}

// Comp is a burst memory component.
type Comp struct {
	*sim.TickingComponent

	topPort sim.Port
	Storage *mem.Storage

	latency int
	current *currentBurst
}

// TopPort returns the port that accepts burst requests.
func (c *Comp) TopPort() sim.Port {
	return c.topPort
}

// Tick updates the state of the memory model.
func (c *Comp) Tick() bool {
	madeProgress := c.advanceCurrent()
	madeProgress = c.acceptNext() || madeProgress

	return madeProgress
}

func (c *Comp) acceptNext() bool {
	msg := c.topPort.PeekIncoming()
	if msg == nil {
		return false
	}

	if c.current != nil {
		panic("burst request arrived while another burst is in flight")
	}

	switch req := msg.(type) {
	case *mem.BurstReadReq:
		c.current = &currentBurst{
			read:       req,
			cyclesLeft: c.latency,
		}
	case *mem.BurstWriteReq:
		c.current = &currentBurst{
			write:      req,
			cyclesLeft: c.latency + req.WordCount(),
		}
	default:
		log.Panicf("burst memory cannot handle request of type %s",
			reflect.TypeOf(msg))
	}

	c.topPort.RetrieveIncoming()

	return true
}

func (c *Comp) advanceCurrent() bool {
	if c.current == nil {
		return false
	}

	if c.current.cyclesLeft > 0 {
		c.current.cyclesLeft--
		return true
	}

	if c.current.read != nil {
		return c.sendNextBeat()
	}

	return c.completeWrite()
}

// sendNextBeat emits one word per cycle. With Wrap set, delivery starts at
// the critical word and rotates through the line; the word index carried in
// every beat is always the natural one.
func (c *Comp) sendNextBeat() bool {
	req := c.current.read

	wordIndex := c.current.nextBeat
	if req.Wrap {
		wordIndex = (req.CriticalWord + c.current.nextBeat) % req.WordCount
	}

	addr := req.BaseAddress + uint64(wordIndex)*req.WordBytes
	data, err := c.Storage.Read(addr, req.WordBytes)
	if err != nil {
		log.Panic(err)
	}

	last := c.current.nextBeat == req.WordCount-1

	builder := mem.BurstBeatBuilder{}.
		WithSrc(c.topPort.AsRemote()).
		WithDst(req.Src).
		WithRspTo(req.ID).
		WithWordIndex(wordIndex).
		WithData(data)
	if last {
		builder = builder.Last()
	}

	if err := c.topPort.Send(builder.Build()); err != nil {
		return false
	}

	c.current.nextBeat++
	if last {
		c.current = nil
	}

	return true
}

func (c *Comp) completeWrite() bool {
	req := c.current.write

	done := mem.WriteDoneRspBuilder{}.
		WithSrc(c.topPort.AsRemote()).
		WithDst(req.Src).
		WithRspTo(req.ID).
		Build()

	if err := c.topPort.Send(done); err != nil {
		return false
	}

	if err := c.Storage.MaskedWrite(
		req.BaseAddress, req.Data, req.DirtyMask); err != nil {
		log.Panic(err)
	}

	c.current = nil

	return true
}
