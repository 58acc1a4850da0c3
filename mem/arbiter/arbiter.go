package arbiter

import (
	"fmt"
	"log"
	"reflect"

	"github.com/coreforge/memsim/mem"
	"github.com/coreforge/memsim/sim"
)

// Comp is a fixed-priority arbiter component. It owns one port per master
// slot and one port facing the backend.
type Comp struct {
	*sim.TickingComponent

	slotPorts  []sim.Port
	bottomPort sim.Port
	backend    sim.RemotePort

	offsets []uint64

	grantedSlot int
	grantedReq  sim.Msg // the master's original burst request
	forwardedID string
}

// SlotPort returns the port of the given master slot.
func (c *Comp) SlotPort(slot int) sim.Port {
	c.slotMustBeValid(slot)
	return c.slotPorts[slot]
}

// BottomPort returns the backend-facing port.
func (c *Comp) BottomPort() sim.Port {
	return c.bottomPort
}

// SetSlotOffset sets the address offset of one slot. Offsets may change
// between configuration loads but must stay stable while a session runs;
// changing an offset while a burst is in flight is a caller bug.
func (c *Comp) SetSlotOffset(slot int, offset uint64) {
	c.slotMustBeValid(slot)

	if c.grantedSlot == slot {
		panic("cannot change the offset of a slot holding the grant")
	}

	c.offsets[slot] = offset
}

func (c *Comp) slotMustBeValid(slot int) {
	if slot < 0 || slot >= len(c.slotPorts) {
		panic(fmt.Sprintf("slot %d out of range 0..%d",
			slot, len(c.slotPorts)-1))
	}
}

// Tick updates the state of the arbiter.
func (c *Comp) Tick() bool {
	madeProgress := c.routeResponses()
	madeProgress = c.grant() || madeProgress

	return madeProgress
}

// grant scans the slots in fixed index order and forwards the burst of the
// lowest-indexed requester. Nothing is scanned while a grant is held.
func (c *Comp) grant() bool {
	if c.grantedSlot >= 0 {
		return false
	}

	for slot, port := range c.slotPorts {
		msg := port.PeekIncoming()
		if msg == nil {
			continue
		}

		if c.forwardBurst(slot, msg) {
			return true
		}

		// The backend cannot accept the burst right now. Do not move on to
		// lower-priority slots; priority order must hold next cycle too.
		return false
	}

	return false
}

func (c *Comp) forwardBurst(slot int, msg sim.Msg) bool {
	if !c.bottomPort.CanSend() {
		return false
	}

	var forwarded sim.Msg

	switch req := msg.(type) {
	case *mem.BurstReadReq:
		builder := mem.BurstReadReqBuilder{}.
			WithSrc(c.bottomPort.AsRemote()).
			WithDst(c.backend).
			WithBaseAddress(req.BaseAddress + c.offsets[slot]).
			WithWordBytes(req.WordBytes).
			WithWordCount(req.WordCount)
		if req.Wrap {
			builder = builder.WithWrap(req.CriticalWord)
		}
		forwarded = builder.Build()
	case *mem.BurstWriteReq:
		forwarded = mem.BurstWriteReqBuilder{}.
			WithSrc(c.bottomPort.AsRemote()).
			WithDst(c.backend).
			WithBaseAddress(req.BaseAddress + c.offsets[slot]).
			WithWordBytes(req.WordBytes).
			WithData(req.Data).
			WithDirtyMask(req.DirtyMask).
			Build()
	default:
		log.Panicf("arbiter cannot handle request of type %s",
			reflect.TypeOf(msg))
	}

	if err := c.bottomPort.Send(forwarded); err != nil {
		return false
	}

	c.grantedSlot = slot
	c.grantedReq = msg
	c.forwardedID = forwarded.Meta().ID
	c.slotPorts[slot].RetrieveIncoming()

	return true
}

// routeResponses forwards backend responses to the currently granted slot.
// The grant is released only when the final beat or the write completion
// has been handed over, which keeps bursts atomic on the backend channel.
func (c *Comp) routeResponses() bool {
	msg := c.bottomPort.PeekIncoming()
	if msg == nil {
		return false
	}

	if c.grantedSlot < 0 {
		panic("backend response arrived while no grant is held")
	}

	slotPort := c.slotPorts[c.grantedSlot]

	switch rsp := msg.(type) {
	case *mem.BurstBeat:
		c.rspMustMatchGrant(rsp.RespondTo)

		builder := mem.BurstBeatBuilder{}.
			WithSrc(slotPort.AsRemote()).
			WithDst(c.grantedReq.Meta().Src).
			WithRspTo(c.grantedReq.Meta().ID).
			WithWordIndex(rsp.WordIndex).
			WithData(rsp.Data)
		if rsp.Last {
			builder = builder.Last()
		}

		if err := slotPort.Send(builder.Build()); err != nil {
			return false
		}

		c.bottomPort.RetrieveIncoming()

		if rsp.Last {
			c.releaseGrant()
		}

		return true
	case *mem.WriteDoneRsp:
		c.rspMustMatchGrant(rsp.RespondTo)

		done := mem.WriteDoneRspBuilder{}.
			WithSrc(slotPort.AsRemote()).
			WithDst(c.grantedReq.Meta().Src).
			WithRspTo(c.grantedReq.Meta().ID).
			Build()

		if err := slotPort.Send(done); err != nil {
			return false
		}

		c.bottomPort.RetrieveIncoming()
		c.releaseGrant()

		return true
	default:
		log.Panicf("arbiter cannot handle response of type %s",
			reflect.TypeOf(msg))
	}

	return false
}

func (c *Comp) rspMustMatchGrant(rspTo string) {
	if rspTo != c.forwardedID {
		panic("backend response does not match the granted burst")
	}
}

func (c *Comp) releaseGrant() {
	c.grantedSlot = -1
	c.grantedReq = nil
	c.forwardedID = ""
}
