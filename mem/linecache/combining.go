package linecache

import (
	"log"
	"reflect"

	"github.com/coreforge/memsim/mem"
	"github.com/coreforge/memsim/sim"
)

// processCombiningWrite handles one narrow write of a write-combining
// cache. Words land at their byte lanes inside the single resident line;
// once every position is written the line is flushed with one autonomous
// burst write.
func (c *Comp) processCombiningWrite(msg sim.Msg) bool {
	req, ok := msg.(*mem.WriteReq)
	if !ok {
		log.Panicf("write-combining cache cannot handle %s",
			reflect.TypeOf(msg))
	}

	c.accessMustBeValid(req.Address, uint64(len(req.Data)))

	line := &c.lines[0]
	tag := req.Address / c.lineBytes
	offset := req.Address % c.lineBytes

	// A write for a different line closes the current partial line first.
	if line.anyWritten() && line.tag != tag {
		return c.flushPartialLine(line)
	}

	// Rewriting an already filled position starts a fresh line.
	if c.positionAlreadyWritten(line, offset, req) {
		line.clearWritten()
	}

	completes := c.wouldCompleteLine(line, offset, req)
	if completes && !c.bottomPort.CanSend() {
		return false
	}

	c.placeCombiningWrite(line, tag, offset, req)
	c.topPort.RetrieveIncoming()

	if completes {
		c.flushFullLine(line, req)
		return true
	}

	c.pendingRsp = mem.WriteDoneRspBuilder{}.
		WithSrc(c.topPort.AsRemote()).
		WithDst(req.Src).
		WithRspTo(req.ID).
		Build()

	return true
}

func (c *Comp) positionAlreadyWritten(
	line *cacheLine,
	offset uint64,
	req *mem.WriteReq,
) bool {
	for i := range req.Data {
		if req.DirtyMask != nil && !req.DirtyMask[i] {
			continue
		}

		if line.written[offset+uint64(i)] {
			return true
		}
	}

	return false
}

func (c *Comp) wouldCompleteLine(
	line *cacheLine,
	offset uint64,
	req *mem.WriteReq,
) bool {
	for i := uint64(0); i < c.lineBytes; i++ {
		if line.written[i] {
			continue
		}

		inReq := i >= offset && i < offset+uint64(len(req.Data))
		if !inReq {
			return false
		}

		ri := i - offset
		if req.DirtyMask != nil && !req.DirtyMask[ri] {
			return false
		}
	}

	return true
}

func (c *Comp) placeCombiningWrite(
	line *cacheLine,
	tag, offset uint64,
	req *mem.WriteReq,
) {
	for i := range req.Data {
		if req.DirtyMask != nil && !req.DirtyMask[i] {
			continue
		}

		line.data[offset+uint64(i)] = req.Data[i]
		line.written[offset+uint64(i)] = true
	}

	line.tag = tag
}

// flushFullLine writes the completed line back and defers the ack of the
// completing write until the backend confirms, so the loader cannot
// advance before the data is durable.
func (c *Comp) flushFullLine(line *cacheLine, req *mem.WriteReq) {
	flush := c.buildCombiningFlush(line, nil)

	if err := c.bottomPort.Send(flush); err != nil {
		panic("bottom port send failed after CanSend check")
	}

	c.trans = &transaction{
		req:         req,
		slot:        0,
		tag:         line.tag,
		burstID:     flush.ID,
		clearOnDone: true,
	}
	c.state = stateFlushing
}

// flushPartialLine closes a partially filled line with a masked burst
// write. The triggering request stays in the top buffer and is processed
// again once the flush completes.
func (c *Comp) flushPartialLine(line *cacheLine) bool {
	if !c.bottomPort.CanSend() {
		return false
	}

	mask := make([]bool, c.lineBytes)
	copy(mask, line.written)

	flush := c.buildCombiningFlush(line, mask)

	if err := c.bottomPort.Send(flush); err != nil {
		return false
	}

	c.trans = &transaction{
		slot:        0,
		tag:         line.tag,
		burstID:     flush.ID,
		clearOnDone: true,
	}
	c.state = stateFlushing

	return true
}

func (c *Comp) buildCombiningFlush(
	line *cacheLine,
	mask []bool,
) *mem.BurstWriteReq {
	baseAddr := line.tag * c.lineBytes

	dst, mapped := c.bottomMapper.Find(baseAddr)
	if !mapped {
		panic("cache bottom address is not mapped")
	}

	data := make([]byte, c.lineBytes)
	copy(data, line.data)

	return mem.BurstWriteReqBuilder{}.
		WithSrc(c.bottomPort.AsRemote()).
		WithDst(dst).
		WithBaseAddress(baseAddr).
		WithWordBytes(c.wordBytes).
		WithData(data).
		WithDirtyMask(mask).
		Build()
}
