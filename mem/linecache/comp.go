package linecache

import (
	"fmt"
	"log"
	"reflect"

	"github.com/coreforge/memsim/mem"
	"github.com/coreforge/memsim/sim"
)

type cacheState int

const (
	stateIdle cacheState = iota
	stateFlushing
	stateFillIssue
	stateFilling
)

// A cacheLine is one resident line of the cache.
type cacheLine struct {
	tag   uint64
	valid bool
	dirty bool
	data  []byte

	// written tracks per-byte occupancy in write-combining mode.
	written []bool
}

func (l *cacheLine) anyWritten() bool {
	for _, w := range l.written {
		if w {
			return true
		}
	}

	return false
}

func (l *cacheLine) allWritten() bool {
	for _, w := range l.written {
		if !w {
			return false
		}
	}

	return true
}

func (l *cacheLine) clearWritten() {
	for i := range l.written {
		l.written[i] = false
	}
}

// A transaction tracks the one miss or flush that is currently in flight.
// Fills and flushes are strictly sequential within one cache instance.
type transaction struct {
	req  mem.AccessReq // originating request, nil for autonomous flushes
	slot int
	tag  uint64

	fillNeeded     bool
	criticalServed bool
	wordsLeft      int
	receivedWords  []bool

	burstID string

	// clearOnDone invalidates the line after the flush completes, used by
	// write-combining caches.
	clearOnDone bool
}

// Comp is a line-buffering cache component. It presents the narrow
// request/response contract on its top port and issues burst-aligned
// transactions on its bottom port.
type Comp struct {
	*sim.TickingComponent

	topPort    sim.Port
	bottomPort sim.Port

	inWordBytes    uint64
	wordBytes      uint64
	lineWords      int
	lineBytes      uint64
	depth          int
	wrapping       bool
	writeCombining bool
	bottomMapper   mem.AddressMapper

	lines []cacheLine
	state cacheState
	trans *transaction

	// pendingRsp is the one response waiting to go out on the top port.
	// While it is set the cache does not accept new requests, which keeps
	// the request/response handshake strictly ordered.
	pendingRsp sim.Msg
}

// TopPort returns the peripheral-facing port of the cache.
func (c *Comp) TopPort() sim.Port {
	return c.topPort
}

// BottomPort returns the backend-facing port of the cache.
func (c *Comp) BottomPort() sim.Port {
	return c.bottomPort
}

// LineBytes returns the size of one line in bytes.
func (c *Comp) LineBytes() uint64 {
	return c.lineBytes
}

// Tick updates the state of the cache.
func (c *Comp) Tick() bool {
	madeProgress := c.sendPendingRsp()
	madeProgress = c.processBottom() || madeProgress
	madeProgress = c.issuePendingFill() || madeProgress
	madeProgress = c.processTop() || madeProgress

	return madeProgress
}

func (c *Comp) sendPendingRsp() bool {
	if c.pendingRsp == nil {
		return false
	}

	if err := c.topPort.Send(c.pendingRsp); err != nil {
		return false
	}

	c.pendingRsp = nil

	return true
}

func (c *Comp) processTop() bool {
	if c.state != stateIdle || c.pendingRsp != nil {
		return false
	}

	msg := c.topPort.PeekIncoming()
	if msg == nil {
		return false
	}

	if c.writeCombining {
		return c.processCombiningWrite(msg)
	}

	switch req := msg.(type) {
	case *mem.ReadReq:
		c.accessMustBeValid(req.Address, req.AccessByteSize)
		return c.processAccess(req)
	case *mem.WriteReq:
		c.accessMustBeValid(req.Address, uint64(len(req.Data)))
		return c.processAccess(req)
	default:
		log.Panicf("cache cannot handle request of type %s",
			reflect.TypeOf(msg))
	}

	return false
}

func (c *Comp) accessMustBeValid(addr, size uint64) {
	if size != c.inWordBytes {
		panic(fmt.Sprintf(
			"access of %d bytes on a cache with %d-byte input words",
			size, c.inWordBytes))
	}

	if addr%c.inWordBytes != 0 {
		panic(fmt.Sprintf("misaligned access at 0x%X", addr))
	}
}

func (c *Comp) processAccess(req mem.AccessReq) bool {
	tag := req.GetAddress() / c.lineBytes
	slot := int(tag) & (c.depth - 1)
	line := &c.lines[slot]

	if line.valid && line.tag == tag {
		return c.serveHit(req, line)
	}

	return c.startMiss(req, slot, line)
}

func (c *Comp) serveHit(req mem.AccessReq, line *cacheLine) bool {
	offset := req.GetAddress() % c.lineBytes

	switch req := req.(type) {
	case *mem.ReadReq:
		data := make([]byte, req.AccessByteSize)
		copy(data, line.data[offset:offset+req.AccessByteSize])

		c.pendingRsp = mem.DataReadyRspBuilder{}.
			WithSrc(c.topPort.AsRemote()).
			WithDst(req.Src).
			WithRspTo(req.ID).
			WithData(data).
			Build()
	case *mem.WriteReq:
		c.applyWrite(line, offset, req.Data, req.DirtyMask)
		line.dirty = true

		c.pendingRsp = mem.WriteDoneRspBuilder{}.
			WithSrc(c.topPort.AsRemote()).
			WithDst(req.Src).
			WithRspTo(req.ID).
			Build()
	}

	c.topPort.RetrieveIncoming()

	return true
}

func (c *Comp) applyWrite(
	line *cacheLine,
	offset uint64,
	data []byte,
	mask []bool,
) {
	for i := range data {
		if mask == nil || mask[i] {
			line.data[offset+uint64(i)] = data[i]
		}
	}
}

func (c *Comp) startMiss(req mem.AccessReq, slot int, line *cacheLine) bool {
	fullLineWrite := false
	if w, ok := req.(*mem.WriteReq); ok {
		fullLineWrite = uint64(len(w.Data)) == c.lineBytes &&
			w.DirtyMask == nil
	}

	tag := req.GetAddress() / c.lineBytes

	if line.valid && line.dirty {
		return c.startFlush(req, slot, tag, !fullLineWrite)
	}

	if fullLineWrite {
		return c.serveFullLineWrite(req.(*mem.WriteReq), line, tag)
	}

	return c.startFill(req, slot, tag)
}

func (c *Comp) startFlush(
	req mem.AccessReq,
	slot int,
	tag uint64,
	fillNeeded bool,
) bool {
	if !c.bottomPort.CanSend() {
		return false
	}

	line := &c.lines[slot]
	data := make([]byte, c.lineBytes)
	copy(data, line.data)

	dst, mapped := c.bottomMapper.Find(line.tag * c.lineBytes)
	if !mapped {
		panic("cache bottom address is not mapped")
	}

	flush := mem.BurstWriteReqBuilder{}.
		WithSrc(c.bottomPort.AsRemote()).
		WithDst(dst).
		WithBaseAddress(line.tag * c.lineBytes).
		WithWordBytes(c.wordBytes).
		WithData(data).
		Build()

	if err := c.bottomPort.Send(flush); err != nil {
		return false
	}

	c.trans = &transaction{
		req:        req,
		slot:       slot,
		tag:        tag,
		fillNeeded: fillNeeded,
		burstID:    flush.ID,
	}
	c.state = stateFlushing
	c.topPort.RetrieveIncoming()

	return true
}

func (c *Comp) serveFullLineWrite(
	req *mem.WriteReq,
	line *cacheLine,
	tag uint64,
) bool {
	copy(line.data, req.Data)
	line.tag = tag
	line.valid = true
	line.dirty = true

	c.pendingRsp = mem.WriteDoneRspBuilder{}.
		WithSrc(c.topPort.AsRemote()).
		WithDst(req.Src).
		WithRspTo(req.ID).
		Build()

	c.topPort.RetrieveIncoming()

	return true
}

func (c *Comp) startFill(req mem.AccessReq, slot int, tag uint64) bool {
	c.trans = &transaction{
		req:        req,
		slot:       slot,
		tag:        tag,
		fillNeeded: true,
	}
	c.state = stateFillIssue
	c.topPort.RetrieveIncoming()

	c.issuePendingFill()

	return true
}

func (c *Comp) issuePendingFill() bool {
	if c.state != stateFillIssue {
		return false
	}

	if !c.bottomPort.CanSend() {
		return false
	}

	baseAddr := c.trans.tag * c.lineBytes

	dst, mapped := c.bottomMapper.Find(baseAddr)
	if !mapped {
		panic("cache bottom address is not mapped")
	}

	builder := mem.BurstReadReqBuilder{}.
		WithSrc(c.bottomPort.AsRemote()).
		WithDst(dst).
		WithBaseAddress(baseAddr).
		WithWordBytes(c.wordBytes).
		WithWordCount(c.lineWords)

	if c.wrapping {
		critical := int(c.trans.req.GetAddress() % c.lineBytes / c.wordBytes)
		builder = builder.WithWrap(critical)
	}

	fill := builder.Build()

	if err := c.bottomPort.Send(fill); err != nil {
		return false
	}

	c.trans.burstID = fill.ID
	c.trans.wordsLeft = c.lineWords
	c.trans.receivedWords = make([]bool, c.lineWords)
	c.state = stateFilling

	return true
}

func (c *Comp) processBottom() bool {
	msg := c.bottomPort.PeekIncoming()
	if msg == nil {
		return false
	}

	switch msg := msg.(type) {
	case *mem.WriteDoneRsp:
		return c.handleFlushDone(msg)
	case *mem.BurstBeat:
		return c.handleFillBeat(msg)
	default:
		log.Panicf("cache cannot handle message of type %s",
			reflect.TypeOf(msg))
	}

	return false
}

func (c *Comp) handleFlushDone(rsp *mem.WriteDoneRsp) bool {
	if c.state != stateFlushing || rsp.RespondTo != c.trans.burstID {
		panic("unexpected write done response from the backend")
	}

	line := &c.lines[c.trans.slot]

	if c.trans.clearOnDone {
		line.valid = false
		line.dirty = false
		line.clearWritten()
	} else {
		line.dirty = false
		line.valid = false
	}

	c.bottomPort.RetrieveIncoming()

	if c.trans.fillNeeded {
		c.state = stateFillIssue
		c.issuePendingFill()
		return true
	}

	c.finishTransaction(line)

	return true
}

func (c *Comp) handleFillBeat(beat *mem.BurstBeat) bool {
	if c.state != stateFilling || beat.RespondTo != c.trans.burstID {
		panic("unexpected burst beat from the backend")
	}

	line := &c.lines[c.trans.slot]
	offset := uint64(beat.WordIndex) * c.wordBytes
	copy(line.data[offset:offset+c.wordBytes], beat.Data)

	c.trans.receivedWords[beat.WordIndex] = true
	c.trans.wordsLeft--
	c.bottomPort.RetrieveIncoming()

	c.releaseCriticalWord(line)

	if c.trans.wordsLeft == 0 {
		line.tag = c.trans.tag
		line.valid = true
		line.dirty = false
		c.finishTransaction(line)
	}

	return true
}

// releaseCriticalWord hands the originally requested word to the stalled
// master as soon as all its bytes have arrived, before the rest of the
// burst completes.
func (c *Comp) releaseCriticalWord(line *cacheLine) {
	if c.trans.criticalServed {
		return
	}

	req, isRead := c.trans.req.(*mem.ReadReq)
	if !isRead {
		return
	}

	offset := req.Address % c.lineBytes
	firstWord := int(offset / c.wordBytes)
	lastWord := int((offset + req.AccessByteSize - 1) / c.wordBytes)

	for w := firstWord; w <= lastWord; w++ {
		if !c.trans.receivedWords[w] {
			return
		}
	}

	data := make([]byte, req.AccessByteSize)
	copy(data, line.data[offset:offset+req.AccessByteSize])

	c.pendingRsp = mem.DataReadyRspBuilder{}.
		WithSrc(c.topPort.AsRemote()).
		WithDst(req.Src).
		WithRspTo(req.ID).
		WithData(data).
		Build()

	c.trans.criticalServed = true
}

func (c *Comp) finishTransaction(line *cacheLine) {
	defer func() {
		c.trans = nil
		c.state = stateIdle
	}()

	if c.trans.req == nil {
		return
	}

	switch req := c.trans.req.(type) {
	case *mem.ReadReq:
		if c.trans.criticalServed {
			return
		}

		offset := req.Address % c.lineBytes
		data := make([]byte, req.AccessByteSize)
		copy(data, line.data[offset:offset+req.AccessByteSize])

		c.pendingRsp = mem.DataReadyRspBuilder{}.
			WithSrc(c.topPort.AsRemote()).
			WithDst(req.Src).
			WithRspTo(req.ID).
			WithData(data).
			Build()
	case *mem.WriteReq:
		switch {
		case c.trans.clearOnDone:
			// Write-combining flush: the line is gone, only the deferred
			// ack for the completing write remains.
		case c.trans.fillNeeded:
			offset := req.Address % c.lineBytes
			c.applyWrite(line, offset, req.Data, req.DirtyMask)
			line.dirty = true
		default:
			// Full-line write that had to wait for the victim flush.
			copy(line.data, req.Data)
			line.tag = c.trans.tag
			line.valid = true
			line.dirty = true
		}

		c.pendingRsp = mem.WriteDoneRspBuilder{}.
			WithSrc(c.topPort.AsRemote()).
			WithDst(req.Src).
			WithRspTo(req.ID).
			Build()
	}
}
