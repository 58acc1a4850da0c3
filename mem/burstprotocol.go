package mem

import (
	"github.com/coreforge/memsim/sim"
)

// A BurstReadReq asks a backend for a full burst of words. The backend
// answers with one BurstBeat per word.
type BurstReadReq struct {
	sim.MsgMeta

	BaseAddress uint64
	WordBytes   uint64
	WordCount   int

	// Wrap requests critical-word-first beat ordering: the backend delivers
	// the beat holding CriticalWord first, then the remaining beats in
	// rotated order. Beats always carry their natural word index.
	Wrap         bool
	CriticalWord int
}

// Meta returns the message meta data.
func (r *BurstReadReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// GetAddress returns the burst-aligned base address.
func (r *BurstReadReq) GetAddress() uint64 {
	return r.BaseAddress
}

// GetByteSize returns the total number of bytes the burst transfers.
func (r *BurstReadReq) GetByteSize() uint64 {
	return r.WordBytes * uint64(r.WordCount)
}

// BurstReadReqBuilder can build burst read requests.
type BurstReadReqBuilder struct {
	src, dst     sim.RemotePort
	baseAddress  uint64
	wordBytes    uint64
	wordCount    int
	wrap         bool
	criticalWord int
}

// WithSrc sets the source of the request to build.
func (b BurstReadReqBuilder) WithSrc(src sim.RemotePort) BurstReadReqBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the request to build.
func (b BurstReadReqBuilder) WithDst(dst sim.RemotePort) BurstReadReqBuilder {
	b.dst = dst
	return b
}

// WithBaseAddress sets the burst-aligned base address.
func (b BurstReadReqBuilder) WithBaseAddress(addr uint64) BurstReadReqBuilder {
	b.baseAddress = addr
	return b
}

// WithWordBytes sets the size of each burst word.
func (b BurstReadReqBuilder) WithWordBytes(wordBytes uint64) BurstReadReqBuilder {
	b.wordBytes = wordBytes
	return b
}

// WithWordCount sets the number of words in the burst.
func (b BurstReadReqBuilder) WithWordCount(wordCount int) BurstReadReqBuilder {
	b.wordCount = wordCount
	return b
}

// WithWrap requests critical-word-first ordering starting at the given word
// index.
func (b BurstReadReqBuilder) WithWrap(criticalWord int) BurstReadReqBuilder {
	b.wrap = true
	b.criticalWord = criticalWord
	return b
}

// Build creates a new BurstReadReq.
func (b BurstReadReqBuilder) Build() *BurstReadReq {
	r := &BurstReadReq{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.TrafficBytes = accessReqByteOverhead
	r.BaseAddress = b.baseAddress
	r.WordBytes = b.wordBytes
	r.WordCount = b.wordCount
	r.Wrap = b.wrap
	r.CriticalWord = b.criticalWord

	return r
}

// A BurstWriteReq writes a full burst of words to a backend. Words whose
// bytes are all clear in the dirty mask are skipped, which allows flushing
// partially filled lines.
type BurstWriteReq struct {
	sim.MsgMeta

	BaseAddress uint64
	WordBytes   uint64
	Data        []byte
	DirtyMask   []bool
}

// Meta returns the message meta data.
func (r *BurstWriteReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// GetAddress returns the burst-aligned base address.
func (r *BurstWriteReq) GetAddress() uint64 {
	return r.BaseAddress
}

// GetByteSize returns the total number of bytes the burst transfers.
func (r *BurstWriteReq) GetByteSize() uint64 {
	return uint64(len(r.Data))
}

// WordCount returns the number of words in the burst.
func (r *BurstWriteReq) WordCount() int {
	return len(r.Data) / int(r.WordBytes)
}

// BurstWriteReqBuilder can build burst write requests.
type BurstWriteReqBuilder struct {
	src, dst    sim.RemotePort
	baseAddress uint64
	wordBytes   uint64
	data        []byte
	dirtyMask   []bool
}

// WithSrc sets the source of the request to build.
func (b BurstWriteReqBuilder) WithSrc(src sim.RemotePort) BurstWriteReqBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the request to build.
func (b BurstWriteReqBuilder) WithDst(dst sim.RemotePort) BurstWriteReqBuilder {
	b.dst = dst
	return b
}

// WithBaseAddress sets the burst-aligned base address.
func (b BurstWriteReqBuilder) WithBaseAddress(addr uint64) BurstWriteReqBuilder {
	b.baseAddress = addr
	return b
}

// WithWordBytes sets the size of each burst word.
func (b BurstWriteReqBuilder) WithWordBytes(wordBytes uint64) BurstWriteReqBuilder {
	b.wordBytes = wordBytes
	return b
}

// WithData sets the data of the request to build.
func (b BurstWriteReqBuilder) WithData(data []byte) BurstWriteReqBuilder {
	b.data = data
	return b
}

// WithDirtyMask sets the per-byte mask of the request to build. A nil mask
// writes all the bytes.
func (b BurstWriteReqBuilder) WithDirtyMask(mask []bool) BurstWriteReqBuilder {
	b.dirtyMask = mask
	return b
}

// Build creates a new BurstWriteReq.
func (b BurstWriteReqBuilder) Build() *BurstWriteReq {
	r := &BurstWriteReq{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.TrafficBytes = len(b.data) + accessReqByteOverhead
	r.BaseAddress = b.baseAddress
	r.WordBytes = b.wordBytes
	r.Data = b.data
	r.DirtyMask = b.dirtyMask

	return r
}

// A BurstBeat carries one word of a burst read. The backend sends one beat
// per cycle. WordIndex is the natural position of the word within the
// burst, regardless of the beat delivery order.
type BurstBeat struct {
	sim.MsgMeta

	RespondTo string
	WordIndex int
	Data      []byte
	Last      bool
}

// Meta returns the message meta data.
func (r *BurstBeat) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// GetRspTo returns the ID of the burst read that the beat belongs to.
func (r *BurstBeat) GetRspTo() string {
	return r.RespondTo
}

// BurstBeatBuilder can build burst beats.
type BurstBeatBuilder struct {
	src, dst  sim.RemotePort
	rspTo     string
	wordIndex int
	data      []byte
	last      bool
}

// WithSrc sets the source of the beat to build.
func (b BurstBeatBuilder) WithSrc(src sim.RemotePort) BurstBeatBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the beat to build.
func (b BurstBeatBuilder) WithDst(dst sim.RemotePort) BurstBeatBuilder {
	b.dst = dst
	return b
}

// WithRspTo sets the ID of the burst read that the beat belongs to.
func (b BurstBeatBuilder) WithRspTo(id string) BurstBeatBuilder {
	b.rspTo = id
	return b
}

// WithWordIndex sets the natural word position of the beat.
func (b BurstBeatBuilder) WithWordIndex(wordIndex int) BurstBeatBuilder {
	b.wordIndex = wordIndex
	return b
}

// WithData sets the data of the beat to build.
func (b BurstBeatBuilder) WithData(data []byte) BurstBeatBuilder {
	b.data = data
	return b
}

// Last marks the beat as the final beat of the burst.
func (b BurstBeatBuilder) Last() BurstBeatBuilder {
	b.last = true
	return b
}

// Build creates a new BurstBeat.
func (b BurstBeatBuilder) Build() *BurstBeat {
	r := &BurstBeat{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.TrafficBytes = len(b.data) + accessRspByteOverhead
	r.RespondTo = b.rspTo
	r.WordIndex = b.wordIndex
	r.Data = b.data
	r.Last = b.last

	return r
}
