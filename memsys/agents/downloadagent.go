package agents

import (
	"github.com/coreforge/memsim/mem"
	"github.com/coreforge/memsim/sim"
)

// A DownloadAgent streams one ROM image, word by word, into the download
// path. It holds each word until the loader acknowledges it.
type DownloadAgent struct {
	*sim.TickingComponent

	memPort sim.Port

	Dst         sim.RemotePort
	WordBytes   uint64
	BaseAddress uint64

	image   []byte
	offset  uint64
	pending *mem.WriteReq

	// WordSent is called after each acknowledged word, when set.
	WordSent func()
}

// NewDownloadAgent creates an agent that downloads the given image starting
// at the given address.
func NewDownloadAgent(
	name string,
	engine sim.Engine,
	freq sim.Freq,
	dst sim.RemotePort,
	wordBytes uint64,
	baseAddress uint64,
	image []byte,
) *DownloadAgent {
	if uint64(len(image))%wordBytes != 0 {
		panic("image size must be a multiple of the word size")
	}

	a := &DownloadAgent{
		Dst:         dst,
		WordBytes:   wordBytes,
		BaseAddress: baseAddress,
		image:       image,
	}
	a.TickingComponent = sim.NewTickingComponent(name, engine, freq, a)

	a.memPort = sim.NewPort(a, 1, 1, name+".MemPort")
	a.AddPort("Mem", a.memPort)

	return a
}

// MemPort returns the port the agent downloads through.
func (a *DownloadAgent) MemPort() sim.Port {
	return a.memPort
}

// Done reports whether the whole image has been durably absorbed.
func (a *DownloadAgent) Done() bool {
	return a.offset == uint64(len(a.image)) && a.pending == nil
}

// WordsTotal returns the number of words in the image.
func (a *DownloadAgent) WordsTotal() uint64 {
	return uint64(len(a.image)) / a.WordBytes
}

// Tick updates the state of the agent.
func (a *DownloadAgent) Tick() bool {
	madeProgress := a.processAck()
	madeProgress = a.sendNextWord() || madeProgress

	return madeProgress
}

func (a *DownloadAgent) processAck() bool {
	msg := a.memPort.RetrieveIncoming()
	if msg == nil {
		return false
	}

	done, ok := msg.(*mem.WriteDoneRsp)
	if !ok || a.pending == nil || a.pending.ID != done.RespondTo {
		panic("download agent received an unexpected message")
	}

	a.pending = nil
	a.offset += a.WordBytes

	if a.WordSent != nil {
		a.WordSent()
	}

	return true
}

func (a *DownloadAgent) sendNextWord() bool {
	if a.pending != nil || a.offset == uint64(len(a.image)) {
		return false
	}

	req := mem.WriteReqBuilder{}.
		WithSrc(a.memPort.AsRemote()).
		WithDst(a.Dst).
		WithAddress(a.BaseAddress + a.offset).
		WithData(a.image[a.offset : a.offset+a.WordBytes]).
		Build()

	if err := a.memPort.Send(req); err != nil {
		return false
	}

	a.pending = req

	return true
}
