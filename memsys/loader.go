package memsys

import (
	"log"
	"reflect"

	"github.com/coreforge/memsim/mem"
	"github.com/coreforge/memsim/sim"
)

// Loader fans one download word stream into two write-combining caches, one
// per backend. It holds the current word until both caches acknowledge it,
// so a master behind the loader never advances before both backends have
// durably absorbed the word.
type Loader struct {
	*sim.TickingComponent

	topPort    sim.Port
	bottomPort sim.Port

	targets [2]sim.RemotePort

	current    *mem.WriteReq
	copyIDs    [2]string
	copySent   [2]bool
	copyAcked  [2]bool
	pendingRsp *mem.WriteDoneRsp
}

// NewLoader creates a loader that duplicates writes toward the two given
// cache top ports.
func NewLoader(
	name string,
	engine sim.Engine,
	freq sim.Freq,
	targets [2]sim.RemotePort,
) *Loader {
	l := &Loader{targets: targets}
	l.TickingComponent = sim.NewTickingComponent(name, engine, freq, l)

	// Same single-entry top buffer as a cache: the master stalls while the
	// current word is still in flight.
	l.topPort = sim.NewPort(l, 1, 1, name+".TopPort")
	l.bottomPort = sim.NewPort(l, 2, 2, name+".BottomPort")
	l.AddPort("Top", l.topPort)
	l.AddPort("Bottom", l.bottomPort)

	return l
}

// TopPort returns the port that accepts the download write stream.
func (l *Loader) TopPort() sim.Port {
	return l.topPort
}

// BottomPort returns the port that talks to the two download caches.
func (l *Loader) BottomPort() sim.Port {
	return l.bottomPort
}

// Tick updates the state of the loader.
func (l *Loader) Tick() bool {
	madeProgress := l.sendPendingRsp()
	madeProgress = l.collectAcks() || madeProgress
	madeProgress = l.sendCopies() || madeProgress
	madeProgress = l.completeWord() || madeProgress
	madeProgress = l.acceptNext() || madeProgress

	return madeProgress
}

func (l *Loader) sendPendingRsp() bool {
	if l.pendingRsp == nil {
		return false
	}

	if err := l.topPort.Send(l.pendingRsp); err != nil {
		return false
	}

	l.pendingRsp = nil

	return true
}

func (l *Loader) collectAcks() bool {
	msg := l.bottomPort.PeekIncoming()
	if msg == nil {
		return false
	}

	done, ok := msg.(*mem.WriteDoneRsp)
	if !ok {
		log.Panicf("loader cannot handle message of type %s",
			reflect.TypeOf(msg))
	}

	matched := false
	for i := range l.copyIDs {
		if l.copySent[i] && !l.copyAcked[i] && l.copyIDs[i] == done.RespondTo {
			l.copyAcked[i] = true
			matched = true
			break
		}
	}

	if !matched {
		panic("loader received an ack for an unknown write")
	}

	l.bottomPort.RetrieveIncoming()

	return true
}

func (l *Loader) sendCopies() bool {
	if l.current == nil {
		return false
	}

	madeProgress := false

	for i, target := range l.targets {
		if l.copySent[i] {
			continue
		}

		dup := mem.WriteReqBuilder{}.
			WithSrc(l.bottomPort.AsRemote()).
			WithDst(target).
			WithAddress(l.current.Address).
			WithData(l.current.Data).
			WithDirtyMask(l.current.DirtyMask).
			Build()

		if err := l.bottomPort.Send(dup); err != nil {
			continue
		}

		l.copyIDs[i] = dup.ID
		l.copySent[i] = true
		madeProgress = true
	}

	return madeProgress
}

// completeWord releases the master only after both caches acked the current
// word. The combined not-ready seen by the master is the OR of both cache
// busy signals.
func (l *Loader) completeWord() bool {
	if l.current == nil {
		return false
	}

	for i := range l.copyAcked {
		if !l.copyAcked[i] {
			return false
		}
	}

	l.pendingRsp = mem.WriteDoneRspBuilder{}.
		WithSrc(l.topPort.AsRemote()).
		WithDst(l.current.Src).
		WithRspTo(l.current.ID).
		Build()

	l.current = nil
	for i := range l.copySent {
		l.copySent[i] = false
		l.copyAcked[i] = false
		l.copyIDs[i] = ""
	}

	return true
}

func (l *Loader) acceptNext() bool {
	if l.current != nil || l.pendingRsp != nil {
		return false
	}

	msg := l.topPort.PeekIncoming()
	if msg == nil {
		return false
	}

	req, ok := msg.(*mem.WriteReq)
	if !ok {
		panic("the download path is write only")
	}

	l.current = req
	l.topPort.RetrieveIncoming()

	return true
}
