// Package trace records the memory traffic that passes through ports into a
// recording database for post-run analysis.
package trace

import (
	"reflect"

	"github.com/coreforge/memsim/datarecording"
	"github.com/coreforge/memsim/mem"
	"github.com/coreforge/memsim/sim"
)

// An AccessRecord is one row of the trace table: one message observed at
// one port.
type AccessRecord struct {
	Time    float64
	Port    string
	MsgType string
	MsgID   string
	Kind    string
	Address uint64
	Bytes   uint64
}

// Tracer is a port hook that records every arriving request and response.
type Tracer struct {
	timeTeller sim.TimeTeller
	recorder   datarecording.DataRecorder
	tableName  string
}

// NewTracer creates a tracer that writes into the given recorder.
func NewTracer(
	recorder datarecording.DataRecorder,
	timeTeller sim.TimeTeller,
) *Tracer {
	t := &Tracer{
		timeTeller: timeTeller,
		recorder:   recorder,
		tableName:  "mem_trace",
	}

	recorder.CreateTable(t.tableName, AccessRecord{})

	return t
}

// AttachTo registers the tracer on a port.
func (t *Tracer) AttachTo(port sim.Port) {
	port.AcceptHook(t)
}

// Func records the message when it arrives at the port.
func (t *Tracer) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosPortMsgRecvd {
		return
	}

	msg, ok := ctx.Item.(sim.Msg)
	if !ok {
		return
	}

	record := AccessRecord{
		Time:    float64(t.timeTeller.CurrentTime()),
		Port:    ctx.Domain.(sim.Port).Name(),
		MsgType: reflect.TypeOf(msg).Elem().Name(),
		MsgID:   msg.Meta().ID,
	}

	switch msg := msg.(type) {
	case *mem.ReadReq:
		record.Kind = "read"
		record.Address = msg.Address
		record.Bytes = msg.AccessByteSize
	case *mem.WriteReq:
		record.Kind = "write"
		record.Address = msg.Address
		record.Bytes = uint64(len(msg.Data))
	case *mem.BurstReadReq:
		record.Kind = "burst-read"
		record.Address = msg.BaseAddress
		record.Bytes = msg.GetByteSize()
	case *mem.BurstWriteReq:
		record.Kind = "burst-write"
		record.Address = msg.BaseAddress
		record.Bytes = msg.GetByteSize()
	case *mem.BurstBeat:
		record.Kind = "beat"
		record.Bytes = uint64(len(msg.Data))
	case *mem.DataReadyRsp:
		record.Kind = "data-ready"
		record.Bytes = uint64(len(msg.Data))
	case *mem.WriteDoneRsp:
		record.Kind = "write-done"
	default:
		record.Kind = "other"
	}

	t.recorder.InsertData(t.tableName, record)
}
