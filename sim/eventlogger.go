package sim

import (
	"log"
	"reflect"
)

// EventLogger is a hook that prints the information of each handled event.
type EventLogger struct {
	LogHookBase
}

// NewEventLogger returns a new EventLogger that writes into the given
// logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	h := new(EventLogger)
	h.Logger = logger
	return h
}

// Func writes the event information into the logger.
func (h *EventLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	comp, ok := evt.Handler().(Component)
	if ok {
		h.Printf("%.10f, %s -> %s",
			evt.Time(), reflect.TypeOf(evt), comp.Name())
	} else {
		h.Printf("%.10f, %s", evt.Time(), reflect.TypeOf(evt))
	}
}

// PortMsgLogger is a hook that logs the messages that pass through a port.
type PortMsgLogger struct {
	LogHookBase
	TimeTeller
}

// NewPortMsgLogger returns a new PortMsgLogger.
func NewPortMsgLogger(
	logger *log.Logger,
	timeTeller TimeTeller,
) *PortMsgLogger {
	h := new(PortMsgLogger)
	h.Logger = logger
	h.TimeTeller = timeTeller
	return h
}

// Func writes the message information into the logger.
func (h *PortMsgLogger) Func(ctx HookCtx) {
	msg, ok := ctx.Item.(Msg)
	if !ok {
		return
	}

	h.Printf("%.10f, %s, %s, %s, %s, %s\n",
		h.CurrentTime(),
		ctx.Domain.(Port).Name(),
		ctx.Pos.Name,
		reflect.TypeOf(msg),
		msg.Meta().Src,
		msg.Meta().ID)
}
