package sim

type inFlightMsg struct {
	msg       Msg
	deliverAt VTimeInSec
}

// FixedLatencyConnection delivers every message a fixed number of cycles
// after it is sent, counted in the receiver's clock domain. It is the
// hand-off stage for values that cross clock domains: a producer in one
// domain never becomes visible to a consumer in another domain within the
// same cycle.
type FixedLatencyConnection struct {
	*TickingComponent

	latency int
	ports   []Port
	ends    map[RemotePort]Port

	// in-flight messages in send order; delivery never reorders
	pipeline []inFlightMsg
}

// NewFixedLatencyConnection creates a connection that delivers messages
// after the given number of cycles of the given frequency.
func NewFixedLatencyConnection(
	name string,
	engine Engine,
	freq Freq,
	latency int,
) *FixedLatencyConnection {
	if latency < 1 {
		panic("fixed latency connection latency must be at least 1 cycle")
	}

	c := new(FixedLatencyConnection)
	c.TickingComponent = NewSecondaryTickingComponent(name, engine, freq, c)
	c.latency = latency
	c.ends = make(map[RemotePort]Port)

	return c
}

// PlugIn marks the port as connected to this connection.
func (c *FixedLatencyConnection) PlugIn(port Port) {
	c.Lock()
	defer c.Unlock()

	c.ports = append(c.ports, port)
	c.ends[port.AsRemote()] = port

	port.SetConnection(c)
}

// Unplug is not supported on a FixedLatencyConnection.
func (c *FixedLatencyConnection) Unplug(_ Port) {
	panic("not implemented")
}

// NotifyAvailable restarts delivery attempts when a destination port frees
// up.
func (c *FixedLatencyConnection) NotifyAvailable(_ Port) {
	c.TickNow()
}

// NotifySend is called by a port to notify that a message is waiting in its
// outgoing buffer.
func (c *FixedLatencyConnection) NotifySend() {
	c.TickNow()
}

// Tick accepts newly sent messages into the relay pipeline and delivers the
// messages whose latency has elapsed.
func (c *FixedLatencyConnection) Tick() bool {
	madeProgress := c.deliverDue()
	madeProgress = c.acceptNew() || madeProgress

	// Keep ticking while messages wait out their latency.
	if len(c.pipeline) > 0 {
		return true
	}

	return madeProgress
}

func (c *FixedLatencyConnection) acceptNew() bool {
	now := c.CurrentTime()
	madeProgress := false

	for _, port := range c.ports {
		for {
			head := port.PeekOutgoing()
			if head == nil {
				break
			}

			if _, found := c.ends[head.Meta().Dst]; !found {
				panic("destination " + string(head.Meta().Dst) +
					" is not plugged into connection " + c.Name())
			}

			c.pipeline = append(c.pipeline, inFlightMsg{
				msg:       head,
				deliverAt: c.Freq.NCyclesLater(c.latency, now),
			})

			port.RetrieveOutgoing()
			madeProgress = true
		}
	}

	return madeProgress
}

func (c *FixedLatencyConnection) deliverDue() bool {
	now := c.CurrentTime()
	madeProgress := false

	for len(c.pipeline) > 0 {
		head := c.pipeline[0]
		if head.deliverAt > now {
			break
		}

		dst := c.ends[head.msg.Meta().Dst]
		if err := dst.Deliver(head.msg); err != nil {
			break
		}

		c.InvokeHook(HookCtx{
			Domain: c,
			Pos:    HookPosConnDeliver,
			Item:   head.msg,
		})

		c.pipeline = c.pipeline[1:]
		madeProgress = true
	}

	return madeProgress
}
