package sim

// DirectConnection delivers messages to their destinations in the cycle
// after they are sent.
type DirectConnection struct {
	*TickingComponent

	nextPortID int
	ports      []Port
	ends       map[RemotePort]Port
}

// NewDirectConnection creates a new DirectConnection.
func NewDirectConnection(
	name string,
	engine Engine,
	freq Freq,
) *DirectConnection {
	c := new(DirectConnection)
	c.TickingComponent = NewSecondaryTickingComponent(name, engine, freq, c)
	c.ends = make(map[RemotePort]Port)
	return c
}

// PlugIn marks the port as connected to this DirectConnection.
func (c *DirectConnection) PlugIn(port Port) {
	c.Lock()
	defer c.Unlock()

	c.ports = append(c.ports, port)
	c.ends[port.AsRemote()] = port

	port.SetConnection(c)
}

// Unplug is not supported on a DirectConnection.
func (c *DirectConnection) Unplug(_ Port) {
	panic("not implemented")
}

// NotifyAvailable is called by a port to notify that the port can accept
// deliveries again.
func (c *DirectConnection) NotifyAvailable(p Port) {
	for _, port := range c.ports {
		if port == p {
			continue
		}

		port.NotifyAvailable()
	}

	c.TickNow()
}

// NotifySend is called by a port to notify that a message is waiting in its
// outgoing buffer.
func (c *DirectConnection) NotifySend() {
	c.TickNow()
}

// Tick moves messages from outgoing buffers to the incoming buffers of the
// destinations.
func (c *DirectConnection) Tick() bool {
	madeProgress := false

	for i := 0; i < len(c.ports); i++ {
		portID := (i + c.nextPortID) % len(c.ports)
		port := c.ports[portID]
		madeProgress = c.forwardMany(port) || madeProgress
	}

	c.nextPortID = (c.nextPortID + 1) % len(c.ports)

	return madeProgress
}

func (c *DirectConnection) forwardMany(port Port) bool {
	madeProgress := false

	for {
		head := port.PeekOutgoing()
		if head == nil {
			break
		}

		dst, found := c.ends[head.Meta().Dst]
		if !found {
			panic("destination " + string(head.Meta().Dst) +
				" is not plugged into connection " + c.Name())
		}

		err := dst.Deliver(head)
		if err != nil {
			break
		}

		c.InvokeHook(HookCtx{
			Domain: c,
			Pos:    HookPosConnDeliver,
			Item:   head,
		})

		madeProgress = true
		port.RetrieveOutgoing()
	}

	return madeProgress
}
