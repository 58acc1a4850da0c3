package sim

// SendError marks a failed send or delivery.
type SendError struct{}

// NewSendError creates a SendError.
func NewSendError() *SendError {
	return new(SendError)
}

// A Connection is responsible for delivering messages to their
// destinations.
type Connection interface {
	Named
	Hookable

	PlugIn(port Port)
	Unplug(port Port)

	// NotifyAvailable is called by a port to notify that the port can
	// accept deliveries again.
	NotifyAvailable(port Port)

	// NotifySend is called by a port to notify that there is a message in
	// its outgoing buffer.
	NotifySend()
}

// HookPosConnDeliver marks a connection delivering a message.
var HookPosConnDeliver = &HookPos{Name: "Conn Deliver"}
