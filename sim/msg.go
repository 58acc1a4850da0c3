package sim

// A RemotePort is the name of a port on another component.
type RemotePort string

// A Msg is a piece of information transferred between components.
type Msg interface {
	Meta() *MsgMeta
}

// MsgMeta contains the meta data attached to every message.
type MsgMeta struct {
	ID           string
	Src, Dst     RemotePort
	TrafficClass string
	TrafficBytes int
}

// Rsp is a message that indicates the completion of a request.
type Rsp interface {
	Msg
	GetRspTo() string
}
