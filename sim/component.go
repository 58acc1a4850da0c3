package sim

import "sync"

// A Named object is an object that has a name.
type Named interface {
	Name() string
}

// A Component is an element that is simulated. It owns ports, handles
// events, and reacts to message arrivals.
type Component interface {
	Named
	Handler
	Hookable
	PortOwner

	NotifyRecv(port Port)
	NotifyPortFree(port Port)
}

// ComponentBase provides the functions common to all components.
type ComponentBase struct {
	HookableBase
	*PortOwnerBase
	sync.Mutex

	name string
}

// NewComponentBase creates a new ComponentBase.
func NewComponentBase(name string) *ComponentBase {
	NameMustBeValid(name)

	c := new(ComponentBase)
	c.name = name
	c.PortOwnerBase = NewPortOwnerBase()
	return c
}

// Name returns the name of the component.
func (c *ComponentBase) Name() string {
	return c.name
}
