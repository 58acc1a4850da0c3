package sim

// TimeTeller can be used to get the current virtual time.
type TimeTeller interface {
	CurrentTime() VTimeInSec
}

// EventScheduler can be used to schedule future events.
type EventScheduler interface {
	Schedule(e Event)
}

// A SimulationEndHandler is called after the simulation ends.
type SimulationEndHandler interface {
	Handle(now VTimeInSec)
}

// An Engine drives a discrete-event simulation.
type Engine interface {
	Hookable
	TimeTeller
	EventScheduler

	// Run processes all the scheduled events until none is left.
	Run() error

	// Pause prevents the engine from triggering more events until Continue
	// is called.
	Pause()

	// Continue resumes a paused engine.
	Continue()

	// RegisterSimulationEndHandler registers a handler to be invoked after
	// the simulation finishes.
	RegisterSimulationEndHandler(handler SimulationEndHandler)

	// Finished invokes all the registered SimulationEndHandlers.
	Finished()
}
