package sim

// A Simulation keeps track of the components and ports that participate in
// one simulated system.
type Simulation struct {
	engine        Engine
	components    []Component
	compNameIndex map[string]int
	ports         []Port
	portNameIndex map[string]int
}

// NewSimulation creates a new simulation around the given engine.
func NewSimulation(engine Engine) *Simulation {
	return &Simulation{
		engine:        engine,
		compNameIndex: make(map[string]int),
		portNameIndex: make(map[string]int),
	}
}

// GetEngine returns the engine that drives the simulation.
func (s *Simulation) GetEngine() Engine {
	return s.engine
}

// RegisterComponent registers a component and all its ports.
func (s *Simulation) RegisterComponent(c Component) {
	compName := c.Name()
	if _, found := s.compNameIndex[compName]; found {
		panic("component " + compName + " already registered")
	}

	s.components = append(s.components, c)
	s.compNameIndex[compName] = len(s.components) - 1

	for _, p := range c.Ports() {
		s.registerPort(p)
	}
}

func (s *Simulation) registerPort(p Port) {
	portName := p.Name()
	if _, found := s.portNameIndex[portName]; found {
		panic("port " + portName + " already registered")
	}

	s.ports = append(s.ports, p)
	s.portNameIndex[portName] = len(s.ports) - 1
}

// Components returns all the registered components.
func (s *Simulation) Components() []Component {
	return s.components
}

// GetComponentByName returns the component with the given name, or nil if
// no such component is registered.
func (s *Simulation) GetComponentByName(name string) Component {
	index, found := s.compNameIndex[name]
	if !found {
		return nil
	}

	return s.components[index]
}

// GetPortByName returns the port with the given name, or nil if no such
// port is registered.
func (s *Simulation) GetPortByName(name string) Port {
	index, found := s.portNameIndex[name]
	if !found {
		return nil
	}

	return s.ports[index]
}
