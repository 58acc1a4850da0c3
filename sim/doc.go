// Package sim provides the discrete-event kernel that all simulated memory
// components run on. It defines virtual time, events, the serial engine,
// ports, connections, and the ticking-component pattern.
package sim
