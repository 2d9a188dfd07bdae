// Package port implements the Port entity and its one-way state machine
// (spec.md §3, §4.10): a named port with an operator class that fixes its
// direction, advancing from Declared to either Connected or Disconnected
// once the communicator's connect() has run.
package port

import "go.uber.org/atomic"

// Operator is one of the MUSCLE3 submodel phases, or a pseudo-port used
// for settings propagation (spec.md §6 "Operator classes").
type Operator int

const (
	// FInit is the pre-compute input phase.
	FInit Operator = iota
	// OI is an intermediate output.
	OI
	// S is a state-update input.
	S
	// OF is a final output.
	OF
)

func (o Operator) String() string {
	switch o {
	case FInit:
		return "F_INIT"
	case OI:
		return "O_I"
	case S:
		return "S"
	case OF:
		return "O_F"
	default:
		return "UNKNOWN"
	}
}

// Direction is fixed by a Port's Operator.
type Direction int

const (
	// In ports receive messages.
	In Direction = iota
	// Out ports send messages.
	Out
)

func (d Direction) String() string {
	if d == In {
		return "in"
	}
	return "out"
}

// DirectionOf returns the direction implied by an operator class.
// F_INIT and S are inputs; O_I and O_F are outputs.
func DirectionOf(op Operator) Direction {
	switch op {
	case FInit, S:
		return In
	case OI, OF:
		return Out
	default:
		return In
	}
}

// Pseudo-port names carrying settings rather than user data (spec.md §3,
// §4.8).
const (
	SettingsIn   = "muscle_settings_in"
	ParametersIn = "muscle_parameters_in"
)

// State is a Port's position in its one-way state machine (spec.md §4.10).
type State int

const (
	// Declared is the initial state, before connect() has run.
	Declared State = iota
	// Connected means a peer port was found during connect().
	Connected
	// Disconnected means connect() ran but found no peer for this port.
	Disconnected
)

func (s State) String() string {
	switch s {
	case Declared:
		return "declared"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Port is a named port on a compute element, together with the one-way
// state it has reached and a latch recording whether its "disconnected
// output" warning has already fired (DESIGN NOTES §9).
type Port struct {
	Name     string
	Operator Operator
	state    atomic.Int32
	warned   atomic.Bool
}

// New creates a Port in the Declared state.
func New(name string, op Operator) *Port {
	p := &Port{Name: name, Operator: op}
	p.state.Store(int32(Declared))
	return p
}

// Direction returns the direction fixed by the port's operator class.
func (p *Port) Direction() Direction {
	return DirectionOf(p.Operator)
}

// State returns the port's current state-machine state.
func (p *Port) State() State {
	return State(p.state.Load())
}

// MarkConnected transitions Declared -> Connected. It is idempotent.
func (p *Port) MarkConnected() {
	p.state.CAS(int32(Declared), int32(Connected))
}

// MarkDisconnected transitions Declared -> Disconnected. It is idempotent.
func (p *Port) MarkDisconnected() {
	p.state.CAS(int32(Declared), int32(Disconnected))
}

// IsConnected reports whether the port reached the Connected state.
func (p *Port) IsConnected() bool {
	return p.State() == Connected
}

// WarnOnce returns true the first time it is called on this port, and
// false on every subsequent call — used to emit the "sent on disconnected
// port" warning exactly once per port per run (DESIGN NOTES §9, Open
// Question on silent drops).
func (p *Port) WarnOnce() bool {
	return p.warned.CAS(false, true)
}
