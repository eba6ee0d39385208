package bus

import (
	"time"

	"github.com/robotalks/servotree/pkg/l0/periph"
)

// Mode is the role the shared line is in.
type Mode int

// Modes.
const (
	// ModeUnknown is the boot state, nothing is configured.
	ModeUnknown Mode = iota
	// ModeHostLink talks to the host. In tree topology it also transmits.
	ModeHostLink
	// ModeTransmit drives the line downstream.
	ModeTransmit
	// ModeReceive listens on every branch.
	ModeReceive
	// ModeOffline is entered on a peripheral fault.
	ModeOffline
)

var modeNames = []string{"unknown", "hostlink", "transmit", "receive", "offline"}

// String implements fmt.Stringer.
func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return "invalid"
	}
	return modeNames[m]
}

// Topology describes the shape of the bus below the root.
type Topology struct {
	// Branches is the number of receive branches, 1 or periph.MaxBranches.
	Branches int `yaml:"branches"`
	// EndMarkers is the number of END bytes terminating a control frame.
	EndMarkers int `yaml:"end_markers"`
}

// Predefined topologies.
var (
	TreeTopology   = Topology{Branches: periph.MaxBranches, EndMarkers: 3}
	SingleTopology = Topology{Branches: 1, EndMarkers: 1}
)

// IsTree indicates there are multiple branches.
func (t Topology) IsTree() bool {
	return t.Branches > 1
}

// Config defines the timing of the bus.
type Config struct {
	Topology Topology `yaml:"topology"`
	// TickPeriod is the timer period, all *Ticks values count it.
	TickPeriod time.Duration `yaml:"tick_period"`
	// RxTimeoutTicks is the length of a receive window.
	RxTimeoutTicks uint32 `yaml:"rx_timeout_ticks"`
	// SettleTicks is waited after entering a transmitting mode.
	SettleTicks uint32 `yaml:"settle_ticks"`
	// TxGuardTicks is waited after a transmit completes.
	TxGuardTicks uint32 `yaml:"tx_guard_ticks"`
	// TxTimeoutTicks bounds the wait for transmit complete.
	TxTimeoutTicks uint32 `yaml:"tx_timeout_ticks"`
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		Topology:       TreeTopology,
		TickPeriod:     time.Millisecond,
		RxTimeoutTicks: 5,
		SettleTicks:    1,
		TxGuardTicks:   1,
		TxTimeoutTicks: 50,
	}
}

// Direction is the direction of a traced frame.
type Direction int

// Directions.
const (
	DirOut Direction = iota
	DirIn
)

func (d Direction) String() string {
	if d == DirIn {
		return "in"
	}
	return "out"
}

// Tracer observes the bus.
type Tracer interface {
	TraceFrame(dir Direction, branch periph.Branch, data []byte)
	TraceMode(from, to Mode, err error)
}
