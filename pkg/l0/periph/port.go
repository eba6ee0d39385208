// Package periph defines the peripheral contract the bus core runs on.
package periph

import "time"

// Branch is a downstream receive port, numbered from 1.
type Branch int

// MaxBranches is the number of receivers on a tree root.
const MaxBranches = 4

// NoBranch means no branch has been identified.
const NoBranch Branch = 0

// Char is the character reported to the host for the branch.
func (b Branch) Char() byte {
	if b < 1 || b > 9 {
		return '0'
	}
	return '0' + byte(b)
}

// Role is a peripheral block configuration.
type Role int

// Roles.
const (
	// RoleHostLink is the host terminal UART.
	RoleHostLink Role = iota
	// RoleTransmit is the downstream transmitter.
	RoleTransmit
	// RoleReceive is the set of branch receivers.
	RoleReceive
)

// AllRoles lists every role, deconfigured together at boot.
var AllRoles = []Role{RoleHostLink, RoleTransmit, RoleReceive}

// String implements fmt.Stringer.
func (r Role) String() string {
	switch r {
	case RoleHostLink:
		return "hostlink"
	case RoleTransmit:
		return "transmit"
	case RoleReceive:
		return "receive"
	}
	return "unknown"
}

// Timer is a periodic tick source.
type Timer interface {
	// SetTickHandler installs the callback fired on every tick while armed.
	// It may be called from interrupt or goroutine context.
	SetTickHandler(func())
	// ArmTimer starts ticking with the given period.
	ArmTimer(period time.Duration) error
	// DisarmTimer stops ticking.
	DisarmTimer() error
}

// Port is the half-duplex line with its receivers, transmitter and timer.
type Port interface {
	Timer

	// PollByte returns a received byte of branch without blocking.
	PollByte(branch Branch) (byte, bool)
	// SendByte enqueues a byte on the transmitter.
	SendByte(b byte) error
	// TransmitComplete reports all enqueued bytes are on the wire.
	TransmitComplete() bool
	// SetBusDriven connects to (true) or releases (false) the shared line.
	SetBusDriven(driven bool) error
	// Configure loads and starts the block serving role.
	Configure(role Role) error
	// Deconfigure stops and unloads the block serving role.
	Deconfigure(role Role) error
}

// Idler is optionally implemented by a Timer to learn a wait loop has
// nothing to do in the current iteration.
type Idler interface {
	Idle()
}
