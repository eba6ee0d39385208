package bus

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/servotree/pkg/l0/clock"
	"github.com/robotalks/servotree/pkg/l0/periph"
)

// Bus is the state of the root side of the bus. It is owned by a single
// loop, only the tick count inside Clock is touched by the timer.
type Bus struct {
	Port   periph.Port
	Clock  *clock.Clock
	Config Config
	Tracer Tracer

	// Modules is the number of enumerated modules.
	Modules int
	// Branch is the branch the first module is attached to.
	Branch periph.Branch

	mode Mode
}

// New creates a Bus on port.
func New(port periph.Port, conf Config) *Bus {
	b := &Bus{
		Port:   port,
		Clock:  clock.New(port, conf.TickPeriod),
		Config: conf,
	}
	if !conf.Topology.IsTree() {
		b.Branch = 1
	}
	return b
}

// Mode returns the current mode.
func (b *Bus) Mode() Mode {
	return b.mode
}

// Offline indicates a peripheral fault has not been recovered.
func (b *Bus) Offline() bool {
	return b.mode == ModeOffline
}

func (b *Bus) resolve(m Mode) Mode {
	if m == ModeTransmit && b.Config.Topology.IsTree() {
		return ModeHostLink
	}
	return m
}

func (b *Bus) rolesOf(m Mode) []periph.Role {
	switch m {
	case ModeHostLink:
		if b.Config.Topology.IsTree() {
			return []periph.Role{periph.RoleHostLink, periph.RoleTransmit}
		}
		return []periph.Role{periph.RoleHostLink}
	case ModeTransmit:
		return []periph.Role{periph.RoleTransmit}
	case ModeReceive:
		return []periph.Role{periph.RoleReceive}
	}
	return periph.AllRoles
}

// Ensure enters m unless the current mode already serves it.
func (b *Bus) Ensure(m Mode) error {
	if b.mode == b.resolve(m) {
		return nil
	}
	return b.Enter(m)
}

// Enter switches the line to mode m. The full transition is always run,
// entering Receive again restarts the receive window.
func (b *Bus) Enter(m Mode) error {
	target := b.resolve(m)
	switch target {
	case ModeHostLink, ModeTransmit, ModeReceive:
	default:
		return fmt.Errorf("invalid target mode %s", target)
	}
	from := b.mode
	err := b.transition(from, target)
	if err != nil {
		b.mode = ModeOffline
		glog.Errorf("enter %s from %s: %v", target, from, err)
		err = fmt.Errorf("%w: %w", ErrOffline, err)
	} else {
		b.mode = target
		glog.V(4).Infof("mode %s -> %s", from, target)
	}
	if b.Tracer != nil {
		b.Tracer.TraceMode(from, b.mode, err)
	}
	return err
}

func (b *Bus) transition(from, to Mode) error {
	if err := b.Port.SetBusDriven(false); err != nil {
		return &PeripheralError{Op: "release line", Err: err}
	}
	for _, role := range b.rolesOf(from) {
		if err := b.Port.Deconfigure(role); err != nil {
			return &PeripheralError{Op: "deconfigure " + role.String(), Err: err}
		}
	}
	for _, role := range b.rolesOf(to) {
		if err := b.Port.Configure(role); err != nil {
			return &PeripheralError{Op: "configure " + role.String(), Err: err}
		}
	}
	var err error
	if to == ModeReceive {
		err = b.Clock.Start(b.Config.RxTimeoutTicks)
	} else {
		err = b.Clock.Sleep(b.Config.SettleTicks)
	}
	if err != nil {
		return &PeripheralError{Op: "timer", Err: err}
	}
	if err := b.Port.SetBusDriven(true); err != nil {
		return &PeripheralError{Op: "engage line", Err: err}
	}
	return nil
}

// Recover tries to bring an offline bus back to HostLink.
func (b *Bus) Recover() error {
	if b.mode != ModeOffline {
		return nil
	}
	glog.Info("recovering bus")
	return b.Enter(ModeHostLink)
}

func (b *Bus) fault(op string, err error) error {
	perr := &PeripheralError{Op: op, Err: err}
	from := b.mode
	b.mode = ModeOffline
	glog.Errorf("bus fault: %v", perr)
	if b.Tracer != nil {
		b.Tracer.TraceMode(from, b.mode, perr)
	}
	return fmt.Errorf("%w: %w", ErrOffline, perr)
}
