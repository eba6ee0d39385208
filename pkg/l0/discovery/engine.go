// Package discovery enumerates the modules attached below the root and
// assigns each of them an address.
package discovery

import (
	"errors"

	"github.com/golang/glog"

	"github.com/robotalks/servotree/pkg/l0/bus"
	"github.com/robotalks/servotree/pkg/l0/frame"
	"github.com/robotalks/servotree/pkg/l0/periph"
)

// ErrNoChild indicates no branch answered within the listen attempts.
var ErrNoChild = errors.New("no child answered")

// Config defines the limits of an enumeration pass.
type Config struct {
	// InitWaitTicks is waited after a silent window while no module is known.
	InitWaitTicks uint32 `yaml:"init_wait_ticks"`
	// MaxTimeouts is the number of consecutive silent windows ending a pass.
	MaxTimeouts int `yaml:"max_timeouts"`
	// MaxModules bounds the number of assigned addresses.
	MaxModules int `yaml:"max_modules"`
	// PingRetries is the budget of confirmation pings.
	PingRetries int `yaml:"ping_retries"`
	// ListenAttempts bounds the hellos sent looking for the child branch.
	ListenAttempts int `yaml:"listen_attempts"`
	// QuietTicks of silence mean the single branch is idle.
	QuietTicks uint32 `yaml:"quiet_ticks"`
	// BootTimeoutTicks bounds the wait for the single branch to go idle.
	BootTimeoutTicks uint32 `yaml:"boot_timeout_ticks"`
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		InitWaitTicks:    50,
		MaxTimeouts:      50,
		MaxModules:       int(frame.MaxModuleAddress),
		PingRetries:      5,
		ListenAttempts:   10,
		QuietTicks:       20,
		BootTimeoutTicks: 500,
	}
}

// How tells how an address got confirmed.
type How int

// Confirmations.
const (
	ConfirmedByAck How = iota
	ConfirmedByPing
	ConfirmedByProbe
)

func (h How) String() string {
	switch h {
	case ConfirmedByAck:
		return "ack"
	case ConfirmedByPing:
		return "ping"
	case ConfirmedByProbe:
		return "probe"
	}
	return "unknown"
}

// Module is an entry of the module table.
type Module struct {
	Address frame.Address
	How     How
	// Status holds the params of the last ping reply: type and branch.
	Status []byte
}

// Type returns the first status byte.
func (m *Module) Type() byte {
	if len(m.Status) > 0 {
		return m.Status[0]
	}
	return 0
}

// State is the progress of the current pass.
type State struct {
	Known          int
	PendingRetries int
	Branch         periph.Branch
	Assigned       []frame.Address
}

// Result summarizes a pass.
type Result struct {
	Modules   []Module
	Branch    periph.Branch
	Timeouts  int
	Rollbacks int
	Conflicts int
	Probed    int
	Err       error
}

// Observer is notified at the end of every pass.
type Observer interface {
	DiscoveryDone(r *Result)
}

// ObserverFunc is the func form of Observer.
type ObserverFunc func(r *Result)

// DiscoveryDone implements Observer.
func (f ObserverFunc) DiscoveryDone(r *Result) {
	f(r)
}

// Engine runs enumeration passes on a bus.
type Engine struct {
	Bus      *bus.Bus
	Config   Config
	Observer Observer
	Listener *Listener

	state  State
	table  map[frame.Address]*Module
	result *Result
}

// NewEngine creates an Engine.
func NewEngine(b *bus.Bus, conf Config) *Engine {
	return &Engine{
		Bus:      b,
		Config:   conf,
		Listener: &Listener{Bus: b},
		table:    make(map[frame.Address]*Module),
	}
}

// State returns a copy of the state of the current or last pass.
func (e *Engine) State() State {
	s := e.state
	s.Assigned = append([]frame.Address(nil), e.state.Assigned...)
	return s
}

// Lookup returns the table entry of addr.
func (e *Engine) Lookup(addr frame.Address) (Module, bool) {
	m, ok := e.table[addr]
	if !ok {
		return Module{}, false
	}
	return *m, true
}

// Modules returns the module table ordered by address.
func (e *Engine) Modules() []Module {
	var modules []Module
	for addr := frame.Address(1); int(addr) <= e.state.Known; addr++ {
		if m, ok := e.table[addr]; ok {
			modules = append(modules, *m)
		}
	}
	return modules
}

// Forget clears the module table and the module count.
func (e *Engine) Forget() {
	e.state = State{}
	e.table = make(map[frame.Address]*Module)
	e.Bus.Modules = 0
}

// Discover runs one enumeration pass and leaves the bus in HostLink.
// Protocol failures are recovered inside the pass, only bus faults are
// returned.
func (e *Engine) Discover() (*Result, error) {
	e.Forget()
	e.result = &Result{}
	err := e.run()
	e.Bus.Modules = e.state.Known
	e.result.Modules = e.Modules()
	e.result.Branch = e.state.Branch
	if err == nil || errors.Is(err, ErrNoChild) {
		if enterErr := e.Bus.Enter(bus.ModeHostLink); enterErr != nil {
			err = enterErr
		}
	}
	if errors.Is(err, ErrNoChild) {
		glog.Warningf("discovery: %v", err)
		err = nil
	}
	e.result.Err = err
	glog.Infof("discovery: %d modules on branch %d, %d rollbacks, %d conflicts",
		e.state.Known, e.state.Branch, e.result.Rollbacks, e.result.Conflicts)
	if e.Observer != nil {
		e.Observer.DiscoveryDone(e.result)
	}
	return e.result, err
}

func (e *Engine) run() error {
	if e.Bus.Config.Topology.IsTree() {
		if err := e.findChild(); err != nil {
			return err
		}
	} else {
		if err := e.awaitQuiet(); err != nil {
			return err
		}
		e.state.Branch = e.Bus.Branch
	}
	if err := e.enumerate(); err != nil {
		return err
	}
	if e.state.Known == 0 {
		return e.probe()
	}
	return nil
}

// findChild says hello until exactly one branch answers.
func (e *Engine) findChild() error {
	for attempt := 0; attempt < e.Config.ListenAttempts; attempt++ {
		if err := e.sayHello(); err != nil {
			return err
		}
		branch, err := e.Listener.Listen()
		if err == nil {
			glog.Infof("discovery: child on branch %d", branch)
			e.Bus.Branch = branch
			e.state.Branch = branch
			return nil
		}
		if err != ErrAmbiguous && err != frame.ErrTimeout {
			return err
		}
	}
	return ErrNoChild
}

// awaitQuiet waits until the single branch has been silent for QuietTicks,
// or BootTimeoutTicks passed.
func (e *Engine) awaitQuiet() error {
	b := e.Bus
	if err := b.Listen(); err != nil {
		return err
	}
	if err := b.Clock.Start(e.Config.BootTimeoutTicks); err != nil {
		return err
	}
	src := b.Source(b.Branch)
	since := b.Clock.Ticks()
	for !b.Clock.Elapsed() {
		if _, ok := src.PollByte(); ok {
			since = b.Clock.Ticks()
			continue
		}
		if b.Clock.Ticks()-since >= e.Config.QuietTicks {
			break
		}
		b.Clock.Idle()
	}
	b.Clock.Stop()
	return nil
}

func (e *Engine) sayHello() error {
	if err := e.Bus.SendPacket(frame.NewPacket(frame.BlankAddress, frame.CmdHello)); err != nil {
		return err
	}
	return e.Bus.Listen()
}

// awaitHello scans the receive window for a Hello addressed to the root.
func (e *Engine) awaitHello() (bool, error) {
	for {
		pkt, err := e.Bus.ReceivePacket()
		if err == frame.ErrTimeout {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if pkt.Command != frame.CmdHello {
			continue
		}
		if pkt.Destination != frame.RootAddress {
			glog.V(2).Infof("discovery: ignore cross-talk %s", pkt)
			continue
		}
		if e.assigned(pkt.Source) {
			e.result.Conflicts++
			glog.Warningf("discovery: address conflict, hello from assigned address %s", pkt.Source)
			continue
		}
		return true, nil
	}
}

func (e *Engine) assigned(addr frame.Address) bool {
	for _, a := range e.state.Assigned {
		if a == addr {
			return true
		}
	}
	return false
}

func (e *Engine) enumerate() error {
	timeouts := 0
	for timeouts < e.Config.MaxTimeouts && e.state.Known < e.Config.MaxModules {
		if err := e.sayHello(); err != nil {
			return err
		}
		heard, err := e.awaitHello()
		if err != nil {
			return err
		}
		if !heard {
			timeouts++
			e.result.Timeouts++
			if e.state.Known == 0 {
				if err := e.Bus.Clock.Sleep(e.Config.InitWaitTicks); err != nil {
					return err
				}
			}
			continue
		}
		e.state.Known++
		addr := frame.Address(e.state.Known)
		ok, err := e.assignID(addr)
		if err != nil {
			return err
		}
		if ok {
			timeouts = 0
			continue
		}
		// a module that never confirms must not keep the pass alive.
		timeouts++
		e.state.Known--
		e.result.Rollbacks++
		glog.Warningf("discovery: assignment of %s not confirmed, rolled back", addr)
	}
	return nil
}

// assignID assigns addr to the blank module which said hello. It returns
// false when neither the ack nor any confirmation ping was received.
func (e *Engine) assignID(addr frame.Address) (bool, error) {
	_, err := e.Bus.Request(frame.NewPacket(frame.BlankAddress, frame.CmdIDAssign, byte(addr)), func(pkt *frame.Packet) bool {
		return pkt.Is(frame.CmdIDAssignOk, addr, frame.RootAddress)
	})
	if err == nil {
		e.confirm(addr, ConfirmedByAck, nil)
		return true, nil
	}
	if err != frame.ErrTimeout {
		return false, err
	}
	glog.V(2).Infof("discovery: no ack from %s, pinging", addr)
	e.state.PendingRetries = e.Config.PingRetries
	for e.state.PendingRetries > 0 {
		e.state.PendingRetries--
		status, err := e.ping(addr)
		if err == nil {
			e.confirm(addr, ConfirmedByPing, status)
			e.state.PendingRetries = 0
			return true, nil
		}
		if err != frame.ErrTimeout {
			return false, err
		}
	}
	return false, nil
}

// probe looks for modules kept configured over a root reboot, pinging the
// next address up until the retry budget is exhausted.
func (e *Engine) probe() error {
	retries := e.Config.PingRetries
	for retries > 0 && e.state.Known < e.Config.MaxModules {
		addr := frame.Address(e.state.Known + 1)
		status, err := e.ping(addr)
		if err == nil {
			e.state.Known++
			e.result.Probed++
			e.confirm(addr, ConfirmedByProbe, status)
			retries = e.Config.PingRetries
			continue
		}
		if err != frame.ErrTimeout {
			return err
		}
		retries--
	}
	return nil
}

func (e *Engine) confirm(addr frame.Address, how How, status []byte) {
	e.state.Assigned = append(e.state.Assigned, addr)
	e.table[addr] = &Module{Address: addr, How: how, Status: status}
	glog.V(2).Infof("discovery: %s confirmed by %s", addr, how)
}

func (e *Engine) ping(addr frame.Address) ([]byte, error) {
	reply, err := e.Bus.Request(frame.NewPacket(addr, frame.CmdPing), func(pkt *frame.Packet) bool {
		return pkt.Is(frame.CmdPing, addr, frame.RootAddress)
	})
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), reply.Params...), nil
}

// Ping pings addr and returns its status bytes, updating the module table.
// The bus is left in Receive.
func (e *Engine) Ping(addr frame.Address) ([]byte, error) {
	status, err := e.ping(addr)
	if err != nil {
		return nil, err
	}
	if m, ok := e.table[addr]; ok {
		m.Status = status
	}
	return status, nil
}
