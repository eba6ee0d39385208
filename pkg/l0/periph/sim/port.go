// Package sim provides a deterministic in-process bus with simulated modules.
//
// Time is virtual: it advances one tick each time a wait loop idles, so a
// scenario runs the same way on every run and at any speed.
package sim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robotalks/servotree/pkg/l0/frame"
	"github.com/robotalks/servotree/pkg/l0/periph"
)

// DefaultResponseDelay is the number of ticks a module takes to reply.
const DefaultResponseDelay = 2

var (
	// ErrNotConfigured indicates use of a block which isn't configured.
	ErrNotConfigured = errors.New("block not configured")
	// ErrInvalidBranch indicates a branch the port doesn't have.
	ErrInvalidBranch = errors.New("invalid branch")
)

type delivery struct {
	at     uint64
	branch periph.Branch
	data   []byte
}

// Port implements periph.Port over simulated branches.
type Port struct {
	// ResponseDelay is the ticks between a request and its reply.
	ResponseDelay uint64
	// FailConfigure is returned by Configure when set.
	FailConfigure error
	// StuckTransmit keeps TransmitComplete false.
	StuckTransmit bool
	// FailArm is returned by ArmTimer when set.
	FailArm error

	lock       sync.Mutex
	branches   int
	chains     [periph.MaxBranches + 1][]*Module
	rx         [periph.MaxBranches + 1][]byte
	pending    []delivery
	configured map[periph.Role]bool
	driven     bool
	now        uint64
	handler    func()
	armed      bool

	ctl   frame.Parser
	servo frame.ServoParser

	packets []*frame.Packet
	frames  []*frame.ServoFrame
	calls   []string
}

// New creates a Port with the given number of branches.
func New(branches int) *Port {
	if branches < 1 {
		branches = 1
	}
	if branches > periph.MaxBranches {
		branches = periph.MaxBranches
	}
	return &Port{
		ResponseDelay: DefaultResponseDelay,
		branches:      branches,
		configured:    make(map[periph.Role]bool),
		ctl:           frame.Parser{Positional: true},
	}
}

// Branches returns the number of branches.
func (p *Port) Branches() int {
	return p.branches
}

// Attach appends modules to the chain on branch.
func (p *Port) Attach(branch periph.Branch, modules ...*Module) error {
	if branch < 1 || int(branch) > p.branches {
		return ErrInvalidBranch
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	for _, m := range modules {
		if m.Port == 0 {
			m.Port = branch.Char()
		}
		p.chains[branch] = append(p.chains[branch], m)
	}
	return nil
}

// Detach removes every module.
func (p *Port) Detach() {
	p.lock.Lock()
	defer p.lock.Unlock()
	for n := range p.chains {
		p.chains[n] = nil
	}
}

// Modules returns the chain on branch.
func (p *Port) Modules(branch periph.Branch) []*Module {
	p.lock.Lock()
	defer p.lock.Unlock()
	if branch < 1 || int(branch) > p.branches {
		return nil
	}
	return append([]*Module(nil), p.chains[branch]...)
}

// Inject schedules raw bytes to arrive on branch after delay ticks.
func (p *Port) Inject(branch periph.Branch, delay uint64, data ...byte) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.pending = append(p.pending, delivery{at: p.now + delay, branch: branch, data: data})
}

// Now returns the virtual time in ticks.
func (p *Port) Now() uint64 {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.now
}

// Packets returns the control frames sent so far.
func (p *Port) Packets() []*frame.Packet {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]*frame.Packet(nil), p.packets...)
}

// ServoFrames returns the servo instructions sent so far.
func (p *Port) ServoFrames() []*frame.ServoFrame {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]*frame.ServoFrame(nil), p.frames...)
}

// Calls returns the peripheral configuration calls made so far.
func (p *Port) Calls() []string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]string(nil), p.calls...)
}

// ResetLog clears sent frames and recorded calls.
func (p *Port) ResetLog() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.packets, p.frames, p.calls = nil, nil, nil
}

// Configured indicates the block of role is loaded.
func (p *Port) Configured(role periph.Role) bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.configured[role]
}

// Driven indicates the line is engaged.
func (p *Port) Driven() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.driven
}

// SetTickHandler implements periph.Timer.
func (p *Port) SetTickHandler(fn func()) {
	p.lock.Lock()
	p.handler = fn
	p.lock.Unlock()
}

// ArmTimer implements periph.Timer.
func (p *Port) ArmTimer(time.Duration) error {
	if p.FailArm != nil {
		return p.FailArm
	}
	p.lock.Lock()
	p.armed = true
	p.lock.Unlock()
	return nil
}

// DisarmTimer implements periph.Timer.
func (p *Port) DisarmTimer() error {
	p.lock.Lock()
	p.armed = false
	p.lock.Unlock()
	return nil
}

// Idle implements periph.Idler by advancing virtual time one tick.
func (p *Port) Idle() {
	p.lock.Lock()
	p.now++
	p.deliverLocked()
	handler := p.handler
	if !p.armed {
		handler = nil
	}
	p.lock.Unlock()
	if handler != nil {
		handler()
	}
}

func (p *Port) deliverLocked() {
	pending := p.pending[:0]
	for _, d := range p.pending {
		if d.at > p.now {
			pending = append(pending, d)
			continue
		}
		if p.configured[periph.RoleReceive] && p.driven {
			p.rx[d.branch] = append(p.rx[d.branch], d.data...)
		}
	}
	p.pending = pending
}

// PollByte implements periph.Port.
func (p *Port) PollByte(branch periph.Branch) (byte, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if branch < 1 || int(branch) > p.branches || !p.configured[periph.RoleReceive] {
		return 0, false
	}
	if buf := p.rx[branch]; len(buf) > 0 {
		p.rx[branch] = buf[1:]
		return buf[0], true
	}
	return 0, false
}

// SendByte implements periph.Port.
func (p *Port) SendByte(b byte) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if !p.configured[periph.RoleTransmit] {
		return fmt.Errorf("send: transmitter %w", ErrNotConfigured)
	}
	if !p.driven {
		return nil
	}
	if pr := p.ctl.Parse(b); pr.Packet != nil {
		p.packets = append(p.packets, pr.Packet)
		p.dispatchPacketLocked(pr.Packet)
	}
	if pr := p.servo.Parse(b); pr.Packet != nil {
		if f, err := frame.ServoFrameFrom(pr.Packet); err == nil {
			p.frames = append(p.frames, f)
			p.dispatchServoLocked(f)
		}
	}
	return nil
}

// TransmitComplete implements periph.Port.
func (p *Port) TransmitComplete() bool {
	return !p.StuckTransmit
}

// SetBusDriven implements periph.Port.
func (p *Port) SetBusDriven(driven bool) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.driven = driven
	p.calls = append(p.calls, fmt.Sprintf("driven %v", driven))
	return nil
}

// Configure implements periph.Port.
func (p *Port) Configure(role periph.Role) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.calls = append(p.calls, "configure "+role.String())
	if p.FailConfigure != nil {
		return p.FailConfigure
	}
	p.configured[role] = true
	if role == periph.RoleReceive {
		for n := range p.rx {
			p.rx[n] = nil
		}
	}
	if role == periph.RoleTransmit {
		p.ctl.Reset()
		p.servo.Reset()
	}
	return nil
}

// Deconfigure implements periph.Port.
func (p *Port) Deconfigure(role periph.Role) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.calls = append(p.calls, "deconfigure "+role.String())
	delete(p.configured, role)
	return nil
}

// reachable returns the modules of a chain hearing the root: every configured
// module up to and including the first unconfigured one.
func reachable(chain []*Module) []*Module {
	for n, m := range chain {
		if !m.Configured() {
			return chain[:n+1]
		}
	}
	return chain
}

func (p *Port) replyLocked(branch periph.Branch, data []byte) {
	p.pending = append(p.pending, delivery{at: p.now + p.ResponseDelay, branch: branch, data: data})
}

func (p *Port) dispatchPacketLocked(pkt *frame.Packet) {
	for n := 1; n <= p.branches; n++ {
		chain := reachable(p.chains[n])
		for i, m := range chain {
			if reply := m.handlePacket(pkt, i == len(chain)-1 && !m.Configured()); reply != nil {
				p.replyLocked(periph.Branch(n), reply.Encode(1))
				break
			}
		}
	}
}

func (p *Port) dispatchServoLocked(f *frame.ServoFrame) {
	for n := 1; n <= p.branches; n++ {
		for _, m := range reachable(p.chains[n]) {
			if resp := m.handleServo(f); resp != nil {
				p.replyLocked(periph.Branch(n), resp.Bytes())
			}
		}
	}
}
