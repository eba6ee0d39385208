package sh

import (
	"fmt"
	"strconv"

	"github.com/robotalks/servotree/pkg/hostlink"
	"github.com/robotalks/servotree/pkg/l0/periph"
	"github.com/robotalks/servotree/pkg/l0/periph/sim"
	"github.com/robotalks/servotree/pkg/l0/root"
)

// Sim is a root controller on a simulated bus, driven one command at a time.
type Sim struct {
	Port *sim.Port
	Root *root.Root
	Link *hostlink.ChanLink
}

// NewSim creates a booted Sim.
func NewSim(conf *root.Config) (*Sim, error) {
	s := &Sim{
		Port: sim.New(conf.Bus.Topology.Branches),
		Link: hostlink.NewChanLink(),
	}
	r, err := root.New(s.Port, s.Link, conf)
	if err != nil {
		return nil, err
	}
	s.Root = r
	if err := r.Boot(); err != nil {
		return nil, err
	}
	return s, nil
}

// Attach appends n blank modules to branch.
func (s *Sim) Attach(branch periph.Branch, n int) error {
	for i := 0; i < n; i++ {
		if err := s.Port.Attach(branch, sim.NewModule()); err != nil {
			return err
		}
	}
	return nil
}

// Module returns the module at index of the chain on branch.
func (s *Sim) Module(branch periph.Branch, index int) (*sim.Module, error) {
	chain := s.Port.Modules(branch)
	if index < 0 || index >= len(chain) {
		return nil, fmt.Errorf("no module %d on branch %d", index, branch)
	}
	return chain[index], nil
}

// Faults are the knobs accepted by Fault.
var Faults = []string{"drop-acks", "drop-pings", "ignore-assign", "deaf", "corrupt", "clear"}

// Fault sets a fault knob. Counting knobs take n, the others are switched on
// by a positive n.
func (s *Sim) Fault(branch periph.Branch, index int, knob string, n int) error {
	m, err := s.Module(branch, index)
	if err != nil {
		return err
	}
	switch knob {
	case "drop-acks":
		m.DropAcks = n
	case "drop-pings":
		m.DropPings = n
	case "ignore-assign":
		m.IgnoreAssign = n > 0
	case "deaf":
		m.Deaf = n > 0
	case "corrupt":
		m.CorruptServo = n > 0
	case "clear":
		m.DropAcks, m.DropPings = 0, 0
		m.IgnoreAssign, m.Deaf, m.CorruptServo = false, false, false
	default:
		return fmt.Errorf("unknown fault %q", knob)
	}
	return nil
}

// Host runs a host command line and returns the replies.
func (s *Sim) Host(line string) ([]string, error) {
	s.Link.Send(line)
	err := s.Root.Step()
	var lines []string
	for {
		select {
		case reply := <-s.Link.Replies:
			lines = append(lines, reply)
		default:
			return lines, err
		}
	}
}

// Step runs n iterations of the root loop.
func (s *Sim) Step(n int) error {
	for i := 0; i < n; i++ {
		if err := s.Root.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Describe lists the simulated modules of every branch.
func (s *Sim) Describe() []string {
	var lines []string
	for b := periph.Branch(1); int(b) <= s.Port.Branches(); b++ {
		for n, m := range s.Port.Modules(b) {
			addr := "blank"
			if m.Configured() {
				addr = strconv.Itoa(int(m.Address))
			}
			lines = append(lines, fmt.Sprintf("branch %d #%d: %s type %c", b, n, addr, m.Type))
		}
	}
	return lines
}
