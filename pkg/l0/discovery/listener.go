package discovery

import (
	"errors"

	"github.com/golang/glog"

	"github.com/robotalks/servotree/pkg/l0/bus"
	"github.com/robotalks/servotree/pkg/l0/frame"
	"github.com/robotalks/servotree/pkg/l0/periph"
)

// ErrAmbiguous indicates more than one branch answered.
var ErrAmbiguous = errors.New("more than one branch answered")

// branchWatch tracks START followed by END on a single branch.
type branchWatch struct {
	started bool
	done    bool
}

func (w *branchWatch) feed(b byte) {
	switch {
	case b == frame.Start:
		w.started = true
	case b == frame.End && w.started:
		w.done = true
	}
}

// Listener finds the branch the first child is attached to.
type Listener struct {
	Bus *bus.Bus
}

// Listen watches every branch until the current receive window elapses.
// It returns the branch if exactly one of them produced a start marker
// followed by an end marker.
func (l *Listener) Listen() (periph.Branch, error) {
	b := l.Bus
	if b.Mode() != bus.ModeReceive {
		return periph.NoBranch, bus.ErrNotReceiving
	}
	branches := b.Config.Topology.Branches
	watches := make([]branchWatch, branches+1)
	for !b.Clock.Elapsed() {
		active := false
		for n := 1; n <= branches; n++ {
			if v, ok := b.Port.PollByte(periph.Branch(n)); ok {
				active = true
				watches[n].feed(v)
			}
		}
		if !active {
			b.Clock.Idle()
		}
	}

	found := periph.NoBranch
	for n := 1; n <= branches; n++ {
		if !watches[n].done {
			continue
		}
		if found != periph.NoBranch {
			glog.Warningf("branches %d and %d both answered", found, n)
			return periph.NoBranch, ErrAmbiguous
		}
		found = periph.Branch(n)
	}
	if found == periph.NoBranch {
		return periph.NoBranch, frame.ErrTimeout
	}
	return found, nil
}
