// Package root runs the root controller loop: host commands first,
// discovery while no module is known, recovery while the bus is offline.
package root

import (
	"context"
	"errors"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/servotree/pkg/hostlink"
	"github.com/robotalks/servotree/pkg/l0/bus"
	"github.com/robotalks/servotree/pkg/l0/discovery"
	"github.com/robotalks/servotree/pkg/l0/periph"
	"github.com/robotalks/servotree/pkg/l0/router"
	"github.com/robotalks/servotree/pkg/trace"
)

// Root owns the bus and everything driving it.
type Root struct {
	Config *Config
	Bus    *bus.Bus
	Engine *discovery.Engine
	Router *router.Router
	Link   hostlink.Link

	observers []discovery.Observer
}

// New creates a Root on port taking commands from link.
func New(port periph.Port, link hostlink.Link, conf *Config) (*Root, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	r := &Root{Config: conf, Link: link}
	r.Bus = bus.New(port, conf.Bus)
	r.Engine = discovery.NewEngine(r.Bus, conf.Discovery)
	r.Engine.Observer = discovery.ObserverFunc(r.discoveryDone)
	r.Router = router.New(r.Bus, r.Engine, link)
	r.Router.ModuleType = conf.ModuleType[0]
	if o, ok := link.(discovery.Observer); ok {
		r.Observe(o)
	}
	return r, nil
}

// Observe adds an observer of discovery passes.
func (r *Root) Observe(o discovery.Observer) {
	r.observers = append(r.observers, o)
}

// Trace records bus and discovery events with rec.
func (r *Root) Trace(rec *trace.Recorder) {
	r.Bus.Tracer = rec
	r.Observe(rec)
}

func (r *Root) discoveryDone(res *discovery.Result) {
	for _, o := range r.observers {
		o.DiscoveryDone(res)
	}
}

// Boot unloads every peripheral block and talks to the host.
func (r *Root) Boot() error {
	glog.Infof("boot: %d branches", r.Bus.Config.Topology.Branches)
	return r.Bus.Enter(bus.ModeHostLink)
}

// Step runs one iteration of the loop. Malformed commands are logged,
// only bus faults are returned.
func (r *Root) Step() error {
	if r.Bus.Offline() {
		if err := r.Bus.Clock.Sleep(r.Config.RecoverTicks); err != nil {
			glog.V(2).Infof("recover wait: %v", err)
			time.Sleep(r.Bus.Clock.Period * time.Duration(r.Config.RecoverTicks))
		}
		return r.Bus.Recover()
	}
	if tokens, ok := r.Link.PollCommand(); ok {
		err := r.Router.Handle(tokens)
		var cmdErr *router.CommandError
		if errors.As(err, &cmdErr) {
			glog.Warningf("host: %v", cmdErr)
			return nil
		}
		return err
	}
	if r.Bus.Modules == 0 {
		_, err := r.Engine.Discover()
		return err
	}
	r.Bus.Clock.Idle()
	return nil
}

// Run boots and loops until ctx is done.
func (r *Root) Run(ctx context.Context) error {
	if err := r.Boot(); err != nil {
		glog.Errorf("boot: %v", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := r.Step(); err != nil {
			glog.Errorf("%v", err)
		}
	}
}
