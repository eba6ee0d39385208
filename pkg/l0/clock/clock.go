// Package clock bounds every wait of the bus loop by timer ticks.
package clock

import (
	"sync/atomic"
	"time"

	"github.com/robotalks/servotree/pkg/l0/periph"
)

// DefaultPeriod is the tick period.
const DefaultPeriod = time.Millisecond

// Clock counts timer ticks towards a limit.
//
// The tick handler is the only writer of the count besides Start, and it
// only ever increments. Everything else belongs to the loop owning the bus.
type Clock struct {
	Timer  periph.Timer
	Period time.Duration

	ticks   atomic.Uint32
	armed   atomic.Bool
	aborted atomic.Bool
	limit   uint32
	idler   periph.Idler
}

// New creates a Clock ticking on timer.
func New(timer periph.Timer, period time.Duration) *Clock {
	if period <= 0 {
		period = DefaultPeriod
	}
	c := &Clock{Timer: timer, Period: period}
	c.idler, _ = timer.(periph.Idler)
	timer.SetTickHandler(c.Tick)
	return c
}

// Tick is the timer callback.
func (c *Clock) Tick() {
	if c.armed.Load() {
		c.ticks.Add(1)
	}
}

// Ticks returns the current count.
func (c *Clock) Ticks() uint32 {
	return c.ticks.Load()
}

// Start resets the count and arms the timer for a wait of d ticks.
// If the timer can't be armed the wait is already elapsed.
func (c *Clock) Start(d uint32) error {
	c.ticks.Store(0)
	c.limit = d
	c.aborted.Store(false)
	c.armed.Store(true)
	if err := c.Timer.ArmTimer(c.Period); err != nil {
		c.armed.Store(false)
		c.aborted.Store(true)
		return err
	}
	return nil
}

// Elapsed reports the count reached the limit or the wait was aborted.
func (c *Clock) Elapsed() bool {
	return c.aborted.Load() || c.ticks.Load() >= c.limit
}

// Stop disarms the timer, freezing the count.
func (c *Clock) Stop() error {
	c.armed.Store(false)
	return c.Timer.DisarmTimer()
}

// Abort ends the current wait early.
func (c *Clock) Abort() {
	c.aborted.Store(true)
}

// Idle is called by wait loops with nothing to do.
func (c *Clock) Idle() {
	if c.idler != nil {
		c.idler.Idle()
	}
}

// Sleep waits n ticks.
func (c *Clock) Sleep(n uint32) error {
	if n == 0 {
		return nil
	}
	if err := c.Start(n); err != nil {
		return err
	}
	for !c.Elapsed() {
		c.Idle()
	}
	return c.Stop()
}
