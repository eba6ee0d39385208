// Package serialport drives the bus through serial devices on a host,
// typically USB RS-485 adapters. RTS switches the transceiver direction.
package serialport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"

	"github.com/robotalks/servotree/pkg/l0/periph"
)

// DefaultBaudRate is the bus baud rate.
const DefaultBaudRate = 1000000

// ErrNotTransmitting indicates a write while the transmitter is unloaded.
var ErrNotTransmitting = errors.New("transmitter not configured")

// Line is the subset of serial.Port used.
type Line interface {
	io.ReadWriter
	SetRTS(rts bool) error
	Drain() error
	SetReadTimeout(t time.Duration) error
	Close() error
}

// Config names the devices.
type Config struct {
	// Device is the downstream line, it is also branch 1 when Branches is empty.
	Device string `yaml:"device"`
	// Branches are receive-only devices, one per branch.
	Branches []string `yaml:"branches"`
	BaudRate int      `yaml:"baud_rate"`
}

// Port implements periph.Port and periph.Idler.
type Port struct {
	tx       Line
	rx       []Line
	queues   []chan byte
	roles    [3]atomic.Bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
	timer    sync.Mutex
	ticker   *time.Ticker
	tickDone chan struct{}
	handler  atomic.Value
}

func openLine(device string, baud int) (Line, error) {
	p, err := serial.Open(device, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	return p, nil
}

// Open opens the devices of conf.
func Open(conf Config) (*Port, error) {
	if conf.BaudRate == 0 {
		conf.BaudRate = DefaultBaudRate
	}
	tx, err := openLine(conf.Device, conf.BaudRate)
	if err != nil {
		return nil, err
	}
	rx := []Line{tx}
	if len(conf.Branches) > 0 {
		rx = nil
		for _, dev := range conf.Branches {
			line, err := openLine(dev, conf.BaudRate)
			if err != nil {
				tx.Close()
				for _, l := range rx {
					l.Close()
				}
				return nil, err
			}
			rx = append(rx, line)
		}
	}
	return New(tx, rx...)
}

// New creates a Port over opened lines. Without rx lines tx is branch 1.
func New(tx Line, rx ...Line) (*Port, error) {
	if len(rx) == 0 {
		rx = []Line{tx}
	}
	if len(rx) > periph.MaxBranches {
		return nil, fmt.Errorf("%d branches, at most %d", len(rx), periph.MaxBranches)
	}
	p := &Port{tx: tx, rx: rx, stopCh: make(chan struct{})}
	for _, line := range rx {
		if err := line.SetReadTimeout(20 * time.Millisecond); err != nil {
			return nil, err
		}
		q := make(chan byte, 1024)
		p.queues = append(p.queues, q)
		p.wg.Add(1)
		go p.readLoop(line, q)
	}
	return p, nil
}

// Close stops the readers and closes every line.
func (p *Port) Close() error {
	close(p.stopCh)
	p.DisarmTimer()
	p.wg.Wait()
	var err error
	closed := map[Line]bool{}
	for _, line := range append([]Line{p.tx}, p.rx...) {
		if closed[line] {
			continue
		}
		closed[line] = true
		if cerr := line.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (p *Port) readLoop(line Line, q chan byte) {
	defer p.wg.Done()
	buf := make([]byte, 64)
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}
		n, err := line.Read(buf)
		if err != nil {
			glog.Errorf("serial read: %v", err)
			return
		}
		// the receiver only samples the line while loaded.
		if !p.roles[periph.RoleReceive].Load() {
			continue
		}
		for _, b := range buf[:n] {
			select {
			case q <- b:
			default:
				glog.Warning("serial: receive queue full")
			}
		}
	}
}

// SetTickHandler implements periph.Timer.
func (p *Port) SetTickHandler(fn func()) {
	p.handler.Store(fn)
}

// ArmTimer implements periph.Timer.
func (p *Port) ArmTimer(period time.Duration) error {
	p.timer.Lock()
	defer p.timer.Unlock()
	if p.ticker != nil {
		return nil
	}
	p.ticker = time.NewTicker(period)
	p.tickDone = make(chan struct{})
	go func(ticker *time.Ticker, done chan struct{}) {
		for {
			select {
			case <-ticker.C:
				if fn, ok := p.handler.Load().(func()); ok && fn != nil {
					fn()
				}
			case <-done:
				return
			}
		}
	}(p.ticker, p.tickDone)
	return nil
}

// DisarmTimer implements periph.Timer.
func (p *Port) DisarmTimer() error {
	p.timer.Lock()
	defer p.timer.Unlock()
	if p.ticker == nil {
		return nil
	}
	p.ticker.Stop()
	close(p.tickDone)
	p.ticker, p.tickDone = nil, nil
	return nil
}

// Idle implements periph.Idler.
func (p *Port) Idle() {
	time.Sleep(50 * time.Microsecond)
}

// PollByte implements periph.Port.
func (p *Port) PollByte(branch periph.Branch) (byte, bool) {
	n := int(branch) - 1
	if n < 0 || n >= len(p.queues) {
		return 0, false
	}
	select {
	case b := <-p.queues[n]:
		return b, true
	default:
		return 0, false
	}
}

// SendByte implements periph.Port.
func (p *Port) SendByte(b byte) error {
	if !p.roles[periph.RoleTransmit].Load() {
		return ErrNotTransmitting
	}
	_, err := p.tx.Write([]byte{b})
	return err
}

// TransmitComplete implements periph.Port.
func (p *Port) TransmitComplete() bool {
	if err := p.tx.Drain(); err != nil {
		glog.Errorf("serial drain: %v", err)
		return false
	}
	return true
}

// SetBusDriven implements periph.Port.
func (p *Port) SetBusDriven(driven bool) error {
	return p.tx.SetRTS(driven && p.roles[periph.RoleTransmit].Load())
}

// Configure implements periph.Port.
func (p *Port) Configure(role periph.Role) error {
	if role < 0 || int(role) >= len(p.roles) {
		return fmt.Errorf("invalid role %d", role)
	}
	if role == periph.RoleReceive {
		for _, q := range p.queues {
			drain(q)
		}
	}
	p.roles[role].Store(true)
	return nil
}

// Deconfigure implements periph.Port.
func (p *Port) Deconfigure(role periph.Role) error {
	if role < 0 || int(role) >= len(p.roles) {
		return fmt.Errorf("invalid role %d", role)
	}
	p.roles[role].Store(false)
	return nil
}

func drain(q chan byte) {
	for {
		select {
		case <-q:
		default:
			return
		}
	}
}
