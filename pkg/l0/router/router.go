// Package router turns host command lines into bus transactions.
//
// Grammar, only the first letter of each keyword matters and case is
// ignored:
//
//	x                reset the module count
//	n                reply the module count
//	w <id> a <v>     write goal angle
//	w <id> p <v>     write power, 0 is ignored
//	w <id> s <v>     write speed, 0 is ignored
//	r <id> a         reply present angle
//	r <id> p         reply 0 if power is off, else 1
//	r <id> t         reply module type
//	r <id> c         reply the branch the module is attached to
package router

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/servotree/pkg/l0/bus"
	"github.com/robotalks/servotree/pkg/l0/frame"
)

// DefaultModuleType is replied for the root itself.
const DefaultModuleType byte = '2'

var (
	// ErrUnknownCommand indicates an unrecognized keyword.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrMissingArgument indicates a command line ended early.
	ErrMissingArgument = errors.New("missing argument")
)

// CommandError carries the command line which failed.
type CommandError struct {
	Line string
	Err  error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%q: %v", e.Line, e.Err)
}

// Unwrap returns the cause.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// Modules is the module knowledge needed to serve queries.
type Modules interface {
	Ping(addr frame.Address) ([]byte, error)
	Forget()
}

// Host is where replies go.
type Host interface {
	Reply(line string) error
	// Reset drops any partially received command.
	Reset()
}

// Router dispatches host commands.
type Router struct {
	Bus        *bus.Bus
	Modules    Modules
	Host       Host
	ModuleType byte
}

// New creates a Router.
func New(b *bus.Bus, modules Modules, host Host) *Router {
	return &Router{Bus: b, Modules: modules, Host: host, ModuleType: DefaultModuleType}
}

// Handle executes one command and brings the bus back to HostLink.
// Only bus faults and malformed commands are returned; a module not
// answering is logged and produces no reply.
func (r *Router) Handle(tokens []string) error {
	err := r.dispatch(tokens)
	if err != nil && !errors.Is(err, bus.ErrOffline) {
		err = &CommandError{Line: strings.Join(tokens, " "), Err: err}
	}
	if restoreErr := r.restore(); err == nil {
		err = restoreErr
	}
	return err
}

func (r *Router) restore() error {
	defer r.Host.Reset()
	if r.Bus.Mode() != bus.ModeHostLink {
		return r.Bus.Enter(bus.ModeHostLink)
	}
	return r.Bus.Clock.Stop()
}

func keyword(token string) byte {
	if token == "" {
		return 0
	}
	c := token[0]
	if c >= 'A' && c <= 'Z' {
		c += 'a' - 'A'
	}
	return c
}

// Atoi parses the leading decimal integer of s, 0 if there is none.
func Atoi(s string) int {
	s = strings.TrimLeft(s, " \t")
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n := 0
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
	}
	if neg {
		return -n
	}
	return n
}

func (r *Router) dispatch(tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	switch keyword(tokens[0]) {
	case 'x':
		r.Modules.Forget()
		return nil
	case 'n':
		return r.Host.Reply(strconv.Itoa(r.Bus.Modules))
	case 'w':
		if len(tokens) < 4 {
			return ErrMissingArgument
		}
		return r.write(byte(Atoi(tokens[1])), keyword(tokens[2]), Atoi(tokens[3]))
	case 'r':
		if len(tokens) < 3 {
			return ErrMissingArgument
		}
		return r.read(byte(Atoi(tokens[1])), keyword(tokens[2]))
	}
	return ErrUnknownCommand
}

func (r *Router) write(id, what byte, v int) error {
	var f *frame.ServoFrame
	switch what {
	case 'a':
		f = frame.NewServoWrite16(id, frame.OffsetGoalAngle, uint16(v))
	case 'p':
		if v == 0 {
			return nil
		}
		f = frame.NewServoWrite(id, frame.OffsetPower, byte(v))
	case 's':
		if v == 0 {
			return nil
		}
		f = frame.NewServoWrite16(id, frame.OffsetSpeed, uint16(v))
	default:
		return ErrUnknownCommand
	}
	return r.Bus.SendServo(f)
}

func (r *Router) read(id, what byte) error {
	switch what {
	case 'a':
		resp, err := r.readServo(id, frame.OffsetPresentAngle, 2, r.Bus.ReceiveServo)
		if err != nil || resp == nil {
			return err
		}
		if resp.Error != 0 {
			glog.Warningf("read angle of %d: %v", id, &frame.StatusError{ID: id, Code: resp.Error})
			return nil
		}
		return r.Host.Reply(strconv.Itoa(int(resp.Uint16())))
	case 'p':
		resp, err := r.readServo(id, frame.OffsetPower, 1, r.Bus.ReceiveServoUnverified)
		if err != nil || resp == nil {
			return err
		}
		// the checksum only covers id and length when power is off,
		// anything else including a corrupted frame reads as on.
		if resp.Checksum == 255-byte((int(id)+int(resp.Length))%256) {
			return r.Host.Reply("0")
		}
		return r.Host.Reply("1")
	case 't':
		return r.status(id, 0, r.ModuleType)
	case 'c':
		return r.status(id, 1, r.Bus.Branch.Char())
	}
	return ErrUnknownCommand
}

// readServo returns nil without error when the servo didn't answer.
func (r *Router) readServo(id, addr, count byte, receive func(byte, int) (*frame.ServoResponse, error)) (*frame.ServoResponse, error) {
	if err := r.Bus.SendServo(frame.NewServoRead(id, addr, count)); err != nil {
		return nil, err
	}
	if err := r.Bus.Listen(); err != nil {
		return nil, err
	}
	resp, err := receive(id, int(count))
	if err != nil {
		return nil, r.recovered(fmt.Sprintf("read %d @%d", id, addr), err)
	}
	return resp, nil
}

func (r *Router) status(id byte, n int, root byte) error {
	if frame.Address(id) == frame.RootAddress {
		return r.Host.Reply(string([]byte{root}))
	}
	params, err := r.Modules.Ping(frame.Address(id))
	if err != nil {
		return r.recovered(fmt.Sprintf("ping %d", id), err)
	}
	if len(params) <= n {
		glog.Warningf("ping %d: missing status byte %d in %v", id, n, params)
		return nil
	}
	return r.Host.Reply(string(params[n : n+1]))
}

func (r *Router) recovered(op string, err error) error {
	if errors.Is(err, bus.ErrOffline) {
		return err
	}
	glog.Warningf("%s: %v", op, err)
	return nil
}
