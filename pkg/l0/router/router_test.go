package router

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/servotree/pkg/l0/bus"
	"github.com/robotalks/servotree/pkg/l0/discovery"
	"github.com/robotalks/servotree/pkg/l0/frame"
	"github.com/robotalks/servotree/pkg/l0/periph/sim"
)

type recordingHost struct {
	lines  []string
	resets int
}

func (h *recordingHost) Reply(line string) error {
	h.lines = append(h.lines, line)
	return nil
}

func (h *recordingHost) Reset() {
	h.resets++
}

type fixture struct {
	port   *sim.Port
	module *sim.Module
	router *Router
	host   *recordingHost
}

// newFixture attaches one configured module with address 1 on branch 2.
func newFixture(t *testing.T) *fixture {
	port := sim.New(4)
	m := sim.NewModule()
	m.Address = 1
	require.NoError(t, port.Attach(2, m))
	b := bus.New(port, bus.DefaultConfig())
	b.Branch = 2
	b.Modules = 1
	host := &recordingHost{}
	engine := discovery.NewEngine(b, discovery.DefaultConfig())
	return &fixture{port: port, module: m, router: New(b, engine, host), host: host}
}

func (f *fixture) do(t *testing.T, line ...string) []string {
	f.host.lines = nil
	require.NoError(t, f.router.Handle(line))
	require.Equal(t, bus.ModeHostLink, f.router.Bus.Mode())
	return f.host.lines
}

func TestCount(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, []string{"1"}, f.do(t, "n"))
	require.Empty(t, f.do(t, "X"))
	require.Equal(t, []string{"0"}, f.do(t, "number"))
	require.Equal(t, 3, f.host.resets)
}

func TestWrite(t *testing.T) {
	testCases := []struct {
		line  []string
		frame []byte
	}{
		{[]string{"w", "3", "a", "512"}, []byte{0xff, 0xff, 3, 5, 3, 30, 0, 2, 212}},
		{[]string{"W", "3", "Angle", "512"}, []byte{0xff, 0xff, 3, 5, 3, 30, 0, 2, 212}},
		{[]string{"w", "1", "p", "1"}, frame.NewServoWrite(1, frame.OffsetPower, 1).Bytes()},
		{[]string{"w", "1", "p", "0"}, nil},
		{[]string{"w", "1", "s", "300"}, frame.NewServoWrite(1, frame.OffsetSpeed, 44, 1).Bytes()},
		{[]string{"w", "1", "s", "0"}, nil},
		{[]string{"w", "1", "s", "x"}, nil},
	}

	for _, tc := range testCases {
		f := newFixture(t)
		require.Empty(t, f.do(t, tc.line...))
		frames := f.port.ServoFrames()
		if tc.frame == nil {
			require.Empty(t, frames, "%v", tc.line)
			continue
		}
		require.Len(t, frames, 1, "%v", tc.line)
		require.Equal(t, tc.frame, frames[0].Bytes(), "%v", tc.line)
	}
}

func TestReadAngle(t *testing.T) {
	f := newFixture(t)
	require.Empty(t, f.do(t, "w", "1", "a", "700"))
	require.Equal(t, []string{"700"}, f.do(t, "r", "1", "a"))
	require.Empty(t, f.do(t, "r", "5", "a"))

	f.module.CorruptServo = true
	require.Empty(t, f.do(t, "r", "1", "a"))
}

func TestReadPower(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, []string{"0"}, f.do(t, "r", "1", "p"))
	require.Empty(t, f.do(t, "w", "1", "p", "1"))
	require.Equal(t, []string{"1"}, f.do(t, "r", "1", "p"))
	require.Empty(t, f.do(t, "r", "5", "p"))
}

func TestReadPowerCorrupted(t *testing.T) {
	f := newFixture(t)
	f.module.CorruptServo = true
	require.Equal(t, []string{"1"}, f.do(t, "r", "1", "p"))
	require.Equal(t, bus.ModeHostLink, f.router.Bus.Mode())
}

func TestReadStatus(t *testing.T) {
	f := newFixture(t)
	f.module.Type = 'S'
	require.Equal(t, []string{"2"}, f.do(t, "r", "0", "t"))
	require.Equal(t, []string{"S"}, f.do(t, "r", "1", "t"))
	require.Equal(t, []string{"2"}, f.do(t, "r", "0", "c"))
	require.Equal(t, []string{"2"}, f.do(t, "r", "1", "c"))
	require.Empty(t, f.do(t, "r", "7", "t"))

	f.router.ModuleType = 'R'
	require.Equal(t, []string{"R"}, f.do(t, "r", "0", "type"))
}

func TestMalformed(t *testing.T) {
	testCases := []struct {
		line []string
		err  error
	}{
		{[]string{"q"}, ErrUnknownCommand},
		{[]string{"w", "1", "z", "5"}, ErrUnknownCommand},
		{[]string{"r", "1", "z"}, ErrUnknownCommand},
		{[]string{"w", "1", "a"}, ErrMissingArgument},
		{[]string{"r", "1"}, ErrMissingArgument},
	}

	for _, tc := range testCases {
		f := newFixture(t)
		err := f.router.Handle(tc.line)
		require.ErrorIs(t, err, tc.err)
		var cerr *CommandError
		require.ErrorAs(t, err, &cerr)
		require.Equal(t, bus.ModeHostLink, f.router.Bus.Mode())
		require.Equal(t, 1, f.host.resets)
	}
	f := newFixture(t)
	require.NoError(t, f.router.Handle(nil))
}

func TestRestoreStopsClock(t *testing.T) {
	f := newFixture(t)
	b := f.router.Bus
	require.NoError(t, b.Enter(bus.ModeHostLink))
	require.NoError(t, b.Clock.Start(100))
	f.do(t, "n")
	ticks := b.Clock.Ticks()
	f.port.Idle()
	require.Equal(t, ticks, b.Clock.Ticks())
}

func TestOfflineReturned(t *testing.T) {
	f := newFixture(t)
	f.port.StuckTransmit = true
	err := f.router.Handle([]string{"w", "1", "a", "10"})
	require.ErrorIs(t, err, bus.ErrOffline)
	f.port.StuckTransmit = false
	require.NoError(t, f.router.Bus.Recover())
}

func TestAtoi(t *testing.T) {
	testCases := map[string]int{
		"":     0,
		"12":   12,
		"12ab": 12,
		"ab":   0,
		"-5":   -5,
		"+7":   7,
		" 3":   3,
	}
	for in, expected := range testCases {
		require.Equal(t, expected, Atoi(in), in)
	}
}
