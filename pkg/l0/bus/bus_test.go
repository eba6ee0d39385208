package bus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/servotree/pkg/l0/frame"
	"github.com/robotalks/servotree/pkg/l0/periph"
	"github.com/robotalks/servotree/pkg/l0/periph/sim"
)

// stubPort mocks the line and block calls and ticks on every Idle.
type stubPort struct {
	mock.Mock
	handler func()
	armed   bool
}

func (s *stubPort) SetTickHandler(fn func()) { s.handler = fn }

func (s *stubPort) ArmTimer(period time.Duration) error {
	s.armed = true
	return nil
}

func (s *stubPort) DisarmTimer() error {
	s.armed = false
	return nil
}

func (s *stubPort) Idle() {
	if s.armed {
		s.handler()
	}
}

func (s *stubPort) PollByte(branch periph.Branch) (byte, bool) {
	args := s.Called(branch)
	return args.Get(0).(byte), args.Bool(1)
}

func (s *stubPort) SendByte(b byte) error {
	return s.Called(b).Error(0)
}

func (s *stubPort) TransmitComplete() bool {
	return s.Called().Bool(0)
}

func (s *stubPort) SetBusDriven(driven bool) error {
	return s.Called(driven).Error(0)
}

func (s *stubPort) Configure(role periph.Role) error {
	return s.Called(role).Error(0)
}

func (s *stubPort) Deconfigure(role periph.Role) error {
	return s.Called(role).Error(0)
}

func (s *stubPort) callNames() []string {
	var names []string
	for _, c := range s.Calls {
		switch c.Method {
		case "SetBusDriven":
			if c.Arguments.Bool(0) {
				names = append(names, "engage")
			} else {
				names = append(names, "release")
			}
		case "Configure", "Deconfigure":
			names = append(names, c.Method+" "+c.Arguments.Get(0).(periph.Role).String())
		}
	}
	return names
}

func newStubBus(topology Topology) (*Bus, *stubPort) {
	port := &stubPort{}
	port.On("SetBusDriven", mock.Anything).Return(nil)
	port.On("Configure", mock.Anything).Return(nil)
	port.On("Deconfigure", mock.Anything).Return(nil)
	conf := DefaultConfig()
	conf.Topology = topology
	return New(port, conf), port
}

func TestEnterProtocol(t *testing.T) {
	testCases := []struct {
		name     string
		topology Topology
		modes    []Mode
		final    Mode
		calls    []string
	}{
		{
			name:     "tree boot to hostlink",
			topology: TreeTopology,
			modes:    []Mode{ModeHostLink},
			final:    ModeHostLink,
			calls: []string{
				"release",
				"Deconfigure hostlink", "Deconfigure transmit", "Deconfigure receive",
				"Configure hostlink", "Configure transmit",
				"engage",
			},
		},
		{
			name:     "tree hostlink to receive",
			topology: TreeTopology,
			modes:    []Mode{ModeHostLink, ModeReceive},
			final:    ModeReceive,
			calls: []string{
				"release",
				"Deconfigure hostlink", "Deconfigure transmit", "Deconfigure receive",
				"Configure hostlink", "Configure transmit",
				"engage",
				"release",
				"Deconfigure hostlink", "Deconfigure transmit",
				"Configure receive",
				"engage",
			},
		},
		{
			name:     "tree transmit collapses",
			topology: TreeTopology,
			modes:    []Mode{ModeReceive, ModeTransmit},
			final:    ModeHostLink,
			calls: []string{
				"release",
				"Deconfigure hostlink", "Deconfigure transmit", "Deconfigure receive",
				"Configure receive",
				"engage",
				"release",
				"Deconfigure receive",
				"Configure hostlink", "Configure transmit",
				"engage",
			},
		},
		{
			name:     "single transmit",
			topology: SingleTopology,
			modes:    []Mode{ModeHostLink, ModeTransmit},
			final:    ModeTransmit,
			calls: []string{
				"release",
				"Deconfigure hostlink", "Deconfigure transmit", "Deconfigure receive",
				"Configure hostlink",
				"engage",
				"release",
				"Deconfigure hostlink",
				"Configure transmit",
				"engage",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b, port := newStubBus(tc.topology)
			for _, m := range tc.modes {
				require.NoError(t, b.Enter(m))
			}
			require.Equal(t, tc.final, b.Mode())
			require.Equal(t, tc.calls, port.callNames())
		})
	}
}

func TestEnterIdempotent(t *testing.T) {
	b, port := newStubBus(SingleTopology)
	require.NoError(t, b.Enter(ModeHostLink))
	once := len(port.callNames())
	require.NoError(t, b.Enter(ModeHostLink))
	require.Equal(t, ModeHostLink, b.Mode())
	calls := port.callNames()
	require.Equal(t, []string{"release", "Deconfigure hostlink", "Configure hostlink", "engage"}, calls[once:])

	require.NoError(t, b.Ensure(ModeHostLink))
	require.Len(t, port.callNames(), len(calls))
}

func TestEnterSettles(t *testing.T) {
	b, _ := newStubBus(TreeTopology)
	require.NoError(t, b.Enter(ModeHostLink))
	require.Equal(t, b.Config.SettleTicks, b.Clock.Ticks())
	require.True(t, b.Clock.Elapsed())

	require.NoError(t, b.Enter(ModeReceive))
	require.Zero(t, b.Clock.Ticks())
	require.False(t, b.Clock.Elapsed())
}

func TestEnterFaultGoesOffline(t *testing.T) {
	errBlock := errors.New("block")
	port := &stubPort{}
	port.On("SetBusDriven", mock.Anything).Return(nil)
	port.On("Deconfigure", mock.Anything).Return(nil)
	port.On("Configure", periph.RoleReceive).Return(errBlock).Once()
	port.On("Configure", mock.Anything).Return(nil)
	b := New(port, DefaultConfig())

	err := b.Enter(ModeReceive)
	require.ErrorIs(t, err, ErrOffline)
	require.ErrorIs(t, err, errBlock)
	var perr *PeripheralError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "configure receive", perr.Op)
	require.True(t, b.Offline())

	require.NoError(t, b.Recover())
	require.Equal(t, ModeHostLink, b.Mode())
	require.NoError(t, b.Recover())
}

func TestEnterInvalid(t *testing.T) {
	b, _ := newStubBus(TreeTopology)
	require.Error(t, b.Enter(ModeOffline))
	require.Equal(t, ModeUnknown, b.Mode())
}

func TestSendTransmitTimeout(t *testing.T) {
	b, port := newStubBus(SingleTopology)
	port.On("SendByte", mock.Anything).Return(nil)
	port.On("TransmitComplete").Return(false)
	err := b.Send([]byte{1, 2})
	require.ErrorIs(t, err, ErrTxTimeout)
	require.True(t, b.Offline())
	require.Equal(t, b.Config.TxTimeoutTicks, b.Clock.Ticks())
}

func TestReceiveOutsideWindow(t *testing.T) {
	b, _ := newStubBus(TreeTopology)
	_, err := b.ReceivePacket()
	require.Equal(t, ErrNotReceiving, err)
	_, err = b.ReceiveServo(1, 2)
	require.Equal(t, ErrNotReceiving, err)
}

type recordingTracer struct {
	frames [][]byte
	modes  []Mode
}

func (r *recordingTracer) TraceFrame(dir Direction, branch periph.Branch, data []byte) {
	r.frames = append(r.frames, data)
}

func (r *recordingTracer) TraceMode(from, to Mode, err error) {
	r.modes = append(r.modes, to)
}

func TestRequestOnSim(t *testing.T) {
	port := sim.New(1)
	m := sim.NewModule()
	m.Address = 4
	require.NoError(t, port.Attach(1, m))
	b := New(port, Config{
		Topology:       SingleTopology,
		RxTimeoutTicks: 5,
		SettleTicks:    1,
		TxGuardTicks:   1,
		TxTimeoutTicks: 10,
	})
	tracer := &recordingTracer{}
	b.Tracer = tracer

	reply, err := b.Request(frame.NewPacket(4, frame.CmdPing), func(pkt *frame.Packet) bool {
		return pkt.Is(frame.CmdPing, 4, frame.RootAddress)
	})
	require.NoError(t, err)
	require.Equal(t, []byte{sim.DefaultModuleType, '1'}, reply.Params)
	require.True(t, b.Clock.Elapsed())
	require.Equal(t, []Mode{ModeTransmit, ModeReceive}, tracer.modes)
	require.Equal(t, [][]byte{
		{frame.Start, frame.Start, 0, 4, 203, frame.End},
		{frame.Start, frame.Start, 4, 0, 203, sim.DefaultModuleType, '1', frame.End},
	}, tracer.frames)

	_, err = b.Request(frame.NewPacket(5, frame.CmdPing), func(pkt *frame.Packet) bool {
		return pkt.Is(frame.CmdPing, 5, frame.RootAddress)
	})
	require.Equal(t, frame.ErrTimeout, err)
}

func TestServoOnSim(t *testing.T) {
	port := sim.New(4)
	m := sim.NewModule()
	m.Address = 2
	require.NoError(t, port.Attach(3, m))
	b := New(port, DefaultConfig())
	b.Branch = 3

	require.NoError(t, b.SendServo(frame.NewServoWrite16(2, frame.OffsetGoalAngle, 300)))
	require.NoError(t, b.SendServo(frame.NewServoRead(2, frame.OffsetPresentAngle, 2)))
	require.NoError(t, b.Listen())
	resp, err := b.ReceiveServo(2, 2)
	require.NoError(t, err)
	require.Equal(t, uint16(300), resp.Uint16())
	require.Equal(t, ModeReceive, b.Mode())
}
