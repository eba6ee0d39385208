package bus

import (
	"github.com/golang/glog"

	"github.com/robotalks/servotree/pkg/l0/frame"
	"github.com/robotalks/servotree/pkg/l0/periph"
)

// Source returns the receive poll of a branch.
func (b *Bus) Source(branch periph.Branch) frame.ByteSource {
	return frame.PollByteFunc(func() (byte, bool) {
		return b.Port.PollByte(branch)
	})
}

// Send transmits raw bytes downstream and waits until they are on the wire.
func (b *Bus) Send(data []byte) error {
	if err := b.Ensure(ModeTransmit); err != nil {
		return err
	}
	for _, v := range data {
		if err := b.Port.SendByte(v); err != nil {
			return b.fault("send", err)
		}
	}
	if b.Tracer != nil {
		b.Tracer.TraceFrame(DirOut, periph.NoBranch, data)
	}
	return b.drain()
}

func (b *Bus) drain() error {
	if err := b.Clock.Start(b.Config.TxTimeoutTicks); err != nil {
		return b.fault("timer", err)
	}
	for !b.Port.TransmitComplete() {
		if b.Clock.Elapsed() {
			b.Clock.Stop()
			return b.fault("transmit", ErrTxTimeout)
		}
		b.Clock.Idle()
	}
	if err := b.Clock.Stop(); err != nil {
		return b.fault("timer", err)
	}
	if err := b.Clock.Sleep(b.Config.TxGuardTicks); err != nil {
		return b.fault("timer", err)
	}
	return nil
}

// SendPacket transmits a control frame.
func (b *Bus) SendPacket(pkt *frame.Packet) error {
	glog.V(2).Infof("SND %s", pkt)
	return b.Send(pkt.Encode(b.Config.Topology.EndMarkers))
}

// SendServo transmits a servo instruction.
func (b *Bus) SendServo(f *frame.ServoFrame) error {
	glog.V(2).Infof("SND servo %d %s @%d %v", f.ID, f.Instruction, f.Address, f.Values)
	return b.Send(f.Bytes())
}

// Listen enters Receive, opening a new receive window.
func (b *Bus) Listen() error {
	return b.Enter(ModeReceive)
}

// ReceivePacket returns the next control frame from the attached branch
// within the current receive window.
func (b *Bus) ReceivePacket() (*frame.Packet, error) {
	if b.mode != ModeReceive {
		return nil, ErrNotReceiving
	}
	pkt, err := frame.ReadPacket(b.Source(b.Branch), b.Clock)
	if err != nil {
		return nil, err
	}
	glog.V(2).Infof("RCV %s", pkt)
	if b.Tracer != nil {
		b.Tracer.TraceFrame(DirIn, b.Branch, pkt.Encode(1))
	}
	return pkt, nil
}

// ReceiveServo returns the reply of servo id within the current receive
// window.
func (b *Bus) ReceiveServo(id byte, payloadLen int) (*frame.ServoResponse, error) {
	return b.receiveServo(frame.ReadServoResponse, id, payloadLen)
}

// ReceiveServoUnverified is ReceiveServo leaving the checksum to the caller.
func (b *Bus) ReceiveServoUnverified(id byte, payloadLen int) (*frame.ServoResponse, error) {
	return b.receiveServo(frame.ReadServoUnverified, id, payloadLen)
}

type servoReader func(frame.ByteSource, frame.Guard, byte, int) (*frame.ServoResponse, error)

func (b *Bus) receiveServo(read servoReader, id byte, payloadLen int) (*frame.ServoResponse, error) {
	if b.mode != ModeReceive {
		return nil, ErrNotReceiving
	}
	resp, err := read(b.Source(b.Branch), b.Clock, id, payloadLen)
	if err != nil {
		return nil, err
	}
	glog.V(2).Infof("RCV servo %d err=%d %v", resp.ID, resp.Error, resp.Payload)
	if b.Tracer != nil {
		b.Tracer.TraceFrame(DirIn, b.Branch, resp.Bytes())
	}
	return resp, nil
}

// Request sends pkt, then waits in a fresh receive window for a reply
// accepted by match. Replies not accepted are skipped.
func (b *Bus) Request(pkt *frame.Packet, match func(*frame.Packet) bool) (*frame.Packet, error) {
	if err := b.SendPacket(pkt); err != nil {
		return nil, err
	}
	if err := b.Listen(); err != nil {
		return nil, err
	}
	for {
		reply, err := b.ReceivePacket()
		if err != nil {
			return nil, err
		}
		if match(reply) {
			b.Clock.Abort()
			return reply, nil
		}
		glog.V(2).Infof("skip %s", reply)
	}
}
