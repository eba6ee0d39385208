package frame

import (
	"github.com/golang/glog"
)

// ByteSource is a non-blocking receive poll.
type ByteSource interface {
	PollByte() (byte, bool)
}

// PollByteFunc is func type of ByteSource.
type PollByteFunc func() (byte, bool)

// PollByte implements ByteSource.
func (f PollByteFunc) PollByte() (byte, bool) {
	return f()
}

// Guard bounds a receive loop.
type Guard interface {
	// Elapsed reports the wait is over.
	Elapsed() bool
	// Idle is called when the source has nothing to deliver.
	Idle()
}

// ReadPacket drives a Parser with bytes from src until a frame completes or
// the guard elapses. Discarded frames are logged and scanning continues.
func ReadPacket(src ByteSource, guard Guard) (*Packet, error) {
	var parser Parser
	for !guard.Elapsed() {
		b, ok := src.PollByte()
		if !ok {
			guard.Idle()
			continue
		}
		pr := parser.Parse(b)
		if pr.Err != nil {
			glog.Warningf("control frame discarded: %v", pr.Err)
			continue
		}
		if pr.Packet != nil {
			return pr.Packet, nil
		}
	}
	return nil, ErrTimeout
}

// ReadServoResponse waits for the reply of servo id carrying payloadLen
// payload bytes. Frames from other IDs or of other lengths are skipped.
// A frame failing checksum is dropped and the wait goes on. If nothing valid
// arrives the last reason is returned: ErrChecksum, ErrMismatch when only
// replies of other servos were seen, otherwise ErrTimeout.
func ReadServoResponse(src ByteSource, guard Guard, id byte, payloadLen int) (*ServoResponse, error) {
	return readServo(src, guard, id, payloadLen, true)
}

// ReadServoUnverified is ReadServoResponse accepting the first matching
// frame whatever its checksum.
func ReadServoUnverified(src ByteSource, guard Guard, id byte, payloadLen int) (*ServoResponse, error) {
	return readServo(src, guard, id, payloadLen, false)
}

func readServo(src ByteSource, guard Guard, id byte, payloadLen int, verify bool) (*ServoResponse, error) {
	var (
		parser ServoParser
		err    = ErrTimeout
	)
	match := func(pkt *ServoPacket) bool {
		return pkt.ID == id && int(pkt.Length) == payloadLen+2
	}
	for !guard.Elapsed() {
		b, ok := src.PollByte()
		if !ok {
			guard.Idle()
			continue
		}
		pr := parser.Parse(b)
		if pr.Err != nil {
			if !verify && pr.Unverified != nil && match(pr.Unverified) {
				return ServoResponseFrom(pr.Unverified), nil
			}
			glog.V(2).Infof("servo frame dropped: %v", pr.Err)
			err = pr.Err
			continue
		}
		if pkt := pr.Packet; pkt != nil {
			if !match(pkt) {
				glog.V(2).Infof("servo frame skipped: id=%d len=%d", pkt.ID, pkt.Length)
				if err == ErrTimeout {
					err = ErrMismatch
				}
				continue
			}
			return ServoResponseFrom(pkt), nil
		}
	}
	return nil, err
}
