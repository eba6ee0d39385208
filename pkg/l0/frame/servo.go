package frame

import (
	"encoding/binary"
	"fmt"
)

// ServoHeader is repeated twice at the beginning of a servo frame.
const ServoHeader byte = 0xFF

// Instruction is the servo instruction code.
type Instruction byte

// Servo instructions.
const (
	ServoPing  Instruction = 1
	ServoRead  Instruction = 2
	ServoWrite Instruction = 3
	ServoReset Instruction = 6
)

// String implements fmt.Stringer.
func (i Instruction) String() string {
	switch i {
	case ServoPing:
		return "ping"
	case ServoRead:
		return "read"
	case ServoWrite:
		return "write"
	case ServoReset:
		return "reset"
	}
	return fmt.Sprintf("inst(%d)", byte(i))
}

// Servo memory locations used by the root.
const (
	OffsetPower        byte = 24
	OffsetGoalAngle    byte = 30
	OffsetSpeed        byte = 32
	OffsetPresentAngle byte = 36
)

// Checksum computes 255 - (sum mod 256).
func Checksum(b ...byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return ^sum
}

// ServoPacket is the raw form shared by servo instructions and replies.
type ServoPacket struct {
	ID       byte
	Length   byte
	Code     byte
	Params   []byte
	Checksum byte
}

// Sum computes the checksum over the packet contents.
func (p *ServoPacket) Sum() byte {
	return Checksum(append([]byte{p.ID, p.Length, p.Code}, p.Params...)...)
}

// Verify checks the carried checksum.
func (p *ServoPacket) Verify() error {
	if p.Sum() != p.Checksum {
		return ErrChecksum
	}
	return nil
}

// Bytes returns encoded bytes for sending.
func (p *ServoPacket) Bytes() []byte {
	b := make([]byte, 0, len(p.Params)+6)
	b = append(b, ServoHeader, ServoHeader, p.ID, p.Length, p.Code)
	b = append(b, p.Params...)
	return append(b, p.Checksum)
}

func newServoPacket(id, code byte, params []byte) *ServoPacket {
	p := &ServoPacket{ID: id, Length: byte(len(params) + 2), Code: code, Params: params}
	p.Checksum = p.Sum()
	return p
}

// ServoFrame is an instruction sent to a servo.
type ServoFrame struct {
	ID          byte
	Instruction Instruction
	Address     byte
	Values      []byte
}

// NewServoWrite creates a write of values at addr.
func NewServoWrite(id, addr byte, values ...byte) *ServoFrame {
	return &ServoFrame{ID: id, Instruction: ServoWrite, Address: addr, Values: values}
}

// NewServoWrite16 creates a little-endian two byte write at addr.
func NewServoWrite16(id, addr byte, val uint16) *ServoFrame {
	var v [2]byte
	binary.LittleEndian.PutUint16(v[:], val)
	return NewServoWrite(id, addr, v[:]...)
}

// NewServoRead creates a read of count bytes at addr.
func NewServoRead(id, addr, count byte) *ServoFrame {
	return &ServoFrame{ID: id, Instruction: ServoRead, Address: addr, Values: []byte{count}}
}

func (f *ServoFrame) params() []byte {
	if f.Instruction == ServoPing || f.Instruction == ServoReset {
		return nil
	}
	return append([]byte{f.Address}, f.Values...)
}

// Length is the value of the LEN field.
func (f *ServoFrame) Length() byte {
	return byte(len(f.params()) + 2)
}

// Packet converts to the raw form.
func (f *ServoFrame) Packet() *ServoPacket {
	return newServoPacket(f.ID, byte(f.Instruction), f.params())
}

// Bytes returns encoded bytes for sending.
func (f *ServoFrame) Bytes() []byte {
	return f.Packet().Bytes()
}

// ServoFrameFrom interprets a raw packet as an instruction.
func ServoFrameFrom(p *ServoPacket) (*ServoFrame, error) {
	if err := p.Verify(); err != nil {
		return nil, err
	}
	f := &ServoFrame{ID: p.ID, Instruction: Instruction(p.Code)}
	if len(p.Params) > 0 {
		f.Address = p.Params[0]
		f.Values = append([]byte(nil), p.Params[1:]...)
	}
	return f, nil
}

// ServoResponse is a reply from a servo.
type ServoResponse struct {
	ID       byte
	Length   byte
	Error    byte
	Payload  []byte
	Checksum byte
}

// NewServoResponse creates a reply with computed length and checksum.
func NewServoResponse(id, errCode byte, payload ...byte) *ServoResponse {
	return ServoResponseFrom(newServoPacket(id, errCode, payload))
}

// ServoResponseFrom interprets a raw packet as a reply.
func ServoResponseFrom(p *ServoPacket) *ServoResponse {
	return &ServoResponse{
		ID:       p.ID,
		Length:   p.Length,
		Error:    p.Code,
		Payload:  p.Params,
		Checksum: p.Checksum,
	}
}

// Packet converts to the raw form.
func (r *ServoResponse) Packet() *ServoPacket {
	return &ServoPacket{ID: r.ID, Length: r.Length, Code: r.Error, Params: r.Payload, Checksum: r.Checksum}
}

// Bytes returns encoded bytes for sending.
func (r *ServoResponse) Bytes() []byte {
	return r.Packet().Bytes()
}

// Uint16 decodes the first two payload bytes as little-endian.
func (r *ServoResponse) Uint16() uint16 {
	var v [2]byte
	copy(v[:], r.Payload)
	return binary.LittleEndian.Uint16(v[:])
}
