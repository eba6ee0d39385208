package sim

import (
	"github.com/robotalks/servotree/pkg/l0/frame"
)

// MemorySize is the size of the simulated servo memory.
const MemorySize = 64

// Module simulates a downstream servo-control module.
type Module struct {
	Address frame.Address
	// Type is the first status byte returned in ping replies.
	Type byte
	// Port is the second status byte returned in ping replies.
	Port   byte
	Memory [MemorySize]byte

	// DropAcks drops this many IDAssignOk replies, the address is still adopted.
	DropAcks int
	// DropPings drops this many ping replies.
	DropPings int
	// IgnoreAssign never adopts an address.
	IgnoreAssign bool
	// Deaf never replies.
	Deaf bool
	// CorruptServo corrupts the checksum of servo replies.
	CorruptServo bool
}

// DefaultModuleType is the type reported by simulated modules.
const DefaultModuleType byte = '1'

// NewModule creates an unconfigured module.
func NewModule() *Module {
	return &Module{Address: frame.BlankAddress, Type: DefaultModuleType}
}

// Configured indicates the module holds an address.
func (m *Module) Configured() bool {
	return m.Address != frame.BlankAddress
}

func (m *Module) handlePacket(pkt *frame.Packet, first bool) *frame.Packet {
	if m.Deaf {
		return nil
	}
	switch pkt.Command {
	case frame.CmdHello:
		if first && pkt.Destination == frame.BlankAddress && !m.Configured() {
			return &frame.Packet{Source: frame.BlankAddress, Destination: frame.RootAddress, Command: frame.CmdHello}
		}
	case frame.CmdIDAssign:
		if first && pkt.Destination == frame.BlankAddress && !m.Configured() && !m.IgnoreAssign {
			addr := frame.Address(pkt.Param(0))
			if !addr.IsModule() {
				return nil
			}
			m.Address = addr
			if m.DropAcks > 0 {
				m.DropAcks--
				return nil
			}
			return &frame.Packet{Source: addr, Destination: frame.RootAddress, Command: frame.CmdIDAssignOk}
		}
	case frame.CmdPing:
		if m.Configured() && pkt.Destination == m.Address {
			if m.DropPings > 0 {
				m.DropPings--
				return nil
			}
			return &frame.Packet{
				Source:      m.Address,
				Destination: frame.RootAddress,
				Command:     frame.CmdPing,
				Params:      []byte{m.Type, m.Port},
			}
		}
	case frame.CmdClearConfig:
		if m.Configured() && (pkt.Destination == m.Address || pkt.Destination == frame.BroadcastAddress) {
			addr := m.Address
			m.Address = frame.BlankAddress
			return &frame.Packet{Source: addr, Destination: frame.RootAddress, Command: frame.CmdConfigCleared}
		}
	}
	return nil
}

func (m *Module) handleServo(f *frame.ServoFrame) *frame.ServoResponse {
	if m.Deaf || !m.Configured() || f.ID != byte(m.Address) {
		return nil
	}
	switch f.Instruction {
	case frame.ServoWrite:
		for i, v := range f.Values {
			if addr := int(f.Address) + i; addr < MemorySize {
				m.Memory[addr] = v
			}
		}
		// the servo reaches the goal at once.
		if f.Address == frame.OffsetGoalAngle && len(f.Values) == 2 {
			copy(m.Memory[frame.OffsetPresentAngle:], f.Values)
		}
	case frame.ServoRead:
		if len(f.Values) == 0 {
			return nil
		}
		start, end := int(f.Address), int(f.Address)+int(f.Values[0])
		if end > MemorySize {
			return frame.NewServoResponse(f.ID, 0x08)
		}
		resp := frame.NewServoResponse(f.ID, 0, append([]byte(nil), m.Memory[start:end]...)...)
		if m.CorruptServo {
			resp.Checksum++
		}
		return resp
	case frame.ServoPing:
		return frame.NewServoResponse(f.ID, 0)
	case frame.ServoReset:
		m.Memory = [MemorySize]byte{}
	}
	return nil
}
