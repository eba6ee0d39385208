package frame

import (
	"fmt"
	"strconv"
)

// Control plane markers.
const (
	Start byte = 252
	End   byte = 253
)

// MaxParams is the capacity of the param buffer of a control frame.
const MaxParams = 10

// Address identifies a node on the bus.
type Address byte

// Reserved addresses.
const (
	RootAddress      Address = 0
	MaxModuleAddress Address = 250
	BlankAddress     Address = 251
	BroadcastAddress Address = 254
)

// IsModule indicates the address can be held by a module.
func (a Address) IsModule() bool {
	return a > RootAddress && a <= MaxModuleAddress
}

// String implements fmt.Stringer.
func (a Address) String() string {
	switch a {
	case RootAddress:
		return "root"
	case BlankAddress:
		return "blank"
	case BroadcastAddress:
		return "broadcast"
	}
	return strconv.Itoa(int(a))
}

// Command is the command type of a control frame.
type Command byte

// CommandSpace is the first value of the reserved command space.
const CommandSpace Command = 200

// Defined commands.
const (
	CmdHello         Command = 200
	CmdIDAssign      Command = 201
	CmdIDAssignOk    Command = 202
	CmdPing          Command = 203
	CmdClearConfig   Command = 204
	CmdConfigCleared Command = 205
)

var commandNames = map[Command]string{
	CmdHello:         "hello",
	CmdIDAssign:      "id-assign",
	CmdIDAssignOk:    "id-assign-ok",
	CmdPing:          "ping",
	CmdClearConfig:   "clear-config",
	CmdConfigCleared: "config-cleared",
}

// String implements fmt.Stringer.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("cmd(%d)", byte(c))
}

// Packet is a control plane frame.
type Packet struct {
	Source      Address
	Destination Address
	Command     Command
	Params      []byte
}

// NewPacket creates a packet sent by the root.
func NewPacket(dst Address, cmd Command, params ...byte) *Packet {
	return &Packet{Source: RootAddress, Destination: dst, Command: cmd, Params: params}
}

// Encode returns the frame bytes, terminated by endMarkers END bytes.
// At least one END is always emitted and params beyond MaxParams are dropped.
func (p *Packet) Encode(endMarkers int) []byte {
	if endMarkers < 1 {
		endMarkers = 1
	}
	params := p.Params
	if len(params) > MaxParams {
		params = params[:MaxParams]
	}
	b := make([]byte, 0, 5+len(params)+endMarkers)
	b = append(b, Start, Start, byte(p.Source), byte(p.Destination), byte(p.Command))
	b = append(b, params...)
	for i := 0; i < endMarkers; i++ {
		b = append(b, End)
	}
	return b
}

// Is checks the packet is cmd sent from src to dst.
func (p *Packet) Is(cmd Command, src, dst Address) bool {
	return p.Command == cmd && p.Source == src && p.Destination == dst
}

// Param returns the n-th param or 0 if absent.
func (p *Packet) Param(n int) byte {
	if n < 0 || n >= len(p.Params) {
		return 0
	}
	return p.Params[n]
}

// String implements fmt.Stringer.
func (p *Packet) String() string {
	return fmt.Sprintf("%s %s->%s %v", p.Command, p.Source, p.Destination, p.Params)
}
