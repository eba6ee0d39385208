package mqtt

import (
	"github.com/golang/protobuf/proto"
)

// CommandLine is a host command published to <root>/cmd.
type CommandLine struct {
	Seq  uint32 `protobuf:"varint,1,opt,name=seq,proto3" json:"seq,omitempty"`
	Line string `protobuf:"bytes,2,opt,name=line,proto3" json:"line,omitempty"`
}

func (m *CommandLine) Reset()         { *m = CommandLine{} }
func (m *CommandLine) String() string { return proto.CompactTextString(m) }
func (*CommandLine) ProtoMessage()    {}

// ReplyLine is published to <root>/reply for each reply of a command.
type ReplyLine struct {
	Seq  uint32 `protobuf:"varint,1,opt,name=seq,proto3" json:"seq,omitempty"`
	Line string `protobuf:"bytes,2,opt,name=line,proto3" json:"line,omitempty"`
}

func (m *ReplyLine) Reset()         { *m = ReplyLine{} }
func (m *ReplyLine) String() string { return proto.CompactTextString(m) }
func (*ReplyLine) ProtoMessage()    {}

// ModuleInfo describes a module in the inventory.
type ModuleInfo struct {
	Address uint32 `protobuf:"varint,1,opt,name=address,proto3" json:"address,omitempty"`
	How     string `protobuf:"bytes,2,opt,name=how,proto3" json:"how,omitempty"`
	Status  []byte `protobuf:"bytes,3,opt,name=status,proto3" json:"status,omitempty"`
}

func (m *ModuleInfo) Reset()         { *m = ModuleInfo{} }
func (m *ModuleInfo) String() string { return proto.CompactTextString(m) }
func (*ModuleInfo) ProtoMessage()    {}

// Inventory is retained on <root>/modules after every discovery pass.
type Inventory struct {
	Branch    uint32        `protobuf:"varint,1,opt,name=branch,proto3" json:"branch,omitempty"`
	Modules   []*ModuleInfo `protobuf:"bytes,2,rep,name=modules,proto3" json:"modules,omitempty"`
	Rollbacks uint32        `protobuf:"varint,3,opt,name=rollbacks,proto3" json:"rollbacks,omitempty"`
	Error     string        `protobuf:"bytes,4,opt,name=error,proto3" json:"error,omitempty"`
}

func (m *Inventory) Reset()         { *m = Inventory{} }
func (m *Inventory) String() string { return proto.CompactTextString(m) }
func (*Inventory) ProtoMessage()    {}

// RootMeta is retained on <root>/meta while the root is connected.
type RootMeta struct {
	ID       string `protobuf:"bytes,1,opt,name=id,proto3" json:"id,omitempty"`
	Topology string `protobuf:"bytes,2,opt,name=topology,proto3" json:"topology,omitempty"`
	Version  string `protobuf:"bytes,3,opt,name=version,proto3" json:"version,omitempty"`
}

func (m *RootMeta) Reset()         { *m = RootMeta{} }
func (m *RootMeta) String() string { return proto.CompactTextString(m) }
func (*RootMeta) ProtoMessage()    {}
