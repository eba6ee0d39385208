package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPacketEncode(t *testing.T) {
	testCases := []struct {
		name   string
		packet *Packet
		ends   int
		expect []byte
	}{
		{"hello tree", NewPacket(BlankAddress, CmdHello), 3, []byte{252, 252, 0, 251, 200, 253, 253, 253}},
		{"hello single", NewPacket(BlankAddress, CmdHello), 1, []byte{252, 252, 0, 251, 200, 253}},
		{"assign", NewPacket(BlankAddress, CmdIDAssign, 4), 3, []byte{252, 252, 0, 251, 201, 4, 253, 253, 253}},
		{"ping", NewPacket(7, CmdPing), 1, []byte{252, 252, 0, 7, 203, 253}},
		{"no end markers", NewPacket(7, CmdPing), 0, []byte{252, 252, 0, 7, 203, 253}},
		{"params truncated", NewPacket(1, CmdPing, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11), 1,
			[]byte{252, 252, 0, 1, 203, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 253}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, tc.packet.Encode(tc.ends))
		})
	}
}

func TestPacketHelpers(t *testing.T) {
	pkt := &Packet{Source: 3, Destination: RootAddress, Command: CmdPing, Params: []byte{'1', '4'}}
	require.True(t, pkt.Is(CmdPing, 3, RootAddress))
	require.False(t, pkt.Is(CmdPing, 4, RootAddress))
	require.False(t, pkt.Is(CmdHello, 3, RootAddress))
	require.Equal(t, byte('1'), pkt.Param(0))
	require.Equal(t, byte('4'), pkt.Param(1))
	require.Equal(t, byte(0), pkt.Param(2))
	require.Equal(t, "ping 3->root [49 52]", pkt.String())
}

func TestAddress(t *testing.T) {
	require.False(t, RootAddress.IsModule())
	require.True(t, Address(1).IsModule())
	require.True(t, MaxModuleAddress.IsModule())
	require.False(t, BlankAddress.IsModule())
	require.False(t, BroadcastAddress.IsModule())
	require.Equal(t, "blank", BlankAddress.String())
	require.Equal(t, "42", Address(42).String())
	require.Equal(t, "cmd(210)", Command(210).String())
}
