package frame

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServoFrameBytes(t *testing.T) {
	testCases := []struct {
		name   string
		frame  *ServoFrame
		expect []byte
	}{
		{"write angle", NewServoWrite16(3, OffsetGoalAngle, 512), []byte{0xff, 0xff, 3, 5, 3, 30, 0, 2, 212}},
		{"write power", NewServoWrite(1, OffsetPower, 1), []byte{0xff, 0xff, 1, 4, 3, 24, 1, 0xff - 33}},
		{"read angle", NewServoRead(2, OffsetPresentAngle, 2), []byte{0xff, 0xff, 2, 4, 2, 36, 2, 0xff - 46}},
		{"ping", &ServoFrame{ID: 9, Instruction: ServoPing}, []byte{0xff, 0xff, 9, 2, 1, 0xff - 12}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, tc.frame.Bytes())
			require.Equal(t, tc.expect[3], tc.frame.Length())
		})
	}
}

func TestChecksum(t *testing.T) {
	require.Equal(t, byte(212), Checksum(3, 5, 3, 30, 0, 2))
	require.Equal(t, byte(255), Checksum())
	require.Equal(t, byte(255-(600%256)), Checksum(200, 200, 200))
}

func parseServo(t *testing.T, in []byte) (*ServoPacket, error) {
	var p ServoParser
	var (
		pkt *ServoPacket
		err error
	)
	for _, b := range in {
		pr := p.Parse(b)
		if pr.Packet != nil || pr.Err != nil {
			require.Nil(t, pkt)
			require.NoError(t, err)
			pkt, err = pr.Packet, pr.Err
		}
	}
	return pkt, err
}

func TestServoRoundTrip(t *testing.T) {
	for _, id := range []byte{0, 1, 127, 253} {
		for _, inst := range []Instruction{ServoRead, ServoWrite} {
			for _, values := range [][]byte{{0}, {0xff}, {1, 2}, {0, 0xff}} {
				f := &ServoFrame{ID: id, Instruction: inst, Address: 30, Values: values}
				t.Run(fmt.Sprintf("%d/%s/%v", id, inst, values), func(t *testing.T) {
					pkt, err := parseServo(t, f.Bytes())
					require.NoError(t, err)
					require.NotNil(t, pkt)
					require.Equal(t, f.Length(), pkt.Length)
					decoded, err := ServoFrameFrom(pkt)
					require.NoError(t, err)
					require.Equal(t, f, decoded)
				})
			}
		}
	}
}

func TestServoResponse(t *testing.T) {
	resp := NewServoResponse(4, 0, 0x00, 0x02)
	require.Equal(t, byte(4), resp.Length)
	require.Equal(t, []byte{0xff, 0xff, 4, 4, 0, 0, 2, 0xff - 10}, resp.Bytes())
	require.Equal(t, uint16(512), resp.Uint16())

	pkt, err := parseServo(t, append([]byte{0, 0xff, 1, 0xff}, resp.Bytes()...))
	require.NoError(t, err)
	require.Equal(t, resp, ServoResponseFrom(pkt))
}

func TestServoParserChecksum(t *testing.T) {
	b := NewServoResponse(4, 0, 7).Bytes()
	b[len(b)-1]++
	pkt, err := parseServo(t, b)
	require.Nil(t, pkt)
	require.Equal(t, ErrChecksum, err)
}

func TestServoParserBadLength(t *testing.T) {
	pkt, err := parseServo(t, []byte{0xff, 0xff, 1, 1, 0xff, 0xff, 1, 2, 0, 0xfc})
	require.NoError(t, err)
	require.NotNil(t, pkt)
	require.Equal(t, byte(1), pkt.ID)
	require.Equal(t, byte(2), pkt.Length)
}
