package frame

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type parserTestSequence struct {
	in     []byte
	final  ParseResult
	recv   bool
	checks bool
}

type parserTestSequenceBuilder struct {
	seq []parserTestSequence
}

func parserTestSequences() *parserTestSequenceBuilder {
	return &parserTestSequenceBuilder{}
}

func (b *parserTestSequenceBuilder) on(in ...byte) *parserTestSequenceBuilder {
	b.seq = append(b.seq, parserTestSequence{in: in})
	return b
}

func (b *parserTestSequenceBuilder) receiving() *parserTestSequenceBuilder {
	s := &b.seq[len(b.seq)-1]
	s.recv, s.checks = true, true
	return b
}

func (b *parserTestSequenceBuilder) idle() *parserTestSequenceBuilder {
	s := &b.seq[len(b.seq)-1]
	s.recv, s.checks = false, true
	return b
}

func (b *parserTestSequenceBuilder) packet(src, dst Address, cmd Command, params ...byte) *parserTestSequenceBuilder {
	b.seq[len(b.seq)-1].final = ParseResult{Packet: &Packet{Source: src, Destination: dst, Command: cmd, Params: params}}
	return b.idle()
}

func (b *parserTestSequenceBuilder) discarded(err error) *parserTestSequenceBuilder {
	b.seq[len(b.seq)-1].final = ParseResult{Err: err}
	return b.idle()
}

func (b *parserTestSequenceBuilder) build() []parserTestSequence {
	return b.seq
}

func runParserSequences(t *testing.T, p *Parser, seq []parserTestSequence) {
	for n, s := range seq {
		var pr ParseResult
		for i, v := range s.in {
			pr = p.Parse(v)
			if i+1 < len(s.in) {
				require.Nil(t, pr.Packet, fmt.Sprintf("seq %d byte %d", n, i))
				require.NoError(t, pr.Err, fmt.Sprintf("seq %d byte %d", n, i))
			}
		}
		require.Equal(t, s.final, pr, fmt.Sprintf("seq %d", n))
		if s.checks {
			require.Equal(t, s.recv, p.Receiving(), fmt.Sprintf("seq %d", n))
		}
	}
}

func TestParser(t *testing.T) {
	testCases := []struct {
		name string
		seq  []parserTestSequence
	}{
		{
			name: "reply to root",
			seq: parserTestSequences().
				on(Start, Start, 3, 203, 'T', '1', End).packet(3, RootAddress, CmdPing, 'T', '1').
				build(),
		},
		{
			name: "zero bytes do not advance",
			seq: parserTestSequences().
				on(0, 0, Start, 0, 0, Start, 0, 5).receiving().
				on(0, 0, 0, 202, 0, End).packet(5, RootAddress, CmdIDAssignOk).
				build(),
		},
		{
			name: "destination before command",
			seq: parserTestSequences().
				on(Start, Start, 7, 9, 200, End).packet(7, 9, CmdHello).
				build(),
		},
		{
			name: "skip noise before start",
			seq: parserTestSequences().
				on(1, 2, End, 200, 99).idle().
				on(Start, Start, Start, 1, 202, End).packet(1, RootAddress, CmdIDAssignOk).
				build(),
		},
		{
			name: "end before command aborts",
			seq: parserTestSequences().
				on(Start, Start, 4, End).idle().
				on(Start, Start, 4, 203, End).packet(4, RootAddress, CmdPing).
				build(),
		},
		{
			name: "start resyncs",
			seq: parserTestSequences().
				on(Start, Start, 4, 203, 1, 2).receiving().
				on(Start, 5, 202, End).packet(5, RootAddress, CmdIDAssignOk).
				build(),
		},
		{
			name: "redundant end markers",
			seq: parserTestSequences().
				on(Start, Start, 2, 200, End).packet(2, RootAddress, CmdHello).
				on(End, End).idle().
				build(),
		},
		{
			name: "param overrun",
			seq: parserTestSequences().
				on(Start, Start, 2, 203, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10).receiving().
				on(11).discarded(ErrParamOverrun).
				on(12, End).idle().
				on(Start, Start, 2, 203, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, End).packet(2, RootAddress, CmdPing, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10).
				build(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var p Parser
			runParserSequences(t, &p, tc.seq)
		})
	}
}

func TestPositionalParser(t *testing.T) {
	testCases := []struct {
		name string
		seq  []parserTestSequence
	}{
		{
			name: "root hello",
			seq: parserTestSequences().
				on(NewPacket(BlankAddress, CmdHello).Encode(1)...).packet(RootAddress, BlankAddress, CmdHello).
				build(),
		},
		{
			name: "zero param",
			seq: parserTestSequences().
				on(Start, Start, 0, 1, 203, 0, End).packet(RootAddress, 1, CmdPing, 0).
				build(),
		},
		{
			name: "bad command",
			seq: parserTestSequences().
				on(Start, Start, 0, 1, 3).idle().
				build(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := Parser{Positional: true}
			runParserSequences(t, &p, tc.seq)
		})
	}
}

func TestParserRoundTrip(t *testing.T) {
	packets := []*Packet{
		{Source: 1, Destination: RootAddress, Command: CmdHello},
		{Source: 12, Destination: RootAddress, Command: CmdPing, Params: []byte{'2', '3'}},
		{Source: 250, Destination: RootAddress, Command: CmdConfigCleared, Params: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
	}
	for _, pkt := range packets {
		for _, ends := range []int{1, 3} {
			t.Run(fmt.Sprintf("%s/%d", pkt, ends), func(t *testing.T) {
				var p Parser
				var got *Packet
				for _, b := range pkt.Encode(ends) {
					if pr := p.Parse(b); pr.Packet != nil {
						require.Nil(t, got)
						got = pr.Packet
					}
				}
				require.Equal(t, pkt, got)
			})
		}
	}
}
