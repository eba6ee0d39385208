package hostlink

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type bufferRW struct {
	io.Reader
	out bytes.Buffer
}

func (b *bufferRW) Write(p []byte) (int, error) {
	return b.out.Write(p)
}

func TestLineLinkTokens(t *testing.T) {
	testCases := []struct {
		input    string
		commands [][]string
	}{
		{"n\n", [][]string{{"n"}}},
		{"w 3 a 512\r\n", [][]string{{"w", "3", "a", "512"}}},
		{"  r   1 p \n\n\nx\n", [][]string{{"r", "1", "p"}, {"x"}}},
		{"partial", nil},
	}
	for _, tc := range testCases {
		l := NewLineLink(&bufferRW{})
		l.Feed([]byte(tc.input)...)
		var commands [][]string
		for {
			tokens, ok := l.PollCommand()
			if !ok {
				break
			}
			commands = append(commands, tokens)
		}
		require.Equal(t, tc.commands, commands, tc.input)
	}
}

func TestLineLinkReset(t *testing.T) {
	l := NewLineLink(&bufferRW{})
	l.Feed([]byte("w 1 ")...)
	_, ok := l.PollCommand()
	require.False(t, ok)
	l.Reset()
	l.Feed([]byte("n\n")...)
	tokens, ok := l.PollCommand()
	require.True(t, ok)
	require.Equal(t, []string{"n"}, tokens)
}

func TestLineLinkOverflow(t *testing.T) {
	l := NewLineLink(&bufferRW{})
	l.MaxLine = 4
	l.Feed([]byte("w 1 a 512\nn\n")...)
	tokens, ok := l.PollCommand()
	require.True(t, ok)
	require.Equal(t, []string{"n"}, tokens)
}

func TestLineLinkRun(t *testing.T) {
	rw := &bufferRW{Reader: strings.NewReader("r 2 t\n")}
	l := NewLineLink(rw)
	require.Equal(t, io.EOF, l.Run(context.Background()))
	tokens, ok := l.PollCommand()
	require.True(t, ok)
	require.Equal(t, []string{"r", "2", "t"}, tokens)

	require.NoError(t, l.Reply("0"))
	require.Equal(t, "0\n", rw.out.String())
}

func TestChanLink(t *testing.T) {
	l := NewChanLink()
	_, ok := l.PollCommand()
	require.False(t, ok)
	l.Send("w 1 a 10")
	tokens, ok := l.PollCommand()
	require.True(t, ok)
	require.Equal(t, []string{"w", "1", "a", "10"}, tokens)

	require.NoError(t, l.Reply("10"))
	require.Equal(t, "10", <-l.Replies)
}
