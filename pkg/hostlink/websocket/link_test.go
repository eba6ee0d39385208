package websocket

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func TestLink(t *testing.T) {
	l := New("")
	srv := httptest.NewServer(l.Handler())
	defer srv.Close()

	conn, err := websocket.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), "", srv.URL)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, websocket.Message.Send(conn, "r 1  a"))

	var tokens []string
	require.Eventually(t, func() bool {
		var ok bool
		tokens, ok = l.PollCommand()
		return ok
	}, time.Second, time.Millisecond)
	require.Equal(t, []string{"r", "1", "a"}, tokens)

	require.NoError(t, l.Reply("512"))
	var reply string
	require.NoError(t, websocket.Message.Receive(conn, &reply))
	require.Equal(t, "512", reply)
}

func TestReplyWithoutCommand(t *testing.T) {
	l := New("")
	require.Error(t, l.Reply("0"))
}
