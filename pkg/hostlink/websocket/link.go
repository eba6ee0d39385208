// Package websocket serves the host link over websocket, one command line
// per message.
package websocket

import (
	"context"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/servotree/pkg/hostlink"
)

type command struct {
	tokens []string
	conn   *websocket.Conn
}

// Link implements hostlink.Link. Replies go to the connection which sent
// the command being handled.
type Link struct {
	Addr string

	cmdCh   chan command
	lock    sync.Mutex
	current *websocket.Conn
}

// New creates a Link listening on addr.
func New(addr string) *Link {
	return &Link{Addr: addr, cmdCh: make(chan command, 16)}
}

// Handler returns the websocket handler of the link.
func (l *Link) Handler() http.Handler {
	return websocket.Handler(l.serve)
}

// Run serves until ctx is done.
func (l *Link) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", l.Handler())
	srv := &http.Server{Addr: l.Addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	glog.Infof("host: websocket on %s", l.Addr)
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		srv.Close()
		return ctx.Err()
	}
}

func (l *Link) serve(conn *websocket.Conn) {
	defer conn.Close()
	glog.V(2).Infof("host: websocket connected from %s", conn.Request().RemoteAddr)
	for {
		var line string
		if err := websocket.Message.Receive(conn, &line); err != nil {
			glog.V(2).Infof("host: websocket closed: %v", err)
			return
		}
		if tokens := hostlink.Split(line); len(tokens) > 0 {
			l.cmdCh <- command{tokens: tokens, conn: conn}
		}
	}
}

// PollCommand implements hostlink.Link.
func (l *Link) PollCommand() ([]string, bool) {
	select {
	case cmd := <-l.cmdCh:
		l.lock.Lock()
		l.current = cmd.conn
		l.lock.Unlock()
		return cmd.tokens, true
	default:
		return nil, false
	}
}

// Reply implements hostlink.Link.
func (l *Link) Reply(line string) error {
	l.lock.Lock()
	conn := l.current
	l.lock.Unlock()
	if conn == nil {
		return hostlink.ErrClosed
	}
	return websocket.Message.Send(conn, line)
}

// Reset implements hostlink.Link.
func (l *Link) Reset() {}
