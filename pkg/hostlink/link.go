// Package hostlink carries command lines from the host to the root and
// replies back.
package hostlink

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/golang/glog"
)

// DefaultMaxLine bounds the length of a command line.
const DefaultMaxLine = 64

// ErrClosed indicates the link is closed.
var ErrClosed = errors.New("link closed")

// Link is the host side of the root loop. PollCommand never blocks.
type Link interface {
	PollCommand() ([]string, bool)
	Reply(line string) error
	// Reset drops a partially received command.
	Reset()
}

// Split tokenizes a command line.
func Split(line string) []string {
	return strings.Fields(line)
}

// LineLink reads newline terminated commands from a byte stream.
type LineLink struct {
	ReadWriter io.ReadWriter
	MaxLine    int

	byteCh   chan byte
	line     []byte
	overflow bool
}

// NewLineLink creates a LineLink.
func NewLineLink(rw io.ReadWriter) *LineLink {
	return &LineLink{
		ReadWriter: rw,
		MaxLine:    DefaultMaxLine,
		byteCh:     make(chan byte, 256),
	}
}

// Run reads the stream until it fails or ctx is done.
func (l *LineLink) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go l.readLoop(ctx, errCh)
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *LineLink) readLoop(ctx context.Context, errCh chan error) {
	buf := make([]byte, 64)
	for {
		n, err := l.ReadWriter.Read(buf)
		for _, b := range buf[:n] {
			select {
			case l.byteCh <- b:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errCh <- err
			return
		}
	}
}

// Feed queues bytes as if they were read from the stream.
func (l *LineLink) Feed(data ...byte) {
	for _, b := range data {
		l.byteCh <- b
	}
}

// PollCommand implements Link.
func (l *LineLink) PollCommand() ([]string, bool) {
	for {
		select {
		case b := <-l.byteCh:
			if tokens, ok := l.accept(b); ok {
				return tokens, true
			}
		default:
			return nil, false
		}
	}
}

func (l *LineLink) accept(b byte) ([]string, bool) {
	if b != '\n' && b != '\r' {
		if len(l.line) >= l.MaxLine {
			l.overflow = true
			return nil, false
		}
		l.line = append(l.line, b)
		return nil, false
	}
	line, overflow := string(l.line), l.overflow
	l.Reset()
	if overflow {
		glog.Warningf("host: command longer than %d dropped", l.MaxLine)
		return nil, false
	}
	tokens := Split(line)
	return tokens, len(tokens) > 0
}

// Reply implements Link.
func (l *LineLink) Reply(line string) error {
	_, err := io.WriteString(l.ReadWriter, line+"\n")
	return err
}

// Reset implements Link.
func (l *LineLink) Reset() {
	l.line = l.line[:0]
	l.overflow = false
}

// ChanLink is an in-process Link.
type ChanLink struct {
	Commands chan []string
	Replies  chan string
}

// NewChanLink creates a ChanLink.
func NewChanLink() *ChanLink {
	return &ChanLink{
		Commands: make(chan []string, 16),
		Replies:  make(chan string, 16),
	}
}

// Send queues a command line.
func (l *ChanLink) Send(line string) {
	l.Commands <- Split(line)
}

// PollCommand implements Link.
func (l *ChanLink) PollCommand() ([]string, bool) {
	select {
	case tokens := <-l.Commands:
		return tokens, true
	default:
		return nil, false
	}
}

// Reply implements Link.
func (l *ChanLink) Reply(line string) error {
	select {
	case l.Replies <- line:
		return nil
	default:
		glog.Warningf("host: reply %q dropped", line)
		return nil
	}
}

// Reset implements Link.
func (l *ChanLink) Reset() {}
