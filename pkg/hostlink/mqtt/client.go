package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang/protobuf/proto"
)

// DefaultTimeout bounds waiting for replies and retained messages.
const DefaultTimeout = 500 * time.Millisecond

// ErrNoReply indicates the root didn't reply within the timeout, which is
// normal for write commands.
var ErrNoReply = errors.New("no reply")

// Client talks to roots from the host side.
type Client struct {
	Queue   *Queue
	Timeout time.Duration

	seq uint32
}

// NewClient creates a Client and connects it.
func NewClient(brokerURL string) (*Client, error) {
	opts, prefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	c := &Client{Queue: NewQueue(opts, prefix), Timeout: DefaultTimeout}
	token := c.Queue.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}
	return c, nil
}

// Close disconnects.
func (c *Client) Close() error {
	return c.Queue.Close()
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// Roots lists the roots currently retaining their meta.
func (c *Client) Roots(ctx context.Context) ([]*RootMeta, error) {
	metaCh := make(chan *RootMeta, 16)
	sub := c.Queue.Sub("+"+TopicMeta, func(topic string, payload []byte) {
		if len(payload) == 0 {
			return
		}
		meta := &RootMeta{}
		if err := proto.Unmarshal(payload, meta); err != nil {
			return
		}
		if meta.ID == "" {
			meta.ID = strings.TrimSuffix(topic, TopicMeta)
		}
		select {
		case metaCh <- meta:
		case <-time.After(time.Second):
		}
	})
	defer sub.Close()

	var roots []*RootMeta
	timeout := time.After(c.timeout())
	for {
		select {
		case meta := <-metaCh:
			roots = append(roots, meta)
		case <-timeout:
			return roots, nil
		case <-ctx.Done():
			return roots, ctx.Err()
		}
	}
}

// Do sends a command line to root and waits for its reply.
func (c *Client) Do(ctx context.Context, root, line string) (string, error) {
	seq := atomic.AddUint32(&c.seq, 1)
	replyCh := make(chan string, 1)
	sub := c.Queue.Sub(root+TopicReply, func(_ string, payload []byte) {
		var reply ReplyLine
		if err := proto.Unmarshal(payload, &reply); err != nil || reply.Seq != seq {
			return
		}
		select {
		case replyCh <- reply.Line:
		default:
		}
	})
	defer sub.Close()
	sub.Token.Wait()

	payload, err := proto.Marshal(&CommandLine{Seq: seq, Line: line})
	if err != nil {
		return "", err
	}
	token := c.Queue.PubWith(root+TopicCmd, payload, 1, false)
	token.Wait()
	if err := token.Error(); err != nil {
		return "", err
	}
	select {
	case reply := <-replyCh:
		return reply, nil
	case <-time.After(c.timeout()):
		return "", ErrNoReply
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Inventory fetches the retained module inventory of root.
func (c *Client) Inventory(ctx context.Context, root string) (*Inventory, error) {
	invCh := make(chan *Inventory, 1)
	sub := c.Queue.Sub(root+TopicModules, func(_ string, payload []byte) {
		inv := &Inventory{}
		if err := proto.Unmarshal(payload, inv); err != nil {
			return
		}
		select {
		case invCh <- inv:
		default:
		}
	})
	defer sub.Close()
	select {
	case inv := <-invCh:
		return inv, nil
	case <-time.After(c.timeout()):
		return nil, ErrNoReply
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
