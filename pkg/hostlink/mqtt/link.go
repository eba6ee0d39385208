// Package mqtt carries host commands and replies over an MQTT broker.
//
// A root with id ID uses the topics, all under the URL path prefix:
//
//	ID/cmd      CommandLine from hosts
//	ID/reply    ReplyLine from the root
//	ID/modules  retained Inventory
//	ID/meta     retained RootMeta, cleared by the will
package mqtt

import (
	"context"
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/servotree/pkg/hostlink"
	"github.com/robotalks/servotree/pkg/l0/discovery"
)

// Topic suffixes.
const (
	TopicCmd     = "/cmd"
	TopicReply   = "/reply"
	TopicModules = "/modules"
	TopicMeta    = "/meta"
)

// RootID identifies this machine.
func RootID() string {
	id, err := machineid.ID()
	if err == nil {
		return id
	}
	glog.Warningf("machine id: %v", err)
	if id, err = os.Hostname(); err == nil {
		return id
	}
	return "servotree"
}

// Link implements hostlink.Link and discovery.Observer.
type Link struct {
	Queue     *Queue
	Publisher Publisher
	Meta      RootMeta

	cmdCh chan *CommandLine
	seq   uint32
}

func newLink(pub Publisher, meta RootMeta) *Link {
	return &Link{Publisher: pub, Meta: meta, cmdCh: make(chan *CommandLine, 16)}
}

// NewLink creates a Link connecting to brokerURL. An empty meta.ID is
// replaced by RootID.
func NewLink(brokerURL string, meta RootMeta) (*Link, error) {
	if meta.ID == "" {
		meta.ID = RootID()
	}
	opts, prefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(prefix+meta.ID+TopicMeta, nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("servotree:" + meta.ID)
	}
	q := NewQueue(opts, prefix)
	l := newLink(q, meta)
	l.Queue = q
	q.OnConnect = func(*Queue) { l.publishMeta() }
	return l, nil
}

// Run keeps the link connected until ctx is done.
func (l *Link) Run(ctx context.Context) error {
	sub := l.Queue.Sub(l.Meta.ID+TopicCmd, l.handleCommand)
	l.Queue.Connect()
	<-ctx.Done()
	l.Queue.PubWith(l.Meta.ID+TopicMeta, nil, 1, true).Wait()
	sub.Close()
	return l.Queue.Close()
}

func (l *Link) publishMeta() {
	payload, err := proto.Marshal(&l.Meta)
	if err != nil {
		glog.Errorf("mqtt: meta: %v", err)
		return
	}
	l.Publisher.PubWith(l.Meta.ID+TopicMeta, payload, 1, true)
}

func (l *Link) handleCommand(_ string, payload []byte) {
	var cmd CommandLine
	if err := proto.Unmarshal(payload, &cmd); err != nil {
		glog.Warningf("mqtt: bad command: %v", err)
		return
	}
	select {
	case l.cmdCh <- &cmd:
	default:
		glog.Warningf("mqtt: command %q dropped", cmd.Line)
	}
}

// PollCommand implements hostlink.Link.
func (l *Link) PollCommand() ([]string, bool) {
	for {
		select {
		case cmd := <-l.cmdCh:
			if tokens := hostlink.Split(cmd.Line); len(tokens) > 0 {
				l.seq = cmd.Seq
				return tokens, true
			}
		default:
			return nil, false
		}
	}
}

// Reply implements hostlink.Link.
func (l *Link) Reply(line string) error {
	payload, err := proto.Marshal(&ReplyLine{Seq: l.seq, Line: line})
	if err != nil {
		return err
	}
	token := l.Publisher.PubWith(l.Meta.ID+TopicReply, payload, 1, false)
	token.Wait()
	return token.Error()
}

// Reset implements hostlink.Link.
func (l *Link) Reset() {}

// DiscoveryDone implements discovery.Observer by retaining the inventory.
func (l *Link) DiscoveryDone(r *discovery.Result) {
	inv := &Inventory{Branch: uint32(r.Branch), Rollbacks: uint32(r.Rollbacks)}
	if r.Err != nil {
		inv.Error = r.Err.Error()
	}
	for _, m := range r.Modules {
		inv.Modules = append(inv.Modules, &ModuleInfo{
			Address: uint32(m.Address),
			How:     m.How.String(),
			Status:  m.Status,
		})
	}
	payload, err := proto.Marshal(inv)
	if err != nil {
		glog.Errorf("mqtt: inventory: %v", err)
		return
	}
	l.Publisher.PubWith(l.Meta.ID+TopicModules, payload, 1, true)
}
