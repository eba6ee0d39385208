package trace

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/robotalks/servotree/pkg/l0/bus"
	"github.com/robotalks/servotree/pkg/l0/discovery"
	"github.com/robotalks/servotree/pkg/l0/periph"
)

// Sink receives events.
type Sink interface {
	Log(e Event)
}

// StreamSink encodes events to a writer. It is safe for concurrent use.
type StreamSink struct {
	closer  io.Closer
	encoder *cbor.Encoder
	lock    sync.Mutex
	closed  bool
}

// NewStreamSink creates a StreamSink writing to w.
func NewStreamSink(w io.Writer) *StreamSink {
	s := &StreamSink{encoder: NewEncoder(w)}
	s.closer, _ = w.(io.Closer)
	return s
}

// Create opens path for appending events.
func Create(path string) (*StreamSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return NewStreamSink(f), nil
}

// Log implements Sink.
func (s *StreamSink) Log(e Event) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return
	}
	if err := s.encoder.Encode(e); err != nil {
		glog.Warningf("trace: %v", err)
	}
}

// Close closes the underlying writer if it is a Closer.
func (s *StreamSink) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// Buffer keeps events in memory.
type Buffer struct {
	lock   sync.Mutex
	events []Event
}

// Log implements Sink.
func (b *Buffer) Log(e Event) {
	b.lock.Lock()
	b.events = append(b.events, e)
	b.lock.Unlock()
}

// Events returns the events logged so far.
func (b *Buffer) Events() []Event {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]Event(nil), b.events...)
}

// Recorder turns bus and discovery notifications into events.
// It implements bus.Tracer and discovery.Observer.
type Recorder struct {
	Sink    Sink
	Session string
	Now     func() time.Time

	seq uint64
}

// NewRecorder creates a Recorder with a new session id.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{Sink: sink, Session: uuid.NewString(), Now: time.Now}
}

func (r *Recorder) log(e Event) {
	e.Timestamp = r.Now()
	e.Session = r.Session
	e.Seq = atomic.AddUint64(&r.seq, 1)
	r.Sink.Log(e)
}

// TraceFrame implements bus.Tracer.
func (r *Recorder) TraceFrame(dir bus.Direction, branch periph.Branch, data []byte) {
	r.log(Event{
		Kind:  KindFrame,
		Frame: &FrameEvent{Direction: dir, Branch: uint8(branch), Data: append([]byte(nil), data...)},
	})
}

// TraceMode implements bus.Tracer.
func (r *Recorder) TraceMode(from, to bus.Mode, err error) {
	e := Event{Kind: KindMode, Mode: &ModeEvent{From: from.String(), To: to.String()}}
	if err != nil {
		e.Kind, e.Error = KindError, err.Error()
	}
	r.log(e)
}

// DiscoveryDone implements discovery.Observer.
func (r *Recorder) DiscoveryDone(res *discovery.Result) {
	d := &DiscoveryEvent{
		Branch:    uint8(res.Branch),
		Modules:   []uint8{},
		Rollbacks: res.Rollbacks,
		Conflicts: res.Conflicts,
		Probed:    res.Probed,
	}
	for _, m := range res.Modules {
		d.Modules = append(d.Modules, uint8(m.Address))
	}
	e := Event{Kind: KindDiscovery, Discovery: d}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}
	r.log(e)
}
