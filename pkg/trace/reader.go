package trace

import (
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/robotalks/servotree/pkg/l0/bus"
)

// Filter selects events, nil or empty fields match everything.
type Filter struct {
	Session   string
	Kind      *Kind
	Direction *bus.Direction
}

// Match reports whether e passes the filter.
func (f *Filter) Match(e *Event) bool {
	if f.Session != "" && e.Session != f.Session {
		return false
	}
	if f.Kind != nil && e.Kind != *f.Kind {
		return false
	}
	if f.Direction != nil && (e.Frame == nil || e.Frame.Direction != *f.Direction) {
		return false
	}
	return true
}

// Reader iterates the events of a stream.
type Reader struct {
	Filter Filter

	closer  io.Closer
	decoder *cbor.Decoder
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader, filter Filter) *Reader {
	rd := &Reader{Filter: filter, decoder: NewDecoder(r)}
	rd.closer, _ = r.(io.Closer)
	return rd
}

// Open creates a Reader over the file at path.
func Open(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return NewReader(f, filter), nil
}

// Next returns the next matching event or io.EOF.
func (r *Reader) Next() (Event, error) {
	for {
		var e Event
		if err := r.decoder.Decode(&e); err != nil {
			return Event{}, err
		}
		if r.Filter.Match(&e) {
			return e, nil
		}
	}
}

// Close closes the underlying reader if it is a Closer.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
