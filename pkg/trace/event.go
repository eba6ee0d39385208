// Package trace records bus activity as a stream of CBOR encoded events.
package trace

import (
	"fmt"
	"strings"
	"time"

	"github.com/robotalks/servotree/pkg/l0/bus"
)

// Kind classifies an event.
type Kind uint8

// Kinds.
const (
	KindFrame Kind = iota
	KindMode
	KindDiscovery
	KindError
)

var kindNames = []string{"frame", "mode", "discovery", "error"}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// ParseKind is the reverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for n, name := range kindNames {
		if name == s {
			return Kind(n), nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// Event is one recorded occurrence. Integer keys keep the stream compact.
type Event struct {
	Timestamp time.Time `cbor:"1,keyasint"`
	Session   string    `cbor:"2,keyasint"`
	Seq       uint64    `cbor:"3,keyasint"`
	Kind      Kind      `cbor:"4,keyasint"`

	Frame     *FrameEvent     `cbor:"5,keyasint,omitempty"`
	Mode      *ModeEvent      `cbor:"6,keyasint,omitempty"`
	Discovery *DiscoveryEvent `cbor:"7,keyasint,omitempty"`
	Error     string          `cbor:"8,keyasint,omitempty"`
}

// FrameEvent is a frame on the wire.
type FrameEvent struct {
	Direction bus.Direction `cbor:"1,keyasint"`
	Branch    uint8         `cbor:"2,keyasint,omitempty"`
	Data      []byte        `cbor:"3,keyasint"`
}

// ModeEvent is a mode transition.
type ModeEvent struct {
	From string `cbor:"1,keyasint"`
	To   string `cbor:"2,keyasint"`
}

// DiscoveryEvent is the outcome of an enumeration pass.
type DiscoveryEvent struct {
	Branch    uint8   `cbor:"1,keyasint,omitempty"`
	Modules   []uint8 `cbor:"2,keyasint"`
	Rollbacks int     `cbor:"3,keyasint,omitempty"`
	Conflicts int     `cbor:"4,keyasint,omitempty"`
	Probed    int     `cbor:"5,keyasint,omitempty"`
}

// String formats the event on one line.
func (e *Event) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s #%d %-9s", e.Timestamp.Format("15:04:05.000000"), e.Seq, e.Kind)
	switch {
	case e.Frame != nil:
		fmt.Fprintf(&sb, " %-3s b%d % x", e.Frame.Direction, e.Frame.Branch, e.Frame.Data)
	case e.Mode != nil:
		fmt.Fprintf(&sb, " %s -> %s", e.Mode.From, e.Mode.To)
	case e.Discovery != nil:
		d := e.Discovery
		fmt.Fprintf(&sb, " branch %d modules %v rollbacks %d conflicts %d probed %d",
			d.Branch, d.Modules, d.Rollbacks, d.Conflicts, d.Probed)
	}
	if e.Error != "" {
		fmt.Fprintf(&sb, " error: %s", e.Error)
	}
	return sb.String()
}
