package frame

// Parser decodes control plane frames one byte at a time.
//
// By default the parser reads the line the way the root polls it: a zero
// byte is "nothing received yet" and never advances the state, and the
// destination is whatever non-zero address precedes the command byte,
// defaulting to RootAddress. Set Positional when zero bytes are real data
// and every field is at its fixed position.
type Parser struct {
	Positional bool

	state  parseState
	packet *Packet
}

// ParseResult indicates the result after one parsing step.
type ParseResult struct {
	// Packet is set when a frame completes.
	Packet *Packet
	// Err is set when a frame is discarded.
	Err error
}

type parseState int

const (
	stateAwaitStart      parseState = iota // waiting for the first START
	stateAwaitSource                       // START seen, waiting for source
	stateAwaitDest                         // positional only, waiting for destination
	stateAwaitCommand                      // waiting for a byte in command space
	stateAwaitParamOrEnd                   // collecting params until END
)

// Receiving indicates a frame is partially received.
func (p *Parser) Receiving() bool {
	return p.state != stateAwaitStart
}

// Reset drops any partially received frame.
func (p *Parser) Reset() {
	p.state, p.packet = stateAwaitStart, nil
}

// Parse consumes one byte.
func (p *Parser) Parse(b byte) (pr ParseResult) {
	if b == 0 && !p.Positional {
		return
	}
	switch p.state {
	case stateAwaitStart:
		if b == Start {
			p.state = stateAwaitSource
		}
	case stateAwaitSource:
		switch b {
		case Start:
		case End:
			p.Reset()
		default:
			p.packet = &Packet{Source: Address(b), Destination: RootAddress}
			if p.Positional {
				p.state = stateAwaitDest
			} else {
				p.state = stateAwaitCommand
			}
		}
	case stateAwaitDest:
		p.packet.Destination = Address(b)
		p.state = stateAwaitCommand
	case stateAwaitCommand:
		switch {
		case b == Start:
			p.resync()
		case b == End:
			p.Reset()
		case Command(b) >= CommandSpace:
			p.packet.Command = Command(b)
			p.state = stateAwaitParamOrEnd
		case p.Positional:
			p.Reset()
		default:
			p.packet.Destination = Address(b)
		}
	case stateAwaitParamOrEnd:
		switch b {
		case End:
			pr.Packet, p.packet = p.packet, nil
			p.state = stateAwaitStart
		case Start:
			p.resync()
		default:
			if len(p.packet.Params) >= MaxParams {
				p.Reset()
				pr.Err = ErrParamOverrun
				return
			}
			p.packet.Params = append(p.packet.Params, b)
		}
	}
	return
}

func (p *Parser) resync() {
	p.state, p.packet = stateAwaitSource, nil
}
