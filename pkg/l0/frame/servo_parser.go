package frame

// ServoParser decodes servo frames one byte at a time.
// Unlike the control plane, zero bytes are data.
type ServoParser struct {
	state  servoState
	packet *ServoPacket
	remain int
}

// ServoParseResult indicates the result after one parsing step.
type ServoParseResult struct {
	Packet *ServoPacket
	Err    error
	// Unverified is the complete frame which failed checksum.
	Unverified *ServoPacket
}

type servoState int

const (
	servoHeader1 servoState = iota
	servoHeader2
	servoID
	servoLength
	servoCode
	servoParams
	servoChecksum
)

// Reset drops any partially received frame.
func (p *ServoParser) Reset() {
	p.state, p.packet, p.remain = servoHeader1, nil, 0
}

// Parse consumes one byte.
func (p *ServoParser) Parse(b byte) (pr ServoParseResult) {
	switch p.state {
	case servoHeader1:
		if b == ServoHeader {
			p.state = servoHeader2
		}
	case servoHeader2:
		if b == ServoHeader {
			p.state = servoID
		} else {
			p.Reset()
		}
	case servoID:
		// extra header bytes are padding, 0xff is never an ID.
		if b != ServoHeader {
			p.packet = &ServoPacket{ID: b}
			p.state = servoLength
		}
	case servoLength:
		if b < 2 {
			p.Reset()
			return
		}
		p.packet.Length, p.remain = b, int(b)-2
		p.state = servoCode
	case servoCode:
		p.packet.Code = b
		if p.remain == 0 {
			p.state = servoChecksum
		} else {
			p.packet.Params = make([]byte, 0, p.remain)
			p.state = servoParams
		}
	case servoParams:
		p.packet.Params = append(p.packet.Params, b)
		if p.remain--; p.remain == 0 {
			p.state = servoChecksum
		}
	case servoChecksum:
		pkt := p.packet
		pkt.Checksum = b
		p.Reset()
		if err := pkt.Verify(); err != nil {
			pr.Err, pr.Unverified = err, pkt
			return
		}
		pr.Packet = pkt
	}
	return
}
