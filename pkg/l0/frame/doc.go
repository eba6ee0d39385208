// Package frame implements the wire formats spoken on the servo bus.
package frame

// Two framings share the same half-duplex line.
//
// Control plane, used between the root and the modules for enumeration
// and status:
//
//	START START SRC DST CMD [PARAM...] END [END END]
//
// START and END are reserved byte values, CMD is always in the reserved
// command space (>= 200) and a frame carries at most MaxParams params.
// A zero byte never carries information on the control plane; receivers
// poll a line that reads zero while idle.
//
// Servo plane, used to read and write servo memory:
//
//	0xFF 0xFF ID LEN CODE [PARAM...] CHECKSUM
//
// CODE is the instruction in a request and the error status in a reply,
// LEN counts CODE, the params and the checksum, and the checksum is the
// complement of the byte sum from ID through the last param.
