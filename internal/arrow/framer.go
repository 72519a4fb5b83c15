// Package arrow implements the Arrow wire frame codec:
// service_id/session_id/payload records multiplexed over the tunnel
// byte stream. Header layout mirrors the fixed-header,
// length-prefixed-body shape used throughout the corpus's own
// multiplexing codecs (see other_examples smux/kcp-go frame headers),
// built on encoding/binary rather than a bespoke byte-twiddling parser.
package arrow

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed on-wire header: service_id(2) + session_id(4) + length(4).
const HeaderSize = 10

// MaxPayload bounds a single frame's payload to guard against a
// corrupt or hostile length field forcing unbounded allocation.
const MaxPayload = 1 << 20

// Header is the parsed fixed portion of an ArrowMessage.
type Header struct {
	ServiceID uint16
	SessionID uint32
	Length    uint32
}

// Message is a complete decoded ArrowMessage.
type Message struct {
	Header
	Payload []byte
}

// ErrFrameTooLarge indicates a peer-supplied length exceeds MaxPayload.
var ErrFrameTooLarge = fmt.Errorf("arrow: frame payload exceeds maximum")

// Framer is a streaming single-message-at-a-time parser. Feed is
// called repeatedly with newly-arrived bytes (including single-byte
// increments); it never looks ahead past its own header, and
// IsComplete reports when Header/Body are valid for the current
// message. Clear resets it to accept the next message.
type Framer struct {
	header    [HeaderSize]byte
	headerLen int
	haveHdr   bool

	hdr     Header
	body    []byte
	bodyLen int
	done    bool
}

// New returns a Framer ready to accept the start of a new message.
func New() *Framer {
	return &Framer{}
}

// Feed consumes as much of p as it can use — up to one complete
// message — and returns how many bytes it absorbed. The caller loops,
// feeding the remainder (and checking IsComplete/handling the message
// before calling Clear) until p is exhausted.
func (f *Framer) Feed(p []byte) (consumed int, err error) {
	if f.done {
		return 0, nil
	}
	n := 0
	if !f.haveHdr {
		need := HeaderSize - f.headerLen
		take := min(need, len(p))
		copy(f.header[f.headerLen:], p[:take])
		f.headerLen += take
		n += take
		p = p[take:]
		if f.headerLen < HeaderSize {
			return n, nil
		}
		f.hdr = Header{
			ServiceID: binary.BigEndian.Uint16(f.header[0:2]),
			SessionID: binary.BigEndian.Uint32(f.header[2:6]),
			Length:    binary.BigEndian.Uint32(f.header[6:10]),
		}
		if f.hdr.Length > MaxPayload {
			return n, ErrFrameTooLarge
		}
		f.haveHdr = true
		f.body = make([]byte, f.hdr.Length)
		if f.hdr.Length == 0 {
			f.done = true
			return n, nil
		}
	}
	need := int(f.hdr.Length) - f.bodyLen
	take := min(need, len(p))
	copy(f.body[f.bodyLen:], p[:take])
	f.bodyLen += take
	n += take
	if f.bodyLen == int(f.hdr.Length) {
		f.done = true
	}
	return n, nil
}

// IsComplete reports whether a full header+body has been accumulated.
func (f *Framer) IsComplete() bool { return f.done }

// HeaderView returns the parsed header, valid once the header bytes
// have been accumulated (before the body necessarily completes).
func (f *Framer) HeaderView() (Header, bool) {
	if !f.haveHdr {
		return Header{}, false
	}
	return f.hdr, true
}

// Body returns the accumulated payload once IsComplete is true.
func (f *Framer) Body() ([]byte, bool) {
	if !f.done {
		return nil, false
	}
	return f.body, true
}

// Message returns the full decoded message once complete.
func (f *Framer) Message() (Message, bool) {
	if !f.done {
		return Message{}, false
	}
	return Message{Header: f.hdr, Payload: f.body}, true
}

// Clear resets the framer to accept the next message.
func (f *Framer) Clear() {
	f.headerLen = 0
	f.haveHdr = false
	f.body = nil
	f.bodyLen = 0
	f.done = false
}

// Encode serializes a complete ArrowMessage.
func Encode(serviceID uint16, sessionID uint32, payload []byte) []byte {
	out := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint16(out[0:2], serviceID)
	binary.BigEndian.PutUint32(out[2:6], sessionID)
	binary.BigEndian.PutUint32(out[6:10], uint32(len(payload)))
	copy(out[HeaderSize:], payload)
	return out
}
