// Package control implements the Control sub-protocol codec carried
// inside ArrowMessages with service_id=0. Like internal/arrow, the
// header is fixed-width and decoded with encoding/binary, the idiom
// the corpus itself uses for this shape of wire framing.
package control

import (
	"encoding/binary"
	"fmt"

	"github.com/arrow-tunnel/arrow-agent/internal/arrow"
)

// Type enumerates the Control sub-protocol message types.
type Type uint16

const (
	TypeACK Type = iota + 1
	TypePING
	TypeREGISTER
	TypeUPDATE
	TypeREDIRECT
	TypeHUP
	TypeRESETSVCTABLE
	TypeSCANNETWORK
	TypeGETSTATUS
	TypeSTATUS
	// TypeUnknown never appears on the wire; Parse maps any
	// unrecognized numeric code to it so the engine can reject it
	// uniformly instead of silently ignoring it.
	TypeUnknown Type = 0xFFFF
)

func (t Type) String() string {
	switch t {
	case TypeACK:
		return "ACK"
	case TypePING:
		return "PING"
	case TypeREGISTER:
		return "REGISTER"
	case TypeUPDATE:
		return "UPDATE"
	case TypeREDIRECT:
		return "REDIRECT"
	case TypeHUP:
		return "HUP"
	case TypeRESETSVCTABLE:
		return "RESET_SVC_TABLE"
	case TypeSCANNETWORK:
		return "SCAN_NETWORK"
	case TypeGETSTATUS:
		return "GET_STATUS"
	case TypeSTATUS:
		return "STATUS"
	default:
		return "UNKNOWN"
	}
}

// headerSize is msg_id(2) + message_type(2).
const headerSize = 4

// StatusFlagScan marks a STATUS reply as reported while a network scan
// is in progress.
const StatusFlagScan uint32 = 0x00000001

// Header is the parsed fixed portion of a ControlMessage.
type Header struct {
	MsgID uint16
	Type  Type
}

// Message is a fully decoded ControlMessage.
type Message struct {
	Header
	Body []byte
}

var errShortHeader = fmt.Errorf("control: message shorter than header")

// Parse decodes a ControlMessage from an ArrowMessage payload (the
// part of the frame after the service_id=0/session_id=0 arrow header).
// Any numeric type code not in the known set decodes to TypeUnknown;
// the engine, not this codec, decides that is fatal.
func Parse(payload []byte) (Message, error) {
	if len(payload) < headerSize {
		return Message{}, errShortHeader
	}
	msgID := binary.BigEndian.Uint16(payload[0:2])
	rawType := binary.BigEndian.Uint16(payload[2:4])
	t := Type(rawType)
	if !t.known() {
		t = TypeUnknown
	}
	body := payload[headerSize:]
	return Message{Header: Header{MsgID: msgID, Type: t}, Body: body}, nil
}

func (t Type) known() bool {
	switch t {
	case TypeACK, TypePING, TypeREGISTER, TypeUPDATE, TypeREDIRECT, TypeHUP,
		TypeRESETSVCTABLE, TypeSCANNETWORK, TypeGETSTATUS, TypeSTATUS:
		return true
	default:
		return false
	}
}

func encodeHeader(msgID uint16, t Type) []byte {
	h := make([]byte, headerSize)
	binary.BigEndian.PutUint16(h[0:2], msgID)
	binary.BigEndian.PutUint16(h[2:4], uint16(t))
	return h
}

// wrap packages a Control payload into a whole ArrowMessage, always
// service_id=0/session_id=0.
func wrap(payload []byte) []byte {
	return arrow.Encode(0, 0, payload)
}

// EncodeRegister builds a REGISTER ArrowMessage.
func EncodeRegister(msgID uint16, uuid [16]byte, mac [6]byte, password []byte, serviceTable []byte) []byte {
	body := make([]byte, 0, 16+6+len(password)+len(serviceTable))
	body = append(body, uuid[:]...)
	body = append(body, mac[:]...)
	body = append(body, password...)
	body = append(body, serviceTable...)
	return wrap(append(encodeHeader(msgID, TypeREGISTER), body...))
}

// EncodeUpdate builds an UPDATE ArrowMessage carrying the serialized
// service table.
func EncodeUpdate(msgID uint16, serviceTable []byte) []byte {
	return wrap(append(encodeHeader(msgID, TypeUPDATE), serviceTable...))
}

// EncodePing builds a PING ArrowMessage.
func EncodePing(msgID uint16) []byte {
	return wrap(encodeHeader(msgID, TypePING))
}

// EncodeAck builds an ACK ArrowMessage with a 4-byte error_code body.
func EncodeAck(msgID uint16, errorCode uint32) []byte {
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, errorCode)
	return wrap(append(encodeHeader(msgID, TypeACK), body...))
}

// EncodeHup builds a HUP ArrowMessage with {session_id, error_code} body.
func EncodeHup(msgID uint16, sessionID uint32, errorCode uint32) []byte {
	body := make([]byte, 8)
	binary.BigEndian.PutUint32(body[0:4], sessionID)
	binary.BigEndian.PutUint32(body[4:8], errorCode)
	return wrap(append(encodeHeader(msgID, TypeHUP), body...))
}

// StatusMessage is the decoded/encoded STATUS payload.
type StatusMessage struct {
	RequestID      uint16
	Flags          uint32
	ActiveSessions uint32
}

// EncodeStatus builds a STATUS ArrowMessage.
func EncodeStatus(msgID uint16, status StatusMessage) []byte {
	body := make([]byte, 10)
	binary.BigEndian.PutUint16(body[0:2], status.RequestID)
	binary.BigEndian.PutUint32(body[2:6], status.Flags)
	binary.BigEndian.PutUint32(body[6:10], status.ActiveSessions)
	return wrap(append(encodeHeader(msgID, TypeSTATUS), body...))
}

// DecodeAckError reads the error_code out of an ACK body.
func DecodeAckError(body []byte) (uint32, error) {
	if len(body) < 4 {
		return 0, fmt.Errorf("control: ACK body too short")
	}
	return binary.BigEndian.Uint32(body[0:4]), nil
}

// DecodeHup reads {session_id, error_code} out of a HUP body.
func DecodeHup(body []byte) (sessionID uint32, errorCode uint32, err error) {
	if len(body) < 8 {
		return 0, 0, fmt.Errorf("control: HUP body too short")
	}
	return binary.BigEndian.Uint32(body[0:4]), binary.BigEndian.Uint32(body[4:8]), nil
}

// DecodeRedirect reads the NUL-terminated UTF-8 address out of a
// REDIRECT body.
func DecodeRedirect(body []byte) (string, error) {
	for i, b := range body {
		if b == 0 {
			return string(body[:i]), nil
		}
	}
	return "", fmt.Errorf("control: REDIRECT body missing NUL terminator")
}

// DecodeGetStatus reads the request_id out of a GET_STATUS body (the
// same leading field STATUS echoes back as request_id).
func DecodeGetStatus(body []byte) (requestID uint16, err error) {
	if len(body) < 2 {
		return 0, fmt.Errorf("control: GET_STATUS body too short")
	}
	return binary.BigEndian.Uint16(body[0:2]), nil
}
