package control

import (
	"testing"

	"github.com/arrow-tunnel/arrow-agent/internal/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseArrowThenControl(t *testing.T, wire []byte) Message {
	t.Helper()
	f := arrow.New()
	consumed, err := f.Feed(wire)
	require.NoError(t, err)
	assert.Equal(t, len(wire), consumed)
	require.True(t, f.IsComplete())
	body, ok := f.Body()
	require.True(t, ok)
	msg, err := Parse(body)
	require.NoError(t, err)
	return msg
}

func TestEncodeDecodeAck(t *testing.T) {
	wire := EncodeAck(7, 0)
	msg := parseArrowThenControl(t, wire)
	assert.Equal(t, TypeACK, msg.Type)
	assert.Equal(t, uint16(7), msg.MsgID)
	errCode, err := DecodeAckError(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), errCode)
}

func TestEncodeDecodeHup(t *testing.T) {
	wire := EncodeHup(3, 0x000123, 1)
	msg := parseArrowThenControl(t, wire)
	assert.Equal(t, TypeHUP, msg.Type)
	sid, ec, err := DecodeHup(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x000123), sid)
	assert.Equal(t, uint32(1), ec)
}

func TestEncodeDecodeRegister(t *testing.T) {
	var uuid [16]byte
	var mac [6]byte
	for i := range uuid {
		uuid[i] = byte(i)
	}
	for i := range mac {
		mac[i] = byte(0xA0 + i)
	}
	wire := EncodeRegister(0, uuid, mac, []byte("pw"), []byte("table-blob"))
	msg := parseArrowThenControl(t, wire)
	assert.Equal(t, TypeREGISTER, msg.Type)
	require.Len(t, msg.Body, 16+6+2+len("table-blob"))
	assert.Equal(t, uuid[:], msg.Body[:16])
	assert.Equal(t, mac[:], msg.Body[16:22])
	assert.Equal(t, []byte("pw"), msg.Body[22:24])
	assert.Equal(t, []byte("table-blob"), msg.Body[24:])
}

func TestDecodeRedirect(t *testing.T) {
	body := append([]byte("new.host.example:12345"), 0)
	addr, err := DecodeRedirect(body)
	require.NoError(t, err)
	assert.Equal(t, "new.host.example:12345", addr)
}

func TestDecodeRedirectMissingNul(t *testing.T) {
	_, err := DecodeRedirect([]byte("no-nul-here"))
	assert.Error(t, err)
}

func TestUnknownTypeMapsToSentinel(t *testing.T) {
	wire := wrap(append(encodeHeader(1, Type(0xBEEF)), []byte("x")...))
	msg := parseArrowThenControl(t, wire)
	assert.Equal(t, TypeUnknown, msg.Type)
}

func TestEncodeDecodeStatus(t *testing.T) {
	wire := EncodeStatus(9, StatusMessage{RequestID: 4, Flags: StatusFlagScan, ActiveSessions: 3})
	msg := parseArrowThenControl(t, wire)
	assert.Equal(t, TypeSTATUS, msg.Type)
	require.Len(t, msg.Body, 10)
}
