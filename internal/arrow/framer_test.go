package arrow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	wire := Encode(42, 0x000123, []byte("hello"))

	f := New()
	consumed, err := f.Feed(wire)
	require.NoError(t, err)
	assert.Equal(t, len(wire), consumed)
	require.True(t, f.IsComplete())

	msg, ok := f.Message()
	require.True(t, ok)
	assert.Equal(t, uint16(42), msg.ServiceID)
	assert.Equal(t, uint32(0x000123), msg.SessionID)
	assert.Equal(t, []byte("hello"), msg.Payload)
}

func TestFeedOneByteAtATime(t *testing.T) {
	wire := Encode(7, 99, []byte("the quick brown fox"))

	f := New()
	total := 0
	for _, b := range wire {
		n, err := f.Feed([]byte{b})
		require.NoError(t, err)
		total += n
		if f.IsComplete() {
			break
		}
	}
	assert.Equal(t, len(wire), total)
	require.True(t, f.IsComplete())
	msg, ok := f.Message()
	require.True(t, ok)
	assert.Equal(t, uint16(7), msg.ServiceID)
	assert.Equal(t, uint32(99), msg.SessionID)
	assert.Equal(t, []byte("the quick brown fox"), msg.Payload)
}

func TestFeedConsumesOnlyOneMessageWorth(t *testing.T) {
	first := Encode(1, 1, []byte("aa"))
	second := Encode(2, 2, []byte("bb"))
	combined := append(append([]byte{}, first...), second...)

	f := New()
	consumed, err := f.Feed(combined)
	require.NoError(t, err)
	assert.Equal(t, len(first), consumed, "must not consume past the first message")
	require.True(t, f.IsComplete())

	f.Clear()
	consumed2, err := f.Feed(combined[consumed:])
	require.NoError(t, err)
	assert.Equal(t, len(second), consumed2)
	msg, ok := f.Message()
	require.True(t, ok)
	assert.Equal(t, uint16(2), msg.ServiceID)
}

func TestEmptyPayload(t *testing.T) {
	wire := Encode(0, 0, nil)
	f := New()
	consumed, err := f.Feed(wire)
	require.NoError(t, err)
	assert.Equal(t, HeaderSize, consumed)
	require.True(t, f.IsComplete())
	body, ok := f.Body()
	require.True(t, ok)
	assert.Empty(t, body)
}

func TestOversizeFrameRejected(t *testing.T) {
	hdr := Encode(1, 1, nil)
	hdr = hdr[:HeaderSize]
	// overwrite length field with something huge
	hdr[6], hdr[7], hdr[8], hdr[9] = 0x7f, 0xff, 0xff, 0xff

	f := New()
	_, err := f.Feed(hdr)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}
