package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTokenEncoding(t *testing.T) {
	tok := SessionToken(0x000123)
	sid, ok := DecodeSessionToken(tok)
	require.True(t, ok)
	assert.Equal(t, uint32(0x000123), sid)

	_, ok = DecodeSessionToken(TunnelToken)
	assert.False(t, ok, "tunnel token must not decode as a session token")
}

func TestTimeoutCheck(t *testing.T) {
	var to Timeout
	assert.True(t, to.Check(), "unset timeout is always ok")

	to.Set(10 * time.Millisecond)
	assert.True(t, to.Check())
	time.Sleep(20 * time.Millisecond)
	assert.False(t, to.Check())

	to.Clear()
	assert.True(t, to.Check())
}

func TestScheduleFiresOnce(t *testing.T) {
	r := New()
	defer r.Shutdown()

	r.Schedule(TimerEvent{Kind: EventPing}, 5*time.Millisecond)

	select {
	case ev := <-r.Events():
		assert.Equal(t, EventPing, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}

	select {
	case <-r.Events():
		t.Fatal("one-shot timer fired twice")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestRegisterReregisterDeregister(t *testing.T) {
	r := New()
	defer r.Shutdown()

	r.Register(TunnelToken, true, false)
	in, ok := r.Interest(TunnelToken)
	require.True(t, ok)
	assert.True(t, in.Readable)
	assert.False(t, in.Writable)

	r.Reregister(TunnelToken, true, true)
	in, _ = r.Interest(TunnelToken)
	assert.True(t, in.Writable)

	r.Deregister(TunnelToken)
	_, ok = r.Interest(TunnelToken)
	assert.False(t, ok)
}

func TestShutdownStopsDelivery(t *testing.T) {
	r := New()
	r.Schedule(TimerEvent{Kind: EventUpdateCheck}, 50*time.Millisecond)
	r.Shutdown()

	select {
	case <-r.Events():
		t.Fatal("no event should be delivered after shutdown")
	case <-time.After(100 * time.Millisecond):
	}
}
