package session

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localPipe(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return server, client
}

func TestReadPumpForwardsDataAndGatesOnPermit(t *testing.T) {
	server, client := localPipe(t)
	ctx := New(server, 7, 42)
	defer ctx.Close()

	reads := make(chan ReadEvent, 4)
	go ctx.RunReadPump(reads)

	go func() {
		_, _ = client.Write([]byte("hello"))
	}()

	select {
	case ev := <-reads:
		assert.Equal(t, uint32(7), ev.SessionID)
		assert.Equal(t, []byte("hello"), ev.Data)
		require.NoError(t, ev.Err)
	case <-time.After(time.Second):
		t.Fatal("no read event received")
	}

	// Pump must block waiting for PermitNextRead before reading again.
	select {
	case <-reads:
		t.Fatal("pump read again before permission was granted")
	case <-time.After(50 * time.Millisecond):
	}

	ctx.PermitNextRead()
	go func() {
		_, _ = client.Write([]byte("world"))
	}()
	select {
	case ev := <-reads:
		assert.Equal(t, []byte("world"), ev.Data)
	case <-time.After(time.Second):
		t.Fatal("no second read event after permit")
	}
}

func TestWritePumpWritesRequestedChunks(t *testing.T) {
	server, client := localPipe(t)
	ctx := New(server, 1, 1)
	defer ctx.Close()

	writes := make(chan WriteEvent, 4)
	go ctx.RunWritePump(writes)

	readBuf := make([]byte, 16)
	readDone := make(chan int, 1)
	go func() {
		n, _ := client.Read(readBuf)
		readDone <- n
	}()

	ctx.RequestWrite([]byte("payload"))

	select {
	case ev := <-writes:
		assert.Equal(t, len("payload"), ev.N)
		require.NoError(t, ev.Err)
	case <-time.After(time.Second):
		t.Fatal("no write event")
	}

	select {
	case n := <-readDone:
		assert.Equal(t, []byte("payload"), readBuf[:n])
	case <-time.After(time.Second):
		t.Fatal("peer never observed the write")
	}
}

func TestEnqueueOutputReportsWasEmpty(t *testing.T) {
	server, _ := localPipe(t)
	ctx := New(server, 1, 1)
	defer ctx.Close()

	wasEmpty, err := ctx.EnqueueOutput([]byte("a"))
	require.NoError(t, err)
	assert.True(t, wasEmpty)

	wasEmpty, err = ctx.EnqueueOutput([]byte("b"))
	require.NoError(t, err)
	assert.False(t, wasEmpty)
}

func TestCanAcceptNextReadGatesOnRemainingCapacity(t *testing.T) {
	server, _ := localPipe(t)
	ctx := New(server, 1, 1)
	defer ctx.Close()

	assert.True(t, ctx.CanAcceptNextRead())
	require.NoError(t, ctx.AppendInput(make([]byte, InputCapacity-ReadScratch+1)))
	assert.False(t, ctx.CanAcceptNextRead())

	ctx.DropInput(ReadScratch)
	assert.True(t, ctx.CanAcceptNextRead())
}
