// Package session implements the local TCP socket and staging buffers
// for one multiplexed Arrow session.
//
// Grounded on the teacher's per-connection goroutine model
// (cppla-moto/controller/normal.go, boost.go: dial a local socket,
// pump bytes with io.Copy in a goroutine), generalized from "proxy an
// accepted client conn to one dialed target" to "proxy one remote-
// multiplexed session's frames to one dialed local conn," and adding
// the bounded input buffer and write-timeout the teacher's
// unconditional io.Copy never needed.
package session

import (
	"net"
	"sync"

	"github.com/arrow-tunnel/arrow-agent/internal/buffer"
	"github.com/arrow-tunnel/arrow-agent/internal/reactor"
)

// InputCapacity is the bounded session input buffer size.
const InputCapacity = 256 * 1024

// ReadScratch is the per-Read chunk size.
const ReadScratch = 32 * 1024

// WriteScratch bounds a single egress contribution from a session's
// input buffer into one ArrowMessage.
const WriteScratch = 32 * 1024

// ReadEvent is delivered by RunReadPump for every Read attempt (or the
// terminal error/hangup).
type ReadEvent struct {
	SessionID uint32
	Data      []byte
	Err       error
}

// WriteEvent is delivered by RunWritePump after every Write attempt.
type WriteEvent struct {
	SessionID uint32
	N         int
	Err       error
}

// Context is one session's local socket plus its staging buffers. All
// buffer mutation methods (AppendInput, EnqueueOutput, DropInput,
// ConsumeOutput) are called only from the single engine loop goroutine
// — the pump goroutines below only do blocking socket I/O and hand
// results over channels.
type Context struct {
	SessionID uint32
	ServiceID uint16

	conn net.Conn

	Input        *buffer.Queue
	Output       *buffer.Queue
	WriteTimeout reactor.Timeout

	resumeRead chan struct{}
	writeReq   chan []byte

	closeCh   chan struct{}
	closeOnce sync.Once
}

// New wraps an already-dialed local socket as a session context.
func New(conn net.Conn, sessionID uint32, serviceID uint16) *Context {
	return &Context{
		SessionID:  sessionID,
		ServiceID:  serviceID,
		conn:       conn,
		Input:      buffer.New(InputCapacity),
		Output:     buffer.New(0),
		resumeRead: make(chan struct{}, 1),
		writeReq:   make(chan []byte, 1),
		closeCh:    make(chan struct{}),
	}
}

// CanAcceptNextRead reports whether there is guaranteed room for one
// more full ReadScratch-sized chunk, the condition under which the
// engine re-arms read interest.
func (c *Context) CanAcceptNextRead() bool {
	return c.Input.Remaining() >= ReadScratch
}

// AppendInput appends freshly-read bytes into the input buffer. Called
// only by the engine loop after receiving a ReadEvent.
func (c *Context) AppendInput(data []byte) error {
	return c.Input.Write(data)
}

// DropInput releases n bytes consumed into outgoing ArrowMessages.
func (c *Context) DropInput(n int) {
	c.Input.Drop(n)
}

// EnqueueOutput appends bytes destined for the local socket (payload
// of an inbound service frame). It reports whether the output buffer
// was empty beforehand, the signal the engine uses to decide whether
// to arm the write timeout and request a write.
func (c *Context) EnqueueOutput(data []byte) (wasEmpty bool, err error) {
	wasEmpty = c.Output.IsEmpty()
	err = c.Output.Write(data)
	return wasEmpty, err
}

// ConsumeOutput drops n written bytes from the front of Output.
func (c *Context) ConsumeOutput(n int) {
	c.Output.Drop(n)
}

// RequestWrite hands a chunk to the write pump. Non-blocking relative
// to the engine loop: if the pump is mid-write the call blocks only
// the engine goroutine's invocation of this specific send, which the
// engine only issues when it already knows Output is non-empty and no
// write is outstanding.
func (c *Context) RequestWrite(chunk []byte) {
	select {
	case c.writeReq <- chunk:
	case <-c.closeCh:
	}
}

// PermitNextRead signals the read pump it may attempt another Read,
// reasserting read interest once the input buffer has room again.
func (c *Context) PermitNextRead() {
	select {
	case c.resumeRead <- struct{}{}:
	default:
	}
}

// RunReadPump blocks reading from the local socket, forwarding each
// chunk (or the terminal error) on readEvents, and then waits for
// PermitNextRead before reading again — the backpressure gate that
// lets the engine stop reading a session and let TCP backpressure
// propagate to the local peer.
func (c *Context) RunReadPump(readEvents chan<- ReadEvent) {
	buf := make([]byte, ReadScratch)
	for {
		n, err := c.conn.Read(buf)
		var data []byte
		if n > 0 {
			data = append([]byte(nil), buf[:n]...)
		}
		select {
		case readEvents <- ReadEvent{SessionID: c.SessionID, Data: data, Err: err}:
		case <-c.closeCh:
			return
		}
		if err != nil {
			return
		}
		select {
		case <-c.resumeRead:
		case <-c.closeCh:
			return
		}
	}
}

// RunWritePump waits for chunks requested by the engine and writes
// them to the local socket, reporting results on writeEvents.
func (c *Context) RunWritePump(writeEvents chan<- WriteEvent) {
	for {
		select {
		case chunk, ok := <-c.writeReq:
			if !ok {
				return
			}
			n, err := c.conn.Write(chunk)
			select {
			case writeEvents <- WriteEvent{SessionID: c.SessionID, N: n, Err: err}:
			case <-c.closeCh:
				return
			}
			if err != nil {
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

// Close tears down the local socket and unblocks both pumps. Safe to
// call multiple times.
func (c *Context) Close() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		_ = c.conn.Close()
	})
}
