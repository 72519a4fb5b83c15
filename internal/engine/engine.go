// Package engine implements the orchestrator owning the tunnel, the
// Arrow framer, the session map, the expected-ACK queue, the protocol
// state machine, and the round-robin egress discipline.
//
// Grounded on the teacher's controller/server.go top-level dispatch
// loop (accept a connection, classify it, hand off to a handler),
// generalized from "TCP accept loop dispatching by configured mode"
// to "tunnel frame loop dispatching by service_id." The single event
// loop below is the sole owner of all mutable engine state; tunnel and
// session I/O happen on dedicated pump goroutines (internal/tunnel,
// internal/session) that only do blocking I/O and report results back
// over channels, which is the idiomatic Go translation of a
// single-threaded reactor loop (see DESIGN.md).
package engine

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/arrow-tunnel/arrow-agent/internal/arrow"
	"github.com/arrow-tunnel/arrow-agent/internal/buffer"
	"github.com/arrow-tunnel/arrow-agent/internal/config"
	"github.com/arrow-tunnel/arrow-agent/internal/control"
	"github.com/arrow-tunnel/arrow-agent/internal/logging"
	"github.com/arrow-tunnel/arrow-agent/internal/reactor"
	"github.com/arrow-tunnel/arrow-agent/internal/session"
	"github.com/arrow-tunnel/arrow-agent/internal/tunnel"
)

// Tuning constants. ConnectionTimeout and TimeoutCheckPeriod are also
// carried as overridable fields on Engine (see connectionTimeout,
// timeoutCheckPeriod) so tests can exercise timeout-driven paths
// without a real multi-second wait; these top-level constants remain
// the production defaults New wires in.
const (
	UpdateCheckPeriod    = 5 * time.Second
	TimeoutCheckPeriod   = 1 * time.Second
	PingPeriod           = 60 * time.Second
	ConnectionTimeout    = 20 * time.Second
	TunnelOutputCapacity = 256 * 1024
	TunnelReadScratch    = 32 * 1024
	TunnelWriteScratch   = 16 * 1024

	// connectFailureTTL bounds how long a dead local service is left
	// out of retry consideration after a failed dial, adapted from the
	// teacher's WAF cache.
	connectFailureTTL = 10 * time.Second
)

// Sentinel error classes. All three are fatal to the engine;
// SessionError never reaches this package's callers because it is
// recovered locally as a HUP (see hupSession).
var (
	ErrTransport = errors.New("engine: transport error")
	ErrProtocol  = errors.New("engine: protocol error")
	ErrTimeout   = errors.New("engine: timeout error")
)

func transportErrf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrTransport}, args...)...)
}

func protocolErrf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrProtocol}, args...)...)
}

// redirectSignal is a normal termination, not a failure: it carries
// the address the supervisor should reconnect to.
type redirectSignal struct{ addr string }

func (r *redirectSignal) Error() string { return "redirect to " + r.addr }

// Command is sent to the external command channel on RESET_SVC_TABLE /
// SCAN_NETWORK.
type Command int

const (
	CommandResetServiceTable Command = iota
	CommandScanNetwork
)

func (c Command) String() string {
	switch c {
	case CommandResetServiceTable:
		return "ResetServiceTable"
	case CommandScanNetwork:
		return "ScanNetwork"
	default:
		return "Unknown"
	}
}

// CommandSender is the external command collaborator: enqueue must be
// thread-safe, since the other end may consume on any thread. A failed
// send hands the command back to the caller so it can log it.
type CommandSender interface {
	Send(cmd Command) error
}

// ConfigSource is the narrow slice of internal/config.FileStore the
// engine depends on, so engine_test.go can fake it without a file on
// disk.
type ConfigSource interface {
	Snapshot() config.Snapshot
}

// ProtocolState tracks whether REGISTER has been acknowledged yet.
type ProtocolState int

const (
	StateHandshake ProtocolState = iota
	StateEstablished
)

func (s ProtocolState) String() string {
	if s == StateEstablished {
		return "Established"
	}
	return "Handshake"
}

type sessionState struct {
	ctx           *session.Context
	writeInFlight bool
}

// Engine is the tunnel engine: the single event loop that owns a
// tunnel connection for its lifetime.
type Engine struct {
	logger    logging.Logger
	configSrc ConfigSource
	commands  CommandSender
	reactorR  *reactor.Reactor

	// dialLocal dials a local service address; overridable by tests.
	dialLocal func(addr string) (net.Conn, error)

	failureCache *cache.Cache

	conn   *tunnel.Tunnel
	framer *arrow.Framer

	state           ProtocolState
	sessions        map[uint32]*sessionState
	sessionOrder    []uint32
	expectedAcks    []uint16
	nextMsgID       uint16
	lastSentVersion uint64

	tunnelOutput        *buffer.Queue
	tunnelWriteTimeout  reactor.Timeout
	ackTimeout          reactor.Timeout
	tunnelWriteInFlight bool
	tunnelWriteReqCh    chan []byte

	sessionReadCh  chan session.ReadEvent
	sessionWriteCh chan session.WriteEvent

	// connectionTimeout and timeoutCheckPeriod default to
	// ConnectionTimeout/TimeoutCheckPeriod in New; tests shrink them to
	// exercise timeout-driven termination without a real multi-second wait.
	connectionTimeout  time.Duration
	timeoutCheckPeriod time.Duration
}

// New builds an Engine. logger, configSrc, commands and r must be non-nil.
func New(logger logging.Logger, configSrc ConfigSource, commands CommandSender, r *reactor.Reactor) *Engine {
	return &Engine{
		logger:             logger,
		configSrc:          configSrc,
		commands:           commands,
		reactorR:           r,
		dialLocal:          defaultDial,
		failureCache:       cache.New(connectFailureTTL, 2*connectFailureTTL),
		connectionTimeout:  ConnectionTimeout,
		timeoutCheckPeriod: TimeoutCheckPeriod,
	}
}

func defaultDial(addr string) (net.Conn, error) {
	d := &net.Dialer{Timeout: 5 * time.Second}
	c, err := d.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetKeepAlive(true)
	}
	return c, nil
}

// Run dials the Arrow tunnel and runs the engine against it until
// termination, returning a redirect target address on normal
// termination or the fatal error otherwise.
func (e *Engine) Run(ctx context.Context, addr string, tlsCfg *tls.Config) (string, error) {
	t, err := tunnel.Dial(ctx, addr, tlsCfg)
	if err != nil {
		return "", transportErrf("dial %s: %v", addr, err)
	}
	return e.RunWithTunnel(ctx, t)
}

// RunWithTunnel runs the engine against an already-established Tunnel
// (real or, in tests, tunnel.Wrap over a net.Pipe()). This split is
// what lets engine_test.go exercise the whole protocol state machine
// without a TLS listener.
func (e *Engine) RunWithTunnel(ctx context.Context, t *tunnel.Tunnel) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.conn = t
	e.framer = arrow.New()
	e.tunnelOutput = buffer.New(TunnelOutputCapacity)
	e.sessions = make(map[uint32]*sessionState)
	e.sessionOrder = nil
	e.expectedAcks = nil
	e.state = StateHandshake
	e.sessionReadCh = make(chan session.ReadEvent, 32)
	e.sessionWriteCh = make(chan session.WriteEvent, 32)

	g, gctx := errgroup.WithContext(ctx)
	tunnelReadCh := make(chan tunnel.ReadEvent, 4)
	tunnelWriteEvCh := make(chan tunnel.WriteEvent, 1)
	tunnelWriteReqCh := make(chan []byte, 1)
	e.tunnelWriteReqCh = tunnelWriteReqCh

	g.Go(func() error { t.RunReadPump(gctx, TunnelReadScratch, tunnelReadCh); return nil })
	g.Go(func() error { t.RunWritePump(gctx, tunnelWriteReqCh, tunnelWriteEvCh); return nil })

	defer func() {
		cancel()
		_ = t.Close()
		for _, s := range e.sessions {
			s.ctx.Close()
		}
		_ = g.Wait()
	}()

	e.beginHandshake()
	e.reactorR.Schedule(reactor.TimerEvent{Kind: reactor.EventTimeoutCheck, Token: reactor.TunnelToken}, e.timeoutCheckPeriod)

	for {
		select {
		case <-ctx.Done():
			return "", transportErrf("context cancelled: %v", ctx.Err())

		case ev := <-tunnelReadCh:
			if ev.Err != nil {
				return "", transportErrf("tunnel read: %v", ev.Err)
			}
			if err := e.handleTunnelData(ev.Data); err != nil {
				var rs *redirectSignal
				if errors.As(err, &rs) {
					return rs.addr, nil
				}
				return "", err
			}

		case ev := <-tunnelWriteEvCh:
			e.tunnelWriteInFlight = false
			if ev.Err != nil {
				return "", transportErrf("tunnel write: %v", ev.Err)
			}
			e.tunnelOutput.Drop(ev.N)
			e.kickWrite()

		case ev := <-e.sessionReadCh:
			e.handleSessionRead(ev)
			e.kickWrite()

		case ev := <-e.sessionWriteCh:
			e.handleSessionWrite(ev)

		case tev := <-e.reactorR.Events():
			if err := e.handleTimer(tev); err != nil {
				return "", err
			}
		}
	}
}

// beginHandshake sends REGISTER and arms the ACK timeout.
func (e *Engine) beginHandshake() {
	snap := e.configSrc.Snapshot()
	id := e.nextID()
	uuidBytes := snap.UUID()
	e.sendControl(control.EncodeRegister(id, [16]byte(uuidBytes), snap.MAC(), snap.Password(), snap.Table().Marshal()))
	e.enqueueExpectedAck(id)
	e.ackTimeout.Set(e.connectionTimeout)
	e.lastSentVersion = snap.Version()
}

// handleTunnelData feeds newly-read bytes through the Arrow framer,
// dispatching every complete frame it yields.
func (e *Engine) handleTunnelData(data []byte) error {
	for len(data) > 0 {
		n, err := e.framer.Feed(data)
		if err != nil {
			return protocolErrf("arrow frame: %v", err)
		}
		data = data[n:]
		if e.framer.IsComplete() {
			msg, _ := e.framer.Message()
			if err := e.dispatchFrame(msg); err != nil {
				return err
			}
			e.framer.Clear()
		}
		if n == 0 {
			return protocolErrf("arrow framer made no progress on %d remaining bytes", len(data))
		}
	}
	return nil
}

func (e *Engine) dispatchFrame(msg arrow.Message) error {
	if msg.ServiceID == 0 {
		return e.dispatchControl(msg.Payload)
	}
	return e.dispatchService(msg)
}

// dispatchControl parses and handles one Control sub-protocol message.
// Only ACK, RESET_SVC_TABLE, SCAN_NETWORK and GET_STATUS are accepted
// before Established; PING, REDIRECT and HUP each gate on Established
// individually inside their own case, since a peer has no reason to
// send them before REGISTER's ACK lands.
func (e *Engine) dispatchControl(raw []byte) error {
	msg, err := control.Parse(raw)
	if err != nil {
		return protocolErrf("control parse: %v", err)
	}
	switch msg.Type {
	case control.TypeACK:
		return e.handleAck(msg)

	case control.TypePING:
		if e.state != StateEstablished {
			return protocolErrf("PING received before Established")
		}
		e.sendControl(control.EncodeAck(msg.MsgID, 0))
		return nil

	case control.TypeREDIRECT:
		if e.state != StateEstablished {
			return protocolErrf("REDIRECT received before Established")
		}
		addr, err := control.DecodeRedirect(msg.Body)
		if err != nil {
			return protocolErrf("REDIRECT: %v", err)
		}
		return &redirectSignal{addr: addr}

	case control.TypeHUP:
		if e.state != StateEstablished {
			return protocolErrf("HUP received before Established")
		}
		sid, _, err := control.DecodeHup(msg.Body)
		if err != nil {
			return protocolErrf("HUP: %v", err)
		}
		e.destroySession(sid)
		return nil

	case control.TypeRESETSVCTABLE:
		e.sendCommand(CommandResetServiceTable)
		return nil

	case control.TypeSCANNETWORK:
		e.sendCommand(CommandScanNetwork)
		return nil

	case control.TypeGETSTATUS:
		reqID, err := control.DecodeGetStatus(msg.Body)
		if err != nil {
			return protocolErrf("GET_STATUS: %v", err)
		}
		var flags uint32
		if e.configSrc.Snapshot().Scanning() {
			flags = control.StatusFlagScan
		}
		e.sendControl(control.EncodeStatus(e.nextID(), control.StatusMessage{
			RequestID:      reqID,
			Flags:          flags,
			ActiveSessions: uint32(len(e.sessions)),
		}))
		return nil

	default:
		return protocolErrf("unknown control message type %v", msg.Type)
	}
}

func (e *Engine) handleAck(msg control.Message) error {
	expected, ok := e.popExpectedAck()
	if !ok {
		return protocolErrf("ACK(msg_id=%d) with no outstanding request", msg.MsgID)
	}
	if expected != msg.MsgID {
		return protocolErrf("ACK out of order: got msg_id=%d, expected %d", msg.MsgID, expected)
	}
	if len(e.expectedAcks) == 0 {
		e.ackTimeout.Clear()
	} else {
		e.ackTimeout.Set(e.connectionTimeout)
	}
	if e.state == StateHandshake {
		code, err := control.DecodeAckError(msg.Body)
		if err != nil {
			return protocolErrf("REGISTER ACK: %v", err)
		}
		if code != 0 {
			return protocolErrf("Arrow REGISTER failed with code %d", code)
		}
		e.state = StateEstablished
		e.logger.Info("arrow tunnel established")
		e.scheduleUpdateCheck()
		e.schedulePing()
	}
	return nil
}

// dispatchService delivers a non-control frame's payload to its
// session, creating the session on first sight if the service table
// allows it.
func (e *Engine) dispatchService(msg arrow.Message) error {
	if e.state != StateEstablished {
		return protocolErrf("service frame (session=%d) received before Established", msg.SessionID)
	}
	sess, ok := e.sessions[msg.SessionID]
	if !ok {
		created, err := e.createSession(msg.ServiceID, msg.SessionID)
		if err != nil {
			return err
		}
		if created == nil {
			// Either no such service, not proxyable, or connect failed:
			// all three are handled (and logged) inside createSession,
			// which already sent HUP or chose to skip silently.
			return nil
		}
		sess = created
	}
	if len(msg.Payload) == 0 {
		return nil
	}
	wasEmpty, err := sess.ctx.EnqueueOutput(msg.Payload)
	if err != nil {
		e.logger.Warn("session output overflow", logging.Uint32("session_id", msg.SessionID), logging.Err(err))
		e.hupSession(sess, 2)
		return nil
	}
	if wasEmpty {
		e.sessionKickWrite(sess)
	}
	return nil
}

// createSession looks up the service, dials it, and wires up the
// session's pump goroutines and timeout-check timer. A nil, nil return
// means the frame was handled terminally (HUP sent, or a recent
// connect failure suppressed retrying) and no session should be looked
// up again for this frame.
func (e *Engine) createSession(serviceID uint16, sessionID uint32) (*sessionState, error) {
	snap := e.configSrc.Snapshot()
	svc, found := snap.Lookup(serviceID)
	if !found || !svc.HasAddress() {
		e.logger.Warn("service frame for unknown/non-proxyable service",
			logging.Uint16("service_id", serviceID), logging.Uint32("session_id", sessionID))
		e.sendControl(control.EncodeHup(e.nextID(), sessionID, 1))
		return nil, nil
	}
	if _, failing := e.failureCache.Get(failureCacheKey(serviceID)); failing {
		return nil, nil
	}
	conn, err := e.dialLocal(svc.Address)
	if err != nil {
		e.logger.Warn("local service connect failed",
			logging.Uint16("service_id", serviceID), logging.Err(err))
		e.failureCache.SetDefault(failureCacheKey(serviceID), true)
		return nil, nil
	}
	sctx := session.New(conn, sessionID, serviceID)
	sess := &sessionState{ctx: sctx}
	e.sessions[sessionID] = sess
	e.sessionOrder = append(e.sessionOrder, sessionID)

	go sctx.RunReadPump(e.sessionReadCh)
	go sctx.RunWritePump(e.sessionWriteCh)

	token := reactor.SessionToken(sessionID)
	e.reactorR.Register(token, true, false)
	e.reactorR.Schedule(reactor.TimerEvent{Kind: reactor.EventTimeoutCheck, Token: token}, e.timeoutCheckPeriod)
	return sess, nil
}

func failureCacheKey(serviceID uint16) string {
	return fmt.Sprintf("svc:%d", serviceID)
}

// destroySession tears down a session without notifying the peer
// (used when HUP arrives from the peer, or the control dispatcher
// already accounted for the notification).
func (e *Engine) destroySession(sessionID uint32) {
	sess, ok := e.sessions[sessionID]
	if !ok {
		return
	}
	sess.ctx.Close()
	delete(e.sessions, sessionID)
	e.reactorR.Deregister(reactor.SessionToken(sessionID))
	for i, id := range e.sessionOrder {
		if id == sessionID {
			e.sessionOrder = append(e.sessionOrder[:i], e.sessionOrder[i+1:]...)
			break
		}
	}
}

// hupSession sends HUP(session_id, code) upstream and destroys the
// session locally.
func (e *Engine) hupSession(sess *sessionState, code uint32) {
	sid := sess.ctx.SessionID
	e.sendControl(control.EncodeHup(e.nextID(), sid, code))
	e.destroySession(sid)
}

func (e *Engine) handleSessionRead(ev session.ReadEvent) {
	sess, ok := e.sessions[ev.SessionID]
	if !ok {
		return
	}
	if ev.Err != nil {
		code := uint32(2)
		if errors.Is(ev.Err, io.EOF) {
			code = 0
		}
		e.hupSession(sess, code)
		return
	}
	if len(ev.Data) > 0 {
		if err := sess.ctx.AppendInput(ev.Data); err != nil {
			// CanAcceptNextRead is checked before every PermitNextRead,
			// so this would indicate a gating bug, not a peer fault.
			e.logger.Warn("session input overflow despite backpressure gate",
				logging.Uint32("session_id", ev.SessionID), logging.Err(err))
			e.hupSession(sess, 2)
			return
		}
	}
	if sess.ctx.CanAcceptNextRead() {
		sess.ctx.PermitNextRead()
	}
}

func (e *Engine) handleSessionWrite(ev session.WriteEvent) {
	sess, ok := e.sessions[ev.SessionID]
	if !ok {
		return
	}
	sess.writeInFlight = false
	if ev.Err != nil {
		e.hupSession(sess, 2)
		return
	}
	sess.ctx.ConsumeOutput(ev.N)
	e.sessionKickWrite(sess)
}

// handleTimer processes a fired reactor timer: periodic config-update
// checks, periodic PINGs, and tunnel/session timeout checks.
func (e *Engine) handleTimer(tev reactor.TimerEvent) error {
	switch tev.Kind {
	case reactor.EventUpdateCheck:
		snap := e.configSrc.Snapshot()
		if snap.Version() > e.lastSentVersion {
			e.sendControl(control.EncodeUpdate(e.nextID(), snap.Table().Marshal()))
			e.lastSentVersion = snap.Version()
		}
		e.scheduleUpdateCheck()
		return nil

	case reactor.EventPing:
		id := e.nextID()
		e.sendControl(control.EncodePing(id))
		e.enqueueExpectedAck(id)
		if !e.ackTimeout.Armed() {
			e.ackTimeout.Set(e.connectionTimeout)
		}
		e.schedulePing()
		return nil

	case reactor.EventTimeoutCheck:
		if tev.Token == reactor.TunnelToken {
			if !e.tunnelWriteTimeout.Check() || !e.ackTimeout.Check() {
				return fmt.Errorf("%w: Arrow Service connection timeout", ErrTimeout)
			}
			e.reactorR.Schedule(reactor.TimerEvent{Kind: reactor.EventTimeoutCheck, Token: reactor.TunnelToken}, e.timeoutCheckPeriod)
			return nil
		}
		sid, ok := reactor.DecodeSessionToken(tev.Token)
		if !ok {
			return nil
		}
		sess, ok := e.sessions[sid]
		if !ok {
			return nil
		}
		if !sess.ctx.WriteTimeout.Check() {
			e.hupSession(sess, 0)
			return nil
		}
		e.reactorR.Schedule(reactor.TimerEvent{Kind: reactor.EventTimeoutCheck, Token: tev.Token}, e.timeoutCheckPeriod)
		return nil
	}
	return nil
}

func (e *Engine) scheduleUpdateCheck() {
	e.reactorR.Schedule(reactor.TimerEvent{Kind: reactor.EventUpdateCheck}, UpdateCheckPeriod)
}

func (e *Engine) schedulePing() {
	e.reactorR.Schedule(reactor.TimerEvent{Kind: reactor.EventPing}, PingPeriod)
}

// sendControl appends an already-encoded ArrowMessage to the tunnel
// output buffer. Control traffic bypasses the round-robin refill
// entirely (that discipline governs only session-data contributions);
// it is enqueued directly and kicks a write if the buffer was idle.
func (e *Engine) sendControl(frame []byte) {
	wasEmpty := e.tunnelOutput.IsEmpty()
	if err := e.tunnelOutput.Write(frame); err != nil {
		e.logger.Warn("tunnel output buffer overflow dropping control message", logging.Err(err))
		return
	}
	if wasEmpty {
		e.kickWrite()
	}
}

func (e *Engine) sendCommand(cmd Command) {
	if err := e.commands.Send(cmd); err != nil {
		e.logger.Warn("command send failed", logging.String("command", cmd.String()), logging.Err(err))
	}
}

// kickWrite is the tunnel-writable handler: refill via round-robin,
// then write as much as the write scratch allows.
func (e *Engine) kickWrite() {
	if e.tunnelWriteInFlight {
		return
	}
	e.refillTunnelOutput()
	if e.tunnelOutput.IsEmpty() {
		e.tunnelWriteTimeout.Clear()
		return
	}
	take := min(e.tunnelOutput.Buffered(), TunnelWriteScratch)
	chunk := append([]byte(nil), e.tunnelOutput.AsBytes()[:take]...)
	e.tunnelWriteInFlight = true
	e.tunnelWriteTimeout.Set(e.connectionTimeout)
	e.tunnelWriteReqCh <- chunk
}

// refillTunnelOutput makes one full round-robin pass over
// sessionOrder, each session contributing up to session.WriteScratch
// bytes, rotating to the tail regardless of contribution, stopping
// early once the output buffer has no more room.
func (e *Engine) refillTunnelOutput() {
	n := len(e.sessionOrder)
	for i := 0; i < n; i++ {
		if e.tunnelOutput.IsFull() {
			return
		}
		id := e.sessionOrder[0]
		e.sessionOrder = append(e.sessionOrder[1:], id)

		sess, ok := e.sessions[id]
		if !ok {
			continue
		}
		avail := sess.ctx.Input.Buffered()
		if avail == 0 {
			continue
		}
		remaining := e.tunnelOutput.Remaining()
		if remaining <= arrow.HeaderSize {
			return
		}
		take := min(avail, session.WriteScratch, remaining-arrow.HeaderSize)
		if take <= 0 {
			continue
		}
		data := append([]byte(nil), sess.ctx.Input.AsBytes()[:take]...)
		sess.ctx.DropInput(take)
		frame := arrow.Encode(sess.ctx.ServiceID, id, data)
		_ = e.tunnelOutput.Write(frame)

		if sess.ctx.CanAcceptNextRead() {
			sess.ctx.PermitNextRead()
		}
	}
}

func (e *Engine) sessionKickWrite(sess *sessionState) {
	if sess.writeInFlight {
		return
	}
	if sess.ctx.Output.IsEmpty() {
		sess.ctx.WriteTimeout.Clear()
		return
	}
	take := min(sess.ctx.Output.Buffered(), session.WriteScratch)
	chunk := append([]byte(nil), sess.ctx.Output.AsBytes()[:take]...)
	sess.writeInFlight = true
	sess.ctx.WriteTimeout.Set(e.connectionTimeout)
	sess.ctx.RequestWrite(chunk)
}

func (e *Engine) nextID() uint16 {
	id := e.nextMsgID
	e.nextMsgID++
	return id
}

func (e *Engine) enqueueExpectedAck(id uint16) {
	e.expectedAcks = append(e.expectedAcks, id)
}

func (e *Engine) popExpectedAck() (uint16, bool) {
	if len(e.expectedAcks) == 0 {
		return 0, false
	}
	id := e.expectedAcks[0]
	e.expectedAcks = e.expectedAcks[1:]
	return id, true
}
