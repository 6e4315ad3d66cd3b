// Copyright 2015 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// This file implements the session state machine: the single actor
// goroutine that drives a connection from Dialing through the handshake
// to Active, enforces the "no application packet before Hello" ordering
// rule, dispatches decoded packets, runs the pinger, and tears
// everything down on Closed.
package rlpx

import (
	"crypto/ecdsa"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// SessionState is one of the five states a session passes through over
// its lifetime. States only move forward; a session closed before the
// Hello exchange goes from FrameReady straight to Closed.
type SessionState int

const (
	Dialing SessionState = iota
	Handshaking
	FrameReady
	Active
	Closed
)

func (s SessionState) String() string {
	switch s {
	case Dialing:
		return "dialing"
	case Handshaking:
		return "handshaking"
	case FrameReady:
		return "frame_ready"
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	pingerInterval       = 2 * time.Second
	deferredResendDelay  = 500 * time.Millisecond
	handshakeReadTimeout = 10 * time.Second

	// maxDeferredSends bounds how many not-yet-Active packet sends may
	// be outstanding at once. Without this, a caller that floods
	// SendPacket before the handshake completes would grow the actor's
	// timer/mailbox state without bound; acquire below simply drops the
	// send (with a log line) once the bound is hit.
	maxDeferredSends = 256
)

// Config configures a session's local identity and advertised
// capabilities. A Config must not be modified after being passed to Dial
// or Listen, and may be reused across many sessions.
type Config struct {
	// Key is the local static secp256k1 identity key. Required.
	Key *ecdsa.PrivateKey

	// P2PVersion is the base-protocol version advertised in Hello.
	P2PVersion uint
	// ClientID is the free-form client identifier string advertised in
	// Hello (e.g. "nodecore/v1.0/linux-amd64/go1.22").
	ClientID string
	// Capabilities lists the subprotocols advertised in Hello.
	Capabilities []Cap
	// ListenPort is advertised in Hello so the remote can dial us back;
	// zero means not listening.
	ListenPort uint64

	// Status, if non-nil, is the packet the pinger sends every interval
	// once the session is Active (§4.6.6). If nil, the pinger sends a
	// base-protocol Ping instead. No Status is built from other Config
	// fields — see DESIGN.md's note on the "Status vs Ping" open question.
	Status *Status
}

// actorCmdKind discriminates the messages funneled through a session's
// single command channel; every external call into the actor (sends,
// subscriptions aside) and every timer firing is modeled as one of
// these, preserving the single-logical-executor requirement.
type actorCmdKind int

const (
	cmdSend actorCmdKind = iota
	cmdDeferredSend
	cmdInbound
	cmdReadErr
	cmdClose
)

type actorCmd struct {
	kind   actorCmdKind
	pkt    Packet
	data   []byte
	err    error
	reason DiscReason
}

// Session owns one RLPx connection: its socket, its derived secrets and
// frame codec, its subscriber list, and the single actor goroutine that
// serializes all access to them.
type Session struct {
	cfg  *Config
	conn net.Conn
	peer Peer

	cmds chan actorCmd
	done chan struct{}

	subs *subscriberSet

	stateMu sync.RWMutex
	state   SessionState

	rw *frameRW

	// outbox bounds the number of packets deferred awaiting Active
	// (§4.6.3), one slot per not-yet-sendable packet.
	outbox *outboxSlots

	// activeCounted records that this session was added to the active
	// sessions gauge, so teardown can subtract it again.
	activeCounted bool

	closeOnce sync.Once
}

// State returns the session's current state. Safe for concurrent use.
func (s *Session) State() SessionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Session) setState(st SessionState) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// Peer returns the identity of the remote endpoint.
func (s *Session) Peer() Peer { return s.peer }

// Subscribe registers fn to receive the packets this session decodes,
// in order, until Unsubscribe is called or the session closes. A packet
// that arrives while fn's delivery buffer is full is dropped for fn.
func (s *Session) Subscribe(fn func(Packet)) SubscriberToken {
	return s.subs.Subscribe(fn)
}

// Unsubscribe cancels a prior Subscribe.
func (s *Session) Unsubscribe(tok SubscriberToken) {
	s.subs.Unsubscribe(tok)
}

// SendPacket enqueues pkt for sending. It never blocks on the network:
// the call returns as soon as the actor has accepted the packet into its
// mailbox, or ErrClosed if the session has already shut down. Whether
// the packet is written immediately or deferred until Hello has been
// exchanged (§4.6.3) is an internal actor decision.
func (s *Session) SendPacket(pkt Packet) error {
	select {
	case <-s.done:
		log.Debug("rlpx: send on closed session, dropping packet", "peer", s.peer, "type", pkt.Type())
		return ErrClosed
	default:
	}
	select {
	case s.cmds <- actorCmd{kind: cmdSend, pkt: pkt}:
		return nil
	case <-s.done:
		log.Debug("rlpx: send on closed session, dropping packet", "peer", s.peer, "type", pkt.Type())
		return ErrClosed
	}
}

// Close gracefully shuts the session down, optionally sending a
// Disconnect with reason first. Close blocks until the actor goroutine
// has exited.
func (s *Session) Close(reason DiscReason) error {
	s.closeOnce.Do(func() {
		select {
		case s.cmds <- actorCmd{kind: cmdClose, reason: reason}:
		case <-s.done:
		}
	})
	<-s.done
	return nil
}

// Dial opens a TCP connection to addr, runs the initiator handshake
// against the remote's known static public key, and starts the session
// actor. It blocks until the handshake completes or fails.
func Dial(addr string, remotePub *ecdsa.PublicKey, cfg *Config) (*Session, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	s, err := newSession(conn, cfg, remotePub)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Listen runs the responder handshake over an already-accepted
// connection and starts the session actor. The caller owns accepting
// connections (e.g. via net.Listener.Accept); Listen handles exactly one
// connection per call.
func Listen(conn net.Conn, cfg *Config) (*Session, error) {
	s, err := newSession(conn, cfg, nil)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// newSession runs Dialing -> Handshaking -> FrameReady synchronously
// (the handshake is a short, bounded exchange, not a long-lived
// suspension point) and then starts the actor goroutine, which carries
// the session from FrameReady to Active and beyond.
func newSession(conn net.Conn, cfg *Config, remotePub *ecdsa.PublicKey) (*Session, error) {
	s := &Session{
		cfg:  cfg,
		conn: conn,
		cmds:   make(chan actorCmd, 16),
		done:   make(chan struct{}),
		subs:   newSubscriberSet(),
		outbox: newOutboxSlots(maxDeferredSends),
	}
	s.setState(Dialing)

	conn.SetDeadline(time.Now().Add(handshakeReadTimeout))
	var (
		sec secrets
		err error
	)
	s.setState(Handshaking)
	if remotePub != nil {
		sec, err = initiatorEncHandshake(conn, cfg.Key, remotePub)
	} else {
		sec, err = receiverEncHandshake(conn, cfg.Key)
	}
	conn.SetDeadline(time.Time{})
	if err != nil {
		handshakeFailMeter.Mark(1)
		return nil, fmt.Errorf("rlpx handshake: %w", err)
	}
	handshakeSuccessMeter.Mark(1)

	rw, err := newFrameRW(sec)
	if err != nil {
		return nil, err
	}
	s.rw = rw

	host, port := splitHostPort(conn.RemoteAddr())
	s.peer = NewPeer(host, port, sec.RemoteID)
	s.setState(FrameReady)

	go s.readLoop()
	go s.run()

	// §4.6.1: the moment secrets exist, our Hello is enqueued — it is
	// always sent immediately regardless of active state, since Hello
	// is the one packet exempt from the pre-active defer rule.
	if err := s.SendPacket(s.localHello()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) localHello() *Hello {
	var nodeID [64]byte
	copy(nodeID[:], exportPubkey(&s.cfg.Key.PublicKey))
	return &Hello{
		Version:    s.cfg.P2PVersion,
		ClientID:   s.cfg.ClientID,
		Caps:       s.cfg.Capabilities,
		ListenPort: s.cfg.ListenPort,
		NodeID:     nodeID,
	}
}

// readLoop feeds raw transport bytes to the actor. It never touches
// session or frameRW state directly: decoding happens on the actor
// goroutine to preserve the single-logical-executor requirement.
func (s *Session) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case s.cmds <- actorCmd{kind: cmdInbound, data: chunk}:
			case <-s.done:
				return
			}
		}
		if err != nil {
			select {
			case s.cmds <- actorCmd{kind: cmdReadErr, err: err}:
			case <-s.done:
			}
			return
		}
	}
}

// run is the session's single actor goroutine: every state read and
// write, every frame encode/decode, and every dispatch happens here.
func (s *Session) run() {
	defer s.teardown()

	pingTimer := time.NewTimer(pingerInterval)
	defer pingTimer.Stop()

	for {
		select {
		case cmd := <-s.cmds:
			switch cmd.kind {
			case cmdSend:
				s.handleSend(cmd.pkt, false)
			case cmdDeferredSend:
				s.handleSend(cmd.pkt, true)
			case cmdInbound:
				if s.handleInbound(cmd.data) {
					return
				}
			case cmdReadErr:
				if cmd.err != io.EOF {
					log.Debug("rlpx: read error", "peer", s.peer, "err", cmd.err)
				}
				return
			case cmdClose:
				s.handleLocalClose(cmd.reason)
				return
			}
		case <-pingTimer.C:
			s.firePinger()
			pingTimer.Reset(pingerInterval)
		}
		if s.State() == Closed {
			return
		}
	}
}

// handleSend implements the send discipline of §4.6.3: Hello is always
// written immediately; every other packet is deferred with a 500ms
// resend until the session is Active. deferred distinguishes a brand
// new send (which must still claim an outbox slot) from a rescheduled
// one (which already holds its slot).
func (s *Session) handleSend(pkt Packet, deferred bool) {
	if s.State() == Closed {
		log.Debug("rlpx: send on closed session, dropping packet", "peer", s.peer, "type", pkt.Type())
		return
	}
	if s.State() != Active && pkt.Type() != HelloMsg {
		if !deferred {
			if err := s.outbox.acquire(1, deferredResendDelay); err != nil {
				log.Warn("rlpx: outbound queue full, dropping packet", "peer", s.peer, "type", pkt.Type())
				return
			}
		}
		s.scheduleDeferredSend(pkt)
		return
	}
	if deferred {
		s.outbox.release(1)
	}
	if err := s.writePacket(pkt); err != nil {
		log.Warn("rlpx: write failed", "peer", s.peer, "err", err)
		s.handleLocalClose(DiscNetworkError)
	}
}

func (s *Session) scheduleDeferredSend(pkt Packet) {
	time.AfterFunc(deferredResendDelay, func() {
		select {
		case s.cmds <- actorCmd{kind: cmdDeferredSend, pkt: pkt}:
		case <-s.done:
		}
	})
}

func (s *Session) writePacket(pkt Packet) error {
	body, err := pkt.EncodeBody()
	if err != nil {
		return err
	}
	frame, err := s.rw.writeFrame(uint64(pkt.Type()), body)
	if err != nil {
		return err
	}
	n, err := s.conn.Write(frame)
	framesSentMeter.Mark(1)
	bytesSentMeter.Mark(int64(n))
	return err
}

// handleInbound implements §4.6.4: in Handshaking any leftover prefix
// bytes already belong to the frame stream (the handshake itself
// consumed its own bytes synchronously in newSession), so from FrameReady
// onward every inbound chunk is just fed to the frame codec.
func (s *Session) handleInbound(data []byte) (closed bool) {
	bytesReceivedMeter.Mark(int64(len(data)))
	pkts, err := s.rw.feed(data)
	framesReceivedMeter.Mark(int64(len(pkts)))
	for _, p := range pkts {
		if s.dispatch(p) {
			return true
		}
	}
	if err != nil {
		log.Debug("rlpx: frame decode error", "peer", s.peer, "err", err)
		s.handleLocalClose(DiscProtocolError)
		return true
	}
	return false
}

// dispatch implements §4.6.5: look the packet up via the registry,
// invoke Handle, apply the resulting action, then fan out to
// subscribers.
func (s *Session) dispatch(raw decodedPacket) (closed bool) {
	pkt, err := DecodePacket(PacketType(raw.Type), raw.Body)
	if err != nil {
		log.Debug("rlpx: unknown packet type", "peer", s.peer, "type", raw.Type)
		return false
	}
	action := pkt.Handle()
	switch action.Kind {
	case ActionActivate:
		s.setState(Active)
		if !s.activeCounted {
			s.activeCounted = true
			activeSessionsGau.Update(activeSessionsGau.Value() + 1)
		}
	case ActionPeerDisconnect:
		s.setState(Closed)
		s.subs.publish(pkt)
		return true
	case ActionDisconnect:
		_ = s.writePacket(&Disconnect{Reason: action.Reason})
		s.setState(Closed)
		s.subs.publish(pkt)
		return true
	case ActionSend:
		s.handleSend(action.Send, false)
	}
	s.subs.publish(pkt)
	return false
}

// firePinger implements §4.6.6: every 2s, if active, send a liveness
// probe. The spec preserves the source repository's behavior of using
// the eth Status packet as that probe when one is configured; with no
// Status configured, a base-protocol Ping is sent instead.
func (s *Session) firePinger() {
	if s.State() != Active {
		return
	}
	if s.cfg.Status != nil {
		status := *s.cfg.Status
		s.handleSend(&status, false)
		return
	}
	s.handleSend(&Ping{}, false)
}

func (s *Session) handleLocalClose(reason DiscReason) {
	if s.State() != Closed {
		if s.State() == Active || s.State() == FrameReady {
			_ = s.writePacket(&Disconnect{Reason: reason})
		}
	}
	s.setState(Closed)
}

// teardown runs exactly once, after run's loop returns for any reason:
// it cancels the pinger (by virtue of run having already exited),
// closes every subscriber channel, closes the socket, and unblocks
// any goroutine waiting in Close.
func (s *Session) teardown() {
	s.setState(Closed)
	if s.activeCounted {
		activeSessionsGau.Update(activeSessionsGau.Value() - 1)
	}
	disconnectsMeter.Mark(1)
	s.subs.closeAll()
	s.conn.Close()
	close(s.done)
}

func splitHostPort(addr net.Addr) (string, int) {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return addr.String(), 0
	}
	return tcpAddr.IP.String(), tcpAddr.Port
}
