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

// This file implements the packet registry (§4.5): the total mapping from
// a numeric packet type to a typed, RLP (de)serializable record, plus the
// base devp2p packets (Hello/Disconnect/Ping/Pong) every capability rides
// on top of.
package rlpx

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// PacketType is the numeric wire identifier carried as the first RLP item
// of every frame body.
type PacketType uint64

// Base devp2p packet types.
const (
	HelloMsg      PacketType = 0x00
	DisconnectMsg PacketType = 0x01
	PingMsg       PacketType = 0x02
	PongMsg       PacketType = 0x03
)

// ActionKind enumerates the dispositions a decoded packet's Handle method
// can request from the session state machine (§4.5, §4.6.5).
type ActionKind int

const (
	// ActionOK means: no state change, just deliver to subscribers.
	ActionOK ActionKind = iota
	// ActionActivate is returned only by Hello; it flips active=true.
	ActionActivate
	// ActionPeerDisconnect means the remote asked to disconnect; the
	// session moves to Closed and closes the connection.
	ActionPeerDisconnect
	// ActionDisconnect means the session should send a Disconnect
	// packet with Reason and then close.
	ActionDisconnect
	// ActionSend means the session should enqueue Packet for sending
	// (used by Ping's automatic Pong reply).
	ActionSend
)

// PacketAction is returned by Packet.Handle.
type PacketAction struct {
	Kind   ActionKind
	Reason DiscReason
	Send   Packet
}

// Packet is implemented by every record the registry knows how to
// (de)serialize and dispatch.
type Packet interface {
	// Type returns this packet's wire identifier.
	Type() PacketType
	// EncodeBody RLP-encodes the packet's body, excluding the leading
	// packet-type item the frame codec prepends.
	EncodeBody() ([]byte, error)
	// Handle inspects the packet and reports what the session should do
	// in response, beyond ordinary subscriber fan-out.
	Handle() PacketAction
}

type packetFactory func(body []byte) (Packet, error)

var packetRegistry = map[PacketType]packetFactory{}

// registerPacket adds t to the total packet-type mapping. Called from
// package init() for every record this session core knows about; a
// packet type with no factory is "unknown" per §4.5/§7 and is logged and
// dropped rather than treated as fatal.
func registerPacket(t PacketType, f packetFactory) {
	packetRegistry[t] = f
}

// DecodePacket looks up t in the registry and deserializes body into the
// corresponding record. ErrUnknownType is returned (never fatal) for a
// type the registry doesn't cover.
func DecodePacket(t PacketType, body []byte) (Packet, error) {
	f, ok := packetRegistry[t]
	if !ok {
		return nil, fmt.Errorf("%w: %#x", ErrUnknownType, t)
	}
	return f(body)
}

// EncodePacket serializes p into a complete frame body, i.e. the
// type-prefixed RLP stream the frame codec expects as its plaintext.
func EncodePacket(p Packet) (PacketType, []byte, error) {
	body, err := p.EncodeBody()
	if err != nil {
		return 0, nil, err
	}
	return p.Type(), body, nil
}

func init() {
	registerPacket(HelloMsg, func(b []byte) (Packet, error) {
		var h Hello
		if err := rlp.DecodeBytes(b, &h); err != nil {
			return nil, err
		}
		return &h, nil
	})
	registerPacket(DisconnectMsg, func(b []byte) (Packet, error) {
		var d Disconnect
		// Most clients encode the reason as a one-element RLP list;
		// some very old peers send the bare integer. Accept both.
		if err := rlp.DecodeBytes(b, &d); err != nil {
			var bare DiscReason
			if err2 := rlp.DecodeBytes(b, &bare); err2 != nil {
				return nil, err
			}
			d.Reason = bare
		}
		return &d, nil
	})
	registerPacket(PingMsg, func(b []byte) (Packet, error) {
		return &Ping{}, nil
	})
	registerPacket(PongMsg, func(b []byte) (Packet, error) {
		return &Pong{}, nil
	})
}

// Cap names a versioned subprotocol advertised in Hello.
type Cap struct {
	Name    string
	Version uint
}

func (c Cap) String() string { return fmt.Sprintf("%s/%d", c.Name, c.Version) }

// Hello is the very first packet either side may send; §4.6 forbids any
// other application packet from preceding it. Handle always returns
// ActionActivate: it is the only packet record that does.
type Hello struct {
	Version    uint
	ClientID   string
	Caps       []Cap
	ListenPort uint64
	NodeID     [64]byte

	Rest []rlp.RawValue `rlp:"tail"`
}

func (h *Hello) Type() PacketType { return HelloMsg }

func (h *Hello) EncodeBody() ([]byte, error) { return rlp.EncodeToBytes(h) }

func (h *Hello) Handle() PacketAction { return PacketAction{Kind: ActionActivate} }

// DiscReason is the canonical numbered disconnect reason (§4.5).
type DiscReason uint

const (
	DiscRequested DiscReason = iota
	DiscNetworkError
	DiscProtocolError
	DiscUselessPeer
	DiscTooManyPeers
	DiscAlreadyConnected
	DiscIncompatibleVersion
	DiscInvalidIdentity
	DiscQuitting
	DiscUnexpectedIdentity
	DiscSelf
	DiscReadTimeout

	// DiscSubprotocolError is 0x10, not the next sequential value: the
	// canonical devp2p reason table reserves 0x0c-0x0f.
	DiscSubprotocolError DiscReason = 0x10
)

// reasonMessages mirrors the canonical devp2p text for each reason code;
// 0x0c-0x0f are reserved/unused by mainline clients and fall through to
// the default case.
var reasonMessages = map[DiscReason]string{
	DiscRequested:           "disconnect requested",
	DiscNetworkError:        "network error",
	DiscProtocolError:       "breach of protocol",
	DiscUselessPeer:         "useless peer",
	DiscTooManyPeers:        "too many peers",
	DiscAlreadyConnected:    "already connected",
	DiscIncompatibleVersion: "incompatible p2p protocol version",
	DiscInvalidIdentity:     "invalid node identity",
	DiscQuitting:            "client quitting",
	DiscUnexpectedIdentity:  "unexpected identity",
	DiscSelf:                "connected to self",
	DiscReadTimeout:         "read timeout",
	DiscSubprotocolError:    "subprotocol error",
}

// ReasonMessage returns the canonical human-readable text for a
// disconnect reason code, or a generic fallback for unrecognized codes.
func ReasonMessage(code DiscReason) string {
	if msg, ok := reasonMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("unknown disconnect reason %#x", uint(code))
}

func (d DiscReason) Error() string { return ReasonMessage(d) }

func (d DiscReason) String() string { return d.Error() }

// Disconnect notifies the peer (or is received from it) that the session
// is ending and why.
type Disconnect struct {
	Reason DiscReason
}

func (d *Disconnect) Type() PacketType { return DisconnectMsg }

func (d *Disconnect) EncodeBody() ([]byte, error) {
	return rlp.EncodeToBytes([]interface{}{d.Reason})
}

func (d *Disconnect) Handle() PacketAction {
	return PacketAction{Kind: ActionPeerDisconnect}
}

// Ping is the base-protocol liveness probe. Handle replies with Pong;
// §4.6.6 additionally uses the eth Status packet as an application-level
// liveness probe for wire-compat reasons the pinger documents.
type Ping struct{}

func (p *Ping) Type() PacketType           { return PingMsg }
func (p *Ping) EncodeBody() ([]byte, error) { return rlp.EncodeToBytes([]interface{}{}) }
func (p *Ping) Handle() PacketAction        { return PacketAction{Kind: ActionSend, Send: &Pong{}} }

// Pong answers a Ping.
type Pong struct{}

func (p *Pong) Type() PacketType            { return PongMsg }
func (p *Pong) EncodeBody() ([]byte, error) { return rlp.EncodeToBytes([]interface{}{}) }
func (p *Pong) Handle() PacketAction        { return PacketAction{Kind: ActionOK} }
