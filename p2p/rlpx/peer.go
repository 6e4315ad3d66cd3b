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

package rlpx

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/p2p/enode"
)

// Peer identifies the remote endpoint of a session: (host, port,
// remote_public_key). It is immutable for the lifetime of the session
// that owns it. Node discovery and ENR records themselves are out of
// scope (the core only exposes hooks for them); EnodeID is carried
// purely as a stable logging/metrics key derived the same way enode
// itself derives node identity.
type Peer struct {
	Host string
	Port int

	// PubKey is the 64-byte uncompressed secp256k1 public key of the
	// remote side, without the leading 0x04 format byte.
	PubKey [64]byte

	// EnodeID is enode.PubkeyToIDV4 applied to PubKey, used only as a
	// log/metrics key, never for cryptographic purposes.
	EnodeID enode.ID
}

// NewPeer builds a Peer from a host/port and the remote's ECDSA public
// key.
func NewPeer(host string, port int, pub *ecdsa.PublicKey) Peer {
	var p Peer
	p.Host = host
	p.Port = port
	copy(p.PubKey[:], crypto.FromECDSAPub(pub)[1:])
	p.EnodeID = enode.PubkeyToIDV4(pub)
	return p
}

// PublicKey reconstructs the remote's *ecdsa.PublicKey.
func (p Peer) PublicKey() (*ecdsa.PublicKey, error) {
	return importPublicKey(p.PubKey[:])
}

// ID is a short, log-friendly identifier for the peer: the first 8 bytes
// of its enode identity hash, hex-encoded.
func (p Peer) ID() string {
	return p.EnodeID.String()[:16]
}

// String implements fmt.Stringer for use in log lines.
func (p Peer) String() string {
	return fmt.Sprintf("%s@%s:%d", p.ID(), p.Host, p.Port)
}
