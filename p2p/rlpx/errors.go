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

import "errors"

// Handshake errors (§4.3). All are fatal to the session.
var (
	ErrDecryptFailed  = errors.New("rlpx: handshake decrypt failed")
	ErrBadRLP         = errors.New("rlpx: malformed handshake rlp")
	ErrBadSignature   = errors.New("rlpx: bad handshake signature")
	ErrShortRead      = errors.New("rlpx: short read during handshake")
	ErrInvalidLength  = errors.New("rlpx: invalid length")
	ErrProtoViolation = errors.New("rlpx: protocol violation")
)

// Frame errors (§4.4). Fatal; the egress/ingress MAC state is presumed
// tainted once one of these occurs, so the session must close rather than
// attempt to resynchronize.
var (
	ErrMacMismatch  = errors.New("rlpx: mac mismatch")
	ErrFrameTooBig  = errors.New("rlpx: frame size overflows uint24")
	ErrShortFrame   = errors.New("rlpx: incomplete frame")
	ErrBadFrameBody = errors.New("rlpx: malformed frame body")
)

// Session-level errors (§6, §7).
var (
	// ErrClosed is returned by SendPacket and friends once the session
	// has transitioned to Closed.
	ErrClosed = errors.New("rlpx: session closed")
	// ErrNotActive describes a send made before the session is Active.
	// The session defers such sends (§4.6.3) and does not return this
	// error itself.
	ErrNotActive   = errors.New("rlpx: session not active")
	ErrUnknownType = errors.New("rlpx: unknown packet type")
)
