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

// Package rlpx implements the RLPx v4 secure transport used by the
// Ethereum peer-to-peer network: an EIP-8 ECIES handshake, a
// continuously-keyed AES-CTR/Keccak-MAC frame codec, a total packet
// registry covering the base devp2p messages and the eth capability,
// and a single-actor-goroutine session state machine that drives a
// connection from Dialing to Active and fans decoded packets out to
// subscribers.
//
// Earlier revisions of this package also multiplexed several
// capabilities over chunked, context-ID-tagged transfers on a single
// connection. That multiplexing is out of scope here: every frame
// carries exactly one complete packet for a single negotiated
// capability set, matching the scope this session core targets.
//
// The protocol specification lives at https://github.com/ethereum/devp2p.
package rlpx
