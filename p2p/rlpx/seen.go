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
	lru "github.com/hashicorp/golang-lru"
)

// SeenPeers is a bounded, diagnostic-only record of recently handshaked
// peer identities. It exists so a long-running listener can tell a fresh
// inbound connection from a peer that reconnected a moment ago (useful in
// logs and the CLI's status output); it has no bearing on the protocol
// itself and makes no anti-replay claim.
type SeenPeers struct {
	cache *lru.Cache
}

// NewSeenPeers builds a cache holding up to size recent peer IDs.
func NewSeenPeers(size int) (*SeenPeers, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &SeenPeers{cache: c}, nil
}

// Record marks p as seen, returning true if this is the first time this
// process has seen that peer ID (false if it was already in the cache,
// i.e. a reconnect within the cache's retention window).
func (s *SeenPeers) Record(p Peer) (first bool) {
	id := p.EnodeID
	if s.cache.Contains(id) {
		s.cache.Get(id)
		return false
	}
	s.cache.Add(id, p)
	return true
}

// Len returns the number of distinct peer IDs currently cached.
func (s *SeenPeers) Len() int {
	return s.cache.Len()
}
