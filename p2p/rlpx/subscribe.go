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

// This file implements the subscriber fan-out (§4.7): every decoded
// application packet is offered, fire-and-forget, to each registered
// observer, with delivery order preserved per subscriber; a subscriber
// whose buffer is full misses the packet.
package rlpx

import "sync"

// SubscriberToken is an opaque handle returned by Subscribe, used to
// cancel that subscription later.
type SubscriberToken uint64

// subscriber pairs a delivery channel with the goroutine draining it, so
// Unsubscribe can cleanly stop delivery without leaking a goroutine.
type subscriber struct {
	ch   chan Packet
	done chan struct{}
}

// subscriberSet owns the registered subscriber list for one session. It
// is safe for concurrent use: the session's actor goroutine publishes
// while callers on other goroutines subscribe/unsubscribe.
type subscriberSet struct {
	mu     sync.Mutex
	next   SubscriberToken
	subs   map[SubscriberToken]*subscriber
	closed bool
}

func newSubscriberSet() *subscriberSet {
	return &subscriberSet{subs: make(map[SubscriberToken]*subscriber)}
}

// Subscribe registers fn to be called, in order, with the packets this
// session delivers from this point on. fn runs on a dedicated per-
// subscriber goroutine so a slow observer cannot stall the session actor
// or other subscribers; delivery is fire-and-forget (no backpressure to
// the sender, no error return), and a packet is dropped for fn while its
// 64-packet buffer is full (see publish).
func (s *subscriberSet) Subscribe(fn func(Packet)) SubscriberToken {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok := s.next
	s.next++
	sub := &subscriber{
		ch:   make(chan Packet, 64),
		done: make(chan struct{}),
	}
	s.subs[tok] = sub
	go func() {
		defer close(sub.done)
		for pkt := range sub.ch {
			fn(pkt)
		}
	}()
	return tok
}

// Unsubscribe cancels tok. It blocks until the subscriber's goroutine has
// drained any packets already queued for it.
func (s *subscriberSet) Unsubscribe(tok SubscriberToken) {
	s.mu.Lock()
	sub, ok := s.subs[tok]
	if ok {
		delete(s.subs, tok)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	close(sub.ch)
	<-sub.done
}

// publish fans pkt out to every live subscriber. Delivery is best-effort:
// a subscriber whose buffer is full has the packet dropped for it rather
// than blocking the session actor, since fan-out is explicitly
// fire-and-forget.
func (s *subscriberSet) publish(pkt Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, sub := range s.subs {
		select {
		case sub.ch <- pkt:
		default:
		}
	}
}

// closeAll tears down every subscriber, used when the owning session
// reaches Closed.
func (s *subscriberSet) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for tok, sub := range s.subs {
		close(sub.ch)
		delete(s.subs, tok)
	}
}
