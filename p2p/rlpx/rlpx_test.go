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

// This file exercises the session state machine end to end over an
// in-process duplex pipe: handshake -> Hello exchange -> Active, the
// pre-Hello send-ordering guarantee, and a graceful Disconnect.
package rlpx

import (
	"math/big"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T, clientID string) *Config {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &Config{
		Key:          key,
		P2PVersion:   5,
		ClientID:     clientID,
		Capabilities: []Cap{{Name: "eth", Version: 68}},
	}
}

// dialedPair establishes two sessions over net.Pipe without going through
// a real TCP listener: one running the initiator handshake, one running
// the responder handshake, just as Dial/Listen would over a socket.
func dialedPair(t *testing.T) (dialer, listener *Session) {
	t.Helper()
	cfgA := newTestConfig(t, "nodecore/testA")
	cfgB := newTestConfig(t, "nodecore/testB")

	connA, connB := net.Pipe()

	type result struct {
		sess *Session
		err  error
	}
	chA := make(chan result, 1)
	chB := make(chan result, 1)

	go func() {
		s, err := newSession(connA, cfgA, &cfgB.Key.PublicKey)
		chA <- result{s, err}
	}()
	go func() {
		s, err := newSession(connB, cfgB, nil)
		chB <- result{s, err}
	}()

	ra, rb := <-chA, <-chB
	require.NoError(t, ra.err)
	require.NoError(t, rb.err)
	return ra.sess, rb.sess
}

func waitForState(t *testing.T, s *Session, want SessionState, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, want, s.State())
}

func TestSessionLoopbackReachesActive(t *testing.T) {
	start := time.Now()
	a, b := dialedPair(t)
	defer a.Close(DiscQuitting)
	defer b.Close(DiscQuitting)

	waitForState(t, a, Active, 100*time.Millisecond)
	waitForState(t, b, Active, 100*time.Millisecond)
	t.Logf("reached active in %v", time.Since(start))

	// b's view of a's public key (learned during the handshake) must
	// match a's own identity key.
	bsSeesA, err := b.Peer().PublicKey()
	require.NoError(t, err)
	require.Equal(t, a.cfg.Key.PublicKey, *bsSeesA)
}

func TestSessionPreHelloQueueingOrder(t *testing.T) {
	a, b := dialedPair(t)
	defer a.Close(DiscQuitting)
	defer b.Close(DiscQuitting)

	var (
		mu    sync.Mutex
		order []PacketType
	)
	b.Subscribe(func(p Packet) {
		mu.Lock()
		order = append(order, p.Type())
		mu.Unlock()
	})

	// Sent immediately after the session object exists: FrameReady has
	// been reached but Active (both Hellos exchanged) has not.
	require.NoError(t, a.SendPacket(&Status{
		ProtocolVersion: 68,
		NetworkID:       1,
		TD:              big.NewInt(0),
	}))

	waitForState(t, b, Active, 200*time.Millisecond)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) >= 2
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, HelloMsg, order[0])
	require.Contains(t, order[1:], StatusMsg)
}

func TestSessionDisconnectRoundTrip(t *testing.T) {
	a, b := dialedPair(t)
	defer a.Close(DiscQuitting)

	waitForState(t, a, Active, 200*time.Millisecond)
	waitForState(t, b, Active, 200*time.Millisecond)

	received := make(chan *Disconnect, 1)
	b.Subscribe(func(p Packet) {
		if d, ok := p.(*Disconnect); ok {
			received <- d
		}
	})

	require.NoError(t, a.Close(DiscRequested))

	select {
	case d := <-received:
		require.Equal(t, DiscRequested, d.Reason)
	case <-time.After(time.Second):
		t.Fatal("did not receive Disconnect")
	}
	waitForState(t, b, Closed, time.Second)
}
