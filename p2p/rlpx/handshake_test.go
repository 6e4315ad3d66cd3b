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
	"net"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestEncHandshakeLoopback(t *testing.T) {
	for i := 0; i < 5; i++ {
		start := time.Now()
		initSec, respSec := runLoopbackHandshake(t)
		t.Logf("run %d: %v", i, time.Since(start))

		require.Equal(t, initSec.AES, respSec.AES)
		require.Equal(t, initSec.MAC, respSec.MAC)
	}
}

// runLoopbackHandshake drives both sides of a handshake over net.Pipe
// concurrently and returns the initiator's and responder's derived
// secrets.
func runLoopbackHandshake(t *testing.T) (initiator, responder secrets) {
	t.Helper()
	prv0, err := crypto.GenerateKey()
	require.NoError(t, err)
	prv1, err := crypto.GenerateKey()
	require.NoError(t, err)

	fd0, fd1 := net.Pipe()

	type result struct {
		sec secrets
		err error
	}
	initCh := make(chan result, 1)
	respCh := make(chan result, 1)

	go func() {
		sec, err := initiatorEncHandshake(fd0, prv0, &prv1.PublicKey)
		initCh <- result{sec, err}
	}()
	go func() {
		sec, err := receiverEncHandshake(fd1, prv1)
		respCh <- result{sec, err}
	}()

	ir := <-initCh
	rr := <-respCh
	require.NoError(t, ir.err)
	require.NoError(t, rr.err)

	require.Equal(t, crypto.FromECDSAPub(&prv1.PublicKey), crypto.FromECDSAPub(ir.sec.RemoteID))
	require.Equal(t, crypto.FromECDSAPub(&prv0.PublicKey), crypto.FromECDSAPub(rr.sec.RemoteID))

	// Egress on one side must equal ingress on the other, and vice
	// versa: each side's MAC sponge was seeded from the same auth/ack
	// bytes but in swapped roles.
	require.Equal(t, ir.sec.EgressMAC.Sum(nil), rr.sec.IngressMAC.Sum(nil))
	require.Equal(t, ir.sec.IngressMAC.Sum(nil), rr.sec.EgressMAC.Sum(nil))

	return ir.sec, rr.sec
}

func TestEncHandshakeWrongKeyFails(t *testing.T) {
	prv0, err := crypto.GenerateKey()
	require.NoError(t, err)
	prv1, err := crypto.GenerateKey()
	require.NoError(t, err)
	wrong, err := crypto.GenerateKey()
	require.NoError(t, err)

	fd0, fd1 := net.Pipe()

	initErrCh := make(chan error, 1)
	respErrCh := make(chan error, 1)
	go func() {
		_, err := initiatorEncHandshake(fd0, prv0, &wrong.PublicKey)
		initErrCh <- err
	}()
	go func() {
		_, err := receiverEncHandshake(fd1, prv1)
		respErrCh <- err
	}()

	// The initiator encrypts auth to the wrong recipient key, so the
	// real responder (holding prv1) must fail to decrypt it.
	require.Error(t, <-respErrCh)
	// The initiator is still waiting for an ack; closing the responder's
	// end unblocks its read.
	fd1.Close()
	<-initErrCh
}
