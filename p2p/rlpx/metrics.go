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

// This file registers the package's runtime counters against the default
// rcrowley/go-metrics registry, the same registry style the wider
// go-ethereum tree uses for its p2p and eth subsystems.
package rlpx

import "github.com/rcrowley/go-metrics"

var (
	handshakeSuccessMeter = metrics.NewRegisteredMeter("rlpx/handshake/success", nil)
	handshakeFailMeter    = metrics.NewRegisteredMeter("rlpx/handshake/fail", nil)

	framesSentMeter     = metrics.NewRegisteredMeter("rlpx/frame/sent", nil)
	framesReceivedMeter = metrics.NewRegisteredMeter("rlpx/frame/received", nil)
	bytesSentMeter      = metrics.NewRegisteredMeter("rlpx/bytes/sent", nil)
	bytesReceivedMeter  = metrics.NewRegisteredMeter("rlpx/bytes/received", nil)

	disconnectsMeter  = metrics.NewRegisteredMeter("rlpx/disconnect", nil)
	activeSessionsGau = metrics.NewRegisteredGauge("rlpx/sessions/active", nil)
)
