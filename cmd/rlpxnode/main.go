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

// Command rlpxnode dials or listens for a single RLPx peer, completes the
// handshake, and logs every packet it receives. It is a demo harness for
// the rlpx package, not a full node.
package main

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"net"
	"os"
	"os/signal"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/nodecore-labs/rlpxpeer/config"
	"github.com/nodecore-labs/rlpxpeer/p2p/rlpx"
)

var configFlag = &cli.StringFlag{
	Name:     "config",
	Aliases:  []string{"c"},
	Usage:    "path to the node's TOML config file",
	Required: true,
}

func main() {
	app := &cli.App{
		Name:  "rlpxnode",
		Usage: "dial or listen for a single RLPx peer",
		Commands: []*cli.Command{
			{
				Name:   "dial",
				Usage:  "connect out to a peer given in the config's dial_addr/dial_pubkey",
				Flags:  []cli.Flag{configFlag},
				Action: runDial,
			},
			{
				Name:   "listen",
				Usage:  "accept one inbound connection on the config's listen_addr",
				Flags:  []cli.Flag{configFlag},
				Action: runListen,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Crit("rlpxnode", "err", err)
	}
}

func loadSession(c *cli.Context) (*config.File, *ecdsa.PrivateKey, *rlpx.Config, error) {
	f, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, nil, err
	}
	key, err := config.LoadNodeKey(f.NodeKeyFile)
	if err != nil {
		return nil, nil, nil, err
	}
	caps := make([]rlpx.Cap, len(f.Caps))
	for i, c := range f.Caps {
		caps[i] = rlpx.Cap{Name: c.Name, Version: c.Version}
	}
	cfg := &rlpx.Config{
		Key:          key,
		P2PVersion:   5,
		ClientID:     f.ClientID,
		Capabilities: caps,
		Status: &rlpx.Status{
			ProtocolVersion: 68,
			NetworkID:       f.NetworkID,
			TD:              big.NewInt(0),
		},
	}
	return f, key, cfg, nil
}

func runDial(c *cli.Context) error {
	f, _, cfg, err := loadSession(c)
	if err != nil {
		return err
	}
	if f.DialAddr == "" || f.DialPubkey == "" {
		return fmt.Errorf("rlpxnode: dial_addr and dial_pubkey must be set in the config")
	}
	remotePub, err := crypto.UnmarshalPubkey(common.FromHex(f.DialPubkey))
	if err != nil {
		return fmt.Errorf("rlpxnode: bad dial_pubkey: %w", err)
	}

	sess, err := rlpx.Dial(f.DialAddr, remotePub, cfg)
	if err != nil {
		return fmt.Errorf("rlpxnode: dial: %w", err)
	}
	log.Info("rlpxnode: dialed", "peer", sess.Peer())
	runUntilInterrupt(sess)
	return nil
}

func runListen(c *cli.Context) error {
	f, _, cfg, err := loadSession(c)
	if err != nil {
		return err
	}
	if f.ListenAddr == "" {
		return fmt.Errorf("rlpxnode: listen_addr must be set in the config")
	}

	ln, err := net.Listen("tcp", f.ListenAddr)
	if err != nil {
		return fmt.Errorf("rlpxnode: listen: %w", err)
	}
	defer ln.Close()
	log.Info("rlpxnode: listening", "addr", f.ListenAddr)

	conn, err := ln.Accept()
	if err != nil {
		return fmt.Errorf("rlpxnode: accept: %w", err)
	}
	sess, err := rlpx.Listen(conn, cfg)
	if err != nil {
		return fmt.Errorf("rlpxnode: handshake: %w", err)
	}
	log.Info("rlpxnode: accepted", "peer", sess.Peer())
	runUntilInterrupt(sess)
	return nil
}

// runUntilInterrupt logs every packet the session receives until it
// closes or the process is interrupted.
func runUntilInterrupt(sess *rlpx.Session) {
	if seen, err := rlpx.NewSeenPeers(64); err == nil && seen.Record(sess.Peer()) {
		log.Info("rlpxnode: new peer identity", "peer", sess.Peer())
	}

	sess.Subscribe(func(p rlpx.Packet) {
		log.Info("rlpxnode: packet", "type", p.Type(), "peer", sess.Peer())
	})

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	<-interrupt
	log.Info("rlpxnode: shutting down", "peer", sess.Peer())
	sess.Close(rlpx.DiscQuitting)
}
