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

// Package config loads the TOML file that configures a rlpxnode
// instance: its node key file, advertised identity, and the peer it
// should dial (or the address it should listen on).
package config

import (
	"crypto/ecdsa"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/crypto"
)

// File is the on-disk shape of a node's TOML config file.
type File struct {
	// NodeKeyFile holds a hex-encoded secp256k1 private key. If the file
	// does not exist, a fresh key is generated and written there on
	// first run, matching the teacher's node-key bootstrapping idiom.
	NodeKeyFile string `toml:"node_key_file"`

	ClientID   string   `toml:"client_id"`
	ListenAddr string   `toml:"listen_addr"`
	DialAddr   string   `toml:"dial_addr"`
	DialPubkey string   `toml:"dial_pubkey"`
	Caps       []CapCfg `toml:"caps"`

	NetworkID uint64 `toml:"network_id"`
}

// CapCfg is a capability entry as it appears in the TOML file.
type CapCfg struct {
	Name    string `toml:"name"`
	Version uint   `toml:"version"`
}

// Load reads and parses path into a File.
func Load(path string) (*File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if f.ClientID == "" {
		f.ClientID = "rlpxnode/v1"
	}
	return &f, nil
}

// LoadNodeKey reads the hex-encoded key at path, generating and
// persisting a new one if the file is absent.
func LoadNodeKey(path string) (*ecdsa.PrivateKey, error) {
	if key, err := crypto.LoadECDSA(path); err == nil {
		return key, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: reading node key: %w", err)
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("config: generating node key: %w", err)
	}
	if err := crypto.SaveECDSA(path, key); err != nil {
		return nil, fmt.Errorf("config: saving node key: %w", err)
	}
	return key, nil
}
