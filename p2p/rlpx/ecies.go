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

// This file implements the Ethereum ECIES profile: generate an ephemeral
// key, agree on a shared secret with the recipient's static public key,
// derive encryption/MAC keys from it with concatKDF, and authenticate the
// ciphertext with HMAC-SHA256. The layout matches the wire format other
// RLPx implementations produce, which is required for interop.

package rlpx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"io"

	"github.com/ethereum/go-ethereum/crypto"
)

const (
	ecieIVLen  = 16 // AES block size, also the CTR IV length
	ecieKeyLen = 16 // AES-128 key used for the symmetric body
	ecieTagLen = 32 // HMAC-SHA256 output size
)

// ErrTagMismatch is returned by eciesDecrypt when the authentication tag
// does not match the recovered ciphertext, or shared_mac_data does not
// match what was used for encryption.
var ErrTagMismatch = errors.New("rlpx: ecies tag mismatch")

// ErrMalformed is returned by eciesDecrypt when the ciphertext is too
// short to contain a valid ephemeral key, IV, and tag.
var ErrMalformed = errors.New("rlpx: malformed ecies ciphertext")

// eciesEncrypt encrypts plaintext to recipientPub following the Ethereum
// ECIES profile. sharedMacData is authenticated but not encrypted; for
// EIP-8 handshake messages it is the two-byte big-endian wire size of the
// wrapped message, and is empty for legacy (non-EIP-8) payloads.
func eciesEncrypt(recipientPub *ecdsa.PublicKey, plaintext, sharedMacData []byte) ([]byte, error) {
	ephemeral, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	z, err := ecdhX(ephemeral, recipientPub)
	if err != nil {
		return nil, err
	}
	k := concatKDF(z, ecieKeyLen+ecieKeyLen)
	ke, km := k[:ecieKeyLen], k[ecieKeyLen:]
	km = keccak256Sha256Km(km)

	iv := make([]byte, ecieIVLen)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, err
	}
	ciphertext, err := aesCTRXOR(ke, iv, plaintext)
	if err != nil {
		return nil, err
	}

	tag := hmacSHA256(km, concatAll(iv, ciphertext, sharedMacData))

	re := elliptic.Marshal(crypto.S256(), ephemeral.PublicKey.X, ephemeral.PublicKey.Y)
	out := make([]byte, 0, len(re)+len(iv)+len(ciphertext)+len(tag))
	out = append(out, re...)
	out = append(out, iv...)
	out = append(out, ciphertext...)
	out = append(out, tag...)
	return out, nil
}

// eciesDecrypt inverts eciesEncrypt. It runs the HMAC comparison in
// constant time and never returns partially-decrypted plaintext on
// mismatch.
func eciesDecrypt(recipientPriv *ecdsa.PrivateKey, ciphertext, sharedMacData []byte) ([]byte, error) {
	const pubLen65 = 65
	if len(ciphertext) < pubLen65+ecieIVLen+ecieTagLen+1 {
		return nil, ErrMalformed
	}
	rePub, err := importPublicKey(ciphertext[:pubLen65])
	if err != nil {
		return nil, err
	}
	iv := ciphertext[pubLen65 : pubLen65+ecieIVLen]
	body := ciphertext[pubLen65+ecieIVLen : len(ciphertext)-ecieTagLen]
	tag := ciphertext[len(ciphertext)-ecieTagLen:]

	z, err := ecdhX(recipientPriv, rePub)
	if err != nil {
		return nil, err
	}
	k := concatKDF(z, ecieKeyLen+ecieKeyLen)
	ke, km := k[:ecieKeyLen], k[ecieKeyLen:]
	km = keccak256Sha256Km(km)

	want := hmacSHA256(km, concatAll(iv, body, sharedMacData))
	if subtle.ConstantTimeCompare(want, tag) != 1 {
		return nil, ErrTagMismatch
	}
	return aesCTRXOR(ke, iv, body)
}

// keccak256Sha256Km re-hashes the KDF's MAC-key half with SHA-256, as the
// Ethereum ECIES profile specifies (K = KDF(z); Ke = K[:16]; Km =
// SHA-256(K[16:])), rather than using the raw KDF output directly as Km.
func keccak256Sha256Km(half []byte) []byte {
	sum := sha256.Sum256(half)
	return sum[:]
}

func concatAll(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
