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
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidPoint is returned when a peer-supplied public key does not lie
// on the secp256k1 curve.
var ErrInvalidPoint = errors.New("rlpx: invalid curve point")

// ecdhX performs ECDH key agreement and returns the big-endian X
// coordinate of the shared point, matching SEC 1 §3.3.1.
func ecdhX(prv *ecdsa.PrivateKey, pub *ecdsa.PublicKey) ([]byte, error) {
	if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
		return nil, ErrInvalidPoint
	}
	x, _ := pub.Curve.ScalarMult(pub.X, pub.Y, prv.D.Bytes())
	if x == nil || x.Sign() == 0 {
		return nil, ErrInvalidPoint
	}
	sized := make([]byte, (pub.Curve.Params().BitSize+7)/8)
	return x.FillBytes(sized), nil
}

// keccak256 hashes the concatenation of its arguments with Keccak-256.
func keccak256(data ...[]byte) []byte {
	return crypto.Keccak256(data...)
}

// aesCTRXOR encrypts or decrypts data with AES in CTR mode. The key's
// length selects AES-128/192/256. Its caller in this package is the ECIES
// codec, whose 16-byte Ke gives AES-128-CTR; the frame streams are built
// by newCTRStream from the 32-byte aes secret and so run AES-256-CTR.
func aesCTRXOR(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	stream := cipher.NewCTR(block, iv)
	out := make([]byte, len(data))
	stream.XORKeyStream(out, data)
	return out, nil
}

// newCTRStream returns a keystream cipher.Stream keyed by key with a
// zero IV, kept alive by the caller across many Write/Read calls so the
// counter advances continuously for the lifetime of the session.
func newCTRStream(key []byte) (cipher.Stream, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, block.BlockSize())
	return cipher.NewCTR(block, iv), nil
}

// newECBBlockCipher returns the block cipher used to whiten each 16-byte
// MAC digest block (the "AES-256-ECB" step of the RLPx MAC construction).
// It is never used in ECB mode over more than a single block, so the
// standard library's block-at-a-time Encrypt is sufficient and no
// cipher.BlockMode wrapper is needed.
func newECBBlockCipher(key []byte) (cipher.Block, error) {
	return aes.NewCipher(key)
}

// hmacSHA256 computes HMAC-SHA256(key, data).
func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// concatKDF implements the NIST SP 800-56A/800-56C concatenation key
// derivation function used by the ECIES profile: SHA-256 is applied to a
// big-endian 32-bit counter, the shared secret z, and an (empty) SharedInfo
// string, repeated until kdLen bytes have been produced.
func concatKDF(z []byte, kdLen int) []byte {
	const hashLen = sha256.Size
	reps := (kdLen + hashLen - 1) / hashLen
	counter := make([]byte, 4)
	out := make([]byte, 0, reps*hashLen)
	for i := 1; i <= reps; i++ {
		big.NewInt(int64(i)).FillBytes(counter)
		h := sha256.New()
		h.Write(counter)
		h.Write(z)
		out = h.Sum(out)
	}
	return out[:kdLen]
}
