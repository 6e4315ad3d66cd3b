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
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"hash"
	"io"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/sha3"
)

const (
	sigLen = 65 // ECDSA signature, r||s||v
	pubLen = 64 // uncompressed secp256k1 point, no 0x04 prefix
	shaLen = 32 // Keccak-256 / nonce length

	eciesOverhead = 65 + 16 + 32 // ephemeral pubkey + IV + HMAC tag

	handshakeVersion = 4

	eip8MinPad = 100
	eip8MaxPad = 300
)

// encHandshake holds the state of the RLPx encryption handshake while it
// is in progress. It is discarded once secrets have been derived.
type encHandshake struct {
	initiator bool

	remotePub       *ecdsa.PublicKey // static public key of the remote side
	randomPrivKey   *ecdsa.PrivateKey
	remoteRandomPub *ecdsa.PublicKey

	initNonce, respNonce []byte
}

// authMsgV4 is the RLP structure of the initiator handshake message. The
// Rest field collects any trailing list elements a newer protocol version
// might add (EIP-8 forward compatibility); it is always empty for the v4
// messages this package produces.
type authMsgV4 struct {
	Signature       [sigLen]byte
	InitiatorPubkey [pubLen]byte
	Nonce           [shaLen]byte
	Version         uint

	Rest []rlp.RawValue `rlp:"tail"`
}

// ackRespV4 is the RLP structure of the responder handshake message.
type ackRespV4 struct {
	RandomPubkey [pubLen]byte
	Nonce        [shaLen]byte
	Version      uint

	Rest []rlp.RawValue `rlp:"tail"`
}

// secrets holds the symmetric session material derived from a completed
// handshake. EgressMAC/IngressMAC are live Keccak sponges: they must never
// be replaced by a fresh hash per frame, only ever Write()-ed into and
// Sum()-ed, since their running state is exactly the rolling MAC the
// frame codec depends on.
type secrets struct {
	RemoteID              *ecdsa.PublicKey
	AES, MAC              []byte
	EgressMAC, IngressMAC hash.Hash
}

// newInitiatorHandshake prepares the initiator side of a fresh handshake
// to remotePub. Reconnection/token resumption is out of scope: every
// handshake derives secrets from scratch via ECDH.
func newInitiatorHandshake(remotePub *ecdsa.PublicKey) (*encHandshake, error) {
	n := make([]byte, shaLen)
	if _, err := io.ReadFull(rand.Reader, n); err != nil {
		return nil, err
	}
	randKey, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &encHandshake{
		initiator:     true,
		remotePub:     remotePub,
		initNonce:     n,
		randomPrivKey: randKey,
	}, nil
}

// authMsg builds and ECIES-wraps the initiator's AuthMsgV4.
func (h *encHandshake) authMsg(prv *ecdsa.PrivateKey) ([]byte, error) {
	staticShared, err := ecdhX(prv, h.remotePub)
	if err != nil {
		return nil, err
	}
	signed := xor(staticShared, h.initNonce)
	sig, err := crypto.Sign(signed, h.randomPrivKey)
	if err != nil {
		return nil, err
	}

	msg := new(authMsgV4)
	copy(msg.Signature[:], sig)
	copy(msg.InitiatorPubkey[:], crypto.FromECDSAPub(&prv.PublicKey)[1:])
	copy(msg.Nonce[:], h.initNonce)
	msg.Version = handshakeVersion

	return sealEIP8(msg, h.remotePub)
}

// decodeAuthAck decrypts and RLP-decodes the responder's AckRespV4.
func (h *encHandshake) decodeAuthAck(prv *ecdsa.PrivateKey, wrapped []byte) error {
	body, err := openEIP8(prv, wrapped)
	if err != nil {
		return fmt.Errorf("auth ack: %w", err)
	}
	var msg ackRespV4
	if err := decodeHandshakeRLP(body, &msg); err != nil {
		return fmt.Errorf("%w: bad ack rlp: %v", ErrBadRLP, err)
	}
	h.respNonce = append([]byte(nil), msg.Nonce[:]...)
	pub, err := importPublicKey(msg.RandomPubkey[:])
	if err != nil {
		return err
	}
	h.remoteRandomPub = pub
	return nil
}

// newResponderHandshake decodes the initiator's AuthMsgV4 off the wire and
// prepares the responder's own ephemeral key/nonce.
func newResponderHandshake(prv *ecdsa.PrivateKey, wrapped []byte) (*encHandshake, error) {
	body, err := openEIP8(prv, wrapped)
	if err != nil {
		return nil, fmt.Errorf("auth msg: %w", err)
	}
	var msg authMsgV4
	if err := decodeHandshakeRLP(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: bad auth rlp: %v", ErrBadRLP, err)
	}

	remotePub, err := importPublicKey(msg.InitiatorPubkey[:])
	if err != nil {
		return nil, fmt.Errorf("bad remote identity: %w", err)
	}

	staticShared, err := ecdhX(prv, remotePub)
	if err != nil {
		return nil, err
	}
	signed := xor(staticShared, msg.Nonce[:])
	remoteRandomPubBytes, err := crypto.Ecrecover(signed, msg.Signature[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	remoteRandomPub, err := importPublicKey(remoteRandomPubBytes[1:])
	if err != nil {
		return nil, err
	}

	respNonce := make([]byte, shaLen)
	if _, err := io.ReadFull(rand.Reader, respNonce); err != nil {
		return nil, err
	}
	randKey, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	return &encHandshake{
		initiator:       false,
		remotePub:       remotePub,
		remoteRandomPub: remoteRandomPub,
		initNonce:       append([]byte(nil), msg.Nonce[:]...),
		respNonce:       respNonce,
		randomPrivKey:   randKey,
	}, nil
}

// authAck builds and ECIES-wraps the responder's AckRespV4.
func (h *encHandshake) authAck() ([]byte, error) {
	msg := new(ackRespV4)
	copy(msg.RandomPubkey[:], exportPubkey(&h.randomPrivKey.PublicKey))
	copy(msg.Nonce[:], h.respNonce)
	msg.Version = handshakeVersion
	return sealEIP8(msg, h.remotePub)
}

// deriveSecrets computes the session secrets per §3 of the protocol
// write-up, given the raw (still wire-wrapped) auth and ack byte strings
// that both sides exchanged.
func (h *encHandshake) deriveSecrets(auth, ack []byte) (secrets, error) {
	ephemeralShared, err := ecdhX(h.randomPrivKey, h.remoteRandomPub)
	if err != nil {
		return secrets{}, err
	}

	hNonce := keccak256(h.respNonce, h.initNonce)
	sharedSecret := keccak256(ephemeralShared, hNonce)
	aesSecret := keccak256(ephemeralShared, sharedSecret)
	macSecret := keccak256(ephemeralShared, aesSecret)

	s := secrets{
		RemoteID: h.remotePub,
		AES:      aesSecret,
		MAC:      macSecret,
	}

	mac1 := sha3.NewLegacyKeccak256()
	mac1.Write(xor(macSecret, h.respNonce))
	mac1.Write(auth)
	mac2 := sha3.NewLegacyKeccak256()
	mac2.Write(xor(macSecret, h.initNonce))
	mac2.Write(ack)

	if h.initiator {
		s.EgressMAC, s.IngressMAC = mac1, mac2
	} else {
		s.EgressMAC, s.IngressMAC = mac2, mac1
	}
	return s, nil
}

// initiatorEncHandshake runs the full initiator side of §4.3.1: write
// auth, read ack, derive secrets.
func initiatorEncHandshake(conn io.ReadWriter, prv *ecdsa.PrivateKey, remotePub *ecdsa.PublicKey) (secrets, error) {
	h, err := newInitiatorHandshake(remotePub)
	if err != nil {
		return secrets{}, err
	}
	auth, err := h.authMsg(prv)
	if err != nil {
		return secrets{}, err
	}
	if _, err := conn.Write(auth); err != nil {
		return secrets{}, err
	}

	ack, err := readHandshakeMsg(conn)
	if err != nil {
		return secrets{}, err
	}
	if err := h.decodeAuthAck(prv, ack); err != nil {
		return secrets{}, err
	}
	return h.deriveSecrets(auth, ack)
}

// receiverEncHandshake runs the full responder side of §4.3.2.
func receiverEncHandshake(conn io.ReadWriter, prv *ecdsa.PrivateKey) (secrets, error) {
	auth, err := readHandshakeMsg(conn)
	if err != nil {
		return secrets{}, err
	}
	h, err := newResponderHandshake(prv, auth)
	if err != nil {
		return secrets{}, err
	}
	ack, err := h.authAck()
	if err != nil {
		return secrets{}, err
	}
	if _, err := conn.Write(ack); err != nil {
		return secrets{}, err
	}
	return h.deriveSecrets(auth, ack)
}

// readHandshakeMsg reads one EIP-8 wrapped handshake message: a two-byte
// big-endian size prefix followed by exactly that many more bytes. The
// prefix itself is returned as part of the message so the caller can feed
// it back as ECIES associated data.
func readHandshakeMsg(conn io.Reader) ([]byte, error) {
	prefix := make([]byte, 2)
	if _, err := io.ReadFull(conn, prefix); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShortRead, err)
	}
	size := binary.BigEndian.Uint16(prefix)
	rest := make([]byte, size)
	if _, err := io.ReadFull(conn, rest); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShortRead, err)
	}
	return append(prefix, rest...), nil
}

// sealEIP8 RLP-encodes msg, appends EIP-8 padding, and ECIES-encrypts the
// result to remotePub with the eventual wire size as associated data.
func sealEIP8(msg interface{}, remotePub *ecdsa.PublicKey) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := rlp.Encode(buf, msg); err != nil {
		return nil, err
	}
	pad, err := randomPad()
	if err != nil {
		return nil, err
	}
	buf.Write(pad)

	prefix := make([]byte, 2)
	binary.BigEndian.PutUint16(prefix, uint16(buf.Len()+eciesOverhead))

	enc, err := eciesEncrypt(remotePub, buf.Bytes(), prefix)
	if err != nil {
		return nil, err
	}
	return append(prefix, enc...), nil
}

// openEIP8 inverts sealEIP8: it splits the size prefix back off a message
// produced by readHandshakeMsg, decrypts the remainder, and returns the
// RLP payload (still including its EIP-8 padding, which the RLP decoder
// ignores as trailing garbage after the list).
func openEIP8(prv *ecdsa.PrivateKey, wrapped []byte) ([]byte, error) {
	if len(wrapped) < 2 {
		return nil, ErrShortRead
	}
	prefix, enc := wrapped[:2], wrapped[2:]
	plain, err := eciesDecrypt(prv, enc, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	return plain, nil
}

// randomPad returns between eip8MinPad and eip8MaxPad random bytes, as
// EIP-8 recommends so handshake message sizes don't leak which fields a
// given client version encodes.
func randomPad() ([]byte, error) {
	n := make([]byte, 1)
	if _, err := io.ReadFull(rand.Reader, n); err != nil {
		return nil, err
	}
	size := eip8MinPad + int(n[0])%(eip8MaxPad-eip8MinPad)
	pad := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, pad); err != nil {
		return nil, err
	}
	return pad, nil
}

// importPublicKey unmarshals a 64- or 65-byte secp256k1 public key.
func importPublicKey(pubKey []byte) (*ecdsa.PublicKey, error) {
	var full []byte
	switch len(pubKey) {
	case 64:
		full = append([]byte{0x04}, pubKey...)
	case 65:
		full = pubKey
	default:
		return nil, fmt.Errorf("%w: invalid public key length %d", ErrInvalidLength, len(pubKey))
	}
	pub := crypto.ToECDSAPub(full)
	if pub.X == nil {
		return nil, ErrInvalidPoint
	}
	return pub, nil
}

func exportPubkey(pub *ecdsa.PublicKey) []byte {
	return elliptic.Marshal(pub.Curve, pub.X, pub.Y)[1:]
}

func xor(one, other []byte) []byte {
	out := make([]byte, len(one))
	for i := range one {
		out[i] = one[i] ^ other[i]
	}
	return out
}

// decodeHandshakeRLP decodes exactly one RLP value off the front of body
// into val, ignoring anything after it. Unlike rlp.DecodeBytes (which
// errors on trailing data), this tolerates the random EIP-8 padding
// sealEIP8 appends after the encoded list.
func decodeHandshakeRLP(body []byte, val interface{}) error {
	s := rlp.NewStream(bytes.NewReader(body), uint64(len(body)))
	return s.Decode(val)
}
