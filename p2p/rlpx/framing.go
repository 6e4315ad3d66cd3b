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

// This file implements the RLPx frame codec (§4.4): encrypting and MACing
// one frame at a time, and reassembling frames out of a byte stream that
// may arrive in arbitrarily small pieces. Unlike the original multi-
// capability, chunked-transfer framing this package's rlpx.go used to
// implement, every frame here carries one complete packet — chunking and
// per-capability multiplexing are out of scope (Non-goals: only a single
// subprotocol is supported).
package rlpx

import (
	"crypto/cipher"
	"crypto/hmac"
	"fmt"
	"hash"

	"github.com/ethereum/go-ethereum/rlp"
)

const (
	frameHeaderSize     = 16 // size+header-data, zero padded
	frameHeaderFullSize = 32 // header + header MAC
	frameMacSize        = 16
	maxUint24           = 1<<24 - 1
)

var zero16 = make([]byte, 16)

// frameHeader is the RLP payload carried inside the frame header: always
// [capability-id, context-id] per spec. Multiple capabilities and chunked
// transfers are out of scope (Non-goals: a single subprotocol only), so
// this package always writes the zero value and never inspects it on
// read — a peer that sends additional trailing list elements here simply
// has those bytes ignored, since we only use the size prefix to frame.
type frameHeader struct {
	CapID     uint16
	ContextID uint16
}

// frameRW implements the framed wire protocol described in §4.4 over a
// raw secrets-derived AES-CTR stream pair and a pair of live Keccak MAC
// sponges. One frameRW exists per session and is only ever touched by the
// session's actor goroutine (§5): it holds no locks of its own.
type frameRW struct {
	enc, dec  cipher.Stream
	macCipher cipher.Block

	egressMAC  hash.Hash
	ingressMAC hash.Hash

	inbuf []byte // unconsumed bytes fed by the transport

	// hdrSize holds the body size of a header that has already been
	// authenticated and decrypted while its body is still arriving.
	hdrSize uint32
	hdrDone bool
}

func newFrameRW(s secrets) (*frameRW, error) {
	enc, err := newCTRStream(s.AES)
	if err != nil {
		return nil, err
	}
	dec, err := newCTRStream(s.AES)
	if err != nil {
		return nil, err
	}
	macCipher, err := newECBBlockCipher(s.MAC)
	if err != nil {
		return nil, err
	}
	return &frameRW{
		enc:        enc,
		dec:        dec,
		macCipher:  macCipher,
		egressMAC:  s.EgressMAC,
		ingressMAC: s.IngressMAC,
	}, nil
}

// writeFrame encrypts and MACs one complete frame for (packetType, body)
// and returns the wire bytes. It must only be called with the session's
// sends serialized (§4.6.3): the egress MAC/CTR state advances with every
// call and two interleaved calls would corrupt the stream for both.
func (rw *frameRW) writeFrame(packetType uint64, body []byte) ([]byte, error) {
	codeBuf, err := rlp.EncodeToBytes(packetType)
	if err != nil {
		return nil, err
	}
	plain := append(codeBuf, body...)
	if len(plain) > maxUint24 {
		return nil, ErrFrameTooBig
	}

	header := make([]byte, frameHeaderSize)
	putUint24(header, uint32(len(plain)))
	hdrRLP, err := rlp.EncodeToBytes(&frameHeader{})
	if err != nil {
		return nil, err
	}
	copy(header[3:], hdrRLP)

	rw.enc.XORKeyStream(header, header)
	headerMAC := updateMAC(rw.egressMAC, rw.macCipher, header)

	padded := padTo16(plain)
	bodyCipher := make([]byte, len(padded))
	rw.enc.XORKeyStream(bodyCipher, padded)
	bodyMAC := rw.bodyMACUpdate(rw.egressMAC, bodyCipher)

	out := make([]byte, 0, frameHeaderFullSize+len(bodyCipher)+frameMacSize)
	out = append(out, header...)
	out = append(out, headerMAC...)
	out = append(out, bodyCipher...)
	out = append(out, bodyMAC...)
	return out, nil
}

// decodedPacket is one fully reassembled application packet.
type decodedPacket struct {
	Type uint64
	Body []byte
}

// feed appends newly arrived bytes to the internal buffer and decodes as
// many complete frames as are available, per §4.4.2 and §4.6.4. Leftover
// bytes that don't yet form a full frame are retained for the next call;
// this is what makes a one-byte-at-a-time feed (testable property #6)
// behave identically to a single bulk feed.
func (rw *frameRW) feed(data []byte) ([]decodedPacket, error) {
	rw.inbuf = append(rw.inbuf, data...)

	var out []decodedPacket
	for {
		pkt, n, err := rw.tryDecodeOne(rw.inbuf)
		if err != nil {
			return out, err
		}
		if n == 0 {
			break // incomplete; wait for more bytes
		}
		rw.inbuf = rw.inbuf[n:]
		out = append(out, pkt)
	}
	return out, nil
}

// tryDecodeOne attempts to decode exactly one frame from the head of buf.
// It returns n == 0 if buf does not yet contain a complete frame. The
// header is authenticated and decrypted only once: its size is kept in
// rw until the rest of the frame has arrived. A non-zero error is always
// fatal (MAC mismatch or malformed body); the ingress MAC state has
// already advanced and must not be used again.
func (rw *frameRW) tryDecodeOne(buf []byte) (decodedPacket, int, error) {
	if len(buf) < frameHeaderFullSize {
		return decodedPacket{}, 0, nil
	}
	if !rw.hdrDone {
		headerCipher := append([]byte(nil), buf[:frameHeaderSize]...)
		headerMACGot := buf[frameHeaderSize:frameHeaderFullSize]

		headerMACWant := updateMAC(rw.ingressMAC, rw.macCipher, headerCipher)
		if !hmac.Equal(headerMACWant, headerMACGot) {
			return decodedPacket{}, 0, ErrMacMismatch
		}

		headerPlain := make([]byte, frameHeaderSize)
		rw.dec.XORKeyStream(headerPlain, headerCipher)
		rw.hdrSize = readUint24(headerPlain)
		rw.hdrDone = true
	}

	bodyLen := int(rw.hdrSize)
	paddedLen := bodyLen
	if rem := paddedLen % 16; rem != 0 {
		paddedLen += 16 - rem
	}
	total := frameHeaderFullSize + paddedLen + frameMacSize
	if len(buf) < total {
		return decodedPacket{}, 0, nil
	}
	rw.hdrDone = false

	bodyCipher := buf[frameHeaderFullSize : frameHeaderFullSize+paddedLen]
	bodyMACGot := buf[frameHeaderFullSize+paddedLen : total]

	bodyMACWant := rw.bodyMACUpdate(rw.ingressMAC, bodyCipher)
	if !hmac.Equal(bodyMACWant, bodyMACGot) {
		return decodedPacket{}, 0, ErrMacMismatch
	}

	bodyPlain := make([]byte, paddedLen)
	rw.dec.XORKeyStream(bodyPlain, bodyCipher)
	bodyPlain = bodyPlain[:bodyLen]

	packetType, rest, err := rlp.SplitUint64(bodyPlain)
	if err != nil {
		return decodedPacket{}, 0, fmt.Errorf("%w: bad packet type: %v", ErrBadFrameBody, err)
	}
	return decodedPacket{Type: packetType, Body: rest}, total, nil
}

// bodyMACUpdate implements the body-MAC half of §4.4.1 step 5: the full
// (possibly multi-block) body ciphertext is absorbed into mac directly —
// unlike the header case, it is not routed through the ECB/XOR whitening
// step itself — and only the resulting digest is fed through updateMAC
// to produce the emitted body_mac.
func (rw *frameRW) bodyMACUpdate(mac hash.Hash, bodyCipher []byte) []byte {
	mac.Write(bodyCipher)
	seed := mac.Sum(nil)[:16]
	return updateMAC(mac, rw.macCipher, seed)
}

// updateMAC encrypts the first 16 bytes of mac's running digest with one
// AES-ECB block encryption, XORs seed into the result, absorbs that into
// mac, and returns the first 16 bytes of the new digest. This exact order
// — encrypt the prior digest, XOR with seed, write the result, emit the
// new digest's first 16 bytes — is the single most error-prone detail of
// RLPx and must not be simplified.
func updateMAC(mac hash.Hash, block cipher.Block, seed []byte) []byte {
	aesBuf := make([]byte, 16)
	block.Encrypt(aesBuf, mac.Sum(nil)[:16])
	for i := range aesBuf {
		aesBuf[i] ^= seed[i]
	}
	mac.Write(aesBuf)
	return mac.Sum(nil)[:16]
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func readUint24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func padTo16(b []byte) []byte {
	if rem := len(b) % 16; rem != 0 {
		b = append(b, zero16[:16-rem]...)
	}
	return b
}
