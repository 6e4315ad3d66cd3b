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

// This file supplements the base devp2p packets in packet.go with the
// "eth" capability's message set, grounded on go-ethereum's
// eth/protocols/eth/protocol.go. This session core does not interpret
// chain state: headers, bodies and transactions are carried as opaque,
// RLP-faithful records and handed to subscribers (§1's "external
// collaborator" ABI/state layer) rather than validated here.
package rlpx

import (
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
)

// eth/66+ message codes, offset from the base protocol's reserved 0x00-0x0f
// range per devp2p's shared-offset capability multiplexing rule.
const ethOffset PacketType = 0x10

const (
	StatusMsg                     PacketType = ethOffset + 0x00
	NewBlockHashesMsg             PacketType = ethOffset + 0x01
	TransactionsMsg               PacketType = ethOffset + 0x02
	GetBlockHeadersMsg            PacketType = ethOffset + 0x03
	BlockHeadersMsg               PacketType = ethOffset + 0x04
	GetBlockBodiesMsg             PacketType = ethOffset + 0x05
	BlockBodiesMsg                PacketType = ethOffset + 0x06
	NewBlockMsg                   PacketType = ethOffset + 0x07
	NewPooledTransactionHashesMsg PacketType = ethOffset + 0x08
	GetPooledTransactionsMsg      PacketType = ethOffset + 0x09
	PooledTransactionsMsg         PacketType = ethOffset + 0x0a
)

func init() {
	registerPacket(StatusMsg, func(b []byte) (Packet, error) {
		var p Status
		if err := rlp.DecodeBytes(b, &p); err != nil {
			return nil, err
		}
		return &p, nil
	})
	registerPacket(NewBlockHashesMsg, func(b []byte) (Packet, error) {
		var p NewBlockHashes
		if err := rlp.DecodeBytes(b, &p); err != nil {
			return nil, err
		}
		return &p, nil
	})
	registerPacket(TransactionsMsg, func(b []byte) (Packet, error) {
		var p TransactionsPacket
		if err := rlp.DecodeBytes(b, &p); err != nil {
			return nil, err
		}
		return &p, nil
	})
	registerPacket(GetBlockHeadersMsg, func(b []byte) (Packet, error) {
		var p GetBlockHeaders
		if err := rlp.DecodeBytes(b, &p); err != nil {
			return nil, err
		}
		return &p, nil
	})
	registerPacket(BlockHeadersMsg, func(b []byte) (Packet, error) {
		var p BlockHeaders
		if err := rlp.DecodeBytes(b, &p); err != nil {
			return nil, err
		}
		return &p, nil
	})
	registerPacket(GetBlockBodiesMsg, func(b []byte) (Packet, error) {
		var p GetBlockBodies
		if err := rlp.DecodeBytes(b, &p); err != nil {
			return nil, err
		}
		return &p, nil
	})
	registerPacket(BlockBodiesMsg, func(b []byte) (Packet, error) {
		var p BlockBodies
		if err := rlp.DecodeBytes(b, &p); err != nil {
			return nil, err
		}
		return &p, nil
	})
	registerPacket(NewBlockMsg, func(b []byte) (Packet, error) {
		var p NewBlock
		if err := rlp.DecodeBytes(b, &p); err != nil {
			return nil, err
		}
		return &p, nil
	})
	registerPacket(NewPooledTransactionHashesMsg, func(b []byte) (Packet, error) {
		var p NewPooledTransactionHashes
		if err := rlp.DecodeBytes(b, &p); err != nil {
			return nil, err
		}
		return &p, nil
	})
	registerPacket(GetPooledTransactionsMsg, func(b []byte) (Packet, error) {
		var p GetPooledTransactions
		if err := rlp.DecodeBytes(b, &p); err != nil {
			return nil, err
		}
		return &p, nil
	})
	registerPacket(PooledTransactionsMsg, func(b []byte) (Packet, error) {
		var p PooledTransactions
		if err := rlp.DecodeBytes(b, &p); err != nil {
			return nil, err
		}
		return &p, nil
	})
}

// Status is the handshake message of the eth capability: the first
// packet each side sends once the base Hello has activated the session.
// ForkID validation (EIP-2124) is out of scope for this session core; the
// field is carried opaquely so a consumer higher up the stack can apply
// its own fork-compatibility policy.
type Status struct {
	ProtocolVersion uint32
	NetworkID       uint64
	TD              *big.Int
	Head            [32]byte
	Genesis         [32]byte
	ForkID          ForkID
}

// ForkID is EIP-2124's compact fork identifier: a CRC32 checksum of all
// past fork block numbers plus the next scheduled one.
type ForkID struct {
	Hash [4]byte
	Next uint64
}

func (s *Status) Type() PacketType            { return StatusMsg }
func (s *Status) EncodeBody() ([]byte, error) { return rlp.EncodeToBytes(s) }
func (s *Status) Handle() PacketAction        { return PacketAction{Kind: ActionOK} }

// HashOrNumber is a union type: a chain query may anchor on a block hash
// or a block number, never both. It implements custom RLP (de)coding
// because the wire format is a bare item (either a 32-byte string or an
// integer), not a two-field list.
type HashOrNumber struct {
	Hash   [32]byte
	Number uint64
}

// EncodeRLP implements rlp.Encoder.
func (hn *HashOrNumber) EncodeRLP(w io.Writer) error {
	if hn.Hash != ([32]byte{}) {
		return rlp.Encode(w, hn.Hash[:])
	}
	return rlp.Encode(w, hn.Number)
}

// DecodeRLP implements rlp.Decoder.
func (hn *HashOrNumber) DecodeRLP(s *rlp.Stream) error {
	kind, size, err := s.Kind()
	if err != nil {
		return err
	}
	if kind == rlp.String && size == 32 {
		var h [32]byte
		if err := s.Decode(&h); err != nil {
			return err
		}
		hn.Hash, hn.Number = h, 0
		return nil
	}
	hn.Hash = [32]byte{}
	return s.Decode(&hn.Number)
}

// GetBlockHeaders requests a run of headers starting at Origin.
type GetBlockHeaders struct {
	Origin  HashOrNumber
	Amount  uint64
	Skip    uint64
	Reverse bool
}

func (p *GetBlockHeaders) Type() PacketType            { return GetBlockHeadersMsg }
func (p *GetBlockHeaders) EncodeBody() ([]byte, error) { return rlp.EncodeToBytes(p) }
func (p *GetBlockHeaders) Handle() PacketAction         { return PacketAction{Kind: ActionOK} }

// BlockHeader mirrors the canonical Ethereum block header fields needed
// to round-trip a header over the wire. Post-merge additions (base fee,
// withdrawals root, blob gas fields) are out of scope: this session core
// only needs byte-faithful transport, not execution-layer validation.
type BlockHeader struct {
	ParentHash  [32]byte
	UncleHash   [32]byte
	Coinbase    [20]byte
	Root        [32]byte
	TxHash      [32]byte
	ReceiptHash [32]byte
	Bloom       [256]byte
	Difficulty  *big.Int
	Number      *big.Int
	GasLimit    uint64
	GasUsed     uint64
	Time        uint64
	Extra       []byte
	MixDigest   [32]byte
	Nonce       [8]byte
}

// BlockHeaders answers a GetBlockHeaders request.
type BlockHeaders struct {
	Headers []*BlockHeader
}

func (p *BlockHeaders) Type() PacketType            { return BlockHeadersMsg }
func (p *BlockHeaders) EncodeBody() ([]byte, error) { return rlp.EncodeToBytes(p) }
func (p *BlockHeaders) Handle() PacketAction         { return PacketAction{Kind: ActionOK} }

// GetBlockBodies requests the bodies (transactions and uncles) of the
// blocks identified by Hashes.
type GetBlockBodies struct {
	Hashes [][32]byte
}

func (p *GetBlockBodies) Type() PacketType            { return GetBlockBodiesMsg }
func (p *GetBlockBodies) EncodeBody() ([]byte, error) { return rlp.EncodeToBytes(p) }
func (p *GetBlockBodies) Handle() PacketAction         { return PacketAction{Kind: ActionOK} }

// BlockBody carries one block's transactions and uncle headers.
// Transactions are kept as opaque RLP blobs: decoding EIP-2718 typed
// transaction envelopes belongs to the consumer, not the session core.
type BlockBody struct {
	Transactions []rlp.RawValue
	Uncles       []*BlockHeader
}

// BlockBodies answers a GetBlockBodies request.
type BlockBodies struct {
	Bodies []*BlockBody
}

func (p *BlockBodies) Type() PacketType            { return BlockBodiesMsg }
func (p *BlockBodies) EncodeBody() ([]byte, error) { return rlp.EncodeToBytes(p) }
func (p *BlockBodies) Handle() PacketAction         { return PacketAction{Kind: ActionOK} }

// NewBlock announces a freshly mined/received block along with the total
// difficulty of the chain it extends.
type NewBlock struct {
	Block *RawBlock
	TD    *big.Int
}

// RawBlock is the wire representation of a full block: a header plus its
// body, encoded as one RLP list (matches go-ethereum's types.Block wire
// shape).
type RawBlock struct {
	Header       *BlockHeader
	Transactions []rlp.RawValue
	Uncles       []*BlockHeader
}

func (p *NewBlock) Type() PacketType            { return NewBlockMsg }
func (p *NewBlock) EncodeBody() ([]byte, error) { return rlp.EncodeToBytes(p) }
func (p *NewBlock) Handle() PacketAction         { return PacketAction{Kind: ActionOK} }

// NewBlockHashes announces one or more new blocks by hash and number
// without sending the full body, letting the receiver decide whether to
// fetch it.
type NewBlockHashes []struct {
	Hash   [32]byte
	Number uint64
}

func (p *NewBlockHashes) Type() PacketType            { return NewBlockHashesMsg }
func (p *NewBlockHashes) EncodeBody() ([]byte, error) { return rlp.EncodeToBytes(p) }
func (p *NewBlockHashes) Handle() PacketAction        { return PacketAction{Kind: ActionOK} }

// TransactionsPacket both announces and answers for full transactions,
// each carried as an opaque RLP-encoded envelope.
type TransactionsPacket []rlp.RawValue

func (p *TransactionsPacket) Type() PacketType            { return TransactionsMsg }
func (p *TransactionsPacket) EncodeBody() ([]byte, error) { return rlp.EncodeToBytes(p) }
func (p *TransactionsPacket) Handle() PacketAction         { return PacketAction{Kind: ActionOK} }

// NewPooledTransactionHashes announces transactions available in the
// sender's pool by hash only, so the receiver can selectively fetch the
// ones it's missing.
type NewPooledTransactionHashes [][32]byte

func (p *NewPooledTransactionHashes) Type() PacketType            { return NewPooledTransactionHashesMsg }
func (p *NewPooledTransactionHashes) EncodeBody() ([]byte, error) { return rlp.EncodeToBytes(p) }
func (p *NewPooledTransactionHashes) Handle() PacketAction        { return PacketAction{Kind: ActionOK} }

// GetPooledTransactions requests full transactions by hash, typically in
// response to a NewPooledTransactionHashes announcement.
type GetPooledTransactions [][32]byte

func (p *GetPooledTransactions) Type() PacketType            { return GetPooledTransactionsMsg }
func (p *GetPooledTransactions) EncodeBody() ([]byte, error) { return rlp.EncodeToBytes(p) }
func (p *GetPooledTransactions) Handle() PacketAction         { return PacketAction{Kind: ActionOK} }

// PooledTransactions answers a GetPooledTransactions request.
type PooledTransactions []rlp.RawValue

func (p *PooledTransactions) Type() PacketType            { return PooledTransactionsMsg }
func (p *PooledTransactions) EncodeBody() ([]byte, error) { return rlp.EncodeToBytes(p) }
func (p *PooledTransactions) Handle() PacketAction         { return PacketAction{Kind: ActionOK} }
