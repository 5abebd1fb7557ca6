package guardian

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Codec implementations for the concrete element types ChainStore and
// Registry persist through storage.OrderedSequence/storage.KeyedMap.

type hashCodec struct{}

func (hashCodec) Encode(s string) []byte         { return []byte(s) }
func (hashCodec) Decode(b []byte) (string, error) { return string(b), nil }

type probCodec struct{}

func (probCodec) Encode(p Prob) []byte { return []byte{byte(p)} }
func (probCodec) Decode(b []byte) (Prob, error) {
	if len(b) != 1 {
		return 0, fmt.Errorf("guardian: malformed prob encoding (%d bytes)", len(b))
	}
	return Prob(b[0]), nil
}

type u32Codec struct{}

func (u32Codec) Encode(v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return buf[:]
}
func (u32Codec) Decode(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("guardian: malformed uint32 encoding (%d bytes)", len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}

type u64Codec struct{}

func (u64Codec) Encode(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}
func (u64Codec) Decode(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("guardian: malformed uint64 encoding (%d bytes)", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

type boolCodec struct{}

func (boolCodec) Encode(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}
func (boolCodec) Decode(b []byte) (bool, error) {
	if len(b) != 1 {
		return false, fmt.Errorf("guardian: malformed bool encoding (%d bytes)", len(b))
	}
	return b[0] != 0, nil
}

type int64Codec struct{}

func (int64Codec) Encode(v int64) []byte { return u64Codec{}.Encode(uint64(v)) }
func (int64Codec) Decode(b []byte) (int64, error) {
	v, err := u64Codec{}.Decode(b)
	return int64(v), err
}

type txCodec struct{}

func (txCodec) Encode(tx *Transaction) []byte {
	data, _ := json.Marshal(tx)
	return data
}
func (txCodec) Decode(b []byte) (*Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal(b, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

type unconfirmedEntry struct {
	BlockHash  string `json:"block_hash"`
	GroupIndex int    `json:"group_index"`
	TxIndex    int    `json:"tx_index"`
}

type unconfirmedCodec struct{}

func (unconfirmedCodec) Encode(e unconfirmedEntry) []byte {
	data, _ := json.Marshal(e)
	return data
}
func (unconfirmedCodec) Decode(b []byte) (unconfirmedEntry, error) {
	var e unconfirmedEntry
	err := json.Unmarshal(b, &e)
	return e, err
}

type blockCodec struct{}

func (blockCodec) Encode(b *Block) []byte {
	data, _ := json.Marshal(b)
	return data
}
func (blockCodec) Decode(b []byte) (*Block, error) {
	var blk Block
	if err := json.Unmarshal(b, &blk); err != nil {
		return nil, err
	}
	return &blk, nil
}
