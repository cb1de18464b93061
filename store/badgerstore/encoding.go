package badgerstore

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/acksell/registers/entry"
	"github.com/fxamacker/cbor/v2"
)

// Key encoding for BadgerDB. Components are separated by 0x00 and escaped so
// they never contain the separator, which keeps every prefix unambiguous.
//
//	p 0x00 tenant                              -> current generation id
//	n 0x00 tenant 0x00 gen                     -> next sequence number
//	s 0x00 tenant 0x00 gen 0x00 seq(be64)      -> hash
//	h 0x00 tenant 0x00 gen 0x00 hash           -> record
//
// Sequence numbers increase with every write, so iterating the s keys in
// reverse yields the most recently written entries first.

const keySeparator byte = 0x00

const (
	kindPointer  byte = 'p'
	kindNextSeq  byte = 'n'
	kindSequence byte = 's'
	kindHash     byte = 'h'
)

func encodeKey(kind byte, components ...string) []byte {
	var buf bytes.Buffer
	buf.WriteByte(kind)
	for _, c := range components {
		buf.WriteByte(keySeparator)
		buf.Write(escapeBytes([]byte(c)))
	}
	return buf.Bytes()
}

func pointerKey(tenant string) []byte {
	return encodeKey(kindPointer, tenant)
}

func nextSeqKey(tenant, gen string) []byte {
	return encodeKey(kindNextSeq, tenant, gen)
}

// sequencePrefix returns the prefix of all sequence keys of a generation.
func sequencePrefix(tenant, gen string) []byte {
	return append(encodeKey(kindSequence, tenant, gen), keySeparator)
}

func sequenceKey(tenant, gen string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(sequencePrefix(tenant, gen), seq)
}

// hashPrefix returns the prefix of all hash keys of a generation.
func hashPrefix(tenant, gen string) []byte {
	return append(encodeKey(kindHash, tenant, gen), keySeparator)
}

func hashKey(tenant, gen, hash string) []byte {
	return append(hashPrefix(tenant, gen), escapeBytes([]byte(hash))...)
}

// escapeBytes escapes null bytes (0x00) in the input to preserve separator integrity.
// Uses 0x01 0x01 for literal 0x00, and 0x01 0x02 for literal 0x01.
func escapeBytes(b []byte) []byte {
	var buf bytes.Buffer
	for _, c := range b {
		switch c {
		case 0x00:
			buf.WriteByte(0x01)
			buf.WriteByte(0x01)
		case 0x01:
			buf.WriteByte(0x01)
			buf.WriteByte(0x02)
		default:
			buf.WriteByte(c)
		}
	}
	return buf.Bytes()
}

func incrementBytes(b []byte) []byte {
	result := make([]byte, len(b))
	copy(result, b)
	for i := len(result) - 1; i >= 0; i-- {
		if result[i] < 0xFF {
			result[i]++
			return result
		}
		result[i] = 0
	}
	// Overflow - append 0x00
	return append(result, 0x00)
}

func encodeUint64(n uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, n)
}

func decodeUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("invalid encoded sequence length: %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// record is the stored value of a hash key.
type record struct {
	Seq    uint64       `cbor:"1,keyasint"`
	Fields entry.Fields `cbor:"2,keyasint"`
}

func encodeRecord(r record) ([]byte, error) {
	b, err := cbor.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return b, nil
}

func decodeRecord(data []byte) (record, error) {
	var r record
	if err := cbor.Unmarshal(data, &r); err != nil {
		return record{}, fmt.Errorf("decode record: %w", err)
	}
	return r, nil
}
