package entry

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
	"golang.org/x/text/unicode/norm"
)

// encMode encodes with CBOR Core Deterministic Encoding (RFC 8949 §4.2):
// sorted map keys and definite lengths, so equal content yields equal bytes.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("entry: CBOR encoder initialization failed: " + err.Error())
	}
}

// addressKey is the BLAKE3 key for entry addresses. Changing it changes the
// address of every entry ever stored.
var addressKey = [32]byte{
	'r', 'e', 'g', 'i', 's', 't', 'e', 'r', 's', '.', 'e', 'n', 't', 'r', 'y', '.',
	'a', 'd', 'd', 'r', 'e', 's', 's', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Address returns the content address of fields: the hex-encoded BLAKE3-256
// keyed hash of their canonical form.
func Address(fields Fields) string {
	hasher, err := blake3.NewKeyed(addressKey[:])
	if err != nil {
		panic("entry: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(CanonicalForm(fields))
	return hex.EncodeToString(hasher.Sum(nil))
}

// ErrDuplicateField reports two field names that are equal once normalized.
var ErrDuplicateField = errors.New("duplicate field name")

// Normalize returns a copy of fields with every name and value in NFC. Two
// names that normalize to the same string are an error: keeping either
// would silently drop the other.
func Normalize(fields Fields) (Fields, error) {
	out := make(Fields, len(fields))
	for _, name := range fields.Names() {
		key := norm.NFC.String(name)
		if _, ok := out[key]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateField, key)
		}
		out[key] = normalizeValue(fields[name])
	}
	return out, nil
}

func normalizeValue(v Value) Value {
	if !v.IsList() {
		return String(norm.NFC.String(v.String()))
	}
	items := v.Strings()
	for i := range items {
		items[i] = norm.NFC.String(items[i])
	}
	return List(items...)
}

// CanonicalForm returns the deterministic byte encoding of fields that
// Address hashes. Names and values are NFC-normalized; list order is kept.
// Fields should already be normalized; if two names still collide the one
// sorting last by raw bytes wins, so the result never depends on map order.
func CanonicalForm(fields Fields) []byte {
	m := make(map[string]any, len(fields))
	for _, name := range fields.Names() {
		m[norm.NFC.String(name)] = normalizeValue(fields[name]).Any()
	}
	b, err := encMode.Marshal(m)
	if err != nil {
		// Only strings and string slices reach the encoder.
		panic("entry: canonical encoding failed: " + err.Error())
	}
	return b
}
