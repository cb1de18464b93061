package representation

import (
	"bytes"
	"encoding/json"

	"github.com/acksell/registers/entry"
)

// wrapped is the shape shared by the structured codecs: the hash sits next
// to the entry rather than inside it.
type wrapped struct {
	Entry entry.Fields `json:"entry" yaml:"entry" cbor:"entry"`
	Hash  string       `json:"hash" yaml:"hash" cbor:"hash"`
}

func wrap(e entry.Entry) wrapped {
	return wrapped{Entry: e.Fields, Hash: e.Hash}
}

func wrapAll(entries []entry.Entry) []wrapped {
	out := make([]wrapped, len(entries))
	for i, e := range entries {
		out[i] = wrap(e)
	}
	return out
}

// JSON renders {"entry": {...}, "hash": "..."}; many entries are an array.
type JSON struct{}

func (JSON) Suffix() string      { return "json" }
func (JSON) ContentType() string { return "application/json" }

func (JSON) Encode(e entry.Entry) ([]byte, error) {
	return marshalJSON(wrap(e))
}

func (JSON) EncodeMany(entries []entry.Entry) ([]byte, error) {
	return marshalJSON(wrapAll(entries))
}

// JSONLines renders one JSON object per line.
type JSONLines struct{}

func (JSONLines) Suffix() string      { return "jsonl" }
func (JSONLines) ContentType() string { return "application/x-ndjson" }

func (JSONLines) Encode(e entry.Entry) ([]byte, error) {
	return marshalJSON(wrap(e))
}

func (JSONLines) EncodeMany(entries []entry.Entry) ([]byte, error) {
	var buf bytes.Buffer
	for _, e := range entries {
		b, err := marshalJSON(wrap(e))
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

// marshalJSON encodes v without HTML escaping, newline terminated.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
