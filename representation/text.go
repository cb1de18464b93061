package representation

import (
	"bytes"

	"github.com/acksell/registers/entry"
)

// Text renders "hash: <hash>" followed by one "field: value" line per
// field. Entries are separated by a blank line.
type Text struct{}

func (Text) Suffix() string      { return "txt" }
func (Text) ContentType() string { return "text/plain; charset=utf-8" }

func (Text) Encode(e entry.Entry) ([]byte, error) {
	var buf bytes.Buffer
	writeText(&buf, e)
	return buf.Bytes(), nil
}

func (Text) EncodeMany(entries []entry.Entry) ([]byte, error) {
	var buf bytes.Buffer
	for i, e := range entries {
		if i > 0 {
			buf.WriteByte('\n')
		}
		writeText(&buf, e)
	}
	return buf.Bytes(), nil
}

func writeText(buf *bytes.Buffer, e entry.Entry) {
	buf.WriteString("hash: ")
	buf.WriteString(e.Hash)
	buf.WriteByte('\n')
	for _, name := range entry.Schema(e.Fields) {
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.WriteString(e.Fields[name].String())
		buf.WriteByte('\n')
	}
}
