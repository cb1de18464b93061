package representation

import (
	"bytes"
	"encoding/csv"

	"github.com/acksell/registers/entry"
)

// Delimited renders a header row of "hash" followed by the field schema,
// then one row per entry. The schema covers the fields of every entry, so a
// field missing from the first entry still gets a column. List values are
// joined with entry.ListSeparator.
type Delimited struct {
	suffix      string
	contentType string
	comma       rune
}

// CSV returns the comma separated codec.
func CSV() Delimited {
	return Delimited{suffix: "csv", contentType: "text/csv; charset=utf-8", comma: ','}
}

// TSV returns the tab separated codec.
func TSV() Delimited {
	return Delimited{suffix: "tsv", contentType: "text/tab-separated-values; charset=utf-8", comma: '\t'}
}

func (d Delimited) Suffix() string      { return d.suffix }
func (d Delimited) ContentType() string { return d.contentType }

func (d Delimited) Encode(e entry.Entry) ([]byte, error) {
	return d.EncodeMany([]entry.Entry{e})
}

func (d Delimited) EncodeMany(entries []entry.Entry) ([]byte, error) {
	schema := unionSchema(entries)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = d.comma

	row := make([]string, 0, len(schema)+1)
	row = append(row, "hash")
	row = append(row, schema...)
	if err := w.Write(row); err != nil {
		return nil, err
	}
	for _, e := range entries {
		row = append(row[:0], e.Hash)
		for _, name := range schema {
			v, _ := e.Fields.Get(name)
			row = append(row, v.String())
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// unionSchema orders every field name used by entries the way
// entry.Schema orders a single entry's fields.
func unionSchema(entries []entry.Entry) []string {
	all := make(entry.Fields)
	for _, e := range entries {
		for name := range e.Fields {
			all[name] = entry.Value{}
		}
	}
	return entry.Schema(all)
}
