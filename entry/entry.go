package entry

import (
	"fmt"
	"sort"
)

// Fields maps field names to values. A field that is absent is omitted.
type Fields map[string]Value

// Get returns the value of the named field.
func (f Fields) Get(name string) (Value, bool) {
	v, ok := f[name]
	return v, ok
}

// Clone returns a shallow copy of f. Values are immutable so this is safe to
// hand out.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Names returns the field names in lexicographic order.
func (f Fields) Names() []string {
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Primitive returns the fields as plain Go values, suitable for generic
// encoders.
func (f Fields) Primitive() map[string]any {
	out := make(map[string]any, len(f))
	for k, v := range f {
		out[k] = v.Any()
	}
	return out
}

// FieldsOf converts a map of plain values into Fields.
func FieldsOf(m map[string]any) (Fields, error) {
	out := make(Fields, len(m))
	for k, x := range m {
		if x == nil {
			continue
		}
		v, err := ValueOf(x)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// Entry is a content-addressed record. Hash is always Address(Fields).
type Entry struct {
	Hash   string
	Fields Fields
}

// New builds an Entry for fields, computing its address.
func New(fields Fields) Entry {
	return Entry{
		Hash:   Address(fields),
		Fields: fields,
	}
}

// Verify reports whether e's hash matches its field content.
func (e Entry) Verify() bool {
	return e.Hash == Address(e.Fields)
}
