// Package representation encodes entries into the wire formats a register
// is served in. Codecs are looked up by URL suffix from an immutable
// Registry built once at startup.
package representation

import (
	"errors"
	"fmt"
	"sort"

	"github.com/acksell/registers/entry"
)

// ErrUnknownRepresentation is returned for a suffix no codec is registered for.
var ErrUnknownRepresentation = errors.New("unknown representation")

// Codec encodes entries into one representation. The hash is always
// rendered as metadata next to the fields, never as a field.
type Codec interface {
	Suffix() string
	ContentType() string
	Encode(e entry.Entry) ([]byte, error)
	EncodeMany(entries []entry.Entry) ([]byte, error)
}

// Registry maps suffixes to codecs. It is read-only after construction
// and safe for concurrent use.
type Registry struct {
	codecs   map[string]Codec
	suffixes []string
}

// NewRegistry builds a registry from codecs. Two codecs with the same
// suffix is an error.
func NewRegistry(codecs ...Codec) (*Registry, error) {
	r := &Registry{codecs: make(map[string]Codec, len(codecs))}
	for _, c := range codecs {
		suffix := c.Suffix()
		if suffix == "" {
			return nil, fmt.Errorf("codec %T has an empty suffix", c)
		}
		if _, dup := r.codecs[suffix]; dup {
			return nil, fmt.Errorf("duplicate representation %q", suffix)
		}
		r.codecs[suffix] = c
		r.suffixes = append(r.suffixes, suffix)
	}
	sort.Strings(r.suffixes)
	return r, nil
}

// DefaultRegistry returns a registry holding every built-in codec. links
// controls how the Turtle codec renders field values.
func DefaultRegistry(links Links) *Registry {
	r, err := NewRegistry(
		JSON{},
		JSONLines{},
		YAML{},
		CSV(),
		TSV(),
		CBOR{},
		Turtle{Links: links},
		Text{},
	)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the codec for suffix.
func (r *Registry) Lookup(suffix string) (Codec, bool) {
	c, ok := r.codecs[suffix]
	return c, ok
}

// Get is Lookup returning ErrUnknownRepresentation for a missing suffix.
func (r *Registry) Get(suffix string) (Codec, error) {
	c, ok := r.codecs[suffix]
	if !ok {
		return nil, fmt.Errorf("%q: %w", suffix, ErrUnknownRepresentation)
	}
	return c, nil
}

// Suffixes returns the registered suffixes in sorted order.
func (r *Registry) Suffixes() []string {
	out := make([]string, len(r.suffixes))
	copy(out, r.suffixes)
	return out
}
