package representation

import (
	"github.com/acksell/registers/entry"
	"gopkg.in/yaml.v3"
)

// YAML renders an entry as a mapping of entry and hash; many entries are a
// sequence of those mappings.
type YAML struct{}

func (YAML) Suffix() string      { return "yaml" }
func (YAML) ContentType() string { return "text/yaml; charset=utf-8" }

func (YAML) Encode(e entry.Entry) ([]byte, error) {
	return yaml.Marshal(wrap(e))
}

func (YAML) EncodeMany(entries []entry.Entry) ([]byte, error) {
	return yaml.Marshal(wrapAll(entries))
}
