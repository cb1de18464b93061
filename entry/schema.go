package entry

import "sort"

// NameField is always ordered first in a schema.
const NameField = "name"

// Schema returns the ordered field names of fields: "name" first when
// present, the rest sorted lexicographically.
func Schema(fields Fields) []string {
	keys := make([]string, 0, len(fields))
	hasName := false
	for k := range fields {
		if k == NameField {
			hasName = true
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if hasName {
		keys = append([]string{NameField}, keys...)
	}
	return keys
}

// SchemaOf returns the schema of the first entry, or nil for no entries.
func SchemaOf(entries []Entry) []string {
	if len(entries) == 0 {
		return nil
	}
	return Schema(entries[0].Fields)
}
