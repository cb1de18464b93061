package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/acksell/registers/entry"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// parseRecords returns the records held by one record file. A YAML file
// may hold several documents and a JSON file an array of objects.
func parseRecords(name string, data []byte) ([]entry.Fields, error) {
	switch path.Ext(name) {
	case ".json":
		return parseJSON(data)
	default:
		return parseYAML(data)
	}
}

func parseYAML(data []byte) ([]entry.Fields, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var records []entry.Fields
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(doc.Content) == 0 {
			continue
		}
		fields, err := yamlRecord(doc.Content[0])
		if err != nil {
			return nil, err
		}
		records = append(records, fields)
	}
	if len(records) == 0 {
		return nil, errors.New("no records")
	}
	return records, nil
}

func yamlRecord(n *yaml.Node) (entry.Fields, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: record must be a mapping", n.Line)
	}
	fields := make(entry.Fields, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		switch v.Kind {
		case yaml.ScalarNode:
			if v.Tag == "!!null" {
				continue
			}
			fields[k.Value] = entry.String(v.Value)
		case yaml.SequenceNode:
			items := make([]string, 0, len(v.Content))
			for _, item := range v.Content {
				if item.Kind != yaml.ScalarNode || item.Tag == "!!null" {
					return nil, fmt.Errorf("line %d: field %q: list elements must be scalars", item.Line, k.Value)
				}
				items = append(items, item.Value)
			}
			fields[k.Value] = entry.List(items...)
		default:
			return nil, fmt.Errorf("line %d: field %q: nested values are not supported", v.Line, k.Value)
		}
	}
	normalized, err := entry.Normalize(fields)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", n.Line, err)
	}
	return normalized, nil
}

// parseJSON accepts JSON with comments and trailing commas.
func parseJSON(data []byte) ([]entry.Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	var objects []any
	switch x := v.(type) {
	case map[string]any:
		objects = []any{x}
	case []any:
		objects = x
	default:
		return nil, fmt.Errorf("expected an object or an array of objects, got %T", v)
	}

	records := make([]entry.Fields, 0, len(objects))
	for i, o := range objects {
		m, ok := o.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("record %d: expected an object, got %T", i, o)
		}
		fields, err := jsonRecord(m)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, fields)
	}
	if len(records) == 0 {
		return nil, errors.New("no records")
	}
	return records, nil
}

func jsonRecord(m map[string]any) (entry.Fields, error) {
	fields := make(entry.Fields, len(m))
	for k, x := range m {
		if x == nil {
			continue
		}
		if list, ok := x.([]any); ok {
			items := make([]string, 0, len(list))
			for _, item := range list {
				s, err := jsonScalar(item)
				if err != nil {
					return nil, fmt.Errorf("field %q: list elements must be scalars", k)
				}
				items = append(items, s)
			}
			fields[k] = entry.List(items...)
			continue
		}
		s, err := jsonScalar(x)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		fields[k] = entry.String(s)
	}
	return entry.Normalize(fields)
}

func jsonScalar(x any) (string, error) {
	switch v := x.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		if v {
			return "true", nil
		}
		return "false", nil
	default:
		return "", fmt.Errorf("nested values are not supported")
	}
}
