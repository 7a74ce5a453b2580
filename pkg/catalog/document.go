package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Document is the JSON object form of a catalog record. Projection, filtering and
// reshaping all work on documents so stored records are never touched.
type Document map[string]interface{}

// ToDocument converts a value to its JSON object form
func ToDocument(v interface{}) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return doc, nil
}

// Clone returns a deep copy of the document
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]interface{}(d)).(map[string]interface{})
}

// Lookup resolves a dotted path and returns every value found at it. Arrays met along
// the way are walked element by element, so "versions.version" yields one value per
// version. The boolean reports whether the path exists at all.
func (d Document) Lookup(path string) ([]interface{}, bool) {
	if path == "" {
		return nil, false
	}
	return lookup(map[string]interface{}(d), strings.Split(path, "."))
}

func lookup(value interface{}, parts []string) ([]interface{}, bool) {
	if len(parts) == 0 {
		return []interface{}{value}, true
	}

	switch v := value.(type) {
	case map[string]interface{}:
		child, ok := v[parts[0]]
		if !ok {
			return nil, false
		}
		return lookup(child, parts[1:])
	case Document:
		return lookup(map[string]interface{}(v), parts)
	case []interface{}:
		var out []interface{}
		found := false
		for _, elem := range v {
			vals, ok := lookup(elem, parts)
			if ok {
				found = true
				out = append(out, vals...)
			}
		}
		return out, found
	default:
		return nil, false
	}
}

func cloneValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[k] = cloneValue(val)
		}
		return out
	case Document:
		return cloneValue(map[string]interface{}(v))
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}
