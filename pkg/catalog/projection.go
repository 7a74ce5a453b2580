package catalog

import "strings"

// Fields is an ordered set of requested field names
type Fields []string

// ParseFields splits a comma-separated field list. Blank entries are dropped.
func ParseFields(raw string) Fields {
	var fields Fields
	for _, f := range strings.Split(raw, ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// All reports whether the set selects the whole document
func (f Fields) All() bool {
	for _, name := range f {
		if strings.TrimSpace(name) != "" {
			return false
		}
	}
	return true
}

// projectionNode is one level of a projection tree. A nil children map selects the
// whole value at that level.
type projectionNode struct {
	children map[string]*projectionNode
}

func buildProjection(fields Fields) *projectionNode {
	root := &projectionNode{children: map[string]*projectionNode{}}
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		node := root
		parts := strings.Split(field, ".")
		for i, part := range parts {
			if node.children == nil {
				// an ancestor already selects everything
				break
			}
			child, ok := node.children[part]
			if i == len(parts)-1 {
				node.children[part] = &projectionNode{}
				break
			}
			if !ok {
				child = &projectionNode{children: map[string]*projectionNode{}}
				node.children[part] = child
			}
			node = child
		}
	}
	return root
}

// Project returns a copy of doc restricted to fields. An empty field set returns a
// copy of the whole document; names that do not exist are ignored.
func Project(doc Document, fields Fields) Document {
	if fields.All() {
		return doc.Clone()
	}
	projected, _ := projectValue(map[string]interface{}(doc), buildProjection(fields))
	out, _ := projected.(map[string]interface{})
	if out == nil {
		out = map[string]interface{}{}
	}
	return Document(out)
}

// ProjectAll projects every document in docs
func ProjectAll(docs []Document, fields Fields) []Document {
	out := make([]Document, len(docs))
	for i, doc := range docs {
		out[i] = Project(doc, fields)
	}
	return out
}

func projectValue(value interface{}, node *projectionNode) (interface{}, bool) {
	if node.children == nil {
		return cloneValue(value), true
	}

	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(node.children))
		for key, child := range node.children {
			val, ok := v[key]
			if !ok {
				continue
			}
			if projected, keep := projectValue(val, child); keep {
				out[key] = projected
			}
		}
		return out, true
	case Document:
		return projectValue(map[string]interface{}(v), node)
	case []interface{}:
		out := make([]interface{}, 0, len(v))
		for _, elem := range v {
			if projected, keep := projectValue(elem, node); keep {
				out = append(out, projected)
			}
		}
		return out, true
	default:
		// sub-field requested on a scalar
		return nil, false
	}
}
