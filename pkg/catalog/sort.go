package catalog

import (
	"encoding/json"
	"sort"
	"strings"
)

// DefaultSort is the sort key used when a request does not name one
const DefaultSort = "slug"

// SortDocuments orders docs in place by the value at key. A leading "-" sorts in
// descending order. Documents missing the key sort first; the sort is stable, so an
// unknown key leaves the input order untouched.
func SortDocuments(docs []Document, key string) {
	key = strings.TrimSpace(key)
	descending := false
	if strings.HasPrefix(key, "-") {
		descending = true
		key = strings.TrimPrefix(key, "-")
	}
	if key == "" {
		return
	}

	sort.SliceStable(docs, func(i, j int) bool {
		c := compareValues(sortValue(docs[i], key), sortValue(docs[j], key))
		if descending {
			return c > 0
		}
		return c < 0
	})
}

func sortValue(doc Document, key string) interface{} {
	vals, ok := doc.Lookup(key)
	if !ok || len(vals) == 0 {
		return nil
	}
	if arr, isArr := vals[0].([]interface{}); isArr {
		if len(arr) == 0 {
			return nil
		}
		return arr[0]
	}
	return vals[0]
}

// typeRank gives the cross-type ordering: missing < bool < number < string < other
func typeRank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case string:
		return 3
	}
	if _, ok := toFloat(v); ok {
		return 2
	}
	return 4
}

// compareValues returns -1, 0 or 1
func compareValues(a, b interface{}) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ra {
	case 1:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case 2:
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	case 3:
		return strings.Compare(a.(string), b.(string))
	}
	return 0
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
