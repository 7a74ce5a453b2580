package catalog

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Filter is a single search criterion
type Filter struct {
	Field  string      `json:"field"`
	Action string      `json:"action"`
	Value  interface{} `json:"value"`
}

// Supported filter actions
const (
	ActionEqual        = "="
	ActionNotEqual     = "!="
	ActionLess         = "<"
	ActionLessEqual    = "<="
	ActionGreater      = ">"
	ActionGreaterEqual = ">="
	ActionLike         = "like"
	ActionExists       = "exists"
	ActionNotExists    = "nexists"
	ActionIn           = "in"
	ActionNotIn        = "not in"
	ActionAll          = "all"
	ActionAnd          = "and"
	ActionOr           = "or"
)

// Matcher reports whether a document satisfies a compiled set of filters
type Matcher func(doc Document) bool

// CompileFilters validates filters and combines them with AND semantics. Any filter
// the engine cannot evaluate yields an error wrapping ErrInvalidQuery.
func CompileFilters(filters []Filter) (Matcher, error) {
	if len(filters) == 0 {
		return nil, fmt.Errorf("%w: no filters", ErrInvalidQuery)
	}
	matchers := make([]Matcher, 0, len(filters))
	for _, f := range filters {
		m, err := compileFilter(f)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, m)
	}
	return func(doc Document) bool {
		for _, m := range matchers {
			if !m(doc) {
				return false
			}
		}
		return true
	}, nil
}

func compileFilter(f Filter) (Matcher, error) {
	action := strings.ToLower(strings.TrimSpace(f.Action))

	if action == ActionAnd || action == ActionOr {
		nested, err := nestedFilters(f.Value)
		if err != nil {
			return nil, err
		}
		matchers := make([]Matcher, 0, len(nested))
		for _, n := range nested {
			m, err := compileFilter(n)
			if err != nil {
				return nil, err
			}
			matchers = append(matchers, m)
		}
		if action == ActionAnd {
			return func(doc Document) bool {
				for _, m := range matchers {
					if !m(doc) {
						return false
					}
				}
				return true
			}, nil
		}
		return func(doc Document) bool {
			for _, m := range matchers {
				if m(doc) {
					return true
				}
			}
			return false
		}, nil
	}

	field := strings.TrimSpace(f.Field)
	if field == "" {
		return nil, fmt.Errorf("%w: missing field", ErrInvalidQuery)
	}

	switch action {
	case ActionEqual:
		return func(doc Document) bool {
			return anyCandidate(doc, field, func(v interface{}) bool { return looseEqual(v, f.Value) })
		}, nil

	case ActionNotEqual:
		return func(doc Document) bool {
			return !anyCandidate(doc, field, func(v interface{}) bool { return looseEqual(v, f.Value) })
		}, nil

	case ActionLess, ActionLessEqual, ActionGreater, ActionGreaterEqual:
		if f.Value == nil {
			return nil, fmt.Errorf("%w: %q needs a value", ErrInvalidQuery, action)
		}
		return func(doc Document) bool {
			return anyCandidate(doc, field, func(v interface{}) bool {
				c, ok := looseCompare(v, f.Value)
				if !ok {
					return false
				}
				switch action {
				case ActionLess:
					return c < 0
				case ActionLessEqual:
					return c <= 0
				case ActionGreater:
					return c > 0
				default:
					return c >= 0
				}
			})
		}, nil

	case ActionLike:
		pattern, ok := f.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: like needs a string pattern", ErrInvalidQuery)
		}
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		return func(doc Document) bool {
			return anyCandidate(doc, field, func(v interface{}) bool {
				s, isStr := v.(string)
				return isStr && re.MatchString(s)
			})
		}, nil

	case ActionExists:
		return func(doc Document) bool {
			_, ok := doc.Lookup(field)
			return ok
		}, nil

	case ActionNotExists:
		return func(doc Document) bool {
			_, ok := doc.Lookup(field)
			return !ok
		}, nil

	case ActionIn, ActionNotIn:
		values := listValue(f.Value)
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: %q needs a list", ErrInvalidQuery, action)
		}
		in := func(doc Document) bool {
			return anyCandidate(doc, field, func(v interface{}) bool {
				for _, want := range values {
					if looseEqual(v, want) {
						return true
					}
				}
				return false
			})
		}
		if action == ActionIn {
			return in, nil
		}
		return func(doc Document) bool { return !in(doc) }, nil

	case ActionAll:
		values := listValue(f.Value)
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: all needs a list", ErrInvalidQuery)
		}
		return func(doc Document) bool {
			for _, want := range values {
				if !anyCandidate(doc, field, func(v interface{}) bool { return looseEqual(v, want) }) {
					return false
				}
			}
			return true
		}, nil
	}

	return nil, fmt.Errorf("%w: unsupported action %q", ErrInvalidQuery, f.Action)
}

// anyCandidate applies pred to every value at field, looking inside arrays at the leaf
func anyCandidate(doc Document, field string, pred func(interface{}) bool) bool {
	vals, ok := doc.Lookup(field)
	if !ok {
		return false
	}
	for _, v := range vals {
		if arr, isArr := v.([]interface{}); isArr {
			for _, elem := range arr {
				if pred(elem) {
					return true
				}
			}
			continue
		}
		if pred(v) {
			return true
		}
	}
	return false
}

// coerce converts a filter value to the type of the document value when the filter
// came in as a string (path segments and form values always do)
func coerce(docVal, filterVal interface{}) interface{} {
	s, ok := filterVal.(string)
	if !ok {
		return filterVal
	}
	switch docVal.(type) {
	case bool:
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	case string, nil:
		return s
	default:
		if _, isNum := toFloat(docVal); isNum {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
	}
	return s
}

func looseEqual(docVal, filterVal interface{}) bool {
	c, ok := looseCompare(docVal, filterVal)
	return ok && c == 0
}

func looseCompare(docVal, filterVal interface{}) (int, bool) {
	want := coerce(docVal, filterVal)
	if typeRank(docVal) != typeRank(want) {
		return 0, false
	}
	if typeRank(docVal) == 4 {
		a, errA := json.Marshal(docVal)
		b, errB := json.Marshal(want)
		if errA != nil || errB != nil {
			return 0, false
		}
		if string(a) == string(b) {
			return 0, true
		}
		return 0, false
	}
	return compareValues(docVal, want), true
}

// listValue accepts a JSON list or a comma-separated string
func listValue(v interface{}) []interface{} {
	switch val := v.(type) {
	case []interface{}:
		return val
	case []string:
		out := make([]interface{}, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case string:
		var out []interface{}
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	case nil:
		return nil
	default:
		return []interface{}{val}
	}
}

// nestedFilters decodes the value of an and/or combinator
func nestedFilters(v interface{}) ([]Filter, error) {
	switch val := v.(type) {
	case []Filter:
		if len(val) == 0 {
			return nil, fmt.Errorf("%w: empty combinator", ErrInvalidQuery)
		}
		return val, nil
	case []interface{}, string:
		var data []byte
		if s, ok := val.(string); ok {
			data = []byte(s)
		} else {
			var err error
			if data, err = json.Marshal(val); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
			}
		}
		var filters []Filter
		if err := json.Unmarshal(data, &filters); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		if len(filters) == 0 {
			return nil, fmt.Errorf("%w: empty combinator", ErrInvalidQuery)
		}
		return filters, nil
	}
	return nil, fmt.Errorf("%w: combinator needs a list of filters", ErrInvalidQuery)
}
