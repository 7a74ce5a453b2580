package sanitize

import (
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/gorilla/mux"
	"github.com/microcosm-cc/bluemonday"
)

// tagLike matches text that a browser would parse as the start of an element
var tagLike = regexp.MustCompile(`<[a-zA-Z/!?]`)

// Sanitizer strips markup from request input
type Sanitizer struct {
	policy *bluemonday.Policy
}

// New creates a sanitizer that removes every HTML element
func New() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean removes tags from v and returns its plain text. Comparison operators such
// as "<=" pass through; text that would decode back into markup stays escaped.
func (s *Sanitizer) Clean(v string) string {
	if v == "" || !strings.ContainsAny(v, "<>&") {
		return v
	}
	cleaned := html.UnescapeString(s.policy.Sanitize(v))
	if tagLike.MatchString(cleaned) {
		return html.EscapeString(cleaned)
	}
	return cleaned
}

// Values cleans every value of q in place and reports whether any changed
func (s *Sanitizer) Values(q url.Values) bool {
	changed := false
	for _, values := range q {
		for i, v := range values {
			if c := s.Clean(v); c != v {
				values[i] = c
				changed = true
			}
		}
	}
	return changed
}

// Middleware cleans query values and route variables before the handler sees
// them. It must run as router middleware so route variables are populated.
func (s *Sanitizer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			if q := r.URL.Query(); s.Values(q) {
				u := *r.URL
				u.RawQuery = q.Encode()
				r.URL = &u
			}
		}

		if vars := mux.Vars(r); len(vars) > 0 {
			cleaned := make(map[string]string, len(vars))
			for k, v := range vars {
				cleaned[k] = s.Clean(v)
			}
			r = mux.SetURLVars(r, cleaned)
		}

		next.ServeHTTP(w, r)
	})
}
