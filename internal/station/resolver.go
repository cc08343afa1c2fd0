// Package station resolves free-text station queries to canonical station keys.
package station

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
)

const (
	maxSuggestions   = 10
	suggestionCutoff = 0.6
)

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

// Canonical reduces a key or name to lower-case ASCII words joined by
// underscores. It is idempotent.
func Canonical(s string) string {
	t := strings.ToLower(strings.TrimSpace(domain.RepairMojibake(s)))
	t = domain.FoldASCII(t)
	t = nonAlnumRe.ReplaceAllString(t, "_")
	return strings.Trim(t, "_")
}

// Resolver maps queries onto a fixed set of known station keys.
// It is immutable after construction and safe for concurrent use.
type Resolver struct {
	keys   []string          // canonical, sorted
	known  map[string]bool   // canonical key set
	byName map[string]string // canonical display name -> key
	names  []string          // canonical display names, sorted
}

// NewResolver builds a resolver from stations whose keys are already
// canonical. Stations sharing a key keep the first display name seen.
func NewResolver(stations []domain.Station) *Resolver {
	r := &Resolver{
		known:  make(map[string]bool, len(stations)),
		byName: make(map[string]string, len(stations)),
	}
	for _, st := range stations {
		key := Canonical(st.Key)
		if key == "" || r.known[key] {
			continue
		}
		r.known[key] = true
		r.keys = append(r.keys, key)
		if name := Canonical(st.Name); name != "" {
			if _, dup := r.byName[name]; !dup {
				r.byName[name] = key
				r.names = append(r.names, name)
			}
		}
	}
	slices.Sort(r.keys)
	slices.Sort(r.names)
	return r
}

// Keys returns the sorted canonical keys.
func (r *Resolver) Keys() []string {
	return slices.Clone(r.keys)
}

// Resolve returns the station key for query. Matching tries, in order, the
// exact key, the exact display name, a substring of a key, and a substring of
// a display name. When nothing matches it returns a *domain.NotFoundError
// carrying similar keys.
func (r *Resolver) Resolve(query string) (string, error) {
	q := Canonical(query)
	if q == "" {
		return "", &domain.NotFoundError{Query: query}
	}
	if r.known[q] {
		return q, nil
	}
	if key, ok := r.byName[q]; ok {
		return key, nil
	}
	for _, k := range r.keys {
		if strings.Contains(k, q) {
			return k, nil
		}
	}
	for _, n := range r.names {
		if strings.Contains(n, q) {
			return r.byName[n], nil
		}
	}
	return "", &domain.NotFoundError{Query: query, Suggestions: r.Suggest(q)}
}

// Suggest returns up to ten known keys whose similarity to the canonical
// query is at least 0.6, best first. Equal scores list the greater key first.
func (r *Resolver) Suggest(query string) []string {
	q := chars(Canonical(query))
	type scored struct {
		key   string
		ratio float64
	}
	var hits []scored
	for _, k := range r.keys {
		ratio := difflib.NewMatcher(q, chars(k)).Ratio()
		if ratio >= suggestionCutoff {
			hits = append(hits, scored{k, ratio})
		}
	}
	slices.SortFunc(hits, func(a, b scored) int {
		return cmp.Or(cmp.Compare(b.ratio, a.ratio), cmp.Compare(b.key, a.key))
	})
	out := make([]string, 0, min(len(hits), maxSuggestions))
	for _, h := range hits[:min(len(hits), maxSuggestions)] {
		out = append(out, h.key)
	}
	return out
}

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
