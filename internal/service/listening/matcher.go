// internal/service/listening/matcher.go

package listening

import (
	"sort"

	"buzztrack/internal/domain/company"
)

// Matcher finds registry companies mentioned in a text item. Matching is
// exact over normalized token phrases, never prefix or substring containment:
// a company named "Apple Inc" is not matched by the word "apple" alone, and
// "applesauce" matches nothing. This trades recall for precision on names
// that are common English words.
type Matcher struct {
	registry *company.Registry
}

// NewMatcher creates a matcher over the given catalog.
func NewMatcher(registry *company.Registry) *Matcher {
	return &Matcher{registry: registry}
}

// Match returns the set of companies mentioned in text, ordered by name.
// A company is reported at most once per text item regardless of how many
// times it is mentioned within it.
func (m *Matcher) Match(text string) []company.Company {
	toks := company.Tokenize(text)
	if len(toks) == 0 {
		return nil
	}

	maxTok := m.registry.MaxKeyTokens()
	minLen := m.registry.MinKeyLen()

	var matched map[string]company.Company
	for i := range toks {
		key := ""
		for n := 1; n <= maxTok && i+n <= len(toks); n++ {
			if key == "" {
				key = toks[i]
			} else {
				key += " " + toks[i+n-1]
			}
			// no indexed key is this short, skip the lookup
			if len(key) < minLen {
				continue
			}
			c, ok := m.registry.LookupKey(key)
			if !ok {
				continue
			}
			if matched == nil {
				matched = make(map[string]company.Company)
			}
			matched[c.Name] = c
		}
	}
	if len(matched) == 0 {
		return nil
	}

	out := make([]company.Company, 0, len(matched))
	for _, c := range matched {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}
