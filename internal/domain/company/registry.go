// internal/domain/company/registry.go

package company

import (
	"fmt"
	"strings"
	"unicode"
)

// ConfigError reports an ambiguous or malformed company reference list.
// Registry construction fails instead of guessing which company a key
// should resolve to.
type ConfigError struct {
	Key    string // normalized key that collided, empty for malformed records
	Detail string
}

func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("company registry: %s (key %q)", e.Detail, e.Key)
	}
	return "company registry: " + e.Detail
}

// Registry is an immutable lookup over company names, aliases and tickers.
// Keys are normalized with NormalizeKey; tickers are indexed both bare and
// with a leading '$'.
type Registry struct {
	companies []Company
	index     map[string]int
	minKeyLen int
	maxKeyTok int
	warnings  []string
}

// BuildRegistry constructs a registry from the reference list. Two distinct
// companies normalizing to the same key is a data-entry error and fails with
// a *ConfigError. Overlaps that are not exact duplicates (one key contained
// in another company's key) are only collected as warnings.
func BuildRegistry(records []Company) (*Registry, error) {
	r := &Registry{
		companies: make([]Company, len(records)),
		index:     make(map[string]int),
	}
	copy(r.companies, records)

	for i, c := range r.companies {
		if strings.TrimSpace(c.Name) == "" {
			return nil, &ConfigError{Detail: fmt.Sprintf("record %d has an empty name", i)}
		}

		keys := []string{NormalizeKey(c.Name)}
		for _, alias := range c.Aliases {
			keys = append(keys, NormalizeKey(alias))
		}
		if c.Ticker != "" {
			keys = append(keys, NormalizeKey(c.Ticker), NormalizeKey("$"+c.Ticker))
		}

		for _, key := range keys {
			if key == "" {
				r.warnings = append(r.warnings, fmt.Sprintf("%s: key normalizes to nothing and is ignored", c.Name))
				continue
			}
			if j, ok := r.index[key]; ok {
				if j != i {
					return nil, &ConfigError{
						Key:    key,
						Detail: fmt.Sprintf("%q and %q normalize to the same key", r.companies[j].Name, c.Name),
					}
				}
				continue
			}
			r.index[key] = i

			if n := len(key); r.minKeyLen == 0 || n < r.minKeyLen {
				r.minKeyLen = n
			}
			if n := strings.Count(key, " ") + 1; n > r.maxKeyTok {
				r.maxKeyTok = n
			}
		}
	}

	r.collectOverlapWarnings()

	return r, nil
}

// Resolve looks up a single token or phrase after normalization.
func (r *Registry) Resolve(token string) (Company, bool) {
	return r.LookupKey(NormalizeKey(token))
}

// LookupKey looks up an already-normalized key as produced by NormalizeKey.
func (r *Registry) LookupKey(key string) (Company, bool) {
	if key == "" {
		return Company{}, false
	}
	i, ok := r.index[key]
	if !ok {
		return Company{}, false
	}
	return r.companies[i], true
}

// All returns the companies in reference-list order.
func (r *Registry) All() []Company {
	out := make([]Company, len(r.companies))
	copy(out, r.companies)
	return out
}

// Len returns the number of companies in the registry.
func (r *Registry) Len() int {
	return len(r.companies)
}

// MinKeyLen is the length of the shortest indexed key. Match candidates
// shorter than this cannot hit the index.
func (r *Registry) MinKeyLen() int {
	return r.minKeyLen
}

// MaxKeyTokens is the token count of the longest indexed key. It bounds the
// phrase window a matcher has to consider.
func (r *Registry) MaxKeyTokens() int {
	return r.maxKeyTok
}

// Warnings lists non-fatal findings from construction, e.g. one company's
// key contained inside another's. Callers are expected to log them.
func (r *Registry) Warnings() []string {
	out := make([]string, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// collectOverlapWarnings flags keys of distinct companies where one key's
// token sequence appears inside the other's. These are legal but are the
// main source of surprising matches.
func (r *Registry) collectOverlapWarnings() {
	type ownedKey struct {
		owner  int
		tokens []string
	}

	keys := make([]ownedKey, 0, len(r.index))
	for key, owner := range r.index {
		if strings.HasPrefix(key, "$") {
			continue
		}
		keys = append(keys, ownedKey{owner: owner, tokens: strings.Split(key, " ")})
	}

	for i := 0; i < len(keys); i++ {
		for j := 0; j < len(keys); j++ {
			if keys[i].owner == keys[j].owner || len(keys[i].tokens) >= len(keys[j].tokens) {
				continue
			}
			if containsRun(keys[j].tokens, keys[i].tokens) {
				r.warnings = append(r.warnings, fmt.Sprintf(
					"%q key %q is contained in %q key %q",
					r.companies[keys[i].owner].Name, strings.Join(keys[i].tokens, " "),
					r.companies[keys[j].owner].Name, strings.Join(keys[j].tokens, " "),
				))
			}
		}
	}
}

// containsRun reports whether needle occurs as a contiguous run in haystack.
func containsRun(haystack, needle []string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for k := range needle {
			if haystack[i+k] != needle[k] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// Tokenize splits text into normalized candidate tokens. A token is a
// maximal run of letters and digits, lower-cased. A '$' immediately before
// such a run is kept as part of the token so ticker forms like "$ABC"
// survive normalization; every other character separates tokens.
func Tokenize(text string) []string {
	var toks []string
	var b strings.Builder
	dollar := false

	flush := func() {
		if b.Len() > 0 {
			toks = append(toks, b.String())
			b.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if b.Len() == 0 && dollar {
				b.WriteByte('$')
			}
			dollar = false
			b.WriteRune(unicode.ToLower(r))
		case r == '$':
			flush()
			dollar = true
		default:
			flush()
			dollar = false
		}
	}
	flush()

	return toks
}

// NormalizeKey reduces a name, alias or ticker to its index form: tokens
// joined by single spaces. "Amazon.com" and "amazon com" normalize
// identically.
func NormalizeKey(phrase string) string {
	return strings.Join(Tokenize(phrase), " ")
}
