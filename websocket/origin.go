package websocket

import "regexp"

// OriginMatcher decides whether a single Origin header value is allowed.
// It is the tagged-variant {Exact(string), Pattern(compiled_regex)} from
// the design notes, expressed as a Go interface instead of a sum type.
type OriginMatcher interface {
	Match(origin string) bool
}

// exactOrigin matches an origin by case-sensitive string equality.
type exactOrigin string

func (e exactOrigin) Match(origin string) bool { return string(e) == origin }

// Exact returns an OriginMatcher requiring the origin to equal s exactly.
func Exact(s string) OriginMatcher { return exactOrigin(s) }

// patternOrigin matches an origin against a compiled, anchored regex.
type patternOrigin struct{ re *regexp.Regexp }

func (p patternOrigin) Match(origin string) bool { return p.re.MatchString(origin) }

// Pattern returns an OriginMatcher requiring the whole origin to match re.
// re is anchored at both ends (^(?:re)$), so a match on only part of the
// origin is rejected.
func Pattern(re *regexp.Regexp) OriginMatcher {
	return patternOrigin{re: regexp.MustCompile(`^(?:` + re.String() + `)$`)}
}

// OriginAllowList is an ordered set of OriginMatchers checked during the
// handshake. An empty list means "allow all origins": Allowed only rejects
// a non-empty Origin header when the list itself is non-empty and none of
// its matchers accept it.
type OriginAllowList []OriginMatcher

// Allowed reports whether origin is acceptable. An empty origin always
// returns true. PerformHandshake does not call Allowed at all for a request
// carrying no Origin header.
func (l OriginAllowList) Allowed(origin string) bool {
	if origin == "" || len(l) == 0 {
		return true
	}
	for _, m := range l {
		if m.Match(origin) {
			return true
		}
	}
	return false
}
