// Package tripid canonicalizes trip identifiers so that a realtime feed and a
// static schedule that spell the same trip differently can still be joined.
//
// Feeds commonly prepend agency qualifiers ("0#", "agency:"), swap separators,
// or zero-pad suffixes. Normalize removes those differences; Variants expands a
// normalized id into the separator spellings other feeds are known to use.
package tripid

import (
	"regexp"
	"strings"
)

var (
	agencyQualifier = regexp.MustCompile(`^\d+#`)
	disallowedChars = regexp.MustCompile(`[^A-Za-z0-9_.\-]`)
	leadingSeps     = regexp.MustCompile(`^[-_.]+`)
	trailingSeps    = regexp.MustCompile(`[-_.]+$`)
	zeroPadSuffix   = regexp.MustCompile(`[-_.]0+$`)
	separators      = regexp.MustCompile(`[-_.]`)
)

// shortPrefixLimit bounds how far into the id a generic "xxx:" prefix may end.
const shortPrefixLimit = 6

// Normalize returns the canonical form of raw, or false when nothing usable remains.
func Normalize(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	s = agencyQualifier.ReplaceAllString(s, "")
	s = stripTextPrefix(s)
	s = strings.TrimSpace(s)
	s = disallowedChars.ReplaceAllString(s, "")

	// Stripping a zero-padded suffix can expose another one, or a trailing separator.
	for {
		before := s
		s = leadingSeps.ReplaceAllString(s, "")
		s = trailingSeps.ReplaceAllString(s, "")
		s = zeroPadSuffix.ReplaceAllString(s, "")
		if s == before {
			break
		}
	}

	s = strings.ToLower(s)
	if s == "" {
		return "", false
	}
	return s, true
}

func stripTextPrefix(s string) string {
	for _, prefix := range []string{"agency:", "trip:"} {
		if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
			return s[len(prefix):]
		}
	}
	if colon := strings.IndexByte(s, ':'); colon > 0 && colon < shortPrefixLimit {
		return s[colon+1:]
	}
	return s
}

// Variants returns the distinct spellings worth probing for raw, normalized form first.
// When raw does not normalize, the only variant is its trimmed lowercase form.
func Variants(raw string) []string {
	norm, ok := Normalize(raw)
	if !ok {
		fallback := strings.ToLower(strings.TrimSpace(raw))
		if fallback == "" {
			return nil
		}
		return []string{fallback}
	}

	set := newOrderedSet()
	set.add(norm)
	set.add(separators.ReplaceAllString(norm, ""))
	if strings.Contains(norm, "-") {
		set.add(strings.ReplaceAll(norm, "-", "_"))
	}
	if strings.Contains(norm, "_") {
		set.add(strings.ReplaceAll(norm, "_", "-"))
	}
	if strings.Contains(norm, ".") {
		set.add(strings.ReplaceAll(norm, ".", "-"))
		set.add(strings.ReplaceAll(norm, ".", "_"))
		set.add(strings.ReplaceAll(norm, ".", ""))
	}
	return set.items
}

// Candidates is the ordered probe list for resolving raw against a keyed table:
// the raw id itself, then its normalized form, then the remaining variants.
// Callers stop at the first key that hits.
func Candidates(raw string) []string {
	set := newOrderedSet()
	set.add(raw)
	set.add(strings.TrimSpace(raw))
	if norm, ok := Normalize(raw); ok {
		set.add(norm)
	}
	for _, v := range Variants(raw) {
		set.add(v)
	}
	return set.items
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (o *orderedSet) add(s string) {
	if s == "" {
		return
	}
	if _, ok := o.seen[s]; ok {
		return
	}
	o.seen[s] = struct{}{}
	o.items = append(o.items, s)
}
