// Package filter implements the include/exclude term engine applied to
// feed entries before notification.
package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// regexPrefix marks a term as a regular expression instead of a plain
// substring, e.g. "re:knee (surgery|replacement)".
const regexPrefix = "re:"

type term struct {
	value string
	re    *regexp.Regexp
}

func (t term) matches(text string) bool {
	if t.re != nil {
		return t.re.MatchString(text)
	}
	return strings.Contains(text, t.value)
}

// Spec is a compiled set of filter terms. The zero value accepts
// everything.
type Spec struct {
	include []term
	exclude []term
}

// ParseSpec compiles raw include and exclude term lists. Plain terms
// match case-insensitively as substrings; terms prefixed with "re:" are
// case-insensitive regular expressions. An invalid regex is a
// configuration error and must abort startup.
func ParseSpec(include, exclude []string) (Spec, error) {
	inc, err := parseTerms(include)
	if err != nil {
		return Spec{}, fmt.Errorf("include terms: %w", err)
	}
	exc, err := parseTerms(exclude)
	if err != nil {
		return Spec{}, fmt.Errorf("exclude terms: %w", err)
	}
	return Spec{include: inc, exclude: exc}, nil
}

func parseTerms(raw []string) ([]term, error) {
	var terms []term
	for _, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if pattern, ok := strings.CutPrefix(v, regexPrefix); ok {
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
			}
			terms = append(terms, term{value: v, re: re})
			continue
		}
		terms = append(terms, term{value: strings.ToLower(v)})
	}
	return terms, nil
}

// Match reports whether text passes the spec. Include terms use OR
// logic (at least one must match when any are configured); exclude
// terms use veto logic (none may match). An empty spec passes
// everything.
func (s Spec) Match(text string) bool {
	lower := strings.ToLower(text)

	for _, t := range s.exclude {
		if t.matches(lower) {
			return false
		}
	}

	if len(s.include) == 0 {
		return true
	}
	for _, t := range s.include {
		if t.matches(lower) {
			return true
		}
	}
	return false
}

// Empty reports whether the spec has no terms at all.
func (s Spec) Empty() bool {
	return len(s.include) == 0 && len(s.exclude) == 0
}
