package screenshot

import (
	"strings"
)

// DefaultNamePatterns are the filename prefixes screenshot tools use.
var DefaultNamePatterns = []string{"screenshot", "screen shot", "cleanshot"}

// Matcher reports whether a filename follows a screenshot naming convention:
// a case-insensitive prefix match and a .png suffix.
type Matcher struct {
	prefixes []string
}

// NewMatcher builds a matcher from prefixes. An empty list falls back to
// DefaultNamePatterns.
func NewMatcher(prefixes []string) Matcher {
	if len(prefixes) == 0 {
		prefixes = DefaultNamePatterns
	}
	m := Matcher{prefixes: make([]string, 0, len(prefixes))}
	for _, p := range prefixes {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			m.prefixes = append(m.prefixes, p)
		}
	}
	return m
}

// Match reports whether name looks like a screenshot.
func (m Matcher) Match(name string) bool {
	lower := strings.ToLower(name)
	if !strings.HasSuffix(lower, fileExt) || strings.HasPrefix(lower, ".") {
		return false
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
