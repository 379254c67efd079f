package cacheinfra

import "strings"

// splitPattern mirrors cache.SplitPattern; cacheinfra cannot import cache.
func splitPattern(pattern string) (prefix string, wildcard bool) {
	if strings.HasSuffix(pattern, "*") {
		return strings.TrimSuffix(pattern, "*"), true
	}
	return pattern, false
}

func matchPattern(pattern, key string) bool {
	prefix, wildcard := splitPattern(pattern)
	if wildcard {
		return strings.HasPrefix(key, prefix)
	}
	return key == prefix
}

// globEscape escapes the metacharacters Redis MATCH understands so a literal
// prefix stays literal.
func globEscape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\', '^':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
