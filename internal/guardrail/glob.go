package guardrail

import (
	"regexp"
	"strings"
)

// DefaultAllowPatterns mirrors spec.md §4.5's "defaults include common test
// directories and *.test.*/*.spec.* suffixes", modeled on the doublestar
// locator patterns (e.g. "research/**/*.md") in the teacher's
// internal/ratchet/gate.go.
var DefaultAllowPatterns = []string{
	"**/*_test.go",
	"**/testdata/**",
	"test/**",
	"tests/**",
	"**/*.test.*",
	"**/*.spec.*",
}

// Matches reports whether path satisfies any of the given glob patterns.
// Patterns use '*' for any run of non-separator characters, '?' for one
// character, and '**' for any run of characters including separators.
func Matches(patterns []string, path string) bool {
	for _, pat := range patterns {
		re, err := compileGlob(pat)
		if err != nil {
			continue
		}
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

func compileGlob(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for i := 0; i < len(pattern); {
		switch {
		case strings.HasPrefix(pattern[i:], "**/"):
			// "**/" matches zero or more whole path segments, including
			// none at all, so "**/*_test.go" also matches a root-level
			// "foo_test.go" rather than demanding a literal separator.
			sb.WriteString("(?:.*/)?")
			i += 3
		case strings.HasPrefix(pattern[i:], "**"):
			sb.WriteString(".*")
			i += 2
		case pattern[i] == '*':
			sb.WriteString("[^/]*")
			i++
		case pattern[i] == '?':
			sb.WriteString("[^/]")
			i++
		default:
			sb.WriteString(regexp.QuoteMeta(string(pattern[i])))
			i++
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}
