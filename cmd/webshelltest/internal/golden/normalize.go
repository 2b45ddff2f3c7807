package golden

import (
	"regexp"
	"strings"
)

// normalization replaces output that differs between runs with a placeholder.
type normalization struct {
	name    string
	pattern *regexp.Regexp
}

// Normalizer masks ids, timestamps and paths so transcripts compare equal
// across runs and machines.
type Normalizer struct {
	patterns []normalization
}

// NewNormalizer creates a normalizer with the built-in patterns.
func NewNormalizer() *Normalizer {
	return &Normalizer{patterns: []normalization{
		{name: "OBJECT_ID", pattern: regexp.MustCompile(`\b[0-9a-f]{24}\b`)},
		{name: "TIMESTAMP", pattern: regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})?`)},
		{name: "TMP_PATH", pattern: regexp.MustCompile(`(?:/tmp|/var/folders)/[^\s"']*`)},
	}}
}

// Normalize replaces every match with <NAME>.
func (n *Normalizer) Normalize(output string) string {
	for _, p := range n.patterns {
		output = p.pattern.ReplaceAllString(output, "<"+p.name+">")
	}
	return output
}

// Equal compares two transcripts line by line after normalization.
func (n *Normalizer) Equal(expected, actual string) bool {
	expectedLines := strings.Split(expected, "\n")
	actualLines := strings.Split(actual, "\n")
	if len(expectedLines) != len(actualLines) {
		return false
	}
	for i := range expectedLines {
		if n.Normalize(expectedLines[i]) != n.Normalize(actualLines[i]) {
			return false
		}
	}
	return true
}

// cleanOutput trims trailing newlines but keeps trailing spaces within lines.
func cleanOutput(output string) string {
	return strings.TrimRight(output, "\n")
}
