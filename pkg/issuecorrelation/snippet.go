package issuecorrelation

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// ComputeSnippetHash returns the SHA256 hex string of snippet with every run
// of whitespace collapsed, so reindented or reflowed code keeps its hash.
// Returns an empty string for a blank snippet.
func ComputeSnippetHash(snippet string) string {
	normalized := strings.Join(strings.Fields(snippet), " ")
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", sum[:])
}

// NormalizeRuleID lowercases an issue title and collapses its whitespace.
func NormalizeRuleID(issue string) string {
	return strings.ToLower(strings.Join(strings.Fields(issue), " "))
}
