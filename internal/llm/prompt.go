package llm

import (
	"fmt"
	"strings"
)

// DefaultMaxSnippetChars caps the code sent with a single prompt.
const DefaultMaxSnippetChars = 15000

const fence = "```"

// CapSnippet returns content truncated to at most limit runes.
func CapSnippet(content string, limit int) string {
	if limit <= 0 {
		limit = DefaultMaxSnippetChars
	}
	if len(content) <= limit {
		return content
	}
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit])
}

// BuildPrompt renders the analysis prompt for one chunk. index is zero based.
func BuildPrompt(file, snippet string, index, total int) string {
	var b strings.Builder
	b.WriteString("You are a hyper-vigilant application security auditor. Find business logic flaws, " +
		"access control checks and permission issues in the code below and report them in a " +
		"structured format. Follow these rules strictly:\n\n")
	b.WriteString("1. Output format: return ONLY a valid JSON object: {\"analysis\": [ ... ]}.\n")
	b.WriteString("2. Each object in the \"analysis\" array must have:\n")
	b.WriteString("   - \"issue\": a brief, descriptive title for the vulnerability.\n")
	b.WriteString("   - \"notes\": an explanation of the risk.\n")
	b.WriteString("   - \"severity\": one of \"critical\", \"high\", \"medium\" or \"low\".\n")
	b.WriteString("   - \"required_role\": the role the code requires (admin, member, public, unknown) or null.\n")
	b.WriteString("   - \"z3_assertion\": the permission rule as (HasPermission <role> <action> <resource>) or null.\n")
	b.WriteString("   - \"function_name\": the enclosing function, if identifiable.\n")
	b.WriteString("3. If there are no clear issues, you MUST return {\"analysis\": []}.\n\n")
	fmt.Fprintf(&b, "File: %s (chunk %d/%d)\n", file, index+1, total)
	b.WriteString("Code:\n")
	b.WriteString(fence + "\n")
	b.WriteString(snippet)
	b.WriteString("\n" + fence + "\n")
	return b.String()
}
