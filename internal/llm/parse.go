package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scan-io-git/logicscan/internal/findings"
)

// Parse failure reasons.
const (
	ReasonNoJSONObject    = "no_json_object"
	ReasonInvalidJSON     = "invalid_json"
	ReasonMissingAnalysis = "missing_analysis_key"
	ReasonTransport       = "transport_error"
)

// ParseError is returned when a model answer cannot be turned into findings.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unparsable model output (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("unparsable model output (%s)", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ExtractJSONObject returns the first balanced {...} block of text that
// parses as a JSON object. Braces inside JSON strings are ignored, and braces
// in surrounding prose that do not open an object are skipped.
func ExtractJSONObject(text string) (string, bool) {
	object, _ := extractJSONObject(text)
	return object, object != ""
}

// extractJSONObject also returns the first balanced block when no block is a
// valid object, so callers can tell malformed JSON from missing JSON.
func extractJSONObject(text string) (object, firstBalanced string) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end, ok := balancedEnd(text, start); ok {
			candidate := text[start : end+1]
			var obj map[string]json.RawMessage
			if json.Unmarshal([]byte(candidate), &obj) == nil {
				return candidate, firstBalanced
			}
			if firstBalanced == "" {
				firstBalanced = candidate
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", firstBalanced
}

// balancedEnd returns the index of the brace closing the one at start.
func balancedEnd(text string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// ParseAnalysis extracts the findings of a model answer. Entries of the
// analysis array that are not objects of the expected shape are ignored.
func ParseAnalysis(text string) ([]findings.Finding, error) {
	object, malformed := extractJSONObject(text)
	if object == "" {
		if malformed == "" {
			return nil, &ParseError{Reason: ReasonNoJSONObject}
		}
		object = malformed
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(object), &payload); err != nil {
		return nil, &ParseError{Reason: ReasonInvalidJSON, Err: err}
	}
	rawAnalysis, ok := payload["analysis"]
	if !ok {
		return nil, &ParseError{Reason: ReasonMissingAnalysis}
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(rawAnalysis, &entries); err != nil {
		return nil, &ParseError{Reason: ReasonMissingAnalysis, Err: fmt.Errorf("analysis is not a list: %w", err)}
	}

	out := make([]findings.Finding, 0, len(entries))
	for _, entry := range entries {
		if string(entry) == "null" {
			continue
		}
		var f findings.Finding
		if err := json.Unmarshal(entry, &f); err != nil {
			continue
		}
		if f.Severity == "" {
			f.Severity = findings.SeverityMedium
		}
		out = append(out, f)
	}
	return out, nil
}
