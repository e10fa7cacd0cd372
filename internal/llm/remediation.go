package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// DefaultRemediationTemperature leaves the model a little room to rewrite code.
const DefaultRemediationTemperature float32 = 0.1

// ErrEmptySuggestion is returned when the model answers with no code.
var ErrEmptySuggestion = fmt.Errorf("model did not return a fix")

// Remediator asks the model for a corrected version of vulnerable code.
type Remediator struct {
	provider Provider
	model    string
	logger   hclog.Logger
}

// NewRemediator creates a Remediator using model.
func NewRemediator(provider Provider, model string, logger hclog.Logger) *Remediator {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if model == "" {
		model = DefaultModel
	}
	return &Remediator{provider: provider, model: model, logger: logger}
}

// BuildRemediationPrompt renders the prompt asking for a fixed snippet.
func BuildRemediationPrompt(issue, code string) string {
	var b strings.Builder
	b.WriteString("You are an expert software engineer specializing in security. Fix the vulnerability " +
		"in the code snippet below. Read the issue description and the vulnerable code, then provide " +
		"a corrected version of the code. RETURN ONLY THE CORRECTED CODE SNIPPET, with no explanations " +
		"or introductory text.\n\n")
	fmt.Fprintf(&b, "Vulnerability: %q\n\n", issue)
	b.WriteString("Vulnerable Code:\n" + fence + "\n")
	b.WriteString(code)
	b.WriteString("\n" + fence + "\n\nCorrected Code:")
	return b.String()
}

// Suggest returns the corrected code for issue. Plain text is requested and
// any markdown fence around the answer is removed.
func (r *Remediator) Suggest(ctx context.Context, issue, code string) (string, error) {
	text, err := r.provider.Complete(ctx, Request{
		Model:       r.model,
		Prompt:      BuildRemediationPrompt(issue, code),
		Temperature: DefaultRemediationTemperature,
	})
	if err != nil {
		r.logger.Error("remediation call failed", "error", err)
		return "", fmt.Errorf("remediation call failed: %w", err)
	}

	fixed := StripFences(text)
	if fixed == "" {
		return "", ErrEmptySuggestion
	}
	return fixed, nil
}

// StripFences removes a markdown code fence wrapping text.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, fence) {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			s = strings.TrimPrefix(s, fence)
		}
	}
	s = strings.TrimSuffix(strings.TrimRight(s, " \t\r\n"), fence)
	return strings.TrimSpace(s)
}
