package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "fixed()\n", want: "fixed()"},
		{name: "fenced with language", in: "```python\nif user.is_admin:\n    fixed()\n```", want: "if user.is_admin:\n    fixed()"},
		{name: "fenced without language", in: "\n```\nfixed()\n```\n", want: "fixed()"},
		{name: "single line fence", in: "```fixed()```", want: "fixed()"},
		{name: "empty fence", in: "```\n```", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestRemediatorSuggest(t *testing.T) {
	stub := &stubProvider{answers: []answer{{text: "```python\nrequire_admin(user)\ndelete(id)\n```"}}}
	r := NewRemediator(stub, "fixer", nil)

	fixed, err := r.Suggest(context.Background(), "Missing admin check", "delete(id)")
	require.NoError(t, err)
	assert.Equal(t, "require_admin(user)\ndelete(id)", fixed)

	require.Len(t, stub.requests, 1)
	req := stub.requests[0]
	assert.False(t, req.JSON)
	assert.Equal(t, "fixer", req.Model)
	assert.Contains(t, req.Prompt, `Vulnerability: "Missing admin check"`)
	assert.Contains(t, req.Prompt, "```\ndelete(id)\n```")
}

func TestRemediatorSuggestErrors(t *testing.T) {
	r := NewRemediator(&stubProvider{answers: []answer{{text: "```\n```"}}}, "", nil)
	_, err := r.Suggest(context.Background(), "issue", "code")
	assert.ErrorIs(t, err, ErrEmptySuggestion)

	r = NewRemediator(&stubProvider{answers: []answer{{err: errors.New("boom")}}}, "", nil)
	_, err = r.Suggest(context.Background(), "issue", "code")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
