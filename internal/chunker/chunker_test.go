package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contents(chunks []Chunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Content)
	}
	return out
}

// reassemble removes the overlap of adjacent fallback windows.
func reassemble(chunks []Chunk, overlap int) string {
	var b strings.Builder
	for i, c := range chunks {
		r := []rune(c.Content)
		if i > 0 && c.Mode == ModeFallback && chunks[i-1].Mode == ModeFallback {
			r = r[overlap:]
		}
		b.WriteString(string(r))
	}
	return b.String()
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "python", DetectLanguage("auth/login.py"))
	assert.Equal(t, "typescript", DetectLanguage("src/App.TS"))
	assert.Equal(t, "cpp", DetectLanguage("core/engine.hpp"))
	assert.Equal(t, "unknown", DetectLanguage("Dockerfile"))
	assert.True(t, HasSemanticSupport("go"))
	assert.False(t, HasSemanticSupport("c"))
}

func TestSplitFallbackCoversContent(t *testing.T) {
	content := strings.Repeat("abcdefghij", 105) // 1050 runes
	opts := Options{Size: 400, Overlap: 40}

	chunks := Split("x.c", content, "c", opts)
	require.Len(t, chunks, 3)

	for i, c := range chunks {
		assert.Equal(t, ModeFallback, c.Mode)
		assert.Equal(t, i, c.Index)
		assert.Equal(t, 3, c.Total)
		assert.Equal(t, "x.c", c.File)
	}
	assert.Len(t, chunks[0].Content, 400)
	assert.Len(t, chunks[1].Content, 400)
	assert.Len(t, chunks[2].Content, 1050-720)

	// adjacent windows share exactly the overlap
	assert.Equal(t, chunks[0].Content[360:], chunks[1].Content[:40])
	assert.Equal(t, content, reassemble(chunks, opts.Overlap))
}

func TestSplitFallbackMultibyte(t *testing.T) {
	content := strings.Repeat("日本語のテキスト", 50)
	opts := Options{Size: 64, Overlap: 8}

	chunks := Split("notes.kt.txt", content, "unknown", opts)
	assert.Equal(t, content, reassemble(chunks, opts.Overlap))
	for _, c := range chunks {
		assert.True(t, strings.ToValidUTF8(c.Content, "") == c.Content)
	}
}

func TestSplitShortContentIsOneWindow(t *testing.T) {
	chunks := Split("a.c", "int main() { return 0; }\n", "c", Options{})
	require.Len(t, chunks, 1)
	assert.Equal(t, "int main() { return 0; }\n", chunks[0].Content)
}

func TestSplitBlankContent(t *testing.T) {
	assert.Empty(t, Split("a.py", "", "python", Options{}))
	assert.Empty(t, Split("a.py", " \n\t\n", "python", Options{}))
}

func TestSplitSemanticPython(t *testing.T) {
	content := "import os\nfrom app import db\n\n" +
		"def login(user):\n    return db.check(user)\n\n" +
		"class Admin:\n    def delete(self, id):\n        db.delete(id)\n"

	chunks := Split("auth/login.py", content, "python", Options{})
	assert.Equal(t, []string{
		"import os\nfrom app import db\n\n",
		"def login(user):\n    return db.check(user)\n\n",
		"class Admin:\n",
		"    def delete(self, id):\n        db.delete(id)\n",
	}, contents(chunks))
	for _, c := range chunks {
		assert.Equal(t, ModeSemantic, c.Mode)
	}
	assert.Equal(t, content, strings.Join(contents(chunks), ""))
}

func TestSplitSemanticGo(t *testing.T) {
	content := "package auth\n\nimport \"errors\"\n\n" +
		"type Session struct{ User string }\n\n" +
		"func (s *Session) Valid() bool { return s.User != \"\" }\n\n" +
		"func Login(u string) (*Session, error) {\n\tif u == \"\" {\n\t\treturn nil, errors.New(\"empty\")\n\t}\n\treturn &Session{u}, nil\n}\n"

	chunks := Split("auth/session.go", content, "go", Options{})
	require.Len(t, chunks, 4)
	assert.True(t, strings.HasPrefix(chunks[1].Content, "type Session"))
	assert.True(t, strings.HasPrefix(chunks[2].Content, "func (s *Session)"))
	assert.True(t, strings.HasPrefix(chunks[3].Content, "func Login"))
	assert.Equal(t, content, strings.Join(contents(chunks), ""))
}

func TestSplitSemanticWithoutPreamble(t *testing.T) {
	content := "def a():\n    pass\n\n\n\ndef b():\n    pass\n"
	chunks := Split("m.py", content, "python", Options{})
	require.Len(t, chunks, 2)
	assert.Equal(t, "def a():\n    pass\n\n\n\n", chunks[0].Content)
	assert.Equal(t, content, strings.Join(contents(chunks), ""))
}

func TestSplitSemanticMergesWhitespacePieces(t *testing.T) {
	content := "\n\n\ndef only():\n    return 1\n"
	chunks := Split("m.py", content, "python", Options{})
	require.Len(t, chunks, 1)
	assert.Equal(t, content, chunks[0].Content)
}

func TestSplitSemanticFallsBackWithoutBoundaries(t *testing.T) {
	content := "x = 1\ny = 2\nprint(x + y)\n"
	chunks := Split("script.py", content, "python", Options{})
	require.Len(t, chunks, 1)
	assert.Equal(t, ModeFallback, chunks[0].Mode)
	assert.Equal(t, content, chunks[0].Content)
}

func TestSplitSemanticSubSplitsLargeDefinitions(t *testing.T) {
	var body strings.Builder
	body.WriteString("def huge():\n")
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&body, "    x%d = %d\n", i, i)
	}
	content := "import os\n" + body.String()
	opts := Options{Size: 200, Overlap: 20}

	chunks := Split("big.py", content, "python", opts)
	require.Greater(t, len(chunks), 2)
	assert.Equal(t, ModeSemantic, chunks[0].Mode)
	for _, c := range chunks[1:] {
		assert.Equal(t, ModeFallback, c.Mode)
		assert.LessOrEqual(t, len([]rune(c.Content)), opts.Size)
	}
	assert.Equal(t, content, reassemble(chunks, opts.Overlap))
}

func TestSplitIsDeterministic(t *testing.T) {
	content := "const a = 1;\nfunction handler(req) {\n  return a;\n}\nclass Api {}\n"
	first := Split("api.js", content, "javascript", Options{})
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Split("api.js", content, "javascript", Options{}))
	}
	assert.Len(t, first, 3)
}

func TestOptionsNormalize(t *testing.T) {
	assert.Equal(t, Options{Size: DefaultSize, Overlap: DefaultOverlap}, Options{}.normalize())
	assert.Equal(t, Options{Size: 100, Overlap: 10}, Options{Size: 100, Overlap: 100}.normalize())
	assert.Equal(t, Options{Size: 100, Overlap: 0}, Options{Size: 100}.normalize())
}
