package chunker

import (
	"path/filepath"
	"regexp"
	"strings"
)

const unknownLanguage = "unknown"

var languageByExt = map[string]string{
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".go":   "go",
	".rb":   "ruby",
	".java": "java",
	".php":  "php",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".hpp":  "cpp",
	".cs":   "csharp",
	".rs":   "rust",
	".kt":   "kotlin",
}

// boundaryPatterns match the first line of a top level or nested definition.
// Every pattern is line anchored so a match always starts at a line start.
var boundaryPatterns = map[string]*regexp.Regexp{
	"python": regexp.MustCompile(`(?m)^[ \t]*(?:async[ \t]+)?(?:def|class)[ \t]+\w`),
	"javascript": regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+(?:default[ \t]+)?)?(?:async[ \t]+)?` +
		`(?:function\*?[ \t]*[\w$]*[ \t]*\(|class[ \t]+[\w$]+|(?:const|let|var)[ \t]+[\w$]+[ \t]*=)`),
	"typescript": regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+(?:default[ \t]+)?)?(?:declare[ \t]+)?(?:async[ \t]+)?(?:abstract[ \t]+)?` +
		`(?:function\*?[ \t]*[\w$]*[ \t]*[(<]|class[ \t]+[\w$]+|interface[ \t]+[\w$]+|type[ \t]+[\w$]+|(?:const|let|var)[ \t]+[\w$]+)`),
	"go":   regexp.MustCompile(`(?m)^(?:func[ \t]|type[ \t]+\w+)`),
	"ruby": regexp.MustCompile(`(?m)^[ \t]*(?:def|class|module)[ \t]+\S`),
	"java": regexp.MustCompile(`(?m)^[ \t]*(?:(?:public|private|protected|static|final|abstract|sealed)[ \t]+)*(?:class|interface|enum|record|@interface)[ \t]+\w` +
		`|^[ \t]*(?:(?:public|private|protected|static|final|abstract|synchronized)[ \t]+)+[\w.<>\[\], ]+[ \t]+\w+[ \t]*\(`),
	"php":    regexp.MustCompile(`(?m)^[ \t]*(?:(?:public|private|protected|static|abstract|final)[ \t]+)*(?:function|class|interface|trait)[ \t]+\w`),
	"rust":   regexp.MustCompile(`(?m)^[ \t]*(?:pub(?:\([^)]*\))?[ \t]+)?(?:async[ \t]+)?(?:fn|struct|enum|trait|impl)\b`),
	"kotlin": regexp.MustCompile(`(?m)^[ \t]*(?:(?:public|private|internal|protected|open|data|sealed|abstract|override|suspend)[ \t]+)*(?:fun|class|interface|object)[ \t]+`),
	"csharp": regexp.MustCompile(`(?m)^[ \t]*(?:(?:public|private|protected|internal|static|virtual|override|abstract|sealed|async|partial)[ \t]+)+` +
		`(?:class|interface|struct|enum|record|[\w<>\[\],]+[ \t]+\w+[ \t]*\()`),
}

// DetectLanguage returns the language tag of a file from its extension.
func DetectLanguage(path string) string {
	if lang, ok := languageByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return unknownLanguage
}

// HasSemanticSupport reports whether definition boundaries are known for language.
func HasSemanticSupport(language string) bool {
	_, ok := boundaryPatterns[language]
	return ok
}
