package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultSize is the fallback window length in runes.
	DefaultSize = 4000
	// DefaultOverlap is the number of runes shared by adjacent fallback windows.
	DefaultOverlap = 400
)

// Mode tells how a chunk was produced.
type Mode string

const (
	ModeSemantic Mode = "semantic"
	ModeFallback Mode = "fallback"
)

// Chunk is a slice of one file sized for a single model call.
type Chunk struct {
	File    string `json:"file"`
	Index   int    `json:"index"`
	Total   int    `json:"total"`
	Content string `json:"content"`
	Mode    Mode   `json:"mode"`
}

// Options controls the fallback window.
type Options struct {
	Size    int
	Overlap int
}

func (o Options) normalize() Options {
	if o.Size <= 0 {
		o.Size = DefaultSize
		if o.Overlap == 0 {
			o.Overlap = DefaultOverlap
		}
	}
	if o.Overlap < 0 || o.Overlap >= o.Size {
		o.Overlap = o.Size / 10
	}
	return o
}

// Split cuts content into chunks. When definition boundaries are known for
// language and present in content, it splits at them and sub-splits any piece
// longer than the window; otherwise it slides the fallback window across the
// content. Blank content yields no chunks. Every rune of the input is covered.
func Split(file, content, language string, opts Options) []Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	opts = opts.normalize()

	var chunks []Chunk
	if pattern, ok := boundaryPatterns[language]; ok {
		for _, piece := range splitSemantic(content, pattern) {
			if utf8.RuneCountInString(piece) <= opts.Size {
				chunks = append(chunks, Chunk{Content: piece, Mode: ModeSemantic})
				continue
			}
			for _, w := range splitWindows(piece, opts.Size, opts.Overlap) {
				chunks = append(chunks, Chunk{Content: w, Mode: ModeFallback})
			}
		}
	}

	if len(chunks) == 0 {
		for _, w := range splitWindows(content, opts.Size, opts.Overlap) {
			chunks = append(chunks, Chunk{Content: w, Mode: ModeFallback})
		}
	}

	for i := range chunks {
		chunks[i].File = file
		chunks[i].Index = i
		chunks[i].Total = len(chunks)
	}
	return chunks
}

// splitSemantic splits content at the start of every line matched by pattern.
// The text before the first boundary forms the first piece. Whitespace-only
// pieces are merged into their neighbour so the concatenation of the result
// equals content. It returns nil when no boundary is found.
func splitSemantic(content string, pattern *regexp.Regexp) []string {
	matches := pattern.FindAllStringIndex(content, -1)
	if len(matches) == 0 {
		return nil
	}

	var raw []string
	prev := 0
	for _, m := range matches {
		if m[0] == prev {
			continue
		}
		raw = append(raw, content[prev:m[0]])
		prev = m[0]
	}
	raw = append(raw, content[prev:])

	var pieces []string
	carry := ""
	for _, piece := range raw {
		if strings.TrimSpace(piece) == "" {
			carry += piece
			continue
		}
		pieces = append(pieces, carry+piece)
		carry = ""
	}
	if carry != "" && len(pieces) > 0 {
		pieces[len(pieces)-1] += carry
	}
	return pieces
}

// splitWindows slides a window of size runes with the given overlap across
// content. The last window is truncated at the end of content.
func splitWindows(content string, size, overlap int) []string {
	runes := []rune(content)
	if len(runes) == 0 {
		return nil
	}

	step := size - overlap
	var windows []string
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		windows = append(windows, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return windows
}
