package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scan-io-git/logicscan/internal/findings"
	"github.com/scan-io-git/logicscan/internal/ingest"
)

func paths(files []ingest.SourceFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.RelPath)
	}
	return out
}

func TestTierOf(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, findings.TierCritical, th.TierOf(30))
	assert.Equal(t, findings.TierHigh, th.TierOf(29))
	assert.Equal(t, findings.TierHigh, th.TierOf(15))
	assert.Equal(t, findings.TierMedium, th.TierOf(6))
	assert.Equal(t, findings.TierNone, th.TierOf(5))
}

func TestSelect(t *testing.T) {
	files := []ingest.SourceFile{
		{RelPath: "low_changed.py", Score: 1, Changed: true},
		{RelPath: "crit_a.py", Score: 40},
		{RelPath: "crit_b.py", Score: 35},
		{RelPath: "high.py", Score: 20},
		{RelPath: "medium.py", Score: 7},
		{RelPath: "none.py", Score: 2},
		{RelPath: "high_changed.py", Score: 25, Changed: true},
	}

	tests := []struct {
		name   string
		budget int
		want   []string
	}{
		{
			name:   "zero budget keeps changed files only",
			budget: 0,
			want:   []string{"high_changed.py", "low_changed.py"},
		},
		{
			name:   "budget takes the top of the highest tier",
			budget: 1,
			want:   []string{"high_changed.py", "low_changed.py", "crit_a.py"},
		},
		{
			name:   "budget spills into lower tiers",
			budget: 4,
			want:   []string{"high_changed.py", "low_changed.py", "crit_a.py", "crit_b.py", "high.py", "medium.py"},
		},
		{
			name:   "files below threshold are never topped up",
			budget: 100,
			want:   []string{"high_changed.py", "low_changed.py", "crit_a.py", "crit_b.py", "high.py", "medium.py"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Select(files, tt.budget, DefaultThresholds())
			assert.Equal(t, tt.want, paths(got))
		})
	}
}

func TestSelectNeverDropsChangedFiles(t *testing.T) {
	var files []ingest.SourceFile
	for i, p := range []string{"a.py", "b.py", "c.py", "d.py", "e.py"} {
		files = append(files, ingest.SourceFile{RelPath: p, Score: i, Changed: true})
	}
	got := Select(files, 1, DefaultThresholds())
	assert.Len(t, got, 5)
}

func TestSelectIsIdempotent(t *testing.T) {
	files := []ingest.SourceFile{
		{RelPath: "b.py", Score: 20},
		{RelPath: "a.py", Score: 20},
		{RelPath: "c.py", Score: 31},
		{RelPath: "d.py", Score: 9, Changed: true},
	}
	first := Select(files, 2, DefaultThresholds())
	second := Select(files, 2, DefaultThresholds())
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"d.py", "c.py", "a.py"}, paths(first))

	// input order does not matter
	reversed := []ingest.SourceFile{files[3], files[2], files[1], files[0]}
	assert.Equal(t, paths(first), paths(Select(reversed, 2, DefaultThresholds())))
}

func TestCountByTier(t *testing.T) {
	files := []ingest.SourceFile{{Score: 40}, {Score: 16}, {Score: 16}, {Score: 1}}
	assert.Equal(t, map[findings.Tier]int{
		findings.TierCritical: 1,
		findings.TierHigh:     2,
		findings.TierMedium:   0,
		findings.TierNone:     1,
	}, CountByTier(files, DefaultThresholds()))
}
