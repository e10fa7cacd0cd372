package risk

import (
	"sort"

	"github.com/scan-io-git/logicscan/internal/findings"
	"github.com/scan-io-git/logicscan/internal/ingest"
)

// DefaultMaxFiles is the discretionary file budget of a scan.
const DefaultMaxFiles = 25

// Thresholds are the minimum scores of each tier.
type Thresholds struct {
	Critical int
	High     int
	Medium   int
}

// DefaultThresholds returns the built-in tier thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Critical: 30, High: 15, Medium: 6}
}

// TierOf returns the tier of a score.
func (t Thresholds) TierOf(score int) findings.Tier {
	switch {
	case score >= t.Critical:
		return findings.TierCritical
	case score >= t.High:
		return findings.TierHigh
	case score >= t.Medium:
		return findings.TierMedium
	default:
		return findings.TierNone
	}
}

// Assign sets the tier of every file from its score.
func (t Thresholds) Assign(files []ingest.SourceFile) {
	for i := range files {
		files[i].Tier = t.TierOf(files[i].Score)
	}
}

// Select picks the files to analyze. Changed files are always included;
// unchanged files are then taken tier by tier, highest score first, until
// budget of them has been taken. Files below the medium threshold are never
// taken unless changed. The result is deduplicated and deterministic.
func Select(files []ingest.SourceFile, budget int, thresholds Thresholds) []ingest.SourceFile {
	ordered := make([]ingest.SourceFile, len(files))
	copy(ordered, files)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		return ordered[i].RelPath < ordered[j].RelPath
	})

	seen := make(map[string]bool, len(ordered))
	var selected []ingest.SourceFile

	for _, f := range ordered {
		if f.Changed && !seen[f.RelPath] {
			seen[f.RelPath] = true
			selected = append(selected, f)
		}
	}

	buckets := make(map[findings.Tier][]ingest.SourceFile)
	for _, f := range ordered {
		if seen[f.RelPath] {
			continue
		}
		tier := thresholds.TierOf(f.Score)
		buckets[tier] = append(buckets[tier], f)
	}

	taken := 0
	for _, tier := range findings.Tiers {
		if tier == findings.TierNone {
			break
		}
		for _, f := range buckets[tier] {
			if taken >= budget {
				return selected
			}
			if seen[f.RelPath] {
				continue
			}
			seen[f.RelPath] = true
			selected = append(selected, f)
			taken++
		}
	}

	return selected
}

// CountByTier returns the number of files in each tier, including empty tiers.
func CountByTier(files []ingest.SourceFile, thresholds Thresholds) map[findings.Tier]int {
	counts := make(map[findings.Tier]int, len(findings.Tiers))
	for _, tier := range findings.Tiers {
		counts[tier] = 0
	}
	for _, f := range files {
		counts[thresholds.TierOf(f.Score)]++
	}
	return counts
}
