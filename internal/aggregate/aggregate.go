// Package aggregate folds chunk outcomes back into per-file reports.
package aggregate

import (
	"github.com/scan-io-git/logicscan/internal/findings"
	"github.com/scan-io-git/logicscan/internal/ingest"
	"github.com/scan-io-git/logicscan/internal/llm"
)

// NoChunksMarker is the raw output recorded for a selected file that produced no chunk.
const NoChunksMarker = "no_chunks"

// Build returns one report per selected file, in selection order. chunkCounts
// holds the number of chunks dispatched per file. Findings are appended in the
// order outcomes completed, each carrying the snippet it was found in.
func Build(selected []ingest.SourceFile, chunkCounts map[string]int, outcomes []llm.Outcome) []findings.FileReport {
	reports := make([]findings.FileReport, len(selected))
	index := make(map[string]int, len(selected))
	for i, f := range selected {
		index[f.RelPath] = i
		reports[i] = findings.FileReport{
			File:       f.RelPath,
			Tier:       f.Tier,
			Score:      f.Score,
			Changed:    f.Changed,
			Chunks:     chunkCounts[f.RelPath],
			Findings:   []findings.Finding{},
			RawOutputs: []string{},
		}
		if chunkCounts[f.RelPath] == 0 {
			reports[i].RawOutputs = append(reports[i].RawOutputs, NoChunksMarker)
		}
	}

	for _, o := range outcomes {
		i, ok := index[o.Job.File]
		if !ok {
			continue
		}
		report := &reports[i]

		switch res := o.Result.(type) {
		case llm.Parsed:
			for _, f := range res.Findings {
				f.File = o.Job.File
				f.ChunkIndex = o.Job.ChunkIndex
				f.Snippet = o.Job.Snippet
				f.Fingerprint = findings.ComputeFingerprint(f.File, f.Issue, f.Snippet)
				report.Findings = append(report.Findings, f)
			}
		case llm.Failed:
			report.RawOutputs = append(report.RawOutputs, res.Raw)
		}
	}
	return reports
}

// Counts summarizes reports.
type Counts struct {
	Chunks       int
	FailedChunks int
	Findings     int
}

// Tally counts chunks, failed chunks and findings of a dispatch.
func Tally(outcomes []llm.Outcome) Counts {
	var c Counts
	for _, o := range outcomes {
		c.Chunks++
		switch res := o.Result.(type) {
		case llm.Parsed:
			c.Findings += len(res.Findings)
		case llm.Failed:
			c.FailedChunks++
		}
	}
	return c
}
