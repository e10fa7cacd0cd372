// Package report defines the artifact produced by a scan.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/scan-io-git/logicscan/internal/findings"
	"github.com/scan-io-git/logicscan/internal/ingest"
	"github.com/scan-io-git/logicscan/internal/symbolic"
	"github.com/scan-io-git/logicscan/pkg/issuecorrelation"
	"github.com/scan-io-git/logicscan/pkg/shared/files"
)

// Summary holds the counters of a scan.
type Summary struct {
	Repository   string                    `json:"repository,omitempty"`
	Branch       string                    `json:"branch,omitempty"`
	Scanned      int                       `json:"files_scanned"`
	Analyzed     int                       `json:"files_analyzed"`
	Skipped      int                       `json:"files_skipped"`
	Changed      int                       `json:"files_changed"`
	Tiers        map[findings.Tier]int     `json:"tiers"`
	Chunks       int                       `json:"chunks"`
	FailedChunks int                       `json:"failed_chunks"`
	Findings     int                       `json:"findings"`
	NewFindings  int                       `json:"findings_new"`
	Persisting   int                       `json:"findings_persisting"`
	Resolved     int                       `json:"findings_resolved"`
	Severities   map[findings.Severity]int `json:"severities"`
	Timestamp    time.Time                 `json:"timestamp"`
}

// ScanReport is the result stored for a completed scan.
type ScanReport struct {
	Summary    Summary               `json:"summary"`
	Files      []findings.FileReport `json:"files"`
	FileHashes ingest.Manifest       `json:"file_hashes"`
	Symbolic   symbolic.Verdict      `json:"symbolic"`
	// Resolved lists findings of the previous scan that no longer appear in
	// a re-analyzed file.
	Resolved []findings.Finding `json:"resolved,omitempty"`
}

// Input gathers the stage outputs a report is assembled from.
type Input struct {
	Repository   string
	Branch       string
	Discovered   []ingest.SourceFile
	Tiers        map[findings.Tier]int
	Reports      []findings.FileReport
	Manifest     ingest.Manifest
	Verdict      symbolic.Verdict
	Chunks       int
	FailedChunks int
	Now          time.Time
}

// Assemble builds the scan report. Every discovered file that was not
// analyzed counts as skipped.
func Assemble(in Input) *ScanReport {
	s := Summary{
		Repository:   in.Repository,
		Branch:       in.Branch,
		Scanned:      len(in.Discovered),
		Analyzed:     len(in.Reports),
		Tiers:        in.Tiers,
		Chunks:       in.Chunks,
		FailedChunks: in.FailedChunks,
		Severities:   map[findings.Severity]int{},
		Timestamp:    in.Now.UTC(),
	}
	s.Skipped = s.Scanned - s.Analyzed
	for _, f := range in.Discovered {
		if f.Changed {
			s.Changed++
		}
	}
	for _, r := range in.Reports {
		for _, f := range r.Findings {
			s.Findings++
			s.Severities[f.Severity]++
		}
	}
	if s.Tiers == nil {
		s.Tiers = map[findings.Tier]int{}
	}

	reports := in.Reports
	if reports == nil {
		reports = []findings.FileReport{}
	}
	manifest := in.Manifest
	if manifest == nil {
		manifest = ingest.Manifest{}
	}

	return &ScanReport{
		Summary:    s,
		Files:      reports,
		FileHashes: manifest,
		Symbolic:   in.Verdict,
	}
}

// Finding returns the index-th finding reported for file.
func (r *ScanReport) Finding(file string, index int) (findings.Finding, error) {
	for _, fr := range r.Files {
		if fr.File != file {
			continue
		}
		if index < 0 || index >= len(fr.Findings) {
			return findings.Finding{}, fmt.Errorf("file %q has %d findings, index %d is out of range", file, len(fr.Findings), index)
		}
		return fr.Findings[index], nil
	}
	return findings.Finding{}, fmt.Errorf("file %q is not part of the report", file)
}

// Write stores the report as indented JSON at path.
func (r *ScanReport) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return files.WriteJsonFile(path, data)
}

// Load reads a report written by Write.
func Load(path string) (*ScanReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report %q: %w", path, err)
	}
	var r ScanReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report %q: %w", path, err)
	}
	return &r, nil
}

// Correlate compares the findings with those of prior, a report of an earlier
// scan of the same repository. Only prior findings of files analyzed again
// take part: unmatched ones are listed as resolved. A nil prior marks every
// finding as new.
func (r *ScanReport) Correlate(prior *ScanReport) {
	current := issueMetadata(r.Files, nil)
	r.Resolved = nil
	if prior == nil {
		r.Summary.NewFindings = len(current)
		r.Summary.Persisting = 0
		r.Summary.Resolved = 0
		return
	}

	analyzed := make(map[string]bool, len(r.Files))
	for _, fr := range r.Files {
		analyzed[fr.File] = true
	}
	known := issueMetadata(prior.Files, analyzed)

	c := issuecorrelation.NewCorrelator(current, known)
	c.Process()

	fresh := c.UnmatchedNew()
	r.Summary.NewFindings = len(fresh)
	r.Summary.Persisting = len(current) - len(fresh)
	for _, k := range c.UnmatchedKnown() {
		if f, ok := lookup(prior.Files, k.IssueID); ok {
			r.Resolved = append(r.Resolved, f)
		}
	}
	r.Summary.Resolved = len(r.Resolved)
}

// issueMetadata flattens the findings of reports. A non-nil only restricts
// the result to the listed files.
func issueMetadata(reports []findings.FileReport, only map[string]bool) []issuecorrelation.IssueMetadata {
	var out []issuecorrelation.IssueMetadata
	for _, fr := range reports {
		if only != nil && !only[fr.File] {
			continue
		}
		for i, f := range fr.Findings {
			out = append(out, issuecorrelation.IssueMetadata{
				IssueID:     issueID(fr.File, i),
				RuleID:      issuecorrelation.NormalizeRuleID(f.Issue),
				Severity:    string(f.Severity),
				Filename:    fr.File,
				Function:    f.Function,
				Fingerprint: f.Fingerprint,
				SnippetHash: issuecorrelation.ComputeSnippetHash(f.Snippet),
			})
		}
	}
	return out
}

func issueID(file string, index int) string {
	return fmt.Sprintf("%s#%d", file, index)
}

func lookup(reports []findings.FileReport, id string) (findings.Finding, bool) {
	for _, fr := range reports {
		for i, f := range fr.Findings {
			if issueID(fr.File, i) == id {
				return f, true
			}
		}
	}
	return findings.Finding{}, false
}
