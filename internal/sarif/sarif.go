// Package sarif exports scan reports as SARIF 2.1.0.
package sarif

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/scan-io-git/logicscan/internal/findings"
	"github.com/scan-io-git/logicscan/internal/report"
	"github.com/scan-io-git/logicscan/pkg/shared/files"
)

const (
	toolName       = "logicscan"
	informationURI = "https://github.com/scan-io-git/logicscan"
	rulePrefix     = "logicscan/"
	// ContradictionRuleID marks an inconsistent set of inferred permission rules.
	ContradictionRuleID = rulePrefix + "permission-contradiction"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Report wraps a SARIF report built from a scan report.
type Report struct {
	*sarif.Report
	logger       hclog.Logger
	sourceFolder string
}

// Export converts r. When sourceFolder is set, each finding is located by
// searching its snippet in the checked out file; otherwise it points at line 1.
func Export(r *report.ScanReport, version, sourceFolder string, logger hclog.Logger) (*Report, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	sarifReport, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create SARIF report: %w", err)
	}

	out := &Report{Report: sarifReport, logger: logger}
	if sourceFolder != "" {
		expanded, err := files.ExpandPath(sourceFolder)
		if err != nil {
			return nil, fmt.Errorf("failed to expand source folder: %w", err)
		}
		if out.sourceFolder, err = filepath.Abs(expanded); err != nil {
			return nil, err
		}
	}

	run := sarif.NewRunWithInformationURI(toolName, informationURI)
	if version != "" {
		run.Tool.Driver.Version = &version
	}

	for _, fr := range r.Files {
		for _, f := range fr.Findings {
			rule := run.AddRule(RuleID(f.Issue)).
				WithDescription(f.Issue).
				WithDefaultConfiguration(&sarif.ReportingConfiguration{
					Level: toSarifLevel(f.Severity),
				})

			start, end := out.locate(fr.File, f.Snippet)
			location := sarif.NewLocation().WithPhysicalLocation(
				sarif.NewPhysicalLocation().
					WithArtifactLocation(sarif.NewArtifactLocation().WithUri(fr.File)).
					WithRegion(sarif.NewRegion().WithStartLine(start).WithEndLine(end)),
			)

			message := f.Issue
			if f.Notes != "" {
				message += ": " + f.Notes
			}
			result := sarif.NewRuleResult(rule.ID).
				WithMessage(sarif.NewTextMessage(message)).
				WithLevel(toSarifLevel(f.Severity)).
				WithLocations([]*sarif.Location{location})
			result.Properties = resultProperties(fr, f)
			run.AddResult(result)
		}
	}

	if !r.Symbolic.Consistent && len(r.Symbolic.Violations) > 0 {
		rule := run.AddRule(ContradictionRuleID).
			WithDescription("Inferred access control rules contradict each other").
			WithDefaultConfiguration(&sarif.ReportingConfiguration{Level: "error"})
		result := sarif.NewRuleResult(rule.ID).
			WithMessage(sarif.NewTextMessage(strings.Join(r.Symbolic.Violations, " "))).
			WithLevel("error")
		run.AddResult(result)
	}

	sarifReport.AddRun(run)
	out.SortResultsByLevel()
	return out, nil
}

// RuleID derives a stable rule id from an issue title.
func RuleID(issue string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(issue), "-"), "-")
	if slug == "" {
		slug = "issue"
	}
	return rulePrefix + slug
}

func resultProperties(fr findings.FileReport, f findings.Finding) sarif.Properties {
	props := sarif.Properties{
		"severity":    string(f.Severity),
		"tier":        string(fr.Tier),
		"chunk":       f.ChunkIndex,
		"fingerprint": f.Fingerprint,
	}
	if f.RequiredRole != nil {
		props["required_role"] = *f.RequiredRole
	}
	if f.Assertion != nil {
		props["z3_assertion"] = *f.Assertion
	}
	if f.Function != "" {
		props["function"] = f.Function
	}
	return props
}

// locate returns the line range the snippet occupies in file, or 1..1 when it
// cannot be found.
func (r *Report) locate(file, snippet string) (int, int) {
	lines := strings.Count(strings.TrimRight(snippet, "\n"), "\n")
	if r.sourceFolder == "" || strings.TrimSpace(snippet) == "" {
		return 1, 1
	}
	start, err := r.findSnippetLine(file, snippet)
	if err != nil {
		r.logger.Debug("can't locate snippet", "file", file, "err", err)
		return 1, 1
	}
	return start, start + lines
}

// findSnippetLine returns the 1-based line at which the first line of snippet
// occurs in the file.
func (r *Report) findSnippetLine(file, snippet string) (int, error) {
	path, err := files.EnsureWithinRoot(r.sourceFolder, filepath.Join(r.sourceFolder, filepath.FromSlash(file)))
	if err != nil {
		return 0, err
	}
	fh, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer fh.Close()

	first := strings.TrimRight(strings.SplitN(strings.TrimLeft(snippet, "\n"), "\n", 2)[0], "\r")
	leading := len(snippet) - len(strings.TrimLeft(snippet, "\n"))

	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	current := 0
	for scanner.Scan() {
		current++
		if scanner.Text() == first {
			return current - leading, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("error reading file: %w", err)
	}
	return 0, fmt.Errorf("snippet not found in %s", file)
}

// CollectSeverityInfo counts results per SARIF level and in total.
func (r *Report) CollectSeverityInfo() map[string]int {
	info := map[string]int{"error": 0, "warning": 0, "note": 0, "total": 0}
	for _, run := range r.Runs {
		for _, result := range run.Results {
			if result.Level != nil {
				info[*result.Level]++
			}
			info["total"]++
		}
	}
	return info
}

// SortResultsByLevel orders results error, warning, note, none; stable otherwise.
func (r *Report) SortResultsByLevel() {
	levelOrder := map[string]int{"error": 0, "warning": 1, "note": 2, "none": 3}
	rank := func(res *sarif.Result) int {
		if res.Level == nil {
			return len(levelOrder)
		}
		if o, ok := levelOrder[*res.Level]; ok {
			return o
		}
		return len(levelOrder)
	}
	for _, run := range r.Runs {
		sort.SliceStable(run.Results, func(i, j int) bool {
			return rank(run.Results[i]) < rank(run.Results[j])
		})
	}
}

// WriteFile writes the report as indented JSON.
func (r *Report) WriteFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error writing SARIF report: %w", err)
	}
	defer func() { _ = file.Close() }()
	return r.PrettyWrite(file)
}

func toSarifLevel(severity findings.Severity) string {
	switch severity {
	case findings.SeverityCritical, findings.SeverityHigh:
		return "error"
	case findings.SeverityMedium:
		return "warning"
	case findings.SeverityLow:
		return "note"
	default:
		return "none"
	}
}
