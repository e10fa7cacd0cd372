package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/logicscan/internal/findings"
	"github.com/scan-io-git/logicscan/internal/ingest"
	"github.com/scan-io-git/logicscan/internal/symbolic"
)

func sampleInput() Input {
	return Input{
		Repository: "acme/shop",
		Branch:     "main",
		Discovered: []ingest.SourceFile{
			{RelPath: "auth/login.py", Changed: true},
			{RelPath: "util/strings.py"},
			{RelPath: "api/users.go"},
		},
		Tiers: map[findings.Tier]int{findings.TierHigh: 2, findings.TierNone: 1},
		Reports: []findings.FileReport{
			{File: "auth/login.py", Findings: []findings.Finding{
				{Issue: "missing role check", Severity: findings.SeverityHigh},
				{Issue: "weak lockout", Severity: findings.SeverityLow},
			}},
			{File: "api/users.go", Findings: []findings.Finding{}},
		},
		Manifest:     ingest.Manifest{"auth/login.py": "a", "util/strings.py": "b", "api/users.go": "c"},
		Verdict:      symbolic.Verdict{Consistent: true, Status: symbolic.StatusSat, Violations: []string{}},
		Chunks:       3,
		FailedChunks: 1,
		Now:          time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("CEST", 7200)),
	}
}

func TestAssemble(t *testing.T) {
	r := Assemble(sampleInput())

	s := r.Summary
	assert.Equal(t, 3, s.Scanned)
	assert.Equal(t, 2, s.Analyzed)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, s.Scanned, s.Analyzed+s.Skipped)
	assert.Equal(t, 1, s.Changed)
	assert.Equal(t, 2, s.Findings)
	assert.Equal(t, 1, s.Severities[findings.SeverityHigh])
	assert.Equal(t, 3, s.Chunks)
	assert.Equal(t, 1, s.FailedChunks)
	assert.Equal(t, time.UTC, s.Timestamp.Location())
	assert.Len(t, r.FileHashes, 3)
	assert.True(t, r.Symbolic.Consistent)
}

func TestAssembleEmpty(t *testing.T) {
	r := Assemble(Input{})
	assert.NotNil(t, r.Files)
	assert.NotNil(t, r.FileHashes)
	assert.NotNil(t, r.Summary.Tiers)
}

func TestFinding(t *testing.T) {
	r := Assemble(sampleInput())

	f, err := r.Finding("auth/login.py", 1)
	require.NoError(t, err)
	assert.Equal(t, "weak lockout", f.Issue)

	_, err = r.Finding("auth/login.py", 2)
	assert.Error(t, err)
	_, err = r.Finding("missing.py", 0)
	assert.Error(t, err)
}

func TestWriteAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	r := Assemble(sampleInput())
	require.NoError(t, r.Write(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, r.Summary.Analyzed, loaded.Summary.Analyzed)
	assert.Equal(t, r.FileHashes, loaded.FileHashes)
	assert.Equal(t, "missing role check", loaded.Files[0].Findings[0].Issue)

	_, err = Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestCorrelate(t *testing.T) {
	prior := &ScanReport{Files: []findings.FileReport{
		{File: "auth/login.py", Findings: []findings.Finding{
			{Issue: "Missing Role Check", Snippet: "def login(u):\n    return u"},
			{Issue: "hardcoded admin bypass", Function: "login"},
		}},
		{File: "billing/refund.py", Findings: []findings.Finding{
			{Issue: "refund without owner check"},
		}},
	}}

	r := Assemble(sampleInput())
	r.Files[0].Findings[0].Snippet = "def login(u):  return u"
	r.Correlate(prior)

	assert.Equal(t, 1, r.Summary.NewFindings)
	assert.Equal(t, 1, r.Summary.Persisting)
	assert.Equal(t, 1, r.Summary.Resolved)
	require.Len(t, r.Resolved, 1)
	assert.Equal(t, "hardcoded admin bypass", r.Resolved[0].Issue)
}

func TestCorrelateWithoutPrior(t *testing.T) {
	r := Assemble(sampleInput())
	r.Correlate(nil)

	assert.Equal(t, 2, r.Summary.NewFindings)
	assert.Zero(t, r.Summary.Persisting)
	assert.Zero(t, r.Summary.Resolved)
	assert.Nil(t, r.Resolved)
}
