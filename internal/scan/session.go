package scan

import (
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/logicscan/internal/findings"
	"github.com/scan-io-git/logicscan/internal/ingest"
	"github.com/scan-io-git/logicscan/internal/llm"
	"github.com/scan-io-git/logicscan/internal/report"
	"github.com/scan-io-git/logicscan/internal/store"
	"github.com/scan-io-git/logicscan/internal/symbolic"
)

// Session carries the state of one scan attempt from stage to stage.
type Session struct {
	Scan    *store.Scan
	Org     *store.Organization
	Logger  hclog.Logger
	Started time.Time

	Workdir string
	Branch  string
	Commit  string

	PriorReport *report.ScanReport
	Prior       ingest.Manifest
	Discovered  []ingest.SourceFile
	Manifest    ingest.Manifest
	Tiers       map[findings.Tier]int
	Selected    []ingest.SourceFile

	ChunkCounts map[string]int
	Jobs        []llm.Job
	Outcomes    []llm.Outcome
	Reports     []findings.FileReport
	Verdict     symbolic.Verdict
}

func newSession(scan *store.Scan, logger hclog.Logger, now time.Time) *Session {
	return &Session{
		Scan:        scan,
		Logger:      logger.With("scanID", scan.ID, "repository", scan.Repository),
		Started:     now,
		Branch:      scan.Branch,
		ChunkCounts: map[string]int{},
	}
}
