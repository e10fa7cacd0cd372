// Package scan runs the analysis pipeline for one scan record.
package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/logicscan/internal/aggregate"
	"github.com/scan-io-git/logicscan/internal/chunker"
	"github.com/scan-io-git/logicscan/internal/findings"
	"github.com/scan-io-git/logicscan/internal/ingest"
	"github.com/scan-io-git/logicscan/internal/llm"
	"github.com/scan-io-git/logicscan/internal/metrics"
	"github.com/scan-io-git/logicscan/internal/report"
	"github.com/scan-io-git/logicscan/internal/risk"
	"github.com/scan-io-git/logicscan/internal/store"
	"github.com/scan-io-git/logicscan/internal/symbolic"
	"github.com/scan-io-git/logicscan/pkg/shared/config"
	sharederrors "github.com/scan-io-git/logicscan/pkg/shared/errors"
	"github.com/scan-io-git/logicscan/pkg/shared/files"
)

// DefaultPrefixBytes is the amount of content the scorer looks at.
const DefaultPrefixBytes = 16 * 1024

// ErrNoEligibleFiles is returned when selection leaves nothing to analyze.
var ErrNoEligibleFiles = errors.New("no eligible files")

// Options controls the pipeline stages run by the orchestrator.
type Options struct {
	MaxFiles             int
	MinFileBytes         int64
	PrefixBytes          int
	Chunk                chunker.Options
	Thresholds           risk.Thresholds
	ExclusivePermissions bool
	TempFolder           string
}

// OptionsFromConfig reads the scan and symbolic sections of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	t := cfg.Scan.Thresholds
	thresholds := risk.DefaultThresholds()
	if t != (config.Thresholds{}) {
		thresholds = risk.Thresholds{Critical: t.Critical, High: t.High, Medium: t.Medium}
	}
	return Options{
		MaxFiles:             config.SetThen(cfg.Scan.MaxFiles, risk.DefaultMaxFiles),
		MinFileBytes:         cfg.Scan.MinFileBytes,
		PrefixBytes:          config.SetThen(cfg.Scan.PrefixBytes, DefaultPrefixBytes),
		Chunk:                chunker.Options{Size: cfg.Scan.ChunkSize, Overlap: cfg.Scan.ChunkOverlap},
		Thresholds:           thresholds,
		ExclusivePermissions: config.GetBoolValue(cfg, "Symbolic.ExclusivePermissions", false),
		TempFolder:           config.GetLogicscanTempHome(cfg),
	}
}

// Orchestrator owns the scan record while a scan runs. It is the only
// component that writes the record, once per status transition.
type Orchestrator struct {
	store      store.Store
	source     RepositorySource
	creds      CredentialProvider
	dispatcher *llm.Dispatcher
	checker    *symbolic.Checker
	metrics    *metrics.Metrics
	opts       Options
	logger     hclog.Logger
	now        func() time.Time
}

// New creates an orchestrator. Nil metrics and logger are replaced with private ones.
func New(st store.Store, source RepositorySource, creds CredentialProvider, dispatcher *llm.Dispatcher, m *metrics.Metrics, opts Options, logger hclog.Logger) *Orchestrator {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = risk.DefaultMaxFiles
	}
	if opts.PrefixBytes <= 0 {
		opts.PrefixBytes = DefaultPrefixBytes
	}
	if opts.Thresholds == (risk.Thresholds{}) {
		opts.Thresholds = risk.DefaultThresholds()
	}

	var constraints []symbolic.Constraint
	if opts.ExclusivePermissions {
		constraints = append(constraints, symbolic.ExclusivePerActionResource{})
	}

	return &Orchestrator{
		store:      st,
		source:     source,
		creds:      creds,
		dispatcher: dispatcher,
		checker:    symbolic.NewChecker(logger.Named("symbolic"), constraints...),
		metrics:    m,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes the scan scanID and persists its terminal status. The returned
// record is the one written last. Errors that fail the scan are *ScanError.
func (o *Orchestrator) Run(ctx context.Context, scanID string) (*store.Scan, error) {
	scan, err := o.store.LoadScan(ctx, scanID)
	if err != nil {
		return nil, sharederrors.NewStoreError("load scan", err)
	}

	previous := scan.Results
	scan.Status = store.StatusInProgress
	scan.Error = ""
	scan.Attempts++
	if err := o.store.UpdateScan(ctx, scan); err != nil {
		return scan, sharederrors.NewStoreError("mark scan in progress", err)
	}

	s := newSession(scan, o.logger, o.now())
	s.Logger.Info("scan started", "attempt", scan.Attempts)

	result, runErr := o.execute(ctx, s, previous)
	if runErr != nil {
		s.Logger.Error("scan failed", "error", runErr)
		scan.Status = store.StatusFailed
		scan.Error = runErr.Error()
		scan.Results = nil
	} else {
		scan.Status = store.StatusCompleted
		scan.Results = result
		if scan.Branch == "" {
			scan.Branch = s.Branch
		}
	}
	o.metrics.Scans.WithLabelValues(string(scan.Status)).Inc()

	// The terminal status must be written even when ctx is done.
	if err := o.store.UpdateScan(context.WithoutCancel(ctx), scan); err != nil {
		s.Logger.Error("failed to persist scan status", "status", scan.Status, "error", err)
		if runErr == nil {
			runErr = sharederrors.NewStoreError("persist scan result", err)
		}
	}
	if runErr == nil {
		s.Logger.Info("scan completed",
			"analyzed", result.Summary.Analyzed,
			"findings", result.Summary.Findings,
			"consistent", result.Symbolic.Consistent,
			"duration", o.now().Sub(s.Started).Round(time.Millisecond))
	}
	return scan, runErr
}

// execute runs the pipeline stages in order. The checkout folder is removed
// on every return path.
func (o *Orchestrator) execute(ctx context.Context, s *Session, previous *report.ScanReport) (*report.ScanReport, error) {
	if s.Scan.OrganizationID != "" {
		org, err := o.store.LoadOrganization(ctx, s.Scan.OrganizationID)
		if err != nil {
			return nil, sharederrors.NewStoreError("load organization", err)
		}
		s.Org = org
	}

	token, err := o.creds.AccessToken(ctx, s.Org)
	if err != nil {
		return nil, sharederrors.NewTransportError("credentials", err)
	}

	workdir, err := os.MkdirTemp(o.opts.TempFolder, "scan-"+s.Scan.ID+"-")
	if err != nil {
		return nil, sharederrors.NewTransportError("checkout", fmt.Errorf("failed to create checkout folder: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(workdir); err != nil {
			s.Logger.Warn("failed to remove checkout folder", "path", workdir, "error", err)
		}
	}()

	checkout, err := o.source.Checkout(ctx, CheckoutRequest{
		Repository:   s.Scan.Repository,
		Branch:       s.Scan.Branch,
		Token:        token,
		TargetFolder: workdir,
	})
	if err != nil {
		return nil, sharederrors.NewTransportError("clone", err)
	}
	s.Workdir = checkout.Path
	s.Branch = checkout.Branch
	s.Commit = checkout.Commit

	if err := o.loadPrior(ctx, s, previous); err != nil {
		return nil, err
	}
	if err := o.triage(s); err != nil {
		return nil, err
	}
	o.chunk(s)

	s.Outcomes, err = o.dispatcher.Dispatch(ctx, s.Jobs)
	if err != nil {
		return nil, sharederrors.NewTransportError("dispatch", err)
	}

	s.Reports = aggregate.Build(s.Selected, s.ChunkCounts, s.Outcomes)
	counts := aggregate.Tally(s.Outcomes)

	s.Verdict = o.checker.Check(findings.Assertions(s.Reports))

	result := report.Assemble(report.Input{
		Repository:   s.Scan.Repository,
		Branch:       s.Branch,
		Discovered:   s.Discovered,
		Tiers:        s.Tiers,
		Reports:      s.Reports,
		Manifest:     s.Manifest,
		Verdict:      s.Verdict,
		Chunks:       counts.Chunks,
		FailedChunks: counts.FailedChunks,
		Now:          o.now(),
	})
	result.Correlate(s.PriorReport)
	s.Logger.Info("findings correlated",
		"new", result.Summary.NewFindings,
		"persisting", result.Summary.Persisting,
		"resolved", result.Summary.Resolved,
	)
	return result, nil
}

// loadPrior picks the report of the latest completed scan of the same
// repository, falling back to the record's own results when a completed
// record is run again. Failed attempts leave no results behind.
func (o *Orchestrator) loadPrior(ctx context.Context, s *Session, previous *report.ScanReport) error {
	prior, err := o.store.LatestResults(ctx, s.Scan.Repository, s.Scan.ID)
	if err != nil {
		return sharederrors.NewStoreError("load prior results", err)
	}
	if prior == nil {
		prior = previous
	}
	s.PriorReport = prior
	if prior != nil {
		s.Prior = prior.FileHashes
	}
	s.Logger.Debug("prior results loaded", "files", len(s.Prior))
	return nil
}

// triage discovers, scores and selects files.
func (o *Orchestrator) triage(s *Session) error {
	discovered, manifest, err := ingest.Discover(s.Workdir, s.Prior, ingest.Options{MinFileBytes: o.opts.MinFileBytes}, s.Logger.Named("ingest"))
	if err != nil {
		return sharederrors.NewSelectionError("discover", err)
	}

	for i := range discovered {
		f := &discovered[i]
		prefix, err := files.ReadPrefix(f.AbsPath, o.opts.PrefixBytes)
		if err != nil {
			s.Logger.Warn("failed to read file prefix", "file", f.RelPath, "error", err)
		}
		f.Score = risk.Score(f.RelPath, f.Size, string(prefix))
	}
	o.opts.Thresholds.Assign(discovered)

	s.Discovered = discovered
	s.Manifest = manifest
	s.Tiers = risk.CountByTier(discovered, o.opts.Thresholds)
	s.Selected = risk.Select(discovered, o.opts.MaxFiles, o.opts.Thresholds)

	o.metrics.FilesSelected.Reset()
	for _, tier := range findings.Tiers {
		o.metrics.FilesSelected.WithLabelValues(string(tier)).Set(0)
	}
	for _, f := range s.Selected {
		o.metrics.FilesSelected.WithLabelValues(string(f.Tier)).Inc()
	}

	s.Logger.Info("files selected", "discovered", len(discovered), "selected", len(s.Selected), "budget", o.opts.MaxFiles)
	if len(s.Selected) == 0 {
		return sharederrors.NewSelectionError("select", fmt.Errorf("%w among %d discovered files", ErrNoEligibleFiles, len(discovered)))
	}
	return nil
}

// chunk splits every selected file into dispatcher jobs.
func (o *Orchestrator) chunk(s *Session) {
	maxSnippet := o.dispatcher.Options().MaxSnippetChars
	for _, f := range s.Selected {
		content, err := files.ReadText(f.AbsPath)
		if err != nil {
			s.Logger.Warn("failed to read selected file", "file", f.RelPath, "error", err)
			continue
		}
		language := chunker.DetectLanguage(f.RelPath)
		chunks := chunker.Split(f.RelPath, content, language, o.opts.Chunk)
		s.ChunkCounts[f.RelPath] = len(chunks)
		s.Logger.Trace("file chunked", "file", f.RelPath, "language", language,
			"semantic", chunker.HasSemanticSupport(language), "chunks", len(chunks))
		s.Jobs = append(s.Jobs, llm.JobsFor(chunks, maxSnippet)...)
	}
	s.Logger.Debug("chunking completed", "jobs", len(s.Jobs))
}
