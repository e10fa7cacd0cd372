package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/logicscan/internal/findings"
	"github.com/scan-io-git/logicscan/internal/git"
	"github.com/scan-io-git/logicscan/internal/ingest"
	"github.com/scan-io-git/logicscan/internal/llm"
	"github.com/scan-io-git/logicscan/internal/metrics"
	"github.com/scan-io-git/logicscan/internal/report"
	"github.com/scan-io-git/logicscan/internal/store"
	"github.com/scan-io-git/logicscan/pkg/shared/config"
	sharederrors "github.com/scan-io-git/logicscan/pkg/shared/errors"
)

const loginSource = `def check(name, guess):
    stored = lookup(name)
    if stored is None:
        record_failure(name)
        return False
    matched = compare_digest(stored, guess)
    if not matched:
        record_failure(name)
    return matched
`

const formatSource = `def pad(text, width):
    if len(text) >= width:
        return text
    return text + " " * (width - len(text))


def center(text, width):
    left = (width - len(text)) // 2
    return " " * left + pad(text, width - left)
`

const modelAnswer = `{"analysis":[{"issue":"missing role check","severity":"high","required_role":"admin","z3_assertion":null}]}`

// fixtureSource copies a fixed file set into the checkout folder.
type fixtureSource struct {
	files    map[string]string
	failures int

	mu      sync.Mutex
	calls   int
	targets []string
}

func (f *fixtureSource) Checkout(_ context.Context, req CheckoutRequest) (*git.Checkout, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.targets = append(f.targets, req.TargetFolder)
	f.mu.Unlock()

	if call <= f.failures {
		return nil, errors.New("connection reset by peer")
	}
	for rel, content := range f.files {
		path := filepath.Join(req.TargetFolder, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, err
		}
	}
	return &git.Checkout{Path: req.TargetFolder, Branch: "main", Commit: "0123abcd"}, nil
}

// staticProvider answers every prompt with the same text.
type staticProvider struct {
	text string

	mu    sync.Mutex
	calls int
}

func (p *staticProvider) Complete(context.Context, llm.Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.text, nil
}

type harness struct {
	store    *store.MemoryStore
	source   *fixtureSource
	provider *staticProvider
	metrics  *metrics.Metrics
	orch     *Orchestrator
}

func newHarness(t *testing.T, files map[string]string, maxFiles int) *harness {
	t.Helper()
	h := &harness{
		store:    store.NewMemoryStore(),
		source:   &fixtureSource{files: files},
		provider: &staticProvider{text: modelAnswer},
		metrics:  metrics.New(nil),
	}
	dispatcher := llm.NewDispatcher(h.provider, llm.Options{RetryDelay: time.Millisecond}, h.metrics, nil)
	h.orch = New(h.store, h.source, StaticCredentials{}, dispatcher, h.metrics, Options{
		MaxFiles:   maxFiles,
		TempFolder: t.TempDir(),
	}, nil)
	return h
}

func (h *harness) createScan(t *testing.T, repository string) *store.Scan {
	t.Helper()
	scan := &store.Scan{Repository: repository}
	require.NoError(t, h.store.CreateScan(context.Background(), scan))
	return scan
}

func (h *harness) completePrior(t *testing.T, repository string, manifest ingest.Manifest) {
	t.Helper()
	prior := h.createScan(t, repository)
	prior.Status = store.StatusCompleted
	prior.Results = &report.ScanReport{FileHashes: manifest}
	require.NoError(t, h.store.UpdateScan(context.Background(), prior))
}

func fixtureManifest() ingest.Manifest {
	return ingest.Manifest{
		"auth/login.py": ingest.Fingerprint([]byte(loginSource)),
		"lib/format.py": ingest.Fingerprint([]byte(formatSource)),
	}
}

func TestRunEndToEnd(t *testing.T) {
	files := map[string]string{"auth/login.py": loginSource, "lib/format.py": formatSource}
	h := newHarness(t, files, 1)
	h.completePrior(t, "acme/shop", fixtureManifest())
	scan := h.createScan(t, "acme/shop")

	got, err := h.orch.Run(context.Background(), scan.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, got.Status)
	assert.Empty(t, got.Error)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "main", got.Branch)

	stored, err := h.store.LoadScan(context.Background(), scan.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, stored.Status)

	results := got.Results
	require.NotNil(t, results)
	require.Len(t, results.Files, 1)
	fr := results.Files[0]
	assert.Equal(t, "auth/login.py", fr.File)
	assert.Equal(t, findings.TierHigh, fr.Tier)
	assert.False(t, fr.Changed)
	assert.Empty(t, fr.RawOutputs)

	require.Len(t, fr.Findings, 1)
	f := fr.Findings[0]
	assert.Equal(t, "missing role check", f.Issue)
	assert.Equal(t, findings.SeverityHigh, f.Severity)
	require.NotNil(t, f.RequiredRole)
	assert.Equal(t, "admin", *f.RequiredRole)
	assert.Nil(t, f.Assertion)
	assert.Equal(t, loginSource, f.Snippet)
	assert.Equal(t, "auth/login.py", f.File)

	assert.True(t, results.Symbolic.Consistent)
	assert.Equal(t, 0, results.Symbolic.Assertions)

	s := results.Summary
	assert.Equal(t, 2, s.Scanned)
	assert.Equal(t, 1, s.Analyzed)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 0, s.Changed)
	assert.Equal(t, 1, s.Chunks)
	assert.Equal(t, 0, s.FailedChunks)
	assert.Equal(t, 1, s.NewFindings)
	assert.Equal(t, 0, s.Resolved)
	assert.Equal(t, fixtureManifest(), results.FileHashes)

	assert.Equal(t, 1, h.provider.calls)
	require.Len(t, h.source.targets, 1)
	assert.NoDirExists(t, h.source.targets[0])

	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.Scans.WithLabelValues("completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.FilesSelected.WithLabelValues("high")))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.Findings))
}

func TestRunFallsBackToOwnResults(t *testing.T) {
	files := map[string]string{"auth/login.py": loginSource}
	h := newHarness(t, files, 5)
	scan := h.createScan(t, "acme/shop")
	scan.Status = store.StatusCompleted
	scan.Results = &report.ScanReport{FileHashes: ingest.Manifest{"auth/login.py": "stale"}}
	require.NoError(t, h.store.UpdateScan(context.Background(), scan))

	got, err := h.orch.Run(context.Background(), scan.ID)
	require.NoError(t, err)
	require.Len(t, got.Results.Files, 1)
	assert.True(t, got.Results.Files[0].Changed)
	assert.Equal(t, 1, got.Results.Summary.Changed)
}

func TestRunCorrelatesWithPrior(t *testing.T) {
	files := map[string]string{"auth/login.py": loginSource}
	h := newHarness(t, files, 5)
	prior := h.createScan(t, "acme/shop")
	prior.Status = store.StatusCompleted
	prior.Results = &report.ScanReport{
		FileHashes: fixtureManifest(),
		Files: []findings.FileReport{{File: "auth/login.py", Findings: []findings.Finding{
			{Issue: "Missing role check"},
			{Issue: "session fixation"},
		}}},
	}
	require.NoError(t, h.store.UpdateScan(context.Background(), prior))
	scan := h.createScan(t, "acme/shop")

	got, err := h.orch.Run(context.Background(), scan.ID)
	require.NoError(t, err)

	s := got.Results.Summary
	assert.Equal(t, 0, s.NewFindings)
	assert.Equal(t, 1, s.Persisting)
	assert.Equal(t, 1, s.Resolved)
	require.Len(t, got.Results.Resolved, 1)
	assert.Equal(t, "session fixation", got.Results.Resolved[0].Issue)
}

func TestRunCloneFailure(t *testing.T) {
	h := newHarness(t, map[string]string{"auth/login.py": loginSource}, 5)
	h.source.failures = 1
	scan := h.createScan(t, "acme/shop")

	got, err := h.orch.Run(context.Background(), scan.ID)
	require.Error(t, err)
	assert.Equal(t, sharederrors.KindTransport, sharederrors.KindOf(err))
	assert.Equal(t, store.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "connection reset by peer")
	assert.Nil(t, got.Results)

	stored, err := h.store.LoadScan(context.Background(), scan.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, stored.Status)
	assert.NotEmpty(t, stored.Error)

	require.Len(t, h.source.targets, 1)
	assert.NoDirExists(t, h.source.targets[0])
	assert.Equal(t, 0, h.provider.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.Scans.WithLabelValues("failed")))
}

func TestRunNoEligibleFiles(t *testing.T) {
	h := newHarness(t, map[string]string{"lib/format.py": formatSource}, 5)
	h.completePrior(t, "acme/shop", fixtureManifest())
	scan := h.createScan(t, "acme/shop")

	got, err := h.orch.Run(context.Background(), scan.ID)
	require.Error(t, err)
	assert.Equal(t, sharederrors.KindSelection, sharederrors.KindOf(err))
	assert.ErrorIs(t, err, ErrNoEligibleFiles)
	assert.Equal(t, store.StatusFailed, got.Status)
	assert.Equal(t, 0, h.provider.calls)
}

func TestRunMissingScan(t *testing.T) {
	h := newHarness(t, nil, 5)
	_, err := h.orch.Run(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, sharederrors.KindStore, sharederrors.KindOf(err))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunWithRetry(t *testing.T) {
	h := newHarness(t, map[string]string{"auth/login.py": loginSource}, 5)
	h.source.failures = 1
	scan := h.createScan(t, "acme/shop")

	runner := NewRunner(h.orch, config.Retry{Delay: time.Millisecond}, nil)
	got, err := runner.RunWithRetry(context.Background(), scan.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, 2, h.source.calls)
}

func TestRunWithRetryKeepsRepositoryPrior(t *testing.T) {
	h := newHarness(t, map[string]string{"auth/login.py": loginSource}, 5)
	h.completePrior(t, "acme/shop", fixtureManifest())
	h.source.failures = 1
	scan := h.createScan(t, "acme/shop")

	runner := NewRunner(h.orch, config.Retry{Delay: time.Millisecond}, nil)
	got, err := runner.RunWithRetry(context.Background(), scan.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts)
	require.Len(t, got.Results.Files, 1)
	assert.False(t, got.Results.Files[0].Changed)
	assert.Equal(t, 0, got.Results.Summary.Changed)
}

func TestRunWithRetryGivesUp(t *testing.T) {
	h := newHarness(t, map[string]string{"auth/login.py": loginSource}, 5)
	h.source.failures = 10
	scan := h.createScan(t, "acme/shop")

	runner := NewRunner(h.orch, config.Retry{MaxAttempts: 3, Delay: time.Millisecond}, nil)
	got, err := runner.RunWithRetry(context.Background(), scan.ID)
	require.Error(t, err)
	assert.Equal(t, store.StatusFailed, got.Status)
	assert.Equal(t, 3, got.Attempts)
	assert.Equal(t, 3, h.source.calls)

	_, err = runner.RunWithRetry(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, 3, h.source.calls)
}

func TestNewRunnerDefaults(t *testing.T) {
	r := NewRunner(nil, config.Retry{}, nil)
	assert.Equal(t, DefaultRetryAttempts, r.maxAttempts)
	assert.Equal(t, DefaultRetryDelay, r.delay)
}

func TestOptionsFromConfig(t *testing.T) {
	exclusive := true
	cfg := &config.Config{
		Scan: config.Scan{
			MaxFiles:   7,
			ChunkSize:  800,
			Thresholds: config.Thresholds{Critical: 40, High: 20, Medium: 8},
		},
		Symbolic: config.Symbolic{ExclusivePermissions: &exclusive},
	}
	opts := OptionsFromConfig(cfg)
	assert.Equal(t, 7, opts.MaxFiles)
	assert.Equal(t, DefaultPrefixBytes, opts.PrefixBytes)
	assert.Equal(t, 800, opts.Chunk.Size)
	assert.Equal(t, 20, opts.Thresholds.High)
	assert.True(t, opts.ExclusivePermissions)

	opts = OptionsFromConfig(&config.Config{})
	assert.Equal(t, 25, opts.MaxFiles)
	assert.Equal(t, 30, opts.Thresholds.Critical)
	assert.False(t, opts.ExclusivePermissions)
}

func TestStaticCredentials(t *testing.T) {
	t.Setenv("LOGICSCAN_GIT_TOKEN", "")
	creds := NewStaticCredentials(&config.Config{GitClient: config.GitClient{Token: "from-config"}})
	token, err := creds.AccessToken(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "from-config", token)

	t.Setenv("LOGICSCAN_GIT_TOKEN", "from-env")
	creds = NewStaticCredentials(&config.Config{GitClient: config.GitClient{Token: "from-config"}})
	assert.Equal(t, "from-env", creds.Token)
}

func TestGitSourceLocalFolder(t *testing.T) {
	dir := t.TempDir()
	src := NewGitSource(&config.Config{}, nil)

	checkout, err := src.Checkout(context.Background(), CheckoutRequest{Repository: dir, TargetFolder: t.TempDir()})
	require.NoError(t, err)
	abs, _ := filepath.Abs(dir)
	assert.Equal(t, abs, checkout.Path)
	assert.Empty(t, checkout.Commit)
}
