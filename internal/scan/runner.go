package scan

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/logicscan/internal/store"
	"github.com/scan-io-git/logicscan/pkg/shared/config"
	sharederrors "github.com/scan-io-git/logicscan/pkg/shared/errors"
)

const (
	DefaultRetryAttempts = 2
	DefaultRetryDelay    = 60 * time.Second
)

// Runner re-runs scans that failed as a whole.
type Runner struct {
	orchestrator *Orchestrator
	maxAttempts  int
	delay        time.Duration
	logger       hclog.Logger
}

// NewRunner creates a runner from the scan.retry section.
func NewRunner(o *Orchestrator, retry config.Retry, logger hclog.Logger) *Runner {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Runner{
		orchestrator: o,
		maxAttempts:  config.SetThen(retry.MaxAttempts, DefaultRetryAttempts),
		delay:        config.SetThen(retry.Delay, DefaultRetryDelay),
		logger:       logger,
	}
}

// RunWithRetry runs scanID until it completes or maxAttempts runs failed with
// a transport or selection error. Store errors are returned at once.
func (r *Runner) RunWithRetry(ctx context.Context, scanID string) (*store.Scan, error) {
	var (
		scan *store.Scan
		err  error
	)
	for attempt := 1; ; attempt++ {
		scan, err = r.orchestrator.Run(ctx, scanID)
		if err == nil || !retryable(err) || attempt >= r.maxAttempts {
			return scan, err
		}

		r.logger.Warn("scan failed, retrying", "scanID", scanID, "attempt", attempt, "delay", r.delay, "error", err)
		select {
		case <-ctx.Done():
			return scan, err
		case <-time.After(r.delay):
		}
	}
}

func retryable(err error) bool {
	switch sharederrors.KindOf(err) {
	case sharederrors.KindTransport, sharederrors.KindSelection:
		return true
	default:
		return false
	}
}
