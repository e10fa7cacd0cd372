// Package store persists scan and organization records.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/logicscan/internal/report"
	"github.com/scan-io-git/logicscan/pkg/shared/config"
	sharederrors "github.com/scan-io-git/logicscan/pkg/shared/errors"
)

// Status is the lifecycle state of a scan.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Scan is the persisted record of one scan. A completed scan carries Results,
// a failed one carries Error instead.
type Scan struct {
	ID             string             `json:"id"`
	OrganizationID string             `json:"organization_id"`
	Repository     string             `json:"repository"`
	Branch         string             `json:"branch,omitempty"`
	Status         Status             `json:"status"`
	Results        *report.ScanReport `json:"results,omitempty"`
	Error          string             `json:"error,omitempty"`
	Attempts       int                `json:"attempts"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// Organization owns repositories and the credentials to fetch them.
type Organization struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	GitHubInstallationID int64     `json:"github_installation_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// Store is the persistence backend of the orchestrator.
type Store interface {
	// CreateScan stores a new pending scan and assigns its ID when empty.
	CreateScan(ctx context.Context, scan *Scan) error
	LoadScan(ctx context.Context, id string) (*Scan, error)
	UpdateScan(ctx context.Context, scan *Scan) error
	SaveOrganization(ctx context.Context, org *Organization) error
	LoadOrganization(ctx context.Context, id string) (*Organization, error)
	// LatestResults returns the report of the most recent completed scan
	// of repository other than excludeID, or nil when there is none.
	LatestResults(ctx context.Context, repository, excludeID string) (*report.ScanReport, error)
}

// New creates the backend selected by the store section of cfg.
func New(cfg *config.Config, logger hclog.Logger) (Store, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	storeCfg := cfg.Store
	switch storeCfg.Type {
	case "", "file":
		folder := storeCfg.Folder
		if folder == "" {
			folder = config.GetLogicscanResultsHome(cfg)
		}
		return NewFileStore(folder, logger.Named("file-store"))
	case "s3":
		return NewS3Store(storeCfg.S3, logger.Named("s3-store"))
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, sharederrors.NewNotImplementedError("New", storeCfg.Type)
	}
}

func prepareNewScan(scan *Scan, now time.Time) {
	if scan.ID == "" {
		scan.ID = uuid.New().String()
	}
	if scan.Status == "" {
		scan.Status = StatusPending
	}
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = now
	}
	scan.UpdatedAt = now
}

func prepareNewOrganization(org *Organization, now time.Time) {
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	if org.CreatedAt.IsZero() {
		org.CreatedAt = now
	}
}

func validateScan(scan *Scan) error {
	if scan == nil {
		return fmt.Errorf("scan is nil")
	}
	if scan.ID == "" {
		return fmt.Errorf("scan has no id")
	}
	return nil
}

// latestResults picks the report of the newest completed scan of repository.
func latestResults(scans []*Scan, repository, excludeID string) *report.ScanReport {
	var candidates []*Scan
	for _, s := range scans {
		if s.Repository != repository || s.ID == excludeID {
			continue
		}
		if s.Status != StatusCompleted || s.Results == nil {
			continue
		}
		candidates = append(candidates, s)
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].UpdatedAt.Equal(candidates[j].UpdatedAt) {
			return candidates[i].UpdatedAt.After(candidates[j].UpdatedAt)
		}
		return candidates[i].ID > candidates[j].ID
	})
	return candidates[0].Results
}
