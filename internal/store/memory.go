package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scan-io-git/logicscan/internal/report"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	scans map[string]Scan
	orgs  map[string]Organization
	now   func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scans: make(map[string]Scan),
		orgs:  make(map[string]Organization),
		now:   time.Now,
	}
}

func (m *MemoryStore) CreateScan(_ context.Context, scan *Scan) error {
	if scan == nil {
		return fmt.Errorf("scan is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	prepareNewScan(scan, m.now())
	if _, ok := m.scans[scan.ID]; ok {
		return fmt.Errorf("scan %q already exists", scan.ID)
	}
	m.scans[scan.ID] = *scan
	return nil
}

func (m *MemoryStore) LoadScan(_ context.Context, id string) (*Scan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scan, ok := m.scans[id]
	if !ok {
		return nil, fmt.Errorf("scan %q: %w", id, ErrNotFound)
	}
	return &scan, nil
}

func (m *MemoryStore) UpdateScan(_ context.Context, scan *Scan) error {
	if err := validateScan(scan); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.scans[scan.ID]; !ok {
		return fmt.Errorf("scan %q: %w", scan.ID, ErrNotFound)
	}
	scan.UpdatedAt = m.now()
	m.scans[scan.ID] = *scan
	return nil
}

func (m *MemoryStore) SaveOrganization(_ context.Context, org *Organization) error {
	if org == nil {
		return fmt.Errorf("organization is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	prepareNewOrganization(org, m.now())
	m.orgs[org.ID] = *org
	return nil
}

func (m *MemoryStore) LoadOrganization(_ context.Context, id string) (*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	org, ok := m.orgs[id]
	if !ok {
		return nil, fmt.Errorf("organization %q: %w", id, ErrNotFound)
	}
	return &org, nil
}

func (m *MemoryStore) LatestResults(_ context.Context, repository, excludeID string) (*report.ScanReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scans := make([]*Scan, 0, len(m.scans))
	for id := range m.scans {
		s := m.scans[id]
		scans = append(scans, &s)
	}
	return latestResults(scans, repository, excludeID), nil
}
