package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/logicscan/internal/report"
	"github.com/scan-io-git/logicscan/pkg/shared/files"
)

const (
	scansFolder         = "scans"
	organizationsFolder = "organizations"
)

// FileStore keeps one JSON document per record under a root folder.
type FileStore struct {
	root   string
	logger hclog.Logger
	mu     sync.Mutex
	now    func() time.Time
}

// NewFileStore creates the record folders under root.
func NewFileStore(root string, logger hclog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	expanded, err := files.ExpandPath(root)
	if err != nil {
		return nil, fmt.Errorf("failed to expand store folder %q: %w", root, err)
	}
	for _, sub := range []string{scansFolder, organizationsFolder} {
		if err := files.CreateFolderIfNotExists(filepath.Join(expanded, sub)); err != nil {
			return nil, fmt.Errorf("failed to create store folder: %w", err)
		}
	}
	return &FileStore{root: expanded, logger: logger, now: time.Now}, nil
}

func (s *FileStore) path(kind, id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid record id %q", id)
	}
	return filepath.Join(s.root, kind, id+".json"), nil
}

func (s *FileStore) write(kind, id string, v interface{}) error {
	path, err := s.path(kind, id)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %q: %w", kind, id, err)
	}
	if err := files.WriteJsonFile(path, data); err != nil {
		return fmt.Errorf("failed to write %s %q: %w", kind, id, err)
	}
	return nil
}

func (s *FileStore) read(kind, id string, v interface{}) error {
	path, err := s.path(kind, id)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s %q: %w", kind, id, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s %q: %w", kind, id, err)
	}
	return nil
}

func (s *FileStore) CreateScan(_ context.Context, scan *Scan) error {
	if scan == nil {
		return fmt.Errorf("scan is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prepareNewScan(scan, s.now())
	path, err := s.path(scansFolder, scan.ID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("scan %q already exists", scan.ID)
	}
	return s.write(scansFolder, scan.ID, scan)
}

func (s *FileStore) LoadScan(_ context.Context, id string) (*Scan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var scan Scan
	if err := s.read(scansFolder, id, &scan); err != nil {
		return nil, err
	}
	return &scan, nil
}

func (s *FileStore) UpdateScan(_ context.Context, scan *Scan) error {
	if err := validateScan(scan); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing Scan
	if err := s.read(scansFolder, scan.ID, &existing); err != nil {
		return err
	}
	scan.UpdatedAt = s.now()
	return s.write(scansFolder, scan.ID, scan)
}

func (s *FileStore) SaveOrganization(_ context.Context, org *Organization) error {
	if org == nil {
		return fmt.Errorf("organization is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prepareNewOrganization(org, s.now())
	return s.write(organizationsFolder, org.ID, org)
}

func (s *FileStore) LoadOrganization(_ context.Context, id string) (*Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var org Organization
	if err := s.read(organizationsFolder, id, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

func (s *FileStore) LatestResults(_ context.Context, repository, excludeID string) (*report.ScanReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.root, scansFolder))
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}

	var scans []*Scan
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		var scan Scan
		if err := s.read(scansFolder, strings.TrimSuffix(e.Name(), ".json"), &scan); err != nil {
			s.logger.Warn("skipping unreadable scan record", "file", e.Name(), "error", err)
			continue
		}
		scans = append(scans, &scan)
	}
	return latestResults(scans, repository, excludeID), nil
}
