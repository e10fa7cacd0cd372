package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/logicscan/internal/report"
	"github.com/scan-io-git/logicscan/pkg/shared/config"
)

// S3Store keeps one JSON object per record in a bucket.
type S3Store struct {
	client s3iface.S3API
	bucket string
	prefix string
	logger hclog.Logger
	now    func() time.Time
}

// NewS3Store creates a store on the bucket described by cfg. Credentials come
// from the default AWS provider chain.
func NewS3Store(cfg config.S3, logger hclog.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 store requires a bucket")
	}
	awsCfg := aws.NewConfig().
		WithS3ForcePathStyle(config.GetBoolValue(&cfg, "ForcePathStyle", false))
	if cfg.Region != "" {
		awsCfg = awsCfg.WithRegion(cfg.Region)
	}
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create aws session: %w", err)
	}
	return NewS3StoreWithClient(s3.New(sess), cfg.Bucket, cfg.Prefix, logger), nil
}

// NewS3StoreWithClient creates a store on an existing client.
func NewS3StoreWithClient(client s3iface.S3API, bucket, prefix string, logger hclog.Logger) *S3Store {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
		now:    time.Now,
	}
}

func (s *S3Store) key(kind, id string) string {
	return path.Join(s.prefix, kind, id+".json")
}

func (s *S3Store) put(ctx context.Context, kind, id string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s %q: %w", kind, id, err)
	}
	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(kind, id)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s %q: %w", kind, id, err)
	}
	return nil
}

func (s *S3Store) get(ctx context.Context, key string, v interface{}) error {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("failed to fetch %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) CreateScan(ctx context.Context, scan *Scan) error {
	if scan == nil {
		return fmt.Errorf("scan is nil")
	}
	prepareNewScan(scan, s.now())
	return s.put(ctx, scansFolder, scan.ID, scan)
}

func (s *S3Store) LoadScan(ctx context.Context, id string) (*Scan, error) {
	var scan Scan
	if err := s.get(ctx, s.key(scansFolder, id), &scan); err != nil {
		return nil, err
	}
	return &scan, nil
}

func (s *S3Store) UpdateScan(ctx context.Context, scan *Scan) error {
	if err := validateScan(scan); err != nil {
		return err
	}
	if _, err := s.LoadScan(ctx, scan.ID); err != nil {
		return err
	}
	scan.UpdatedAt = s.now()
	return s.put(ctx, scansFolder, scan.ID, scan)
}

func (s *S3Store) SaveOrganization(ctx context.Context, org *Organization) error {
	if org == nil {
		return fmt.Errorf("organization is nil")
	}
	prepareNewOrganization(org, s.now())
	return s.put(ctx, organizationsFolder, org.ID, org)
}

func (s *S3Store) LoadOrganization(ctx context.Context, id string) (*Organization, error) {
	var org Organization
	if err := s.get(ctx, s.key(organizationsFolder, id), &org); err != nil {
		return nil, err
	}
	return &org, nil
}

func (s *S3Store) LatestResults(ctx context.Context, repository, excludeID string) (*report.ScanReport, error) {
	var keys []string
	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(path.Join(s.prefix, scansFolder) + "/"),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			if obj.Key != nil && strings.HasSuffix(*obj.Key, ".json") {
				keys = append(keys, *obj.Key)
			}
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}

	scans := make([]*Scan, 0, len(keys))
	for _, key := range keys {
		var scan Scan
		if err := s.get(ctx, key, &scan); err != nil {
			s.logger.Warn("skipping unreadable scan record", "key", key, "error", err)
			continue
		}
		scans = append(scans, &scan)
	}
	return latestResults(scans, repository, excludeID), nil
}
