package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yanqian/horizon/internal/domain/sunreport"
)

// S3Sink uploads malformed model outputs to an S3-compatible bucket
// (MinIO, Cloudflare R2, AWS S3).
type S3Sink struct {
	client     *minio.Client
	bucket     string
	logger     *slog.Logger
	now        func() time.Time
	bucketMu   sync.Mutex
	bucketDone bool
}

type captureDocument struct {
	CapturedAt time.Time               `json:"capturedAt"`
	Location   sunreport.LocationInput `json:"location"`
	Date       string                  `json:"date"`
	Model      string                  `json:"model"`
	Reason     string                  `json:"reason"`
	Raw        string                  `json:"raw"`
}

// NewS3Sink constructs the sink.
func NewS3Sink(endpoint, accessKey, secretKey, bucket, region string, logger *slog.Logger) (*S3Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	useSSL := !strings.HasPrefix(strings.ToLower(strings.TrimSpace(endpoint)), "http://")
	client, err := minio.New(sanitizeEndpoint(endpoint), &minio.Options{
		Creds:        credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure:       useSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Sink{
		client: client,
		bucket: bucket,
		logger: logger.With("component", "diagnostics.s3"),
		now:    time.Now,
	}, nil
}

// CaptureMalformed implements sunreport.DiagnosticsSink.
func (s *S3Sink) CaptureMalformed(ctx context.Context, capture sunreport.MalformedCapture) error {
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket %s: %w", s.bucket, err)
	}

	capturedAt := s.now().UTC()
	payload, err := json.Marshal(captureDocument{
		CapturedAt: capturedAt,
		Location:   capture.Location,
		Date:       capture.Date,
		Model:      capture.Model,
		Reason:     capture.Reason,
		Raw:        capture.Raw,
	})
	if err != nil {
		return err
	}

	key := objectKey(capturedAt, uuid.NewString())
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType:      "application/json",
		DisableMultipart: true,
	})
	if err != nil {
		return fmt.Errorf("upload capture: %w", err)
	}
	s.logger.Info("malformed response captured", "bucket", s.bucket, "key", key)
	return nil
}

func (s *S3Sink) ensureBucket(ctx context.Context) error {
	s.bucketMu.Lock()
	defer s.bucketMu.Unlock()
	if s.bucketDone {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err == nil && exists {
		s.bucketDone = true
		return nil
	}
	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
		return err
	}
	s.bucketDone = true
	return nil
}

func objectKey(at time.Time, id string) string {
	return fmt.Sprintf("malformed/%s/%s.json", at.Format("2006-01-02"), id)
}

// sanitizeEndpoint removes schemes and paths to satisfy minio.New expectations.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if idx := strings.Index(raw, "/"); idx >= 0 {
		raw = raw[:idx]
	}
	return raw
}

var _ sunreport.DiagnosticsSink = (*S3Sink)(nil)
