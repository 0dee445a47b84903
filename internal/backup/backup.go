// Package backup snapshots the document store to S3-compatible storage
// so the household ledger and calendar survive a dead SD card.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sethvargo/go-retry"

	"github.com/rowanhall/hearth/internal/kv"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Config holds S3-compatible storage configuration. An empty Bucket,
// AccessKey, or SecretKey leaves the snapshotter disabled. A non-empty
// Passphrase encrypts snapshots before upload.
type Config struct {
	Endpoint   string
	Bucket     string
	Region     string
	AccessKey  string
	SecretKey  string
	Prefix     string
	Passphrase string
}

// Snapshotter writes full copies of the document store to S3.
type Snapshotter struct {
	store      kv.Store
	client     s3Client
	bucket     string
	prefix     string
	passphrase string
	logger     *slog.Logger
	now        func() time.Time
	backoff    func() retry.Backoff
}

// snapshot is the on-wire backup format: every document, verbatim.
type snapshot struct {
	TakenAt   time.Time     `json:"taken_at"`
	Documents []kv.Document `json:"documents"`
}

// New creates a Snapshotter. If S3 credentials are incomplete the
// snapshotter is returned unconfigured and Run reports an error.
func New(cfg Config, store kv.Store, logger *slog.Logger) *Snapshotter {
	s := &Snapshotter{
		store:      store,
		bucket:     cfg.Bucket,
		prefix:     cfg.Prefix,
		passphrase: cfg.Passphrase,
		logger:     logger,
		now:        time.Now,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewExponential(time.Second))
		},
	}
	if cfg.Bucket != "" && cfg.AccessKey != "" && cfg.SecretKey != "" {
		s.client = newS3Client(cfg)
	}
	return s
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Configured reports whether S3 credentials were provided.
func (s *Snapshotter) Configured() bool {
	return s.client != nil
}

// Run takes a snapshot of every document and uploads it, returning the
// object key it was written under.
func (s *Snapshotter) Run(ctx context.Context) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("backup not configured: S3 credentials missing")
	}

	docs, err := s.store.List(ctx, "")
	if err != nil {
		return "", fmt.Errorf("list documents: %w", err)
	}

	snap := snapshot{TakenAt: s.now().UTC(), Documents: docs}
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	key := fmt.Sprintf("%ssnapshot-%s.json", s.prefix, snap.TakenAt.Format("2006-01-02T150405Z"))
	contentType := "application/json"
	if s.passphrase != "" {
		data, err = encrypt(data, s.passphrase)
		if err != nil {
			return "", fmt.Errorf("encrypt snapshot: %w", err)
		}
		key += ".enc"
		contentType = "application/octet-stream"
	}

	// Home connections drop; retry transient upload failures with backoff.
	err = retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
			ContentType:   aws.String(contentType),
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}

	s.logger.Info("snapshot uploaded", "key", key, "documents", len(docs), "bytes", len(data))
	return key, nil
}

// Restore downloads a snapshot and writes its documents back into the
// store, replacing any current documents under the same keys.
func (s *Snapshotter) Restore(ctx context.Context, key string) error {
	if s.client == nil {
		return fmt.Errorf("backup not configured: S3 credentials missing")
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download snapshot: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	if strings.HasSuffix(key, ".enc") {
		if s.passphrase == "" {
			return fmt.Errorf("snapshot %s is encrypted and no passphrase is configured", key)
		}
		data, err = decrypt(data, s.passphrase)
		if err != nil {
			return fmt.Errorf("decrypt %s: %w", key, err)
		}
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}

	for _, doc := range snap.Documents {
		var expected int64
		current, err := s.store.Get(ctx, doc.Key)
		switch {
		case err == nil:
			expected = current.Version
		case errors.Is(err, kv.ErrNotFound):
			// create fresh
		default:
			return fmt.Errorf("read %s: %w", doc.Key, err)
		}
		if _, err := s.store.Put(ctx, doc.Key, doc.Value, expected); err != nil {
			return fmt.Errorf("restore %s: %w", doc.Key, err)
		}
	}

	s.logger.Info("snapshot restored", "key", key, "documents", len(snap.Documents))
	return nil
}
