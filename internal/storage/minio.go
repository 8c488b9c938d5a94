package storage

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/MimeLyc/hardsub-translator/pkg/log"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

// MinioStore keeps pipeline artifacts in S3-compatible buckets. Objects are
// addressed by URL so records can store a single string.
type MinioStore struct {
	client   *minio.Client
	endpoint string
	secure   bool
	region   string

	mu      sync.Mutex
	ensured map[string]bool
}

func NewMinioStore(cfg Config) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioStore{
		client:   client,
		endpoint: cfg.Endpoint,
		secure:   cfg.UseSSL,
		region:   region,
		ensured:  make(map[string]bool),
	}, nil
}

// Upload stores the file under "<uuid>_<basename>" and returns its URL
func (s *MinioStore) Upload(ctx context.Context, filePath, bucket string) (string, error) {
	if bucket == "" {
		return "", fmt.Errorf("bucket name cannot be empty")
	}
	info, err := os.Stat(filePath)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", filePath, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("upload %s: is a directory", filePath)
	}
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return "", err
	}

	key := uuid.NewString() + "_" + filepath.Base(filePath)
	if _, err := s.client.FPutObject(ctx, bucket, key, filePath, minio.PutObjectOptions{
		ContentType: contentType(filePath),
	}); err != nil {
		return "", fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}

	objectURL := s.ObjectURL(bucket, key)
	log.Info("Uploaded %s (%d bytes) to %s", filePath, info.Size(), objectURL)
	return objectURL, nil
}

// Replace uploads filePath and then removes the object behind oldURL.
// Failing to remove the old object is only logged.
func (s *MinioStore) Replace(ctx context.Context, oldURL, bucket, filePath string) (string, error) {
	newURL, err := s.Upload(ctx, filePath, bucket)
	if err != nil {
		return "", err
	}
	if oldURL != "" {
		if err := s.Delete(ctx, oldURL, bucket); err != nil {
			log.Warn("Failed to remove replaced object %s: %v", oldURL, err)
		}
	}
	return newURL, nil
}

func (s *MinioStore) Download(ctx context.Context, objectURL, bucket, dest string) error {
	bucket, key, err := ParseObjectURL(objectURL, bucket)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}
	if err := s.client.FGetObject(ctx, bucket, key, dest, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("get %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *MinioStore) Delete(ctx context.Context, objectURL, bucket string) error {
	bucket, key, err := ParseObjectURL(objectURL, bucket)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s/%s: %w", bucket, key, err)
	}
	log.Info("Removed %s/%s", bucket, key)
	return nil
}

// PresignedURL returns a time-limited GET link for the object
func (s *MinioStore) PresignedURL(ctx context.Context, objectURL, bucket string, ttl time.Duration) (string, error) {
	bucket, key, err := ParseObjectURL(objectURL, bucket)
	if err != nil {
		return "", err
	}
	u, err := s.client.PresignedGetObject(ctx, bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", bucket, key, err)
	}
	return u.String(), nil
}

// ObjectURL is the path-style URL of an object on this endpoint
func (s *MinioStore) ObjectURL(bucket, key string) string {
	scheme := "http"
	if s.secure {
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: s.endpoint, Path: "/" + bucket + "/" + key}
	return u.String()
}

func (s *MinioStore) ensureBucket(ctx context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured[bucket] {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
		log.Info("Bucket created: %s", bucket)
	}
	s.ensured[bucket] = true
	return nil
}

// ParseObjectURL accepts "s3://bucket/key", a path-style "http(s)://host/bucket/key"
// or a bare key stored in defaultBucket.
func ParseObjectURL(raw, defaultBucket string) (bucket, key string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("empty object url")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid object url %q: %w", raw, err)
	}

	switch u.Scheme {
	case "s3":
		bucket = u.Host
		key = strings.TrimPrefix(u.Path, "/")
	case "http", "https":
		bucket, key, _ = strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	case "":
		bucket = defaultBucket
		key = strings.TrimPrefix(u.Path, "/")
	default:
		return "", "", fmt.Errorf("unsupported object url scheme %q", u.Scheme)
	}

	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("object url %q has no bucket or key", raw)
	}
	return bucket, key, nil
}

var contentTypes = map[string]string{
	".srt":  "application/x-subrip",
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
}

func contentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if t, ok := contentTypes[ext]; ok {
		return t
	}
	if ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	return "application/octet-stream"
}
