package escalate

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// artifactPrefix namespaces uploaded diagnostics by capture time:
// auto_img/<YYYY-MM-DD>@<HH:MM:SS>/<basename>
const artifactPrefix = "auto_img"

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore uploads diagnostic images to a MinIO (S3-compatible) bucket.
type MinioStore struct {
	client *minio.Client
	cfg    MinioConfig
	now    func() time.Time
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &MinioStore{client: client, cfg: cfg, now: time.Now}, nil
}

func (s *MinioStore) Upload(ctx context.Context, localPath string) (string, error) {
	key := ObjectKey(s.now(), localPath)
	if _, err := s.client.FPutObject(ctx, s.cfg.Bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "image/png",
	}); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	scheme := "http"
	if s.cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.cfg.Endpoint, s.cfg.Bucket, key), nil
}

// ObjectKey builds the timestamped object name for a diagnostic file.
func ObjectKey(at time.Time, localPath string) string {
	return fmt.Sprintf("%s/%s@%s/%s",
		artifactPrefix,
		at.Format("2006-01-02"),
		at.Format("15:04:05"),
		filepath.Base(localPath))
}
