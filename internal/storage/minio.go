package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig — параметры подключения к MinIO.
type MinioConfig struct {
	// Endpoint — URL сервера (http://minio:9000); схема определяет TLS
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
}

// MinioStore — ObjectStore поверх minio-go.
type MinioStore struct {
	client *minio.Client
	bucket string
	region string
}

// NewMinioStore создаёт клиент MinIO. Сетевых запросов не выполняет.
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("некорректный endpoint MinIO %q", cfg.Endpoint)
	}

	// Регион задаётся явно, чтобы клиент не запрашивал GetBucketLocation
	client, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: u.Scheme == "https",
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("создание клиента MinIO: %w", err)
	}

	return &MinioStore{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// Put записывает объект с заголовком If-None-Match: *.
func (s *MinioStore) Put(ctx context.Context, path string, body io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	opts.SetMatchETagExcept("*")

	if _, err := s.client.PutObject(ctx, s.bucket, path, body, size, opts); err != nil {
		return classifyMinioError(err, "put")
	}
	return nil
}

// Remove удаляет объект. MinIO не сообщает об отсутствии объекта при удалении.
func (s *MinioStore) Remove(ctx context.Context, path string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return classifyMinioError(err, "remove")
	}
	return nil
}

// SignedURL формирует presigned GET URL. Подпись вычисляется локально.
func (s *MinioStore) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, path, ttl, nil)
	if err != nil {
		return "", classifyMinioError(err, "presign")
	}
	return u.String(), nil
}

// CheckReady проверяет существование bucket.
func (s *MinioStore) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
	defer cancel()

	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return "fail", fmt.Sprintf("MinIO недоступен: %v", err)
	}
	if !ok {
		return "fail", fmt.Sprintf("bucket %s не найден", s.bucket)
	}
	return "ok", "bucket доступен"
}

// ensureBucket создаёт bucket, если его нет.
func (s *MinioStore) ensureBucket(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("проверка bucket %s: %w", s.bucket, err)
	}
	if ok {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("создание bucket %s: %w", s.bucket, err)
	}
	return nil
}

// classifyMinioError приводит ошибки minio-go к ошибкам пакета.
func classifyMinioError(err error, operation string) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "PreconditionFailed" || resp.StatusCode == http.StatusPreconditionFailed:
		return fmt.Errorf("%w: %s", ErrObjectExists, resp.Key)
	case resp.Code == "NoSuchKey":
		return fmt.Errorf("%w: %s", ErrObjectNotFound, resp.Key)
	case resp.Code == "NoSuchBucket":
		return ErrBucketNotFound
	}
	return fmt.Errorf("%s: ошибка MinIO: %w", operation, err)
}
