// Пакет storage — объектное хранилище файлов (S3-совместимое).
// Два драйвера: MinIO (minio-go) и AWS S3 (aws-sdk-go-v2).
// Сервис работает только с интерфейсом ObjectStore и никогда не передаёт
// байты файла при скачивании: клиент получает подписанную ссылку.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bigkaa/fileattach/internal/config"
)

// Ошибки объектного хранилища.
var (
	// ErrObjectExists — объект по указанному пути уже существует (запись без перезаписи).
	ErrObjectExists = errors.New("объект уже существует")
	// ErrObjectNotFound — объект не найден.
	ErrObjectNotFound = errors.New("объект не найден")
	// ErrBucketNotFound — bucket не существует.
	ErrBucketNotFound = errors.New("bucket не найден")
)

// ObjectStore — операции над объектами, которые нужны сервису файлов.
type ObjectStore interface {
	// Put записывает объект. Существующий объект не перезаписывается:
	// в этом случае возвращается ErrObjectExists.
	Put(ctx context.Context, path string, body io.Reader, size int64, contentType string) error
	// Remove удаляет объект.
	Remove(ctx context.Context, path string) error
	// SignedURL возвращает ссылку на скачивание объекта, действующую ttl.
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
	// CheckReady проверяет доступность bucket ("ok"/"fail" и сообщение).
	CheckReady() (status, message string)
}

// New создаёт хранилище по драйверу из конфигурации и проверяет наличие bucket.
// Отсутствующий bucket создаётся.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ObjectStore, error) {
	var (
		store interface {
			ObjectStore
			ensureBucket(ctx context.Context) error
		}
		err error
	)

	switch cfg.StorageDriver {
	case config.StorageDriverMinio:
		store, err = NewMinioStore(MinioConfig{
			Endpoint:  cfg.StorageEndpoint,
			Region:    cfg.StorageRegion,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			Bucket:    cfg.StorageBucket,
		})
	case config.StorageDriverS3:
		store, err = NewS3Store(ctx, S3Config{
			Endpoint:     cfg.StorageEndpoint,
			Region:       cfg.StorageRegion,
			AccessKey:    cfg.StorageAccessKey,
			SecretKey:    cfg.StorageSecretKey,
			Bucket:       cfg.StorageBucket,
			UsePathStyle: cfg.StorageUsePathStyle,
		})
	default:
		return nil, fmt.Errorf("неизвестный драйвер хранилища %q", cfg.StorageDriver)
	}
	if err != nil {
		return nil, err
	}

	checkCtx, cancel := context.WithTimeout(ctx, cfg.UpstreamTimeout)
	defer cancel()
	if err := store.ensureBucket(checkCtx); err != nil {
		return nil, err
	}

	logger.Info("Объектное хранилище подключено",
		slog.String("driver", cfg.StorageDriver),
		slog.String("endpoint", cfg.StorageEndpoint),
		slog.String("bucket", cfg.StorageBucket),
	)
	return store, nil
}

// readinessTimeout — таймаут проверки bucket для readiness probe.
const readinessTimeout = 3 * time.Second
