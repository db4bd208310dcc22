// Пакет service — бизнес-логика fileattach.
// FileService — жизненный цикл вложений: загрузка, список, ссылка на скачивание, удаление.
// Сервис не хранит состояния между запросами; байты файла идут только в объектное хранилище,
// метаданные — в таблицу files.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/fileattach/internal/domain/model"
	"github.com/bigkaa/fileattach/internal/repository"
	"github.com/bigkaa/fileattach/internal/storage"
)

// defaultContentType — MIME-тип, если клиент его не передал.
const defaultContentType = "application/octet-stream"

// maxExtensionLen — максимальная длина расширения в пути объекта.
const maxExtensionLen = 16

// Prometheus-метрики операций с файлами.
var (
	fileOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fa_file_operations_total",
		Help: "Количество операций с файлами (по операции и результату).",
	}, []string{"operation", "result"})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fa_upload_bytes_total",
		Help: "Общее количество загруженных байт.",
	})

	compensationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fa_compensations_total",
		Help: "Удаления объекта после неудачной записи метаданных (по результату).",
	}, []string{"result"})
)

// FileServiceConfig — параметры FileService.
type FileServiceConfig struct {
	// MaxUploadSize — максимальный размер файла в байтах.
	MaxUploadSize int64
	// SignedURLTTL — срок действия ссылки на скачивание.
	SignedURLTTL time.Duration
	// UpstreamTimeout — таймаут каждого вызова к хранилищу и БД.
	UpstreamTimeout time.Duration
}

// UploadInput — файл, полученный от клиента.
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// DownloadLink — подписанная ссылка на скачивание.
type DownloadLink struct {
	URL       string
	ExpiresAt time.Time
}

// FileService — сервис жизненного цикла файлов.
type FileService struct {
	repo   repository.FileRepository
	store  storage.ObjectStore
	cfg    FileServiceConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewFileService создаёт сервис файлов.
func NewFileService(
	repo repository.FileRepository,
	store storage.ObjectStore,
	cfg FileServiceConfig,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		repo:   repo,
		store:  store,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "file_service")),
		now:    time.Now,
	}
}

// Upload записывает объект в хранилище и сохраняет метаданные.
//
// Pipeline:
//  1. Проверка владельца и файла (размер уже ограничен на HTTP-границе)
//  2. Путь {owner}/{uuid}.{ext}
//  3. Запись объекта без перезаписи
//  4. Вставка строки; при ошибке — однократное удаление объекта
func (s *FileService) Upload(ctx context.Context, ownerID string, in UploadInput) (*model.FileRecord, error) {
	if ownerID == "" {
		return nil, ErrUnauthenticated
	}
	if in.Body == nil {
		fileOperationsTotal.WithLabelValues("upload", "invalid").Inc()
		return nil, fmt.Errorf("%w: файл обязателен", ErrValidation)
	}
	if !storableText(in.Filename) || !storableText(in.ContentType) {
		fileOperationsTotal.WithLabelValues("upload", "invalid").Inc()
		return nil, fmt.Errorf("%w: имя файла и тип должны быть в UTF-8 без NUL-символов", ErrValidation)
	}
	if in.Size < 0 || in.Size > s.cfg.MaxUploadSize {
		fileOperationsTotal.WithLabelValues("upload", "invalid").Inc()
		return nil, fmt.Errorf("%w: размер файла превышает %d байт", ErrValidation, s.cfg.MaxUploadSize)
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	storagePath := buildStoragePath(ownerID, in.Filename)

	putCtx, cancel := context.WithTimeout(ctx, s.cfg.UpstreamTimeout)
	err := s.store.Put(putCtx, storagePath, in.Body, in.Size, contentType)
	cancel()
	if err != nil {
		fileOperationsTotal.WithLabelValues("upload", "storage_error").Inc()
		return nil, dependencyError("запись объекта в хранилище", err)
	}

	insertCtx, cancel := context.WithTimeout(ctx, s.cfg.UpstreamTimeout)
	record, err := s.repo.Insert(insertCtx, &model.FileRecord{
		StoragePath:      storagePath,
		OriginalFilename: in.Filename,
		FileType:         contentType,
		FileSize:         in.Size,
		OwnerID:          ownerID,
	})
	cancel()
	if err != nil {
		s.compensate(ctx, storagePath, err)
		fileOperationsTotal.WithLabelValues("upload", "db_error").Inc()
		return nil, dependencyError("сохранение метаданных файла", err)
	}

	fileOperationsTotal.WithLabelValues("upload", "success").Inc()
	uploadBytesTotal.Add(float64(in.Size))

	s.logger.Info("Файл загружен",
		slog.String("file_id", record.ID),
		slog.String("owner_id", ownerID),
		slog.String("storage_path", storagePath),
		slog.Int64("size", in.Size),
	)

	return record, nil
}

// compensate удаляет объект после неудачной вставки метаданных.
// Одна попытка; отмена запроса клиентом её не прерывает.
func (s *FileService) compensate(ctx context.Context, storagePath string, cause error) {
	removeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.UpstreamTimeout)
	defer cancel()

	if err := s.store.Remove(removeCtx, storagePath); err != nil {
		compensationsTotal.WithLabelValues("failed").Inc()
		s.logger.Error("Не удалось удалить объект после ошибки записи метаданных",
			slog.String("storage_path", storagePath),
			slog.String("cause", cause.Error()),
			slog.String("error", err.Error()),
		)
		return
	}

	compensationsTotal.WithLabelValues("removed").Inc()
	s.logger.Warn("Объект удалён после ошибки записи метаданных",
		slog.String("storage_path", storagePath),
		slog.String("cause", cause.Error()),
	)
}

// List возвращает файлы владельца, новые первыми.
func (s *FileService) List(ctx context.Context, ownerID string) ([]*model.FileRecord, error) {
	if ownerID == "" {
		return nil, ErrUnauthenticated
	}

	listCtx, cancel := context.WithTimeout(ctx, s.cfg.UpstreamTimeout)
	defer cancel()

	records, err := s.repo.ListByOwner(listCtx, ownerID)
	if err != nil {
		fileOperationsTotal.WithLabelValues("list", "db_error").Inc()
		return nil, dependencyError("получение списка файлов", err)
	}

	fileOperationsTotal.WithLabelValues("list", "success").Inc()
	return records, nil
}

// Delete удаляет объект и строку метаданных владельца.
// Ошибка удаления объекта логируется и не прерывает удаление строки.
func (s *FileService) Delete(ctx context.Context, ownerID, fileID string) error {
	record, err := s.lookup(ctx, "delete", ownerID, fileID)
	if err != nil {
		return err
	}

	removeCtx, cancel := context.WithTimeout(ctx, s.cfg.UpstreamTimeout)
	err = s.store.Remove(removeCtx, record.StoragePath)
	cancel()
	if err != nil {
		s.logger.Warn("Не удалось удалить объект из хранилища, метаданные удаляются",
			slog.String("file_id", fileID),
			slog.String("storage_path", record.StoragePath),
			slog.String("error", err.Error()),
		)
	}

	deleteCtx, cancel := context.WithTimeout(ctx, s.cfg.UpstreamTimeout)
	defer cancel()

	if err := s.repo.DeleteByIDAndOwner(deleteCtx, fileID, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			fileOperationsTotal.WithLabelValues("delete", "not_found").Inc()
			return ErrNotFound
		}
		fileOperationsTotal.WithLabelValues("delete", "db_error").Inc()
		return dependencyError("удаление метаданных файла", err)
	}

	fileOperationsTotal.WithLabelValues("delete", "success").Inc()
	s.logger.Info("Файл удалён",
		slog.String("file_id", fileID),
		slog.String("owner_id", ownerID),
	)
	return nil
}

// Download возвращает подписанную ссылку на объект.
// Сервис не передаёт байты файла: клиент скачивает напрямую из хранилища.
func (s *FileService) Download(ctx context.Context, ownerID, fileID string) (*DownloadLink, error) {
	record, err := s.lookup(ctx, "download", ownerID, fileID)
	if err != nil {
		return nil, err
	}

	expiresAt := s.now().Add(s.cfg.SignedURLTTL).UTC()

	signCtx, cancel := context.WithTimeout(ctx, s.cfg.UpstreamTimeout)
	defer cancel()

	url, err := s.store.SignedURL(signCtx, record.StoragePath, s.cfg.SignedURLTTL)
	if err != nil {
		fileOperationsTotal.WithLabelValues("download", "storage_error").Inc()
		return nil, dependencyError("создание ссылки на скачивание", err)
	}

	fileOperationsTotal.WithLabelValues("download", "success").Inc()
	return &DownloadLink{URL: url, ExpiresAt: expiresAt}, nil
}

// lookup находит запись владельца одним запросом по (id, owner_id).
func (s *FileService) lookup(ctx context.Context, op, ownerID, fileID string) (*model.FileRecord, error) {
	if ownerID == "" {
		return nil, ErrUnauthenticated
	}

	getCtx, cancel := context.WithTimeout(ctx, s.cfg.UpstreamTimeout)
	defer cancel()

	record, err := s.repo.GetByIDAndOwner(getCtx, fileID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			fileOperationsTotal.WithLabelValues(op, "not_found").Inc()
			return nil, ErrNotFound
		}
		fileOperationsTotal.WithLabelValues(op, "db_error").Inc()
		return nil, dependencyError("получение метаданных файла", err)
	}
	return record, nil
}

// storableText сообщает, можно ли сохранить строку в колонку TEXT PostgreSQL без изменений.
func storableText(v string) bool {
	return utf8.ValidString(v) && !strings.ContainsRune(v, 0)
}

// buildStoragePath формирует путь объекта {owner}/{uuid}[.ext].
func buildStoragePath(ownerID, filename string) string {
	name := ownerID + "/" + uuid.NewString()
	if ext := fileExtension(filename); ext != "" {
		name += "." + ext
	}
	return name
}

// fileExtension возвращает расширение имени файла в нижнем регистре.
// Остаются только [a-z0-9], длина ограничена maxExtensionLen.
func fileExtension(filename string) string {
	ext := strings.TrimPrefix(path.Ext(strings.ReplaceAll(filename, "\\", "/")), ".")
	if ext == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range strings.ToLower(ext) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	out := b.String()
	if len(out) > maxExtensionLen {
		out = out[:maxExtensionLen]
	}
	return out
}
