// files.go — обработчики /api/files: загрузка, список, ссылка на скачивание, удаление.
// Владелец берётся из контекста (middleware.Auth); сервис сам фильтрует по владельцу.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/fileattach/internal/api/errors"
	"github.com/bigkaa/fileattach/internal/api/middleware"
	"github.com/bigkaa/fileattach/internal/api/openapi"
	"github.com/bigkaa/fileattach/internal/domain/model"
	"github.com/bigkaa/fileattach/internal/service"
)

// multipartOverhead — запас на заголовки multipart сверх размера файла.
const multipartOverhead = 1 << 20

// multipartMemory — сколько multipart держать в памяти, остальное во временных файлах.
const multipartMemory = 32 << 20

// FileService — операции жизненного цикла файлов (service.FileService).
type FileService interface {
	Upload(ctx context.Context, ownerID string, in service.UploadInput) (*model.FileRecord, error)
	List(ctx context.Context, ownerID string) ([]*model.FileRecord, error)
	Delete(ctx context.Context, ownerID, fileID string) error
	Download(ctx context.Context, ownerID, fileID string) (*service.DownloadLink, error)
}

// FilesHandler — обработчик операций с файлами.
type FilesHandler struct {
	files         FileService
	maxUploadSize int64
	logger        *slog.Logger
}

// NewFilesHandler создаёт обработчик файлов.
func NewFilesHandler(files FileService, maxUploadSize int64, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		files:         files,
		maxUploadSize: maxUploadSize,
		logger:        logger.With(slog.String("component", "files_handler")),
	}
}

// UploadFile обрабатывает POST /api/files/upload.
// Multipart form: file (обязательно). Превышение лимита отклоняется
// до обращения к хранилищу.
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	owner := middleware.SubjectFromContext(r.Context())
	if owner == "" {
		apierrors.Unauthorized(w, "Пользователь не аутентифицирован")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.ValidationError(w, h.tooLargeMessage())
			return
		}
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadSize {
		apierrors.ValidationError(w, h.tooLargeMessage())
		return
	}

	record, err := h.files.Upload(r.Context(), owner, service.UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, domainToAPIFile(record))
}

// ListFiles обрабатывает GET /api/files.
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	records, err := h.files.List(r.Context(), middleware.SubjectFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := make([]openapi.FileRecord, 0, len(records))
	for _, rec := range records {
		resp = append(resp, domainToAPIFile(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

// DownloadFile обрабатывает GET /api/files/{id}/download.
// Возвращает подписанную ссылку; байты файла клиент получает из хранилища.
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request, id openapi.FileId) {
	link, err := h.files.Download(r.Context(), middleware.SubjectFromContext(r.Context()), id.String())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, openapi.DownloadLink{
		Url:       link.URL,
		ExpiresAt: link.ExpiresAt,
	})
}

// DeleteFile обрабатывает DELETE /api/files/{id}.
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request, id openapi.FileId) {
	if err := h.files.Delete(r.Context(), middleware.SubjectFromContext(r.Context()), id.String()); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, openapi.DeleteResponse{Success: true})
}

// writeServiceError переводит ошибку сервиса в HTTP-ответ.
func (h *FilesHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var depErr *service.DependencyError

	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		apierrors.Unauthorized(w, "Пользователь не аутентифицирован")
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w)
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.As(err, &depErr):
		h.logger.Error("Сбой внешней зависимости",
			slog.String("op", depErr.Op),
			slog.String("error", depErr.Err.Error()),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		)
		apierrors.DependencyError(w, "Ошибка внешней зависимости", depErr.Error())
	default:
		h.logger.Error("Внутренняя ошибка",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		)
		apierrors.InternalError(w)
	}
}

func (h *FilesHandler) tooLargeMessage() string {
	return fmt.Sprintf("Размер файла превышает %d байт", h.maxUploadSize)
}

// domainToAPIFile преобразует доменную модель в API-формат.
func domainToAPIFile(m *model.FileRecord) openapi.FileRecord {
	fileID := openapi.FileId{}
	_ = fileID.UnmarshalText([]byte(m.ID))

	return openapi.FileRecord{
		Id:               fileID,
		StoragePath:      m.StoragePath,
		OriginalFilename: m.OriginalFilename,
		FileType:         m.FileType,
		FileSize:         m.FileSize,
		OwnerId:          m.OwnerID,
		CreatedAt:        m.CreatedAt,
	}
}
