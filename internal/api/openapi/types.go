package openapi

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

// FileId — идентификатор файла в пути запроса.
type FileId = openapi_types.UUID //nolint:revive // имя из OpenAPI контракта

// FileRecord — метаданные файла.
type FileRecord struct {
	Id               openapi_types.UUID `json:"id"`
	StoragePath      string             `json:"storage_path"`
	OriginalFilename string             `json:"original_filename"`
	FileType         string             `json:"file_type"`
	FileSize         int64              `json:"file_size"`
	OwnerId          string             `json:"owner_id"`
	CreatedAt        time.Time          `json:"created_at"`
}

// DownloadLink — подписанная ссылка на скачивание.
type DownloadLink struct {
	Url       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DeleteResponse — ответ на удаление файла.
type DeleteResponse struct {
	Success bool `json:"success"`
}

// HealthCheck — результат проверки одной зависимости.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthStatus — ответ health endpoints.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Version   string                 `json:"version"`
	Service   string                 `json:"service"`
	Checks    map[string]HealthCheck `json:"checks,omitempty"`
}
