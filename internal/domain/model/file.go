// Пакет model — доменные модели fileattach.
// FileRecord — маппинг таблицы files.
package model

import "time"

// FileRecord — метаданные загруженного файла.
// Запись создаётся при загрузке и удаляется при удалении файла, но никогда не изменяется.
type FileRecord struct {
	// ID — UUID записи, генерируется PostgreSQL
	ID string `json:"id"`
	// StoragePath — путь объекта в хранилище: {owner_id}/{uuid}.{ext}
	StoragePath string `json:"storage_path"`
	// OriginalFilename — имя файла, переданное клиентом (без изменений)
	OriginalFilename string `json:"original_filename"`
	// FileType — MIME-тип, переданный клиентом
	FileType string `json:"file_type"`
	// FileSize — размер файла в байтах
	FileSize int64 `json:"file_size"`
	// OwnerID — идентификатор владельца из identity-сервиса
	OwnerID string `json:"owner_id"`
	// CreatedAt — время создания записи (задаётся сервером)
	CreatedAt time.Time `json:"created_at"`
}
