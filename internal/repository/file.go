package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/fileattach/internal/domain/model"
)

// fileColumns — список столбцов таблицы files для SELECT/RETURNING.
const fileColumns = `id, storage_path, original_filename, file_type, file_size, owner_id, created_at`

// FileRepository — доступ к метаданным файлов.
// Все операции чтения и удаления одной записи фильтруют по паре (id, owner_id)
// одним предикатом: чужая запись неотличима от несуществующей.
type FileRepository interface {
	// Insert сохраняет запись; id и created_at задаёт база.
	Insert(ctx context.Context, record *model.FileRecord) (*model.FileRecord, error)
	// ListByOwner возвращает записи владельца, новые первыми.
	ListByOwner(ctx context.Context, ownerID string) ([]*model.FileRecord, error)
	// GetByIDAndOwner возвращает запись владельца по id или ErrNotFound.
	GetByIDAndOwner(ctx context.Context, id, ownerID string) (*model.FileRecord, error)
	// DeleteByIDAndOwner удаляет запись владельца; ErrNotFound, если удалять нечего.
	DeleteByIDAndOwner(ctx context.Context, id, ownerID string) error
}

// fileRepo — реализация FileRepository через pgx.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий файлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

func (r *fileRepo) Insert(ctx context.Context, record *model.FileRecord) (*model.FileRecord, error) {
	query := fmt.Sprintf(`
		INSERT INTO files (storage_path, original_filename, file_type, file_size, owner_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING %s`, fileColumns)

	row := r.db.QueryRow(ctx, query,
		record.StoragePath, record.OriginalFilename, record.FileType, record.FileSize, record.OwnerID,
	)
	f, err := scanFile(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: путь %s уже зарегистрирован", ErrConflict, record.StoragePath)
		}
		return nil, fmt.Errorf("ошибка сохранения метаданных файла: %w", err)
	}
	return f, nil
}

func (r *fileRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.FileRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM files
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC`, fileColumns)

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	files := make([]*model.FileRecord, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения строки файла: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации по файлам: %w", err)
	}
	return files, nil
}

func (r *fileRepo) GetByIDAndOwner(ctx context.Context, id, ownerID string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = $1 AND owner_id = $2`, fileColumns)

	f, err := scanFile(r.db.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

func (r *fileRepo) DeleteByIDAndOwner(ctx context.Context, id, ownerID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("ошибка удаления метаданных файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanFile сканирует одну строку в FileRecord. Порядок — fileColumns.
func scanFile(row pgx.Row) (*model.FileRecord, error) {
	f := &model.FileRecord{}
	err := row.Scan(
		&f.ID, &f.StoragePath, &f.OriginalFilename, &f.FileType,
		&f.FileSize, &f.OwnerID, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}
