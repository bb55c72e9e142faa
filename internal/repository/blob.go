package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/blobstore/internal/domain/model"
)

// blobColumns — список столбцов таблицы blobs для SELECT и RETURNING.
const blobColumns = `id, hash, size, mime, storage_key, created_at, last_used_at, deleted_at`

// BlobRepo — реализация хранилища метаданных через pgx.
type BlobRepo struct {
	db DBTX
}

// NewBlobRepository создаёт PostgreSQL-репозиторий blob.
func NewBlobRepository(db DBTX) *BlobRepo {
	return &BlobRepo{db: db}
}

// FindByID возвращает запись по UUID (включая мягко удалённые) или ErrNotFound.
func (r *BlobRepo) FindByID(ctx context.Context, id string) (*model.Blob, error) {
	query := fmt.Sprintf(`SELECT %s FROM blobs WHERE id = $1`, blobColumns)

	blob, err := scanBlob(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения blob: %w", err)
	}
	return blob, nil
}

// FindByHashAndSize возвращает запись с тем же содержимым или ErrNotFound.
// Живая запись предпочтительнее удалённой, более новая — более старой.
func (r *BlobRepo) FindByHashAndSize(ctx context.Context, hash string, size int64) (*model.Blob, error) {
	query := fmt.Sprintf(`SELECT %s FROM blobs
		WHERE hash = $1 AND size = $2
		ORDER BY (deleted_at IS NULL) DESC, created_at DESC
		LIMIT 1`, blobColumns)

	blob, err := scanBlob(r.db.QueryRow(ctx, query, hash, size))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска blob по hash: %w", err)
	}
	return blob, nil
}

// Save создаёт запись; id и created_at назначает PostgreSQL.
// Нарушение частичного уникального индекса (hash, size) → ErrConflict.
func (r *BlobRepo) Save(ctx context.Context, params model.NewBlobParams) (*model.Blob, error) {
	query := fmt.Sprintf(`INSERT INTO blobs (hash, size, mime, storage_key)
		VALUES ($1, $2, $3, $4)
		RETURNING %s`, blobColumns)

	blob, err := scanBlob(r.db.QueryRow(ctx, query,
		params.Hash, params.Size, params.Mime, params.StorageKey,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("ошибка создания blob: %w", err)
	}
	return blob, nil
}

// Update сохраняет изменяемые поля (last_used_at, deleted_at).
func (r *BlobRepo) Update(ctx context.Context, blob *model.Blob) (*model.Blob, error) {
	query := fmt.Sprintf(`UPDATE blobs
		SET last_used_at = $2, deleted_at = $3
		WHERE id = $1
		RETURNING %s`, blobColumns)

	updated, err := scanBlob(r.db.QueryRow(ctx, query,
		blob.ID(), blob.LastUsedAt(), blob.DeletedAt(),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка обновления blob: %w", err)
	}
	return updated, nil
}

// Delete удаляет запись физически.
func (r *BlobRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM blobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления blob: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanBlob читает строку blobColumns в доменную модель.
func scanBlob(row pgx.Row) (*model.Blob, error) {
	var p model.BlobProps
	if err := row.Scan(
		&p.ID, &p.Hash, &p.Size, &p.Mime, &p.StorageKey,
		&p.CreatedAt, &p.LastUsedAt, &p.DeletedAt,
	); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	if p.LastUsedAt != nil {
		t := p.LastUsedAt.UTC()
		p.LastUsedAt = &t
	}
	if p.DeletedAt != nil {
		t := p.DeletedAt.UTC()
		p.DeletedAt = &t
	}
	return model.RestoreBlob(p), nil
}
