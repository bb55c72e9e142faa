// ports.go — контракты сервисного слоя с хранилищем метаданных
// и объектным хранилищем. Реализации подключаются в cmd/blobstore.
package service

import (
	"context"
	"io"

	"github.com/bigkaa/goartstore/blobstore/internal/domain/model"
)

// BlobRepository — хранилище метаданных blob-записей.
// Отсутствие записи сообщается через repository.ErrNotFound,
// нарушение уникальности (hash, size) живой записи — через repository.ErrConflict.
type BlobRepository interface {
	// FindByID возвращает запись по ID, включая мягко удалённые.
	FindByID(ctx context.Context, id string) (*model.Blob, error)
	// FindByHashAndSize возвращает запись с тем же содержимым;
	// живая запись предпочтительнее удалённой.
	FindByHashAndSize(ctx context.Context, hash string, size int64) (*model.Blob, error)
	// Save создаёт запись, назначая ID и CreatedAt.
	Save(ctx context.Context, params model.NewBlobParams) (*model.Blob, error)
	// Update сохраняет LastUsedAt и DeletedAt.
	Update(ctx context.Context, blob *model.Blob) (*model.Blob, error)
	// Delete удаляет запись физически.
	Delete(ctx context.Context, id string) error
}

// ObjectStorage — хранилище байтов по ключу.
type ObjectStorage interface {
	// BuildKeyFromHash выводит ключ объекта из SHA-256 и MIME-типа.
	BuildKeyFromHash(hash, mime string) string
	PutObject(ctx context.Context, key string, body []byte, mime string) error
	// GetObjectStream открывает объект; вызывающий обязан закрыть поток.
	GetObjectStream(ctx context.Context, key string) (io.ReadCloser, error)
	DeleteObject(ctx context.Context, key string) error
}
