package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/blobstore/internal/domain/model"
)

// MemoryBlobRepo — хранилище метаданных в памяти процесса.
// Соблюдает те же правила, что и PostgreSQL-реализация:
// уникальность живой записи по (hash, size) и порядок выбора дубликата.
type MemoryBlobRepo struct {
	mu    sync.RWMutex
	blobs map[string]model.BlobProps
	now   func() time.Time
}

// NewMemoryBlobRepository создаёт пустое in-memory хранилище.
func NewMemoryBlobRepository() *MemoryBlobRepo {
	return &MemoryBlobRepo{
		blobs: make(map[string]model.BlobProps),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// FindByID возвращает запись по ID или ErrNotFound.
func (r *MemoryBlobRepo) FindByID(_ context.Context, id string) (*model.Blob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.blobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return model.RestoreBlob(p), nil
}

// FindByHashAndSize возвращает запись с тем же содержимым или ErrNotFound.
func (r *MemoryBlobRepo) FindByHashAndSize(_ context.Context, hash string, size int64) (*model.Blob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *model.BlobProps
	for _, p := range r.blobs {
		if p.Hash != hash || p.Size != size {
			continue
		}
		if best == nil || preferred(p, *best) {
			candidate := p
			best = &candidate
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return model.RestoreBlob(*best), nil
}

// Save создаёт запись с новым UUID.
func (r *MemoryBlobRepo) Save(_ context.Context, params model.NewBlobParams) (*model.Blob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.blobs {
		if p.Hash == params.Hash && p.Size == params.Size && p.DeletedAt == nil {
			return nil, ErrConflict
		}
	}

	p := model.BlobProps{
		ID:         uuid.New().String(),
		Hash:       params.Hash,
		Size:       params.Size,
		Mime:       params.Mime,
		StorageKey: params.StorageKey,
		CreatedAt:  r.now(),
	}
	r.blobs[p.ID] = p
	return model.RestoreBlob(p), nil
}

// Update сохраняет last_used_at и deleted_at.
func (r *MemoryBlobRepo) Update(_ context.Context, blob *model.Blob) (*model.Blob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.blobs[blob.ID()]
	if !ok {
		return nil, ErrNotFound
	}
	p.LastUsedAt = blob.LastUsedAt()
	p.DeletedAt = blob.DeletedAt()
	r.blobs[p.ID] = p
	return model.RestoreBlob(p), nil
}

// Delete удаляет запись.
func (r *MemoryBlobRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.blobs[id]; !ok {
		return ErrNotFound
	}
	delete(r.blobs, id)
	return nil
}

// CheckReady — in-memory хранилище всегда готово.
func (r *MemoryBlobRepo) CheckReady() (status string, message string) {
	return "ok", "in-memory хранилище"
}

// preferred — true, если a предпочтительнее b при выборе дубликата:
// живая запись раньше удалённой, затем более новая.
func preferred(a, b model.BlobProps) bool {
	aLive, bLive := a.DeletedAt == nil, b.DeletedAt == nil
	if aLive != bLive {
		return aLive
	}
	return a.CreatedAt.After(b.CreatedAt)
}
