package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bigkaa/goartstore/blobstore/internal/domain/model"
	"github.com/bigkaa/goartstore/blobstore/internal/repository"
	"github.com/bigkaa/goartstore/blobstore/internal/storage"
)

// callLog — общий журнал вызовов портов для проверки порядка операций.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(call string) int {
	n := 0
	for _, c := range l.list() {
		if c == call {
			n++
		}
	}
	return n
}

// mockBlobRepo — mock хранилища метаданных.
// Незаданные функции ведут себя как пустое хранилище.
type mockBlobRepo struct {
	log *callLog

	findByIDFn          func(ctx context.Context, id string) (*model.Blob, error)
	findByHashAndSizeFn func(ctx context.Context, hash string, size int64) (*model.Blob, error)
	saveFn              func(ctx context.Context, params model.NewBlobParams) (*model.Blob, error)
	updateFn            func(ctx context.Context, blob *model.Blob) (*model.Blob, error)
	deleteFn            func(ctx context.Context, id string) error

	saved   []model.NewBlobParams
	updated []model.BlobProps
}

func (m *mockBlobRepo) FindByID(ctx context.Context, id string) (*model.Blob, error) {
	m.log.add("repo.FindByID")
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockBlobRepo) FindByHashAndSize(ctx context.Context, hash string, size int64) (*model.Blob, error) {
	m.log.add("repo.FindByHashAndSize")
	if m.findByHashAndSizeFn != nil {
		return m.findByHashAndSizeFn(ctx, hash, size)
	}
	return nil, repository.ErrNotFound
}

func (m *mockBlobRepo) Save(ctx context.Context, params model.NewBlobParams) (*model.Blob, error) {
	m.log.add("repo.Save")
	m.saved = append(m.saved, params)
	if m.saveFn != nil {
		return m.saveFn(ctx, params)
	}
	return model.RestoreBlob(model.BlobProps{
		ID:         "11111111-1111-1111-1111-111111111111",
		Hash:       params.Hash,
		Size:       params.Size,
		Mime:       params.Mime,
		StorageKey: params.StorageKey,
		CreatedAt:  testNow.Add(-time.Second),
	}), nil
}

func (m *mockBlobRepo) Update(ctx context.Context, blob *model.Blob) (*model.Blob, error) {
	m.log.add("repo.Update")
	m.updated = append(m.updated, blob.Snapshot())
	if m.updateFn != nil {
		return m.updateFn(ctx, blob)
	}
	return model.RestoreBlob(blob.Snapshot()), nil
}

func (m *mockBlobRepo) Delete(ctx context.Context, id string) error {
	m.log.add("repo.Delete")
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockStorage — mock объектного хранилища.
type mockStorage struct {
	log *callLog

	putObjectFn       func(ctx context.Context, key string, body []byte, mime string) error
	getObjectStreamFn func(ctx context.Context, key string) (io.ReadCloser, error)
	deleteObjectFn    func(ctx context.Context, key string) error

	putKeys    []string
	putBodies  [][]byte
	getKeys    []string
	deleteKeys []string
}

func (m *mockStorage) BuildKeyFromHash(hash, mime string) string {
	return storage.BuildKey(hash, mime)
}

func (m *mockStorage) PutObject(ctx context.Context, key string, body []byte, mime string) error {
	m.log.add("storage.PutObject")
	m.putKeys = append(m.putKeys, key)
	m.putBodies = append(m.putBodies, body)
	if m.putObjectFn != nil {
		return m.putObjectFn(ctx, key, body, mime)
	}
	return nil
}

func (m *mockStorage) GetObjectStream(ctx context.Context, key string) (io.ReadCloser, error) {
	m.log.add("storage.GetObjectStream")
	m.getKeys = append(m.getKeys, key)
	if m.getObjectStreamFn != nil {
		return m.getObjectStreamFn(ctx, key)
	}
	return io.NopCloser(strings.NewReader("content")), nil
}

func (m *mockStorage) DeleteObject(ctx context.Context, key string) error {
	m.log.add("storage.DeleteObject")
	m.deleteKeys = append(m.deleteKeys, key)
	if m.deleteObjectFn != nil {
		return m.deleteObjectFn(ctx, key)
	}
	return nil
}

// --- Общие фикстуры ---

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newMocks() (*mockBlobRepo, *mockStorage, *callLog) {
	log := &callLog{}
	return &mockBlobRepo{log: log}, &mockStorage{log: log}, log
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// liveBlob возвращает живую запись с заданным содержимым.
func liveBlob(id, hash string, size int64) *model.Blob {
	return model.RestoreBlob(model.BlobProps{
		ID:         id,
		Hash:       hash,
		Size:       size,
		Mime:       "text/plain",
		StorageKey: storage.BuildKey(hash, "text/plain"),
		CreatedAt:  testNow.Add(-time.Hour),
	})
}

// deletedBlob возвращает мягко удалённую запись.
func deletedBlob(id, hash string, size int64, deletedAt time.Time) *model.Blob {
	b := liveBlob(id, hash, size)
	b.SoftDelete(deletedAt)
	return b
}
