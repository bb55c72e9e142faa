// query.go — чтение метаданных и содержимого blob.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bigkaa/goartstore/blobstore/internal/api/middleware"
	"github.com/bigkaa/goartstore/blobstore/internal/domain/model"
)

// ContentResult — метаданные и поток содержимого.
// Вызывающий обязан закрыть Body.
type ContentResult struct {
	Blob model.BlobProps
	Body io.ReadCloser
}

// QueryService — сервис чтения blob.
type QueryService struct {
	repo    BlobRepository
	storage ObjectStorage
	now     func() time.Time
	logger  *slog.Logger
}

// NewQueryService создаёт сервис чтения.
func NewQueryService(repo BlobRepository, storage ObjectStorage, logger *slog.Logger) *QueryService {
	return &QueryService{
		repo:    repo,
		storage: storage,
		now:     utcNow,
		logger:  logger.With(slog.String("component", "query_service")),
	}
}

// GetInfo возвращает метаданные blob и фиксирует время использования.
func (s *QueryService) GetInfo(ctx context.Context, id string) (model.BlobProps, error) {
	blob, err := s.touch(ctx, id)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("get_info", resultLabel(err)).Inc()
		return model.BlobProps{}, err
	}
	middleware.OperationsTotal.WithLabelValues("get_info", "success").Inc()
	return blob.Snapshot(), nil
}

// GetContent возвращает метаданные и открытый поток содержимого.
// Снимок метаданных берётся после обновления времени использования.
func (s *QueryService) GetContent(ctx context.Context, id string) (*ContentResult, error) {
	blob, err := s.touch(ctx, id)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("get_content", resultLabel(err)).Inc()
		return nil, err
	}

	body, err := s.storage.GetObjectStream(ctx, blob.StorageKey())
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("get_content", "error").Inc()
		return nil, fmt.Errorf("чтение объекта %s: %w", blob.StorageKey(), err)
	}

	middleware.OperationsTotal.WithLabelValues("get_content", "success").Inc()
	return &ContentResult{Blob: blob.Snapshot(), Body: body}, nil
}

// touch находит живую запись и обновляет время использования.
func (s *QueryService) touch(ctx context.Context, id string) (*model.Blob, error) {
	blob, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoError("поиск blob", err)
	}
	if blob.IsDeleted() {
		s.logger.Debug("Запрос мягко удалённого blob", slog.String("blob_id", id))
		return nil, ErrNotFound
	}

	blob.MarkUsed(s.now())
	updated, err := s.repo.Update(ctx, blob)
	if err != nil {
		return nil, mapRepoError("обновление времени использования", err)
	}
	return updated, nil
}
