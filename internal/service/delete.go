// delete.go — мягкое и физическое удаление blob.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bigkaa/goartstore/blobstore/internal/api/middleware"
	"github.com/bigkaa/goartstore/blobstore/internal/domain/model"
)

// DeleteService — сервис удаления blob.
type DeleteService struct {
	repo    BlobRepository
	storage ObjectStorage
	now     func() time.Time
	logger  *slog.Logger
}

// NewDeleteService создаёт сервис удаления.
func NewDeleteService(repo BlobRepository, storage ObjectStorage, logger *slog.Logger) *DeleteService {
	return &DeleteService{
		repo:    repo,
		storage: storage,
		now:     utcNow,
		logger:  logger.With(slog.String("component", "delete_service")),
	}
}

// Delete удаляет blob.
//
// force=true: удаление объекта, затем записи; возвращается состояние до удаления.
// Ошибка на любом шаге возвращается без компенсации.
// force=false: мягкое удаление; для уже удалённой записи Update не вызывается.
// Мягко удалённые записи находятся и могут быть удалены физически.
func (s *DeleteService) Delete(ctx context.Context, id string, force bool) (model.BlobProps, error) {
	op := "soft_delete"
	if force {
		op = "hard_delete"
	}

	props, err := s.delete(ctx, id, force)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues(op, resultLabel(err)).Inc()
		return model.BlobProps{}, err
	}
	middleware.OperationsTotal.WithLabelValues(op, "success").Inc()
	return props, nil
}

func (s *DeleteService) delete(ctx context.Context, id string, force bool) (model.BlobProps, error) {
	blob, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return model.BlobProps{}, mapRepoError("поиск blob", err)
	}

	if force {
		snapshot := blob.Snapshot()
		if err := s.storage.DeleteObject(ctx, blob.StorageKey()); err != nil {
			return model.BlobProps{}, fmt.Errorf("удаление объекта %s: %w", blob.StorageKey(), err)
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			s.logger.Error("Объект удалён, запись метаданных осталась",
				slog.String("blob_id", id),
				slog.String("storage_key", snapshot.StorageKey),
				slog.String("error", err.Error()),
			)
			return model.BlobProps{}, mapRepoError("удаление записи", err)
		}

		s.logger.Info("Blob удалён физически",
			slog.String("blob_id", id),
			subjectAttr(ctx),
			slog.String("hash", snapshot.Hash),
			slog.Int64("size", snapshot.Size),
		)
		return snapshot, nil
	}

	if blob.IsDeleted() {
		return blob.Snapshot(), nil
	}

	blob.SoftDelete(s.now())
	updated, err := s.repo.Update(ctx, blob)
	if err != nil {
		return model.BlobProps{}, mapRepoError("мягкое удаление", err)
	}

	s.logger.Info("Blob мягко удалён",
		slog.String("blob_id", id),
		subjectAttr(ctx),
		slog.String("hash", updated.Hash()),
		slog.Int64("size", updated.Size()),
	)
	return updated.Snapshot(), nil
}

// resultLabel — значение лейбла result для bs_operations_total.
func resultLabel(err error) string {
	if errors.Is(err, ErrNotFound) {
		return "not_found"
	}
	return "error"
}
