// Пакет service — бизнес-логика Blob Store.
// upload.go — загрузка blob с дедупликацией по (SHA-256, размер).
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/blobstore/internal/api/middleware"
	"github.com/bigkaa/goartstore/blobstore/internal/domain/model"
	"github.com/bigkaa/goartstore/blobstore/internal/repository"
)

// UploadParams — параметры загрузки.
type UploadParams struct {
	// Data — содержимое целиком
	Data []byte
	// Size — заявленный клиентом размер; должен совпадать с len(Data)
	Size int64
	// Mime — заявленный MIME-тип (пусто — application/octet-stream)
	Mime string
}

// UploadResult — результат загрузки.
type UploadResult struct {
	Blob model.BlobProps
	// Deduplicated — true, если использована существующая запись и байты не записывались
	Deduplicated bool
}

// UploadService — сервис загрузки blob.
type UploadService struct {
	repo    BlobRepository
	storage ObjectStorage
	now     func() time.Time
	logger  *slog.Logger
}

// NewUploadService создаёт сервис загрузки.
func NewUploadService(repo BlobRepository, storage ObjectStorage, logger *slog.Logger) *UploadService {
	return &UploadService{
		repo:    repo,
		storage: storage,
		now:     utcNow,
		logger:  logger.With(slog.String("component", "upload_service")),
	}
}

// Upload сохраняет blob.
//
// Поток:
//  1. SHA-256 содержимого
//  2. Поиск живой записи с тем же (hash, size) → MarkUsed + Update, байты не пишутся
//  3. Иначе PutObject, затем Save
//
// Запись в хранилище всегда предшествует созданию записи метаданных.
// Объект, оставшийся после ошибки Save, не удаляется.
func (s *UploadService) Upload(ctx context.Context, params UploadParams) (*UploadResult, error) {
	result, err := s.upload(ctx, params)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("upload", "error").Inc()
		return nil, err
	}
	middleware.OperationsTotal.WithLabelValues("upload", "success").Inc()
	return result, nil
}

func (s *UploadService) upload(ctx context.Context, params UploadParams) (*UploadResult, error) {
	size := int64(len(params.Data))
	if params.Size != size {
		return nil, fmt.Errorf("%w: заявленный размер %d не совпадает с полученным %d",
			ErrValidation, params.Size, size)
	}

	mime := strings.TrimSpace(params.Mime)
	if mime == "" {
		mime = model.DefaultMime
	}

	sum := sha256.Sum256(params.Data)
	hash := hex.EncodeToString(sum[:])

	existing, err := s.repo.FindByHashAndSize(ctx, hash, size)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, mapRepoError("поиск дубликата", err)
	}

	if existing != nil && !existing.IsDeleted() {
		existing.MarkUsed(s.now())
		updated, err := s.repo.Update(ctx, existing)
		if err != nil {
			return nil, mapRepoError("обновление времени использования", err)
		}

		middleware.DedupHitsTotal.Inc()
		s.logger.Info("Загрузка обслужена дедупликацией",
			slog.String("blob_id", updated.ID()),
			subjectAttr(ctx),
			slog.String("hash", hash),
			slog.Int64("size", size),
		)
		return &UploadResult{Blob: updated.Snapshot(), Deduplicated: true}, nil
	}

	key := s.storage.BuildKeyFromHash(hash, mime)
	if err := s.storage.PutObject(ctx, key, params.Data, mime); err != nil {
		return nil, fmt.Errorf("запись объекта %s: %w", key, err)
	}
	middleware.StoredBytesTotal.Add(float64(size))

	created, err := s.repo.Save(ctx, model.NewBlobParams{
		Hash:       hash,
		Size:       size,
		Mime:       mime,
		StorageKey: key,
	})
	if err != nil {
		s.logger.Warn("Объект записан, но запись метаданных не создана",
			slog.String("storage_key", key),
			slog.String("error", err.Error()),
		)
		return nil, mapRepoError("сохранение метаданных", err)
	}

	s.logger.Info("Blob создан",
		slog.String("blob_id", created.ID()),
		subjectAttr(ctx),
		slog.String("hash", hash),
		slog.Int64("size", size),
		slog.String("mime", mime),
	)
	return &UploadResult{Blob: created.Snapshot(), Deduplicated: false}, nil
}

// subjectAttr — субъект JWT из контекста запроса; пусто без JWT-аутентификации.
func subjectAttr(ctx context.Context) slog.Attr {
	return slog.String("subject", middleware.SubjectFromContext(ctx))
}

func utcNow() time.Time {
	return time.Now().UTC()
}
