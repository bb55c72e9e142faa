// blobs.go — HTTP handlers операций над blob:
// загрузка, метаданные, содержимое, удаление.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/bigkaa/goartstore/blobstore/internal/api/errors"
	"github.com/bigkaa/goartstore/blobstore/internal/domain/model"
	"github.com/bigkaa/goartstore/blobstore/internal/service"
)

// timestampLayout — RFC 3339 с миллисекундами в UTC.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// multipartOverhead — запас на заголовки multipart сверх лимита файла.
const multipartOverhead = 1 << 20

// multipartMemory — часть формы, удерживаемая в памяти; остальное уходит во временные файлы.
const multipartMemory = 32 << 20

// BlobUploader — загрузка blob.
type BlobUploader interface {
	Upload(ctx context.Context, params service.UploadParams) (*service.UploadResult, error)
}

// BlobReader — чтение метаданных и содержимого blob.
type BlobReader interface {
	GetInfo(ctx context.Context, id string) (model.BlobProps, error)
	GetContent(ctx context.Context, id string) (*service.ContentResult, error)
}

// BlobDeleter — удаление blob.
type BlobDeleter interface {
	Delete(ctx context.Context, id string, force bool) (model.BlobProps, error)
}

// BlobsHandler — обработчик endpoints /v1/blobs.
type BlobsHandler struct {
	uploader      BlobUploader
	reader        BlobReader
	deleter       BlobDeleter
	maxUploadSize int64
	logger        *slog.Logger
}

// NewBlobsHandler создаёт обработчик blob endpoints.
// maxUploadSize — лимит размера файла в байтах (BS_MAX_UPLOAD_SIZE).
func NewBlobsHandler(
	uploader BlobUploader,
	reader BlobReader,
	deleter BlobDeleter,
	maxUploadSize int64,
	logger *slog.Logger,
) *BlobsHandler {
	return &BlobsHandler{
		uploader:      uploader,
		reader:        reader,
		deleter:       deleter,
		maxUploadSize: maxUploadSize,
		logger:        logger.With(slog.String("component", "blobs_handler")),
	}
}

// blobResponse — метаданные blob в ответах API.
// Необязательные поля сериализуются как явный null.
type blobResponse struct {
	ID         string  `json:"id"`
	Hash       string  `json:"hash"`
	Size       int64   `json:"size"`
	Mime       string  `json:"mime"`
	StorageKey string  `json:"storageKey"`
	CreatedAt  string  `json:"createdAt"`
	LastUsedAt *string `json:"lastUsedAt"`
	DeletedAt  *string `json:"deletedAt"`
}

func toBlobResponse(p model.BlobProps) blobResponse {
	return blobResponse{
		ID:         p.ID,
		Hash:       p.Hash,
		Size:       p.Size,
		Mime:       p.Mime,
		StorageKey: p.StorageKey,
		CreatedAt:  formatTime(p.CreatedAt),
		LastUsedAt: formatOptionalTime(p.LastUsedAt),
		DeletedAt:  formatOptionalTime(p.DeletedAt),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// UploadBlob обрабатывает POST /v1/blobs.
// Multipart form: file (обязательно). MIME берётся из заголовка части.
func (h *BlobsHandler) UploadBlob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.FileTooLarge(w, fmt.Sprintf("Размер запроса превышает лимит %d байт", h.maxUploadSize))
			return
		}
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadSize {
		apierrors.FileTooLarge(w, fmt.Sprintf("Размер файла %d превышает лимит %d байт", header.Size, h.maxUploadSize))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Ошибка чтения загружаемого файла", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка чтения файла")
		return
	}

	result, err := h.uploader.Upload(r.Context(), service.UploadParams{
		Data: data,
		Size: header.Size,
		Mime: header.Header.Get("Content-Type"),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBlobResponse(result.Blob))
}

// GetBlobInfo обрабатывает GET /v1/blobs/{id}.
func (h *BlobsHandler) GetBlobInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := bindBlobID(w, r)
	if !ok {
		return
	}

	info, err := h.reader.GetInfo(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBlobResponse(info))
}

// GetBlobContent обрабатывает GET /v1/blobs/{id}/content.
// Тело передаётся потоком с MIME-типом blob.
func (h *BlobsHandler) GetBlobContent(w http.ResponseWriter, r *http.Request) {
	id, ok := bindBlobID(w, r)
	if !ok {
		return
	}

	content, err := h.reader.GetContent(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	defer content.Body.Close()

	w.Header().Set("Content-Type", content.Blob.Mime)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", content.Blob.ID))
	w.Header().Set("Content-Length", strconv.FormatInt(content.Blob.Size, 10))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, content.Body); err != nil {
		// Заголовки уже отправлены — остаётся только залогировать
		h.logger.Warn("Передача содержимого прервана",
			slog.String("blob_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// DeleteBlob обрабатывает DELETE /v1/blobs/{id}?force=true|false.
// Только значение "true" (без учёта регистра) включает физическое удаление.
func (h *BlobsHandler) DeleteBlob(w http.ResponseWriter, r *http.Request) {
	id, ok := bindBlobID(w, r)
	if !ok {
		return
	}

	force := strings.EqualFold(r.URL.Query().Get("force"), "true")

	info, err := h.deleter.Delete(r.Context(), id, force)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBlobResponse(info))
}

// bindBlobID извлекает {id} из пути как UUID. При ошибке пишет 400.
func bindBlobID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{
			ParamLocation: runtime.ParamLocationPath,
			Explode:       false,
			Required:      true,
		})
	if err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный параметр id: %s", err.Error()))
		return "", false
	}
	return id.String(), true
}

// writeServiceError переводит ошибки сервисного слоя в HTTP-ответ.
func (h *BlobsHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Blob не найден")
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, "Blob с таким содержимым уже создан параллельным запросом")
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	default:
		h.logger.Error("Ошибка обработки запроса", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка")
	}
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
