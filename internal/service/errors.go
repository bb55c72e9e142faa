// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"

	"github.com/bigkaa/goartstore/blobstore/internal/repository"
)

var (
	// ErrNotFound — blob не найден или мягко удалён.
	ErrNotFound = errors.New("blob не найден")
	// ErrConflict — живая запись с тем же содержимым уже существует.
	ErrConflict = errors.New("конфликт — запись с таким содержимым уже существует")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
)

// mapRepoError переводит ошибки репозитория в ошибки сервисного слоя.
// Прочие ошибки оборачиваются с контекстом операции.
func mapRepoError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%s: %w: %w", op, ErrConflict, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
