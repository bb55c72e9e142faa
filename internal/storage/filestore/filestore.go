// Пакет filestore — объектное хранилище на локальной файловой системе.
// Ключ объекта отображается в относительный путь внутри dataDir.
package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/blobstore/internal/storage"
)

// FileStore — объекты как файлы на диске.
type FileStore struct {
	// dataDir — корневая директория хранения (BS_DATA_DIR)
	dataDir string
}

// New создаёт новый FileStore. Проверяет и создаёт директорию
// если она не существует.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	return &FileStore{dataDir: dataDir}, nil
}

// BuildKeyFromHash формирует ключ объекта по SHA-256 и MIME-типу.
func (fs *FileStore) BuildKeyFromHash(hash, mime string) string {
	return storage.BuildKey(hash, mime)
}

// PutObject записывает объект по ключу. Существующий объект перезаписывается.
//
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (fs *FileStore) PutObject(ctx context.Context, key string, body []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath, err := fs.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return fmt.Errorf("ошибка создания директории для %s: %w", key, err)
	}

	// Уникальное имя temp файла: параллельные загрузки одинакового содержимого
	tmpPath := fullPath + "." + uuid.New().String()[:8] + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(body); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарный rename
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// GetObjectStream открывает объект для чтения.
// Вызывающий код обязан закрыть ReadCloser.
func (fs *FileStore) GetObjectStream(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullPath, err := fs.resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", key, storage.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", key, err)
	}

	return f, nil
}

// DeleteObject удаляет объект.
// Возвращает nil если объект уже не существует.
func (fs *FileStore) DeleteObject(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath, err := fs.resolve(key)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", key, err)
	}
	return nil
}

// CheckReady проверяет доступность директории данных.
// Возвращает статус ("ok", "fail") и сообщение.
func (fs *FileStore) CheckReady() (status string, message string) {
	info, err := os.Stat(fs.dataDir)
	if err != nil {
		return "fail", fmt.Sprintf("директория данных недоступна: %v", err)
	}
	if !info.IsDir() {
		return "fail", fmt.Sprintf("%s не является директорией", fs.dataDir)
	}
	return "ok", "директория данных доступна"
}

// DataDir возвращает путь к директории данных.
func (fs *FileStore) DataDir() string {
	return fs.dataDir
}

// resolve переводит ключ в абсолютный путь внутри dataDir.
// Ключ с сегментом ".." или обратным слешем отклоняется целиком,
// даже если путь остаётся внутри dataDir.
func (fs *FileStore) resolve(key string) (string, error) {
	if key == "" || strings.ContainsRune(key, '\\') || slices.Contains(strings.Split(key, "/"), "..") {
		return "", fmt.Errorf("недопустимый ключ объекта %q", key)
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("недопустимый ключ объекта %q", key)
	}
	return filepath.Join(fs.dataDir, clean), nil
}
