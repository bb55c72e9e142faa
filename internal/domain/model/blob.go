// Пакет model — доменные модели Blob Store.
// Blob — метаданные одного хранимого объекта; единственное место,
// где соблюдаются инварианты жизненного цикла (soft delete, время использования).
package model

import "time"

// DefaultMime — MIME-тип по умолчанию, если клиент его не указал.
const DefaultMime = "application/octet-stream"

// BlobProps — снимок состояния Blob (persistence и DTO).
type BlobProps struct {
	// ID — UUID, назначается хранилищем метаданных при создании
	ID string
	// Hash — SHA-256 содержимого, hex в нижнем регистре
	Hash string
	// Size — размер в байтах
	Size int64
	// Mime — заявленный клиентом MIME-тип
	Mime string
	// StorageKey — ключ объекта в хранилище, выводится из (Hash, Mime)
	StorageKey string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// LastUsedAt — время последнего чтения или повторной загрузки
	LastUsedAt *time.Time
	// DeletedAt — время мягкого удаления (nil — запись активна)
	DeletedAt *time.Time
}

// NewBlobParams — параметры создания новой записи.
// ID и CreatedAt назначает хранилище метаданных.
type NewBlobParams struct {
	Hash       string
	Size       int64
	Mime       string
	StorageKey string
}

// Blob — метаданные хранимого объекта. Поля изменяются только методами.
type Blob struct {
	props BlobProps
}

// RestoreBlob восстанавливает Blob из сохранённого состояния.
func RestoreBlob(props BlobProps) *Blob {
	props.LastUsedAt = copyTime(props.LastUsedAt)
	props.DeletedAt = copyTime(props.DeletedAt)
	return &Blob{props: props}
}

func (b *Blob) ID() string { return b.props.ID }
func (b *Blob) Hash() string { return b.props.Hash }
func (b *Blob) Size() int64 { return b.props.Size }
func (b *Blob) Mime() string { return b.props.Mime }
func (b *Blob) StorageKey() string { return b.props.StorageKey }
func (b *Blob) CreatedAt() time.Time { return b.props.CreatedAt }
func (b *Blob) LastUsedAt() *time.Time { return copyTime(b.props.LastUsedAt) }
func (b *Blob) DeletedAt() *time.Time { return copyTime(b.props.DeletedAt) }

// MarkUsed фиксирует время использования.
func (b *Blob) MarkUsed(now time.Time) {
	b.props.LastUsedAt = &now
}

// SoftDelete помечает запись удалённой. Повторный вызов не меняет
// первоначальное время удаления.
func (b *Blob) SoftDelete(now time.Time) {
	if b.props.DeletedAt != nil {
		return
	}
	b.props.DeletedAt = &now
}

// IsDeleted — true, если запись мягко удалена.
func (b *Blob) IsDeleted() bool {
	return b.props.DeletedAt != nil
}

// Snapshot возвращает копию состояния.
func (b *Blob) Snapshot() BlobProps {
	s := b.props
	s.LastUsedAt = copyTime(s.LastUsedAt)
	s.DeletedAt = copyTime(s.DeletedAt)
	return s
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
