// Пакет storage — общие для всех бэкендов объектного хранилища
// правила: формат ключа объекта и ошибки.
package storage

import (
	"errors"
	"mime"
	"strings"
)

// KeyPrefix — префикс всех ключей контент-адресуемых объектов.
const KeyPrefix = "objects/sha256/"

// ErrObjectNotFound — объект с указанным ключом отсутствует в хранилище.
var ErrObjectNotFound = errors.New("объект не найден")

// BuildKey формирует ключ объекта по SHA-256 и MIME-типу.
// Формат: objects/sha256/<hash[0:2]>/<hash><ext>, где ext — "." + подтип
// MIME (без параметров, в нижнем регистре) или пусто, если подтип
// отсутствует или содержит символы вне [a-z0-9.+-].
//
// Пример: ("abcd…", "image/png") → objects/sha256/ab/abcd….png
func BuildKey(hash, mimeType string) string {
	shard := hash
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return KeyPrefix + shard + "/" + hash + extension(mimeType)
}

// extension возвращает расширение ключа по MIME-типу.
// Подтип, способный изменить путь ключа, отбрасывается.
func extension(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil && !errors.Is(err, mime.ErrInvalidMediaParameter) {
		return ""
	}
	_, subtype, ok := strings.Cut(mediaType, "/")
	if !ok || !validSubtype(subtype) {
		return ""
	}
	return "." + subtype
}

// validSubtype — подтип из [a-z0-9.+-], не "." и не "..".
func validSubtype(subtype string) bool {
	if subtype == "" || subtype == "." || subtype == ".." {
		return false
	}
	for _, c := range subtype {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '.', c == '+', c == '-':
		default:
			return false
		}
	}
	return true
}
