// apikey.go — аутентификация /v1/* по статическому ключу в заголовке X-API-KEY.
package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/blobstore/internal/api/errors"
)

// HeaderAPIKey — заголовок со статическим ключом.
const HeaderAPIKey = "X-API-KEY"

// APIKeyAuth возвращает middleware, пропускающий только запросы
// с заголовком X-API-KEY, равным apiKey. Иначе — 401.
func APIKeyAuth(apiKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	expected := []byte(apiKey)
	logger = logger.With(slog.String("component", "apikey_auth"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(HeaderAPIKey)
			if provided == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок X-API-KEY")
				return
			}
			if subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
				logger.Debug("Неверный API-ключ", slog.String("remote_addr", r.RemoteAddr))
				apierrors.Unauthorized(w, "Неверный X-API-KEY")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
