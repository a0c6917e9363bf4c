// auth.go — middleware аутентификации по подписанному токену.
// Токен приходит в query-параметре token в формате <timestamp>.<signature>,
// где signature — hex HMAC-SHA256 от строки timestamp на общем секрете.
// Включается только на операциях записи; чтение, health и metrics — без
// аутентификации.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/arturkryukov/media-server/internal/api/errors"
	"github.com/arturkryukov/media-server/internal/token"
)

// TokenAuth — middleware проверки подписанного токена.
type TokenAuth struct {
	verifier *token.Verifier
	logger   *slog.Logger
}

// NewTokenAuth создаёт middleware проверки токена.
func NewTokenAuth(verifier *token.Verifier, logger *slog.Logger) *TokenAuth {
	return &TokenAuth{
		verifier: verifier,
		logger:   logger.With(slog.String("component", "token_auth")),
	}
}

// Middleware возвращает HTTP middleware для проверки токена.
// Извлекает токен из query-параметра token, проверяет формат, срок
// действия и подпись — в этом порядке. Каждая категория отказа получает
// свой код в теле ответа; HTTP-статус всегда 401.
func (a *TokenAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := a.verifier.Verify(r.URL.Query().Get("token"))
			if err != nil {
				a.logger.Debug("Токен не прошёл проверку",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("path", r.URL.Path),
				)
				switch {
				case errors.Is(err, token.ErrMissing):
					apierrors.TokenMissing(w, "Отсутствует параметр token")
				case errors.Is(err, token.ErrMalformed):
					apierrors.TokenMalformed(w, "Неверный формат токена: ожидается <timestamp>.<signature>")
				case errors.Is(err, token.ErrExpired):
					apierrors.TokenExpired(w, "Срок действия токена истёк")
				case errors.Is(err, token.ErrInvalidSignature):
					apierrors.TokenInvalidSignature(w, "Неверная подпись токена")
				default:
					apierrors.Unauthorized(w, "Токен не прошёл проверку")
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
