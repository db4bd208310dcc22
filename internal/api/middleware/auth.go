// auth.go — middleware аутентификации по bearer-токену.
// Проверка токена делегируется identity.Verifier (remote или jwks);
// пользователь помещается в контекст запроса для обработчиков.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/fileattach/internal/api/errors"
	"github.com/bigkaa/fileattach/internal/domain/model"
	"github.com/bigkaa/fileattach/internal/identity"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyIdentity — проверенный пользователь в контексте запроса.
	ContextKeyIdentity contextKey = "identity"
)

// Auth возвращает middleware, требующий валидный bearer-токен.
//
// Отказ верификатора (ErrMissingCredential, ErrInvalidCredential) — 401.
// Любая другая ошибка — внутренняя: 500 без подробностей, запрос прерывается.
func Auth(verifier identity.Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "auth"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			id, err := verifier.Verify(r.Context(), token)
			switch {
			case err == nil:
			case errors.Is(err, identity.ErrMissingCredential):
				apierrors.Unauthorized(w, "Отсутствует bearer-токен")
				return
			case errors.Is(err, identity.ErrInvalidCredential):
				logger.Debug("Токен отклонён",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			default:
				logger.Error("Ошибка проверки токена",
					slog.String("error", err.Error()),
					slog.String("request_id", RequestIDFromContext(r.Context())),
				)
				apierrors.InternalError(w)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyIdentity, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken извлекает токен из заголовка Authorization.
// Отсутствующий заголовок даёт пустой токен (его отклонит верификатор),
// заголовок с другой схемой — ok=false.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", true
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// --- Context helpers ---

// IdentityFromContext извлекает пользователя из контекста запроса.
// Возвращает nil, если запрос не прошёл Auth.
func IdentityFromContext(ctx context.Context) *model.Identity {
	id, _ := ctx.Value(ContextKeyIdentity).(*model.Identity)
	return id
}

// SubjectFromContext возвращает id пользователя из контекста.
// Возвращает пустую строку, если пользователь не найден.
func SubjectFromContext(ctx context.Context) string {
	id := IdentityFromContext(ctx)
	if id == nil {
		return ""
	}
	return id.ID
}

// WithIdentity помещает пользователя в контекст.
func WithIdentity(ctx context.Context, id *model.Identity) context.Context {
	return context.WithValue(ctx, ContextKeyIdentity, id)
}
