// Пакет identity — проверка bearer-токенов и получение пользователя.
//
// Режимы:
//   - RemoteVerifier — обмен токена на пользователя во внешнем identity-сервисе
//     (GoTrue-совместимый GET /auth/v1/user);
//   - JWKSVerifier — локальная проверка подписи RS256 по JWKS;
//   - CachedVerifier — LRU-кэш успешных проверок поверх любого Verifier.
package identity

import (
	"context"
	"errors"

	"github.com/bigkaa/fileattach/internal/domain/model"
)

// Ошибки проверки. Любая другая ошибка Verify — внутренний сбой, а не отказ в доступе.
var (
	// ErrMissingCredential — токен не передан.
	ErrMissingCredential = errors.New("отсутствуют учётные данные")
	// ErrInvalidCredential — токен отклонён или его не удалось проверить.
	ErrInvalidCredential = errors.New("недействительные учётные данные")
)

// Verifier обменивает bearer-токен на пользователя.
type Verifier interface {
	Verify(ctx context.Context, token string) (*model.Identity, error)
}
