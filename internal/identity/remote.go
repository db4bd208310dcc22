package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/fileattach/internal/domain/model"
)

// userPath — endpoint identity-сервиса, возвращающий пользователя по токену.
const userPath = "/auth/v1/user"

// maxUserResponseSize — ограничение на размер ответа identity-сервиса.
const maxUserResponseSize = 1 << 20

// RemoteVerifier — проверка токена запросом к identity-сервису.
// Каждый вызов ограничен таймаутом; повторов нет.
type RemoteVerifier struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewRemoteVerifier создаёт RemoteVerifier.
// baseURL — корень identity-сервиса (https://project.example.com),
// apiKey — публичный ключ проекта (заголовок apikey),
// timeout — таймаут одного запроса.
func NewRemoteVerifier(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *RemoteVerifier {
	return &RemoteVerifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "identity_remote")),
	}
}

// userResponse — интересующие поля ответа /auth/v1/user.
type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Verify запрашивает пользователя по токену.
//
// 200 — пользователь; 401/403/прочие 4xx, 5xx и сетевые ошибки — ErrInvalidCredential.
// Нечитаемый ответ 200 — внутренняя ошибка.
func (v *RemoteVerifier) Verify(ctx context.Context, token string) (*model.Identity, error) {
	if token == "" {
		return nil, ErrMissingCredential
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+userPath, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("создание запроса к identity-сервису: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", v.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req) //nolint:gosec // URL из конфигурации
	if err != nil {
		v.logger.Warn("Identity-сервис недоступен",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: identity-сервис недоступен: %v", ErrInvalidCredential, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Тело ошибки читаем только для отладки
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode >= 500 {
			v.logger.Warn("Identity-сервис вернул ошибку",
				slog.Int("status", resp.StatusCode),
				slog.String("body", string(body)),
			)
		}
		return nil, fmt.Errorf("%w: identity-сервис вернул статус %d", ErrInvalidCredential, resp.StatusCode)
	}

	var user userResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUserResponseSize)).Decode(&user); err != nil {
		return nil, fmt.Errorf("декодирование ответа identity-сервиса: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("identity-сервис вернул пользователя без id")
	}

	return &model.Identity{
		ID:        user.ID,
		Email:     user.Email,
		Role:      user.Role,
		ExpiresAt: tokenExpiry(token),
	}, nil
}

// tokenExpiry читает exp из JWT без проверки подписи (подпись уже проверил identity-сервис).
// Для непрозрачного токена возвращает нулевое время.
func tokenExpiry(token string) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
