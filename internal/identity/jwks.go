package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/fileattach/internal/domain/model"
)

// tokenClaims — claims access-токена, из которых строится Identity.
type tokenClaims struct {
	jwt.RegisteredClaims
	// Email — электронная почта.
	Email string `json:"email,omitempty"`
	// Role — роль пользователя.
	Role string `json:"role,omitempty"`
}

// JWKSVerifier — локальная проверка RS256 JWT по ключам JWKS.
type JWKSVerifier struct {
	jwks   keyfunc.Keyfunc
	issuer string
	leeway time.Duration
	logger *slog.Logger
}

// NewJWKSVerifier создаёт проверку по JWKS endpoint с фоновым обновлением ключей.
// issuer — ожидаемый issuer (пустой — не проверяется).
func NewJWKSVerifier(
	jwksURL string,
	issuer string,
	clientTimeout time.Duration,
	refreshInterval time.Duration,
	leeway time.Duration,
	logger *slog.Logger,
) (*JWKSVerifier, error) {
	// NoErrorReturnFirstHTTPReq — стартуем даже если IdP ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: clientTimeout},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           refreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return NewJWKSVerifierWithKeyfunc(k, issuer, leeway, logger), nil
}

// NewJWKSVerifierWithKeyfunc создаёт проверку с готовым keyfunc (для тестов).
func NewJWKSVerifierWithKeyfunc(kf keyfunc.Keyfunc, issuer string, leeway time.Duration, logger *slog.Logger) *JWKSVerifier {
	return &JWKSVerifier{
		jwks:   kf,
		issuer: issuer,
		leeway: leeway,
		logger: logger.With(slog.String("component", "identity_jwks")),
	}
}

// Verify проверяет подпись, срок действия и issuer токена.
func (v *JWKSVerifier) Verify(ctx context.Context, token string) (*model.Identity, error) {
	if token == "" {
		return nil, ErrMissingCredential
	}

	claims := &tokenClaims{}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, v.jwks.KeyfuncCtx(ctx), parserOpts...)
	if err != nil {
		v.logger.Debug("JWT валидация не пройдена", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidCredential
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("%w: отсутствует sub в токене", ErrInvalidCredential)
	}

	id := &model.Identity{ID: subject, Email: claims.Email, Role: claims.Role}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// JWKSReadinessChecker — проверка доступности JWKS endpoint.
type JWKSReadinessChecker struct {
	jwksURL string
	client  *http.Client
}

// NewJWKSReadinessChecker создаёт checker доступности JWKS.
func NewJWKSReadinessChecker(jwksURL string, timeout time.Duration) *JWKSReadinessChecker {
	return &JWKSReadinessChecker{
		jwksURL: jwksURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// CheckReady проверяет, что JWKS отдаёт хотя бы один ключ.
func (k *JWKSReadinessChecker) CheckReady() (status, message string) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, k.jwksURL, http.NoBody)
	if err != nil {
		return "fail", "ошибка создания запроса: " + err.Error()
	}
	resp, err := k.client.Do(req) //nolint:gosec // URL из конфигурации
	if err != nil {
		return "fail", fmt.Sprintf("JWKS недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "fail", fmt.Sprintf("JWKS вернул статус %d", resp.StatusCode)
	}

	var jwksResp struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwksResp); err != nil {
		return "degraded", fmt.Sprintf("JWKS: невалидный JSON: %v", err)
	}
	if len(jwksResp.Keys) == 0 {
		return "degraded", "JWKS: нет ключей"
	}

	return "ok", fmt.Sprintf("JWKS доступен, ключей: %d", len(jwksResp.Keys))
}
