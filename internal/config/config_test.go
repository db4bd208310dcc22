package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"FA_DB_USER":            "fileattach",
		"FA_DB_PASSWORD":        "secret",
		"FA_STORAGE_ENDPOINT":   "http://minio:9000",
		"FA_STORAGE_ACCESS_KEY": "minioadmin",
		"FA_STORAGE_SECRET_KEY": "minioadmin",
		"FA_AUTH_URL":           "https://auth.example.com",
		"FA_AUTH_API_KEY":       "anon-key",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8040 {
		t.Errorf("Port = %d, ожидается 8040", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.UpstreamTimeout != 12*time.Second {
		t.Errorf("UpstreamTimeout = %v, ожидается 12s", cfg.UpstreamTimeout)
	}
	if cfg.MaxUploadSize != 10<<20 {
		t.Errorf("MaxUploadSize = %d, ожидается %d", cfg.MaxUploadSize, 10<<20)
	}
	if cfg.SignedURLTTL != time.Hour {
		t.Errorf("SignedURLTTL = %v, ожидается 1h", cfg.SignedURLTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Errorf("CORSAllowedOrigins = %v, ожидается [*]", cfg.CORSAllowedOrigins)
	}
	if cfg.StorageDriver != StorageDriverMinio {
		t.Errorf("StorageDriver = %q, ожидается minio", cfg.StorageDriver)
	}
	if cfg.StorageBucket != "files" {
		t.Errorf("StorageBucket = %q, ожидается files", cfg.StorageBucket)
	}
	if cfg.AuthMode != AuthModeRemote {
		t.Errorf("AuthMode = %q, ожидается remote", cfg.AuthMode)
	}
	if cfg.AuthCacheTTL != 30*time.Second {
		t.Errorf("AuthCacheTTL = %v, ожидается 30s", cfg.AuthCacheTTL)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if !cfg.DBMigrateOnStart {
		t.Error("DBMigrateOnStart = false, ожидается true")
	}
	if cfg.DephealthCheckInterval != 15*time.Second {
		t.Errorf("DephealthCheckInterval = %v, ожидается 15s", cfg.DephealthCheckInterval)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	envs := minimalEnvs()
	envs["FA_PORT"] = "9090"
	envs["FA_LOG_LEVEL"] = "debug"
	envs["FA_LOG_FORMAT"] = "text"
	envs["FA_UPSTREAM_TIMEOUT"] = "3s"
	envs["FA_CORS_ALLOWED_ORIGINS"] = "https://a.example.com, https://b.example.com,"
	envs["FA_MAX_UPLOAD_SIZE"] = "1024"
	envs["FA_STORAGE_DRIVER"] = "s3"
	envs["FA_AUTH_CACHE_TTL"] = "0s"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, ожидается 9090", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидается Debug", cfg.LogLevel)
	}
	if cfg.UpstreamTimeout != 3*time.Second {
		t.Errorf("UpstreamTimeout = %v, ожидается 3s", cfg.UpstreamTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("CORSAllowedOrigins = %v, ожидается два origin без пробелов", cfg.CORSAllowedOrigins)
	}
	if cfg.MaxUploadSize != 1024 {
		t.Errorf("MaxUploadSize = %d, ожидается 1024", cfg.MaxUploadSize)
	}
	if cfg.StorageDriver != StorageDriverS3 {
		t.Errorf("StorageDriver = %q, ожидается s3", cfg.StorageDriver)
	}
	if cfg.AuthCacheTTL != 0 {
		t.Errorf("AuthCacheTTL = %v, ожидается 0", cfg.AuthCacheTTL)
	}
}

func TestLoad_JWKSMode(t *testing.T) {
	envs := minimalEnvs()
	delete(envs, "FA_AUTH_URL")
	delete(envs, "FA_AUTH_API_KEY")
	envs["FA_AUTH_MODE"] = "jwks"
	envs["FA_JWKS_URL"] = "https://idp.example.com/certs"
	envs["FA_JWT_ISSUER"] = "https://idp.example.com"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.AuthMode != AuthModeJWKS {
		t.Errorf("AuthMode = %q, ожидается jwks", cfg.AuthMode)
	}
	if cfg.JWTLeeway != 5*time.Second {
		t.Errorf("JWTLeeway = %v, ожидается 5s", cfg.JWTLeeway)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]string)
		wantKey string
	}{
		{"некорректный порт", func(e map[string]string) { e["FA_PORT"] = "70000" }, "FA_PORT"},
		{"некорректный уровень логов", func(e map[string]string) { e["FA_LOG_LEVEL"] = "verbose" }, "FA_LOG_LEVEL"},
		{"некорректный формат логов", func(e map[string]string) { e["FA_LOG_FORMAT"] = "xml" }, "FA_LOG_FORMAT"},
		{"нулевой таймаут", func(e map[string]string) { e["FA_UPSTREAM_TIMEOUT"] = "0s" }, "FA_UPSTREAM_TIMEOUT"},
		{"нулевой лимит загрузки", func(e map[string]string) { e["FA_MAX_UPLOAD_SIZE"] = "0" }, "FA_MAX_UPLOAD_SIZE"},
		{"нет пользователя БД", func(e map[string]string) { delete(e, "FA_DB_USER") }, "FA_DB_USER"},
		{"неизвестный драйвер", func(e map[string]string) { e["FA_STORAGE_DRIVER"] = "gcs" }, "FA_STORAGE_DRIVER"},
		{"нет endpoint хранилища", func(e map[string]string) { delete(e, "FA_STORAGE_ENDPOINT") }, "FA_STORAGE_ENDPOINT"},
		{"endpoint без схемы", func(e map[string]string) { e["FA_STORAGE_ENDPOINT"] = "minio:9000" }, "FA_STORAGE_ENDPOINT"},
		{"нет ключа API", func(e map[string]string) { delete(e, "FA_AUTH_API_KEY") }, "FA_AUTH_API_KEY"},
		{"неизвестный режим", func(e map[string]string) { e["FA_AUTH_MODE"] = "basic" }, "FA_AUTH_MODE"},
		{"jwks без URL", func(e map[string]string) { e["FA_AUTH_MODE"] = "jwks" }, "FA_JWKS_URL"},
		{"пустые origins", func(e map[string]string) { e["FA_CORS_ALLOWED_ORIGINS"] = " , " }, "FA_CORS_ALLOWED_ORIGINS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := minimalEnvs()
			tt.mutate(envs)
			setEnvs(t, envs)

			_, err := Load()
			if err == nil {
				t.Fatal("Load() должен вернуть ошибку")
			}
			if !strings.Contains(err.Error(), tt.wantKey) {
				t.Errorf("ошибка %q не содержит %s", err.Error(), tt.wantKey)
			}
		})
	}
}

func TestDatabaseURL(t *testing.T) {
	cfg := &Config{
		DBHost:     "db",
		DBPort:     5433,
		DBName:     "files",
		DBUser:     "user",
		DBPassword: "p@ss",
		DBSSLMode:  "require",
		DBMaxConns: 4,
	}

	want := "postgres://user:p%40ss@db:5433/files?sslmode=require"
	if got := cfg.DatabaseURL(); got != want {
		t.Errorf("DatabaseURL() = %q, ожидается %q", got, want)
	}
	if got := cfg.DatabaseDSN(); got != want+"&pool_max_conns=4" {
		t.Errorf("DatabaseDSN() = %q", got)
	}
}
