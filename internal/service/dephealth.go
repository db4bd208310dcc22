// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// fileattach мониторит:
//   - PostgreSQL — SQL checker через существующий pgxpool (critical)
//   - объектное хранилище — HTTP checker к health endpoint (critical)
//   - identity-сервис — HTTP checker (remote: /auth/v1/health, jwks: сам JWKS URL)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками.
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bigkaa/fileattach/internal/config"
)

// Health endpoints внешних зависимостей.
const (
	minioHealthPath    = "/minio/health/live"
	identityHealthPath = "/auth/v1/health"
)

// DephealthTarget — HTTP-зависимость для мониторинга.
type DephealthTarget struct {
	// Name — имя зависимости в метриках
	Name string
	// URL — базовый URL зависимости
	URL string
	// HealthPath — путь health endpoint
	HealthPath string
	// Critical — влияет ли зависимость на готовность сервиса
	Critical bool
}

// DephealthConfig — параметры мониторинга зависимостей.
type DephealthConfig struct {
	// ServiceID — имя вершины графа текущего приложения
	ServiceID string
	// Group — имя группы в метриках (FA_DEPHEALTH_GROUP)
	Group string
	// DB — *sql.DB, полученный из pgxpool через stdlib.OpenDBFromPool()
	DB *sql.DB
	// PGConnURL — URL PostgreSQL (только для лейблов, не для подключения)
	PGConnURL string
	// Targets — HTTP-зависимости (хранилище, identity)
	Targets []DephealthTarget
	// CheckInterval — интервал проверки (FA_DEPHEALTH_CHECK_INTERVAL)
	CheckInterval time.Duration
	// IsEntry — лейбл isentry=yes на всех зависимостях (FA_DEPHEALTH_ISENTRY)
	IsEntry bool
}

// DephealthTargets строит список HTTP-зависимостей из конфигурации.
// Для драйвера s3 health endpoint у хранилища нет, оно проверяется только в /health/ready.
func DephealthTargets(cfg *config.Config) []DephealthTarget {
	var targets []DephealthTarget

	if cfg.StorageDriver == config.StorageDriverMinio {
		targets = append(targets, DephealthTarget{
			Name:       "object-storage",
			URL:        cfg.StorageEndpoint,
			HealthPath: minioHealthPath,
			Critical:   true,
		})
	}

	switch cfg.AuthMode {
	case config.AuthModeRemote:
		targets = append(targets, DephealthTarget{
			Name:       "identity",
			URL:        cfg.AuthURL,
			HealthPath: identityHealthPath,
			Critical:   true,
		})
	case config.AuthModeJWKS:
		if parsed, err := url.Parse(cfg.JWKSURL); err == nil {
			targets = append(targets, DephealthTarget{
				Name:       "identity",
				URL:        parsed.Scheme + "://" + parsed.Host,
				HealthPath: parsed.EscapedPath(),
				Critical:   true,
			})
		}
	}

	return targets
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	names  []string
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
func NewDephealthService(cfg DephealthConfig, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(cfg, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	cfg DephealthConfig,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(cfg, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(cfg DephealthConfig, logger *slog.Logger, extraOpts ...dephealth.Option) (*DephealthService, error) {
	pgDepOpts := []dephealth.DependencyOption{
		dephealth.FromURL(cfg.PGConnURL),
		dephealth.CheckInterval(cfg.CheckInterval),
		dephealth.Critical(true),
	}
	if cfg.IsEntry {
		pgDepOpts = append(pgDepOpts, dephealth.WithLabel("isentry", "yes"))
	}

	opts := make([]dephealth.Option, 0, 2+len(cfg.Targets)+len(extraOpts))
	opts = append(opts,
		dephealth.WithLogger(logger),
		// Проверка идёт через *sql.DB поверх pgxpool и видит исчерпание пула.
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(cfg.DB)), pgDepOpts...),
	)

	names := []string{"postgresql"}
	for _, target := range cfg.Targets {
		depOpts := []dephealth.DependencyOption{
			dephealth.FromURL(target.URL),
			dephealth.WithHTTPHealthPath(target.HealthPath),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(target.Critical),
		}
		if cfg.IsEntry {
			depOpts = append(depOpts, dephealth.WithLabel("isentry", "yes"))
		}
		opts = append(opts, dephealth.HTTP(target.Name, depOpts...))
		names = append(names, target.Name)
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(cfg.ServiceID, cfg.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		names:  names,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен", slog.Any("dependencies", ds.names))
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}
