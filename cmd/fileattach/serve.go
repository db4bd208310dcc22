package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/bigkaa/fileattach/internal/api/handlers"
	"github.com/bigkaa/fileattach/internal/api/middleware"
	"github.com/bigkaa/fileattach/internal/api/openapi"
	"github.com/bigkaa/fileattach/internal/config"
	"github.com/bigkaa/fileattach/internal/database"
	"github.com/bigkaa/fileattach/internal/identity"
	"github.com/bigkaa/fileattach/internal/repository"
	"github.com/bigkaa/fileattach/internal/server"
	"github.com/bigkaa/fileattach/internal/service"
	"github.com/bigkaa/fileattach/internal/storage"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP-сервер",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

// serve собирает зависимости и запускает HTTP-сервер до отмены ctx.
func serve(ctx context.Context) error {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("загрузка конфигурации: %w", err)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("fileattach запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("auth_mode", cfg.AuthMode),
		slog.String("storage_driver", cfg.StorageDriver),
	)

	if os.Getenv(config.EnvPrefix+"DEPHEALTH_GROUP") == "" {
		logger.Warn("FA_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Миграции БД
	if cfg.DBMigrateOnStart {
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			return fmt.Errorf("миграции БД: %w", err)
		}
	}

	// 4. PostgreSQL (pgxpool)
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("подключение к PostgreSQL: %w", err)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Объектное хранилище
	store, err := storage.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("подключение к объектному хранилищу: %w", err)
	}

	// 6. Проверка токенов
	verifier, identityChecker, err := buildVerifier(cfg, logger)
	if err != nil {
		return err
	}

	// 7. Сервис и обработчики
	fileSvc := service.NewFileService(
		repository.NewFileRepository(pool),
		store,
		service.FileServiceConfig{
			MaxUploadSize:   cfg.MaxUploadSize,
			SignedURLTTL:    cfg.SignedURLTTL,
			UpstreamTimeout: cfg.UpstreamTimeout,
		},
		logger,
	)

	checkers := []handlers.NamedChecker{
		{Name: "postgresql", Checker: database.NewReadinessChecker(pool)},
		{Name: "object_storage", Checker: store},
	}
	if identityChecker != nil {
		checkers = append(checkers, handlers.NamedChecker{Name: "identity", Checker: identityChecker})
	}

	apiHandler := handlers.NewAPIHandler(
		handlers.NewFilesHandler(fileSvc, cfg.MaxUploadSize, logger),
		handlers.NewHealthHandler(checkers...),
		logger,
	)

	// 8. topologymetrics — мониторинг зависимостей
	dephealthSvc, err := service.NewDephealthService(service.DephealthConfig{
		ServiceID:     "fileattach",
		Group:         cfg.DephealthGroup,
		DB:            pgDB,
		PGConnURL:     cfg.DatabaseURL(),
		Targets:       service.DephealthTargets(cfg),
		CheckInterval: cfg.DephealthCheckInterval,
		IsEntry:       cfg.DephealthIsEntry,
	}, logger)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
	} else {
		defer dephealthSvc.Stop()
	}

	// 9. Middleware и HTTP-сервер
	middlewares, err := buildMiddlewares(cfg, logger, verifier)
	if err != nil {
		return err
	}

	srv := server.New(cfg, logger, apiHandler, middlewares...)
	if err := srv.Run(ctx); err != nil {
		return err
	}

	logger.Info("fileattach остановлен")
	return nil
}

// buildVerifier создаёт проверку токенов по FA_AUTH_MODE.
// При FA_AUTH_CACHE_TTL > 0 успешные проверки кэшируются.
// Второе значение — readiness checker identity-сервиса (только для jwks).
func buildVerifier(cfg *config.Config, logger *slog.Logger) (identity.Verifier, handlers.ReadinessChecker, error) {
	var (
		verifier identity.Verifier
		checker  handlers.ReadinessChecker
	)

	switch cfg.AuthMode {
	case config.AuthModeJWKS:
		jwksVerifier, err := identity.NewJWKSVerifier(
			cfg.JWKSURL,
			cfg.JWTIssuer,
			cfg.UpstreamTimeout,
			cfg.JWKSRefreshInterval,
			cfg.JWTLeeway,
			logger,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("инициализация JWKS: %w", err)
		}
		verifier = jwksVerifier
		checker = identity.NewJWKSReadinessChecker(cfg.JWKSURL, cfg.UpstreamTimeout)
		logger.Info("Проверка токенов по JWKS",
			slog.String("jwks_url", cfg.JWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	default:
		verifier = identity.NewRemoteVerifier(cfg.AuthURL, cfg.AuthAPIKey, cfg.UpstreamTimeout, logger)
		logger.Info("Проверка токенов через identity-сервис",
			slog.String("auth_url", cfg.AuthURL),
		)
	}

	if cfg.AuthCacheTTL > 0 {
		verifier = identity.NewCachedVerifier(verifier, cfg.AuthCacheSize, cfg.AuthCacheTTL)
	}

	return verifier, checker, nil
}

// buildMiddlewares собирает цепочку middleware в порядке применения.
func buildMiddlewares(cfg *config.Config, logger *slog.Logger, verifier identity.Verifier) ([]func(http.Handler) http.Handler, error) {
	doc, err := openapi.GetSpec()
	if err != nil {
		return nil, fmt.Errorf("загрузка OpenAPI документа: %w", err)
	}
	validator, err := openapi.RequestValidator(doc)
	if err != nil {
		return nil, err
	}

	return []func(http.Handler) http.Handler{
		middleware.RequestID(),
		middleware.Recoverer(logger),
		middleware.RequestLogger(logger),
		middleware.MetricsMiddleware(),
		middleware.CORS(cfg.CORSAllowedOrigins),
		server.AuthWithExclusions(middleware.Auth(verifier, logger), server.PublicPrefixes...),
		validator,
	}, nil
}
