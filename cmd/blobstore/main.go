// Точка входа Blob Store — content-addressed хранилище blob.
// Загружает конфигурацию, подключает хранилище метаданных (PostgreSQL или память)
// и объектное хранилище (S3 или файловая система), создаёт сервисный слой и handlers,
// запускает topologymetrics и HTTP-сервер с аутентификацией и graceful shutdown.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/blobstore/internal/api/handlers"
	"github.com/bigkaa/goartstore/blobstore/internal/api/middleware"
	"github.com/bigkaa/goartstore/blobstore/internal/api/openapi"
	"github.com/bigkaa/goartstore/blobstore/internal/config"
	"github.com/bigkaa/goartstore/blobstore/internal/database"
	"github.com/bigkaa/goartstore/blobstore/internal/repository"
	"github.com/bigkaa/goartstore/blobstore/internal/server"
	"github.com/bigkaa/goartstore/blobstore/internal/service"
	"github.com/bigkaa/goartstore/blobstore/internal/storage/filestore"
	"github.com/bigkaa/goartstore/blobstore/internal/storage/s3store"
)

// objectStore — объектное хранилище с проверкой готовности.
type objectStore interface {
	service.ObjectStorage
	handlers.ReadinessChecker
}

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Blob Store запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("metadata_backend", cfg.MetadataBackend),
		slog.String("storage_backend", cfg.StorageBackend),
		slog.String("auth_mode", cfg.AuthMode),
	)

	ctx := context.Background()
	targets := service.DephealthTargets{}

	// 3. Хранилище метаданных
	var (
		repo        service.BlobRepository
		metaChecker handlers.ReadinessChecker
	)
	switch cfg.MetadataBackend {
	case config.MetadataBackendPostgres:
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
			os.Exit(1)
		}

		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		// Адаптер pgxpool → *sql.DB для topologymetrics (проверка через общий пул)
		pgDB := stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()

		repo = repository.NewBlobRepository(pool)
		metaChecker = database.NewReadinessChecker(pool)
		targets.DB = pgDB
		targets.PostgresURL = cfg.DatabaseURL()
	default:
		logger.Warn("Метаданные хранятся в памяти и теряются при рестарте")
		memRepo := repository.NewMemoryBlobRepository()
		repo = memRepo
		metaChecker = memRepo
	}

	// 4. Объектное хранилище
	var store objectStore
	switch cfg.StorageBackend {
	case config.StorageBackendS3:
		s3, err := s3store.New(ctx, s3store.Options{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
			CreateBucket: cfg.S3CreateBucket,
		}, logger)
		if err != nil {
			logger.Error("Ошибка инициализации S3", slog.String("error", err.Error()))
			os.Exit(1)
		}
		store = s3
		targets.S3Endpoint = cfg.S3Endpoint
		targets.S3HealthPath = cfg.S3HealthPath
		logger.Info("S3 хранилище инициализировано",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("endpoint", cfg.S3Endpoint),
		)
	default:
		fs, err := filestore.New(cfg.DataDir)
		if err != nil {
			logger.Error("Ошибка инициализации файлового хранилища", slog.String("error", err.Error()))
			os.Exit(1)
		}
		store = fs
		logger.Info("Файловое хранилище инициализировано", slog.String("data_dir", cfg.DataDir))
	}

	// 5. Services
	uploadSvc := service.NewUploadService(repo, store, logger)
	querySvc := service.NewQueryService(repo, store, logger)
	deleteSvc := service.NewDeleteService(repo, store, logger)

	// 6. OpenAPI контракт
	doc, err := openapi.Load(ctx)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI", slog.String("error", err.Error()))
		os.Exit(1)
	}
	openapiJSON, err := openapi.JSON(doc)
	if err != nil {
		logger.Error("Ошибка сериализации OpenAPI", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Handlers
	apiHandler := handlers.NewAPIHandler(
		handlers.NewBlobsHandler(uploadSvc, querySvc, deleteSvc, cfg.MaxUploadSize, logger),
		handlers.NewHealthHandler(metaChecker, store),
		handlers.NewDocsHandler(openapiJSON),
	)

	// 8. Middleware: логирование, метрики, аутентификация /v1/*
	middlewares := []func(http.Handler) http.Handler{
		middleware.RequestLogger(logger),
		middleware.MetricsMiddleware(),
	}
	switch cfg.AuthMode {
	case config.AuthModeAPIKey:
		middlewares = append(middlewares,
			server.AuthWithExclusions(middleware.APIKeyAuth(cfg.APIKey, logger), server.PublicPrefixes...))
	case config.AuthModeJWT:
		jwtAuth, err := middleware.NewJWTAuth(middleware.JWTAuthConfig{
			JWKSURL:         cfg.JWTJWKSURL,
			Issuer:          cfg.JWTIssuer,
			ClientTimeout:   cfg.JWKSClientTimeout,
			RefreshInterval: cfg.JWKSRefreshInterval,
			JWTLeeway:       cfg.JWTLeeway,
		}, logger)
		if err != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
		middlewares = append(middlewares,
			server.AuthWithExclusions(jwtAuth.Middleware(), server.PublicPrefixes...),
			server.AuthWithExclusions(middleware.RequireMethodScopes(cfg.JWTReadScope, cfg.JWTWriteScope), server.PublicPrefixes...),
		)
		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	default:
		logger.Warn("Аутентификация отключена (BS_AUTH_MODE=none)")
	}

	// 9. topologymetrics — мониторинг внешних зависимостей
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"blobstore",
		cfg.DephealthGroup,
		targets,
		cfg.DephealthCheckInterval,
		logger,
	)
	switch {
	case errors.Is(dephealthErr, service.ErrNoDependencies):
		logger.Info("topologymetrics не запущен: внешних зависимостей нет")
	case dephealthErr != nil:
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	default:
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
			defer dephealthSvc.Stop()
		}
	}

	// 10. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, middlewares...)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Blob Store остановлен")
}
