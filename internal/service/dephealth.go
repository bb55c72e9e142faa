// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Blob Store мониторит (в зависимости от выбранных бэкендов):
//   - PostgreSQL — SQL checker через существующий pgxpool (connection pool mode, critical)
//   - S3-совместимый сервис — HTTP checker к health endpoint (critical)
//
// Бэкенды memory и filesystem внешних зависимостей не имеют.
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//   - app_dependency_status — категория статуса
//   - app_dependency_status_detail — детальный статус
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrNoDependencies — ни одна внешняя зависимость не настроена.
var ErrNoDependencies = errors.New("нет внешних зависимостей для мониторинга")

// DephealthTargets — проверяемые зависимости. Пустые поля пропускаются.
type DephealthTargets struct {
	// DB — *sql.DB, полученный из pgxpool через stdlib.OpenDBFromPool()
	DB *sql.DB
	// PostgresURL — URL PostgreSQL (для лейблов, не для подключения)
	PostgresURL string
	// S3Endpoint — URL S3-совместимого сервиса (BS_S3_ENDPOINT)
	S3Endpoint string
	// S3HealthPath — путь health endpoint (BS_S3_HEALTH_PATH)
	S3HealthPath string
}

func (t DephealthTargets) empty() bool {
	return t.DB == nil && t.S3Endpoint == ""
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
//
// Параметры:
//   - serviceID — имя вершины графа текущего приложения ("blobstore")
//   - group — имя группы в метриках (BS_DEPHEALTH_GROUP)
//   - targets — проверяемые зависимости
//   - checkInterval — интервал проверки (BS_DEPHEALTH_CHECK_INTERVAL)
func NewDephealthService(
	serviceID string,
	group string,
	targets DephealthTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, targets, checkInterval, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	serviceID string,
	group string,
	targets DephealthTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, targets, checkInterval, logger,
		dephealth.WithRegisterer(registerer))
}

func newDephealthService(
	serviceID string,
	group string,
	targets DephealthTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	if targets.empty() {
		return nil, ErrNoDependencies
	}

	opts := []dephealth.Option{dephealth.WithLogger(logger)}

	if targets.DB != nil {
		opts = append(opts, dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(targets.DB)),
			dephealth.FromURL(targets.PostgresURL),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		))
	}

	if targets.S3Endpoint != "" {
		s3Opts := []dephealth.DependencyOption{
			dephealth.FromURL(targets.S3Endpoint),
			dephealth.WithHTTPHealthPath(targets.S3HealthPath),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		}
		if parsed, err := url.Parse(targets.S3Endpoint); err == nil && parsed.Scheme == "https" {
			s3Opts = append(s3Opts, dephealth.WithHTTPTLSSkipVerify(false))
		}
		opts = append(opts, dephealth.HTTP("object-storage", s3Opts...))
	}

	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(serviceID, group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
