package database

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/goartstore/blobstore/internal/config"
)

// setupTestDB запускает PostgreSQL в Docker-контейнере через testcontainers.
func setupTestDB(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("blobstore_test"),
		postgres.WithUsername("blobstore"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	return &config.Config{
		DBHost:     host,
		DBPort:     port.Int(),
		DBName:     "blobstore_test",
		DBUser:     "blobstore",
		DBPassword: "test-password",
		DBSSLMode:  "disable",
		DBMaxConns: 4,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// TestConnect проверяет подключение к PostgreSQL через pgxpool.
func TestConnect(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()

	pool, err := Connect(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("pool.Ping() вернул ошибку: %v", err)
	}
}

// TestMigrate проверяет применение миграций и частичный уникальный индекс.
func TestMigrate(t *testing.T) {
	cfg := setupTestDB(t)
	logger := testLogger()

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}

	// Повторное применение — без ошибки (ErrNoChange)
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Повторный Migrate() вернул ошибку: %v", err)
	}

	ctx := context.Background()
	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	var exists bool
	err = pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = 'blobs'
		)`).Scan(&exists)
	if err != nil {
		t.Fatalf("Ошибка проверки таблицы blobs: %v", err)
	}
	if !exists {
		t.Fatal("Таблица blobs не создана")
	}

	insert := `INSERT INTO blobs (hash, size, mime, storage_key) VALUES ('h', 1, 'text/plain', 'k')`
	if _, err := pool.Exec(ctx, insert); err != nil {
		t.Fatalf("первая вставка: %v", err)
	}
	if _, err := pool.Exec(ctx, insert); err == nil {
		t.Error("ожидалось нарушение уникальности для второй живой записи")
	}

	if _, err := pool.Exec(ctx, `UPDATE blobs SET deleted_at = now()`); err != nil {
		t.Fatalf("мягкое удаление: %v", err)
	}
	if _, err := pool.Exec(ctx, insert); err != nil {
		t.Errorf("вставка после мягкого удаления: %v", err)
	}
}

// TestReadinessChecker проверяет готовность до и после миграций.
func TestReadinessChecker(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()
	logger := testLogger()

	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	checker := NewReadinessChecker(pool)

	if status, msg := checker.CheckReady(); status != "fail" {
		t.Errorf("до миграций ожидался fail, получено %q (%s)", status, msg)
	}

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}

	status, msg := checker.CheckReady()
	if status != "ok" {
		t.Errorf("CheckReady() status = %q, message = %q; ожидали status = %q",
			status, msg, "ok")
	}

	pool.Close()
	if status, _ := checker.CheckReady(); status != "fail" {
		t.Errorf("после закрытия пула ожидался fail, получено %q", status)
	}
}

// TestReadiness проверяет сведение результатов проверок в статус.
func TestReadiness(t *testing.T) {
	tests := []struct {
		name        string
		queryErr    error
		schemaReady bool
		acquired    int32
		maxConns    int32
		want        string
	}{
		{"всё доступно", nil, true, 1, 10, "ok"},
		{"ошибка запроса", errors.New("connection refused"), false, 0, 10, "fail"},
		{"нет таблицы", nil, false, 0, 10, "fail"},
		{"пул исчерпан", nil, true, 10, 10, "degraded"},
		{"ошибка важнее пула", errors.New("timeout"), true, 10, 10, "fail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := readiness(tt.queryErr, tt.schemaReady, tt.acquired, tt.maxConns)
			if status != tt.want {
				t.Errorf("status = %q (%s), ожидался %q", status, msg, tt.want)
			}
			if msg == "" {
				t.Error("пустое сообщение")
			}
		})
	}
}
