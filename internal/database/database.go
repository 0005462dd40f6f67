// Пакет database — открытие хранилища метаданных по DSN:
// PostgreSQL через pgxpool с миграциями golang-migrate, MongoDB
// или in-memory. Предоставляет проверку готовности для health endpoint.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/filehub/internal/repository"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Виды бэкендов.
const (
	KindPostgres = "postgres"
	KindMongo    = "mongodb"
	KindMemory   = "memory"
)

// ReadinessChecker — проверка готовности хранилища для /health/ready.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "fail") и сообщение.
	CheckReady() (status string, message string)
}

// Backend — открытое хранилище метаданных.
type Backend struct {
	// Files — репозиторий метаданных
	Files repository.FileRepository
	// Checker — проверка готовности
	Checker ReadinessChecker
	// Kind — вид бэкенда (postgres, mongodb, memory)
	Kind string
	// SQLDB — *sql.DB поверх pgxpool для topologymetrics (только postgres)
	SQLDB *sql.DB
	// DSN — исходная строка подключения
	DSN string

	closers []func()
}

// Close освобождает соединения бэкенда в обратном порядке открытия.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// Open открывает хранилище по схеме DSN. Недоступное хранилище — ошибка:
// сервис не стартует без метаданных.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Backend, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	switch u.Scheme {
	case "postgres", "postgresql":
		if err := Migrate(dsn, logger); err != nil {
			return nil, err
		}
		pool, err := Connect(ctx, dsn, logger)
		if err != nil {
			return nil, err
		}
		sqlDB := stdlib.OpenDBFromPool(pool)
		return &Backend{
			Files:   repository.NewPostgresFileRepository(pool),
			Checker: NewReadinessChecker(pool),
			Kind:    KindPostgres,
			SQLDB:   sqlDB,
			DSN:     dsn,
			closers: []func(){pool.Close, func() { sqlDB.Close() }},
		}, nil

	case "mongodb", "mongodb+srv":
		client, coll, err := ConnectMongo(ctx, dsn, logger)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Files:   repository.NewMongoFileRepository(coll),
			Checker: NewMongoReadinessChecker(client),
			Kind:    KindMongo,
			DSN:     dsn,
			closers: []func(){func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := client.Disconnect(ctx); err != nil {
					logger.Warn("Ошибка отключения от MongoDB", slog.String("error", err.Error()))
				}
			}},
		}, nil

	case "memory":
		logger.Warn("Используется in-memory хранилище метаданных, данные не переживут рестарт")
		repo := repository.NewMemoryFileRepository()
		return &Backend{
			Files:   repo,
			Checker: memoryChecker{repo: repo},
			Kind:    KindMemory,
			DSN:     dsn,
		}, nil

	default:
		return nil, fmt.Errorf("неподдерживаемая схема DSN %q", u.Scheme)
	}
}

// Connect создаёт пул подключений к PostgreSQL.
// Выполняет ping для проверки доступности.
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула подключений: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка подключения к PostgreSQL: %w", err)
	}

	logger.Info("Подключение к PostgreSQL установлено",
		slog.String("host", poolCfg.ConnConfig.Host),
		slog.Int("port", int(poolCfg.ConnConfig.Port)),
		slog.String("database", poolCfg.ConnConfig.Database),
	)

	return pool, nil
}

// Migrate применяет SQL-миграции из embedded FS к базе данных.
// Использует golang-migrate с драйвером pgx5.
func Migrate(dsn string, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ошибка создания источника миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, MigrateURL(dsn))
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("Миграции применены",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)

	return nil
}

// MigrateURL переводит postgres DSN в формат golang-migrate (pgx5://).
func MigrateURL(dsn string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

// PostgresReadinessChecker — проверка готовности PostgreSQL.
type PostgresReadinessChecker struct {
	pool *pgxpool.Pool
}

// NewReadinessChecker создаёт проверку готовности PostgreSQL.
func NewReadinessChecker(pool *pgxpool.Pool) *PostgresReadinessChecker {
	return &PostgresReadinessChecker{pool: pool}
}

// CheckReady проверяет подключение к PostgreSQL через ping.
func (c *PostgresReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.pool.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("PostgreSQL недоступен: %v", err)
	}
	return "ok", "подключение активно"
}

// memoryChecker — in-memory хранилище готово, пока жив процесс.
type memoryChecker struct {
	repo *repository.MemoryFileRepository
}

func (c memoryChecker) CheckReady() (string, string) {
	return "ok", fmt.Sprintf("in-memory хранилище, записей: %d", c.repo.Count())
}
