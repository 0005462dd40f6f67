// Точка входа FileHub — File API и UI управления файлами.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/filehub/internal/api/handlers"
	"github.com/bigkaa/filehub/internal/api/middleware"
	"github.com/bigkaa/filehub/internal/api/openapi"
	"github.com/bigkaa/filehub/internal/client"
	"github.com/bigkaa/filehub/internal/config"
	"github.com/bigkaa/filehub/internal/database"
	"github.com/bigkaa/filehub/internal/repository"
	"github.com/bigkaa/filehub/internal/server"
	"github.com/bigkaa/filehub/internal/service"
	"github.com/bigkaa/filehub/internal/storage/filestore"
	"github.com/bigkaa/filehub/internal/storage/journal"
	"github.com/bigkaa/filehub/internal/ui"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("FileHub запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("upload_dir", cfg.UploadDir),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("Ошибка запуска", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("FileHub остановлен")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// --- Инициализация компонентов ---

	// 1. Хранилище метаданных
	backend, err := database.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("хранилище метаданных: %w", err)
	}
	defer backend.Close()
	logger.Info("Хранилище метаданных открыто", slog.String("kind", backend.Kind))

	var files repository.FileRepository = backend.Files
	if cfg.CacheSize > 0 {
		files = repository.NewCachedFileRepository(files, cfg.CacheSize, cfg.CacheTTL)
		logger.Info("LRU-кэш метаданных включён",
			slog.Int("size", cfg.CacheSize),
			slog.String("ttl", cfg.CacheTTL.String()),
		)
	}

	// 2. Файловое хранилище и журнал загрузок
	store, err := filestore.New(cfg.UploadDir)
	if err != nil {
		return fmt.Errorf("инициализация FileStore: %w", err)
	}
	jrnl, err := journal.New(cfg.JournalDir, logger)
	if err != nil {
		return fmt.Errorf("инициализация журнала: %w", err)
	}

	// 3. Восстановление незавершённых загрузок до приёма запросов
	stats, err := service.RecoverUploads(ctx, jrnl, store, files, logger)
	if err != nil {
		return fmt.Errorf("восстановление загрузок: %w", err)
	}
	logger.Info("Восстановление загрузок завершено",
		slog.Int("committed", stats.Committed),
		slog.Int("removed", stats.Removed),
		slog.Int("aborted", stats.Aborted),
		slog.Int("failed", stats.Failed),
		slog.Int("temp_removed", stats.TempRemoved),
	)

	// 4. topologymetrics — мониторинг зависимостей (только PostgreSQL)
	var deps handlers.DependencyReporter
	if backend.SQLDB != nil {
		dephealthSvc, dhErr := service.NewDephealthService(
			dephealthName(),
			cfg.DephealthGroup,
			backend.SQLDB,
			backend.DSN,
			cfg.DephealthCheckInterval,
			logger,
		)
		switch {
		case dhErr != nil:
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", dhErr.Error()),
			)
		case dephealthSvc.Start(ctx) != nil:
			logger.Warn("Ошибка запуска topologymetrics")
		default:
			deps = dephealthSvc
			defer dephealthSvc.Stop()
		}
	}

	// 5. Сервисы и handlers
	uploadSvc := service.NewUploadService(store, jrnl, files, logger)
	fileSvc := service.NewFileService(files, store, logger)

	apiHandler := handlers.NewAPIHandler(
		handlers.NewFilesHandler(uploadSvc, fileSvc, logger),
		handlers.NewHealthHandler(store.Dir(), jrnl.Dir(), backend.Checker, deps),
	)

	// 6. Валидация запросов по OpenAPI
	doc, err := openapi.Load()
	if err != nil {
		return fmt.Errorf("загрузка OpenAPI: %w", err)
	}
	validator, err := openapi.Validator(doc, logger)
	if err != nil {
		return fmt.Errorf("валидатор OpenAPI: %w", err)
	}

	// 7. UI поверх HTTP-клиента File API
	webUI, err := ui.New(client.New(cfg.APIURL, logger), logger)
	if err != nil {
		return fmt.Errorf("инициализация UI: %w", err)
	}

	// 8. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, webUI.Routes,
		middleware.Recoverer(logger),
		middleware.RequestLogger(logger),
		middleware.MetricsMiddleware(),
		middleware.CORS(cfg.CORSOrigins),
		validator,
	)

	return srv.Run()
}
