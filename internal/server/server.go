// Пакет server — HTTP-сервер filehub с graceful shutdown.
// Без TLS: HTTP за reverse proxy.
package server

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/filehub/internal/api/handlers"
	"github.com/bigkaa/filehub/internal/config"
	"github.com/bigkaa/filehub/internal/storage/filestore"
)

// Server — HTTP-сервер filehub.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// Mount — регистрация дополнительных маршрутов (UI).
type Mount func(r chi.Router)

// New создаёт HTTP-сервер с настроенными routes и middleware.
// handler — реализация handlers.ServerInterface (APIHandler).
// mount — UI-маршруты, может быть nil.
// middlewares — logging, metrics, CORS и т.п., добавляются в порядке переданного среза.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	handler handlers.ServerInterface,
	mount Mount,
	middlewares ...func(http.Handler) http.Handler,
) *Server {
	router := chi.NewRouter()

	// Применяем переданные middleware
	for _, mw := range middlewares {
		router.Use(mw)
	}

	// File API, health, metrics
	handlers.HandlerFromMux(handler, router)

	// Прямой доступ к загруженным файлам по ключу, без листинга
	router.Handle("/uploads/*", UploadsHandler(cfg.UploadDir))

	if mount != nil {
		mount(router)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Handler возвращает корневой обработчик (для тестов).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// UploadsHandler отдаёт файлы директории загрузок по пути /uploads/{key}.
// Директории, скрытые файлы (журнал) и временные файлы недоступны.
func UploadsHandler(dir string) http.Handler {
	return http.StripPrefix("/uploads", http.FileServer(uploadsFS{root: http.Dir(dir)}))
}

// uploadsFS ограничивает http.FileServer одиночными ключами blob-ов.
type uploadsFS struct {
	root http.FileSystem
}

func (u uploadsFS) Open(name string) (http.File, error) {
	key := strings.TrimPrefix(name, "/")
	if !filestore.ValidKey(key) || strings.HasPrefix(key, ".") {
		return nil, fs.ErrNotExist
	}

	f, err := u.root.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.IsDir() {
		f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
