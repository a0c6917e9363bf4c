// Пакет server — HTTP-сервер Media Server с graceful shutdown.
// Без TLS: сервис работает внутри доверенного периметра за reverse proxy.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arturkryukov/media-server/internal/api/handlers"
	"github.com/arturkryukov/media-server/internal/api/middleware"
	"github.com/arturkryukov/media-server/internal/config"
)

// Server — HTTP-сервер Media Server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// Handlers — набор обработчиков для маршрутизации.
type Handlers struct {
	System *handlers.SystemHandler
	Health *handlers.HealthHandler
	Files  *handlers.FilesHandler
}

// New создаёт HTTP-сервер с настроенными маршрутами и middleware.
// auth — middleware проверки токена для операций записи; nil, если
// аутентификация записи отключена конфигурацией.
func New(cfg *config.Config, logger *slog.Logger, h Handlers, auth *middleware.TokenAuth) *Server {
	router := chi.NewRouter()

	// Общие middleware: CORS → логирование → метрики
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())

	// Публичные endpoints: статус, health, метрики, чтение
	router.Get("/", h.System.Root)
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	router.Get("/media", h.Files.ListMedia)
	router.Get("/media/{filename}", h.Files.GetMedia)

	// Операции записи: ограничение частоты и проверка токена
	router.Group(func(r chi.Router) {
		if cfg.RateLimitPerMinute > 0 {
			r.Use(middleware.NewRateLimiter(cfg.RateLimitPerMinute, logger).Middleware())
		}
		if auth != nil {
			r.Use(auth.Middleware())
		}

		r.Post("/upload", h.Files.Upload)
		r.Delete("/media/{filename}", h.Files.DeleteMedia)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
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
