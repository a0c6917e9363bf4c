// Точка входа Media Server — сервиса хранения изображений.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/arturkryukov/media-server/internal/api/handlers"
	"github.com/arturkryukov/media-server/internal/api/middleware"
	"github.com/arturkryukov/media-server/internal/config"
	"github.com/arturkryukov/media-server/internal/server"
	"github.com/arturkryukov/media-server/internal/service"
	"github.com/arturkryukov/media-server/internal/storage/mediastore"
	"github.com/arturkryukov/media-server/internal/token"
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
	logger.Info("Media Server запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("media_dir", cfg.MediaDir),
		slog.Bool("require_auth_for_writes", cfg.RequireAuthForWrites),
	)

	// --- Инициализация компонентов ---

	// 1. Хранилище медиафайлов
	store, err := mediastore.New(cfg.MediaDir)
	if err != nil {
		logger.Error("Ошибка инициализации MediaStore", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Информация об ёмкости диска при старте
	if total, used, available, duErr := getDiskUsage(store.Dir()); duErr != nil {
		logger.Warn("Не удалось получить информацию о диске",
			slog.String("error", duErr.Error()),
		)
	} else {
		logger.Info("Директория хранения готова",
			slog.String("dir", store.Dir()),
			slog.Int64("disk_total_bytes", total),
			slog.Int64("disk_used_bytes", used),
			slog.Int64("disk_available_bytes", available),
		)
	}

	// 2. Проверка токенов — только если запись защищена
	var auth *middleware.TokenAuth
	if cfg.RequireAuthForWrites {
		verifier := token.New([]byte(cfg.TokenSecret), cfg.TokenExpiry)
		auth = middleware.NewTokenAuth(verifier, logger)
		logger.Info("Аутентификация операций записи включена",
			slog.Duration("token_expiry", cfg.TokenExpiry),
		)
	} else {
		logger.Warn("Аутентификация операций записи отключена")
	}

	// 3. Сервисы
	uploadSvc := service.NewUploadService(store, logger)
	downloadSvc := service.NewDownloadService(store, logger)

	// 4. Handlers
	h := server.Handlers{
		System: handlers.NewSystemHandler(),
		Health: handlers.NewHealthHandler(store.Dir()),
		Files:  handlers.NewFilesHandler(uploadSvc, downloadSvc, store, cfg.PublicBaseURL, logger),
	}

	// 5. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, h, auth)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Media Server остановлен")
}
