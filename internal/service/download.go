// download.go — сервис отдачи медиафайлов.
package service

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	apierrors "github.com/arturkryukov/media-server/internal/api/errors"
	"github.com/arturkryukov/media-server/internal/api/middleware"
	"github.com/arturkryukov/media-server/internal/storage/mediastore"
)

// DownloadService — сервис отдачи медиафайлов.
type DownloadService struct {
	store  *mediastore.MediaStore
	logger *slog.Logger
}

// NewDownloadService создаёт сервис отдачи медиафайлов.
func NewDownloadService(store *mediastore.MediaStore, logger *slog.Logger) *DownloadService {
	return &DownloadService{
		store:  store,
		logger: logger.With(slog.String("component", "download_service")),
	}
}

// DownloadError — ошибка отдачи с HTTP-кодом.
type DownloadError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Serve отдаёт файл клиенту через http.ServeContent.
// Поддерживает Range requests (206 Partial Content) и If-Modified-Since.
//
// Порядок проверок фиксирован: сначала принадлежность имени хранилищу (400),
// затем существование файла (404).
func (s *DownloadService) Serve(w http.ResponseWriter, r *http.Request, filename string) *DownloadError {
	// 1. Проверяем имя и разрешаем канонический путь
	path, err := s.store.Resolve(filename)
	if err != nil {
		switch {
		case errors.Is(err, mediastore.ErrInvalidName):
			s.logger.Warn("Отклонено недопустимое имя файла",
				slog.String("filename", filename),
			)
			return &DownloadError{
				StatusCode: 400,
				Code:       apierrors.CodeInvalidPath,
				Message:    "Недопустимое имя файла",
			}
		case errors.Is(err, mediastore.ErrNotFound):
			return &DownloadError{
				StatusCode: 404,
				Code:       apierrors.CodeFileNotFound,
				Message:    fmt.Sprintf("Файл %s не найден", filename),
			}
		default:
			s.logger.Error("Ошибка разрешения пути",
				slog.String("filename", filename),
				slog.String("error", err.Error()),
			)
			return &DownloadError{
				StatusCode: 500,
				Code:       apierrors.CodeInternalError,
				Message:    "Ошибка чтения файла",
			}
		}
	}

	// 2. Открываем файл
	file, err := os.Open(path)
	if err != nil {
		// Файл мог исчезнуть между Resolve и Open
		if errors.Is(err, fs.ErrNotExist) {
			return &DownloadError{
				StatusCode: 404,
				Code:       apierrors.CodeFileNotFound,
				Message:    fmt.Sprintf("Файл %s не найден", filename),
			}
		}
		s.logger.Error("Ошибка открытия файла",
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
		return &DownloadError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка чтения файла",
		}
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		s.logger.Error("Ошибка получения stat файла",
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
		return &DownloadError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка чтения файла",
		}
	}

	// 3. Content-Type по расширению; без явного типа — octet-stream.
	// Изображения отдаются inline (без Content-Disposition): они
	// встраиваются в страницы через <img>.
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)

	// 4. http.ServeContent автоматически обрабатывает:
	//    - Range requests (206 Partial Content)
	//    - If-Modified-Since (304 Not Modified)
	//    - Content-Length, Accept-Ranges
	http.ServeContent(w, r, filename, stat.ModTime(), file)

	middleware.OperationsTotal.WithLabelValues("download", "success").Inc()

	s.logger.Debug("Файл отдан",
		slog.String("filename", filename),
		slog.Int64("size", stat.Size()),
	)

	return nil
}
