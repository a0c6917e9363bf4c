// Пакет service — бизнес-логика Media Server.
// upload.go — сервис загрузки изображений.
package service

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	apierrors "github.com/arturkryukov/media-server/internal/api/errors"
	"github.com/arturkryukov/media-server/internal/api/middleware"
	"github.com/arturkryukov/media-server/internal/storage/mediastore"
)

// MaxUploadBytes — максимальный размер загружаемого файла: 10 MiB.
// Лимит зафиксирован контрактом API и не настраивается.
const MaxUploadBytes = 10 * 1024 * 1024

// allowedExtensions — допустимые расширения изображений (в нижнем регистре).
var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
	".svg":  {},
	".bmp":  {},
}

// UploadParams — параметры загрузки файла.
type UploadParams struct {
	// Reader — поток данных файла
	Reader io.Reader
	// OriginalFilename — оригинальное имя файла из multipart-формы
	OriginalFilename string
	// Size — размер файла (из Content-Length multipart part)
	Size int64
}

// UploadResult — результат загрузки файла.
type UploadResult struct {
	// Filename — имя сохранённого файла в хранилище
	Filename string
	// Size — количество записанных байт
	Size int64
}

// UploadError — ошибка загрузки с HTTP-кодом.
type UploadError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// UploadService — сервис загрузки изображений.
type UploadService struct {
	store  *mediastore.MediaStore
	logger *slog.Logger
}

// NewUploadService создаёт сервис загрузки изображений.
func NewUploadService(store *mediastore.MediaStore, logger *slog.Logger) *UploadService {
	return &UploadService{
		store:  store,
		logger: logger.With(slog.String("component", "upload_service")),
	}
}

// Upload сохраняет изображение в хранилище.
//
// Поток:
//  1. Проверка расширения по списку допустимых (после приведения к нижнему регистру)
//  2. Проверка размера
//  3. Генерация имени: 128 бит случайности в hex + расширение
//  4. Запись на диск (temp + rename)
//
// Оригинальное имя файла в имени хранения не участвует и наружу
// не возвращается.
func (s *UploadService) Upload(params UploadParams) (*UploadResult, *UploadError) {
	// 1. Проверяем расширение
	ext := strings.ToLower(filepath.Ext(params.OriginalFilename))
	if _, ok := allowedExtensions[ext]; !ok {
		return nil, &UploadError{
			StatusCode: 400,
			Code:       apierrors.CodeUnsupportedMediaType,
			Message:    fmt.Sprintf("Недопустимый тип файла: расширение %q не поддерживается", ext),
		}
	}

	// 2. Проверяем размер
	if params.Size > MaxUploadBytes {
		return nil, &UploadError{
			StatusCode: 400,
			Code:       apierrors.CodeFileTooLarge,
			Message:    fmt.Sprintf("Размер файла %d байт превышает максимум %d байт", params.Size, MaxUploadBytes),
		}
	}

	// 3. Генерируем имя хранения: 32 hex-символа + расширение
	id := uuid.New()
	filename := hex.EncodeToString(id[:]) + ext

	// 4. Записываем на диск
	size, err := s.store.Save(filename, params.Reader)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("upload", "error").Inc()
		s.logger.Error("Ошибка сохранения файла",
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
		return nil, &UploadError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка сохранения файла на диск",
		}
	}

	middleware.OperationsTotal.WithLabelValues("upload", "success").Inc()
	middleware.UploadBytesTotal.Add(float64(size))

	s.logger.Info("Файл загружен",
		slog.String("filename", filename),
		slog.String("original_filename", params.OriginalFilename),
		slog.Int64("size", size),
	)

	return &UploadResult{Filename: filename, Size: size}, nil
}
