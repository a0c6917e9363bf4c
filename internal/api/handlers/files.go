// files.go — HTTP handlers операций с медиафайлами.
// Загрузка, отдача, список, удаление.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/arturkryukov/media-server/internal/api/errors"
	"github.com/arturkryukov/media-server/internal/api/middleware"
	"github.com/arturkryukov/media-server/internal/service"
	"github.com/arturkryukov/media-server/internal/storage/mediastore"
)

// multipartFormOverhead — запас к лимиту тела запроса на заголовки
// и границы multipart-формы.
const multipartFormOverhead = 1 << 20

// FilesHandler — обработчик endpoints медиафайлов.
type FilesHandler struct {
	uploadSvc   *service.UploadService
	downloadSvc *service.DownloadService
	store       *mediastore.MediaStore
	// publicBaseURL — внешний базовый URL сервиса; пустая строка —
	// вычислять из входящего запроса
	publicBaseURL string
	logger        *slog.Logger
}

// NewFilesHandler создаёт обработчик endpoints медиафайлов.
func NewFilesHandler(
	uploadSvc *service.UploadService,
	downloadSvc *service.DownloadService,
	store *mediastore.MediaStore,
	publicBaseURL string,
	logger *slog.Logger,
) *FilesHandler {
	return &FilesHandler{
		uploadSvc:     uploadSvc,
		downloadSvc:   downloadSvc,
		store:         store,
		publicBaseURL: publicBaseURL,
		logger:        logger.With(slog.String("component", "files_handler")),
	}
}

// uploadResponse — тело ответа POST /upload.
type uploadResponse struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// imageInfo — элемент списка GET /media.
type imageInfo struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// listResponse — тело ответа GET /media.
type listResponse struct {
	Count  int         `json:"count"`
	Images []imageInfo `json:"images"`
}

// deleteResponse — тело ответа DELETE /media/{filename}.
type deleteResponse struct {
	Detail string `json:"detail"`
}

// Upload обрабатывает POST /upload.
// Multipart form: file (обязательно). Возвращает имя хранения и
// абсолютный URL загруженного файла.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Ограничиваем тело запроса: лимит файла плюс запас на форму.
	// Слишком большое тело прерывается при чтении, целиком не буферизуется.
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxUploadBytes+multipartFormOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apierrors.FileTooLarge(w, fmt.Sprintf("Тело запроса превышает лимит %d байт", service.MaxUploadBytes))
			return
		}
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка разбора multipart-формы: %s", err.Error()))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	result, uploadErr := h.uploadSvc.Upload(service.UploadParams{
		Reader:           file,
		OriginalFilename: header.Filename,
		Size:             header.Size,
	})
	if uploadErr != nil {
		apierrors.WriteError(w, uploadErr.StatusCode, uploadErr.Code, uploadErr.Message)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		URL:      h.baseURL(r) + "/media/" + result.Filename,
		Filename: result.Filename,
	})
}

// GetMedia обрабатывает GET /media/{filename}.
// Отдаёт файл как есть; Content-Type определяется по расширению.
func (h *FilesHandler) GetMedia(w http.ResponseWriter, r *http.Request) {
	filename := pathFilename(r)

	if serveErr := h.downloadSvc.Serve(w, r, filename); serveErr != nil {
		apierrors.WriteError(w, serveErr.StatusCode, serveErr.Code, serveErr.Message)
	}
}

// DeleteMedia обрабатывает DELETE /media/{filename}.
// Удаление не идемпотентно: повторный запрос по тому же имени — 404.
func (h *FilesHandler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	filename := pathFilename(r)

	if err := h.store.Delete(filename); err != nil {
		switch {
		case errors.Is(err, mediastore.ErrInvalidName):
			h.logger.Warn("Отклонено недопустимое имя файла",
				slog.String("filename", filename),
			)
			apierrors.InvalidPath(w, "Недопустимое имя файла")
		case errors.Is(err, mediastore.ErrNotFound):
			apierrors.NotFound(w, fmt.Sprintf("Файл %s не найден", filename))
		default:
			middleware.OperationsTotal.WithLabelValues("delete", "error").Inc()
			h.logger.Error("Ошибка удаления файла",
				slog.String("filename", filename),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Ошибка удаления файла")
		}
		return
	}

	middleware.OperationsTotal.WithLabelValues("delete", "success").Inc()
	h.logger.Info("Файл удалён", slog.String("filename", filename))

	writeJSON(w, http.StatusOK, deleteResponse{
		Detail: fmt.Sprintf("Файл %s удалён", filename),
	})
}

// ListMedia обрабатывает GET /media.
// Список строится обходом директории хранения на каждый запрос:
// состояние нигде не кэшируется.
func (h *FilesHandler) ListMedia(w http.ResponseWriter, r *http.Request) {
	files, err := h.store.List()
	if err != nil {
		h.logger.Error("Ошибка перечисления файлов",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Ошибка чтения списка файлов")
		return
	}

	base := h.baseURL(r)
	images := make([]imageInfo, 0, len(files))
	for _, f := range files {
		images = append(images, imageInfo{
			Filename: f.Name,
			URL:      base + "/media/" + f.Name,
		})
	}

	writeJSON(w, http.StatusOK, listResponse{
		Count:  len(images),
		Images: images,
	})
}

// baseURL возвращает внешний базовый URL сервиса: настроенный
// PublicBaseURL, иначе scheme://host входящего запроса.
func (h *FilesHandler) baseURL(r *http.Request) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// pathFilename извлекает имя файла из пути запроса.
// Percent-encoding раскрывается до проверок принадлежности:
// закодированный обход пути отклоняется так же, как незакодированный.
func pathFilename(r *http.Request) string {
	name := chi.URLParam(r, "filename")
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	return name
}

// writeJSON — вспомогательная функция записи JSON-ответа.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
