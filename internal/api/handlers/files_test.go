package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/arturkryukov/media-server/internal/service"
	"github.com/arturkryukov/media-server/internal/storage/mediastore"
)

// errorResponse — тело ответа об ошибке для разбора в тестах.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// storageNameRe — формат имени хранения: 32 hex-символа + расширение.
var storageNameRe = regexp.MustCompile(`^[0-9a-f]{32}\.[a-z]+$`)

// setupFilesTestEnv создаёт обработчик с реальным хранилищем и маршрутами.
func setupFilesTestEnv(t *testing.T, publicBaseURL string) (*mediastore.MediaStore, *chi.Mux) {
	t.Helper()

	store, err := mediastore.New(t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка создания MediaStore: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	h := NewFilesHandler(
		service.NewUploadService(store, logger),
		service.NewDownloadService(store, logger),
		store,
		publicBaseURL,
		logger,
	)

	router := chi.NewRouter()
	router.Post("/upload", h.Upload)
	router.Get("/media", h.ListMedia)
	router.Get("/media/{filename}", h.GetMedia)
	router.Delete("/media/{filename}", h.DeleteMedia)

	return store, router
}

// multipartBody строит multipart-форму с одним файловым полем.
func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("ошибка создания поля формы: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("ошибка записи содержимого: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("ошибка закрытия формы: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

// uploadFile загружает файл через endpoint и возвращает ответ.
func uploadFile(t *testing.T, router *chi.Mux, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartBody(t, "file", filename, content)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestUploadEndpoint_Success(t *testing.T) {
	store, router := setupFilesTestEnv(t, "")

	content := []byte("jpeg image data")
	rec := uploadFile(t, router, "photo.jpg", content)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус: хотели 200, получили %d, тело: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		URL      string `json:"url"`
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ошибка разбора ответа: %v", err)
	}

	if !storageNameRe.MatchString(resp.Filename) {
		t.Errorf("имя файла не соответствует формату: %s", resp.Filename)
	}
	if !strings.HasSuffix(resp.Filename, ".jpg") {
		t.Errorf("ожидалось расширение .jpg: %s", resp.Filename)
	}

	// URL строится из Host входящего запроса
	want := "http://example.com/media/" + resp.Filename
	if resp.URL != want {
		t.Errorf("url: хотели %s, получили %s", want, resp.URL)
	}

	if !store.Exists(resp.Filename) {
		t.Error("файл должен существовать в хранилище")
	}
}

func TestUploadEndpoint_PublicBaseURL(t *testing.T) {
	_, router := setupFilesTestEnv(t, "https://cdn.example.org")

	rec := uploadFile(t, router, "pic.png", []byte("png data"))
	if rec.Code != http.StatusOK {
		t.Fatalf("статус: хотели 200, получили %d", rec.Code)
	}

	var resp struct {
		URL      string `json:"url"`
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ошибка разбора ответа: %v", err)
	}

	want := "https://cdn.example.org/media/" + resp.Filename
	if resp.URL != want {
		t.Errorf("url: хотели %s, получили %s", want, resp.URL)
	}
}

func TestUploadEndpoint_MissingFileField(t *testing.T) {
	_, router := setupFilesTestEnv(t, "")

	body, contentType := multipartBody(t, "attachment", "photo.jpg", []byte("data"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("статус: хотели 400, получили %d", rec.Code)
	}
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ошибка разбора ответа: %v", err)
	}
	if resp.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("код: хотели VALIDATION_ERROR, получили %s", resp.Error.Code)
	}
}

func TestUploadEndpoint_NotMultipart(t *testing.T) {
	_, router := setupFilesTestEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("raw body"))
	req.Header.Set("Content-Type", "application/octet-stream")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("статус: хотели 400, получили %d", rec.Code)
	}
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ошибка разбора ответа: %v", err)
	}
	if resp.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("код: хотели VALIDATION_ERROR, получили %s", resp.Error.Code)
	}
}

func TestUploadEndpoint_UnsupportedType(t *testing.T) {
	_, router := setupFilesTestEnv(t, "")

	rec := uploadFile(t, router, "report.pdf", []byte("%PDF-1.4"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("статус: хотели 400, получили %d", rec.Code)
	}
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ошибка разбора ответа: %v", err)
	}
	if resp.Error.Code != "UNSUPPORTED_MEDIA_TYPE" {
		t.Errorf("код: хотели UNSUPPORTED_MEDIA_TYPE, получили %s", resp.Error.Code)
	}
}

// TestUploadEndpoint_BodyTooLarge проверяет обрыв слишком большого тела
// на уровне чтения запроса.
func TestUploadEndpoint_BodyTooLarge(t *testing.T) {
	_, router := setupFilesTestEnv(t, "")

	// Содержимое размером в полный лимит тела: с учётом границ
	// multipart-формы тело гарантированно превышает лимит
	content := bytes.Repeat([]byte("a"), service.MaxUploadBytes+multipartFormOverhead)
	rec := uploadFile(t, router, "huge.png", content)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("статус: хотели 400, получили %d", rec.Code)
	}
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ошибка разбора ответа: %v", err)
	}
	if resp.Error.Code != "FILE_TOO_LARGE" {
		t.Errorf("код: хотели FILE_TOO_LARGE, получили %s", resp.Error.Code)
	}
}

func TestGetMediaEndpoint(t *testing.T) {
	store, router := setupFilesTestEnv(t, "")

	content := []byte("stored png bytes")
	if _, err := store.Save("cafebabe000000000000000000000000.png", bytes.NewReader(content)); err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/media/cafebabe000000000000000000000000.png", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус: хотели 200, получили %d", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), content) {
		t.Error("тело ответа не совпадает с содержимым файла")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type: хотели image/png, получили %s", ct)
	}
}

func TestGetMediaEndpoint_NotFound(t *testing.T) {
	_, router := setupFilesTestEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/media/missing.jpg", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("статус: хотели 404, получили %d", rec.Code)
	}
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ошибка разбора ответа: %v", err)
	}
	if resp.Error.Code != "FILE_NOT_FOUND" {
		t.Errorf("код: хотели FILE_NOT_FOUND, получили %s", resp.Error.Code)
	}
}

// TestGetMediaEndpoint_EncodedTraversal проверяет отказ по закодированному
// обходу пути: проверка имени идёт раньше проверки существования.
func TestGetMediaEndpoint_EncodedTraversal(t *testing.T) {
	_, router := setupFilesTestEnv(t, "")

	tests := []string{
		"/media/%2e%2e%2fsecret.jpg",
		"/media/..%2fsecret.jpg",
		"/media/a%2fb.png",
	}

	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, target, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("статус: хотели 400, получили %d", rec.Code)
			}
			var resp errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("ошибка разбора ответа: %v", err)
			}
			if resp.Error.Code != "INVALID_PATH" {
				t.Errorf("код: хотели INVALID_PATH, получили %s", resp.Error.Code)
			}
		})
	}
}

func TestDeleteMediaEndpoint(t *testing.T) {
	store, router := setupFilesTestEnv(t, "")

	if _, err := store.Save("deadbeef000000000000000000000000.gif", bytes.NewReader([]byte("gif"))); err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/media/deadbeef000000000000000000000000.gif", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус: хотели 200, получили %d", rec.Code)
	}

	var resp struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ошибка разбора ответа: %v", err)
	}
	want := "Файл deadbeef000000000000000000000000.gif удалён"
	if resp.Detail != want {
		t.Errorf("detail: хотели %q, получили %q", want, resp.Detail)
	}

	if store.Exists("deadbeef000000000000000000000000.gif") {
		t.Error("файл должен быть удалён")
	}

	// Удаление не идемпотентно: повторный запрос — 404
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/media/deadbeef000000000000000000000000.gif", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("повторное удаление: хотели 404, получили %d", rec.Code)
	}
}

func TestDeleteMediaEndpoint_NotFound(t *testing.T) {
	_, router := setupFilesTestEnv(t, "")

	req := httptest.NewRequest(http.MethodDelete, "/media/nonexistent.webp", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("статус: хотели 404, получили %d", rec.Code)
	}
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ошибка разбора ответа: %v", err)
	}
	if resp.Error.Code != "FILE_NOT_FOUND" {
		t.Errorf("код: хотели FILE_NOT_FOUND, получили %s", resp.Error.Code)
	}
}

func TestListMediaEndpoint_Empty(t *testing.T) {
	_, router := setupFilesTestEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/media", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус: хотели 200, получили %d", rec.Code)
	}

	// Пустой список сериализуется как [], а не null
	body := strings.TrimSpace(rec.Body.String())
	if body != `{"count":0,"images":[]}` {
		t.Errorf("тело: хотели %s, получили %s", `{"count":0,"images":[]}`, body)
	}
}

func TestListMediaEndpoint(t *testing.T) {
	store, router := setupFilesTestEnv(t, "")

	for _, name := range []string{"b1.png", "a1.jpg"} {
		if _, err := store.Save(name, bytes.NewReader([]byte("data"))); err != nil {
			t.Fatalf("ошибка сохранения %s: %v", name, err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/media", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус: хотели 200, получили %d", rec.Code)
	}

	var resp struct {
		Count  int `json:"count"`
		Images []struct {
			Filename string `json:"filename"`
			URL      string `json:"url"`
		} `json:"images"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ошибка разбора ответа: %v", err)
	}

	if resp.Count != 2 {
		t.Fatalf("count: хотели 2, получили %d", resp.Count)
	}
	if len(resp.Images) != resp.Count {
		t.Fatalf("count не совпадает с длиной images: %d != %d", resp.Count, len(resp.Images))
	}

	// Файлы перечисляются в порядке имён
	wantOrder := []string{"a1.jpg", "b1.png"}
	for i, img := range resp.Images {
		if img.Filename != wantOrder[i] {
			t.Errorf("позиция %d: хотели %s, получили %s", i, wantOrder[i], img.Filename)
		}
		wantURL := fmt.Sprintf("http://example.com/media/%s", img.Filename)
		if img.URL != wantURL {
			t.Errorf("url: хотели %s, получили %s", wantURL, img.URL)
		}
	}
}

// TestUploadFetchDeleteFlow проверяет полный жизненный цикл файла.
func TestUploadFetchDeleteFlow(t *testing.T) {
	_, router := setupFilesTestEnv(t, "")

	// Загрузка
	content := []byte("full lifecycle image")
	rec := uploadFile(t, router, "cycle.webp", content)
	if rec.Code != http.StatusOK {
		t.Fatalf("загрузка: хотели 200, получили %d", rec.Code)
	}
	var uploaded struct {
		URL      string `json:"url"`
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&uploaded); err != nil {
		t.Fatalf("ошибка разбора ответа загрузки: %v", err)
	}

	// Чтение
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/"+uploaded.Filename, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("чтение: хотели 200, получили %d", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), content) {
		t.Error("прочитанное содержимое не совпадает с загруженным")
	}

	// Список содержит файл
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media", nil))
	if !strings.Contains(rec.Body.String(), uploaded.Filename) {
		t.Error("список должен содержать загруженный файл")
	}

	// Удаление
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/media/"+uploaded.Filename, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("удаление: хотели 200, получили %d", rec.Code)
	}

	// Файл недоступен после удаления
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/"+uploaded.Filename, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("чтение после удаления: хотели 404, получили %d", rec.Code)
	}
}
