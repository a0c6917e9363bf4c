// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/arturkryukov/media-server/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// mediaDir — путь к директории хранения (для проверки FS)
	mediaDir string
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(mediaDir string) *HealthHandler {
	return &HealthHandler{
		version:  config.Version,
		mediaDir: mediaDir,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "media-server",
	})
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет доступность директории хранения на запись.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	fsCheck := h.checkFilesystem()
	if fsCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "media-server",
		"checks": map[string]any{
			"filesystem": fsCheck,
		},
	})
}

// checkFilesystem проверяет доступность директории хранения на запись.
// Пробный файл скрытый: в списке файлов он не виден.
func (h *HealthHandler) checkFilesystem() map[string]any {
	testFile := filepath.Join(h.mediaDir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Директория хранения недоступна для записи: " + err.Error(),
		}
	}
	_ = os.Remove(testFile)

	return map[string]any{
		"status": "ok",
	}
}
