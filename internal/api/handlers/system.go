// system.go — обработчик GET / (статус сервиса).
// Публичный endpoint (без аутентификации) для проверки доступности.
package handlers

import (
	"net/http"
)

// serviceName — имя сервиса в статусном ответе.
// Строка зафиксирована контрактом API.
const serviceName = "Media Server"

// SystemHandler — обработчик статусного endpoint.
type SystemHandler struct{}

// NewSystemHandler создаёт обработчик статусного endpoint.
func NewSystemHandler() *SystemHandler {
	return &SystemHandler{}
}

// rootResponse — тело ответа GET /.
type rootResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Root обрабатывает GET /.
// Возвращает фиксированный статус сервиса.
func (h *SystemHandler) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Status:  "ok",
		Service: serviceName,
	})
}
