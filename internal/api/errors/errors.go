// Пакет errors — конструкторы стандартных ошибок HTTP API Media Server.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // TODO: переименовать пакет errors, конфликт со stdlib

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок API.
const (
	CodeValidationError       = "VALIDATION_ERROR"
	CodeTokenMissing          = "TOKEN_MISSING"
	CodeTokenMalformed        = "TOKEN_MALFORMED"
	CodeTokenExpired          = "TOKEN_EXPIRED"
	CodeTokenInvalidSignature = "TOKEN_INVALID_SIGNATURE"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeUnsupportedMediaType  = "UNSUPPORTED_MEDIA_TYPE"
	CodeFileTooLarge          = "FILE_TOO_LARGE"
	CodeInvalidPath           = "INVALID_PATH"
	CodeFileNotFound          = "FILE_NOT_FOUND"
	CodeRateLimited           = "RATE_LIMITED"
	CodeInternalError         = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// TokenMissing — 401 токен записи не передан.
func TokenMissing(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeTokenMissing, message)
}

// TokenMalformed — 401 токен не соответствует формату.
func TokenMalformed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeTokenMalformed, message)
}

// TokenExpired — 401 срок действия токена истёк.
func TokenExpired(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeTokenExpired, message)
}

// TokenInvalidSignature — 401 подпись токена не совпадает.
func TokenInvalidSignature(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeTokenInvalidSignature, message)
}

// Unauthorized — 401 общий отказ аутентификации.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// UnsupportedMediaType — 400 расширение файла вне списка разрешённых.
func UnsupportedMediaType(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeUnsupportedMediaType, message)
}

// FileTooLarge — 400 файл превышает лимит размера.
func FileTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeFileTooLarge, message)
}

// InvalidPath — 400 имя файла не прошло проверку принадлежности хранилищу.
func InvalidPath(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeInvalidPath, message)
}

// NotFound — 404 файл не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeFileNotFound, message)
}

// RateLimited — 429 превышен лимит операций записи.
func RateLimited(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, CodeRateLimited, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
