// Пакет errors — конструкторы ответов с ошибками.
// Единый формат: {"error": "...", "code": "...", "details": "..."}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок, определённые в OpenAPI контракте.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeDependencyError = "DEPENDENCY_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
)

// Сообщения, одинаковые для всех ответов своего типа.
const (
	// MessageNotFound не различает отсутствующий и чужой файл.
	MessageNotFound = "Файл не найден"
	// MessageInternal — ответ на непредвиденные ошибки, без подробностей.
	MessageInternal = "Внутренняя ошибка сервера"
)

// Body — тело ответа ошибки.
type Body struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание,
// details — подробности (пустая строка — поле не выводится).
func WriteError(w http.ResponseWriter, statusCode int, code, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(Body{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message, "")
}

// NotFound — 404 файл не найден или принадлежит другому пользователю.
func NotFound(w http.ResponseWriter) {
	WriteError(w, http.StatusNotFound, CodeNotFound, MessageNotFound, "")
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message, "")
}

// DependencyError — 500 сбой внешней зависимости, с подробностями.
func DependencyError(w http.ResponseWriter, message, details string) {
	WriteError(w, http.StatusInternalServerError, CodeDependencyError, message, details)
}

// InternalError — 500 внутренняя ошибка без подробностей.
func InternalError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, MessageInternal, "")
}
