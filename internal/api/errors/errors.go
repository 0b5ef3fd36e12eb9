// Пакет errors — стандартный формат ошибок HTTP API.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bigkaa/lanshare/internal/domain/storeerr"
)

// Машиночитаемые коды ошибок API.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidName     = "INVALID_NAME"
	CodeExists          = "EXISTS"
	CodeNameCollision   = "NAME_COLLISION"
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeSizeLimit       = "SIZE_LIMIT"
	CodeExpired         = "EXPIRED"
	CodeDiskWrite       = "DISK_WRITE"
	CodeNoFile          = "NO_FILE"
	CodeEmptyFilename   = "EMPTY_FILENAME"
	CodeInvalidType     = "INVALID_TYPE"
	CodeFileMissing     = "FILE_MISSING"
	CodeBinaryFile      = "BINARY_FILE"
	CodeUnsupported     = "UNSUPPORTED"
	CodeEmptyQuery      = "EMPTY_QUERY"
	CodeNoFiles         = "NO_FILES"
	CodeTooManyFiles    = "TOO_MANY_FILES"
	CodeSweepInProgress = "SWEEP_IN_PROGRESS"
	CodeServerError     = "SERVER_ERROR"
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

// WriteStoreError отображает доменную ошибку хранилища в HTTP-ответ.
func WriteStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storeerr.ErrNotFound):
		WriteError(w, http.StatusNotFound, CodeNotFound, "Объект не найден")
	case errors.Is(err, storeerr.ErrInvalidName):
		WriteError(w, http.StatusBadRequest, CodeInvalidName, "Недопустимое имя")
	case errors.Is(err, storeerr.ErrAlreadyExists):
		WriteError(w, http.StatusConflict, CodeExists, "Объект уже существует")
	case errors.Is(err, storeerr.ErrNameCollision):
		WriteError(w, http.StatusConflict, CodeNameCollision, "Не удалось разрешить коллизию имён")
	case errors.Is(err, storeerr.ErrExpired):
		WriteError(w, http.StatusGone, CodeExpired, "Срок восстановления истёк")
	case errors.Is(err, storeerr.ErrSizeLimit):
		WriteError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, "Превышен лимит размера")
	case errors.Is(err, storeerr.ErrDiskWrite):
		WriteError(w, http.StatusInternalServerError, CodeDiskWrite, "Ошибка записи на диск")
	default:
		WriteError(w, http.StatusInternalServerError, CodeServerError, "Внутренняя ошибка сервера")
	}
}
