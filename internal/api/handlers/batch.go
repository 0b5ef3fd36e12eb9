// batch.go — пакетные операции: скачивание ZIP-архивом, удаление,
// восстановление.
package handlers

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bigkaa/lanshare/internal/api/errors"
	"github.com/bigkaa/lanshare/internal/domain/storeerr"
	"github.com/bigkaa/lanshare/internal/service"
)

// batchRequest — тело пакетного запроса.
type batchRequest struct {
	FileIDs []string `json:"file_ids"`
}

// batchItemError — ошибка обработки одного файла в пакете.
type batchItemError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchDownload — POST /api/v1/batch/download. Отдаёт выбранные файлы
// ZIP-архивом. Лимиты проверяются до первого байта ответа, поэтому
// ошибки валидации возвращаются обычным JSON.
func (h *Handler) BatchDownload(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.CodeNoFiles, "Файлы для скачивания не выбраны")
		return
	}

	archiveName := "files_" + time.Now().Format("20060102_150405") + ".zip"
	lw := &headerOnFirstWrite{w: w, contentType: "application/zip", filename: archiveName}

	if _, err := h.archive.WriteZip(lw, req.FileIDs); err != nil {
		if lw.started {
			// Заголовки уже ушли клиенту, остаётся только лог
			h.logger.Error("Ошибка посреди выдачи архива", slog.String("error", err.Error()))
			return
		}
		switch {
		case stderrors.Is(err, service.ErrNoFiles):
			errors.WriteError(w, http.StatusBadRequest, errors.CodeNoFiles, "Файлы для скачивания не выбраны")
		case stderrors.Is(err, service.ErrTooManyFiles):
			errors.WriteError(w, http.StatusBadRequest, errors.CodeTooManyFiles, "Не более 100 файлов в пакете")
		case stderrors.Is(err, storeerr.ErrSizeLimit):
			errors.WriteError(w, http.StatusBadRequest, errors.CodeSizeLimit, "Суммарный размер превышает лимит 1 GB")
		default:
			errors.WriteError(w, http.StatusInternalServerError, errors.CodeServerError, "Не удалось собрать архив")
		}
	}
}

// headerOnFirstWrite выставляет заголовки скачивания при первой записи.
// До первого байта ответ остаётся свободным для JSON-ошибки валидации.
type headerOnFirstWrite struct {
	w           http.ResponseWriter
	contentType string
	filename    string
	started     bool
}

func (hw *headerOnFirstWrite) Write(b []byte) (int, error) {
	if !hw.started {
		hw.started = true
		hw.w.Header().Set("Content-Type", hw.contentType)
		hw.w.Header().Set("Content-Disposition", `attachment; filename="`+hw.filename+`"`)
	}
	return hw.w.Write(b)
}

// BatchDelete — POST /api/v1/batch/delete. Каждый файл обрабатывается
// независимо, ошибки собираются в ответ.
func (h *Handler) BatchDelete(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil || len(req.FileIDs) == 0 {
		errors.WriteError(w, http.StatusBadRequest, errors.CodeNoFiles, "Файлы для удаления не выбраны")
		return
	}

	deleted := make([]string, 0, len(req.FileIDs))
	var itemErrors []batchItemError

	for _, res := range h.lifecycle.DeleteMany(req.FileIDs) {
		if res.Err != nil {
			itemErrors = append(itemErrors, batchItemError{ID: res.ID, Error: res.Err.Error()})
			continue
		}
		h.preview.Invalidate(res.ID)
		deleted = append(deleted, res.ID)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"deleted":       deleted,
		"errors":        itemErrors,
		"total_deleted": len(deleted),
	})
}

// BatchRestore — POST /api/v1/batch/restore.
func (h *Handler) BatchRestore(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil || len(req.FileIDs) == 0 {
		errors.WriteError(w, http.StatusBadRequest, errors.CodeNoFiles, "Файлы для восстановления не выбраны")
		return
	}

	restored := make([]string, 0, len(req.FileIDs))
	var itemErrors []batchItemError

	for _, res := range h.lifecycle.RestoreMany(req.FileIDs) {
		if res.Err != nil {
			itemErrors = append(itemErrors, batchItemError{ID: res.ID, Error: res.Err.Error()})
			continue
		}
		restored = append(restored, res.ID)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"restored":       restored,
		"errors":         itemErrors,
		"total_restored": len(restored),
	})
}
