// trash.go — обработчики корзины: список, восстановление,
// окончательное удаление, полная очистка.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/lanshare/internal/api/errors"
	"github.com/bigkaa/lanshare/internal/domain/model"
)

// trashItemResponse — представление записи корзины в ответах API.
type trashItemResponse struct {
	ID            string `json:"id"`
	Filename      string `json:"filename"`
	Size          int64  `json:"size"`
	SizeFormatted string `json:"size_formatted"`
	Type          string `json:"type"`
	Icon          string `json:"icon"`
	FolderPath    string `json:"folder_path"`
	DeletedAt     string `json:"deleted_at"`
	ExpiresAt     string `json:"expires_at"`
}

func toTrashItemResponse(entry *model.TrashEntry) trashItemResponse {
	return trashItemResponse{
		ID:            entry.Record.ID,
		Filename:      entry.Record.DisplayName,
		Size:          entry.Record.SizeBytes,
		SizeFormatted: formatFileSize(entry.Record.SizeBytes),
		Type:          entry.Record.MediaType,
		Icon:          entry.Record.Icon(),
		FolderPath:    entry.Record.FolderPath,
		DeletedAt:     entry.DeletedAt.Format(time.RFC3339),
		ExpiresAt:     entry.ExpiresAt.Format(time.RFC3339),
	}
}

// ListTrash — GET /api/v1/trash. Новые записи первыми, просроченные
// вычищаются по пути.
func (h *Handler) ListTrash(w http.ResponseWriter, _ *http.Request) {
	entries := h.trash.List()

	items := make([]trashItemResponse, 0, len(entries))
	for i := range entries {
		items = append(items, toTrashItemResponse(&entries[i]))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

// RestoreTrash — POST /api/v1/trash/{id}/restore.
func (h *Handler) RestoreTrash(w http.ResponseWriter, r *http.Request) {
	rec, err := h.lifecycle.Restore(chi.URLParam(r, "id"))
	if err != nil {
		errors.WriteStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFileResponse(rec))
}

// PurgeTrash — DELETE /api/v1/trash/{id}. Окончательное удаление.
func (h *Handler) PurgeTrash(w http.ResponseWriter, r *http.Request) {
	if err := h.lifecycle.Purge(chi.URLParam(r, "id")); err != nil {
		errors.WriteStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ClearTrash — POST /api/v1/trash/clear. Полная очистка корзины.
func (h *Handler) ClearTrash(w http.ResponseWriter, _ *http.Request) {
	count, bytes, err := h.lifecycle.PurgeAll()
	if err != nil {
		errors.WriteStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"removed":                   count,
		"bytes_reclaimed":           bytes,
		"bytes_reclaimed_formatted": formatFileSize(bytes),
	})
}
