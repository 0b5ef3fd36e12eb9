// folders.go — обработчик создания папок.
package handlers

import (
	"net/http"

	"github.com/bigkaa/lanshare/internal/api/errors"
	"github.com/bigkaa/lanshare/internal/domain/model"
	"github.com/bigkaa/lanshare/internal/storage/pathname"
)

// ListFolders — GET /api/v1/folders. Полный список известных папок.
func (h *Handler) ListFolders(w http.ResponseWriter, _ *http.Request) {
	folders := h.catalog.ListFolders()

	writeJSON(w, http.StatusOK, map[string]any{
		"folders": folders,
		"total":   len(folders),
	})
}

// createFolderRequest — тело запроса создания папки.
type createFolderRequest struct {
	Name       string `json:"name"`
	ParentPath string `json:"parent_path"`
}

// CreateFolder — POST /api/v1/folders. Физическая директория
// материализуется до регистрации папки в каталоге.
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.CodeInvalidName, "Имя папки обязательно")
		return
	}

	parent := req.ParentPath
	if parent == "" {
		parent = model.RootFolder
	}

	fullPath := req.Name
	if parent != model.RootFolder {
		fullPath = parent + "/" + req.Name
	}

	folder, err := pathname.SanitizeFolderPath(fullPath)
	if err != nil {
		errors.WriteStoreError(w, err)
		return
	}

	if err := h.fs.MakeFolderDir(folder); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.CodeDiskWrite, "Не удалось создать директорию папки")
		return
	}
	if err := h.catalog.CreateFolder(folder); err != nil {
		errors.WriteStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"name": req.Name,
		"path": folder,
	})
}
