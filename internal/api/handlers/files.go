// files.go — обработчики операций над файлами: загрузка, список,
// скачивание, предпросмотр, переименование, удаление, поиск.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/lanshare/internal/api/errors"
	"github.com/bigkaa/lanshare/internal/domain/model"
	"github.com/bigkaa/lanshare/internal/service"
	"github.com/bigkaa/lanshare/internal/storage/pathname"
)

// Upload — POST /api/v1/upload. Принимает multipart-форму с полем
// "file" и опциональным "folder_path". Папка назначения
// материализуется при необходимости.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.CodeNoFile, "Файл не передан в запросе")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.CodeEmptyFilename, "Файл не выбран")
		return
	}
	if !h.cfg.ExtensionAllowed(header.Filename) {
		errors.WriteError(w, http.StatusBadRequest, errors.CodeInvalidType, "Тип файла не разрешён")
		return
	}

	folderPath := r.FormValue("folder_path")
	folder, err := pathname.SanitizeFolderPath(folderPath)
	if err != nil {
		errors.WriteStoreError(w, err)
		return
	}
	if err := h.fs.MakeFolderDir(folder); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.CodeDiskWrite, "Не удалось создать директорию папки")
		return
	}

	rec, err := h.catalog.CreateFile(folder, header.Filename, header.Size, func(dst io.Writer) error {
		_, cpErr := io.Copy(dst, file)
		return cpErr
	})
	if err != nil {
		errors.WriteStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toFileResponse(rec))
}

// ListFiles — GET /api/v1/files. Параметры: folder_path, sort
// (name|size|date), order (asc|desc), type (images|documents|text|media).
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	folderPath := r.URL.Query().Get("folder_path")
	if folderPath == "" {
		folderPath = model.RootFolder
	}

	key := model.SortKey(r.URL.Query().Get("sort"))
	switch key {
	case model.SortByName, model.SortBySize, model.SortByDate:
	default:
		key = model.SortByDate
	}

	order := model.SortOrder(r.URL.Query().Get("order"))
	switch order {
	case model.OrderAsc, model.OrderDesc:
	default:
		order = model.OrderDesc
	}

	records := h.catalog.ListFiles(folderPath, r.URL.Query().Get("type"), key, order)

	files := make([]fileResponse, 0, len(records))
	for i := range records {
		files = append(files, toFileResponse(&records[i]))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"files":          files,
		"total":          len(files),
		"folders":        h.catalog.Subfolders(folderPath),
		"current_folder": folderPath,
	})
}

// Download — GET /api/v1/files/{id}/download.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	rec, err := h.catalog.GetFile(chi.URLParam(r, "id"))
	if err != nil {
		errors.WriteStoreError(w, err)
		return
	}
	if !h.fs.Exists(rec.StoragePath) {
		errors.WriteError(w, http.StatusNotFound, errors.CodeFileMissing, "Файл отсутствует на диске")
		return
	}

	f, err := h.fs.Open(rec.StoragePath)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.CodeServerError, "Не удалось открыть файл")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", rec.MediaType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+rec.DisplayName+`"`)
	http.ServeContent(w, r, rec.DisplayName, rec.CreatedAt, f)
}

// Preview — GET /api/v1/files/{id}/preview. Изображения и PDF отдаются
// байтами, текстовые файлы — первыми 50 KB содержимого в JSON.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	rec, err := h.catalog.GetFile(chi.URLParam(r, "id"))
	if err != nil {
		errors.WriteStoreError(w, err)
		return
	}
	if !h.fs.Exists(rec.StoragePath) {
		errors.WriteError(w, http.StatusNotFound, errors.CodeFileMissing, "Файл отсутствует на диске")
		return
	}

	switch service.KindFor(rec.MediaType) {
	case service.PreviewInline:
		f, err := h.fs.Open(rec.StoragePath)
		if err != nil {
			errors.WriteError(w, http.StatusInternalServerError, errors.CodeServerError, "Не удалось открыть файл")
			return
		}
		defer f.Close()

		w.Header().Set("Content-Type", rec.MediaType)
		http.ServeContent(w, r, rec.DisplayName, rec.CreatedAt, f)

	case service.PreviewText:
		preview, err := h.preview.Text(rec)
		if err != nil {
			if stderrors.Is(err, service.ErrBinaryFile) {
				errors.WriteError(w, http.StatusBadRequest, errors.CodeBinaryFile, "Бинарный файл не поддерживает предпросмотр")
				return
			}
			errors.WriteError(w, http.StatusInternalServerError, errors.CodeServerError, "Не удалось прочитать файл")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"type":      "text",
			"content":   preview.Content,
			"truncated": preview.Truncated,
		})

	default:
		errors.WriteError(w, http.StatusBadRequest, errors.CodeUnsupported, "Предпросмотр не поддерживается для этого типа файла")
	}
}

// renameRequest — тело запроса переименования.
type renameRequest struct {
	Filename string `json:"filename"`
}

// Rename — PATCH /api/v1/files/{id}/rename.
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req renameRequest
	if err := decodeJSON(r, &req); err != nil || req.Filename == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.CodeInvalidName, "Новое имя файла обязательно")
		return
	}

	rec, err := h.catalog.RenameFile(id, req.Filename)
	if err != nil {
		errors.WriteStoreError(w, err)
		return
	}
	h.preview.Invalidate(id)

	writeJSON(w, http.StatusOK, toFileResponse(rec))
}

// Delete — DELETE /api/v1/files/{id}. Файл перемещается в корзину.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.lifecycle.Delete(id); err != nil {
		errors.WriteStoreError(w, err)
		return
	}
	h.preview.Invalidate(id)

	w.WriteHeader(http.StatusNoContent)
}

// Search — GET /api/v1/search. Параметры: query (обязательный), type.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.CodeEmptyQuery, "Поисковый запрос обязателен")
		return
	}

	found := h.catalog.SearchFiles(query, r.URL.Query().Get("type"))

	type searchItem struct {
		fileResponse
		RelevanceScore float64 `json:"relevance_score"`
	}
	results := make([]searchItem, 0, len(found))
	for i := range found {
		results = append(results, searchItem{
			fileResponse:   toFileResponse(&found[i].Record),
			RelevanceScore: found[i].Score,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"total":   len(results),
		"query":   query,
	})
}

// decodeJSON читает JSON-тело запроса.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
