// handler.go — основной обработчик HTTP API и маршрутизация.
// Все endpoints монтируются под /api/v1, плюс служебные /health и /metrics.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/lanshare/internal/config"
	"github.com/bigkaa/lanshare/internal/domain/model"
	"github.com/bigkaa/lanshare/internal/service"
	"github.com/bigkaa/lanshare/internal/storage/catalog"
	"github.com/bigkaa/lanshare/internal/storage/filestore"
	"github.com/bigkaa/lanshare/internal/storage/trash"
)

// Handler — основной обработчик HTTP API.
type Handler struct {
	cfg       *config.Config
	catalog   *catalog.Store
	trash     *trash.Store
	lifecycle *service.Lifecycle
	archive   *service.ArchiveService
	preview   *service.PreviewService
	sweep     *service.SweepService
	fs        *filestore.FileStore
	logger    *slog.Logger
}

// New создаёт основной обработчик API.
func New(
	cfg *config.Config,
	cat *catalog.Store,
	tr *trash.Store,
	lc *service.Lifecycle,
	ar *service.ArchiveService,
	pv *service.PreviewService,
	sw *service.SweepService,
	fs *filestore.FileStore,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		cfg:       cfg,
		catalog:   cat,
		trash:     tr,
		lifecycle: lc,
		archive:   ar,
		preview:   pv,
		sweep:     sw,
		fs:        fs,
		logger:    logger.With(slog.String("component", "api_handler")),
	}
}

// Mount монтирует все маршруты API на роутер.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/connection", h.Connection)
		r.Get("/stats", h.Stats)

		r.Post("/upload", h.Upload)
		r.Get("/files", h.ListFiles)
		r.Get("/files/{id}/download", h.Download)
		r.Get("/files/{id}/preview", h.Preview)
		r.Patch("/files/{id}/rename", h.Rename)
		r.Delete("/files/{id}", h.Delete)
		r.Get("/search", h.Search)

		r.Get("/folders", h.ListFolders)
		r.Post("/folders", h.CreateFolder)

		r.Get("/trash", h.ListTrash)
		r.Post("/trash/clear", h.ClearTrash)
		r.Post("/trash/{id}/restore", h.RestoreTrash)
		r.Delete("/trash/{id}", h.PurgeTrash)

		r.Post("/batch/download", h.BatchDownload)
		r.Post("/batch/delete", h.BatchDelete)
		r.Post("/batch/restore", h.BatchRestore)

		r.Post("/maintenance/sweep", h.Sweep)
	})
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// formatFileSize форматирует размер в человекочитаемый вид.
func formatFileSize(sizeBytes int64) string {
	size := float64(sizeBytes)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f TB", size)
}

// fileResponse — представление файла в ответах API.
type fileResponse struct {
	ID               string `json:"id"`
	Filename         string `json:"filename"`
	OriginalFilename string `json:"original_filename"`
	Size             int64  `json:"size"`
	SizeFormatted    string `json:"size_formatted"`
	Type             string `json:"type"`
	Icon             string `json:"icon"`
	UploadDate       string `json:"upload_date"`
	FolderPath       string `json:"folder_path"`
	URL              string `json:"url"`
}

// toFileResponse строит представление файла из записи каталога.
func toFileResponse(rec *model.FileRecord) fileResponse {
	return fileResponse{
		ID:               rec.ID,
		Filename:         rec.DisplayName,
		OriginalFilename: rec.OriginalName,
		Size:             rec.SizeBytes,
		SizeFormatted:    formatFileSize(rec.SizeBytes),
		Type:             rec.MediaType,
		Icon:             rec.Icon(),
		UploadDate:       rec.CreatedAt.Format(time.RFC3339),
		FolderPath:       rec.FolderPath,
		URL:              "/api/v1/files/" + rec.ID + "/download",
	}
}
