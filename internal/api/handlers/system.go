// system.go — служебные endpoints: health, connection, stats,
// maintenance sweep.
package handlers

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/bigkaa/lanshare/internal/api/errors"
	"github.com/bigkaa/lanshare/internal/config"
)

// diskUsage — статистика дискового пространства директории данных.
type diskUsage struct {
	TotalGB float64 `json:"total_gb"`
	UsedGB  float64 `json:"used_gb"`
	FreeGB  float64 `json:"free_gb"`
}

// diskUsageFor возвращает статистику диска. Ошибка — нулевые значения.
func diskUsageFor(dir string) diskUsage {
	var st syscall.Statfs_t
	if err := syscall.Statfs(dir, &st); err != nil {
		return diskUsage{}
	}

	const gb = 1 << 30
	total := float64(st.Blocks) * float64(st.Bsize)
	free := float64(st.Bavail) * float64(st.Bsize)

	return diskUsage{
		TotalGB: round2(total / gb),
		UsedGB:  round2((total - free) / gb),
		FreeGB:  round2(free / gb),
	}
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

// Health — GET /health. Проверка живости сервиса.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"version":    config.Version,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"file_count": h.catalog.CountFiles(),
		"disk_space": diskUsageFor(h.fs.DataDir()),
	})
}

// Connection — GET /api/v1/connection. Адрес сервера в локальной сети.
func (h *Handler) Connection(w http.ResponseWriter, _ *http.Request) {
	ip := localIP()
	hostname, _ := os.Hostname()

	scheme := "http"
	if h.cfg.TLSCert != "" {
		scheme = "https"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ip":       ip,
		"port":     h.cfg.Port,
		"url":      fmt.Sprintf("%s://%s:%d", scheme, ip, h.cfg.Port),
		"hostname": hostname,
	})
}

// localIP определяет IP-адрес хоста в локальной сети через
// UDP-"подключение" к публичному DNS (данные не отправляются).
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "127.0.0.1"
	}
	return addr.IP.String()
}

// Stats — GET /api/v1/stats. Агрегированная статистика хранилища.
func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	stats := h.catalog.Statistics()

	writeJSON(w, http.StatusOK, map[string]any{
		"total_files":          stats.TotalFiles,
		"total_size":           stats.TotalSize,
		"total_size_formatted": formatFileSize(stats.TotalSize),
		"total_folders":        stats.TotalFolders,
		"type_breakdown":       stats.TypeBreakdown,
		"disk_space":           diskUsageFor(h.fs.DataDir()),
		"trash": map[string]any{
			"items":      h.trash.Count(),
			"total_size": h.trash.TotalSize(),
		},
	})
}

// Sweep — POST /api/v1/maintenance/sweep. Запуск сверки по запросу.
func (h *Handler) Sweep(w http.ResponseWriter, _ *http.Request) {
	result, skipped := h.sweep.RunOnce()
	if skipped {
		errors.WriteError(w, http.StatusConflict, errors.CodeSweepInProgress, "Sweep уже выполняется")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
