// preview.go — сервис текстового предпросмотра файлов.
//
// Текстовые файлы (text/*, application/json) отдаются первыми 50 KB
// содержимого; изображения и PDF выдаются байтами напрямую на уровне
// handlers. Прочитанные предпросмотры кэшируются в LRU с TTL —
// кэш инвалидируется при переименовании и удалении файла.
package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/lanshare/internal/domain/model"
	"github.com/bigkaa/lanshare/internal/storage/catalog"
	"github.com/bigkaa/lanshare/internal/storage/filestore"
)

// PreviewLimit — максимальный объём текстового предпросмотра.
const PreviewLimit = 50_000

// previewTTL — время жизни записи в кэше предпросмотров.
const previewTTL = 5 * time.Minute

// Ошибки предпросмотра
var (
	// ErrBinaryFile — файл не декодируется как UTF-8 текст.
	ErrBinaryFile = errors.New("бинарный файл не поддерживает текстовый предпросмотр")
	// ErrUnsupportedPreview — тип файла не поддерживает предпросмотр.
	ErrUnsupportedPreview = errors.New("предпросмотр не поддерживается для этого типа файла")
)

// Prometheus-метрики кэша предпросмотров.
var (
	previewCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ls_preview_cache_hits_total",
		Help: "Общее количество попаданий в кэш предпросмотров",
	})
	previewCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ls_preview_cache_misses_total",
		Help: "Общее количество промахов кэша предпросмотров",
	})
)

// PreviewKind — способ выдачи предпросмотра.
type PreviewKind int

const (
	// PreviewText — текстовое содержимое в JSON-ответе.
	PreviewText PreviewKind = iota
	// PreviewInline — байты файла напрямую (изображения, PDF).
	PreviewInline
	// PreviewUnsupported — предпросмотр невозможен.
	PreviewUnsupported
)

// KindFor определяет способ предпросмотра по MIME-типу.
func KindFor(mediaType string) PreviewKind {
	switch {
	case strings.HasPrefix(mediaType, "image/"), mediaType == "application/pdf":
		return PreviewInline
	case strings.HasPrefix(mediaType, "text/"), mediaType == "application/json":
		return PreviewText
	default:
		return PreviewUnsupported
	}
}

// TextPreview — текстовый предпросмотр файла.
type TextPreview struct {
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
}

// PreviewService — текстовые предпросмотры с LRU-кэшем.
type PreviewService struct {
	catalog *catalog.Store
	fs      *filestore.FileStore
	cache   *expirable.LRU[string, *TextPreview]
	logger  *slog.Logger
}

// NewPreviewService создаёт сервис предпросмотров.
// cacheSize — максимальное количество записей в LRU-кэше.
func NewPreviewService(cat *catalog.Store, fs *filestore.FileStore, cacheSize int, logger *slog.Logger) *PreviewService {
	return &PreviewService{
		catalog: cat,
		fs:      fs,
		cache:   expirable.NewLRU[string, *TextPreview](cacheSize, nil, previewTTL),
		logger:  logger.With(slog.String("component", "preview")),
	}
}

// Text возвращает текстовый предпросмотр записи: первые 50 KB
// содержимого. Невалидный UTF-8 — ErrBinaryFile.
func (p *PreviewService) Text(rec *model.FileRecord) (*TextPreview, error) {
	if cached, ok := p.cache.Get(rec.ID); ok {
		previewCacheHitsTotal.Inc()
		return cached, nil
	}
	previewCacheMissesTotal.Inc()

	f, err := p.fs.Open(rec.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("открытие файла для предпросмотра: %w", err)
	}
	defer f.Close()

	// +1 байт для детекции усечения
	buf := make([]byte, PreviewLimit+1)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("чтение файла для предпросмотра: %w", err)
	}

	truncated := n > PreviewLimit
	if truncated {
		n = PreviewLimit
	}
	content := buf[:n]

	// Усечение могло разрезать multibyte-символ — отбрасываем хвост
	if truncated {
		for i := 0; i < utf8.UTFMax-1 && !utf8.Valid(content); i++ {
			content = content[:len(content)-1]
		}
	}

	if !utf8.Valid(content) {
		return nil, ErrBinaryFile
	}

	preview := &TextPreview{
		Content:   string(content),
		Truncated: truncated,
	}
	p.cache.Add(rec.ID, preview)

	return preview, nil
}

// Invalidate удаляет предпросмотр из кэша. Вызывается при
// переименовании и удалении файла.
func (p *PreviewService) Invalidate(fileID string) {
	p.cache.Remove(fileID)
}
