// Пакет model — доменные модели файлового каталога.
// FileRecord — запись активного файла, единый формат для in-memory
// каталога и для catalog.json на диске. TrashEntry — снимок записи
// в корзине с таймером восстановления.
package model

import (
	"path/filepath"
	"strings"
	"time"
)

// RootFolder — логический идентификатор корневой папки.
const RootFolder = "root"

// FileRecord — метаданные активного файла.
// Поле StoragePath не возвращается в API, оно принадлежит каталогу
// и связывает запись с физическим файлом на диске.
type FileRecord struct {
	// ID — уникальный идентификатор файла (UUID v4), неизменяемый
	ID string `json:"id"`

	// DisplayName — санитизированное имя файла, уникальное внутри папки
	DisplayName string `json:"display_name"`

	// OriginalName — имя файла при загрузке, только для отображения
	OriginalName string `json:"original_name"`

	// SizeBytes — размер файла в байтах (из stat после записи)
	SizeBytes int64 `json:"size_bytes"`

	// MediaType — MIME-тип, определённый по расширению
	MediaType string `json:"media_type"`

	// FolderPath — логическая папка ("root" или "a/b/c")
	FolderPath string `json:"folder_path"`

	// StoragePath — путь файла относительно директории данных.
	// Не возвращается в API.
	StoragePath string `json:"storage_path"`

	// CreatedAt — дата и время загрузки (UTC)
	CreatedAt time.Time `json:"created_at"`
}

// TrashEntry — запись корзины: снимок FileRecord на момент удаления
// плюс путь перемещённых байтов и таймер восстановления.
type TrashEntry struct {
	// Record — снимок записи на момент удаления
	Record FileRecord `json:"record"`

	// TrashPath — путь байтов в trash-директории (относительно данных)
	TrashPath string `json:"trash_path"`

	// DeletedAt — момент удаления (UTC)
	DeletedAt time.Time `json:"deleted_at"`

	// ExpiresAt — момент истечения: DeletedAt + retention
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired проверяет, истёк ли срок восстановления записи.
func (e *TrashEntry) IsExpired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// SortKey — ключ сортировки списка файлов.
type SortKey string

const (
	// SortByName — по имени, регистронезависимо
	SortByName SortKey = "name"
	// SortBySize — по размеру в байтах
	SortBySize SortKey = "size"
	// SortByDate — по дате загрузки
	SortByDate SortKey = "date"
)

// SortOrder — направление сортировки.
type SortOrder string

const (
	// OrderAsc — по возрастанию
	OrderAsc SortOrder = "asc"
	// OrderDesc — по убыванию
	OrderDesc SortOrder = "desc"
)

// typeFilters — соответствие категории фильтра и MIME-типов.
// Категории повторяют фильтры веб-интерфейса.
var typeFilters = map[string][]string{
	"images": {"image/png", "image/jpeg", "image/gif", "image/webp"},
	"documents": {
		"application/pdf", "application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"text/plain", "text/markdown",
	},
	"text":  {"text/plain", "text/markdown", "application/json", "text/csv"},
	"media": {"audio/mpeg", "audio/wav", "video/mp4", "video/avi"},
}

// MatchesTypeFilter проверяет, попадает ли MIME-тип записи в категорию.
// Неизвестная категория не фильтрует ничего (возвращает true).
func (r *FileRecord) MatchesTypeFilter(filter string) bool {
	if filter == "" {
		return true
	}
	allowed, ok := typeFilters[filter]
	if !ok {
		return true
	}
	mediaType := r.MediaType
	if i := strings.Index(mediaType, ";"); i != -1 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	for _, t := range allowed {
		if mediaType == t {
			return true
		}
	}
	return false
}

// iconMap — соответствие расширения файла и класса иконки UI.
var iconMap = map[string]string{
	"pdf": "file-text", "doc": "file-text", "docx": "file-text",
	"txt": "file-text", "md": "file-text",
	"json": "code",
	"csv":  "table", "xlsx": "table", "xls": "table",
	"png": "image", "jpg": "image", "jpeg": "image", "gif": "image",
	"mp3": "music", "wav": "music",
	"mp4": "video", "avi": "video", "mov": "video",
	"zip": "archive", "tar": "archive", "gz": "archive",
}

// Icon возвращает класс иконки для отображения записи в UI.
func (r *FileRecord) Icon() string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(r.DisplayName), "."))
	if icon, ok := iconMap[ext]; ok {
		return icon
	}
	return "file"
}
