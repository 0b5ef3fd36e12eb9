// Пакет catalog — авторитетное хранилище активных файлов и папок.
//
// Единственный источник истины для отображения file-id → FileRecord
// и множества известных папок. Все мутации выполняются под одним
// мьютексом по схеме «прочитать состояние → изменить → сохранить»
// и долговечно записываются в catalog.json до возврата из вызова.
// Ошибка сохранения откатывает in-memory изменение, чтобы память
// и диск никогда не расходились.
//
// Повреждённый или отсутствующий catalog.json — не фатален:
// хранилище стартует с пустым состоянием.
package catalog

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/lanshare/internal/domain/model"
	"github.com/bigkaa/lanshare/internal/domain/storeerr"
	"github.com/bigkaa/lanshare/internal/storage/filestore"
	"github.com/bigkaa/lanshare/internal/storage/pathname"
	"github.com/bigkaa/lanshare/internal/storage/statefile"
)

// StateFileName — имя state-файла каталога в директории данных.
const StateFileName = ".catalog.json"

// state — персистентный формат catalog.json.
type state struct {
	Files   map[string]*model.FileRecord `json:"files"`
	Folders []string                     `json:"folders"`
}

// Store — хранилище каталога.
type Store struct {
	mu      sync.Mutex
	files   map[string]*model.FileRecord // file_id → record
	folders map[string]struct{}          // множество известных папок

	fs          *filestore.FileStore
	statePath   string
	maxFileSize int64
	logger      *slog.Logger
}

// New создаёт хранилище каталога и загружает состояние из catalog.json.
// Отсутствующий или повреждённый state-файл — пустое стартовое
// состояние (с warning в лог). Папка "root" присутствует всегда.
func New(fs *filestore.FileStore, maxFileSize int64, logger *slog.Logger) (*Store, error) {
	s := &Store{
		files:       make(map[string]*model.FileRecord),
		folders:     map[string]struct{}{model.RootFolder: {}},
		fs:          fs,
		statePath:   filepath.Join(fs.DataDir(), StateFileName),
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "catalog")),
	}

	var st state
	found, err := statefile.Load(s.statePath, &st)
	if err != nil {
		s.logger.Warn("Повреждённый catalog.json, старт с пустым каталогом",
			slog.String("error", err.Error()),
		)
		return s, nil
	}
	if !found {
		return s, nil
	}

	for id, rec := range st.Files {
		s.files[id] = rec
	}
	for _, folder := range st.Folders {
		s.folders[folder] = struct{}{}
	}
	s.folders[model.RootFolder] = struct{}{}

	s.logger.Info("Каталог загружен",
		slog.Int("files", len(s.files)),
		slog.Int("folders", len(s.folders)),
	)

	return s, nil
}

// persistLocked сохраняет текущее состояние в catalog.json.
// Вызывается только под мьютексом. Ошибка оборачивается в ErrDiskWrite;
// откат in-memory изменений — обязанность вызывающего метода.
func (s *Store) persistLocked() error {
	st := state{
		Files:   s.files,
		Folders: make([]string, 0, len(s.folders)),
	}
	for folder := range s.folders {
		st.Folders = append(st.Folders, folder)
	}
	sort.Strings(st.Folders)

	if err := statefile.Save(s.statePath, &st); err != nil {
		return fmt.Errorf("сохранение каталога: %w: %w", storeerr.ErrDiskWrite, err)
	}
	return nil
}

// namesInFolderLocked возвращает занятые display-имена внутри папки.
func (s *Store) namesInFolderLocked(folderPath string) map[string]struct{} {
	names := make(map[string]struct{})
	for _, rec := range s.files {
		if rec.FolderPath == folderPath {
			names[rec.DisplayName] = struct{}{}
		}
	}
	return names
}

// ensureFolderLocked проверяет известность папки. Неизвестная папка
// с материализованной физической директорией регистрируется неявно
// (директорию создал вызывающий слой); без директории — ErrNotFound.
func (s *Store) ensureFolderLocked(folderPath string) error {
	if _, ok := s.folders[folderPath]; ok {
		return nil
	}
	if !s.fs.DirExists(folderPath) {
		return fmt.Errorf("папка %q не известна и не материализована: %w", folderPath, storeerr.ErrNotFound)
	}
	s.folders[folderPath] = struct{}{}
	return nil
}

// storagePathFor строит storage-путь файла: {folder}/{id}_{name},
// для root — без префикса папки.
func storagePathFor(folderPath, id, displayName string) string {
	name := id + "_" + displayName
	if folderPath == model.RootFolder {
		return name
	}
	return folderPath + "/" + name
}

// mediaTypeFor определяет MIME-тип по расширению display-имени.
func mediaTypeFor(displayName string) string {
	mediaType := mime.TypeByExtension(filepath.Ext(displayName))
	if mediaType == "" {
		return "application/octet-stream"
	}
	// Убираем параметры (charset и т.д.)
	if i := strings.Index(mediaType, ";"); i != -1 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	return mediaType
}

// CreateFile создаёт новую запись файла.
//
// Поток:
//  1. Валидация папки (неявная регистрация материализованной)
//  2. Санитизация имени + разрешение коллизий внутри папки
//  3. Запись байтов через callback по пути, выбранному каталогом
//  4. Размер из stat после записи, проверка лимита
//  5. Добавление записи + персист; при ошибке персиста — полный откат
//
// declaredSize — заявленный размер (Content-Length), проверяется до
// записи; фактический размер берётся из stat и проверяется повторно.
func (s *Store) CreateFile(folderPath, originalName string, declaredSize int64, write func(io.Writer) error) (*model.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	folder, err := pathname.SanitizeFolderPath(folderPath)
	if err != nil {
		return nil, err
	}
	if err := s.ensureFolderLocked(folder); err != nil {
		return nil, err
	}

	name, err := pathname.Sanitize(originalName)
	if err != nil {
		return nil, err
	}
	name, err = pathname.ResolveCollision(name, s.namesInFolderLocked(folder))
	if err != nil {
		return nil, err
	}

	if declaredSize > s.maxFileSize {
		return nil, fmt.Errorf("заявленный размер %d байт превышает максимум %d: %w",
			declaredSize, s.maxFileSize, storeerr.ErrSizeLimit)
	}

	id := uuid.New().String()
	storagePath := storagePathFor(folder, id, name)

	size, err := s.fs.WriteFile(storagePath, write)
	if err != nil {
		return nil, fmt.Errorf("запись файла: %w: %w", storeerr.ErrDiskWrite, err)
	}

	if size > s.maxFileSize {
		_ = s.fs.Remove(storagePath)
		return nil, fmt.Errorf("размер файла %d байт превышает максимум %d: %w",
			size, s.maxFileSize, storeerr.ErrSizeLimit)
	}

	record := &model.FileRecord{
		ID:           id,
		DisplayName:  name,
		OriginalName: originalName,
		SizeBytes:    size,
		MediaType:    mediaTypeFor(name),
		FolderPath:   folder,
		StoragePath:  storagePath,
		CreatedAt:    time.Now().UTC(),
	}

	s.files[id] = record
	if err := s.persistLocked(); err != nil {
		delete(s.files, id)
		_ = s.fs.Remove(storagePath)
		return nil, err
	}

	s.logger.Info("Файл создан",
		slog.String("file_id", id),
		slog.String("display_name", name),
		slog.String("folder", folder),
		slog.Int64("size", size),
	)

	copied := *record
	return &copied, nil
}

// GetFile возвращает запись файла по идентификатору.
func (s *Store) GetFile(id string) (*model.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("файл %s: %w", id, storeerr.ErrNotFound)
	}
	copied := *rec
	return &copied, nil
}

// ListFiles возвращает отсортированный список файлов папки.
// typeFilter — категория фильтра ("" — без фильтра). Сортировка
// по имени (регистронезависимо), размеру или дате; равные элементы
// упорядочиваются по id для детерминизма. Чистое чтение.
func (s *Store) ListFiles(folderPath, typeFilter string, key model.SortKey, order model.SortOrder) []model.FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	folder, err := pathname.SanitizeFolderPath(folderPath)
	if err != nil {
		return nil
	}

	var result []model.FileRecord
	for _, rec := range s.files {
		if rec.FolderPath != folder {
			continue
		}
		if !rec.MatchesTypeFilter(typeFilter) {
			continue
		}
		result = append(result, *rec)
	}

	sortRecords(result, key, order)
	return result
}

// sortRecords сортирует записи по ключу с тай-брейком по id.
func sortRecords(records []model.FileRecord, key model.SortKey, order model.SortOrder) {
	desc := order == model.OrderDesc

	sort.Slice(records, func(i, j int) bool {
		a, b := &records[i], &records[j]

		var less, equal bool
		switch key {
		case model.SortByName:
			an, bn := strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName)
			less, equal = an < bn, an == bn
		case model.SortBySize:
			less, equal = a.SizeBytes < b.SizeBytes, a.SizeBytes == b.SizeBytes
		default: // date
			less, equal = a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
		}

		if equal {
			return a.ID < b.ID
		}
		if desc {
			return !less
		}
		return less
	})
}

// SearchResult — результат поиска с релевантностью.
type SearchResult struct {
	Record model.FileRecord `json:"record"`
	Score  float64          `json:"relevance_score"`
}

// SearchFiles ищет файлы по подстроке display-имени во всех папках.
// Совпадение с начала имени весит больше. Результаты упорядочены
// по убыванию релевантности, затем по id.
func (s *Store) SearchFiles(query, typeFilter string) []SearchResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	query = strings.ToLower(query)

	var results []SearchResult
	for _, rec := range s.files {
		name := strings.ToLower(rec.DisplayName)
		if !strings.Contains(name, query) {
			continue
		}
		if !rec.MatchesTypeFilter(typeFilter) {
			continue
		}
		score := 0.5
		if strings.HasPrefix(name, query) {
			score = 1.0
		}
		results = append(results, SearchResult{Record: *rec, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.ID < results[j].Record.ID
	})

	return results
}

// RenameFile переименовывает файл: санитизация нового имени,
// разрешение коллизии внутри той же папки, физическое переименование,
// затем обновление записи. Если физическое переименование или персист
// не удались, запись остаётся прежней — частичное переименование
// никогда не фиксируется.
func (s *Store) RenameFile(id, newName string) (*model.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("файл %s: %w", id, storeerr.ErrNotFound)
	}

	name, err := pathname.Sanitize(newName)
	if err != nil {
		return nil, err
	}

	// Собственное имя записи не считается коллизией
	existing := s.namesInFolderLocked(rec.FolderPath)
	delete(existing, rec.DisplayName)
	name, err = pathname.ResolveCollision(name, existing)
	if err != nil {
		return nil, err
	}

	oldPath := rec.StoragePath
	newPath := storagePathFor(rec.FolderPath, rec.ID, name)

	if err := s.fs.Rename(oldPath, newPath); err != nil {
		return nil, fmt.Errorf("переименование файла: %w: %w", storeerr.ErrDiskWrite, err)
	}

	oldName, oldMedia := rec.DisplayName, rec.MediaType
	rec.DisplayName = name
	rec.StoragePath = newPath
	rec.MediaType = mediaTypeFor(name)

	if err := s.persistLocked(); err != nil {
		// Откат: запись и физический файл возвращаются на место
		rec.DisplayName, rec.StoragePath, rec.MediaType = oldName, oldPath, oldMedia
		if rbErr := s.fs.Rename(newPath, oldPath); rbErr != nil {
			s.logger.Error("Не удалось откатить физическое переименование",
				slog.String("file_id", id),
				slog.String("error", rbErr.Error()),
			)
		}
		return nil, err
	}

	s.logger.Info("Файл переименован",
		slog.String("file_id", id),
		slog.String("old_name", oldName),
		slog.String("new_name", name),
	)

	copied := *rec
	return &copied, nil
}

// DeleteFile удаляет запись из активного множества и возвращает её.
// Диск и корзину не трогает — это обязанность координатора жизненного
// цикла.
func (s *Store) DeleteFile(id string) (*model.FileRecord, error) {
	return s.RemoveRecord(id, func(*model.FileRecord) error { return nil })
}

// RemoveRecord удаляет запись, выполняя перемещение байтов под
// мьютексом каталога: конкурирующее переименование не может
// вклиниться между чтением записи и перемещением. move вызывается
// с актуальным снимком записи; его ошибка отменяет удаление. При
// ошибке персиста запись остаётся в каталоге, а возврат байтов —
// за вызывающим (симметрично RestoreRecord).
func (s *Store) RemoveRecord(id string, move func(rec *model.FileRecord) error) (*model.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("файл %s: %w", id, storeerr.ErrNotFound)
	}

	copied := *rec
	if err := move(&copied); err != nil {
		return nil, err
	}

	delete(s.files, id)
	if err := s.persistLocked(); err != nil {
		s.files[id] = rec
		return nil, err
	}

	return &copied, nil
}

// RestoreRecord возвращает запись в каталог при восстановлении из
// корзины. Папка регистрируется заново при необходимости (физическую
// директорию пересоздаёт координатор до вызова), коллизия имени
// разрешается повторно. move вызывается с финальным storage-путём
// и обязан переместить байты на место; при ошибке персиста запись
// не фиксируется, а возврат байтов в корзину — за вызывающим.
func (s *Store) RestoreRecord(rec model.FileRecord, move func(storagePath string) error) (*model.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureFolderLocked(rec.FolderPath); err != nil {
		return nil, err
	}

	name, err := pathname.ResolveCollision(rec.DisplayName, s.namesInFolderLocked(rec.FolderPath))
	if err != nil {
		return nil, err
	}

	rec.DisplayName = name
	rec.StoragePath = storagePathFor(rec.FolderPath, rec.ID, name)

	if err := move(rec.StoragePath); err != nil {
		return nil, fmt.Errorf("перемещение байтов при восстановлении: %w: %w", storeerr.ErrDiskWrite, err)
	}

	restored := rec
	s.files[rec.ID] = &restored
	if err := s.persistLocked(); err != nil {
		delete(s.files, rec.ID)
		return nil, err
	}

	copied := restored
	return &copied, nil
}

// ListFolders возвращает отсортированное множество известных папок.
func (s *Store) ListFolders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	folders := make([]string, 0, len(s.folders))
	for folder := range s.folders {
		folders = append(folders, folder)
	}
	sort.Strings(folders)
	return folders
}

// Subfolders возвращает прямых потомков папки.
func (s *Store) Subfolders(folderPath string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	folder, err := pathname.SanitizeFolderPath(folderPath)
	if err != nil {
		return nil
	}

	var result []string
	for f := range s.folders {
		if f == model.RootFolder || f == folder {
			continue
		}
		if folder == model.RootFolder {
			if !strings.Contains(f, "/") {
				result = append(result, f)
			}
			continue
		}
		if strings.HasPrefix(f, folder+"/") && !strings.Contains(f[len(folder)+1:], "/") {
			result = append(result, f)
		}
	}
	sort.Strings(result)
	return result
}

// CreateFolder регистрирует новую папку. Физическую директорию
// материализует вызывающий слой до вызова; каталог проверяет
// материализацию как предусловие.
func (s *Store) CreateFolder(folderPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	folder, err := pathname.SanitizeFolderPath(folderPath)
	if err != nil {
		return err
	}
	if folder == model.RootFolder {
		return fmt.Errorf("папка %q: %w", folder, storeerr.ErrAlreadyExists)
	}
	if _, ok := s.folders[folder]; ok {
		return fmt.Errorf("папка %q: %w", folder, storeerr.ErrAlreadyExists)
	}
	if !s.fs.DirExists(folder) {
		return fmt.Errorf("директория папки %q не материализована: %w", folder, storeerr.ErrNotFound)
	}

	s.folders[folder] = struct{}{}
	if err := s.persistLocked(); err != nil {
		delete(s.folders, folder)
		return err
	}

	s.logger.Info("Папка создана", slog.String("folder", folder))
	return nil
}

// Stats — агрегированная статистика каталога.
type Stats struct {
	TotalFiles    int            `json:"total_files"`
	TotalSize     int64          `json:"total_size"`
	TotalFolders  int            `json:"total_folders"`
	TypeBreakdown map[string]int `json:"type_breakdown"`
}

// Statistics возвращает агрегаты по активным файлам: количество,
// суммарный размер, количество папок, распределение по типам иконок.
func (s *Store) Statistics() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		TotalFolders:  len(s.folders),
		TypeBreakdown: make(map[string]int),
	}
	for _, rec := range s.files {
		stats.TotalFiles++
		stats.TotalSize += rec.SizeBytes
		stats.TypeBreakdown[rec.Icon()]++
	}
	return stats
}

// CountFiles возвращает количество активных файлов.
func (s *Store) CountFiles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// AllRecords возвращает копии всех активных записей.
// Используется sweep для проверки наличия байтов на диске.
func (s *Store) AllRecords() []model.FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]model.FileRecord, 0, len(s.files))
	for _, rec := range s.files {
		result = append(result, *rec)
	}
	return result
}
