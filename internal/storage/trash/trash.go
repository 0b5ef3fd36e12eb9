// Пакет trash — хранилище корзины с отложенным физическим удалением.
//
// Запись попадает в корзину при удалении файла и живёт в ней
// retention-интервал (по умолчанию 24 часа). Истечение срока
// проверяется лениво — при обращении к записи или перечислении
// корзины; фоновых тикеров нет. Просроченная запись вычищается
// ровно один раз: сначала удаляется из in-memory состояния,
// затем освобождаются байты через reclaim-callback.
//
// Состояние персистится в trash.json тем же wholesale-паттерном,
// что и каталог.
package trash

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bigkaa/lanshare/internal/domain/model"
	"github.com/bigkaa/lanshare/internal/domain/storeerr"
	"github.com/bigkaa/lanshare/internal/storage/statefile"
)

// StateFileName — имя state-файла корзины в директории данных.
const StateFileName = ".trash.json"

// ReclaimFunc освобождает байты записи корзины по trash-пути.
// Отсутствие байтов не считается ошибкой.
type ReclaimFunc func(trashPath string) error

// state — персистентный формат trash.json.
type state struct {
	Entries map[string]*model.TrashEntry `json:"entries"`
}

// Store — хранилище корзины.
type Store struct {
	mu      sync.Mutex
	entries map[string]*model.TrashEntry // file_id → entry

	statePath string
	retention time.Duration
	reclaim   ReclaimFunc
	logger    *slog.Logger

	// evicted — счётчик лениво вычищенных записей (для метрик)
	evictedFn func()
}

// New создаёт хранилище корзины и загружает trash.json.
// Повреждённый или отсутствующий state-файл — пустое стартовое состояние.
func New(dataDir string, retention time.Duration, reclaim ReclaimFunc, logger *slog.Logger) (*Store, error) {
	s := &Store{
		entries:   make(map[string]*model.TrashEntry),
		statePath: filepath.Join(dataDir, StateFileName),
		retention: retention,
		reclaim:   reclaim,
		logger:    logger.With(slog.String("component", "trash")),
		evictedFn: func() {},
	}

	var st state
	found, err := statefile.Load(s.statePath, &st)
	if err != nil {
		s.logger.Warn("Повреждённый trash.json, старт с пустой корзиной",
			slog.String("error", err.Error()),
		)
		return s, nil
	}
	if found {
		for id, entry := range st.Entries {
			s.entries[id] = entry
		}
		s.logger.Info("Корзина загружена", slog.Int("entries", len(s.entries)))
	}

	return s, nil
}

// OnEvict устанавливает callback, вызываемый при каждой ленивой
// вычистке (инкремент метрики ls_trash_evicted_total).
func (s *Store) OnEvict(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictedFn = fn
}

// persistLocked сохраняет trash.json. Вызывается под мьютексом.
func (s *Store) persistLocked() error {
	st := state{Entries: s.entries}
	if err := statefile.Save(s.statePath, &st); err != nil {
		return fmt.Errorf("сохранение корзины: %w: %w", storeerr.ErrDiskWrite, err)
	}
	return nil
}

// evictLocked вычищает просроченную запись: удаляет из памяти,
// освобождает байты. Первый шаг гарантирует ровно одну вычистку
// на запись. Вызывается под мьютексом.
func (s *Store) evictLocked(entry *model.TrashEntry) {
	delete(s.entries, entry.Record.ID)

	if err := s.reclaim(entry.TrashPath); err != nil {
		s.logger.Warn("Не удалось освободить байты просроченной записи",
			slog.String("file_id", entry.Record.ID),
			slog.String("trash_path", entry.TrashPath),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("Запись корзины вычищена по сроку",
		slog.String("file_id", entry.Record.ID),
		slog.String("display_name", entry.Record.DisplayName),
	)
	s.evictedFn()
}

// sweepExpiredLocked вычищает все просроченные записи и персистит
// состояние, если что-то было вычищено. Ошибка персиста здесь не
// фатальна: при рестарте просроченные записи вычистятся повторно,
// а освобождение уже отсутствующих байтов идемпотентно.
func (s *Store) sweepExpiredLocked(now time.Time) {
	evicted := 0
	for _, entry := range s.entries {
		if entry.IsExpired(now) {
			s.evictLocked(entry)
			evicted++
		}
	}
	if evicted > 0 {
		if err := s.persistLocked(); err != nil {
			s.logger.Warn("Не удалось сохранить корзину после вычистки",
				slog.String("error", err.Error()),
			)
		}
	}
}

// Put помещает запись удалённого файла в корзину. Байты к этому
// моменту уже перемещены в trash-директорию координатором;
// trashPath — их положение. Срок восстановления отсчитывается
// от текущего момента.
func (s *Store) Put(rec model.FileRecord, trashPath string) (*model.TrashEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	entry := &model.TrashEntry{
		Record:    rec,
		TrashPath: trashPath,
		DeletedAt: now,
		ExpiresAt: now.Add(s.retention),
	}

	s.entries[rec.ID] = entry
	if err := s.persistLocked(); err != nil {
		delete(s.entries, rec.ID)
		return nil, err
	}

	s.logger.Info("Файл помещён в корзину",
		slog.String("file_id", rec.ID),
		slog.String("display_name", rec.DisplayName),
		slog.Time("expires_at", entry.ExpiresAt),
	)

	copied := *entry
	return &copied, nil
}

// Get возвращает запись корзины. Просроченная запись вычищается
// на месте и возвращается ErrExpired.
func (s *Store) Get(id string) (*model.TrashEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("запись корзины %s: %w", id, storeerr.ErrNotFound)
	}

	if entry.IsExpired(time.Now().UTC()) {
		s.evictLocked(entry)
		if err := s.persistLocked(); err != nil {
			s.logger.Warn("Не удалось сохранить корзину после вычистки",
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("запись корзины %s: %w", id, storeerr.ErrExpired)
	}

	copied := *entry
	return &copied, nil
}

// List возвращает непросроченные записи корзины, новые первыми.
// Просроченные записи вычищаются по пути.
func (s *Store) List() []model.TrashEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepExpiredLocked(time.Now().UTC())

	result := make([]model.TrashEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		result = append(result, *entry)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].DeletedAt.Equal(result[j].DeletedAt) {
			return result[i].DeletedAt.After(result[j].DeletedAt)
		}
		return result[i].Record.ID < result[j].Record.ID
	})

	return result
}

// Remove изымает запись из корзины и возвращает её. Байты не
// трогает — ими распоряжается вызывающий (удаляет при purge,
// перемещает при restore).
func (s *Store) Remove(id string) (*model.TrashEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("запись корзины %s: %w", id, storeerr.ErrNotFound)
	}

	delete(s.entries, id)
	if err := s.persistLocked(); err != nil {
		s.entries[id] = entry
		return nil, err
	}

	copied := *entry
	return &copied, nil
}

// Clear опустошает корзину целиком. Изъятие записей персистится до
// освобождения байтов: ошибка сохранения откатывает очистку, не тронув
// ни одного файла. Ошибка освобождения отдельной записи логируется и
// не прерывает очистку — такие байты остаются в trash-директории
// сиротами до ближайшего sweep. Возвращает количество записей
// с освобождёнными байтами и их суммарный размер.
func (s *Store) Clear() (int, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.entries
	s.entries = make(map[string]*model.TrashEntry)
	if err := s.persistLocked(); err != nil {
		s.entries = snapshot
		return 0, 0, err
	}

	var (
		count int
		bytes int64
	)
	for id, entry := range snapshot {
		if err := s.reclaim(entry.TrashPath); err != nil {
			s.logger.Warn("Не удалось освободить байты при очистке корзины",
				slog.String("file_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		count++
		bytes += entry.Record.SizeBytes
	}

	s.logger.Info("Корзина очищена",
		slog.Int("entries", count),
		slog.Int64("bytes", bytes),
	)

	return count, bytes, nil
}

// Count возвращает количество записей в корзине (включая ещё не
// вычищенные просроченные).
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// TotalSize возвращает суммарный размер файлов в корзине.
func (s *Store) TotalSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, entry := range s.entries {
		total += entry.Record.SizeBytes
	}
	return total
}

// KnownTrashPaths возвращает множество trash-путей всех записей.
// Используется sweep для поиска осиротевших байтов.
func (s *Store) KnownTrashPaths() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make(map[string]struct{}, len(s.entries))
	for _, entry := range s.entries {
		paths[entry.TrashPath] = struct{}{}
	}
	return paths
}
