// lifecycle.go — координатор жизненного цикла файлов.
//
// Единственная точка переходов между каталогом и корзиной:
// удаление (каталог → корзина), восстановление (корзина → каталог),
// окончательное удаление (purge). Собственный мьютекс сериализует
// переходы целиком, чтобы конкурирующие операции над одним файлом
// не наблюдали промежуточные состояния. Внутри перехода каталог
// всегда трогается раньше корзины.
//
// Физические байты перемещаются раньше фиксации нового состояния:
// худший сбой оставляет байты в trash-директории без записи корзины,
// и осиротевшие байты подбирает sweep при следующем старте.
package service

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/lanshare/internal/api/middleware"
	"github.com/bigkaa/lanshare/internal/domain/model"
	"github.com/bigkaa/lanshare/internal/domain/storeerr"
	"github.com/bigkaa/lanshare/internal/storage/catalog"
	"github.com/bigkaa/lanshare/internal/storage/filestore"
	"github.com/bigkaa/lanshare/internal/storage/trash"
)

// Prometheus метрики корзины
var (
	// trashEvictedTotal — количество записей, вычищенных по сроку.
	trashEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ls_trash_evicted_total",
		Help: "Общее количество записей корзины, вычищенных по истечении срока",
	})
)

// Lifecycle — координатор переходов файлов между каталогом и корзиной.
type Lifecycle struct {
	mu      sync.Mutex
	catalog *catalog.Store
	trash   *trash.Store
	fs      *filestore.FileStore
	logger  *slog.Logger
}

// NewLifecycle создаёт координатор и подключает метрику вычисток корзины.
func NewLifecycle(cat *catalog.Store, tr *trash.Store, fs *filestore.FileStore, logger *slog.Logger) *Lifecycle {
	tr.OnEvict(func() { trashEvictedTotal.Inc() })

	return &Lifecycle{
		catalog: cat,
		trash:   tr,
		fs:      fs,
		logger:  logger.With(slog.String("component", "lifecycle")),
	}
}

// observe фиксирует результат операции в метриках и обновляет gauges.
func (l *Lifecycle) observe(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	middleware.OperationsTotal.WithLabelValues(operation, result).Inc()
	l.updateGauges()
}

// updateGauges пересчитывает gauges состояния хранилища.
func (l *Lifecycle) updateGauges() {
	stats := l.catalog.Statistics()
	middleware.FilesTotal.WithLabelValues("active").Set(float64(stats.TotalFiles))
	middleware.FilesTotal.WithLabelValues("trash").Set(float64(l.trash.Count()))
	middleware.StorageBytes.Set(float64(stats.TotalSize + l.trash.TotalSize()))
}

// Delete переводит файл из каталога в корзину.
//
// Байты перемещаются в trash-директорию под мьютексом каталога
// (catalog.RemoveRecord): конкурирующее переименование не может
// сдвинуть их между чтением записи и перемещением. Если запись
// корзины создать не удалось, удаление всё равно считается
// состоявшимся: байты остаются в trash-директории как сироты, их
// подберёт sweep. Отсутствие байтов на диске не блокирует удаление
// записи.
func (l *Lifecycle) Delete(id string) (entry *model.TrashEntry, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer func() { l.observe("delete", err) }()

	var (
		trashPath  string
		activePath string
		bytesMoved bool
	)
	removed, err := l.catalog.RemoveRecord(id, func(rec *model.FileRecord) error {
		activePath = rec.StoragePath

		var moveErr error
		trashPath, moveErr = l.fs.MoveToTrash(rec.StoragePath, rec.ID+"_"+rec.DisplayName)
		if moveErr != nil {
			if l.fs.Exists(rec.StoragePath) {
				return fmt.Errorf("перемещение в корзину: %w: %w", storeerr.ErrDiskWrite, moveErr)
			}
			// Байтов уже нет — удаляем только запись
			l.logger.Warn("Байты файла отсутствуют на диске, удаляется только запись",
				slog.String("file_id", id),
				slog.String("storage_path", rec.StoragePath),
			)
			return nil
		}
		bytesMoved = true
		return nil
	})
	if err != nil {
		if bytesMoved {
			// Ошибка персиста: запись осталась в каталоге,
			// возвращаем байты на место
			if rbErr := l.fs.RestoreFromTrash(trashPath, activePath); rbErr != nil {
				l.logger.Error("Не удалось вернуть байты из корзины при откате",
					slog.String("file_id", id),
					slog.String("error", rbErr.Error()),
				)
			}
		}
		return nil, err
	}

	if !bytesMoved {
		return nil, nil
	}

	entry, err = l.trash.Put(*removed, trashPath)
	if err != nil {
		// Запись каталога уже удалена; байты остаются сиротами
		// в trash-директории до ближайшего sweep
		l.logger.Error("Не удалось создать запись корзины, байты осиротели",
			slog.String("file_id", id),
			slog.String("trash_path", trashPath),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}

	return entry, nil
}

// Restore возвращает файл из корзины в каталог. Просроченная запись
// вычищается и возвращается ErrExpired. Папка назначения пересоздаётся,
// если была удалена; коллизия имени разрешается заново.
func (l *Lifecycle) Restore(id string) (rec *model.FileRecord, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer func() { l.observe("restore", err) }()

	entry, err := l.trash.Get(id)
	if err != nil {
		return nil, err
	}

	if !l.fs.DirExists(entry.Record.FolderPath) {
		if err = l.fs.MakeFolderDir(entry.Record.FolderPath); err != nil {
			return nil, fmt.Errorf("пересоздание папки: %w: %w", storeerr.ErrDiskWrite, err)
		}
	}

	var movedTo string
	rec, err = l.catalog.RestoreRecord(entry.Record, func(storagePath string) error {
		if mvErr := l.fs.RestoreFromTrash(entry.TrashPath, storagePath); mvErr != nil {
			return mvErr
		}
		movedTo = storagePath
		return nil
	})
	if err != nil {
		// Если байты уже ушли из корзины — возвращаем их обратно
		if movedTo != "" {
			if rbErr := l.fs.Rename(movedTo, entry.TrashPath); rbErr != nil {
				l.logger.Error("Не удалось вернуть байты в корзину при откате",
					slog.String("file_id", id),
					slog.String("error", rbErr.Error()),
				)
			}
		}
		return nil, err
	}

	if _, rmErr := l.trash.Remove(id); rmErr != nil {
		// Запись корзины ссылается на уже отсутствующие байты;
		// её ленивое освобождение идемпотентно
		l.logger.Warn("Не удалось изъять запись корзины после восстановления",
			slog.String("file_id", id),
			slog.String("error", rmErr.Error()),
		)
	}

	l.logger.Info("Файл восстановлен из корзины",
		slog.String("file_id", id),
		slog.String("display_name", rec.DisplayName),
	)

	return rec, nil
}

// Purge окончательно удаляет запись из корзины вместе с байтами.
// Ошибка удаления байтов не отменяет изъятие записи: сироту
// подберёт sweep.
func (l *Lifecycle) Purge(id string) (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer func() { l.observe("purge", err) }()

	entry, err := l.trash.Remove(id)
	if err != nil {
		return err
	}

	if rmErr := l.fs.Remove(entry.TrashPath); rmErr != nil {
		l.logger.Warn("Не удалось удалить байты при purge",
			slog.String("file_id", id),
			slog.String("trash_path", entry.TrashPath),
			slog.String("error", rmErr.Error()),
		)
	}

	l.logger.Info("Файл окончательно удалён",
		slog.String("file_id", id),
		slog.String("display_name", entry.Record.DisplayName),
	)

	return nil
}

// PurgeAll опустошает корзину. Возвращает количество изъятых записей
// и сумму освобождённых байтов.
func (l *Lifecycle) PurgeAll() (count int, bytes int64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer func() { l.observe("purge_all", err) }()

	return l.trash.Clear()
}

// BatchResult — результат операции над одним файлом в пакете.
type BatchResult struct {
	ID  string
	Err error
}

// DeleteMany удаляет файлы пакетом. Каждый файл обрабатывается
// независимо: ошибка одного не прерывает остальные.
func (l *Lifecycle) DeleteMany(ids []string) []BatchResult {
	results := make([]BatchResult, 0, len(ids))
	for _, id := range ids {
		_, err := l.Delete(id)
		results = append(results, BatchResult{ID: id, Err: err})
	}
	return results
}

// RestoreMany восстанавливает файлы пакетом.
func (l *Lifecycle) RestoreMany(ids []string) []BatchResult {
	results := make([]BatchResult, 0, len(ids))
	for _, id := range ids {
		_, err := l.Restore(id)
		results = append(results, BatchResult{ID: id, Err: err})
	}
	return results
}
