// sweep.go — сервис сверки хранилища с диском.
//
// Sweep выполняется при старте приложения и по запросу
// (POST /api/v1/maintenance/sweep). Сравнивает состояние каталога
// и корзины с фактическим содержимым диска:
//   - осиротевшие байты в trash-директории (нет записи корзины) — удаляются
//   - записи каталога без байтов на диске — логируются
//   - просроченные записи корзины — вычищаются
//
// Осиротевшие байты появляются в единственном сбойном окне: байты
// перемещены в trash-директорию, а запись корзины сохранить не
// удалось. Sweep закрывает это окно без журнала операций.
package service

import (
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/lanshare/internal/storage/catalog"
	"github.com/bigkaa/lanshare/internal/storage/filestore"
	"github.com/bigkaa/lanshare/internal/storage/trash"
)

// Prometheus метрики sweep
var (
	// sweepRunsTotal — количество запусков sweep.
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ls_sweep_runs_total",
		Help: "Общее количество запусков sweep",
	})

	// sweepOrphansRemovedTotal — количество удалённых осиротевших файлов.
	sweepOrphansRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ls_sweep_orphans_removed_total",
		Help: "Общее количество осиротевших файлов, удалённых sweep",
	})

	// sweepDurationSeconds — длительность выполнения sweep.
	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ls_sweep_duration_seconds",
		Help:    "Длительность выполнения sweep в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
)

// SweepResult — результат одного запуска sweep.
type SweepResult struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	// OrphansRemoved — удалённые осиротевшие файлы в trash-директории
	OrphansRemoved int `json:"orphans_removed"`
	// MissingFiles — записи каталога без байтов на диске
	MissingFiles int `json:"missing_files"`
	// ExpiredEvicted — вычищенные просроченные записи корзины
	ExpiredEvicted int `json:"expired_evicted"`
	// Errors — количество ошибок при обработке
	Errors int `json:"errors"`
}

// SweepService — сервис сверки хранилища.
type SweepService struct {
	catalog *catalog.Store
	trash   *trash.Store
	fs      *filestore.FileStore
	logger  *slog.Logger

	mu        sync.Mutex // защита от параллельного запуска
	inProcess bool
}

// NewSweepService создаёт сервис sweep.
func NewSweepService(cat *catalog.Store, tr *trash.Store, fs *filestore.FileStore, logger *slog.Logger) *SweepService {
	return &SweepService{
		catalog: cat,
		trash:   tr,
		fs:      fs,
		logger:  logger.With(slog.String("component", "sweep")),
	}
}

// RunOnce выполняет один цикл sweep.
// Потокобезопасен: если sweep уже выполняется, возвращает nil, true.
func (ss *SweepService) RunOnce() (*SweepResult, bool) {
	ss.mu.Lock()
	if ss.inProcess {
		ss.mu.Unlock()
		ss.logger.Warn("Sweep уже выполняется, пропуск")
		return nil, true
	}
	ss.inProcess = true
	ss.mu.Unlock()

	defer func() {
		ss.mu.Lock()
		ss.inProcess = false
		ss.mu.Unlock()
	}()

	result := &SweepResult{StartedAt: time.Now().UTC()}
	ss.logger.Info("Sweep начат")

	before := ss.trash.Count()
	ss.trash.List() // ленивая вычистка просроченных записей
	result.ExpiredEvicted = before - ss.trash.Count()

	ss.removeOrphans(result)
	ss.checkMissing(result)

	result.CompletedAt = time.Now().UTC()
	duration := result.CompletedAt.Sub(result.StartedAt)

	sweepRunsTotal.Inc()
	sweepOrphansRemovedTotal.Add(float64(result.OrphansRemoved))
	sweepDurationSeconds.Observe(duration.Seconds())

	ss.logger.Info("Sweep завершён",
		slog.Int("orphans_removed", result.OrphansRemoved),
		slog.Int("missing_files", result.MissingFiles),
		slog.Int("expired_evicted", result.ExpiredEvicted),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", duration),
	)

	return result, false
}

// removeOrphans удаляет из trash-директории байты без записи корзины.
func (ss *SweepService) removeOrphans(result *SweepResult) {
	names, err := ss.fs.ListTrashFiles()
	if err != nil {
		ss.logger.Error("Ошибка чтения trash-директории",
			slog.String("error", err.Error()),
		)
		result.Errors++
		return
	}

	known := ss.trash.KnownTrashPaths()
	for _, name := range names {
		trashPath := filestore.TrashDirName + "/" + name
		if _, ok := known[trashPath]; ok {
			continue
		}

		if err := ss.fs.Remove(trashPath); err != nil {
			ss.logger.Error("Ошибка удаления осиротевшего файла",
				slog.String("trash_path", trashPath),
				slog.String("error", err.Error()),
			)
			result.Errors++
			continue
		}

		ss.logger.Warn("Удалён осиротевший файл в корзине",
			slog.String("trash_path", trashPath),
		)
		result.OrphansRemoved++
	}
}

// checkMissing логирует записи каталога без байтов на диске.
// Записи не удаляются: решение остаётся за оператором.
func (ss *SweepService) checkMissing(result *SweepResult) {
	for _, rec := range ss.catalog.AllRecords() {
		if ss.fs.Exists(rec.StoragePath) {
			continue
		}
		ss.logger.Warn("Запись каталога без байтов на диске",
			slog.String("file_id", rec.ID),
			slog.String("display_name", rec.DisplayName),
			slog.String("storage_path", rec.StoragePath),
		)
		result.MissingFiles++
	}
}
