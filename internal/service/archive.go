// archive.go — сервис пакетной выгрузки файлов ZIP-архивом.
//
// Лимиты пакета: не более 100 файлов и 1 GiB суммарного размера.
// Состав пакета валидируется до начала записи архива, чтобы ошибка
// лимита не возникала посреди потоковой выдачи. Записи без байтов
// на диске молча пропускаются.
package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/klauspost/compress/zip"

	"github.com/bigkaa/lanshare/internal/domain/model"
	"github.com/bigkaa/lanshare/internal/domain/storeerr"
	"github.com/bigkaa/lanshare/internal/storage/catalog"
	"github.com/bigkaa/lanshare/internal/storage/filestore"
)

// Лимиты пакетной выгрузки
const (
	MaxBatchFiles = 100
	MaxBatchBytes = 1 << 30 // 1 GiB
)

// Ошибки валидации пакета
var (
	// ErrNoFiles — пустой список файлов.
	ErrNoFiles = errors.New("файлы не выбраны")
	// ErrTooManyFiles — превышен лимит количества файлов в пакете.
	ErrTooManyFiles = errors.New("превышен лимит количества файлов в пакете")
)

// ArchiveService — сборка ZIP-архивов из файлов каталога.
type ArchiveService struct {
	catalog *catalog.Store
	fs      *filestore.FileStore
	logger  *slog.Logger
}

// NewArchiveService создаёт сервис архивации.
func NewArchiveService(cat *catalog.Store, fs *filestore.FileStore, logger *slog.Logger) *ArchiveService {
	return &ArchiveService{
		catalog: cat,
		fs:      fs,
		logger:  logger.With(slog.String("component", "archive")),
	}
}

// resolve собирает записи пакета и валидирует лимиты.
// Неизвестные id и записи без байтов пропускаются.
func (a *ArchiveService) resolve(ids []string) ([]model.FileRecord, error) {
	if len(ids) == 0 {
		return nil, ErrNoFiles
	}
	if len(ids) > MaxBatchFiles {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyFiles, len(ids), MaxBatchFiles)
	}

	var (
		records   []model.FileRecord
		totalSize int64
	)
	for _, id := range ids {
		rec, err := a.catalog.GetFile(id)
		if err != nil {
			continue
		}
		if !a.fs.Exists(rec.StoragePath) {
			a.logger.Warn("Файл пропущен при архивации, байты отсутствуют",
				slog.String("file_id", id),
				slog.String("storage_path", rec.StoragePath),
			)
			continue
		}

		totalSize += rec.SizeBytes
		if totalSize > MaxBatchBytes {
			return nil, fmt.Errorf("суммарный размер пакета превышает %d байт: %w",
				int64(MaxBatchBytes), storeerr.ErrSizeLimit)
		}
		records = append(records, *rec)
	}

	return records, nil
}

// WriteZip валидирует пакет и потоково записывает ZIP-архив в w.
// Возвращает количество файлов в архиве. Лимиты проверяются до
// первого байта архива.
func (a *ArchiveService) WriteZip(w io.Writer, ids []string) (int, error) {
	records, err := a.resolve(ids)
	if err != nil {
		return 0, err
	}

	zw := zip.NewWriter(w)
	for _, rec := range records {
		f, err := a.fs.Open(rec.StoragePath)
		if err != nil {
			a.logger.Warn("Файл пропущен при записи архива",
				slog.String("file_id", rec.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		entry, err := zw.Create(rec.DisplayName)
		if err != nil {
			f.Close()
			zw.Close()
			return 0, fmt.Errorf("создание записи архива: %w", err)
		}
		if _, err := io.Copy(entry, f); err != nil {
			f.Close()
			zw.Close()
			return 0, fmt.Errorf("запись файла %s в архив: %w", rec.ID, err)
		}
		f.Close()
	}

	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("завершение архива: %w", err)
	}

	a.logger.Info("ZIP-архив собран", slog.Int("files", len(records)))
	return len(records), nil
}
