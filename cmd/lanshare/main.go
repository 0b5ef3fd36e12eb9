// Точка входа lanshare — сервера обмена файлами в локальной сети.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/lanshare/internal/api/handlers"
	"github.com/bigkaa/lanshare/internal/config"
	"github.com/bigkaa/lanshare/internal/server"
	"github.com/bigkaa/lanshare/internal/service"
	"github.com/bigkaa/lanshare/internal/storage/catalog"
	"github.com/bigkaa/lanshare/internal/storage/filestore"
	"github.com/bigkaa/lanshare/internal/storage/trash"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("lanshare запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("data_dir", cfg.DataDir),
		slog.Duration("trash_retention", cfg.TrashRetention),
	)

	// --- Инициализация компонентов ---

	// 1. Файловое хранилище
	fs, err := filestore.New(cfg.DataDir)
	if err != nil {
		logger.Error("Ошибка инициализации FileStore", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Каталог активных файлов
	cat, err := catalog.New(fs, cfg.MaxFileSize, logger)
	if err != nil {
		logger.Error("Ошибка инициализации каталога", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 3. Корзина: байты освобождаются удалением из trash-директории
	tr, err := trash.New(fs.DataDir(), cfg.TrashRetention, fs.Remove, logger)
	if err != nil {
		logger.Error("Ошибка инициализации корзины", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Сервисный слой
	lc := service.NewLifecycle(cat, tr, fs, logger)
	ar := service.NewArchiveService(cat, fs, logger)
	pv := service.NewPreviewService(cat, fs, cfg.PreviewCacheSize, logger)
	sw := service.NewSweepService(cat, tr, fs, logger)

	// 5. Стартовый sweep: вычистка просроченных записей корзины
	// и осиротевших байтов после возможного сбоя
	if result, skipped := sw.RunOnce(); !skipped && (result.OrphansRemoved > 0 || result.MissingFiles > 0) {
		logger.Warn("Стартовый sweep обнаружил расхождения",
			slog.Int("orphans_removed", result.OrphansRemoved),
			slog.Int("missing_files", result.MissingFiles),
		)
	}

	// 6. HTTP-сервер
	h := handlers.New(cfg, cat, tr, lc, ar, pv, sw, fs, logger)
	srv := server.New(cfg, logger, h)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
