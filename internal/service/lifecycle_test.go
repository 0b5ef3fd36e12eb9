package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/lanshare/internal/domain/storeerr"
	"github.com/bigkaa/lanshare/internal/storage/catalog"
	"github.com/bigkaa/lanshare/internal/storage/filestore"
	"github.com/bigkaa/lanshare/internal/storage/trash"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLifecycle(t *testing.T, retention time.Duration) (*Lifecycle, *catalog.Store, *trash.Store, *filestore.FileStore) {
	t.Helper()

	logger := discardLogger()
	fs, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}
	cat, err := catalog.New(fs, 1<<20, logger)
	if err != nil {
		t.Fatalf("ошибка создания каталога: %v", err)
	}
	tr, err := trash.New(fs.DataDir(), retention, fs.Remove, logger)
	if err != nil {
		t.Fatalf("ошибка создания корзины: %v", err)
	}

	return NewLifecycle(cat, tr, fs, logger), cat, tr, fs
}

func mustCreate(t *testing.T, cat *catalog.Store, folder, name string) string {
	t.Helper()
	rec, err := cat.CreateFile(folder, name, 1, func(w io.Writer) error {
		_, werr := io.WriteString(w, "данные файла")
		return werr
	})
	if err != nil {
		t.Fatalf("ошибка создания файла %s: %v", name, err)
	}
	return rec.ID
}

// TestDelete проверяет перевод файла в корзину: запись уходит из
// каталога, байты — в trash-директорию.
func TestDelete(t *testing.T) {
	lc, cat, tr, fs := newTestLifecycle(t, 24*time.Hour)

	id := mustCreate(t, cat, "root", "doomed.txt")

	entry, err := lc.Delete(id)
	if err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if entry == nil {
		t.Fatal("ожидалась запись корзины")
	}

	if _, err := cat.GetFile(id); !errors.Is(err, storeerr.ErrNotFound) {
		t.Error("запись должна исчезнуть из каталога")
	}
	if !fs.Exists(entry.TrashPath) {
		t.Error("байты должны лежать в trash-директории")
	}
	if tr.Count() != 1 {
		t.Errorf("в корзине должна быть 1 запись: %d", tr.Count())
	}
}

// TestDelete_NotFound проверяет удаление несуществующего файла.
func TestDelete_NotFound(t *testing.T) {
	lc, _, _, _ := newTestLifecycle(t, 24*time.Hour)

	if _, err := lc.Delete("no-such-id"); !errors.Is(err, storeerr.ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

// TestDelete_MissingBytes проверяет удаление записи, чьи байты
// пропали с диска: запись удаляется без помещения в корзину.
func TestDelete_MissingBytes(t *testing.T) {
	lc, cat, tr, fs := newTestLifecycle(t, 24*time.Hour)

	id := mustCreate(t, cat, "root", "ghost.txt")
	rec, err := cat.GetFile(id)
	if err != nil {
		t.Fatalf("подготовка: %v", err)
	}
	if err := os.Remove(fs.FullPath(rec.StoragePath)); err != nil {
		t.Fatalf("подготовка: %v", err)
	}

	entry, err := lc.Delete(id)
	if err != nil {
		t.Fatalf("удаление без байтов не должно падать: %v", err)
	}
	if entry != nil {
		t.Error("без байтов запись корзины не создаётся")
	}
	if _, err := cat.GetFile(id); !errors.Is(err, storeerr.ErrNotFound) {
		t.Error("запись должна исчезнуть из каталога")
	}
	if tr.Count() != 0 {
		t.Errorf("корзина должна остаться пустой: %d", tr.Count())
	}
}

// TestDelete_ConcurrentRename проверяет, что переименование не может
// вклиниться между чтением записи и перемещением байтов при удалении:
// после удаления байты либо лежат в trash-директории, либо удалены,
// но никогда не остаются сиротами в активной области.
func TestDelete_ConcurrentRename(t *testing.T) {
	lc, cat, _, fs := newTestLifecycle(t, 24*time.Hour)

	for i := 0; i < 30; i++ {
		id := mustCreate(t, cat, "root", fmt.Sprintf("contested_%d.txt", i))

		done := make(chan struct{})
		go func() {
			defer close(done)
			for j := 0; ; j++ {
				if _, err := cat.RenameFile(id, fmt.Sprintf("moved_%d_%d.txt", i, j)); err != nil {
					// Запись удалена конкурентом
					return
				}
			}
		}()

		if _, err := lc.Delete(id); err != nil {
			t.Fatalf("ошибка удаления: %v", err)
		}
		<-done

		entries, err := os.ReadDir(fs.DataDir())
		if err != nil {
			t.Fatalf("ошибка чтения директории данных: %v", err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), id+"_") {
				t.Fatalf("осиротевшие байты вне корзины: %s", e.Name())
			}
		}
	}
}

// TestRestore проверяет цикл удаление → восстановление.
func TestRestore(t *testing.T) {
	lc, cat, tr, fs := newTestLifecycle(t, 24*time.Hour)

	id := mustCreate(t, cat, "root", "precious.txt")
	if _, err := lc.Delete(id); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}

	rec, err := lc.Restore(id)
	if err != nil {
		t.Fatalf("ошибка восстановления: %v", err)
	}

	if rec.DisplayName != "precious.txt" {
		t.Errorf("имя без коллизии должно сохраниться: %s", rec.DisplayName)
	}
	if !fs.Exists(rec.StoragePath) {
		t.Error("байты должны вернуться на место")
	}
	if tr.Count() != 0 {
		t.Errorf("корзина должна опустеть: %d", tr.Count())
	}

	got, err := cat.GetFile(id)
	if err != nil {
		t.Fatalf("запись должна вернуться в каталог: %v", err)
	}
	if got.ID != id {
		t.Errorf("id восстановленной записи: %s", got.ID)
	}
}

// TestRestore_Collision проверяет повторное разрешение коллизии имени:
// пока файл лежал в корзине, его имя заняли.
func TestRestore_Collision(t *testing.T) {
	lc, cat, _, _ := newTestLifecycle(t, 24*time.Hour)

	id := mustCreate(t, cat, "root", "shared.txt")
	if _, err := lc.Delete(id); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}

	// Имя занимает новый файл
	mustCreate(t, cat, "root", "shared.txt")

	rec, err := lc.Restore(id)
	if err != nil {
		t.Fatalf("ошибка восстановления: %v", err)
	}
	if rec.DisplayName == "shared.txt" {
		t.Error("коллизия должна быть разрешена суффиксом")
	}
}

// TestRestore_Expired проверяет отказ восстановления просроченной записи.
func TestRestore_Expired(t *testing.T) {
	lc, cat, tr, fs := newTestLifecycle(t, -time.Hour)

	id := mustCreate(t, cat, "root", "late.txt")
	entry, err := lc.Delete(id)
	if err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}

	if _, err := lc.Restore(id); !errors.Is(err, storeerr.ErrExpired) {
		t.Errorf("ожидалась ErrExpired, получено %v", err)
	}
	// Запись вычищена, байты освобождены
	if tr.Count() != 0 {
		t.Errorf("просроченная запись должна быть вычищена: %d", tr.Count())
	}
	if fs.Exists(entry.TrashPath) {
		t.Error("байты просроченной записи должны быть освобождены")
	}
}

// TestRestore_RecreatesFolder проверяет пересоздание физической
// директории папки при восстановлении.
func TestRestore_RecreatesFolder(t *testing.T) {
	lc, cat, _, fs := newTestLifecycle(t, 24*time.Hour)

	if err := fs.MakeFolderDir("docs"); err != nil {
		t.Fatalf("подготовка: %v", err)
	}
	if err := cat.CreateFolder("docs"); err != nil {
		t.Fatalf("подготовка: %v", err)
	}

	id := mustCreate(t, cat, "docs", "nested.txt")
	if _, err := lc.Delete(id); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}

	// Физическая директория пропала
	if err := os.RemoveAll(fs.FolderDir("docs")); err != nil {
		t.Fatalf("подготовка: %v", err)
	}

	rec, err := lc.Restore(id)
	if err != nil {
		t.Fatalf("ошибка восстановления: %v", err)
	}
	if !fs.DirExists("docs") {
		t.Error("директория папки должна быть пересоздана")
	}
	if !fs.Exists(rec.StoragePath) {
		t.Error("байты должны вернуться в папку")
	}
}

// TestPurge проверяет окончательное удаление.
func TestPurge(t *testing.T) {
	lc, cat, tr, fs := newTestLifecycle(t, 24*time.Hour)

	id := mustCreate(t, cat, "root", "gone.txt")
	entry, err := lc.Delete(id)
	if err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}

	if err := lc.Purge(id); err != nil {
		t.Fatalf("ошибка purge: %v", err)
	}

	if fs.Exists(entry.TrashPath) {
		t.Error("байты должны быть удалены")
	}
	if tr.Count() != 0 {
		t.Errorf("корзина должна опустеть: %d", tr.Count())
	}
	if _, err := lc.Restore(id); !errors.Is(err, storeerr.ErrNotFound) {
		t.Errorf("восстановление после purge: ожидалась ErrNotFound, получено %v", err)
	}
}

// TestPurgeAll проверяет опустошение корзины со счётчиками.
func TestPurgeAll(t *testing.T) {
	lc, cat, _, _ := newTestLifecycle(t, 24*time.Hour)

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		id := mustCreate(t, cat, "root", name)
		if _, err := lc.Delete(id); err != nil {
			t.Fatalf("ошибка удаления %s: %v", name, err)
		}
	}

	count, bytes, err := lc.PurgeAll()
	if err != nil {
		t.Fatalf("ошибка очистки: %v", err)
	}
	if count != 3 {
		t.Errorf("ожидалось 3 записи, получено %d", count)
	}
	if bytes == 0 {
		t.Error("освобождённые байты должны быть подсчитаны")
	}
}

// TestDeleteMany проверяет пакетное удаление с частичными ошибками.
func TestDeleteMany(t *testing.T) {
	lc, cat, tr, _ := newTestLifecycle(t, 24*time.Hour)

	id1 := mustCreate(t, cat, "root", "one.txt")
	id2 := mustCreate(t, cat, "root", "two.txt")

	results := lc.DeleteMany([]string{id1, "bogus", id2})
	if len(results) != 3 {
		t.Fatalf("ожидалось 3 результата, получено %d", len(results))
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("существующие файлы должны удалиться: %v, %v", results[0].Err, results[2].Err)
	}
	if !errors.Is(results[1].Err, storeerr.ErrNotFound) {
		t.Errorf("bogus: ожидалась ErrNotFound, получено %v", results[1].Err)
	}
	if tr.Count() != 2 {
		t.Errorf("в корзине должно быть 2 записи: %d", tr.Count())
	}
}

// TestRestoreMany проверяет пакетное восстановление.
func TestRestoreMany(t *testing.T) {
	lc, cat, _, _ := newTestLifecycle(t, 24*time.Hour)

	id1 := mustCreate(t, cat, "root", "one.txt")
	id2 := mustCreate(t, cat, "root", "two.txt")
	for _, id := range []string{id1, id2} {
		if _, err := lc.Delete(id); err != nil {
			t.Fatalf("ошибка удаления: %v", err)
		}
	}

	results := lc.RestoreMany([]string{id1, id2, "bogus"})
	if results[0].Err != nil || results[1].Err != nil {
		t.Errorf("восстановление должно пройти: %v, %v", results[0].Err, results[1].Err)
	}
	if !errors.Is(results[2].Err, storeerr.ErrNotFound) {
		t.Errorf("bogus: ожидалась ErrNotFound, получено %v", results[2].Err)
	}

	if _, err := cat.GetFile(id1); err != nil {
		t.Errorf("файл должен вернуться в каталог: %v", err)
	}
}
