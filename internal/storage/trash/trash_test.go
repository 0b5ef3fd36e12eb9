package trash

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bigkaa/lanshare/internal/domain/model"
	"github.com/bigkaa/lanshare/internal/domain/storeerr"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRecord(id, name string) model.FileRecord {
	return model.FileRecord{
		ID:          id,
		DisplayName: name,
		SizeBytes:   100,
		FolderPath:  model.RootFolder,
		StoragePath: id + "_" + name,
		CreatedAt:   time.Now().UTC(),
	}
}

// TestPutGet проверяет помещение в корзину и чтение записи.
func TestPutGet(t *testing.T) {
	s, err := New(t.TempDir(), 24*time.Hour, func(string) error { return nil }, discardLogger())
	if err != nil {
		t.Fatalf("ошибка создания корзины: %v", err)
	}

	rec := testRecord("id-1", "doc.txt")
	entry, err := s.Put(rec, ".trash/id-1_doc.txt")
	if err != nil {
		t.Fatalf("ошибка помещения в корзину: %v", err)
	}

	if entry.ExpiresAt.Sub(entry.DeletedAt) != 24*time.Hour {
		t.Errorf("срок восстановления: %v", entry.ExpiresAt.Sub(entry.DeletedAt))
	}

	got, err := s.Get("id-1")
	if err != nil {
		t.Fatalf("ошибка чтения записи: %v", err)
	}
	if got.Record.DisplayName != "doc.txt" {
		t.Errorf("display_name: %s", got.Record.DisplayName)
	}
	if got.TrashPath != ".trash/id-1_doc.txt" {
		t.Errorf("trash_path: %s", got.TrashPath)
	}

	if _, err := s.Get("no-such-id"); !errors.Is(err, storeerr.ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

// TestGet_Expired проверяет ленивую вычистку: просроченная запись
// вычищается при обращении, байты освобождаются ровно один раз.
func TestGet_Expired(t *testing.T) {
	reclaimed := 0
	// Отрицательный retention — запись просрочена сразу после Put
	s, err := New(t.TempDir(), -time.Hour, func(string) error {
		reclaimed++
		return nil
	}, discardLogger())
	if err != nil {
		t.Fatalf("ошибка создания корзины: %v", err)
	}

	if _, err := s.Put(testRecord("id-1", "old.txt"), ".trash/id-1_old.txt"); err != nil {
		t.Fatalf("ошибка помещения: %v", err)
	}

	if _, err := s.Get("id-1"); !errors.Is(err, storeerr.ErrExpired) {
		t.Errorf("ожидалась ErrExpired, получено %v", err)
	}
	if reclaimed != 1 {
		t.Errorf("байты должны быть освобождены ровно один раз: %d", reclaimed)
	}

	// Повторное обращение — запись уже вычищена
	if _, err := s.Get("id-1"); !errors.Is(err, storeerr.ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound после вычистки, получено %v", err)
	}
	if reclaimed != 1 {
		t.Errorf("повторного освобождения быть не должно: %d", reclaimed)
	}
}

// TestList проверяет порядок (новые первыми) и вычистку просроченных.
func TestList(t *testing.T) {
	s, err := New(t.TempDir(), 24*time.Hour, func(string) error { return nil }, discardLogger())
	if err != nil {
		t.Fatalf("ошибка создания корзины: %v", err)
	}

	if _, err := s.Put(testRecord("id-a", "first.txt"), ".trash/a"); err != nil {
		t.Fatalf("ошибка помещения: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := s.Put(testRecord("id-b", "second.txt"), ".trash/b"); err != nil {
		t.Fatalf("ошибка помещения: %v", err)
	}

	entries := s.List()
	if len(entries) != 2 {
		t.Fatalf("ожидалось 2 записи, получено %d", len(entries))
	}
	if entries[0].Record.ID != "id-b" {
		t.Errorf("новые записи должны идти первыми: %s", entries[0].Record.ID)
	}
}

// TestList_SweepsExpired проверяет, что List вычищает просроченные записи.
func TestList_SweepsExpired(t *testing.T) {
	reclaimed := 0
	s, err := New(t.TempDir(), -time.Hour, func(string) error {
		reclaimed++
		return nil
	}, discardLogger())
	if err != nil {
		t.Fatalf("ошибка создания корзины: %v", err)
	}

	if _, err := s.Put(testRecord("id-1", "a.txt"), ".trash/a"); err != nil {
		t.Fatalf("ошибка помещения: %v", err)
	}
	if _, err := s.Put(testRecord("id-2", "b.txt"), ".trash/b"); err != nil {
		t.Fatalf("ошибка помещения: %v", err)
	}

	entries := s.List()
	if len(entries) != 0 {
		t.Errorf("просроченные записи не должны попадать в список: %v", entries)
	}
	if reclaimed != 2 {
		t.Errorf("ожидалось освобождение 2 записей: %d", reclaimed)
	}
	if s.Count() != 0 {
		t.Errorf("корзина должна опустеть: %d", s.Count())
	}
}

// TestRemove проверяет изъятие записи без освобождения байтов.
func TestRemove(t *testing.T) {
	reclaimed := 0
	s, err := New(t.TempDir(), 24*time.Hour, func(string) error {
		reclaimed++
		return nil
	}, discardLogger())
	if err != nil {
		t.Fatalf("ошибка создания корзины: %v", err)
	}

	if _, err := s.Put(testRecord("id-1", "doc.txt"), ".trash/x"); err != nil {
		t.Fatalf("ошибка помещения: %v", err)
	}

	entry, err := s.Remove("id-1")
	if err != nil {
		t.Fatalf("ошибка изъятия: %v", err)
	}
	if entry.TrashPath != ".trash/x" {
		t.Errorf("trash_path: %s", entry.TrashPath)
	}
	// Байтами распоряжается вызывающий
	if reclaimed != 0 {
		t.Errorf("Remove не должен освобождать байты: %d", reclaimed)
	}

	if _, err := s.Remove("id-1"); !errors.Is(err, storeerr.ErrNotFound) {
		t.Errorf("повторное изъятие: ожидалась ErrNotFound, получено %v", err)
	}
}

// TestClear проверяет полную очистку корзины со счётчиками.
func TestClear(t *testing.T) {
	var reclaimedPaths []string
	s, err := New(t.TempDir(), 24*time.Hour, func(p string) error {
		reclaimedPaths = append(reclaimedPaths, p)
		return nil
	}, discardLogger())
	if err != nil {
		t.Fatalf("ошибка создания корзины: %v", err)
	}

	for _, id := range []string{"id-1", "id-2", "id-3"} {
		if _, err := s.Put(testRecord(id, id+".txt"), ".trash/"+id); err != nil {
			t.Fatalf("ошибка помещения: %v", err)
		}
	}

	count, bytes, err := s.Clear()
	if err != nil {
		t.Fatalf("ошибка очистки: %v", err)
	}
	if count != 3 {
		t.Errorf("ожидалось 3 записи, получено %d", count)
	}
	if bytes != 300 {
		t.Errorf("ожидалось 300 байт, получено %d", bytes)
	}
	if len(reclaimedPaths) != 3 {
		t.Errorf("освобождённые пути: %v", reclaimedPaths)
	}
	if s.Count() != 0 {
		t.Errorf("корзина должна опустеть: %d", s.Count())
	}
}

// TestClear_ReclaimFailure проверяет, что ошибка освобождения одной
// записи не прерывает очистку.
func TestClear_ReclaimFailure(t *testing.T) {
	s, err := New(t.TempDir(), 24*time.Hour, func(p string) error {
		if p == ".trash/bad" {
			return errors.New("диск недоступен")
		}
		return nil
	}, discardLogger())
	if err != nil {
		t.Fatalf("ошибка создания корзины: %v", err)
	}

	if _, err := s.Put(testRecord("id-good", "good.txt"), ".trash/good"); err != nil {
		t.Fatalf("ошибка помещения: %v", err)
	}
	if _, err := s.Put(testRecord("id-bad", "bad.txt"), ".trash/bad"); err != nil {
		t.Fatalf("ошибка помещения: %v", err)
	}

	count, _, err := s.Clear()
	if err != nil {
		t.Fatalf("очистка не должна падать: %v", err)
	}
	if count != 1 {
		t.Errorf("успешно освобождена должна быть 1 запись: %d", count)
	}
	if s.Count() != 0 {
		t.Error("записи изымаются независимо от результата освобождения")
	}
}

// TestClear_PersistFailure проверяет откат очистки при ошибке
// сохранения состояния: записи остаются в корзине, байты не трогаются.
func TestClear_PersistFailure(t *testing.T) {
	dir := t.TempDir()
	reclaimed := 0
	s, err := New(dir, 24*time.Hour, func(string) error {
		reclaimed++
		return nil
	}, discardLogger())
	if err != nil {
		t.Fatalf("ошибка создания корзины: %v", err)
	}

	if _, err := s.Put(testRecord("id-1", "a.txt"), ".trash/a"); err != nil {
		t.Fatalf("ошибка помещения: %v", err)
	}

	// Состояние невозможно сохранить: место state-файла занято директорией
	statePath := filepath.Join(dir, StateFileName)
	if err := os.Remove(statePath); err != nil {
		t.Fatalf("подготовка: %v", err)
	}
	if err := os.Mkdir(statePath, 0o750); err != nil {
		t.Fatalf("подготовка: %v", err)
	}

	if _, _, err := s.Clear(); err == nil {
		t.Fatal("ожидалась ошибка сохранения состояния")
	}
	if reclaimed != 0 {
		t.Errorf("байты не должны освобождаться при ошибке сохранения: %d", reclaimed)
	}
	if s.Count() != 1 {
		t.Errorf("запись должна остаться в корзине: %d", s.Count())
	}
}

// TestPersistence проверяет, что корзина переживает пересоздание.
func TestPersistence(t *testing.T) {
	dir := t.TempDir()
	noop := func(string) error { return nil }

	s1, err := New(dir, 24*time.Hour, noop, discardLogger())
	if err != nil {
		t.Fatalf("ошибка создания корзины: %v", err)
	}
	if _, err := s1.Put(testRecord("id-1", "keep.txt"), ".trash/keep"); err != nil {
		t.Fatalf("ошибка помещения: %v", err)
	}

	s2, err := New(dir, 24*time.Hour, noop, discardLogger())
	if err != nil {
		t.Fatalf("ошибка пересоздания корзины: %v", err)
	}

	got, err := s2.Get("id-1")
	if err != nil {
		t.Fatalf("запись должна пережить перезапуск: %v", err)
	}
	if got.Record.DisplayName != "keep.txt" {
		t.Errorf("display_name: %s", got.Record.DisplayName)
	}
}

// TestOnEvict проверяет вызов callback метрики при вычистке.
func TestOnEvict(t *testing.T) {
	s, err := New(t.TempDir(), -time.Hour, func(string) error { return nil }, discardLogger())
	if err != nil {
		t.Fatalf("ошибка создания корзины: %v", err)
	}

	evictions := 0
	s.OnEvict(func() { evictions++ })

	if _, err := s.Put(testRecord("id-1", "a.txt"), ".trash/a"); err != nil {
		t.Fatalf("ошибка помещения: %v", err)
	}
	s.List()

	if evictions != 1 {
		t.Errorf("ожидался 1 вызов callback, получено %d", evictions)
	}
}
