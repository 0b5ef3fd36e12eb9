// Пакет statefile — атомарное чтение и запись state-файлов каталога
// (catalog.json, trash.json). Каждый state-файл загружается и
// сохраняется целиком; запись выполняется атомарно:
// temp файл → fsync → rename, чтобы сбой посреди записи никогда
// не оставлял полузаписанный файл.
package statefile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Save атомарно сериализует v в JSON и записывает в path.
// Паттерн: JSON → temp файл → fsync → atomic rename.
func Save(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации состояния: %w", err)
	}

	// Создаём директорию если не существует
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}

	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// Load читает и десериализует state-файл в v.
// Возвращает (false, nil) если файл отсутствует — стартовое состояние.
// Невалидный JSON возвращается как ошибка: вызывающий код решает,
// стартовать ли с пустым состоянием (и логирует проблему).
func Load(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка чтения state-файла %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("ошибка десериализации state-файла %s: %w", path, err)
	}

	return true, nil
}
