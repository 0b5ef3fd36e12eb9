// Пакет filestore — операции с физическими файлами на диске.
// Запись выполняется атомарно (temp → fsync → rename), размер
// берётся из stat после записи. Удалённые файлы перемещаются
// в trash-директорию и физически удаляются только при purge
// или истечении срока восстановления.
package filestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// TrashDirName — поддиректория данных для байтов удалённых файлов.
const TrashDirName = ".trash"

// FileStore — управление физическими файлами на диске.
type FileStore struct {
	// dataDir — корневая директория хранения файлов (LS_DATA_DIR)
	dataDir string
}

// New создаёт новый FileStore. Проверяет и создаёт директорию данных
// и trash-директорию, если они не существуют.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}
	if err := os.MkdirAll(filepath.Join(dataDir, TrashDirName), 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать trash-директорию: %w", err)
	}

	return &FileStore{dataDir: dataDir}, nil
}

// DataDir возвращает путь к директории данных.
func (fs *FileStore) DataDir() string {
	return fs.dataDir
}

// FullPath возвращает абсолютный путь к файлу по относительному
// storage-пути (логические пути используют "/").
func (fs *FileStore) FullPath(storagePath string) string {
	return filepath.Join(fs.dataDir, filepath.FromSlash(storagePath))
}

// FolderDir возвращает абсолютный путь физической директории
// логической папки. "root" — сама директория данных.
func (fs *FileStore) FolderDir(folderPath string) string {
	if folderPath == "root" {
		return fs.dataDir
	}
	return filepath.Join(fs.dataDir, filepath.FromSlash(folderPath))
}

// DirExists проверяет, материализована ли физическая директория папки.
func (fs *FileStore) DirExists(folderPath string) bool {
	info, err := os.Stat(fs.FolderDir(folderPath))
	return err == nil && info.IsDir()
}

// MakeFolderDir создаёт физическую директорию логической папки.
func (fs *FileStore) MakeFolderDir(folderPath string) error {
	if err := os.MkdirAll(fs.FolderDir(folderPath), 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию папки %s: %w", folderPath, err)
	}
	return nil
}

// WriteFile материализует байты по указанному storage-пути через
// callback. Паттерн: temp файл → write → fsync → atomic rename.
// Возвращает размер записанного файла из stat после записи —
// не доверяя заявленному вызывающим размеру.
// При ошибке callback временный файл удаляется, частичной записи
// не остаётся.
func (fs *FileStore) WriteFile(storagePath string, write func(io.Writer) error) (int64, error) {
	fullPath := fs.FullPath(storagePath)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		os.Remove(fullPath)
		return 0, fmt.Errorf("ошибка stat после записи: %w", err)
	}

	return info.Size(), nil
}

// Open открывает файл для чтения. Вызывающий код обязан закрыть файл.
func (fs *FileStore) Open(storagePath string) (*os.File, error) {
	f, err := os.Open(fs.FullPath(storagePath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("файл не найден: %s", storagePath)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", storagePath, err)
	}
	return f, nil
}

// Exists проверяет существование файла на диске.
func (fs *FileStore) Exists(storagePath string) bool {
	_, err := os.Stat(fs.FullPath(storagePath))
	return err == nil
}

// Rename переименовывает физический файл.
func (fs *FileStore) Rename(oldPath, newPath string) error {
	if err := os.Rename(fs.FullPath(oldPath), fs.FullPath(newPath)); err != nil {
		return fmt.Errorf("ошибка переименования %s → %s: %w", oldPath, newPath, err)
	}
	return nil
}

// Remove удаляет файл с диска. Возвращает nil если файл уже не существует.
func (fs *FileStore) Remove(storagePath string) error {
	err := os.Remove(fs.FullPath(storagePath))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", storagePath, err)
	}
	return nil
}

// MoveToTrash перемещает байты файла в trash-директорию.
// Возвращает trash-путь (относительно директории данных).
func (fs *FileStore) MoveToTrash(storagePath, trashName string) (string, error) {
	trashPath := TrashDirName + "/" + trashName
	if err := os.Rename(fs.FullPath(storagePath), fs.FullPath(trashPath)); err != nil {
		return "", fmt.Errorf("ошибка перемещения %s в корзину: %w", storagePath, err)
	}
	return trashPath, nil
}

// RestoreFromTrash возвращает байты из trash-директории на место.
func (fs *FileStore) RestoreFromTrash(trashPath, storagePath string) error {
	if err := os.Rename(fs.FullPath(trashPath), fs.FullPath(storagePath)); err != nil {
		return fmt.Errorf("ошибка восстановления %s из корзины: %w", trashPath, err)
	}
	return nil
}

// ListTrashFiles возвращает имена файлов в trash-директории.
// Используется sweep для поиска осиротевших байтов.
func (fs *FileStore) ListTrashFiles() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(fs.dataDir, TrashDirName))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения trash-директории: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}
