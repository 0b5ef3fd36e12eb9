// Пакет pathname — санитизация пользовательских имён файлов и папок.
// Превращает произвольное имя в безопасное имя для файловой системы
// и разрешает коллизии имён внутри папки детерминированным суффиксом.
package pathname

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/bigkaa/lanshare/internal/domain/storeerr"
)

// Sanitize очищает пользовательское имя файла:
// убирает компоненты пути и последовательности обхода директорий,
// заменяет пробелы на подчёркивания, отбрасывает небезопасные символы.
// Возвращает storeerr.ErrInvalidName, если после очистки имя пустое.
func Sanitize(name string) (string, error) {
	name = strings.TrimSpace(name)

	// Отбрасываем компоненты пути: оставляем только последний сегмент
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i != -1 {
		name = name[i+1:]
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}

	result := b.String()

	// Убираем ведущие точки: скрытые файлы и остатки "..", "."
	result = strings.TrimLeft(result, ".")
	if result == "" {
		return "", fmt.Errorf("имя %q: %w", name, storeerr.ErrInvalidName)
	}

	return result, nil
}

// ResolveCollision разрешает коллизию имени внутри папки.
// Если candidate свободен — возвращает его как есть. Иначе вставляет
// суффикс из метки времени с наносекундным разрешением перед
// расширением. Суффикс детерминирован на момент вызова, без циклов
// повторных попыток: если и дизамбигуированное имя занято, возвращает
// storeerr.ErrNameCollision.
func ResolveCollision(candidate string, existing map[string]struct{}) (string, error) {
	if _, taken := existing[candidate]; !taken {
		return candidate, nil
	}

	ext := filepath.Ext(candidate)
	base := strings.TrimSuffix(candidate, ext)

	now := time.Now().UTC()
	suffix := fmt.Sprintf("%s_%09d", now.Format("20060102_150405"), now.Nanosecond())
	resolved := fmt.Sprintf("%s_%s%s", base, suffix, ext)

	if _, taken := existing[resolved]; taken {
		return "", fmt.Errorf("имя %q занято даже после дизамбигуации: %w", resolved, storeerr.ErrNameCollision)
	}

	return resolved, nil
}

// SanitizeFolderPath валидирует логический путь папки.
// "root" возвращается как есть. Путь вида "a/b/c" санитизируется
// посегментно; пустой сегмент после очистки — ошибка.
func SanitizeFolderPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "root" {
		return "root", nil
	}

	segments := strings.Split(path, "/")
	cleaned := make([]string, 0, len(segments))
	for _, seg := range segments {
		s, err := Sanitize(seg)
		if err != nil {
			return "", fmt.Errorf("сегмент пути %q: %w", seg, storeerr.ErrInvalidName)
		}
		cleaned = append(cleaned, s)
	}

	return strings.Join(cleaned, "/"), nil
}
