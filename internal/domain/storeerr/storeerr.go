// Пакет storeerr — виды ошибок слоя хранения.
// Все ошибки восстановимы на границе HTTP-обработчика и проверяются
// через errors.Is; контекст добавляется обёртыванием через fmt.Errorf + %w.
package storeerr

import "errors"

var (
	// ErrInvalidName — имя файла или папки пустое после санитизации
	ErrInvalidName = errors.New("недопустимое имя")

	// ErrNotFound — файл, папка или запись корзины не найдены
	ErrNotFound = errors.New("не найдено")

	// ErrAlreadyExists — папка уже существует
	ErrAlreadyExists = errors.New("уже существует")

	// ErrNameCollision — дизамбигуированное имя тоже занято
	ErrNameCollision = errors.New("коллизия имён")

	// ErrDiskWrite — ошибка записи, переименования или удаления на диске,
	// включая ошибку сохранения state-файла
	ErrDiskWrite = errors.New("ошибка записи на диск")

	// ErrExpired — срок восстановления записи корзины истёк
	ErrExpired = errors.New("срок восстановления истёк")

	// ErrSizeLimit — превышен лимит размера файла или архива
	ErrSizeLimit = errors.New("превышен лимит размера")
)
