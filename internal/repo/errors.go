package repo

import (
	"errors"
	"fmt"
)

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в хранилище.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись с таким ID уже существует.
	ErrAlreadyExists = errors.New("already exists")
)

// PersistenceError — операция хранилища завершилась ошибкой.
//
// Все репозитории оборачивают ошибки драйвера в PersistenceError,
// сохраняя исходную ошибку для errors.Is / errors.As.
type PersistenceError struct {
	// Op — имя операции: create, fetch_next_pending, update, delete, delete_all, list_all.
	Op string

	// Err — исходная ошибка.
	Err error
}

// Error реализует интерфейс error.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

// Unwrap возвращает исходную ошибку.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// persistErr оборачивает err в PersistenceError.
// ErrNotFound возвращается как есть.
func persistErr(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// AsPersistenceError возвращает err как PersistenceError,
// оборачивая его при необходимости.
func AsPersistenceError(op string, err error) *PersistenceError {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return pe
	}
	return &PersistenceError{Op: op, Err: err}
}
