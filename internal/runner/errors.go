package runner

import "errors"

// Ошибки runner.
var (
	// ErrInvalidConfig — Runner нельзя создать с такой конфигурацией.
	ErrInvalidConfig = errors.New("invalid runner config")

	// ErrExecutorPanic — executor запаниковал во время вызова.
	ErrExecutorPanic = errors.New("executor panicked")

	// ErrEmptyResponse — executor вернул nil без ошибки.
	ErrEmptyResponse = errors.New("executor returned no response")
)
