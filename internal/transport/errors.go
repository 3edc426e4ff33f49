package transport

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest — запрос невозможно отправить в принципе.
// Повтор такого запроса не изменит результат.
var ErrInvalidRequest = errors.New("invalid request")

// ErrorKind — причина отсутствия ответа.
type ErrorKind string

const (
	KindConnectivity ErrorKind = "connectivity"
	KindTimeout      ErrorKind = "timeout"
)

// Error — вызов не получил ответа от сервера.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
