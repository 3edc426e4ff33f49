package mq

import "errors"

var (
	// ErrNoChannel — соединение без открытого канала (идёт reconnect).
	ErrNoChannel = errors.New("no channel available")

	// ErrDiscard — handler отказывается от сообщения насовсем:
	// consumer отправит его в DLQ без requeue.
	ErrDiscard = errors.New("discard message")
)
