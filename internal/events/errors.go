package events

import "errors"

// ErrUnknownKind — событие с неизвестным типом.
var ErrUnknownKind = errors.New("unknown event kind")
