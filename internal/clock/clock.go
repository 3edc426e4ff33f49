// Package clock абстрагирует источник текущего времени.
//
// Runner и Scheduler получают Clock через Config, поэтому в тестах
// время полностью детерминировано (см. Fake).
package clock

import (
	"sync"
	"time"
)

// Clock возвращает текущее время.
type Clock interface {
	Now() time.Time
}

// System — Clock на основе time.Now (UTC).
type System struct{}

// Now возвращает текущее время в UTC.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fake — управляемый Clock для тестов.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake создаёт Fake, показывающий время now.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

// Now возвращает текущее значение.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set устанавливает время.
func (f *Fake) Set(now time.Time) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}

// Advance сдвигает время на d и возвращает новое значение.
func (f *Fake) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	return f.now
}
