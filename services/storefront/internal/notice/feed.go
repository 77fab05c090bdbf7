package notice

import (
	"fmt"
	"sync"
	"time"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

const defaultCapacity = 50

// Notice is a short user-facing message, shown once and then discarded.
type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier is what stores and flows depend on to surface messages.
type Notifier interface {
	Success(format string, args ...interface{})
	Error(format string, args ...interface{})
	Info(format string, args ...interface{})
}

// Feed keeps the latest notices until the UI drains them.
type Feed struct {
	mu       sync.Mutex
	notices  []Notice
	capacity int
	now      func() time.Time
}

func NewFeed() *Feed {
	return &Feed{
		capacity: defaultCapacity,
		now:      time.Now,
	}
}

func (f *Feed) Success(format string, args ...interface{}) {
	f.add(LevelSuccess, fmt.Sprintf(format, args...))
}

func (f *Feed) Error(format string, args ...interface{}) {
	f.add(LevelError, fmt.Sprintf(format, args...))
}

func (f *Feed) Info(format string, args ...interface{}) {
	f.add(LevelInfo, fmt.Sprintf(format, args...))
}

func (f *Feed) add(level Level, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.notices = append(f.notices, Notice{Level: level, Message: msg, At: f.now()})
	if over := len(f.notices) - f.capacity; over > 0 {
		f.notices = append([]Notice(nil), f.notices[over:]...)
	}
}

// Drain returns pending notices oldest first and empties the feed.
func (f *Feed) Drain() []Notice {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := f.notices
	f.notices = nil
	if out == nil {
		return []Notice{}
	}
	return out
}

// Discard is a Notifier that drops everything.
type Discard struct{}

func (Discard) Success(string, ...interface{}) {}
func (Discard) Error(string, ...interface{})   {}
func (Discard) Info(string, ...interface{})    {}
