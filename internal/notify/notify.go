// Package notify relays user-facing feedback (toasts) raised by cart and checkout operations.
package notify

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Level of a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification is a single message shown to the user.
type Notification struct {
	Level   Level
	Message string
}

// Notifier receives notifications. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Success sends a success notification.
func Success(n Notifier, msg string) { n.Notify(Notification{Level: LevelSuccess, Message: msg}) }

// Error sends an error notification.
func Error(n Notifier, msg string) { n.Notify(Notification{Level: LevelError, Message: msg}) }

// Info sends an informational notification.
func Info(n Notifier, msg string) { n.Notify(Notification{Level: LevelInfo, Message: msg}) }

// Discard drops every notification.
var Discard Notifier = Func(func(Notification) {})

// LogNotifier writes notifications to a logrus entry.
type LogNotifier struct {
	entry *log.Entry
}

// NewLogNotifier returns a notifier logging through entry.
func NewLogNotifier(entry *log.Entry) *LogNotifier {
	return &LogNotifier{entry: entry}
}

func (l *LogNotifier) Notify(n Notification) {
	e := l.entry.WithField("level_hint", string(n.Level))
	switch n.Level {
	case LevelError:
		e.Error(n.Message)
	case LevelSuccess, LevelInfo:
		e.Info(n.Message)
	default:
		e.Debug(n.Message)
	}
}

// Recorder keeps every notification it receives. Useful in tests and for
// rendering a message log in the CLI.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Last returns the most recent notification, if any.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, x := range m {
		x.Notify(n)
	}
}
