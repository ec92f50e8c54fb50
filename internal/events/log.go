package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Severity classifies an event entry
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Entry is one discrete event emitted while operations progress.
type Entry struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
}

// Fatal reports whether the entry describes a failure surfaced to a caller.
// Warnings are per-unit failures that were recovered locally.
func (e Entry) Fatal() bool {
	return e.Severity == SeverityError
}

// Emitter receives progress events from the engine.
type Emitter interface {
	Emit(severity Severity, message string)
}

// Nop discards events.
type Nop struct{}

func (Nop) Emit(Severity, string) {}

const defaultCapacity = 1000

// Log keeps the most recent entries in memory, mirrors them into zap and
// fans them out to subscribers.
type Log struct {
	mu       sync.Mutex
	entries  []Entry
	seq      int64
	capacity int
	subs     map[int]chan Entry
	nextSub  int
	logger   *zap.Logger
	now      func() time.Time
}

// NewLog creates an event log that retains up to capacity entries.
func NewLog(capacity int, logger *zap.Logger) *Log {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{
		capacity: capacity,
		subs:     make(map[int]chan Entry),
		logger:   logger,
		now:      time.Now,
	}
}

// Emit records an entry. Slow subscribers miss entries rather than block
// the emitting worker.
func (l *Log) Emit(severity Severity, message string) {
	l.mu.Lock()
	l.seq++
	entry := Entry{
		ID:        uuid.New().String(),
		Seq:       l.seq,
		Timestamp: l.now(),
		Severity:  severity,
		Message:   message,
	}
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.capacity {
		l.entries = append([]Entry(nil), l.entries[len(l.entries)-l.capacity:]...)
	}
	for _, ch := range l.subs {
		select {
		case ch <- entry:
		default:
		}
	}
	l.mu.Unlock()

	fields := []zap.Field{zap.Int64("seq", entry.Seq), zap.String("severity", string(severity))}
	switch severity {
	case SeverityError:
		l.logger.Error(message, fields...)
	case SeverityWarning:
		l.logger.Warn(message, fields...)
	default:
		l.logger.Info(message, fields...)
	}
}

// Since returns the retained entries with a sequence number above after.
func (l *Log) Since(after int64) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if e.Seq > after {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Subscribe returns a channel receiving every entry emitted from now on and
// a cancel func that closes it.
func (l *Log) Subscribe(buffer int) (<-chan Entry, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Entry, buffer)

	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
