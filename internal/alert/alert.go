// Package alert is the engine's alerting sink. Business-rule rejections and
// races are reported here rather than propagated; only the severity mapping
// differs between deployments.
package alert

import (
	"log/slog"
	"sync"
)

// Sink receives engine alerts. Args are slog-style key/value pairs.
type Sink interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	// Critical signals a condition needing human intervention. It never
	// pauses anything itself; pausing is the callbacks' job.
	Critical(msg string, args ...any)
}

// SlogSink writes alerts through slog. Critical maps to slog.Error with a
// severity attribute so log pipelines can route it separately.
type SlogSink struct {
	Logger *slog.Logger
}

// NewSlogSink creates a sink over the given logger; nil uses slog.Default.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{Logger: logger}
}

func (s *SlogSink) Info(msg string, args ...any)  { s.Logger.Info(msg, args...) }
func (s *SlogSink) Warn(msg string, args ...any)  { s.Logger.Warn(msg, args...) }
func (s *SlogSink) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

func (s *SlogSink) Critical(msg string, args ...any) {
	s.Logger.Error(msg, append([]any{"severity", "critical"}, args...)...)
}

// Entry is one captured alert.
type Entry struct {
	Level string
	Msg   string
}

// CaptureSink records alerts for test assertions.
type CaptureSink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewCaptureSink creates an empty capturing sink.
func NewCaptureSink() *CaptureSink { return &CaptureSink{} }

func (s *CaptureSink) record(level, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Entry{Level: level, Msg: msg})
}

func (s *CaptureSink) Info(msg string, _ ...any)     { s.record("info", msg) }
func (s *CaptureSink) Warn(msg string, _ ...any)     { s.record("warn", msg) }
func (s *CaptureSink) Error(msg string, _ ...any)    { s.record("error", msg) }
func (s *CaptureSink) Critical(msg string, _ ...any) { s.record("critical", msg) }

// Entries returns a copy of everything captured so far.
func (s *CaptureSink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Has reports whether any captured entry matches the level and message.
func (s *CaptureSink) Has(level, msg string) bool {
	for _, e := range s.Entries() {
		if e.Level == level && e.Msg == msg {
			return true
		}
	}
	return false
}
