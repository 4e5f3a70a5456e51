package logger

import (
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LogMessage is one entry recorded by a TestLogger.
type LogMessage struct {
	Level   string
	Message string
	Fields  map[string]interface{}
	Error   error
}

// capture is the record shared by a TestLogger and every logger scoped
// from it.
type capture struct {
	mu       sync.Mutex
	messages []LogMessage
	text     strings.Builder
}

// TestLogger records messages in memory so tests can assert on what the
// archive code logged. Scoped loggers write into the same record.
type TestLogger struct {
	rec    *capture
	fields map[string]interface{}
	err    error
}

func NewTestLogger() *TestLogger {
	return &TestLogger{rec: &capture{}}
}

func (l *TestLogger) Debug(msg string) { l.record("DEBUG", msg, nil) }
func (l *TestLogger) Info(msg string)  { l.record("INFO", msg, nil) }
func (l *TestLogger) Warn(msg string)  { l.record("WARN", msg, nil) }
func (l *TestLogger) Error(msg string) { l.record("ERROR", msg, nil) }

func (l *TestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.record("DEBUG", msg, fields)
}

func (l *TestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.record("INFO", msg, fields)
}

func (l *TestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.record("WARN", msg, fields)
}

func (l *TestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.record("ERROR", msg, fields)
}

func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return l.scoped(map[string]interface{}{key: value}, l.err)
}

func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	return l.scoped(fields, l.err)
}

func (l *TestLogger) WithError(err error) Logger {
	return l.scoped(nil, err)
}

func (l *TestLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}

func (l *TestLogger) scoped(extra map[string]interface{}, err error) *TestLogger {
	return &TestLogger{rec: l.rec, fields: merge(l.fields, extra), err: err}
}

func merge(base, extra map[string]interface{}) map[string]interface{} {
	if len(base)+len(extra) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(base)+len(extra))
	maps.Copy(out, base)
	maps.Copy(out, extra)
	return out
}

func (l *TestLogger) record(level, msg string, fields map[string]interface{}) {
	fields = merge(l.fields, fields)

	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()

	l.rec.messages = append(l.rec.messages, LogMessage{Level: level, Message: msg, Fields: fields, Error: l.err})
	fmt.Fprintf(&l.rec.text, "[%s] %s", level, msg)
	if len(fields) > 0 {
		fmt.Fprintf(&l.rec.text, " fields=%v", fields)
	}
	if l.err != nil {
		fmt.Fprintf(&l.rec.text, " error=%v", l.err)
	}
	l.rec.text.WriteByte('\n')
}

// GetMessages returns a copy of everything recorded so far.
func (l *TestLogger) GetMessages() []LogMessage {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	return append([]LogMessage(nil), l.rec.messages...)
}

func (l *TestLogger) GetMessagesByLevel(level string) []LogMessage {
	var out []LogMessage
	for _, m := range l.GetMessages() {
		if m.Level == level {
			out = append(out, m)
		}
	}
	return out
}

// HasMessage reports an exact message match at any level.
func (l *TestLogger) HasMessage(text string) bool {
	for _, m := range l.GetMessages() {
		if m.Message == text {
			return true
		}
	}
	return false
}

func (l *TestLogger) HasMessageContaining(level, substr string) bool {
	for _, m := range l.GetMessagesByLevel(level) {
		if strings.Contains(m.Message, substr) {
			return true
		}
	}
	return false
}

func (l *TestLogger) Clear() {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	l.rec.messages = nil
	l.rec.text.Reset()
}

func (l *TestLogger) String() string {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	return l.rec.text.String()
}
