package logging

import (
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

const redactedPlaceholder = "{{credential:***}}"

var (
	secretsMu sync.RWMutex
	secrets   = map[string]string{}
)

// RegisterSecret records a credential's resolved plaintext so the
// redacting core scrubs it out of every subsequent log message and
// string-typed log field. Callers are free to log the alias itself; only
// the value passed here is redacted.
func RegisterSecret(alias, value string) {
	if value == "" {
		return
	}
	secretsMu.Lock()
	defer secretsMu.Unlock()
	secrets[alias] = value
}

// ForgetSecret removes a credential's value from the redaction set, once
// a run that resolved it has finished.
func ForgetSecret(alias string) {
	secretsMu.Lock()
	defer secretsMu.Unlock()
	delete(secrets, alias)
}

func redact(s string) string {
	if s == "" {
		return s
	}
	secretsMu.RLock()
	defer secretsMu.RUnlock()
	for _, v := range secrets {
		if v != "" && strings.Contains(s, v) {
			s = strings.ReplaceAll(s, v, redactedPlaceholder)
		}
	}
	return s
}

// redactingCore wraps a zapcore.Core so that every entry message and
// string-typed field passes through redact before it reaches the real
// sink (console, file, etc).
type redactingCore struct {
	next zapcore.Core
}

func newRedactingCore(next zapcore.Core) zapcore.Core {
	return &redactingCore{next: next}
}

func (c *redactingCore) Enabled(l zapcore.Level) bool { return c.next.Enabled(l) }

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{next: c.next.With(redactFields(fields))}
}

func (c *redactingCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *redactingCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	e.Message = redact(e.Message)
	return c.next.Write(e, redactFields(fields))
}

func (c *redactingCore) Sync() error { return c.next.Sync() }

func redactFields(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		if f.Type == zapcore.StringType {
			f.String = redact(f.String)
		}
		out[i] = f
	}
	return out
}
