package audit

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Entry is one audited request.
type Entry struct {
	Timestamp time.Time
	RequestID string
	ActorID   string
	Action    string // method + route pattern
	Resource  string // concrete path
	Status    int
	Metadata  map[string]any
}

type Logger interface {
	Log(entry Entry)
}

// JSONLogger writes one JSON line per entry.
type JSONLogger struct {
	out zerolog.Logger
}

func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{out: zerolog.New(w).With().Str("log", "audit").Logger()}
}

func (l *JSONLogger) Log(entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	ev := l.out.Log().
		Time("timestamp", entry.Timestamp.UTC()).
		Str("actor_id", entry.ActorID).
		Str("action", entry.Action).
		Str("resource", entry.Resource).
		Int("status", entry.Status)
	if entry.RequestID != "" {
		ev = ev.Str("request_id", entry.RequestID)
	}
	if len(entry.Metadata) > 0 {
		ev = ev.Fields(maskSensitive(entry.Metadata))
	}
	ev.Send()
}

var sensitiveKeys = []string{"api_key", "password", "token", "secret", "authorization"}

// maskSensitive returns a copy of m with credential-like values redacted.
func maskSensitive(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
		lowerK := strings.ToLower(k)
		for _, s := range sensitiveKeys {
			if strings.Contains(lowerK, s) {
				out[k] = "***REDACTED***"
				break
			}
		}
	}
	return out
}
