package model

import "time"

// Level is the severity of a log record. The set is closed: ingestion
// rejects anything outside it and queries match it exactly.
type Level string

const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
)

// ParseLevel returns the canonical Level for s, or false if s is not
// in the closed set.
func ParseLevel(s string) (Level, bool) {
	switch Level(s) {
	case LevelError, LevelWarn, LevelInfo, LevelDebug:
		return Level(s), true
	}
	return "", false
}

// LogRecord represents one stored log entry. Records are immutable
// once persisted; the id is assigned by the store at ingestion and is
// never client-supplied.
type LogRecord struct {
	ID         int64          `json:"id"`
	Level      Level          `json:"level"`
	Message    string         `json:"message"`
	ResourceID string         `json:"resourceId"`
	Timestamp  time.Time      `json:"timestamp"`
	TraceID    string         `json:"traceId"`
	SpanID     string         `json:"spanId"`
	Commit     string         `json:"commit"`
	Metadata   map[string]any `json:"metadata"`
}

// RequiredFields lists the ingest body fields that must be present,
// in the order they are checked. Validation fails fast on the first
// absent one.
var RequiredFields = []string{
	"level",
	"message",
	"resourceId",
	"timestamp",
	"traceId",
	"spanId",
	"commit",
	"metadata",
}
