package audit

import (
	"time"

	"github.com/rs/zerolog"
)

// Event represents an authorization decision or a record mutation.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"eventType"` // e.g. "Authorization", "PatientCreate"
	EntityID  string            `json:"entityId"`  // record ID or ledger key
	Actor     string            `json:"actor,omitempty"`
	Result    string            `json:"result"` // "success" or "failure"
	Reason    string            `json:"reason,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Logger is the sink for audit events. Implementations must not block the
// caller on a failing backend; they log and move on.
type Logger interface {
	LogEvent(event Event)
}

// ZerologLogger writes events as structured log lines.
type ZerologLogger struct {
	log zerolog.Logger
}

func NewZerologLogger(log zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{log: log.With().Str("component", "audit").Logger()}
}

func (l *ZerologLogger) LogEvent(event Event) {
	level := zerolog.InfoLevel
	if event.Result == ResultFailure {
		level = zerolog.WarnLevel
	}
	ev := l.log.WithLevel(level).Time("at", event.Timestamp).
		Str("event", event.EventType).
		Str("entity", event.EntityID).
		Str("result", event.Result)
	if event.Actor != "" {
		ev = ev.Str("actor", event.Actor)
	}
	if event.Reason != "" {
		ev = ev.Str("reason", event.Reason)
	}
	if len(event.Metadata) > 0 {
		d := zerolog.Dict()
		for k, v := range event.Metadata {
			d = d.Str(k, v)
		}
		ev = ev.Dict("metadata", d)
	}
	ev.Msg("audit")
}

// Multi fans an event out to every logger.
type Multi []Logger

func (m Multi) LogEvent(event Event) {
	for _, l := range m {
		if l != nil {
			l.LogEvent(event)
		}
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) LogEvent(Event) {}

// Stamp fills in the timestamp when the caller left it zero.
func Stamp(e Event) Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return e
}
