package events

import (
	"context"
	"log/slog"
)

// Event represents a structured state change emitted by the lending ledger.
type Event interface {
	EventType() string
}

// Attributed is implemented by events that can describe themselves as a flat
// attribute list for structured logging and metrics.
type Attributed interface {
	Attributes() []slog.Attr
}

// Emitter broadcasts events to downstream subscribers (log sinks, metrics,
// indexers). Emission is fire-and-forget and must never influence control
// flow inside the engine.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events.
// Engines default to it so event wiring stays optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// MultiEmitter fans a single event out to several sinks in order.
type MultiEmitter []Emitter

// Emit implements the Emitter interface.
func (m MultiEmitter) Emit(evt Event) {
	for _, sink := range m {
		if sink != nil {
			sink.Emit(evt)
		}
	}
}

// Multi bundles the provided emitters into a single Emitter, skipping nils.
func Multi(sinks ...Emitter) Emitter {
	filtered := make(MultiEmitter, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			filtered = append(filtered, sink)
		}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return filtered
}

// LogEmitter writes every event as a structured log line.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter wraps the supplied logger; a nil logger falls back to the
// process default.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

// Emit implements the Emitter interface.
func (l *LogEmitter) Emit(evt Event) {
	if l == nil || l.logger == nil || evt == nil {
		return
	}
	attrs := []slog.Attr{slog.String("event", evt.EventType())}
	if detailed, ok := evt.(Attributed); ok {
		attrs = append(attrs, detailed.Attributes()...)
	}
	l.logger.LogAttrs(context.Background(), slog.LevelInfo, "ledger event", attrs...)
}
