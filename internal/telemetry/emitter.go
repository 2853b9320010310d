// Package telemetry records operational session events for diagnostics.
//
// Events land in the local mirror database alongside cached profiles so a
// device report carries both state and the operations that produced it.
package telemetry

import (
	"context"
	"time"
)

// Severity describes the telemetry severity level.
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// Event is a single operational telemetry record.
type Event struct {
	Kind      string
	Severity  Severity
	UserID    string
	Detail    string
	Timestamp time.Time
}

// Store persists telemetry events.
type Store interface {
	AppendTelemetryEvent(ctx context.Context, evt Event) error
}

// Emitter records operational telemetry events.
type Emitter struct {
	store Store
	clock func() time.Time
}

// NewEmitter creates a new telemetry emitter.
func NewEmitter(store Store) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// Emit records a telemetry event. It is a no-op when the store is nil.
func (e *Emitter) Emit(ctx context.Context, evt Event) error {
	if e == nil || e.store == nil {
		return nil
	}
	if evt.Severity == "" {
		evt.Severity = SeverityInfo
	}
	if evt.Timestamp.IsZero() {
		if e.clock == nil {
			evt.Timestamp = time.Now().UTC()
		} else {
			evt.Timestamp = e.clock().UTC()
		}
	}
	return e.store.AppendTelemetryEvent(ctx, evt)
}
