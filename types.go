package xqueue

import (
	"context"
	"time"
)

// Clock supplies the current time. xclock.Clock satisfies it.
type Clock interface {
	Now() time.Time
}

// Handler processes a single assignment. Returning nil completes it.
type Handler func(ctx context.Context, msg *Message) error

// Middleware composes processing concerns around a Handler.
type Middleware func(next Handler) Handler

// Observer receives client lifecycle events. Implementations should be non-blocking.
type Observer interface {
	OnEvent(e Event)
}

// HealthChecker provides health status for production monitoring.
type HealthChecker interface {
	Health(ctx context.Context) HealthStatus
}

// EventType enumerates lifecycle events for the Observer pattern.
type EventType string

const (
	ProduceStart EventType = "produce_start"
	ProduceDone  EventType = "produce_done"
	Consumed     EventType = "consumed"
	Expired      EventType = "expired"
	Completed    EventType = "completed"
	Failed       EventType = "failed"
	Error        EventType = "error"
)

// Event carries telemetry for observers.
type Event struct {
	Type      EventType
	Role      string
	Address   string
	MessageID string
	Duration  time.Duration
	Err       error
}

// PoolStats returns telemetry about the observer pool.
type PoolStats struct {
	Dropped      uint64
	Processed    uint64
	ActiveEvents int
	Workers      int
	BufferSize   int
}

// Metrics is a snapshot of client counters.
type Metrics struct {
	Produced        uint64 // requests sent
	Accepted        uint64 // OK accept acks received
	AckTimeouts     uint64
	RemoteFailures  uint64
	Consumed        uint64 // assignments returned to callers
	ExpiredDropped  uint64
	Completed       uint64 // completion acks sent
	HandlerFailures uint64
	Errors          uint64
	EventsDropped   uint64
	AvgRoundTripMs  float64
}

// HealthStatus indicates client health for Kubernetes probes.
type HealthStatus struct {
	Status    string // "healthy", "degraded", "unhealthy"
	Metrics   Metrics
	Timestamp time.Time
	Message   string
}
