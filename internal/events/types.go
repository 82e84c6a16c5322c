// internal/events/types.go
package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType represents the type of event.
type EventType string

const (
	PositionRejected   EventType = "position.rejected"
	ValuationCompleted EventType = "valuation.completed"
	ValuationDiscarded EventType = "valuation.discarded"
	CycleSkipped       EventType = "cycle.skipped"
	QuoteFailed        EventType = "quote.failed"
	MoversCompleted    EventType = "movers.completed"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

func (e BaseEvent) Type() EventType {
	return e.EventType
}

func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// NewBase stamps an event type with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now()}
}

// PositionRejectedEvent is emitted for every group the consolidator drops.
type PositionRejectedEvent struct {
	BaseEvent
	Symbol string
	Side   string
	Reason string
}

// ValuationCompletedEvent is emitted after a cycle publishes a snapshot.
type ValuationCompletedEvent struct {
	BaseEvent
	CycleID     string
	Positions   int
	Failed      int
	TotalProfit decimal.Decimal
	Duration    time.Duration
}

// ValuationDiscardedEvent is emitted when a finished cycle's result is thrown
// away, either because the loop was stopped or the positions changed.
type ValuationDiscardedEvent struct {
	BaseEvent
	CycleID string
	Reason  string
}

// CycleSkippedEvent is emitted when a trigger arrives while a cycle runs.
type CycleSkippedEvent struct {
	BaseEvent
	State string
}

// QuoteFailedEvent is emitted for each symbol no provider could price.
type QuoteFailedEvent struct {
	BaseEvent
	Symbol string
	Reason string
}

// MoversCompletedEvent is emitted when a movers scan finishes.
type MoversCompletedEvent struct {
	BaseEvent
	Exchange string
	Scanned  int
	Gainers  int
	Losers   int
	Cached   bool
}
