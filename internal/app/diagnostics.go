package app

import (
	"context"

	"github.com/rovshanmuradov/xtbhelper/internal/events"
	"go.uber.org/zap"
)

// subscribeDiagnostics mirrors bus traffic into the debug log.
func subscribeDiagnostics(bus *events.Bus, logger *zap.Logger) {
	for _, t := range []events.EventType{
		events.PositionRejected,
		events.ValuationCompleted,
		events.ValuationDiscarded,
		events.CycleSkipped,
		events.QuoteFailed,
		events.MoversCompleted,
	} {
		bus.SubscribeFunc(t, func(_ context.Context, e events.Event) error {
			logger.Debug("Event", zap.String("type", string(e.Type())), zap.Any("event", e))
			return nil
		})
	}
}
