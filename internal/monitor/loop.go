// internal/monitor/loop.go
package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rovshanmuradov/xtbhelper/internal/events"
	"github.com/rovshanmuradov/xtbhelper/internal/position"
	"go.uber.org/zap"
)

// DefaultInterval is the periodic refresh interval.
const DefaultInterval = 30 * time.Second

const (
	reasonStopped          = "stopped"
	reasonPositionsChanged = "positions changed"
)

// State of the valuation loop.
type State int32

const (
	StateIdle State = iota
	StateLoading
	StateRendering
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateRendering:
		return "rendering"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Renderer receives every published snapshot.
type Renderer interface {
	Render(p *Portfolio) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(p *Portfolio) error

func (f RendererFunc) Render(p *Portfolio) error { return f(p) }

// CycleMetrics records cycle timings and skipped triggers.
type CycleMetrics interface {
	ObserveCycle(elapsed time.Duration)
	CycleSkipped()
}

// LoopConfig wires a Loop.
type LoopConfig struct {
	Interval  time.Duration
	Source    QuoteSource
	Scheduler Scheduler
	Renderers []Renderer
	Events    events.Publisher
	Metrics   CycleMetrics
	Now       func() time.Time
}

// Loop periodically values the current positions. At most one cycle runs at
// a time; triggers that arrive while one is in flight are dropped.
//
// Stop only cancels the timer. A cycle already in flight keeps its provider
// calls running to completion and its result is then discarded.
type Loop struct {
	cfg    LoopConfig
	logger *zap.Logger

	state    atomic.Int32
	inFlight atomic.Bool
	stopped  atomic.Bool
	snapshot atomic.Pointer[Portfolio]

	mu          sync.Mutex
	positions   []position.Position
	generation  uint64
	baseCtx     context.Context
	cancelTimer context.CancelFunc

	wg sync.WaitGroup
}

// NewLoop creates an idle loop.
func NewLoop(logger *zap.Logger, cfg LoopConfig) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = TickerScheduler{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Loop{
		cfg:     cfg,
		logger:  logger.Named("loop"),
		baseCtx: context.Background(),
	}
}

// State returns the current state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Snapshot returns the latest published portfolio, or nil before the first.
func (l *Loop) Snapshot() *Portfolio {
	return l.snapshot.Load()
}

// SetPositions replaces the position set and publishes an all-pending
// snapshot for it. A cycle that started on the previous set is discarded.
// After Stop the set is still replaced but nothing is published.
func (l *Loop) SetPositions(positions []position.Position) {
	cp := make([]position.Position, len(positions))
	copy(cp, positions)

	l.mu.Lock()
	l.positions = cp
	l.generation++
	stopped := l.stopped.Load()
	l.mu.Unlock()
	if stopped {
		return
	}

	pending := Pending(cp, l.cfg.Now())
	l.snapshot.Store(pending)
	l.render(pending)
}

// Start schedules periodic triggers and fires one immediately. Cycles run on
// a context detached from ctx cancellation; cancelling ctx stops the loop.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	l.baseCtx = context.WithoutCancel(ctx)
	l.cancelTimer = l.cfg.Scheduler.Start(l.cfg.Interval, func() { l.Trigger() })
	l.mu.Unlock()

	context.AfterFunc(ctx, l.Stop)

	l.logger.Info("Valuation loop started", zap.Duration("interval", l.cfg.Interval))
	l.Trigger()
}

// Trigger starts a cycle unless one is already running or the loop is
// stopped. It reports whether a cycle was started.
func (l *Loop) Trigger() bool {
	if l.stopped.Load() {
		return false
	}
	if !l.inFlight.CompareAndSwap(false, true) {
		state := l.State()
		l.logger.Debug("Trigger ignored, cycle in flight", zap.Stringer("state", state))
		if l.cfg.Metrics != nil {
			l.cfg.Metrics.CycleSkipped()
		}
		events.Publish(l.cfg.Events, events.CycleSkippedEvent{
			BaseEvent: events.NewBase(events.CycleSkipped),
			State:     state.String(),
		})
		return false
	}

	// stopped is rechecked under mu so no cycle is added once Stop returned.
	l.mu.Lock()
	if l.stopped.Load() {
		l.mu.Unlock()
		l.inFlight.Store(false)
		return false
	}
	l.state.Store(int32(StateLoading))
	ctx := l.baseCtx
	positions := l.positions
	generation := l.generation
	l.wg.Add(1)
	l.mu.Unlock()

	go l.runCycle(ctx, positions, generation)
	return true
}

// Stop cancels the timer and discards any result still in flight. Safe to
// call more than once. Once Stop returns no new cycle starts, so Wait covers
// every cycle.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped.Swap(true) {
		l.mu.Unlock()
		return
	}
	if l.cancelTimer != nil {
		l.cancelTimer()
	}
	l.mu.Unlock()

	l.logger.Info("Valuation loop stopped", zap.Stringer("state", l.State()))
}

// Wait blocks until no cycle is running.
func (l *Loop) Wait() {
	l.wg.Wait()
}

func (l *Loop) runCycle(ctx context.Context, positions []position.Position, generation uint64) {
	defer l.wg.Done()

	again := false
	defer func() {
		l.state.Store(int32(StateIdle))
		l.inFlight.Store(false)
		if again {
			l.Trigger()
		}
	}()

	cycleID := uuid.New().String()
	logger := l.logger.With(zap.String("cycle_id", cycleID))
	start := time.Now()

	symbols := position.Symbols(positions)
	logger.Debug("Cycle started", zap.Int("positions", len(positions)), zap.Int("symbols", len(symbols)))

	quotes := l.cfg.Source.Quotes(ctx, symbols)
	for _, sym := range symbols {
		if res, ok := quotes[sym]; ok && !res.OK {
			events.Publish(l.cfg.Events, events.QuoteFailedEvent{
				BaseEvent: events.NewBase(events.QuoteFailed),
				Symbol:    sym,
				Reason:    res.Reason,
			})
		}
	}

	portfolio := Compute(positions, quotes, l.cfg.Now())
	portfolio.CycleID = cycleID

	if reason, discard := l.discardReason(generation); discard {
		logger.Info("Cycle result discarded", zap.String("reason", reason))
		events.Publish(l.cfg.Events, events.ValuationDiscardedEvent{
			BaseEvent: events.NewBase(events.ValuationDiscarded),
			CycleID:   cycleID,
			Reason:    reason,
		})
		again = reason == reasonPositionsChanged
		return
	}

	l.state.Store(int32(StateRendering))
	l.snapshot.Store(portfolio)
	l.render(portfolio)

	elapsed := time.Since(start)
	if l.cfg.Metrics != nil {
		l.cfg.Metrics.ObserveCycle(elapsed)
	}
	events.Publish(l.cfg.Events, events.ValuationCompletedEvent{
		BaseEvent:   events.NewBase(events.ValuationCompleted),
		CycleID:     cycleID,
		Positions:   portfolio.Totals.PositionCount,
		Failed:      portfolio.Totals.Failed,
		TotalProfit: portfolio.Totals.TotalProfit,
		Duration:    elapsed,
	})
	logger.Info("Cycle completed",
		zap.Int("ok", portfolio.Totals.PositionCount),
		zap.Int("failed", portfolio.Totals.Failed),
		zap.String("total_profit", portfolio.Totals.TotalProfit.StringFixed(2)),
		zap.Duration("elapsed", elapsed))
}

func (l *Loop) discardReason(generation uint64) (string, bool) {
	if l.stopped.Load() {
		return reasonStopped, true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.generation != generation {
		return reasonPositionsChanged, true
	}
	return "", false
}

func (l *Loop) render(p *Portfolio) {
	for _, r := range l.cfg.Renderers {
		if err := safeRender(r, p); err != nil {
			l.logger.Error("Renderer failed", zap.Error(err))
		}
	}
}

func safeRender(r Renderer, p *Portfolio) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("renderer panic: %v", rec)
		}
	}()
	return r.Render(p)
}
