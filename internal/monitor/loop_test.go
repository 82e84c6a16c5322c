package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rovshanmuradov/xtbhelper/internal/cache"
	"github.com/rovshanmuradov/xtbhelper/internal/position"
	"github.com/rovshanmuradov/xtbhelper/internal/quote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// gatedSource blocks every Quotes call until release is closed, unless the
// call number is past blockCalls.
type gatedSource struct {
	calls      atomic.Int32
	blockCalls int32
	entered    chan struct{}
	release    chan struct{}
	prices     map[string]float64
}

func newGatedSource(blockCalls int32, prices map[string]float64) *gatedSource {
	return &gatedSource{
		blockCalls: blockCalls,
		entered:    make(chan struct{}, 16),
		release:    make(chan struct{}),
		prices:     prices,
	}
}

func (g *gatedSource) Quotes(_ context.Context, symbols []string) map[string]quote.Result {
	n := g.calls.Add(1)
	g.entered <- struct{}{}
	if n <= g.blockCalls {
		<-g.release
	}
	out := make(map[string]quote.Result, len(symbols))
	for _, s := range symbols {
		if p, ok := g.prices[s]; ok {
			out[s] = quote.Success(p, "fake")
		} else {
			out[s] = quote.Failure(quote.ErrChainExhausted.Error())
		}
	}
	return out
}

type manualScheduler struct {
	mu        sync.Mutex
	fn        func()
	interval  time.Duration
	cancelled bool
}

func (m *manualScheduler) Start(interval time.Duration, fn func()) context.CancelFunc {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	m.interval = interval
	return func() {
		m.mu.Lock()
		m.cancelled = true
		m.mu.Unlock()
	}
}

func (m *manualScheduler) Cancelled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled
}

func (m *manualScheduler) Tick() {
	m.mu.Lock()
	fn, cancelled := m.fn, m.cancelled
	m.mu.Unlock()
	if fn != nil && !cancelled {
		fn()
	}
}

type countingMetrics struct {
	cycles  atomic.Int32
	skipped atomic.Int32
}

func (c *countingMetrics) ObserveCycle(time.Duration) { c.cycles.Add(1) }
func (c *countingMetrics) CycleSkipped()              { c.skipped.Add(1) }

type recordingRenderer struct {
	mu    sync.Mutex
	snaps []*Portfolio
}

func (r *recordingRenderer) Render(p *Portfolio) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, p)
	return nil
}

func (r *recordingRenderer) last() *Portfolio {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return nil
	}
	return r.snaps[len(r.snaps)-1]
}

func waitEntered(t *testing.T, g *gatedSource) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not reach the quote source")
	}
}

func testPositions() []position.Position {
	return []position.Position{
		pos("SAP.DE", position.SideBuy, "5", "100"),
		pos("IFX.DE", position.SideSell, "5", "100"),
	}
}

func TestLoop_TriggerWhileLoadingIsNoop(t *testing.T) {
	src := newGatedSource(1, map[string]float64{"SAP.DE": 110, "IFX.DE": 110})
	metrics := &countingMetrics{}
	loop := NewLoop(zaptest.NewLogger(t), LoopConfig{Source: src, Scheduler: &manualScheduler{}, Metrics: metrics})
	loop.SetPositions(testPositions())

	require.True(t, loop.Trigger())
	waitEntered(t, src)
	assert.Equal(t, StateLoading, loop.State())

	assert.False(t, loop.Trigger())
	assert.False(t, loop.Trigger())
	assert.Equal(t, int32(2), metrics.skipped.Load())

	close(src.release)
	loop.Wait()

	assert.Equal(t, StateIdle, loop.State())
	assert.Equal(t, int32(1), src.calls.Load(), "skipped triggers never reach the source")
	assert.Equal(t, int32(1), metrics.cycles.Load())

	snap := loop.Snapshot()
	require.NotNil(t, snap)
	assert.NotEmpty(t, snap.CycleID)
	assert.True(t, dec("50").Equal(*snap.Valuations[0].Profit))
	assert.True(t, dec("-50").Equal(*snap.Valuations[1].Profit))
	assert.True(t, snap.Totals.TotalProfit.IsZero())

	require.True(t, loop.Trigger(), "idle loop accepts a new trigger")
	waitEntered(t, src)
	loop.Wait()
}

func TestLoop_StopDiscardsInFlightResult(t *testing.T) {
	src := newGatedSource(1, map[string]float64{"SAP.DE": 110})
	sched := &manualScheduler{}
	renderer := &recordingRenderer{}
	loop := NewLoop(zaptest.NewLogger(t), LoopConfig{Source: src, Scheduler: sched, Renderers: []Renderer{renderer}})
	loop.SetPositions(testPositions())

	loop.Start(context.Background())
	waitEntered(t, src)

	loop.Stop()
	loop.Stop()
	close(src.release)
	loop.Wait()

	snap := loop.Snapshot()
	require.NotNil(t, snap)
	assert.Empty(t, snap.CycleID, "only the pending snapshot was ever published")
	assert.Equal(t, StatusPending, snap.Valuations[0].Status)
	assert.Equal(t, StatusPending, renderer.last().Valuations[0].Status)

	assert.False(t, loop.Trigger())
	sched.Tick()
	assert.Equal(t, int32(1), src.calls.Load())
	assert.True(t, sched.Cancelled())
}

func TestLoop_NothingPublishedAfterStop(t *testing.T) {
	src := newGatedSource(0, map[string]float64{"SAP.DE": 110})
	sched := &manualScheduler{}
	renderer := &recordingRenderer{}
	loop := NewLoop(zaptest.NewLogger(t), LoopConfig{Source: src, Scheduler: sched, Renderers: []Renderer{renderer}})
	loop.SetPositions(testPositions()[:1])

	loop.Start(context.Background())
	waitEntered(t, src)
	loop.Wait()
	before := loop.Snapshot()
	require.NotNil(t, before)

	loop.Stop()
	loop.SetPositions(testPositions())

	assert.Same(t, before, loop.Snapshot())
	assert.Same(t, before, renderer.last())
	assert.False(t, loop.Trigger())
	assert.Equal(t, StateIdle, loop.State())
}

type countingSource struct {
	calls atomic.Int32
}

func (c *countingSource) Quotes(_ context.Context, symbols []string) map[string]quote.Result {
	c.calls.Add(1)
	out := make(map[string]quote.Result, len(symbols))
	for _, s := range symbols {
		out[s] = quote.Success(110, "fake")
	}
	return out
}

func TestLoop_ConcurrentTriggerAndStop(t *testing.T) {
	for i := 0; i < 50; i++ {
		src := &countingSource{}
		loop := NewLoop(zaptest.NewLogger(t), LoopConfig{Source: src, Scheduler: &manualScheduler{}})
		loop.SetPositions(testPositions()[:1])

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				loop.Trigger()
			}
		}()
		loop.Stop()
		loop.Wait()
		calls := src.calls.Load()

		wg.Wait()
		loop.Wait()
		assert.Equal(t, calls, src.calls.Load(), "cycle started after Stop and Wait returned")
	}
}

func TestLoop_ContextCancelStops(t *testing.T) {
	src := newGatedSource(0, nil)
	sched := &manualScheduler{}
	loop := NewLoop(zaptest.NewLogger(t), LoopConfig{Source: src, Scheduler: sched, Interval: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	loop.Start(ctx)
	waitEntered(t, src)
	loop.Wait()
	sched.mu.Lock()
	assert.Equal(t, time.Minute, sched.interval)
	sched.mu.Unlock()

	cancel()
	assert.Eventually(t, func() bool { return !loop.Trigger() && sched.Cancelled() }, time.Second, 5*time.Millisecond)
}

func TestLoop_SchedulerTicksTrigger(t *testing.T) {
	src := newGatedSource(0, map[string]float64{"SAP.DE": 101})
	sched := &manualScheduler{}
	loop := NewLoop(zaptest.NewLogger(t), LoopConfig{Source: src, Scheduler: sched})
	loop.SetPositions(testPositions()[:1])

	loop.Start(context.Background())
	waitEntered(t, src)
	loop.Wait()

	sched.Tick()
	waitEntered(t, src)
	loop.Wait()

	assert.Equal(t, int32(2), src.calls.Load())
	loop.Stop()
}

func TestLoop_PositionsChangedDuringCycle(t *testing.T) {
	src := newGatedSource(1, map[string]float64{"SAP.DE": 110, "DTE.DE": 22})
	renderer := &recordingRenderer{}
	loop := NewLoop(zaptest.NewLogger(t), LoopConfig{Source: src, Scheduler: &manualScheduler{}, Renderers: []Renderer{renderer}})
	loop.SetPositions(testPositions()[:1])

	require.True(t, loop.Trigger())
	waitEntered(t, src)

	loop.SetPositions([]position.Position{pos("DTE.DE", position.SideBuy, "1", "20")})
	close(src.release)

	waitEntered(t, src)
	loop.Wait()

	snap := loop.Snapshot()
	require.NotNil(t, snap)
	require.Len(t, snap.Valuations, 1)
	assert.Equal(t, "DTE.DE", snap.Valuations[0].Symbol)
	assert.Equal(t, StatusOK, snap.Valuations[0].Status)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestLoop_RendererFailuresContained(t *testing.T) {
	src := newGatedSource(0, map[string]float64{"SAP.DE": 110})
	good := &recordingRenderer{}
	loop := NewLoop(zaptest.NewLogger(t), LoopConfig{
		Source:    src,
		Scheduler: &manualScheduler{},
		Renderers: []Renderer{
			RendererFunc(func(*Portfolio) error { return errors.New("terminal gone") }),
			RendererFunc(func(*Portfolio) error { panic("boom") }),
			good,
		},
	})
	loop.SetPositions(testPositions()[:1])

	require.True(t, loop.Trigger())
	waitEntered(t, src)
	loop.Wait()

	require.NotNil(t, good.last())
	assert.Equal(t, StatusOK, good.last().Valuations[0].Status)
	assert.Equal(t, StateIdle, loop.State())
}

type countingFetcher struct {
	calls atomic.Int32
}

func (c *countingFetcher) Fetch(_ context.Context, symbols []string) map[string]quote.Result {
	c.calls.Add(1)
	out := make(map[string]quote.Result, len(symbols))
	for _, s := range symbols {
		out[s] = quote.Success(1, "fake")
	}
	out["BAD"] = quote.Failure("all providers exhausted")
	return out
}

func TestCachedQuotes(t *testing.T) {
	logger := zaptest.NewLogger(t)
	c := cache.New(logger, cache.NewMemoryStore(), "v1", time.Minute)
	f := &countingFetcher{}
	q := NewCachedQuotes(logger, c, f)

	first := q.Quotes(context.Background(), []string{"A", "B", "BAD"})
	second := q.Quotes(context.Background(), []string{"BAD", "B", "A", "A"})

	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, first, second)
	assert.False(t, second["BAD"].OK, "failures are cached with the set")

	q.Quotes(context.Background(), []string{"A"})
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestSymbolSetKey(t *testing.T) {
	assert.Equal(t, SymbolSetKey([]string{"A", "B"}), SymbolSetKey([]string{"B", "A", "B"}))
	assert.NotEqual(t, SymbolSetKey([]string{"A"}), SymbolSetKey([]string{"A", "B"}))
}

func TestTickerScheduler(t *testing.T) {
	var n atomic.Int32
	cancel := TickerScheduler{}.Start(5*time.Millisecond, func() { n.Add(1) })
	assert.Eventually(t, func() bool { return n.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
}
