package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rovshanmuradov/xtbhelper/internal/config"
	"github.com/rovshanmuradov/xtbhelper/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// routeGetter answers provider requests from canned bodies keyed by URL
// substring.
type routeGetter struct {
	routes map[string]string
	calls  atomic.Int32
}

func (g *routeGetter) Get(_ context.Context, rawURL string) ([]byte, error) {
	g.calls.Add(1)
	for fragment, body := range g.routes {
		if strings.Contains(rawURL, fragment) {
			return []byte(body), nil
		}
	}
	return nil, errors.New("connection refused")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

const positionsCSV = `Position,Symbol,Type,Volume,Open time,Open price,Market price
1,SAP.DE,BUY,2,2024-03-01 09:00:00,100,
2,SAP.DE,BUY,3,2024-03-02 09:00:00,100,
3,BAD.DE,BUY,0,2024-03-02 09:00:00,10,
4,NOPE.DE,SELL,1,2024-03-02 09:00:00,10,
`

const closedCSV = `Symbol,Volume,Open price,Close price,Gross P/L,Open time,Close time
SAP.DE,1,100,110,10,2024-05-01 09:00:00,2024-05-01 10:00:00
SAP.DE,3,104,114,30,2024-05-01 09:10:00,2024-05-01 10:00:30
`

func newTestApp(t *testing.T, extra string, getter *routeGetter) (*App, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "positions.csv"), []byte(positionsCSV), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "closed.csv"), []byte(closedCSV), 0600))

	content := "positions_file: " + filepath.Join(dir, "positions.csv") + "\n" +
		"closed_trades_file: " + filepath.Join(dir, "closed.csv") + "\n" +
		"providers: [finnhub]\n" +
		"pacing_ms: 0\n" +
		"cache:\n  path: " + filepath.Join(dir, "cache.db") + "\n" +
		extra
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0600))

	cfg, err := config.LoadConfig(cfgPath)
	require.NoError(t, err)

	a, err := New(cfg, zaptest.NewLogger(t), WithGetter(getter))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, dir
}

func sapGetter() *routeGetter {
	return &routeGetter{routes: map[string]string{
		"/quote?symbol=SAP.DE": `{"c": 110, "dp": 1.5}`,
	}}
}

func TestApp_Once(t *testing.T) {
	a, _ := newTestApp(t, "", sapGetter())

	var rejected atomic.Int32
	a.Bus().SubscribeFunc(events.PositionRejected, func(context.Context, events.Event) error {
		rejected.Add(1)
		return nil
	})

	var out bytes.Buffer
	p, err := a.Once(context.Background(), &out)
	require.NoError(t, err)

	require.Len(t, p.Valuations, 2)
	assert.Equal(t, 1, p.Totals.PositionCount)
	assert.Equal(t, 1, p.Totals.Failed)
	assert.Equal(t, "50", p.Totals.TotalProfit.String())
	assert.Contains(t, out.String(), "+€50.00")
	assert.Contains(t, out.String(), "all providers exhausted")

	assert.Eventually(t, func() bool { return rejected.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestApp_OnceUsesQuoteCache(t *testing.T) {
	getter := sapGetter()
	a, _ := newTestApp(t, "", getter)

	_, err := a.Once(context.Background(), io.Discard)
	require.NoError(t, err)
	calls := getter.calls.Load()

	_, err = a.Once(context.Background(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, calls, getter.calls.Load(), "second run within the TTL is served from cache")
}

func TestApp_OnceExports(t *testing.T) {
	exportDir := filepath.Join(t.TempDir(), "out")
	a, _ := newTestApp(t, "export_dir: "+exportDir+"\n", sapGetter())

	_, err := a.Once(context.Background(), io.Discard)
	require.NoError(t, err)

	entries, err := os.ReadDir(exportDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "totals.csv")
	assert.Len(t, names, 3, "json snapshot, csv snapshot and journal: %v", names)
}

func TestApp_Quote(t *testing.T) {
	a, _ := newTestApp(t, "", sapGetter())

	results := a.Quote(context.Background(), []string{"SAP.DE", "NOPE.DE", "SAP.DE"})
	require.Len(t, results, 2)
	assert.True(t, results["SAP.DE"].OK)
	assert.Equal(t, 110.0, results["SAP.DE"].Price)
	assert.Equal(t, "finnhub", results["SAP.DE"].Provider)
	assert.False(t, results["NOPE.DE"].OK)
}

func TestApp_Movers(t *testing.T) {
	getter := &routeGetter{routes: map[string]string{
		"/stock/symbol?exchange=XETRA": `[{"symbol":"SAP.DE","displaySymbol":"SAP.DE"},{"symbol":"IFX.DE","displaySymbol":"IFX.DE"}]`,
		"/quote?symbol=SAP.DE":         `{"c": 110, "dp": 1.5}`,
		"/quote?symbol=IFX.DE":         `{"c": 30, "dp": -2.25}`,
	}}
	a, _ := newTestApp(t, "", getter)

	report, err := a.Movers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	require.NotEmpty(t, report.Gainers)
	assert.Equal(t, "SAP.DE", report.Gainers[0].Symbol)
	assert.Equal(t, "IFX.DE", report.Losers[0].Symbol)
	assert.Equal(t, 50, a.MoversTopN())
}

func TestApp_History(t *testing.T) {
	exportDir := t.TempDir()
	a, _ := newTestApp(t, "export_dir: "+exportDir+"\n", sapGetter())

	trades, summary, err := a.History(context.Background(), HistoryQuery{})
	require.NoError(t, err)
	assert.Nil(t, summary)
	require.Len(t, trades, 1)
	assert.Equal(t, "4", trades[0].Volume.String())
	assert.Empty(t, trades[0].Name)

	entries, err := os.ReadDir(exportDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "closed_trades_"))
}

func TestApp_HistoryMonthAndNames(t *testing.T) {
	getter := &routeGetter{routes: map[string]string{
		"/v1/finance/search?q=SAP.DE": `{"quotes":[{"shortname":"SAP SE"}]}`,
	}}
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "closed.csv"), []byte(`Symbol,Volume,Open price,Close price,Gross P/L,Open time,Close time
IFX.DE,2,30,33,6,2024-06-01 09:00:00,2024-06-03 09:00:00
SAP.DE,3,104,114,30,2024-05-01 09:10:00,2024-05-01 10:00:30
SAP.DE,1,100,110,10,2024-05-01 09:00:00,2024-05-01 10:00:00
`), 0600))
	require.NoError(t, os.WriteFile(cfgPath, []byte("closed_trades_file: "+filepath.Join(dir, "closed.csv")+"\npacing_ms: 0\ncache:\n  path: \"\"\n"), 0600))
	cfg, err := config.LoadConfig(cfgPath)
	require.NoError(t, err)

	now := func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) }
	a, err := New(cfg, zaptest.NewLogger(t), WithGetter(getter), WithNow(now))
	require.NoError(t, err)
	defer a.Close()

	previous := -1
	trades, summary, err := a.History(context.Background(), HistoryQuery{Month: &previous, Names: true})
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), summary.Month)
	assert.Equal(t, 1, summary.Trades)
	assert.Equal(t, "40", summary.Saldo.String())
	// 40 / (4 * 103) * 100
	assert.Equal(t, "9.71", summary.AvgPercent.StringFixed(2))

	require.Len(t, trades, 1)
	assert.Equal(t, "SAP.DE", trades[0].Symbol)
	assert.Equal(t, "SAP SE", trades[0].Name)

	calls := getter.calls.Load()
	current := 0
	trades, summary, err = a.History(context.Background(), HistoryQuery{Month: &current, Names: true})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Trades)
	require.Len(t, trades, 1)
	// IFX.DE has no search route: the symbol stands in for the name.
	assert.Equal(t, "IFX.DE", trades[0].Name)
	assert.Equal(t, calls+1, getter.calls.Load())

	_, _, err = a.History(context.Background(), HistoryQuery{Month: &previous, Names: true})
	require.NoError(t, err)
	assert.Equal(t, calls+1, getter.calls.Load(), "cached name reused")
}

func TestApp_Watch(t *testing.T) {
	a, _ := newTestApp(t, "refresh_ms: 60000\n", sapGetter())

	in, inWriter := io.Pipe()
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- a.Watch(context.Background(), in, out) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "+€50.00")
	}, 5*time.Second, 20*time.Millisecond)

	_, err := inWriter.Write([]byte("\n"))
	require.NoError(t, err)
	_, err = inWriter.Write([]byte("q\n"))
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop on quit")
	}
	inWriter.Close()
}

func TestApp_WatchStopsOnContextCancel(t *testing.T) {
	a, _ := newTestApp(t, "", sapGetter())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx, strings.NewReader(""), io.Discard) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}

func TestApp_MissingPositionsFile(t *testing.T) {
	a, _ := newTestApp(t, "", sapGetter())
	a.cfg.PositionsFile = ""
	_, err := a.Once(context.Background(), io.Discard)
	assert.Error(t, err)
}
