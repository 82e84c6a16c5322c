package position

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrNoHeader is returned when a CSV export has no row naming a Symbol column.
var ErrNoHeader = errors.New("no header row with a Symbol column")

// Loader reads broker exports into raw rows.
type Loader struct {
	logger *zap.Logger
}

// NewLoader constructs a Loader with the given logger.
func NewLoader(logger *zap.Logger) *Loader {
	return &Loader{logger: logger.Named("loader")}
}

// fileConfig is the YAML layout of a hand-maintained positions file.
type fileConfig struct {
	Positions []struct {
		Symbol      string   `yaml:"symbol"`
		Type        string   `yaml:"type"`
		Volume      float64  `yaml:"volume"`
		OpenPrice   float64  `yaml:"open_price"`
		MarketPrice *float64 `yaml:"market_price"`
		OpenTime    string   `yaml:"open_time"`
	} `yaml:"positions"`
}

// LoadRows reads open positions from a .csv, .yaml or .yml file.
func (l *Loader) LoadRows(path string) ([]RawRow, error) {
	if filepath.IsAbs(path) {
		l.logger.Debug("Using absolute path for positions file", zap.String("path", path))
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return l.loadYAML(filepath.Clean(path))
	case ".csv":
		f, err := os.Open(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("failed to open positions file: %w", err)
		}
		defer f.Close()
		return l.ReadRowsCSV(f)
	default:
		return nil, fmt.Errorf("unsupported positions file type: %q", filepath.Ext(path))
	}
}

func (l *Loader) loadYAML(path string) ([]RawRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	rows := make([]RawRow, 0, len(cfg.Positions))
	for i, p := range cfg.Positions {
		side, err := ParseSide(p.Type)
		if err != nil {
			l.logger.Warn("Skipping position with invalid type",
				zap.Int("index", i),
				zap.String("symbol", p.Symbol),
				zap.Error(err))
			continue
		}

		row := RawRow{
			Symbol:    p.Symbol,
			Side:      side,
			Volume:    decimal.NewFromFloat(p.Volume),
			OpenPrice: decimal.NewFromFloat(p.OpenPrice),
		}
		if p.MarketPrice != nil {
			mp := decimal.NewFromFloat(*p.MarketPrice)
			row.MarketPrice = &mp
		}
		if t, ok := ParseTime(p.OpenTime); ok {
			row.OpenTime = &t
		}
		rows = append(rows, row)
	}

	l.logger.Info("Loaded positions", zap.Int("rows", len(rows)))
	return rows, nil
}

// ReadRowsCSV parses an open-positions export.
func (l *Loader) ReadRowsCSV(r io.Reader) ([]RawRow, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}

	rows := make([]RawRow, 0, len(records))
	for i, rec := range records {
		symbol := rec.get("Symbol")
		if symbol == "" && rec.empty() {
			continue
		}

		side, err := ParseSide(rec.get("Type"))
		if err != nil {
			l.logger.Warn("Skipping row with invalid type",
				zap.Int("line", i+1),
				zap.String("symbol", symbol),
				zap.Error(err))
			continue
		}

		row := RawRow{
			Symbol:    symbol,
			Side:      side,
			Volume:    parseDecimal(rec.get("Volume")),
			OpenPrice: parseDecimal(rec.get("Open price")),
		}
		if mp := rec.first("Market price", "Price", "Close price"); mp != "" {
			d := parseDecimal(mp)
			row.MarketPrice = &d
		}
		if t, ok := ParseTime(rec.first("Open time", "Time")); ok {
			row.OpenTime = &t
		}
		rows = append(rows, row)
	}

	l.logger.Info("Loaded positions", zap.Int("rows", len(rows)))
	return rows, nil
}

// LoadClosedTrades reads the closed-positions export at path.
func (l *Loader) LoadClosedTrades(path string) ([]ClosedTrade, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open closed trades file: %w", err)
	}
	defer f.Close()
	return l.ReadClosedTradesCSV(f)
}

// ReadClosedTradesCSV parses a closed-positions export. XTB lists the newest
// trade first; the result is returned oldest first, the order
// MergeNearbyFills expects.
func (l *Loader) ReadClosedTradesCSV(r io.Reader) ([]ClosedTrade, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}

	trades := make([]ClosedTrade, 0, len(records))
	for _, rec := range records {
		symbol := rec.get("Symbol")
		if symbol == "" {
			continue
		}
		t := ClosedTrade{
			Symbol:     symbol,
			Volume:     parseDecimal(rec.get("Volume")),
			OpenPrice:  parseDecimal(rec.get("Open price")),
			ClosePrice: parseDecimal(rec.get("Close price")),
			GrossPL:    parseDecimal(rec.get("Gross P/L")),
		}
		if ts, ok := ParseTime(rec.first("Open time", "Open Time")); ok {
			t.OpenTime = &ts
		}
		if ts, ok := ParseTime(rec.first("Close time", "Close Time")); ok {
			t.CloseTime = &ts
		}
		trades = append(trades, t)
	}
	slices.Reverse(trades)

	l.logger.Info("Loaded closed trades", zap.Int("rows", len(trades)))
	return trades, nil
}

type record struct {
	index  map[string]int
	fields []string
}

func (r record) get(column string) string {
	i, ok := r.index[column]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r record) first(columns ...string) string {
	for _, c := range columns {
		if v := r.get(c); v != "" {
			return v
		}
	}
	return ""
}

func (r record) empty() bool {
	for _, f := range r.fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// readRecords skips the preamble broker exports put above the table and
// returns every row after the first one that names a Symbol column.
func readRecords(r io.Reader) ([]record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	all, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	header := -1
	for i, row := range all {
		for _, cell := range row {
			if strings.TrimSpace(cell) == "Symbol" {
				header = i
				break
			}
		}
		if header >= 0 {
			break
		}
	}
	if header < 0 {
		return nil, ErrNoHeader
	}

	index := make(map[string]int, len(all[header]))
	for i, h := range all[header] {
		h = strings.TrimSpace(h)
		if _, dup := index[h]; !dup && h != "" {
			index[h] = i
		}
	}

	records := make([]record, 0, len(all)-header-1)
	for _, row := range all[header+1:] {
		records = append(records, record{index: index, fields: row})
	}
	return records, nil
}

// parseDecimal maps unparsable cells to zero so the consolidator can reject
// the group instead of the loader failing the whole file.
func parseDecimal(s string) decimal.Decimal {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"02.01.2006 15:04:05",
	"2006-01-02",
}

// spreadsheetEpoch is day zero of spreadsheet serial dates (1899-12-30), so
// serial 25569 is the Unix epoch.
var spreadsheetEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseTime accepts the timestamp shapes found in broker exports: plain
// date-times (fractional seconds ignored), RFC3339 and spreadsheet serials.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(serial) || math.IsInf(serial, 0) || serial <= 0 {
			return time.Time{}, false
		}
		ms := int64(math.Round(serial * 86400 * 1000))
		return spreadsheetEpoch.Add(time.Duration(ms) * time.Millisecond), true
	}

	clean := s
	if i := strings.LastIndex(clean, "."); i > 0 && !strings.Contains(clean[i:], ":") && strings.Contains(clean[:i], ":") {
		clean = clean[:i]
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, clean, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
