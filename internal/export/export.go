package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rovshanmuradov/xtbhelper/internal/monitor"
	"github.com/rovshanmuradov/xtbhelper/internal/position"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ErrNothingToExport is returned for snapshots without valuation rows.
// Snapshots whose rows all failed are still exported so the failures are
// on record.
var ErrNothingToExport = errors.New("no valuations to export")

// Exporter writes portfolio snapshots and closed trades into a directory.
type Exporter struct {
	logger  *zap.Logger
	dir     string
	formats []ExportFormat
	now     func() time.Time
}

// NewExporter writes every snapshot in each of formats (JSON when none given).
func NewExporter(logger *zap.Logger, dir string, formats ...ExportFormat) *Exporter {
	if len(formats) == 0 {
		formats = []ExportFormat{FormatJSON}
	}
	return &Exporter{
		logger:  logger.Named("export"),
		dir:     dir,
		formats: formats,
		now:     time.Now,
	}
}

// Render implements monitor.Renderer so the exporter can sit next to the
// terminal output. Pending snapshots are skipped.
func (e *Exporter) Render(p *monitor.Portfolio) error {
	if p.Totals.Pending > 0 {
		return nil
	}
	_, err := e.ExportPortfolio(p)
	if errors.Is(err, ErrNothingToExport) {
		return nil
	}
	return err
}

// ExportPortfolio writes p in every configured format and returns the paths.
func (e *Exporter) ExportPortfolio(p *monitor.Portfolio) ([]string, error) {
	if len(p.Valuations) == 0 {
		return nil, ErrNothingToExport
	}
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, 0, len(e.formats))
	for _, format := range e.formats {
		outputPath := filepath.Join(e.dir, e.generateFilename("portfolio", p.ValuedAt, format))

		var err error
		switch format {
		case FormatCSV:
			err = writeCSV(outputPath, valuationHeaders(), valuationRecords(p.Valuations))
		case FormatJSON:
			err = writeJSON(outputPath, p)
		default:
			err = fmt.Errorf("unsupported format: %s", format)
		}
		if err != nil {
			return paths, err
		}
		paths = append(paths, outputPath)
	}

	e.logger.Debug("Portfolio exported",
		zap.Strings("files", paths),
		zap.Int("count", len(p.Valuations)),
		zap.String("cycle_id", p.CycleID))
	return paths, nil
}

// ExportClosedTrades writes trades to a CSV file.
func (e *Exporter) ExportClosedTrades(trades []position.ClosedTrade) (string, error) {
	if len(trades) == 0 {
		return "", fmt.Errorf("no trades to export")
	}
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	outputPath := filepath.Join(e.dir, e.generateFilename("closed_trades", e.now(), FormatCSV))
	if err := writeCSV(outputPath, closedTradeHeaders(), closedTradeRecords(trades)); err != nil {
		return "", err
	}

	e.logger.Info("Closed trades exported",
		zap.String("file", outputPath),
		zap.Int("count", len(trades)))
	return outputPath, nil
}

// generateFilename names a file after the snapshot time, so the exports of one
// cycle share a stem.
func (e *Exporter) generateFilename(prefix string, at time.Time, format ExportFormat) string {
	if at.IsZero() {
		at = e.now()
	}
	return fmt.Sprintf("%s_%s.%s", prefix, at.UTC().Format("20060102_150405.000"), format)
}

func writeCSV(outputPath string, headers []string, records [][]string) (err error) {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer closeFile(file, &err)

	writer := csv.NewWriter(file)
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	if err := writer.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write CSV records: %w", err)
	}
	return nil
}

func writeJSON(outputPath string, v interface{}) (err error) {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer closeFile(file, &err)

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// closeFile closes f and reports its error through err unless an earlier
// write already failed.
func closeFile(f io.Closer, err *error) {
	if cerr := f.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("failed to close file: %w", cerr)
	}
}

func valuationHeaders() []string {
	return []string{"symbol", "side", "volume", "open_price", "current_price", "profit", "percent_return", "status", "provider", "reason"}
}

func valuationRecords(valuations []monitor.Valuation) [][]string {
	records := make([][]string, 0, len(valuations))
	for _, v := range valuations {
		records = append(records, []string{
			v.Symbol,
			string(v.Side),
			v.Volume.String(),
			v.OpenPrice.String(),
			optional(v.CurrentPrice),
			optional(v.Profit),
			optional(v.PercentReturn),
			string(v.Status),
			v.Provider,
			v.Reason,
		})
	}
	return records
}

func closedTradeHeaders() []string {
	return []string{"symbol", "name", "volume", "open_price", "close_price", "gross_pl", "open_time", "close_time"}
}

func closedTradeRecords(trades []position.ClosedTrade) [][]string {
	records := make([][]string, 0, len(trades))
	for _, t := range trades {
		records = append(records, []string{
			t.Symbol,
			t.Name,
			t.Volume.String(),
			t.OpenPrice.String(),
			t.ClosePrice.String(),
			t.GrossPL.String(),
			optionalTime(t.OpenTime),
			optionalTime(t.CloseTime),
		})
	}
	return records
}

func optional(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func optionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
