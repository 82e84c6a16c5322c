package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rovshanmuradov/xtbhelper/internal/monitor"
	"go.uber.org/zap"
)

var journalHeader = []string{"valued_at", "cycle_id", "positions", "failed", "total_profit", "total_investment", "average_percent_return"}

// Journal appends one line of totals per completed snapshot to a CSV file,
// building a P/L history across runs. It is safe for concurrent use.
type Journal struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	logger *zap.Logger
	path   string

	written uint64
}

// OpenJournal opens path for appending, writing the header when the file is new.
func OpenJournal(logger *zap.Logger, path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	j := &Journal{
		file:   file,
		writer: csv.NewWriter(file),
		logger: logger.Named("journal"),
		path:   path,
	}
	if stat.Size() == 0 {
		j.writer.Write(journalHeader)
		j.writer.Flush()
		if err := j.writer.Error(); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}
	return j, nil
}

// Render implements monitor.Renderer. Snapshots still loading are skipped.
func (j *Journal) Render(p *monitor.Portfolio) error {
	if p.Totals.Pending > 0 {
		return nil
	}
	t := p.Totals
	record := []string{
		p.ValuedAt.UTC().Format(time.RFC3339),
		p.CycleID,
		fmt.Sprint(t.PositionCount),
		fmt.Sprint(t.Failed),
		t.TotalProfit.String(),
		t.TotalInvestment.String(),
		t.AveragePercentReturn.String(),
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	j.writer.Flush()
	if err := j.writer.Error(); err != nil {
		return fmt.Errorf("failed to flush journal: %w", err)
	}
	j.written++
	return nil
}

// Written reports how many snapshots were appended since opening.
func (j *Journal) Written() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.written
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.writer.Flush()
	if err := j.file.Close(); err != nil {
		return err
	}
	j.logger.Debug("Journal closed", zap.String("path", j.path), zap.Uint64("records", j.written))
	return nil
}
