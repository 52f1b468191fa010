package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"driftguard/internal/domain"
)

// Compile-time interface check.
var _ SnapshotArchive = (*ParquetArchive)(nil)

// ParquetArchive implements SnapshotArchive using Parquet files on disk. Each
// evaluation cycle appends one file per day; a daily file accumulates the
// rows of every cycle that ran that day.
type ParquetArchive struct {
	DataDir string
}

// NewParquetArchive creates an archive rooted at the given data directory.
func NewParquetArchive(dataDir string) *ParquetArchive {
	return &ParquetArchive{DataDir: dataDir}
}

// snapshotRecord is the Parquet schema for one symbol within a cycle.
type snapshotRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Symbol    string  `parquet:"symbol"`
	Price     float64 `parquet:"price"`
	Amount    float64 `parquet:"amount"`
	Value     float64 `parquet:"value"`
}

// WriteSnapshot archives the holdings and prices of one cycle. Symbols with a
// zero balance and no price are skipped; a held symbol without a price is
// archived with price 0 so the gap is visible.
func (a *ParquetArchive) WriteSnapshot(_ context.Context, at time.Time, holdings domain.Holdings, prices domain.PriceSnapshot) error {
	var records []snapshotRecord
	for symbol, amount := range holdings {
		price := prices[symbol]
		if amount == 0 && price == 0 {
			continue
		}
		records = append(records, snapshotRecord{
			Timestamp: at.UnixMilli(),
			Symbol:    symbol,
			Price:     price,
			Amount:    amount,
			Value:     amount * price,
		})
	}
	if len(records) == 0 {
		return nil
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Symbol < records[j].Symbol })

	path := a.snapshotPath(at)
	existing, _ := readParquetFile[snapshotRecord](path)
	merged := append(existing, records...)

	if err := writeParquetFile(path, merged); err != nil {
		return fmt.Errorf("writing snapshot for %s: %w", at.Format("2006-01-02"), err)
	}
	return nil
}

// ReadSnapshots returns archived rows with cycle timestamps in [start, end].
func (a *ParquetArchive) ReadSnapshots(_ context.Context, start, end time.Time) ([]SnapshotRow, error) {
	var out []SnapshotRow
	for d := start.Truncate(24 * time.Hour); !d.After(end); d = d.AddDate(0, 0, 1) {
		records, err := readParquetFile[snapshotRecord](a.snapshotPath(d))
		if err != nil {
			// No file for this day.
			continue
		}
		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			if ts.Before(start) || ts.After(end) {
				continue
			}
			out = append(out, SnapshotRow{
				Timestamp: ts,
				Symbol:    r.Symbol,
				Price:     r.Price,
				Amount:    r.Amount,
				Value:     r.Value,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}

// snapshotPath returns the daily archive file path.
// Layout: <dataDir>/snapshots/<YYYY-MM-DD>.parquet
func (a *ParquetArchive) snapshotPath(t time.Time) string {
	return filepath.Join(a.DataDir, "snapshots", t.UTC().Format("2006-01-02")+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
