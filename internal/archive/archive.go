package archive

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"CBOTLoader/internal/model"
)

// Record is the Parquet schema for an archived price row.
type Record struct {
	Date         string  `parquet:"date"`
	Name         string  `parquet:"name"`
	Ticker       string  `parquet:"ticker"`
	Open         float64 `parquet:"open"`
	High         float64 `parquet:"high"`
	Low          float64 `parquet:"low"`
	Close        float64 `parquet:"close"`
	AdjClose     float64 `parquet:"adj_close"`
	Volume       int64   `parquet:"volume"`
	DownloadTime int64   `parquet:"download_time,timestamp(millisecond)"` // Unix ms
	RunID        string  `parquet:"run_id"`
	IntradayID   int64   `parquet:"intraday_id"`
}

// ParquetArchive writes a copy of each loaded batch to disk.
type ParquetArchive struct {
	Dir string
	log *slog.Logger
}

func NewParquetArchive(dir string, logger *slog.Logger) *ParquetArchive {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParquetArchive{Dir: dir, log: logger.With("component", "archive")}
}

// Path returns the file a batch is archived to.
// Layout: <dir>/<table>/<runid>-<download unix ms>-<first intraday id>.parquet
//
// Intraday ids restart at 1 on every collection, so two batches of the same
// run id are told apart by their download time.
func (a *ParquetArchive) Path(table string, rows []model.PriceRecord) string {
	runID, stamp, first := "empty", int64(0), 0
	if len(rows) > 0 {
		runID, stamp, first = rows[0].RunID, rows[0].DownloadTime.UnixMilli(), rows[0].IntradayID
	}
	return filepath.Join(a.Dir, table, fmt.Sprintf("%s-%d-%d.parquet", runID, stamp, first))
}

// Archive writes rows to a new Parquet file and returns its path. An empty
// batch writes nothing. An existing archive file is never overwritten.
func (a *ParquetArchive) Archive(table string, rows []model.PriceRecord) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}
	records := make([]Record, len(rows))
	for i, r := range rows {
		records[i] = Record{
			Date:         r.Date.String(),
			Name:         r.Name,
			Ticker:       r.Ticker,
			Open:         r.Open.InexactFloat64(),
			High:         r.High.InexactFloat64(),
			Low:          r.Low.InexactFloat64(),
			Close:        r.Close.InexactFloat64(),
			AdjClose:     r.AdjClose.InexactFloat64(),
			Volume:       r.Volume,
			DownloadTime: r.DownloadTime.UnixMilli(),
			RunID:        r.RunID,
			IntradayID:   int64(r.IntradayID),
		}
	}

	path := a.Path(table, rows)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}
	if err := parquet.Write(f, records); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write parquet %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close parquet %s: %w", path, err)
	}
	a.log.Info("batch archived", "path", path, "rows", len(records))
	return path, nil
}

// Read loads an archived batch.
func Read(path string) ([]Record, error) {
	return parquet.ReadFile[Record](path)
}
