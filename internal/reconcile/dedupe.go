package reconcile

import (
	"log/slog"
	"sort"

	"cloud.google.com/go/civil"

	"CBOTLoader/internal/model"
)

// DuplicateFilter drops fetched rows whose trade date is already stored.
// It runs right before the load and covers overlapping windows and dates
// written since reconciliation.
type DuplicateFilter struct {
	log *slog.Logger
}

// NewDuplicateFilter creates a DuplicateFilter. A nil logger uses slog.Default.
func NewDuplicateFilter(logger *slog.Logger) *DuplicateFilter {
	if logger == nil {
		logger = slog.Default()
	}
	return &DuplicateFilter{log: logger.With("component", "dedupe")}
}

// RemoveExisting returns the rows whose date is not in existing, keeping
// their order. Each removed date is logged once. The input slice is not
// modified.
func (f *DuplicateFilter) RemoveExisting(existing model.DateSet, rows []model.PriceRecord) []model.PriceRecord {
	return f.RemoveExistingFor(model.Daily, existing, rows)
}

// RemoveExistingFor is RemoveExisting with dates compared on the match key
// of freq, so a weekly row is dropped when its ISO week is already stored.
func (f *DuplicateFilter) RemoveExistingFor(freq model.Frequency, existing model.DateSet, rows []model.PriceRecord) []model.PriceRecord {
	if len(existing) == 0 || len(rows) == 0 {
		return rows
	}

	keys := existing.Keys(freq)
	removed := make(map[civil.Date]struct{})
	kept := make([]model.PriceRecord, 0, len(rows))
	for _, row := range rows {
		if keys.Contains(model.MatchKey(freq, row.Date)) {
			removed[row.Date] = struct{}{}
			continue
		}
		kept = append(kept, row)
	}

	dates := make([]civil.Date, 0, len(removed))
	for d := range removed {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	for _, d := range dates {
		f.log.Info("date already stored, removed from batch", "date", d.String())
	}

	if len(dates) > 0 {
		f.log.Info("duplicate dates removed",
			"dates", len(dates),
			"rows_before", len(rows),
			"rows_after", len(kept),
		)
	}
	return kept
}
