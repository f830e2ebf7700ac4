// Package reconcile decides which dates a job still has to load and strips
// already-stored dates from a fetched batch.
package reconcile

import (
	"log/slog"

	"cloud.google.com/go/civil"

	"CBOTLoader/internal/calendar"
	"CBOTLoader/internal/model"
)

// Reconciler computes the missing dates of a window. It never touches the
// store; callers hand it the dates already persisted.
type Reconciler struct {
	log *slog.Logger
}

// NewReconciler creates a Reconciler. A nil logger uses slog.Default.
func NewReconciler(logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{log: logger.With("component", "reconciler")}
}

// Plan is the outcome of reconciling one window.
type Plan struct {
	Candidates []civil.Date
	Missing    []civil.Date
}

// Reconcile returns the candidate dates of w that are not in existing,
// in ascending order.
func (r *Reconciler) Reconcile(w model.DateWindow, existing model.DateSet) ([]civil.Date, error) {
	p, err := r.Plan(w, existing)
	if err != nil {
		return nil, err
	}
	return p.Missing, nil
}

// Plan generates the candidate dates of w and splits off those already in
// existing. Daily candidates match on the exact date. Weekly candidates
// match when any stored date falls in the same ISO week, since the
// provider stamps weekly bars with the week's first trading day.
func (r *Reconciler) Plan(w model.DateWindow, existing model.DateSet) (Plan, error) {
	candidates, err := calendar.GenerateWindow(w)
	if err != nil {
		return Plan{}, err
	}

	keys := existing.Keys(w.Frequency)
	missing := make([]civil.Date, 0, len(candidates))
	for _, d := range candidates {
		if !keys.Contains(model.MatchKey(w.Frequency, d)) {
			missing = append(missing, d)
			continue
		}
		if w.Frequency == model.Weekly {
			y, wk := model.ISOWeek(d)
			r.log.Info("week already loaded, skipping", "year", y, "week", wk)
		} else {
			r.log.Info("date already loaded, skipping", "date", d.String())
		}
	}

	r.log.Info("reconciled window",
		"window", w.String(),
		"candidates", len(candidates),
		"missing", len(missing),
	)
	return Plan{Candidates: candidates, Missing: missing}, nil
}
