package reconcile

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"CBOTLoader/internal/calendar"
	"CBOTLoader/internal/model"
)

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReconcile_FirstWeekOf2024(t *testing.T) {
	r := NewReconciler(discardLogger())
	w := model.DateWindow{Start: date(2024, 1, 1), End: date(2024, 1, 5), Frequency: model.Daily}

	missing, err := r.Reconcile(w, model.NewDateSet(date(2024, 1, 2)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []civil.Date{date(2024, 1, 1), date(2024, 1, 3), date(2024, 1, 4), date(2024, 1, 5)}
	if len(missing) != len(want) {
		t.Fatalf("got %v, want %v", missing, want)
	}
	for i := range want {
		if missing[i] != want[i] {
			t.Errorf("missing[%d] = %s, want %s", i, missing[i], want[i])
		}
	}
}

func TestReconcile_EmptyStoreReturnsCandidates(t *testing.T) {
	r := NewReconciler(discardLogger())
	for _, f := range []model.Frequency{model.Daily, model.Weekly} {
		w := model.DateWindow{Start: date(2023, 11, 15), End: date(2024, 2, 20), Frequency: f}
		candidates, err := calendar.GenerateWindow(w)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		missing, err := r.Reconcile(w, model.NewDateSet())
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if len(missing) != len(candidates) {
			t.Fatalf("%s: got %d missing, want %d", f, len(missing), len(candidates))
		}
		for i := range candidates {
			if missing[i] != candidates[i] {
				t.Errorf("%s: missing[%d] = %s, want %s", f, i, missing[i], candidates[i])
			}
		}
	}
}

func TestReconcile_SupersetStoreReturnsNothing(t *testing.T) {
	r := NewReconciler(discardLogger())
	for _, f := range []model.Frequency{model.Daily, model.Weekly} {
		w := model.DateWindow{Start: date(2024, 1, 1), End: date(2024, 3, 31), Frequency: f}
		candidates, err := calendar.GenerateWindow(w)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		existing := model.NewDateSet(candidates...)
		existing[date(2019, 6, 3)] = struct{}{}

		missing, err := r.Reconcile(w, existing)
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if len(missing) != 0 {
			t.Errorf("%s: expected nothing missing, got %v", f, missing)
		}
	}
}

func TestReconcile_WeeklyMatchesByISOWeek(t *testing.T) {
	var buf bytes.Buffer
	r := NewReconciler(slog.New(slog.NewTextHandler(&buf, nil)))
	w := model.DateWindow{Start: date(2024, 1, 1), End: date(2024, 1, 19), Frequency: model.Weekly}

	// Weekly bars are stamped on Monday; 2024-01-08 belongs to ISO week 2.
	missing, err := r.Reconcile(w, model.NewDateSet(date(2024, 1, 8)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []civil.Date{date(2024, 1, 5), date(2024, 1, 19)}
	if len(missing) != len(want) || missing[0] != want[0] || missing[1] != want[1] {
		t.Fatalf("got %v, want %v", missing, want)
	}
	if !strings.Contains(buf.String(), "year=2024 week=2") {
		t.Errorf("expected ISO week skip log, got:\n%s", buf.String())
	}
}

func TestReconcile_DailyLogsSkippedDate(t *testing.T) {
	var buf bytes.Buffer
	r := NewReconciler(slog.New(slog.NewTextHandler(&buf, nil)))
	w := model.DateWindow{Start: date(2024, 1, 1), End: date(2024, 1, 5), Frequency: model.Daily}

	if _, err := r.Reconcile(w, model.NewDateSet(date(2024, 1, 3))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "date=2024-01-03") {
		t.Errorf("expected skip log for 2024-01-03, got:\n%s", buf.String())
	}
}

func TestReconcile_InvalidFrequency(t *testing.T) {
	r := NewReconciler(discardLogger())
	w := model.DateWindow{Start: date(2024, 1, 1), End: date(2024, 1, 5), Frequency: "x"}
	if _, err := r.Reconcile(w, nil); err == nil {
		t.Fatal("expected error for invalid frequency")
	}
}

func TestPlan_CandidatesMatchCalendar(t *testing.T) {
	r := NewReconciler(discardLogger())
	for _, w := range []model.DateWindow{
		{Start: date(2024, 1, 1), End: date(2024, 1, 31), Frequency: model.Daily},
		{Start: date(2024, 1, 1), End: date(2024, 3, 1), Frequency: model.Weekly},
	} {
		p, err := r.Plan(w, model.NewDateSet(date(2024, 1, 10)))
		if err != nil {
			t.Fatalf("%s: %v", w, err)
		}
		want, err := calendar.GenerateWindow(w)
		if err != nil {
			t.Fatalf("%s: %v", w, err)
		}
		if len(p.Candidates) != len(want) {
			t.Fatalf("%s: got %d candidates, want %d", w, len(p.Candidates), len(want))
		}
		for i := range want {
			if p.Candidates[i] != want[i] {
				t.Errorf("%s: candidates[%d] = %s, want %s", w, i, p.Candidates[i], want[i])
			}
		}
		if len(p.Missing) != len(want)-1 {
			t.Errorf("%s: got %d missing, want %d", w, len(p.Missing), len(want)-1)
		}
	}
}

func TestReconcile_WeeklyMatchesMidWeekStoredDate(t *testing.T) {
	r := NewReconciler(discardLogger())
	w := model.DateWindow{Start: date(2024, 1, 1), End: date(2024, 1, 19), Frequency: model.Weekly}

	// A holiday-shifted bar stamped Wednesday still covers the week of Friday 2024-01-12.
	missing, err := r.Reconcile(w, model.NewDateSet(date(2024, 1, 10)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, d := range missing {
		if d == date(2024, 1, 12) {
			t.Fatalf("week of 2024-01-12 reported missing: %v", missing)
		}
	}
	if len(missing) != 2 {
		t.Errorf("got %v, want two missing Fridays", missing)
	}
}
