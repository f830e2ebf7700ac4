// Package calendar generates the candidate trade dates a target table is
// expected to hold for a window.
package calendar

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"CBOTLoader/internal/model"
)

// Generate returns every candidate date in [start, end] for freq in
// ascending order. Daily yields Mon-Fri business days with no holiday
// calendar; Weekly yields Fridays. start after end yields an empty result.
func Generate(start, end civil.Date, freq model.Frequency) ([]civil.Date, error) {
	var keep func(civil.Date) bool
	switch freq {
	case model.Daily:
		keep = isBusinessDay
	case model.Weekly:
		keep = isFriday
	default:
		return nil, fmt.Errorf("%w: got %q", model.ErrInvalidFrequency, string(freq))
	}

	if start.After(end) {
		return nil, nil
	}

	// Jump to the first Friday so weekly windows step a week at a time.
	step := 1
	d := start
	if freq == model.Weekly {
		offset := (int(time.Friday) - int(model.Weekday(d)) + 7) % 7
		d = d.AddDays(offset)
		step = 7
	}

	dates := make([]civil.Date, 0, end.DaysSince(start)/step+1)
	for ; !d.After(end); d = d.AddDays(step) {
		if keep(d) {
			dates = append(dates, d)
		}
	}
	return dates, nil
}

// GenerateWindow is Generate applied to a DateWindow.
func GenerateWindow(w model.DateWindow) ([]civil.Date, error) {
	return Generate(w.Start, w.End, w.Frequency)
}

func isBusinessDay(d civil.Date) bool {
	wd := model.Weekday(d)
	return wd != time.Saturday && wd != time.Sunday
}

func isFriday(d civil.Date) bool {
	return model.Weekday(d) == time.Friday
}
