package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"

	"CBOTLoader/internal/model"
)

var (
	ErrInvalidArgCount = errors.New("expected [start_date] [end_date] frequency")
	ErrInvalidDate     = errors.New("date must be in YYYY-MM-DD format")
	ErrDateOrder       = errors.New("start date must not be after end date")
)

// ValidationError reports bad job parameters. It is raised before any
// network or database call.
type ValidationError struct {
	Args []string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameters %q: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ParseArgs turns command-line arguments into a job window. Accepted forms:
//
//	start_date end_date frequency
//	single_date frequency        (start = end = single_date)
//	frequency                    (start = end = today)
func ParseArgs(args []string, today civil.Date) (model.DateWindow, error) {
	fail := func(err error) (model.DateWindow, error) {
		return model.DateWindow{}, &ValidationError{Args: args, Err: err}
	}
	if len(args) < 1 || len(args) > 3 {
		return fail(fmt.Errorf("%w: got %d arguments", ErrInvalidArgCount, len(args)))
	}

	freq, err := model.ParseFrequency(args[len(args)-1])
	if err != nil {
		return fail(err)
	}

	dates := make([]civil.Date, 0, 2)
	for _, s := range args[:len(args)-1] {
		d, err := parseDate(s)
		if err != nil {
			return fail(err)
		}
		dates = append(dates, d)
	}

	w := model.DateWindow{Start: today, End: today, Frequency: freq}
	switch len(dates) {
	case 1:
		w.Start, w.End = dates[0], dates[0]
	case 2:
		w.Start, w.End = dates[0], dates[1]
	}
	if err := validateWindow(w); err != nil {
		return fail(err)
	}
	return w, nil
}

func validateWindow(w model.DateWindow) error {
	if !w.Frequency.Valid() {
		return fmt.Errorf("%w: got %q", model.ErrInvalidFrequency, string(w.Frequency))
	}
	if !w.Start.IsValid() || !w.End.IsValid() {
		return ErrInvalidDate
	}
	if w.Start.After(w.End) {
		return fmt.Errorf("%w: %s > %s", ErrDateOrder, w.Start, w.End)
	}
	return nil
}

func parseDate(s string) (civil.Date, error) {
	if len(s) != len("2006-01-02") {
		return civil.Date{}, fmt.Errorf("%w: got %q", ErrInvalidDate, s)
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("%w: got %q", ErrInvalidDate, s)
	}
	return d, nil
}
