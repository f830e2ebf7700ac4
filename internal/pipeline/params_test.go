package pipeline

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"CBOTLoader/internal/model"
)

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func TestParseArgs(t *testing.T) {
	today := date(2024, 3, 15)
	tests := []struct {
		name    string
		args    []string
		want    model.DateWindow
		wantErr error
	}{
		{"range", []string{"2024-01-01", "2024-01-05", "d"},
			model.DateWindow{Start: date(2024, 1, 1), End: date(2024, 1, 5), Frequency: model.Daily}, nil},
		{"single date", []string{"2024-01-05", "W"},
			model.DateWindow{Start: date(2024, 1, 5), End: date(2024, 1, 5), Frequency: model.Weekly}, nil},
		{"today", []string{"D"},
			model.DateWindow{Start: today, End: today, Frequency: model.Daily}, nil},
		{"same start and end", []string{"2024-01-05", "2024-01-05", "d"},
			model.DateWindow{Start: date(2024, 1, 5), End: date(2024, 1, 5), Frequency: model.Daily}, nil},
		{"no args", nil, model.DateWindow{}, ErrInvalidArgCount},
		{"too many args", []string{"2024-01-01", "2024-01-02", "2024-01-03", "d"}, model.DateWindow{}, ErrInvalidArgCount},
		{"bad frequency", []string{"2024-01-01", "m"}, model.DateWindow{}, model.ErrInvalidFrequency},
		{"frequency not last", []string{"d", "2024-01-01"}, model.DateWindow{}, model.ErrInvalidFrequency},
		{"slashes", []string{"2024/01/01", "d"}, model.DateWindow{}, ErrInvalidDate},
		{"impossible day", []string{"2024-02-30", "d"}, model.DateWindow{}, ErrInvalidDate},
		{"short month", []string{"2024-1-05", "d"}, model.DateWindow{}, ErrInvalidDate},
		{"start after end", []string{"2024-01-05", "2024-01-01", "d"}, model.DateWindow{}, ErrDateOrder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseArgs(tt.args, today)
			if tt.wantErr != nil {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error %v is not %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseArgs: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
