package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidFrequency is returned for any frequency tag other than d/D/w/W.
var ErrInvalidFrequency = errors.New("frequency must be 'd' or 'w', case insensitive")

// Frequency selects the bar cadence of a job.
type Frequency string

const (
	Daily  Frequency = "d"
	Weekly Frequency = "w"
)

// ParseFrequency accepts the CLI tag in any case.
func ParseFrequency(tag string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "d":
		return Daily, nil
	case "w":
		return Weekly, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidFrequency, tag)
	}
}

// Valid reports whether f is one of the recognised tags.
func (f Frequency) Valid() bool {
	return f == Daily || f == Weekly
}

// Interval returns the provider bar interval for f.
func (f Frequency) Interval() string {
	if f == Weekly {
		return "1wk"
	}
	return "1d"
}

// TableName returns the target table holding bars of this frequency.
func (f Frequency) TableName() string {
	if f == Weekly {
		return "Weekly_Price_Data"
	}
	return "Daily_Price_Data"
}

func (f Frequency) String() string {
	switch f {
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	default:
		return string(f)
	}
}
