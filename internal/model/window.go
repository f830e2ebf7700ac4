package model

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// DateWindow is the inclusive calendar range a job covers.
type DateWindow struct {
	Start     civil.Date
	End       civil.Date
	Frequency Frequency
}

func (w DateWindow) String() string {
	return fmt.Sprintf("%s..%s (%s)", w.Start, w.End, w.Frequency)
}

// Coordinate identifies a target table.
type Coordinate struct {
	Server   string
	Database string
	Schema   string
	Table    string
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%s.%s.%s.%s", c.Server, c.Database, c.Schema, c.Table)
}

// WriteMode selects how the loader treats rows already in the table.
type WriteMode int

const (
	Append WriteMode = iota
	Replace
)

func (m WriteMode) String() string {
	if m == Replace {
		return "replace"
	}
	return "append"
}

// DateSet is a set of calendar dates.
type DateSet map[civil.Date]struct{}

// NewDateSet builds a set from dates.
func NewDateSet(dates ...civil.Date) DateSet {
	s := make(DateSet, len(dates))
	for _, d := range dates {
		s[d] = struct{}{}
	}
	return s
}

// Contains reports whether d is in the set.
func (s DateSet) Contains(d civil.Date) bool {
	_, ok := s[d]
	return ok
}

// Weekday returns the day of week of a calendar date.
func Weekday(d civil.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}

// ISOWeek returns the ISO 8601 year and week number of a calendar date.
func ISOWeek(d civil.Date) (year, week int) {
	return d.In(time.UTC).ISOWeek()
}

// WeekStart returns the Monday of d's ISO week.
func WeekStart(d civil.Date) civil.Date {
	return d.AddDays(-((int(Weekday(d)) + 6) % 7))
}

// MatchKey is the date two bars of frequency f are compared on. Daily
// bars match on the trade date; weekly bars match on their ISO week.
func MatchKey(f Frequency, d civil.Date) civil.Date {
	if f == Weekly {
		return WeekStart(d)
	}
	return d
}

// Keys returns the set of match keys of s under frequency f.
func (s DateSet) Keys(f Frequency) DateSet {
	if f != Weekly {
		return s
	}
	keys := make(DateSet, len(s))
	for d := range s {
		keys[WeekStart(d)] = struct{}{}
	}
	return keys
}
