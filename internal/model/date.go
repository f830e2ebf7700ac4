package model

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// NormalizeDate converts a value read from a database driver into a
// calendar date. Drivers hand back DATE columns as time.Time, string or
// []byte depending on dialect; any time-of-day component is dropped.
func NormalizeDate(v any) (civil.Date, error) {
	switch x := v.(type) {
	case civil.Date:
		return x, nil
	case time.Time:
		return civil.DateOf(x), nil
	case *time.Time:
		if x == nil {
			return civil.Date{}, fmt.Errorf("nil time")
		}
		return civil.DateOf(*x), nil
	case string:
		return parseDatePrefix(x)
	case []byte:
		return parseDatePrefix(string(x))
	default:
		return civil.Date{}, fmt.Errorf("unsupported date value %T", v)
	}
}

func parseDatePrefix(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if len(s) < 10 {
		return civil.Date{}, fmt.Errorf("malformed date %q", s)
	}
	d, err := civil.ParseDate(s[:10])
	if err != nil {
		return civil.Date{}, fmt.Errorf("malformed date %q: %w", s, err)
	}
	return d, nil
}
