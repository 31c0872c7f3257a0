package charts

import (
	"strings"
	"time"

	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/table"
)

// dateLayouts are tried in order. Slash dates are read month-first, then
// day-first when the first field cannot be a month.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006/1/2",
	"2006/01/02 15:04:05",
	"2006/1/2 15:04:05",
	"1/2/2006",
	"2/1/2006",
	"1/2/2006 15:04:05",
	"2/1/2006 15:04:05",
	"2006-1-2",
	"2006.01.02",
	"02.01.2006",
}

// ParseDate parses a normalized date cell value
func ParseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

// FilterFromYear keeps the records whose dateColumn parses to a date on or
// after January 1 of year. Unparseable dates are dropped.
func FilterFromYear(records []table.Record, dateColumn string, year int) []table.Record {
	out := make([]table.Record, 0, len(records))
	for _, rec := range records {
		// the wall-clock year counts, not the UTC instant
		t, ok := ParseDate(rec[dateColumn])
		if !ok || t.Year() < year {
			continue
		}
		out = append(out, rec)
	}
	return out
}
