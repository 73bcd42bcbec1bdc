// Package billing holds the calendar primitives the connector bills
// against: the Month value type and the region display-name table.
package billing

import (
	"time"

	"github.com/finopshq/mimir-cost-datasource/internal/apperr"
)

// MonthLayout is the wire format for a billing month.
const MonthLayout = "2006-01"

// Month identifies one calendar month in UTC. The zero value is not a
// valid month; construct through NewMonth, ParseMonth or MonthOf.
type Month struct {
	year  int
	month time.Month
}

// NewMonth builds a Month from a year and a month.
func NewMonth(year int, month time.Month) Month {
	return Month{year: year, month: month}
}

// ParseMonth parses a "YYYY-MM" string. Malformed input is a parameter
// type error for key "start".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return Month{}, &apperr.InvalidParameterType{Key: "start", Expected: MonthLayout}
	}
	return MonthOf(t), nil
}

// MonthOf returns the calendar month containing t, evaluated in UTC.
func MonthOf(t time.Time) Month {
	u := t.UTC()
	return Month{year: u.Year(), month: u.Month()}
}

// First returns the first instant of the month (midnight UTC on day 1).
func (m Month) First() time.Time {
	return time.Date(m.year, m.month, 1, 0, 0, 0, 0, time.UTC)
}

// Last returns the last instant billed for the month: 23:59:59 UTC on
// its final day.
func (m Month) Last() time.Time {
	return m.First().AddDate(0, 1, 0).Add(-time.Second)
}

// Days returns the number of calendar days in the month (28-31).
func (m Month) Days() int {
	return m.Last().Day()
}

// Next returns the following calendar month.
func (m Month) Next() Month {
	return MonthOf(m.First().AddDate(0, 1, 0))
}

// After reports whether m is strictly later than other.
func (m Month) After(other Month) bool {
	return m.year > other.year || (m.year == other.year && m.month > other.month)
}

// Contains reports whether t falls inside the month.
func (m Month) Contains(t time.Time) bool {
	return MonthOf(t) == m
}

func (m Month) String() string {
	return m.First().Format(MonthLayout)
}
