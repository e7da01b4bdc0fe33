package window

import (
	"fmt"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
)

const (
	weekLabelLayout  = "2006-01-02"
	monthLabelLayout = "2006-01"
)

// Period identifies one calendar bucket: an ISO (year, week) pair for weekly
// granularity or a (year, month) pair for monthly granularity.
type Period struct {
	Granularity domain.Granularity
	Year        int
	Number      int
}

// PeriodOf returns the period containing the day at offset days after anchor.
// It is a pure function of its inputs.
func PeriodOf(anchor time.Time, offset int, g domain.Granularity) Period {
	day := DayAt(anchor, offset)
	if g == domain.Month {
		return Period{Granularity: g, Year: day.Year(), Number: int(day.Month())}
	}
	year, week := day.ISOWeek()
	return Period{Granularity: g, Year: year, Number: week}
}

// DayAt returns the calendar day offset days after anchor, at UTC midnight.
func DayAt(anchor time.Time, offset int) time.Time {
	y, m, d := anchor.Date()
	return time.Date(y, m, d+offset, 0, 0, 0, 0, time.UTC)
}

// Start returns the first calendar day of the period.
func (p Period) Start() time.Time {
	if p.Granularity == domain.Month {
		return time.Date(p.Year, time.Month(p.Number), 1, 0, 0, 0, 0, time.UTC)
	}
	// January 4th is always in ISO week 1.
	jan4 := time.Date(p.Year, time.January, 4, 0, 0, 0, 0, time.UTC)
	week1Monday := jan4.AddDate(0, 0, -daysSinceMonday(jan4))
	return week1Monday.AddDate(0, 0, (p.Number-1)*7)
}

// Label formats the period: the Monday's date for weeks, "2006-01" for months.
func (p Period) Label() string {
	if p.Granularity == domain.Month {
		return p.Start().Format(monthLabelLayout)
	}
	return p.Start().Format(weekLabelLayout)
}

func (p Period) String() string {
	return fmt.Sprintf("%s %d/%02d", p.Granularity, p.Year, p.Number)
}

func daysSinceMonday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
