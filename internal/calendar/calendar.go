package calendar

import (
	"fmt"
	"iter"
	"time"
	_ "time/tzdata"
)

const DaySeconds int64 = 24 * 60 * 60

// Calendar decides which days count towards a late penalty.
type Calendar struct {
	loc      *time.Location
	holidays Holidays
}

func New(loc *time.Location, holidays Holidays) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	if holidays == nil {
		holidays = Holidays{}
	}
	return &Calendar{loc: loc, holidays: holidays}
}

// Load builds a calendar from a time zone name and raw holiday entries.
func Load(timezone string, entries []string) (*Calendar, error) {
	loc := time.UTC
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q: %w", timezone, err)
		}
	}

	holidays, err := ParseHolidays(entries)
	if err != nil {
		return nil, err
	}

	return New(loc, holidays), nil
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

func (c *Calendar) Holidays() Holidays {
	return c.holidays
}

// IsNonWorkingDay reports whether the unix timestamp falls on a weekend or a
// configured holiday in the calendar's time zone.
func (c *Calendar) IsNonWorkingDay(ts int64) bool {
	t := time.Unix(ts, 0).In(c.loc)

	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}

	return c.holidays.Contains(DateOf(t))
}

// PenaltyDays yields the candidate instant of each of the first n overdue
// days: dueAt plus one, two, ... n whole days.
func (c *Calendar) PenaltyDays(dueAt int64, n int) iter.Seq[int64] {
	return func(yield func(int64) bool) {
		for i := 1; i <= n; i++ {
			if !yield(dueAt + DaySeconds*int64(i)) {
				return
			}
		}
	}
}

// WorkingDays filters days down to those that are not weekends or holidays.
func (c *Calendar) WorkingDays(days iter.Seq[int64]) iter.Seq[int64] {
	return func(yield func(int64) bool) {
		for day := range days {
			if c.IsNonWorkingDay(day) {
				continue
			}
			if !yield(day) {
				return
			}
		}
	}
}
