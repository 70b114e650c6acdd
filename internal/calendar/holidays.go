package calendar

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// HolidayLayout is the d/m/Y format holidays are configured in.
const HolidayLayout = "2/1/2006"

// Date is a calendar date without time of day or location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, int(d.Month), d.Year)
}

// Holidays is a set of literal calendar dates.
type Holidays map[Date]struct{}

// ParseHolidays parses d/m/Y entries. Blank entries are ignored, any other
// entry that is not a real calendar date rejects the whole list.
func ParseHolidays(entries []string) (Holidays, error) {
	holidays := make(Holidays, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		t, err := time.Parse(HolidayLayout, entry)
		if err != nil {
			return nil, fmt.Errorf("invalid holiday date %q: %w", entry, err)
		}
		holidays[DateOf(t)] = struct{}{}
	}
	return holidays, nil
}

func (h Holidays) Contains(d Date) bool {
	_, ok := h[d]
	return ok
}

// Sorted returns the holidays in chronological order.
func (h Holidays) Sorted() []Date {
	dates := make([]Date, 0, len(h))
	for d := range h {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool {
		a, b := dates[i], dates[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		return a.Day < b.Day
	})
	return dates
}
