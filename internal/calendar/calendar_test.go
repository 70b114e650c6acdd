package calendar

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHolidays(t *testing.T) {
	t.Run("valid list", func(t *testing.T) {
		holidays, err := ParseHolidays([]string{"05/12/2022", "7/12/2022", "  25/12/2022 "})
		require.NoError(t, err)
		assert.Len(t, holidays, 3)
		assert.True(t, holidays.Contains(Date{2022, time.December, 5}))
		assert.True(t, holidays.Contains(Date{2022, time.December, 7}))
		assert.True(t, holidays.Contains(Date{2022, time.December, 25}))
		assert.False(t, holidays.Contains(Date{2022, time.December, 6}))
	})

	t.Run("empty list", func(t *testing.T) {
		holidays, err := ParseHolidays(nil)
		require.NoError(t, err)
		assert.Empty(t, holidays)
	})

	t.Run("blank lines are skipped", func(t *testing.T) {
		holidays, err := ParseHolidays([]string{"", "01/01/2023", "   "})
		require.NoError(t, err)
		assert.Len(t, holidays, 1)
	})

	invalid := []string{"2022-12-05", "31/02/2022", "12/13/2022", "05/12", "holiday"}
	for _, entry := range invalid {
		t.Run("rejects "+entry, func(t *testing.T) {
			holidays, err := ParseHolidays([]string{"05/12/2022", entry})
			assert.Error(t, err)
			assert.Nil(t, holidays)
		})
	}
}

func TestHolidaysSorted(t *testing.T) {
	holidays, err := ParseHolidays([]string{"07/12/2022", "01/01/2022", "05/12/2022"})
	require.NoError(t, err)

	assert.Equal(t, []Date{
		{2022, time.January, 1},
		{2022, time.December, 5},
		{2022, time.December, 7},
	}, holidays.Sorted())
	assert.Equal(t, "05/12/2022", Date{2022, time.December, 5}.String())
}

func TestLoad(t *testing.T) {
	t.Run("defaults to UTC", func(t *testing.T) {
		cal, err := Load("", nil)
		require.NoError(t, err)
		assert.Equal(t, time.UTC, cal.Location())
	})

	t.Run("unknown timezone", func(t *testing.T) {
		_, err := Load("Mars/Olympus_Mons", nil)
		assert.Error(t, err)
	})

	t.Run("bad holiday rejects config", func(t *testing.T) {
		_, err := Load("UTC", []string{"05/12/2022", "not a date"})
		assert.Error(t, err)
	})
}

func TestIsNonWorkingDay(t *testing.T) {
	holidays, err := ParseHolidays([]string{"05/12/2022", "07/12/2022"})
	require.NoError(t, err)
	cal := New(time.UTC, holidays)

	testCases := []struct {
		name     string
		at       time.Time
		expected bool
	}{
		{"Friday", time.Date(2022, 12, 2, 12, 0, 0, 0, time.UTC), false},
		{"Saturday", time.Date(2022, 12, 3, 0, 0, 0, 0, time.UTC), true},
		{"Sunday late evening", time.Date(2022, 12, 4, 23, 59, 59, 0, time.UTC), true},
		{"Monday holiday", time.Date(2022, 12, 5, 8, 30, 0, 0, time.UTC), true},
		{"Tuesday", time.Date(2022, 12, 6, 23, 59, 0, 0, time.UTC), false},
		{"Wednesday holiday at midnight", time.Date(2022, 12, 7, 0, 0, 0, 0, time.UTC), true},
		{"same date a year later is not a holiday", time.Date(2023, 12, 5, 12, 0, 0, 0, time.UTC), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, cal.IsNonWorkingDay(tc.at.Unix()))
		})
	}
}

func TestIsNonWorkingDayUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	cal := New(loc, nil)

	// Friday 20:00 UTC is already Saturday in UTC+10.
	friday := time.Date(2022, 12, 2, 20, 0, 0, 0, time.UTC)
	assert.True(t, cal.IsNonWorkingDay(friday.Unix()))
	assert.False(t, New(time.UTC, nil).IsNonWorkingDay(friday.Unix()))
}

func TestPenaltyDays(t *testing.T) {
	cal := New(time.UTC, nil)
	due := time.Date(2022, 11, 28, 23, 59, 0, 0, time.UTC).Unix()

	days := cal.PenaltyDays(due, 3)

	first := slices.Collect(days)
	assert.Equal(t, []int64{due + DaySeconds, due + 2*DaySeconds, due + 3*DaySeconds}, first)

	// the sequence can be ranged over again
	assert.Equal(t, first, slices.Collect(days))

	assert.Empty(t, slices.Collect(cal.PenaltyDays(due, 0)))
}

func TestWorkingDays(t *testing.T) {
	holidays, err := ParseHolidays([]string{"05/12/2022"})
	require.NoError(t, err)
	cal := New(time.UTC, holidays)

	// Friday 02/12/2022 23:59
	due := time.Date(2022, 12, 2, 23, 59, 0, 0, time.UTC).Unix()

	working := slices.Collect(cal.WorkingDays(cal.PenaltyDays(due, 4)))
	// Sat, Sun and the Monday holiday are dropped, Tuesday stays.
	assert.Equal(t, []int64{due + 4*DaySeconds}, working)

	var firstOnly []int64
	for day := range cal.WorkingDays(cal.PenaltyDays(due, 10)) {
		firstOnly = append(firstOnly, day)
		break
	}
	assert.Equal(t, []int64{due + 4*DaySeconds}, firstOnly)
}
