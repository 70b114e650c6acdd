// internal/scoring/grader.go
package scoring

import (
	"time"

	"github.com/shrimpsizemoose/overdue/internal/calendar"
	"github.com/shrimpsizemoose/overdue/internal/models"
)

// GracePeriod is added to the due date before deciding a submission is late.
const GracePeriod = time.Minute

const GracePeriodSeconds = int64(GracePeriod / time.Second)

type Grader struct {
	calendar *calendar.Calendar
}

func NewGrader(cal *calendar.Calendar) *Grader {
	if cal == nil {
		cal = calendar.New(time.UTC, nil)
	}
	return &Grader{calendar: cal}
}

func (g *Grader) Calendar() *calendar.Calendar {
	return g.calendar
}

// IsLate compares against the due date extended by the grace period.
func IsLate(finishedAt, dueAt int64) bool {
	return dueAt > 0 && finishedAt >= dueAt+GracePeriodSeconds
}

// OverdueDays counts how many penalty days a submission has entered.
// Finishing exactly on a day boundary already counts the next day: 0s late is
// day one, 24h late is day two.
func OverdueDays(finishedAt, dueAt int64) int {
	overdue := finishedAt - GracePeriodSeconds - dueAt
	if overdue < 0 {
		return 0
	}

	// ceil(overdue/day), plus one more on an exact day boundary, is always
	// floor+1
	return int(overdue/calendar.DaySeconds + 1)
}

// PercentagePenalty returns the percentage in [0, 100] to deduct for a
// snapshot. No snapshot means no penalty.
func (g *Grader) PercentagePenalty(snapshot *models.OverdueSnapshot) int {
	if snapshot == nil || !snapshot.PenaltyEnabled {
		return 0
	}
	if !IsLate(snapshot.FinishedAt, snapshot.DueAt) {
		return 0
	}

	daily := snapshot.DailyPercentage
	if daily <= 0 {
		return 0
	}

	// candidate days are taken from the unextended due date so the grace
	// period never moves a check onto the next calendar day
	days := g.calendar.PenaltyDays(snapshot.DueAt, OverdueDays(snapshot.FinishedAt, snapshot.DueAt))

	// daily >= 1 and the cap is at most 100, so this stops within 100 working days
	maxPenalty := models.NormalizedMax(snapshot.MaxPercentage)
	percentage := 0
	for range g.calendar.WorkingDays(days) {
		percentage += daily
		if percentage >= maxPenalty {
			return maxPenalty
		}
	}

	return percentage
}

// AdjustScore applies a percentage penalty to a raw score, never below zero.
func AdjustScore(rawScore float64, percentage int) float64 {
	if percentage <= 0 {
		return rawScore
	}
	score := rawScore * (1 - float64(percentage)/100)
	if score < 0 {
		return 0
	}
	return score
}
