package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// AssessmentPolicy is the late submission configuration of one assessment.
// Timestamps are unix seconds, zero means "not set".
type AssessmentPolicy struct {
	AssessmentID        string `db:"assessment_id" json:"assessment_id" validate:"required,max=64"`
	OpensAt             int64  `db:"opens_at" json:"opens_at" validate:"gte=0"`
	ClosesAt            int64  `db:"closes_at" json:"closes_at" validate:"gte=0"`
	DueAt               int64  `db:"due_at" json:"due_at" validate:"gte=0"`
	PenaltyEnabled      bool   `db:"applied_penalty" json:"applied_penalty"`
	DailyPercentage     int    `db:"daily_percentage" json:"daily_percentage" validate:"gte=0,lte=100"`
	MaxPercentage       int    `db:"max_percentage" json:"max_percentage"`
	PreventResubmission bool   `db:"prevent_resubmission" json:"prevent_resubmission"`
}

// Active reports whether the due date rule applies at all.
func (p *AssessmentPolicy) Active() bool {
	return p != nil && p.DueAt > 0
}

// Frozen copies the penalty fields into a value detached from the policy.
func (p *AssessmentPolicy) Frozen() FrozenPolicy {
	return FrozenPolicy{
		DueAt:           p.DueAt,
		PenaltyEnabled:  p.PenaltyEnabled,
		DailyPercentage: p.DailyPercentage,
		MaxPercentage:   p.MaxPercentage,
	}
}

func (p *AssessmentPolicy) Validate() error {
	validate := validator.New()
	if err := validate.Struct(p); err != nil {
		return err
	}
	if p.DueAt == 0 {
		return nil
	}
	if p.OpensAt > 0 && p.DueAt < p.OpensAt {
		return fmt.Errorf("due date must not be before the open date")
	}
	if p.ClosesAt > 0 && p.DueAt > p.ClosesAt {
		return fmt.Errorf("due date must not be after the close date")
	}
	return nil
}

// NormalizedMax returns the effective penalty cap: anything outside (0, 100]
// means no cap, i.e. 100.
func NormalizedMax(max int) int {
	if max > 0 && max <= 100 {
		return max
	}
	return 100
}
