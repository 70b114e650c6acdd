package models

import (
	"github.com/go-playground/validator/v10"
)

type SubmissionState string

const (
	StateInProgress SubmissionState = "inprogress"
	StateFinished   SubmissionState = "finished"
)

// Submission mirrors an attempt of the host grading system.
type Submission struct {
	ID            string          `db:"id" json:"id" validate:"required,max=64"`
	AssessmentID  string          `db:"assessment_id" json:"assessment_id" validate:"required,max=64"`
	UserID        string          `db:"user_id" json:"user_id" validate:"required,max=64"`
	State         SubmissionState `db:"state" json:"state" validate:"required,oneof=inprogress finished"`
	StartedAt     int64           `db:"started_at" json:"started_at" validate:"gte=0"`
	FinishedAt    int64           `db:"finished_at" json:"finished_at" validate:"gte=0"`
	RawScore      float64         `db:"raw_score" json:"raw_score" validate:"gte=0"`
	AdjustedScore *float64        `db:"adjusted_score" json:"adjusted_score,omitempty"`
}

func (s *Submission) Finished() bool {
	return s.State == StateFinished
}

func (s *Submission) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}

// LatenessRow is one line of the per assessment lateness report.
type LatenessRow struct {
	SubmissionID  string   `db:"submission_id" json:"submission_id"`
	UserID        string   `db:"user_id" json:"user_id"`
	FinishedAt    int64    `db:"finished_at" json:"finished_at"`
	RawScore      float64  `db:"raw_score" json:"raw_score"`
	AdjustedScore *float64 `db:"adjusted_score" json:"adjusted_score,omitempty"`
	Late          string   `db:"late" json:"late"`
	Penalty       int      `db:"-" json:"penalty"`
}
