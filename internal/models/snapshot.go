package models

// FrozenPolicy is the part of an AssessmentPolicy that a snapshot keeps as of
// the evaluation that wrote it.
type FrozenPolicy struct {
	DueAt           int64 `db:"due_at" json:"due_at"`
	PenaltyEnabled  bool  `db:"applied_penalty" json:"applied_penalty"`
	DailyPercentage int   `db:"daily_percentage" json:"daily_percentage"`
	MaxPercentage   int   `db:"max_percentage" json:"max_percentage"`
}

// OverdueSnapshot exists for every submission found late at its last
// evaluation. FinishedAt is the finish time of record and is never rewritten
// by an update.
type OverdueSnapshot struct {
	SubmissionID string `db:"submission_id" json:"submission_id"`
	AssessmentID string `db:"assessment_id" json:"assessment_id"`
	FinishedAt   int64  `db:"finished_at" json:"finished_at"`
	FrozenPolicy
}

// one row per late submission, see migrations/001_init.sql:
/*
CREATE TABLE overdue_snapshots (
    submission_id TEXT NOT NULL PRIMARY KEY,
    assessment_id TEXT NOT NULL,
    finished_at BIGINT NOT NULL,
    due_at BIGINT NOT NULL,
    applied_penalty BOOLEAN NOT NULL DEFAULT FALSE,
    daily_percentage INTEGER NOT NULL DEFAULT 0,
    max_percentage INTEGER NOT NULL DEFAULT 0
);
*/
