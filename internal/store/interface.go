package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/overdue/internal/models"
)

type PenaltyStore interface {
	Close() error
	ApplyMigrations(dir string) error

	GetPolicy(assessmentID string) (*models.AssessmentPolicy, error)
	SavePolicy(policy *models.AssessmentPolicy) error
	DeletePolicy(assessmentID string) error
	ListPolicies() ([]models.AssessmentPolicy, error)

	SaveSubmission(submission *models.Submission) error
	GetSubmission(submissionID string) (*models.Submission, error)
	ListUserSubmissions(assessmentID, userID string, state models.SubmissionState) ([]models.Submission, error)
	ListFinishedSubmissions(assessmentID string) ([]models.Submission, error)
	SetAdjustedScore(submissionID string, score float64) error

	GetSnapshot(submissionID string) (*models.OverdueSnapshot, error)
	CreateSnapshot(snapshot *models.OverdueSnapshot) error
	UpdateSnapshot(snapshot *models.OverdueSnapshot) error
	DeleteSnapshot(submissionID string) error
	ListSnapshots(assessmentID string) ([]models.OverdueSnapshot, error)

	LatenessReport(assessmentID string) ([]models.LatenessRow, error)
}

// BaseStore provides common functionality for different DB implementations
type BaseStore struct {
	DB        *sqlx.DB
	Converter func(string) string
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// ApplyMigrations applies SQL migrations from a directory in file name order,
// translating dialect if needed
func (s *BaseStore) ApplyMigrations(dir string, translateSQL func(string) string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}
		names = append(names, file.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		sql := string(content)
		if translateSQL != nil {
			sql = translateSQL(sql)
		}

		logger.Debug.Printf("Applying migration: %s", name)
		if _, err := s.DB.Exec(sql); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
	}

	return nil
}

const policyColumns = `assessment_id, opens_at, closes_at, due_at, applied_penalty,
		daily_percentage, max_percentage, prevent_resubmission`

func (s *BaseStore) GetPolicy(assessmentID string) (*models.AssessmentPolicy, error) {
	var policy models.AssessmentPolicy
	query := s.Converter(`
		SELECT ` + policyColumns + `
		FROM assessment_policies
		WHERE assessment_id = ?
	`)

	err := s.DB.Get(&policy, query, assessmentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}
	return &policy, nil
}

func (s *BaseStore) SavePolicy(policy *models.AssessmentPolicy) error {
	_, err := s.DB.NamedExec(`
		INSERT INTO assessment_policies (`+policyColumns+`)
		VALUES (:assessment_id, :opens_at, :closes_at, :due_at, :applied_penalty,
			:daily_percentage, :max_percentage, :prevent_resubmission)
		ON CONFLICT(assessment_id) DO UPDATE SET
		opens_at = excluded.opens_at,
		closes_at = excluded.closes_at,
		due_at = excluded.due_at,
		applied_penalty = excluded.applied_penalty,
		daily_percentage = excluded.daily_percentage,
		max_percentage = excluded.max_percentage,
		prevent_resubmission = excluded.prevent_resubmission
	`, policy)
	if err != nil {
		return fmt.Errorf("failed to save policy: %w", err)
	}
	return nil
}

// DeletePolicy removes the policy together with the snapshots taken under it.
func (s *BaseStore) DeletePolicy(assessmentID string) error {
	tx, err := s.DB.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(s.Converter(`DELETE FROM overdue_snapshots WHERE assessment_id = ?`), assessmentID); err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}
	if _, err := tx.Exec(s.Converter(`DELETE FROM assessment_policies WHERE assessment_id = ?`), assessmentID); err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit policy removal: %w", err)
	}
	return nil
}

func (s *BaseStore) ListPolicies() ([]models.AssessmentPolicy, error) {
	var policies []models.AssessmentPolicy
	err := s.DB.Select(&policies, `
		SELECT `+policyColumns+`
		FROM assessment_policies
		ORDER BY assessment_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	return policies, nil
}

const submissionColumns = `id, assessment_id, user_id, state, started_at, finished_at, raw_score, adjusted_score`

// SaveSubmission upserts the host's view of a submission. The adjusted score is
// owned by this service and left alone.
func (s *BaseStore) SaveSubmission(submission *models.Submission) error {
	_, err := s.DB.NamedExec(`
		INSERT INTO submissions (id, assessment_id, user_id, state, started_at, finished_at, raw_score)
		VALUES (:id, :assessment_id, :user_id, :state, :started_at, :finished_at, :raw_score)
		ON CONFLICT(id) DO UPDATE SET
		state = excluded.state,
		started_at = excluded.started_at,
		finished_at = excluded.finished_at,
		raw_score = excluded.raw_score
	`, submission)
	if err != nil {
		return fmt.Errorf("failed to save submission: %w", err)
	}
	return nil
}

func (s *BaseStore) GetSubmission(submissionID string) (*models.Submission, error) {
	var submission models.Submission
	query := s.Converter(`
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE id = ?
	`)

	err := s.DB.Get(&submission, query, submissionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &submission, nil
}

// ListUserSubmissions returns a user's submissions ordered by start time. An
// empty state returns all of them.
func (s *BaseStore) ListUserSubmissions(assessmentID, userID string, state models.SubmissionState) ([]models.Submission, error) {
	var submissions []models.Submission
	query := s.Converter(`
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE assessment_id = ?
		AND user_id = ?
		AND (? = '' OR state = ?)
		ORDER BY started_at ASC, id ASC
	`)

	err := s.DB.Select(&submissions, query, assessmentID, userID, string(state), string(state))
	if err != nil {
		return nil, fmt.Errorf("failed to list user submissions: %w", err)
	}
	return submissions, nil
}

func (s *BaseStore) ListFinishedSubmissions(assessmentID string) ([]models.Submission, error) {
	var submissions []models.Submission
	query := s.Converter(`
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE assessment_id = ?
		AND state = 'finished'
		ORDER BY finished_at ASC, id ASC
	`)

	err := s.DB.Select(&submissions, query, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list finished submissions: %w", err)
	}
	return submissions, nil
}

func (s *BaseStore) SetAdjustedScore(submissionID string, score float64) error {
	query := s.Converter(`UPDATE submissions SET adjusted_score = ? WHERE id = ?`)
	if _, err := s.DB.Exec(query, score, submissionID); err != nil {
		return fmt.Errorf("failed to set adjusted score: %w", err)
	}
	return nil
}

const snapshotColumns = `submission_id, assessment_id, finished_at, due_at, applied_penalty,
		daily_percentage, max_percentage`

func (s *BaseStore) GetSnapshot(submissionID string) (*models.OverdueSnapshot, error) {
	var snapshot models.OverdueSnapshot
	query := s.Converter(`
		SELECT ` + snapshotColumns + `
		FROM overdue_snapshots
		WHERE submission_id = ?
	`)

	err := s.DB.Get(&snapshot, query, submissionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &snapshot, nil
}

func (s *BaseStore) CreateSnapshot(snapshot *models.OverdueSnapshot) error {
	_, err := s.DB.NamedExec(`
		INSERT INTO overdue_snapshots (`+snapshotColumns+`)
		VALUES (:submission_id, :assessment_id, :finished_at, :due_at, :applied_penalty,
			:daily_percentage, :max_percentage)
	`, snapshot)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	return nil
}

// UpdateSnapshot refreshes the frozen policy fields. finished_at is the finish
// time of record and is not written.
func (s *BaseStore) UpdateSnapshot(snapshot *models.OverdueSnapshot) error {
	_, err := s.DB.NamedExec(`
		UPDATE overdue_snapshots SET
		due_at = :due_at,
		applied_penalty = :applied_penalty,
		daily_percentage = :daily_percentage,
		max_percentage = :max_percentage
		WHERE submission_id = :submission_id
	`, snapshot)
	if err != nil {
		return fmt.Errorf("failed to update snapshot: %w", err)
	}
	return nil
}

func (s *BaseStore) DeleteSnapshot(submissionID string) error {
	query := s.Converter(`DELETE FROM overdue_snapshots WHERE submission_id = ?`)
	if _, err := s.DB.Exec(query, submissionID); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func (s *BaseStore) ListSnapshots(assessmentID string) ([]models.OverdueSnapshot, error) {
	var snapshots []models.OverdueSnapshot
	query := s.Converter(`
		SELECT ` + snapshotColumns + `
		FROM overdue_snapshots
		WHERE assessment_id = ?
		ORDER BY finished_at ASC, submission_id ASC
	`)

	err := s.DB.Select(&snapshots, query, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return snapshots, nil
}

func (s *BaseStore) LatenessReport(assessmentID string) ([]models.LatenessRow, error) {
	var rows []models.LatenessRow
	query := s.Converter(`
		SELECT
			sub.id AS submission_id,
			sub.user_id,
			sub.finished_at,
			sub.raw_score,
			sub.adjusted_score,
			CASE WHEN late.submission_id IS NOT NULL THEN 'Yes'
			ELSE 'No' END AS late
		FROM submissions sub
		LEFT JOIN overdue_snapshots late
			ON late.submission_id = sub.id
		WHERE sub.assessment_id = ?
		AND sub.state = 'finished'
		ORDER BY sub.user_id, sub.finished_at ASC
	`)

	err := s.DB.Select(&rows, query, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to build lateness report: %w", err)
	}
	return rows, nil
}
