package app

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/overdue/internal/metrics"
	"github.com/shrimpsizemoose/overdue/internal/models"
	"github.com/shrimpsizemoose/overdue/internal/overdue"
	"github.com/shrimpsizemoose/overdue/internal/scoring"
	"github.com/shrimpsizemoose/overdue/internal/store"
)

type Service struct {
	Config    *Config
	Store     store.PenaltyStore
	Auth      *Auth
	Grader    *scoring.Grader
	Evaluator *overdue.Evaluator
}

func NewService(configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	st, err := NewStore(store.DBConfig{
		DSN:           config.Database.DSN,
		MigrationsDir: config.Database.MigrationsDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	auth, err := NewAuth(config)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to init auth: %w", err)
	}

	return NewServiceWith(config, st, auth), nil
}

// NewServiceWith wires a service around already opened dependencies.
func NewServiceWith(config *Config, st store.PenaltyStore, auth *Auth) *Service {
	if auth == nil {
		auth = &Auth{enabled: false, tokenHeader: config.Auth.TokenHeader}
	}
	return &Service{
		Config:    config,
		Store:     st,
		Auth:      auth,
		Grader:    scoring.NewGrader(config.WorkCalendar()),
		Evaluator: overdue.NewEvaluator(st),
	}
}

// Outcome is what the host gets back after a finish or regrade event.
type Outcome struct {
	SubmissionID  string         `json:"submission_id"`
	Action        overdue.Action `json:"action"`
	Late          bool           `json:"late"`
	Penalty       int            `json:"penalty"`
	RawScore      float64        `json:"raw_score"`
	AdjustedScore float64        `json:"adjusted_score"`
}

func (s *Service) ValidateAuthAndUser(r *http.Request, user string) error {
	if !s.Auth.Enabled() {
		return nil
	}

	authHeader := r.Header.Get(s.Auth.TokenHeader())
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return fmt.Errorf("Invalid authorization header format")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")

	return s.Auth.ValidateToken(r.Context(), user, token)
}

func (s *Service) ValidateHeaders(headers map[string][]string) bool {
	for _, required := range s.Config.API.RequiredHeaders {
		value := headers[http.CanonicalHeaderKey(required.Name)]
		if len(value) == 0 || !strings.EqualFold(value[0], required.Value) {
			return false
		}
	}
	return true
}

// FinishSubmission records a finished submission and grades it against the
// current policy of its assessment.
func (s *Service) FinishSubmission(sub *models.Submission) (*Outcome, error) {
	if sub.State == "" {
		sub.State = models.StateFinished
	}
	if err := sub.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}
	if !sub.Finished() {
		return nil, fmt.Errorf("%w: submission %s is not finished", ErrInvalidSubmission, sub.ID)
	}

	metrics.SubmissionEventsTotal.WithLabelValues(sub.AssessmentID, "finish").Inc()

	// the first finish is the time of record, a repeated finish only
	// refreshes the score
	existing, err := s.Store.GetSubmission(sub.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Finished() {
		if existing.FinishedAt != sub.FinishedAt {
			logger.Debug.Printf("Submission %s already finished at %d, ignoring finish time %d",
				sub.ID, existing.FinishedAt, sub.FinishedAt)
		}
		sub.StartedAt = existing.StartedAt
		sub.FinishedAt = existing.FinishedAt
	}

	if err := s.Store.SaveSubmission(sub); err != nil {
		return nil, err
	}

	return s.grade(sub)
}

// RegradeSubmission re-runs the evaluation for a stored submission, keeping
// its finish time of record. A non-nil rawScore replaces the stored one first.
func (s *Service) RegradeSubmission(submissionID string, rawScore *float64) (*Outcome, error) {
	sub, err := s.Store.GetSubmission(submissionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("%w: %s", ErrSubmissionNotFound, submissionID)
	}
	if !sub.Finished() {
		return nil, fmt.Errorf("%w: submission %s is not finished", ErrInvalidSubmission, submissionID)
	}

	metrics.SubmissionEventsTotal.WithLabelValues(sub.AssessmentID, "regrade").Inc()

	if rawScore != nil {
		if *rawScore < 0 {
			return nil, fmt.Errorf("%w: raw score must not be negative", ErrInvalidSubmission)
		}
		sub.RawScore = *rawScore
		if err := s.Store.SaveSubmission(sub); err != nil {
			return nil, err
		}
	}

	return s.grade(sub)
}

// RegradeAssessment regrades every finished submission of an assessment.
func (s *Service) RegradeAssessment(assessmentID string) ([]Outcome, error) {
	submissions, err := s.Store.ListFinishedSubmissions(assessmentID)
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(submissions))
	for i := range submissions {
		sub := &submissions[i]
		metrics.SubmissionEventsTotal.WithLabelValues(sub.AssessmentID, "regrade").Inc()

		outcome, err := s.grade(sub)
		if err != nil {
			return outcomes, fmt.Errorf("failed to regrade %s: %w", sub.ID, err)
		}
		outcomes = append(outcomes, *outcome)
	}

	logger.Info.Printf("Regraded %d submissions of %s", len(outcomes), assessmentID)
	return outcomes, nil
}

func (s *Service) grade(sub *models.Submission) (*Outcome, error) {
	policy, err := s.Store.GetPolicy(sub.AssessmentID)
	if err != nil {
		return nil, err
	}

	action, err := s.Evaluate(sub.ID, sub.AssessmentID, sub.FinishedAt, policy)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.Store.GetSnapshot(sub.ID)
	if err != nil {
		return nil, err
	}

	penalty := s.Grader.PercentagePenalty(snapshot)
	adjusted := scoring.AdjustScore(sub.RawScore, penalty)
	if err := s.Store.SetAdjustedScore(sub.ID, adjusted); err != nil {
		return nil, err
	}

	if snapshot != nil {
		metrics.LatePenaltyHistogram.WithLabelValues(sub.AssessmentID).Observe(float64(penalty))
		logger.Debug.Printf("Submission %s of %s is late, penalty %d%%", sub.ID, sub.AssessmentID, penalty)
	}

	return &Outcome{
		SubmissionID:  sub.ID,
		Action:        action,
		Late:          snapshot != nil,
		Penalty:       penalty,
		RawScore:      sub.RawScore,
		AdjustedScore: adjusted,
	}, nil
}

// Evaluate brings the overdue snapshot of a submission in line with policy.
func (s *Service) Evaluate(submissionID, assessmentID string, finishedAt int64, policy *models.AssessmentPolicy) (overdue.Action, error) {
	action, err := s.Evaluator.Evaluate(submissionID, assessmentID, finishedAt, policy)
	if err != nil {
		return action, err
	}
	metrics.EvaluationsTotal.WithLabelValues(action.String()).Inc()
	return action, nil
}

// Penalty is the percentage to deduct from a submission, from its snapshot only.
func (s *Service) Penalty(submissionID string) (int, error) {
	snapshot, err := s.Store.GetSnapshot(submissionID)
	if err != nil {
		return 0, err
	}
	return s.Grader.PercentagePenalty(snapshot), nil
}

func (s *Service) IsLate(submissionID string) (bool, error) {
	snapshot, err := s.Store.GetSnapshot(submissionID)
	if err != nil {
		return false, err
	}
	return snapshot != nil, nil
}

// NewPolicy is a policy for assessmentID holding the site defaults.
func (s *Service) NewPolicy(assessmentID string) *models.AssessmentPolicy {
	return s.Config.NewPolicy(assessmentID)
}

func (s *Service) SavePolicy(policy *models.AssessmentPolicy) error {
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	if err := s.Store.SavePolicy(policy); err != nil {
		return err
	}
	logger.Info.Printf("Saved policy for %s: due=%d penalty=%t daily=%d max=%d",
		policy.AssessmentID, policy.DueAt, policy.PenaltyEnabled, policy.DailyPercentage, policy.MaxPercentage)
	return nil
}

func (s *Service) GetPolicy(assessmentID string) (*models.AssessmentPolicy, error) {
	policy, err := s.Store.GetPolicy(assessmentID)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, assessmentID)
	}
	return policy, nil
}

// DeletePolicy drops the policy and every snapshot taken under it.
func (s *Service) DeletePolicy(assessmentID string) error {
	if _, err := s.GetPolicy(assessmentID); err != nil {
		return err
	}
	if err := s.Store.DeletePolicy(assessmentID); err != nil {
		return err
	}
	logger.Info.Printf("Deleted policy for %s", assessmentID)
	return nil
}

// PreventAccess returns a non-empty reason when the user may not start or
// continue a submission: the due date has passed, resubmission is prevented,
// nothing is in progress and one of their submissions finished before due.
func (s *Service) PreventAccess(assessmentID, userID string, now time.Time) (string, error) {
	policy, err := s.Store.GetPolicy(assessmentID)
	if err != nil {
		return "", err
	}
	if !policy.Active() || !policy.PreventResubmission {
		return "", nil
	}
	if now.Unix() < policy.DueAt+scoring.GracePeriodSeconds {
		return "", nil
	}

	submissions, err := s.Store.ListUserSubmissions(assessmentID, userID, "")
	if err != nil {
		return "", err
	}

	onTime := false
	for _, sub := range submissions {
		if !sub.Finished() {
			return "", nil
		}
		if sub.FinishedAt < policy.DueAt {
			onTime = true
		}
	}

	if onTime {
		return "You have already submitted on time. Resubmission after the due date is not allowed.", nil
	}
	return "", nil
}

// FormatTime renders a unix timestamp in the calendar time zone.
func (s *Service) FormatTime(ts int64) string {
	return time.Unix(ts, 0).In(s.Grader.Calendar().Location()).Format(s.Config.Display.TimestampFormat)
}

// Describe summarizes the late submission rules of an assessment as of now.
func (s *Service) Describe(assessmentID string, now time.Time) (string, error) {
	policy, err := s.GetPolicy(assessmentID)
	if err != nil {
		return "", err
	}
	if !policy.Active() {
		return "No due date is set.", nil
	}

	var b strings.Builder
	if now.Unix() < policy.DueAt+scoring.GracePeriodSeconds {
		fmt.Fprintf(&b, "Due on %s.", s.FormatTime(policy.DueAt))
	} else {
		fmt.Fprintf(&b, "Already due since %s.", s.FormatTime(policy.DueAt))
	}

	if !policy.PenaltyEnabled || policy.DailyPercentage <= 0 {
		b.WriteString(" Late submissions are accepted without penalty.")
	} else {
		fmt.Fprintf(&b, " Late submissions lose %d%% per working day, up to %d%%.",
			policy.DailyPercentage, models.NormalizedMax(policy.MaxPercentage))
	}

	return b.String(), nil
}

// LatenessReport lists the finished submissions of an assessment with their
// late flag and current penalty.
func (s *Service) LatenessReport(assessmentID string) ([]models.LatenessRow, error) {
	rows, err := s.Store.LatenessReport(assessmentID)
	if err != nil {
		return nil, err
	}

	snapshots, err := s.Store.ListSnapshots(assessmentID)
	if err != nil {
		return nil, err
	}
	bySubmission := make(map[string]*models.OverdueSnapshot, len(snapshots))
	for i := range snapshots {
		bySubmission[snapshots[i].SubmissionID] = &snapshots[i]
	}

	for i := range rows {
		rows[i].Penalty = s.Grader.PercentagePenalty(bySubmission[rows[i].SubmissionID])
	}
	return rows, nil
}

func (s *Service) Close() error {
	var errs []error

	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := s.Auth.Close(); err != nil {
		errs = append(errs, fmt.Errorf("auth: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing: %v", errs)
	}
	return nil
}
