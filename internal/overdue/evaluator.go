package overdue

import (
	"fmt"

	"github.com/shrimpsizemoose/overdue/internal/models"
	"github.com/shrimpsizemoose/overdue/internal/scoring"
)

type Action int

const (
	NoOp Action = iota
	Create
	Update
	Delete
)

func (a Action) String() string {
	switch a {
	case Create:
		return "create"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return "noop"
	}
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// SnapshotStore is the part of the store the evaluator needs.
type SnapshotStore interface {
	GetSnapshot(submissionID string) (*models.OverdueSnapshot, error)
	CreateSnapshot(snapshot *models.OverdueSnapshot) error
	UpdateSnapshot(snapshot *models.OverdueSnapshot) error
	DeleteSnapshot(submissionID string) error
}

// Decide picks what to do with the snapshot of a submission that finished at
// finishedAt under policy. An inactive policy never touches anything.
func Decide(existing *models.OverdueSnapshot, finishedAt int64, policy *models.AssessmentPolicy) Action {
	if !policy.Active() {
		return NoOp
	}

	if scoring.IsLate(finishedAt, policy.DueAt) {
		if existing == nil {
			return Create
		}
		return Update
	}

	if existing != nil {
		return Delete
	}
	return NoOp
}

type Evaluator struct {
	store SnapshotStore
	locks *keyedMutex
}

func NewEvaluator(store SnapshotStore) *Evaluator {
	return &Evaluator{
		store: store,
		locks: newKeyedMutex(),
	}
}

// Evaluate brings the snapshot of one submission in line with policy. Calls
// for the same submission id are serialized.
func (e *Evaluator) Evaluate(submissionID, assessmentID string, finishedAt int64, policy *models.AssessmentPolicy) (Action, error) {
	unlock := e.locks.Lock(submissionID)
	defer unlock()

	existing, err := e.store.GetSnapshot(submissionID)
	if err != nil {
		return NoOp, fmt.Errorf("failed to load snapshot for %s: %w", submissionID, err)
	}

	action := Decide(existing, finishedAt, policy)
	switch action {
	case Create:
		snapshot := &models.OverdueSnapshot{
			SubmissionID: submissionID,
			AssessmentID: assessmentID,
			FinishedAt:   finishedAt,
			FrozenPolicy: policy.Frozen(),
		}
		if err := e.store.CreateSnapshot(snapshot); err != nil {
			return NoOp, fmt.Errorf("failed to create snapshot for %s: %w", submissionID, err)
		}
	case Update:
		existing.FrozenPolicy = policy.Frozen()
		if err := e.store.UpdateSnapshot(existing); err != nil {
			return NoOp, fmt.Errorf("failed to update snapshot for %s: %w", submissionID, err)
		}
	case Delete:
		if err := e.store.DeleteSnapshot(submissionID); err != nil {
			return NoOp, fmt.Errorf("failed to delete snapshot for %s: %w", submissionID, err)
		}
	}

	return action, nil
}
