package postgres

import (
	"context"
	"flag"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shrimpsizemoose/overdue/internal/models"
)

// setupTestDB starts a throwaway Postgres container and applies migrations
func setupTestDB(t *testing.T) (*PostgresStore, func()) {
	if testing.Short() || os.Getenv("OVERDUE_PG_TESTS") == "" {
		t.Skip("set OVERDUE_PG_TESTS=1 to run Postgres integration tests")
	}
	ctx := context.Background()

	container, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		testcontainers.WithEnv(map[string]string{
			"POSTGRES_DB":       "testdb",
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
		}),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := NewPostgresStore(dsn, "../../../migrations")
	require.NoError(t, err, "Failed to create store")

	cleanup := func() {
		s.Close()
		container.Terminate(ctx)
	}

	return s, cleanup
}

func TestMain(m *testing.M) {
	flag.Parse()
	log.Println("Starting Postgres store tests...")
	code := m.Run()
	log.Println("Finished Postgres store tests")
	os.Exit(code)
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "a = $1 AND b = $2", Rebind("a = ? AND b = ?"))
	assert.Equal(t, "SELECT 1", Rebind("SELECT 1"))
}

func TestSnapshotLifecycle(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()

	due := time.Date(2022, 11, 28, 23, 59, 0, 0, time.UTC).Unix()

	require.NoError(t, s.SavePolicy(&models.AssessmentPolicy{
		AssessmentID:    "quiz1",
		DueAt:           due,
		PenaltyEnabled:  true,
		DailyPercentage: 5,
		MaxPercentage:   25,
	}))

	snapshot := models.OverdueSnapshot{
		SubmissionID: "s1",
		AssessmentID: "quiz1",
		FinishedAt:   due + 120,
		FrozenPolicy: models.FrozenPolicy{DueAt: due, PenaltyEnabled: true, DailyPercentage: 5, MaxPercentage: 25},
	}

	t.Run("create and get", func(t *testing.T) {
		require.NoError(t, s.CreateSnapshot(&snapshot))
		got, err := s.GetSnapshot("s1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, snapshot, *got)
	})

	t.Run("update keeps finished_at", func(t *testing.T) {
		updated := snapshot
		updated.FinishedAt = 1
		updated.DailyPercentage = 7
		require.NoError(t, s.UpdateSnapshot(&updated))

		got, err := s.GetSnapshot("s1")
		require.NoError(t, err)
		assert.Equal(t, due+120, got.FinishedAt)
		assert.Equal(t, 7, got.DailyPercentage)
	})

	t.Run("report marks late rows", func(t *testing.T) {
		require.NoError(t, s.SaveSubmission(&models.Submission{
			ID: "s1", AssessmentID: "quiz1", UserID: "u1", State: models.StateFinished, FinishedAt: due + 120, RawScore: 10,
		}))
		rows, err := s.LatenessReport("quiz1")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "Yes", rows[0].Late)
	})

	t.Run("delete policy cascades", func(t *testing.T) {
		require.NoError(t, s.DeletePolicy("quiz1"))
		got, err := s.GetSnapshot("s1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
