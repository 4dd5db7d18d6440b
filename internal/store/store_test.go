package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outfieldhq/learning-engine/internal/model"
)

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, model.TriggerScheduled, "")
		require.NoError(t, err)
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, model.RunStatusRunning, run.Status)
		assert.Equal(t, model.TriggerScheduled, run.Trigger)

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, run.ID, got.ID)
		assert.Equal(t, model.RunStatusRunning, got.Status)
		assert.Nil(t, got.FinishedAt)
	})

	t.Run("CompleteRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, model.TriggerManual, "tenant-1")
		require.NoError(t, err)

		summary := model.RunSummary{
			TenantsProcessed: 1,
			PatternsStored:   3,
			SentinelsRecorded: 1,
			Failures: []model.TenantFailure{
				{TenantID: "tenant-1", Type: model.PatternHow, Reason: "detector timeout"},
			},
		}
		require.NoError(t, s.CompleteRun(ctx, run.ID, model.RunStatusPartial, summary))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, model.RunStatusPartial, got.Status)
		assert.NotNil(t, got.FinishedAt)
		assert.Equal(t, summary, got.Summary)
		assert.Equal(t, "tenant-1", got.TenantID)
	})

	t.Run("CompleteRunNotFound", func(t *testing.T) {
		s := newStore(t)

		err := s.CompleteRun(context.Background(), "nonexistent-id", model.RunStatusComplete, model.RunSummary{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("GetRunMissing", func(t *testing.T) {
		s := newStore(t)

		got, err := s.GetRun(context.Background(), "nonexistent-id")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ListRunsFilters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		scheduled, err := s.CreateRun(ctx, model.TriggerScheduled, "")
		require.NoError(t, err)
		require.NoError(t, s.CompleteRun(ctx, scheduled.ID, model.RunStatusComplete, model.RunSummary{TenantsProcessed: 4}))

		manual, err := s.CreateRun(ctx, model.TriggerManual, "tenant-1")
		require.NoError(t, err)

		byStatus, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
		require.NoError(t, err)
		require.Len(t, byStatus, 1)
		assert.Equal(t, scheduled.ID, byStatus[0].ID)

		byTenant, err := s.ListRuns(ctx, RunFilter{TenantID: "tenant-1"})
		require.NoError(t, err)
		require.Len(t, byTenant, 1)
		assert.Equal(t, manual.ID, byTenant[0].ID)

		byTrigger, err := s.ListRuns(ctx, RunFilter{Trigger: model.TriggerScheduled})
		require.NoError(t, err)
		require.Len(t, byTrigger, 1)

		all, err := s.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		none, err := s.ListRuns(ctx, RunFilter{Since: time.Now().UTC().Add(time.Hour)})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("ListRunsLimit", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for i := 0; i < 4; i++ {
			_, err := s.CreateRun(ctx, model.TriggerScheduled, "")
			require.NoError(t, err)
		}

		limited, err := s.ListRuns(ctx, RunFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})
}

func TestSQLiteStore_Suite(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestValidatePattern(t *testing.T) {
	base := testPattern("tenant-1", model.PatternWho)
	require.NoError(t, validatePattern(base))

	tests := []struct {
		name    string
		mutate  func(p *model.Pattern)
		wantErr string
	}{
		{"missing tenant", func(p *model.Pattern) { p.TenantID = "" }, "tenant id"},
		{"unknown type", func(p *model.Pattern) { p.Type = "where" }, "unknown pattern type"},
		{"nil payload", func(p *model.Pattern) { p.Payload = nil }, "no payload"},
		{"negative confidence", func(p *model.Pattern) { p.Confidence = -0.1 }, "confidence"},
		{"confidence above one", func(p *model.Pattern) { p.Confidence = 1.01 }, "confidence"},
		{"window inverted", func(p *model.Pattern) { p.ValidUntil = p.ComputedAt.Add(-time.Hour) }, "valid_until"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPattern("tenant-1", model.PatternWho)
			tt.mutate(p)
			err := validatePattern(p)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
