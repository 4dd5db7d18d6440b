package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outfieldhq/learning-engine/internal/model"
	"github.com/outfieldhq/learning-engine/internal/resilience"
)

func TestRetryFailed_EmptyQueue(t *testing.T) {
	st := newFakeStore()
	o := newTestOrchestrator(Config{}, &fakeSource{}, st, nil, promotableAnalyzers())

	run, err := o.RetryFailed(context.Background())
	require.NoError(t, err)
	assert.Nil(t, run)
	assert.Empty(t, st.runs, "nothing due means no run record")
}

func TestRetryFailed_DequeueError(t *testing.T) {
	st := newFakeStore()
	st.dequeueErr = assert.AnError
	o := newTestOrchestrator(Config{}, &fakeSource{}, st, nil, promotableAnalyzers())

	_, err := o.RetryFailed(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dequeue retry entries")
}

func TestRetryFailed_DrainsQueue(t *testing.T) {
	src := &fakeSource{
		fetchErr: map[string]error{"tenant-2": assert.AnError},
	}
	st := newFakeStore()
	st.dlq = []resilience.DLQEntry{
		{ID: "dlq-1", TenantID: "tenant-1", PatternType: "who", MaxRetries: dlqMaxRetries},
		{ID: "dlq-2", TenantID: "tenant-1", PatternType: "what", MaxRetries: dlqMaxRetries},
		{ID: "dlq-3", TenantID: "tenant-2", MaxRetries: dlqMaxRetries},
	}
	o := newTestOrchestrator(Config{}, src, st, nil, promotableAnalyzers())

	run, err := o.RetryFailed(context.Background())
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, model.TriggerManual, run.Trigger)
	assert.Equal(t, model.RunStatusPartial, run.Status)
	assert.Equal(t, 1, run.Summary.TenantsProcessed)
	assert.Equal(t, 1, run.Summary.TenantsFailed)
	assert.Equal(t, 4, run.Summary.PatternsStored)

	// The clean tenant's entries are gone, the failed one is rescheduled.
	assert.ElementsMatch(t, []string{"dlq-1", "dlq-2"}, st.removedDLQ)
	assert.Equal(t, []string{"dlq-3"}, st.bumpedDLQ)

	// A drain settles existing entries instead of stacking new ones.
	require.Len(t, st.dlq, 1)
	remaining := st.dlq[0]
	assert.Equal(t, "dlq-3", remaining.ID)
	assert.Equal(t, 1, remaining.RetryCount)
	assert.Equal(t, runNow.Add(time.Hour), remaining.NextRetryAt)
	assert.Contains(t, remaining.Error, assert.AnError.Error())
}

func TestRetryFailed_AllRecovered(t *testing.T) {
	st := newFakeStore()
	st.dlq = []resilience.DLQEntry{
		{ID: "dlq-1", TenantID: "tenant-1", PatternType: "who", MaxRetries: dlqMaxRetries},
	}
	o := newTestOrchestrator(Config{}, &fakeSource{}, st, nil, promotableAnalyzers())

	run, err := o.RetryFailed(context.Background())
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Empty(t, st.dlq)
}
