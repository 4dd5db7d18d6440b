package outcome

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outfieldhq/learning-engine/internal/model"
)

// newMockReader creates a Reader backed by pgxmock for unit testing.
func newMockReader(t *testing.T) (*Reader, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewReader(mock, nil), mock
}

func testWindow() model.Window {
	from := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	return model.Window{From: from, To: from.AddDate(0, 0, 90)}
}

var leadColumns = []string{
	"id", "tenant_id", "title", "industry", "size_bucket", "country",
	"new_role", "hiring", "funded", "status",
	"component_scores", "score_weights", "score", "scored_at", "created_at",
}

var touchColumns = []string{
	"id", "tenant_id", "lead_id", "channel", "sent_at", "touch_number",
	"sequence_id", "subject", "body", "content", "led_to_booking",
}

func TestReaderListActiveTenants(t *testing.T) {
	r, mock := newMockReader(t)
	win := testWindow()

	mock.ExpectQuery(`SELECT DISTINCT tenant_id FROM outreach\.leads`).
		WithArgs(win.From, win.To).
		WillReturnRows(pgxmock.NewRows([]string{"tenant_id"}).
			AddRow("tenant-a").
			AddRow("tenant-b"))

	tenants, err := r.ListActiveTenants(context.Background(), win)
	require.NoError(t, err)
	assert.Equal(t, []string{"tenant-a", "tenant-b"}, tenants)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReaderFetchSnapshot(t *testing.T) {
	r, mock := newMockReader(t)
	win := testWindow()
	created := win.From.AddDate(0, 0, 3)
	scored := created.Add(2 * time.Hour)
	sent := created.AddDate(0, 0, 1)

	mock.ExpectQuery(`FROM outreach\.leads\s+WHERE tenant_id`).
		WithArgs("tenant-1", win.From, win.To).
		WillReturnRows(pgxmock.NewRows(leadColumns).
			AddRow("lead-1", "tenant-1", "CEO", "saas", "11-50", "US",
				true, false, false, "converted",
				[]byte(`{"data_quality":20,"authority":25,"company_fit":15,"timing":9}`),
				[]byte(`{"data_quality":0.20,"authority":0.25,"company_fit":0.25,"timing":0.15}`),
				78.5, &scored, created).
			AddRow("lead-2", "tenant-1", "Ops Manager", "retail", "", "",
				false, false, false, "dead",
				nil, nil, 0.0, nil, created))

	mock.ExpectQuery(`FROM outreach\.touches t`).
		WithArgs("tenant-1", win.From, win.To).
		WillReturnRows(pgxmock.NewRows(touchColumns).
			AddRow("touch-1", "tenant-1", "lead-1", "email", sent, 1, "seq-1",
				"Quick question", "Hi Jane...",
				[]byte(`{"cta":"book_meeting","word_count":42,"mentions_first_name":true}`),
				true).
			AddRow("touch-2", "tenant-1", "lead-2", "sms", sent, 1, "",
				"", "Following up", nil, false).
			AddRow("touch-3", "tenant-1", "lead-2", "linkedin", sent, 2, "",
				"", "One more try", []byte(`{not json`), false))

	snap, err := r.FetchSnapshot(context.Background(), "tenant-1", win)
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", snap.TenantID)
	assert.Equal(t, win, snap.Window)

	require.Len(t, snap.Leads, 2)
	lead := snap.Leads[0]
	assert.Equal(t, model.LeadStatusConverted, lead.Status)
	assert.Equal(t, 25.0, lead.ComponentScores[model.ComponentAuthority])
	assert.Equal(t, 0.15, lead.ScoreWeights[model.ComponentTiming])
	require.NotNil(t, lead.ScoredAt)
	assert.True(t, lead.ScoredAt.Equal(scored))

	legacy := snap.Leads[1]
	assert.Equal(t, model.LeadStatusDead, legacy.Status)
	assert.Nil(t, legacy.ComponentScores)
	assert.Nil(t, legacy.ScoredAt)

	require.Len(t, snap.Touches, 3)
	assert.Equal(t, model.ChannelEmail, snap.Touches[0].Channel)
	require.NotNil(t, snap.Touches[0].Content)
	assert.Equal(t, "book_meeting", snap.Touches[0].Content.CTA)
	assert.True(t, snap.Touches[0].LedToBooking)

	// Legacy row without a snapshot and a row with a corrupt snapshot both
	// stay in the set with nil content.
	assert.Nil(t, snap.Touches[1].Content)
	assert.Nil(t, snap.Touches[2].Content)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReaderFetchSnapshotEmptyTenant(t *testing.T) {
	r, mock := newMockReader(t)
	win := testWindow()

	mock.ExpectQuery(`FROM outreach\.leads\s+WHERE tenant_id`).
		WithArgs("tenant-9", win.From, win.To).
		WillReturnRows(pgxmock.NewRows(leadColumns))
	mock.ExpectQuery(`FROM outreach\.touches t`).
		WithArgs("tenant-9", win.From, win.To).
		WillReturnRows(pgxmock.NewRows(touchColumns))

	snap, err := r.FetchSnapshot(context.Background(), "tenant-9", win)
	require.NoError(t, err)
	assert.Empty(t, snap.Leads)
	assert.Empty(t, snap.Touches)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReaderFetchSnapshotQueryError(t *testing.T) {
	r, mock := newMockReader(t)
	win := testWindow()

	mock.ExpectQuery(`FROM outreach\.leads\s+WHERE tenant_id`).
		WithArgs("tenant-1", win.From, win.To).
		WillReturnError(assert.AnError)

	_, err := r.FetchSnapshot(context.Background(), "tenant-1", win)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query leads")
	assert.NoError(t, mock.ExpectationsWereMet())
}
