package outcome

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outfieldhq/learning-engine/internal/model"
)

func newMockBackfiller(t *testing.T) (*Backfiller, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewBackfiller(mock, nil, nil), mock
}

var legacyTouchColumns = []string{"id", "subject", "body", "first_name", "company_name", "industry"}

var unscoredLeadColumns = []string{
	"id", "title", "industry", "size_bucket", "country", "new_role", "hiring", "funded",
}

func expectTouchContentWrite(mock pgxmock.PgxPoolIface, restored int64) {
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_outreach_touches"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_outreach_touches"}, []string{"id", "content"}).
		WillReturnResult(restored)
	mock.ExpectExec(`INSERT INTO "outreach"\."touches"`).
		WillReturnResult(pgxmock.NewResult("INSERT", restored))
	mock.ExpectCommit()
}

func expectLeadScoreWrite(mock pgxmock.PgxPoolIface, restored int64) {
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_outreach_leads"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_outreach_leads"},
		[]string{"id", "component_scores", "score_weights"}).
		WillReturnResult(restored)
	mock.ExpectExec(`INSERT INTO "outreach"\."leads"`).
		WillReturnResult(pgxmock.NewResult("INSERT", restored))
	mock.ExpectCommit()
}

func TestBackfillRun_RestoresContentAndComponents(t *testing.T) {
	b, mock := newMockBackfiller(t)

	mock.ExpectQuery(`FROM outreach\.touches t`).
		WithArgs("tenant-1").
		WillReturnRows(pgxmock.NewRows(legacyTouchColumns).
			AddRow("touch-1", "Quick question about Acme",
				"Hi Jane, congrats on the new role. Want to grab 15 minutes this week?",
				"Jane", "Acme", "saas").
			AddRow("touch-2", "", "", "Sam", "Globex", "retail"))
	expectTouchContentWrite(mock, 1)

	mock.ExpectQuery(`FROM outreach\.leads\s+WHERE tenant_id`).
		WithArgs("tenant-1").
		WillReturnRows(pgxmock.NewRows(unscoredLeadColumns).
			AddRow("lead-9", "CEO", "saas", "11-50", "US", true, false, false))
	expectLeadScoreWrite(mock, 1)

	report, err := b.Run(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, Report{
		TouchesScanned:  2,
		TouchesRestored: 1,
		TouchesSkipped:  1,
		LeadsScanned:    1,
		LeadsRestored:   1,
	}, report)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBackfillRun_NothingToRestore(t *testing.T) {
	b, mock := newMockBackfiller(t)

	mock.ExpectQuery(`FROM outreach\.touches t`).
		WithArgs("tenant-2").
		WillReturnRows(pgxmock.NewRows(legacyTouchColumns))
	mock.ExpectQuery(`FROM outreach\.leads\s+WHERE tenant_id`).
		WithArgs("tenant-2").
		WillReturnRows(pgxmock.NewRows(unscoredLeadColumns))

	report, err := b.Run(context.Background(), "tenant-2")
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBackfillRun_AllBlankTouchesSkipWrite(t *testing.T) {
	b, mock := newMockBackfiller(t)

	// Blank messages produce no snapshot, so no touch write happens at all.
	mock.ExpectQuery(`FROM outreach\.touches t`).
		WithArgs("tenant-3").
		WillReturnRows(pgxmock.NewRows(legacyTouchColumns).
			AddRow("touch-1", "", "", "", "", "").
			AddRow("touch-2", "  ", "   ", "", "", ""))
	mock.ExpectQuery(`FROM outreach\.leads\s+WHERE tenant_id`).
		WithArgs("tenant-3").
		WillReturnRows(pgxmock.NewRows(unscoredLeadColumns))

	report, err := b.Run(context.Background(), "tenant-3")
	require.NoError(t, err)
	assert.Equal(t, 2, report.TouchesScanned)
	assert.Equal(t, 2, report.TouchesSkipped)
	assert.Equal(t, 0, report.TouchesRestored)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconstructComponents(t *testing.T) {
	full := &model.Lead{
		Title:      "VP of Sales",
		Industry:   "saas",
		SizeBucket: "11-50",
		Country:    "US",
		NewRole:    true,
		Hiring:     true,
	}
	got := reconstructComponents(full)
	assert.Equal(t, map[string]float64{
		model.ComponentDataQuality: 25,
		model.ComponentAuthority:   20,
		model.ComponentCompanyFit:  25,
		model.ComponentTiming:      17,
	}, got)

	// Same input, same snapshot.
	assert.Equal(t, got, reconstructComponents(full))

	empty := reconstructComponents(&model.Lead{})
	for _, name := range model.ScoreComponents {
		assert.Equal(t, 0.0, empty[name], name)
	}
}

func TestAuthorityScoreLadder(t *testing.T) {
	tests := []struct {
		title string
		want  float64
	}{
		{"Founder & CEO", 25},
		{"Chief Revenue Officer", 25},
		{"Vice President, Marketing", 20},
		{"Director of Engineering", 16},
		{"Head of Growth", 16},
		{"Account Manager", 10},
		{"Software Engineer", 6},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, authorityScore(tt.title))
		})
	}
}

func TestCompanyFitScoreBuckets(t *testing.T) {
	assert.Equal(t, 25.0, companyFitScore("11-50"))
	assert.Equal(t, 25.0, companyFitScore("51-200"))
	assert.Equal(t, 18.0, companyFitScore("201-500"))
	assert.Equal(t, 14.0, companyFitScore("1-10"))
	assert.Equal(t, 8.0, companyFitScore("1000+"))
	assert.Equal(t, 0.0, companyFitScore(""))
}

func TestBackfillComponentsStayInBand(t *testing.T) {
	leads := []*model.Lead{
		{},
		{Title: "CEO", Industry: "saas", SizeBucket: "51-200", Country: "US",
			NewRole: true, Hiring: true, Funded: true},
		{Title: "Analyst", SizeBucket: "1000+"},
	}
	for _, l := range leads {
		for name, v := range reconstructComponents(l) {
			assert.GreaterOrEqual(t, v, 0.0, name)
			assert.LessOrEqual(t, v, model.ComponentMaxScore, name)
		}
	}
}
