package scholarship_test

import (
	"context"
	"testing"
	"time"

	commonmetrics "scholarship-service/common/metrics"
	"scholarship-service/internal/scholarship"
	"scholarship-service/testing/testdb"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_Postgres(t *testing.T) {
	pg := testdb.SetupSharedPostgres(t)
	defer pg.Cleanup(t)
	pg.RunMigrations(t, []any{(*scholarship.Scholarship)(nil)}, nil)

	repo := scholarship.NewRepository(pg.DB, commonmetrics.NewMock())
	ctx := context.Background()
	now := time.Now().UTC()

	newScholarship := func(title string, status scholarship.Status, deadline time.Time, level scholarship.AcademicLevel) *scholarship.Scholarship {
		return &scholarship.Scholarship{
			Title:        title,
			Description:  "desc",
			Amount:       1000,
			Deadline:     deadline,
			Status:       status,
			CreatedBy:    uuid.New(),
			Requirements: scholarship.Requirements{MinGPA: 2.5, AcademicLevel: level, FieldsOfStudy: []string{"Physics"}},
			Tags:         []string{"stem"},
		}
	}

	t.Run("CreateGetUpdate", func(t *testing.T) {
		testdb.CleanupTables(t, pg.DB, "scholarships")

		s := newScholarship("Physics Award", scholarship.StatusDraft, now.Add(24*time.Hour), scholarship.LevelBoth)
		require.NoError(t, repo.Create(ctx, s))

		got, err := repo.GetByID(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"Physics"}, got.Requirements.FieldsOfStudy)
		assert.Equal(t, []string{"stem"}, got.Tags)
		assert.Nil(t, got.MaxApplicants)
		assert.Zero(t, got.CurrentApplicants)

		limit := 10
		got.Title = "Physics Award II"
		got.MaxApplicants = &limit
		require.NoError(t, repo.Update(ctx, got))

		again, err := repo.GetByID(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, "Physics Award II", again.Title)
		require.NotNil(t, again.MaxApplicants)
		assert.Equal(t, 10, *again.MaxApplicants)

		require.NoError(t, repo.UpdateStatus(ctx, s.ID, scholarship.StatusPublished))
		_, err = repo.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, scholarship.ErrScholarshipNotFound)
		assert.ErrorIs(t, repo.UpdateStatus(ctx, uuid.New(), scholarship.StatusClosed), scholarship.ErrScholarshipNotFound)
	})

	t.Run("ListOpen", func(t *testing.T) {
		testdb.CleanupTables(t, pg.DB, "scholarships")

		for _, s := range []*scholarship.Scholarship{
			newScholarship("later", scholarship.StatusPublished, now.Add(48*time.Hour), scholarship.LevelGraduate),
			newScholarship("sooner", scholarship.StatusPublished, now.Add(24*time.Hour), scholarship.LevelBoth),
			newScholarship("expired", scholarship.StatusPublished, now.Add(-time.Hour), scholarship.LevelBoth),
			newScholarship("draft", scholarship.StatusDraft, now.Add(24*time.Hour), scholarship.LevelBoth),
		} {
			require.NoError(t, repo.Create(ctx, s))
		}

		open, err := repo.ListOpen(ctx, now, scholarship.ListFilter{})
		require.NoError(t, err)
		require.Len(t, open, 2)
		assert.Equal(t, "sooner", open[0].Title)
		assert.Equal(t, "later", open[1].Title)

		undergrad, err := repo.ListOpen(ctx, now, scholarship.ListFilter{AcademicLevel: scholarship.LevelUndergraduate})
		require.NoError(t, err)
		require.Len(t, undergrad, 1)
		assert.Equal(t, "sooner", undergrad[0].Title)
	})

	t.Run("CloseExpired", func(t *testing.T) {
		testdb.CleanupTables(t, pg.DB, "scholarships")

		expired := newScholarship("expired", scholarship.StatusPublished, now.Add(-time.Hour), scholarship.LevelBoth)
		open := newScholarship("open", scholarship.StatusPublished, now.Add(time.Hour), scholarship.LevelBoth)
		require.NoError(t, repo.Create(ctx, expired))
		require.NoError(t, repo.Create(ctx, open))

		n, err := repo.CloseExpired(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := repo.GetByID(ctx, expired.ID)
		require.NoError(t, err)
		assert.Equal(t, scholarship.StatusClosed, got.Status)
	})
}
