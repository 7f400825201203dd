package admin

import (
	"context"
	"time"

	"scholarship-service/common/metrics"
	"scholarship-service/internal/account"
	"scholarship-service/internal/application"
	"scholarship-service/internal/scholarship"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const listSize = 5

type Dashboard struct {
	TotalScholarships  int                 `json:"totalScholarships"`
	ActiveScholarships int                 `json:"activeScholarships"`
	TotalApplications  int                 `json:"totalApplications"`
	PendingReviews     int                 `json:"pendingReviews"`
	TotalUsers         int                 `json:"totalUsers"`
	RecentApplications []RecentApplication `json:"recentApplications"`
	UpcomingDeadlines  []UpcomingDeadline  `json:"upcomingDeadlines"`
}

type RecentApplication struct {
	ID               uuid.UUID          `bun:"id" json:"id"`
	Status           application.Status `bun:"status" json:"status"`
	SubmittedAt      time.Time          `bun:"submitted_at" json:"submittedAt"`
	ScholarshipTitle string             `bun:"scholarship_title" json:"scholarshipTitle"`
	FirstName        string             `bun:"first_name" json:"firstName"`
	LastName         string             `bun:"last_name" json:"lastName"`
}

type UpcomingDeadline struct {
	ID                uuid.UUID `bun:"id" json:"id"`
	Title             string    `bun:"title" json:"title"`
	Deadline          time.Time `bun:"deadline" json:"deadline"`
	CurrentApplicants int       `bun:"current_applicants" json:"currentApplicants"`
}

type Bucket struct {
	Key   string `bun:"key" json:"key"`
	Count int    `bun:"count" json:"count"`
}

type MonthlyCount struct {
	Year  int `bun:"year" json:"year"`
	Month int `bun:"month" json:"month"`
	Count int `bun:"count" json:"count"`
}

type ApplicationStats struct {
	Monthly  []MonthlyCount `json:"monthly"`
	ByStatus []Bucket       `json:"byStatus"`
}

type ScholarshipStats struct {
	ByStatus        []Bucket `json:"byStatus"`
	ByAcademicLevel []Bucket `json:"byAcademicLevel"`
	TotalFunding    float64  `json:"totalFunding"`
}

// StatsRepository runs the aggregate queries behind the admin views.
type StatsRepository interface {
	Dashboard(ctx context.Context, now time.Time) (*Dashboard, error)
	ApplicationStats(ctx context.Context) (*ApplicationStats, error)
	ScholarshipStats(ctx context.Context) (*ScholarshipStats, error)
}

type statsRepository struct {
	db      *bun.DB
	metrics *metrics.Metrics
}

func NewStatsRepository(db *bun.DB, m *metrics.Metrics) StatsRepository {
	return &statsRepository{
		db:      db,
		metrics: m,
	}
}

func (r *statsRepository) Dashboard(ctx context.Context, now time.Time) (*Dashboard, error) {
	start := time.Now()
	d, err := r.dashboard(ctx, now)
	r.metrics.Database.RecordQuery(ctx, "select", "dashboard", time.Since(start), err)
	return d, err
}

func (r *statsRepository) dashboard(ctx context.Context, now time.Time) (*Dashboard, error) {
	d := &Dashboard{}
	var err error

	scholarships := func() *bun.SelectQuery {
		return r.db.NewSelect().Model((*scholarship.Scholarship)(nil))
	}
	applications := func() *bun.SelectQuery {
		return r.db.NewSelect().Model((*application.Application)(nil))
	}

	if d.TotalScholarships, err = scholarships().Count(ctx); err != nil {
		return nil, err
	}
	if d.ActiveScholarships, err = scholarships().
		Where("status = ?", scholarship.StatusPublished).
		Where("deadline > ?", now).
		Count(ctx); err != nil {
		return nil, err
	}
	if d.TotalApplications, err = applications().Count(ctx); err != nil {
		return nil, err
	}
	if d.PendingReviews, err = applications().Where("status = ?", application.StatusSubmitted).Count(ctx); err != nil {
		return nil, err
	}
	if d.TotalUsers, err = r.db.NewSelect().Model((*account.Account)(nil)).Count(ctx); err != nil {
		return nil, err
	}

	d.RecentApplications = []RecentApplication{}
	if err := r.db.NewRaw(`
		SELECT app.id, app.status, app.submitted_at,
			s.title AS scholarship_title,
			COALESCE(acc.profile->>'firstName', '') AS first_name,
			COALESCE(acc.profile->>'lastName', '') AS last_name
		FROM applications AS app
		JOIN scholarships AS s ON s.id = app.scholarship_id
		LEFT JOIN accounts AS acc ON acc.id = app.applicant_id
		ORDER BY app.submitted_at DESC
		LIMIT ?`, listSize).Scan(ctx, &d.RecentApplications); err != nil {
		return nil, err
	}

	d.UpcomingDeadlines = []UpcomingDeadline{}
	if err := scholarships().
		Column("id", "title", "deadline", "current_applicants").
		Where("status = ?", scholarship.StatusPublished).
		Where("deadline > ?", now).
		Order("deadline ASC").
		Limit(listSize).
		Scan(ctx, &d.UpcomingDeadlines); err != nil {
		return nil, err
	}

	return d, nil
}

func (r *statsRepository) ApplicationStats(ctx context.Context) (*ApplicationStats, error) {
	start := time.Now()
	stats := &ApplicationStats{Monthly: []MonthlyCount{}, ByStatus: []Bucket{}}

	err := r.db.NewSelect().
		Model((*application.Application)(nil)).
		ColumnExpr("EXTRACT(YEAR FROM submitted_at)::int AS year").
		ColumnExpr("EXTRACT(MONTH FROM submitted_at)::int AS month").
		ColumnExpr("count(*) AS count").
		GroupExpr("year, month").
		OrderExpr("year ASC, month ASC").
		Scan(ctx, &stats.Monthly)
	if err == nil {
		err = r.groupCount(ctx, (*application.Application)(nil), "status", &stats.ByStatus)
	}
	r.metrics.Database.RecordQuery(ctx, "select", "applications", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *statsRepository) ScholarshipStats(ctx context.Context) (*ScholarshipStats, error) {
	start := time.Now()
	stats := &ScholarshipStats{ByStatus: []Bucket{}, ByAcademicLevel: []Bucket{}}

	err := r.groupCount(ctx, (*scholarship.Scholarship)(nil), "status", &stats.ByStatus)
	if err == nil {
		err = r.groupCount(ctx, (*scholarship.Scholarship)(nil),
			"COALESCE(NULLIF(requirements->>'academicLevel', ''), 'both')", &stats.ByAcademicLevel)
	}
	if err == nil {
		err = r.db.NewSelect().
			Model((*scholarship.Scholarship)(nil)).
			ColumnExpr("COALESCE(SUM(amount), 0)").
			Scan(ctx, &stats.TotalFunding)
	}
	r.metrics.Database.RecordQuery(ctx, "select", "scholarships", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *statsRepository) groupCount(ctx context.Context, model any, expr string, dst *[]Bucket) error {
	return r.db.NewSelect().
		Model(model).
		ColumnExpr(expr+" AS key").
		ColumnExpr("count(*) AS count").
		GroupExpr("key").
		OrderExpr("key ASC").
		Scan(ctx, dst)
}
