package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"scholarship-service/internal/account"
	"scholarship-service/internal/auth"
	"scholarship-service/internal/config"
	"scholarship-service/internal/metrics"
	"scholarship-service/internal/notification"
	"scholarship-service/internal/scholarship"

	"github.com/google/uuid"
)

var (
	ErrApplicationNotFound                 = errors.New("application not found")
	ErrDocumentNotFound                    = errors.New("document not found")
	ErrDuplicateApplication                = errors.New("you have already applied to this scholarship")
	ErrScholarshipNotAcceptingApplications = errors.New("scholarship is not accepting applications")
	ErrNotEligible                         = errors.New("applicant does not meet the scholarship requirements")
	ErrInvalidDocument                     = errors.New("invalid document")
	ErrApplicantRequired                   = errors.New("only applicants may submit applications")
	ErrReviewerRequired                    = errors.New("reviewer or admin role required")
	ErrInvalidStatus                       = errors.New("invalid application status")
	ErrInvalidTransition                   = errors.New("invalid application status transition")
)

type DocumentInput struct {
	Name string `json:"name" validate:"required,max=100"`
	URL  string `json:"url" validate:"required,url"`
	Size int64  `json:"size" validate:"gte=0"`
}

type SubmitRequest struct {
	ScholarshipID uuid.UUID       `json:"scholarshipId" validate:"required"`
	AcademicInfo  AcademicInfo    `json:"academicInfo"`
	Documents     []DocumentInput `json:"documents" validate:"dive"`
}

type ReviewRequest struct {
	Score   *int   `json:"score" validate:"required,gte=0,lte=100"`
	Comment string `json:"comment" validate:"required,max=2000"`
	Status  Status `json:"status,omitempty"`
}

// ScholarshipReader is the part of the scholarship catalogue submission needs.
type ScholarshipReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*scholarship.Scholarship, error)
}

// AccountReader resolves notification recipients.
type AccountReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error)
}

type Service interface {
	Submit(ctx context.Context, p auth.Principal, req SubmitRequest) (*Application, error)
	Review(ctx context.Context, p auth.Principal, id uuid.UUID, req ReviewRequest) (*Application, error)
	ListMine(ctx context.Context, p auth.Principal) ([]Application, error)
	Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*Application, error)
	List(ctx context.Context, p auth.Principal, filter ListFilter) ([]Application, error)
	UpdateDocumentStatus(ctx context.Context, p auth.Principal, id, documentID uuid.UUID, status DocumentStatus) (*Application, error)
}

type service struct {
	repo         Repository
	scholarships ScholarshipReader
	accounts     AccountReader
	notifier     notification.Notifier
	uploads      config.UploadsConfig
	logger       *slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewService(
	repo Repository,
	scholarships ScholarshipReader,
	accounts AccountReader,
	notifier notification.Notifier,
	uploads config.UploadsConfig,
	logger *slog.Logger,
	m *metrics.Metrics,
) Service {
	return &service{
		repo:         repo,
		scholarships: scholarships,
		accounts:     accounts,
		notifier:     notifier,
		uploads:      uploads,
		logger:       logger,
		metrics:      m,
		now:          time.Now,
	}
}

func (s *service) Submit(ctx context.Context, p auth.Principal, req SubmitRequest) (*Application, error) {
	if p.Role != account.RoleApplicant {
		return nil, ErrApplicantRequired
	}

	sch, err := s.scholarships.GetByID(ctx, req.ScholarshipID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if !sch.AcceptsApplications(now) {
		s.metrics.RecordSubmissionRefused(ctx, "not_accepting")
		return nil, ErrScholarshipNotAcceptingApplications
	}
	if err := checkEligibility(sch.Requirements, req); err != nil {
		s.metrics.RecordSubmissionRefused(ctx, "not_eligible")
		return nil, err
	}
	documents, err := s.documents(req.Documents, now)
	if err != nil {
		s.metrics.RecordSubmissionRefused(ctx, "invalid_document")
		return nil, err
	}

	exists, err := s.repo.Exists(ctx, p.AccountID, sch.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		s.metrics.RecordSubmissionRefused(ctx, "duplicate")
		return nil, ErrDuplicateApplication
	}

	app := &Application{
		ScholarshipID: sch.ID,
		ApplicantID:   p.AccountID,
		Status:        StatusSubmitted,
		AcademicInfo:  req.AcademicInfo,
		Documents:     documents,
		Reviews:       []Review{},
		SubmittedAt:   now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, app); err != nil {
		if errors.Is(err, ErrDuplicateApplication) {
			s.metrics.RecordSubmissionRefused(ctx, "duplicate")
		} else if errors.Is(err, ErrScholarshipNotAcceptingApplications) {
			s.metrics.RecordSubmissionRefused(ctx, "not_accepting")
		}
		return nil, err
	}

	summary := sch.Summary()
	app.Summary = &summary

	s.logger.InfoContext(ctx, "application submitted", "application_id", app.ID, "scholarship_id", sch.ID)
	s.metrics.RecordApplicationSubmitted(ctx)

	s.notifier.Deliver(p.Email, notification.TemplateApplicationConfirmation, map[string]any{
		"ScholarshipTitle": sch.Title,
		"ApplicationID":    app.ID.String(),
		"SubmittedAt":      now.Format(time.RFC1123),
		"Deadline":         sch.Deadline.Format("January 2, 2006"),
	})
	if owner, err := s.accounts.GetByID(ctx, sch.CreatedBy); err == nil {
		s.notifier.Deliver(owner.Email, notification.TemplateReviewAssigned, map[string]any{
			"ScholarshipTitle": sch.Title,
			"ApplicationID":    app.ID.String(),
		})
	}

	return app, nil
}

func (s *service) Review(ctx context.Context, p auth.Principal, id uuid.UUID, req ReviewRequest) (*Application, error) {
	if !p.Role.CanReview() {
		return nil, ErrReviewerRequired
	}
	if req.Status != "" && !req.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	var previous Status
	app, err := s.repo.Update(ctx, id, func(app *Application) error {
		previous = app.Status
		if req.Status != "" && !CanTransition(app.Status, req.Status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, app.Status, req.Status)
		}

		app.Reviews = append(app.Reviews, Review{
			ReviewerID: p.AccountID,
			Score:      *req.Score,
			Comment:    req.Comment,
			CreatedAt:  s.now().UTC(),
		})
		if req.Status != "" {
			app.Status = req.Status
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.attachSummary(ctx, app)

	s.logger.InfoContext(ctx, "review recorded", "application_id", app.ID, "reviewer_id", p.AccountID, "status", app.Status)
	s.metrics.RecordReview(ctx, string(app.Status))

	if app.Status != previous {
		s.notifyStatusChange(ctx, app, previous, req.Comment)
	}
	return app, nil
}

func (s *service) notifyStatusChange(ctx context.Context, app *Application, previous Status, comment string) {
	applicant, err := s.accounts.GetByID(ctx, app.ApplicantID)
	if err != nil {
		s.logger.WarnContext(ctx, "no recipient for status update", "application_id", app.ID, "error", err)
		return
	}

	data := map[string]any{
		"FirstName":      applicant.Profile.FirstName,
		"ApplicationID":  app.ID.String(),
		"Status":         humanize(app.Status),
		"PreviousStatus": humanize(previous),
		"Comment":        comment,
	}
	if app.Summary != nil {
		data["ScholarshipTitle"] = app.Summary.Title
	}
	s.notifier.Deliver(applicant.Email, notification.TemplateApplicationStatusUpdate, data)
}

func (s *service) attachSummary(ctx context.Context, app *Application) {
	if app.Summary != nil {
		return
	}
	sch, err := s.scholarships.GetByID(ctx, app.ScholarshipID)
	if err != nil {
		return
	}
	summary := sch.Summary()
	app.Summary = &summary
}

func (s *service) ListMine(ctx context.Context, p auth.Principal) ([]Application, error) {
	return s.repo.ListByApplicant(ctx, p.AccountID)
}

// Get returns not found to callers that may not see the application.
func (s *service) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*Application, error) {
	app, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.ApplicantID != p.AccountID && !p.Role.CanReview() {
		return nil, ErrApplicationNotFound
	}
	return app, nil
}

func (s *service) List(ctx context.Context, p auth.Principal, filter ListFilter) ([]Application, error) {
	if !p.Role.CanReview() {
		return nil, ErrReviewerRequired
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

func (s *service) UpdateDocumentStatus(ctx context.Context, p auth.Principal, id, documentID uuid.UUID, status DocumentStatus) (*Application, error) {
	if !p.Role.CanReview() {
		return nil, ErrReviewerRequired
	}
	switch status {
	case DocumentPending, DocumentApproved, DocumentRejected:
	default:
		return nil, fmt.Errorf("%w: unknown document status %q", ErrInvalidDocument, status)
	}

	app, err := s.repo.Update(ctx, id, func(app *Application) error {
		for i := range app.Documents {
			if app.Documents[i].ID == documentID {
				app.Documents[i].Status = status
				return nil
			}
		}
		return ErrDocumentNotFound
	})
	if err != nil {
		return nil, err
	}
	s.attachSummary(ctx, app)
	return app, nil
}

func checkEligibility(req scholarship.Requirements, in SubmitRequest) error {
	info := in.AcademicInfo
	if info.GPA < req.MinGPA {
		return fmt.Errorf("%w: GPA %.2f is below the minimum of %.2f", ErrNotEligible, info.GPA, req.MinGPA)
	}
	if !req.AcademicLevel.Admits(info.AcademicLevel) {
		return fmt.Errorf("%w: open to %s students only", ErrNotEligible, req.AcademicLevel)
	}
	if len(req.FieldsOfStudy) > 0 && !slices.ContainsFunc(req.FieldsOfStudy, func(field string) bool {
		return strings.EqualFold(field, info.Major)
	}) {
		return fmt.Errorf("%w: major %q is not an eligible field of study", ErrNotEligible, info.Major)
	}
	for _, doc := range req.Documents {
		if !doc.Required {
			continue
		}
		if !slices.ContainsFunc(in.Documents, func(d DocumentInput) bool {
			return strings.EqualFold(d.Name, doc.Name)
		}) {
			return fmt.Errorf("%w: required document %q is missing", ErrNotEligible, doc.Name)
		}
	}
	return nil
}

func (s *service) documents(in []DocumentInput, now time.Time) ([]Document, error) {
	docs := make([]Document, 0, len(in))
	for _, d := range in {
		if s.uploads.MaxFileSize > 0 && d.Size > s.uploads.MaxFileSize {
			return nil, fmt.Errorf("%w: %s exceeds the maximum file size", ErrInvalidDocument, d.Name)
		}
		if len(s.uploads.AllowedTypes) > 0 {
			ext := strings.ToLower(path.Ext(d.URL))
			if !slices.Contains(s.uploads.AllowedTypes, ext) {
				return nil, fmt.Errorf("%w: %s has a file type that is not allowed", ErrInvalidDocument, d.Name)
			}
		}
		docs = append(docs, Document{
			ID:         uuid.New(),
			Name:       d.Name,
			URL:        d.URL,
			Size:       d.Size,
			UploadedAt: now,
			Status:     DocumentPending,
		})
	}
	return docs, nil
}

func humanize(s Status) string {
	return strings.ReplaceAll(string(s), "_", " ")
}
