package application

import (
	"time"

	"scholarship-service/internal/scholarship"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Status string

const (
	StatusDraft       Status = "draft"
	StatusSubmitted   Status = "submitted"
	StatusUnderReview Status = "under_review"
	StatusShortlisted Status = "shortlisted"
	StatusAccepted    Status = "accepted"
	StatusRejected    Status = "rejected"
)

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// transitions is the forward-only review flow. accepted and rejected are final.
var transitions = map[Status][]Status{
	StatusDraft:       {StatusSubmitted},
	StatusSubmitted:   {StatusUnderReview, StatusShortlisted, StatusAccepted, StatusRejected},
	StatusUnderReview: {StatusShortlisted, StatusAccepted, StatusRejected},
	StatusShortlisted: {StatusAccepted, StatusRejected},
	StatusAccepted:    {},
	StatusRejected:    {},
}

// CanTransition reports whether from may move to to. Staying put is always allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type DocumentStatus string

const (
	DocumentPending  DocumentStatus = "pending"
	DocumentApproved DocumentStatus = "approved"
	DocumentRejected DocumentStatus = "rejected"
)

type Document struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	URL        string         `json:"url"`
	Size       int64          `json:"size,omitempty"`
	UploadedAt time.Time      `json:"uploadedAt"`
	Status     DocumentStatus `json:"status"`
}

// AcademicInfo is captured at submission and never follows later profile edits.
type AcademicInfo struct {
	Institution        string                    `json:"institution" validate:"required,max=200"`
	Major              string                    `json:"major" validate:"required,max=100"`
	GPA                float64                   `json:"gpa" validate:"gte=0,lte=4"`
	AcademicLevel      scholarship.AcademicLevel `json:"academicLevel" validate:"required,oneof=undergraduate graduate"`
	ExpectedGraduation *time.Time                `json:"expectedGraduation,omitempty"`
}

type Review struct {
	ReviewerID uuid.UUID `json:"reviewerId"`
	Score      int       `json:"score"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Application struct {
	bun.BaseModel `bun:"table:applications,alias:app"`

	ID            uuid.UUID    `bun:"id,pk,type:uuid" json:"id"`
	ScholarshipID uuid.UUID    `bun:"scholarship_id,type:uuid,notnull,unique:applicant_scholarship" json:"scholarshipId"`
	ApplicantID   uuid.UUID    `bun:"applicant_id,type:uuid,notnull,unique:applicant_scholarship" json:"applicantId"`
	Status        Status       `bun:"status,notnull" json:"status"`
	AcademicInfo  AcademicInfo `bun:"academic_info,type:jsonb,notnull" json:"academicInfo"`
	Documents     []Document   `bun:"documents,type:jsonb,notnull" json:"documents"`
	Reviews       []Review     `bun:"reviews,type:jsonb,notnull" json:"reviews"`
	SubmittedAt   time.Time    `bun:"submitted_at,notnull" json:"submittedAt"`
	UpdatedAt     time.Time    `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`

	Scholarship *scholarship.Scholarship `bun:"rel:belongs-to,join:scholarship_id=id" json:"-"`
	Summary     *scholarship.Summary     `bun:"-" json:"scholarship,omitempty"`
}

// resolve fills the public scholarship summary from the joined row.
func (a *Application) resolve() {
	if a.Scholarship != nil {
		summary := a.Scholarship.Summary()
		a.Summary = &summary
	}
	if a.Documents == nil {
		a.Documents = []Document{}
	}
	if a.Reviews == nil {
		a.Reviews = []Review{}
	}
}
