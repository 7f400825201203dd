package scholarship

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusClosed    Status = "closed"
	StatusArchived  Status = "archived"
)

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// transitions lists the statuses reachable from each status. Moving to the
// current status is always allowed and changes nothing.
var transitions = map[Status][]Status{
	StatusDraft:     {StatusPublished, StatusArchived},
	StatusPublished: {StatusClosed, StatusArchived},
	StatusClosed:    {StatusArchived},
	StatusArchived:  {},
}

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

type AcademicLevel string

const (
	LevelUndergraduate AcademicLevel = "undergraduate"
	LevelGraduate      AcademicLevel = "graduate"
	LevelBoth          AcademicLevel = "both"
)

// Admits reports whether an applicant at level may apply.
func (l AcademicLevel) Admits(level AcademicLevel) bool {
	return l == "" || l == LevelBoth || l == level
}

type RequiredDocument struct {
	Name        string `json:"name" validate:"required,max=100"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty" validate:"max=500"`
}

type Requirements struct {
	MinGPA        float64            `json:"minGpa" validate:"gte=0,lte=4"`
	AcademicLevel AcademicLevel      `json:"academicLevel" validate:"omitempty,oneof=undergraduate graduate both"`
	FieldsOfStudy []string           `json:"fieldsOfStudy,omitempty" validate:"dive,required,max=100"`
	Documents     []RequiredDocument `json:"documents,omitempty" validate:"dive"`
}

type Scholarship struct {
	bun.BaseModel `bun:"table:scholarships,alias:s"`

	ID                uuid.UUID    `bun:"id,pk,type:uuid" json:"id"`
	Title             string       `bun:"title,notnull" json:"title"`
	Description       string       `bun:"description,notnull" json:"description"`
	Amount            float64      `bun:"amount,notnull" json:"amount"`
	Deadline          time.Time    `bun:"deadline,notnull" json:"deadline"`
	Requirements      Requirements `bun:"requirements,type:jsonb,notnull" json:"requirements"`
	Status            Status       `bun:"status,notnull,default:'draft'" json:"status"`
	CreatedBy         uuid.UUID    `bun:"created_by,type:uuid,notnull" json:"createdBy"`
	MaxApplicants     *int         `bun:"max_applicants" json:"maxApplicants,omitempty"`
	CurrentApplicants int          `bun:"current_applicants,notnull,default:0" json:"currentApplicants"`
	Tags              []string     `bun:"tags,array" json:"tags,omitempty"`
	CreatedAt         time.Time    `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt         time.Time    `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// AcceptsApplications mirrors the guard applied atomically by the application store.
func (s *Scholarship) AcceptsApplications(now time.Time) bool {
	if s.Status != StatusPublished || !s.Deadline.After(now) {
		return false
	}
	return s.MaxApplicants == nil || s.CurrentApplicants < *s.MaxApplicants
}

// Summary is embedded in application listings.
type Summary struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Amount   float64   `json:"amount"`
	Deadline time.Time `json:"deadline"`
	Status   Status    `json:"status"`
}

func (s *Scholarship) Summary() Summary {
	return Summary{
		ID:       s.ID,
		Title:    s.Title,
		Amount:   s.Amount,
		Deadline: s.Deadline,
		Status:   s.Status,
	}
}
