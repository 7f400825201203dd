package account

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Role string

const (
	RoleApplicant Role = "applicant"
	RoleReviewer  Role = "reviewer"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleApplicant, RoleReviewer, RoleAdmin:
		return true
	}
	return false
}

// CanReview reports whether the role may score applications.
func (r Role) CanReview() bool {
	return r == RoleReviewer || r == RoleAdmin
}

type AcademicInfo struct {
	Institution string  `json:"institution,omitempty"`
	Major       string  `json:"major,omitempty"`
	GPA         float64 `json:"gpa,omitempty" validate:"omitempty,gte=0,lte=4"`
}

type Profile struct {
	FirstName    string       `json:"firstName" validate:"max=100"`
	LastName     string       `json:"lastName" validate:"max=100"`
	PhoneNumber  string       `json:"phoneNumber,omitempty" validate:"omitempty,max=32"`
	AcademicInfo AcademicInfo `json:"academicInfo"`
}

type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID         uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	ProviderID string    `bun:"provider_id,notnull,unique" json:"-"`
	Email      string    `bun:"email,notnull,unique" json:"email"`
	Role       Role      `bun:"role,notnull,default:'applicant'" json:"role"`
	Verified   bool      `bun:"verified,notnull,default:false" json:"isVerified"`
	Profile    Profile   `bun:"profile,type:jsonb,notnull" json:"profile"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
	DeletedAt  time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}

// Summary is the public view attached to other records.
type Summary struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
}

func (a *Account) Summary() Summary {
	return Summary{
		ID:        a.ID,
		Email:     a.Email,
		FirstName: a.Profile.FirstName,
		LastName:  a.Profile.LastName,
	}
}
