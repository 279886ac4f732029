package models

import (
	"time"

	"github.com/google/uuid"
)

// CodeRequestStatus is the approval state of a code request.
type CodeRequestStatus string

const (
	CodeRequestPending  CodeRequestStatus = "pending"
	CodeRequestApproved CodeRequestStatus = "approved"
	CodeRequestRejected CodeRequestStatus = "rejected"
)

// Terminal reports whether no further transition is allowed from s.
func (s CodeRequestStatus) Terminal() bool {
	return s == CodeRequestApproved || s == CodeRequestRejected
}

// CodeRequest is a prospective client's application for an access code.
// It moves from pending to approved or rejected exactly once and is kept
// forever for audit.
type CodeRequest struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyName string            `gorm:"size:200;not null" json:"company_name"`
	ContactName string            `gorm:"size:200;not null" json:"contact_name"`
	Email       string            `gorm:"size:255;not null" json:"email"`
	Phone       string            `gorm:"size:50" json:"phone,omitempty"`
	Reason      string            `gorm:"size:2000" json:"reason,omitempty"`
	Status      CodeRequestStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	// RejectionReason is only set when Status is rejected.
	RejectionReason string `gorm:"size:2000" json:"rejection_reason,omitempty"`
	// ClientID references the client minted by the approval.
	ClientID   *uuid.UUID `gorm:"type:uuid" json:"client_id,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// CodeRequestInput is the public code request form.
type CodeRequestInput struct {
	CompanyName string `json:"company_name" validate:"required,max=200"`
	ContactName string `json:"contact_name" validate:"required,max=200"`
	Email       string `json:"email" validate:"required,email,max=255"`
	Phone       string `json:"phone" validate:"omitempty,max=50"`
	Reason      string `json:"reason" validate:"omitempty,max=2000"`
	// Website is a honeypot rendered hidden on the form.
	Website string `json:"website"`
}
