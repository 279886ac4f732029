// Package models defines the domain models of the staffing portal:
// clients and their access codes, code requests, job postings, job
// applications and the client activity audit trail. The structs double as
// GORM models and as the JSON payloads of the HTTP API.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ActivityLogin is recorded for every successful access code verification.
const ActivityLogin = "login"

// ActivityJobPostingSubmitted is recorded when a verified client submits a
// job posting through the public form.
const ActivityJobPostingSubmitted = "job_posting_submitted"

// Client is an employer organisation that holds an access code.
type Client struct {
	// ID is the surrogate identifier of the client.
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	// CompanyName is the organisation name.
	CompanyName string `gorm:"size:200;not null" json:"company_name"`
	// ContactName is the person the agency talks to.
	ContactName string `gorm:"size:200;not null" json:"contact_name"`
	// Email is the contact email address.
	Email string `gorm:"size:255;not null" json:"email"`
	// Phone is optional.
	Phone string `gorm:"size:50" json:"phone,omitempty"`
	// AccessCode is the opaque code the client uses to log in and to link
	// job posting submissions. Unique across all clients.
	AccessCode string `gorm:"size:64;not null;uniqueIndex" json:"access_code"`
	// IsActive is false once an admin deactivated the client. Rows are never
	// hard-deleted.
	IsActive bool `gorm:"not null;default:true;index" json:"is_active"`
	// LoginCount is incremented on every successful verification.
	LoginCount int64 `gorm:"not null;default:0" json:"login_count"`
	// LastLoginAt is set on every successful verification.
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	// CodeExpiresAt, when in the past, makes the access code fail verification.
	CodeExpiresAt *time.Time `json:"code_expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CodeExpired reports whether the client's access code expired before now.
func (c *Client) CodeExpired(now time.Time) bool {
	return c.CodeExpiresAt != nil && c.CodeExpiresAt.Before(now)
}

// Profile returns the subset of client data used to pre-fill forms.
func (c *Client) Profile() ClientProfile {
	return ClientProfile{
		ID:          c.ID,
		CompanyName: c.CompanyName,
		ContactName: c.ContactName,
		Email:       c.Email,
		Phone:       c.Phone,
	}
}

// ClientProfile is the public view of a verified client.
type ClientProfile struct {
	ID          uuid.UUID `json:"id"`
	CompanyName string    `json:"company_name"`
	ContactName string    `json:"contact_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
}

// ClientUpdate carries an admin edit of a client. Nil fields are left
// unchanged. ClearCodeExpiry removes any expiry and cannot be combined with
// CodeExpiresAt.
type ClientUpdate struct {
	ID              uuid.UUID  `json:"-"`
	CompanyName     *string    `json:"company_name,omitempty" validate:"omitempty,min=1,max=200"`
	ContactName     *string    `json:"contact_name,omitempty" validate:"omitempty,min=1,max=200"`
	Email           *string    `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone           *string    `json:"phone,omitempty" validate:"omitempty,max=50"`
	CodeExpiresAt   *time.Time `json:"code_expires_at,omitempty"`
	ClearCodeExpiry bool       `json:"clear_code_expiry,omitempty"`
}

// ClientActivity is an append-only audit record owned by a client.
type ClientActivity struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID     uuid.UUID         `gorm:"type:uuid;not null;index" json:"client_id"`
	ActivityType string            `gorm:"size:50;not null" json:"activity_type"`
	IPAddress    string            `gorm:"size:64" json:"ip_address,omitempty"`
	Details      datatypes.JSONMap `json:"details,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// ClientDetail is a client together with its activity history, newest first.
type ClientDetail struct {
	Client     *Client          `json:"client"`
	Activities []ClientActivity `json:"activities"`
}

// NewClientInput is the admin input for creating a client directly.
type NewClientInput struct {
	CompanyName string `json:"company_name" validate:"required,max=200"`
	ContactName string `json:"contact_name" validate:"required,max=200"`
	Email       string `json:"email" validate:"required,email,max=255"`
	Phone       string `json:"phone" validate:"omitempty,max=50"`
}

// BulkClientResult reports the outcome of one entry of a bulk generation.
type BulkClientResult struct {
	Index      int     `json:"index"`
	Success    bool    `json:"success"`
	Client     *Client `json:"client,omitempty"`
	AccessCode string  `json:"access_code,omitempty"`
	Error      string  `json:"error,omitempty"`
}
