package models

import (
	"time"

	"github.com/google/uuid"
)

// EmploymentType is the kind of engagement a job posting asks for.
type EmploymentType string

const (
	Permanent      EmploymentType = "permanent"
	Temporary      EmploymentType = "temporary"
	ContractToHire EmploymentType = "contract-to-hire"
)

// Valid reports whether t is one of the known employment types.
func (t EmploymentType) Valid() bool {
	switch t {
	case Permanent, Temporary, ContractToHire:
		return true
	}
	return false
}

// JobStatus is the lifecycle state of a job posting.
type JobStatus string

const (
	JobStatusNew             JobStatus = "new"
	JobStatusContacted       JobStatus = "contacted"
	JobStatusContractPending JobStatus = "contract_pending"
	JobStatusPosted          JobStatus = "posted"
	JobStatusClosed          JobStatus = "closed"
)

// JobStatuses lists every status in display order.
var JobStatuses = []JobStatus{
	JobStatusNew,
	JobStatusContacted,
	JobStatusContractPending,
	JobStatusPosted,
	JobStatusClosed,
}

// Valid reports whether s is one of the known job statuses.
func (s JobStatus) Valid() bool {
	for _, known := range JobStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// JobPosting is an employer's request to have the agency recruit for a role.
type JobPosting struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ContactName    string         `gorm:"size:200;not null" json:"contact_name"`
	CompanyName    string         `gorm:"size:200;not null" json:"company_name"`
	Email          string         `gorm:"size:255;not null" json:"email"`
	Phone          string         `gorm:"size:50;not null" json:"phone"`
	JobTitle       string         `gorm:"size:200;not null" json:"job_title"`
	Location       string         `gorm:"size:200;not null" json:"location"`
	EmploymentType EmploymentType `gorm:"size:30;not null" json:"employment_type"`
	// IsExistingClient is true iff a valid access code was verified when the
	// posting was submitted, or the posting was created by a logged-in client.
	IsExistingClient     bool      `gorm:"not null;default:false" json:"is_existing_client"`
	JobDescription       string    `gorm:"type:text" json:"job_description,omitempty"`
	SalaryRange          string    `gorm:"size:100" json:"salary_range,omitempty"`
	SpecialRequirements  string    `gorm:"type:text" json:"special_requirements,omitempty"`
	AnticipatedStartDate string    `gorm:"size:10" json:"anticipated_start_date,omitempty"`
	Status               JobStatus `gorm:"size:20;not null;default:new;index" json:"status"`
	// OwnerClientID is set only when IsExistingClient is true.
	OwnerClientID *uuid.UUID `gorm:"type:uuid;index" json:"owner_client_id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// JobPostingInput is the public job posting form, also used by clients
// creating postings through self-service.
type JobPostingInput struct {
	ContactName          string         `json:"contact_name" validate:"required,max=200"`
	CompanyName          string         `json:"company_name" validate:"required,max=200"`
	Email                string         `json:"email" validate:"required,email,max=255"`
	Phone                string         `json:"phone" validate:"required,max=50"`
	JobTitle             string         `json:"job_title" validate:"required,max=200"`
	Location             string         `json:"location" validate:"required,max=200"`
	EmploymentType       EmploymentType `json:"employment_type" validate:"required,oneof=permanent temporary contract-to-hire"`
	JobDescription       string         `json:"job_description" validate:"omitempty,max=10000"`
	SalaryRange          string         `json:"salary_range" validate:"omitempty,max=100"`
	SpecialRequirements  string         `json:"special_requirements" validate:"omitempty,max=5000"`
	AnticipatedStartDate string         `json:"anticipated_start_date" validate:"omitempty,datetime=2006-01-02"`
	// AccessCode optionally links the submission to an existing client.
	AccessCode string `json:"access_code"`
	// Website is a honeypot rendered hidden on the form.
	Website string `json:"website"`
}

// FillFrom copies the client's contact data into blank fields of the input.
func (in *JobPostingInput) FillFrom(c *Client) {
	if in.CompanyName == "" {
		in.CompanyName = c.CompanyName
	}
	if in.ContactName == "" {
		in.ContactName = c.ContactName
	}
	if in.Email == "" {
		in.Email = c.Email
	}
	if in.Phone == "" {
		in.Phone = c.Phone
	}
}

// JobPostingUpdate is a partial edit by the owning client. Nil fields are
// left unchanged; status is not editable here.
type JobPostingUpdate struct {
	ID                   uuid.UUID       `json:"-"`
	ContactName          *string         `json:"contact_name,omitempty" validate:"omitempty,min=1,max=200"`
	CompanyName          *string         `json:"company_name,omitempty" validate:"omitempty,min=1,max=200"`
	Email                *string         `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone                *string         `json:"phone,omitempty" validate:"omitempty,min=1,max=50"`
	JobTitle             *string         `json:"job_title,omitempty" validate:"omitempty,min=1,max=200"`
	Location             *string         `json:"location,omitempty" validate:"omitempty,min=1,max=200"`
	EmploymentType       *EmploymentType `json:"employment_type,omitempty" validate:"omitempty,oneof=permanent temporary contract-to-hire"`
	JobDescription       *string         `json:"job_description,omitempty" validate:"omitempty,max=10000"`
	SalaryRange          *string         `json:"salary_range,omitempty" validate:"omitempty,max=100"`
	SpecialRequirements  *string         `json:"special_requirements,omitempty" validate:"omitempty,max=5000"`
	AnticipatedStartDate *string         `json:"anticipated_start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// Columns returns the column assignments of the non-nil fields.
func (u *JobPostingUpdate) Columns() map[string]any {
	cols := map[string]any{}
	set := func(name string, v *string) {
		if v != nil {
			cols[name] = *v
		}
	}
	set("contact_name", u.ContactName)
	set("company_name", u.CompanyName)
	set("email", u.Email)
	set("phone", u.Phone)
	set("job_title", u.JobTitle)
	set("location", u.Location)
	if u.EmploymentType != nil {
		cols["employment_type"] = *u.EmploymentType
	}
	set("job_description", u.JobDescription)
	set("salary_range", u.SalaryRange)
	set("special_requirements", u.SpecialRequirements)
	set("anticipated_start_date", u.AnticipatedStartDate)
	return cols
}

// DashboardSummary aggregates the admin dashboard counters.
type DashboardSummary struct {
	JobPostingsByStatus map[JobStatus]int64 `json:"job_postings_by_status"`
	PendingCodeRequests int64               `json:"pending_code_requests"`
	ActiveClients       int64               `json:"active_clients"`
	JobApplications     int64               `json:"job_applications"`
}
