package models

import (
	"time"

	"github.com/google/uuid"
)

// JobApplication is a candidate's application submitted through the public
// careers form.
type JobApplication struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FullName    string    `gorm:"size:200;not null" json:"full_name"`
	Email       string    `gorm:"size:255;not null;index" json:"email"`
	Phone       string    `gorm:"size:50" json:"phone,omitempty"`
	Position    string    `gorm:"size:200;not null" json:"position"`
	Location    string    `gorm:"size:200" json:"location,omitempty"`
	ResumeURL   string    `gorm:"size:500" json:"resume_url,omitempty"`
	CoverLetter string    `gorm:"type:text" json:"cover_letter,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// JobApplicationInput is the public job application form.
type JobApplicationInput struct {
	FullName    string `json:"full_name" validate:"required,max=200"`
	Email       string `json:"email" validate:"required,email,max=255"`
	Phone       string `json:"phone" validate:"omitempty,max=50"`
	Position    string `json:"position" validate:"required,max=200"`
	Location    string `json:"location" validate:"omitempty,max=200"`
	ResumeURL   string `json:"resume_url" validate:"omitempty,url,max=500"`
	CoverLetter string `json:"cover_letter" validate:"omitempty,max=10000"`
	// Website is a honeypot rendered hidden on the form.
	Website string `json:"website"`
}
