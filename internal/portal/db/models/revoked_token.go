// Package models contains persistence-only GORM models that have no place
// in the domain layer.
package models

import (
	"time"
)

// RevokedToken records a session token that was logged out before its
// natural expiry. Rows past ExpiresAt can be purged.
type RevokedToken struct {
	TokenID   string    `gorm:"size:64;primaryKey"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time
}
