package db

import (
	"context"
	"time"

	dbmodels "github.com/gartstein/staffing/internal/portal/db/models"
	"gorm.io/gorm/clause"
)

// Revoke records tokenID as logged out until expiresAt. Revoking the same
// token twice is a no-op.
func (r *Repository) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&dbmodels.RevokedToken{TokenID: tokenID, ExpiresAt: expiresAt}).Error
}

// IsRevoked reports whether tokenID was logged out.
func (r *Repository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&dbmodels.RevokedToken{}).
		Where("token_id = ?", tokenID).
		Count(&count).Error
	return count > 0, err
}

// PurgeRevokedTokens deletes revocations whose token expired before now.
func (r *Repository) PurgeRevokedTokens(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&dbmodels.RevokedToken{})
	return result.RowsAffected, result.Error
}
