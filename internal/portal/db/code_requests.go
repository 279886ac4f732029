package db

import (
	"context"
	"fmt"
	"time"

	e "github.com/gartstein/staffing/internal/portal/errors"
	"github.com/gartstein/staffing/internal/portal/models"
	"github.com/google/uuid"
)

func (r *Repository) CreateCodeRequest(ctx context.Context, req *models.CodeRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *Repository) GetCodeRequest(ctx context.Context, id uuid.UUID) (*models.CodeRequest, error) {
	var req models.CodeRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, translate(err, "code request")
	}
	return &req, nil
}

// ListCodeRequests returns requests newest first, optionally filtered by status.
func (r *Repository) ListCodeRequests(ctx context.Context, status *models.CodeRequestStatus) ([]models.CodeRequest, error) {
	var reqs []models.CodeRequest
	q := r.db.WithContext(ctx).Order("created_at desc")
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	err := q.Find(&reqs).Error
	return reqs, err
}

// ResolveCodeRequest moves a pending request to a terminal status. The
// update is conditional on the row still being pending, so of two
// concurrent resolutions exactly one succeeds and the other gets
// ErrInvalidState.
func (r *Repository) ResolveCodeRequest(
	ctx context.Context,
	id uuid.UUID,
	status models.CodeRequestStatus,
	clientID *uuid.UUID,
	rejectionReason string,
	at time.Time,
) error {
	if !status.Terminal() {
		return fmt.Errorf("%w: %q is not a terminal status", e.ErrValidation, status)
	}
	cols := map[string]any{
		"status":      status,
		"reviewed_at": at,
		"updated_at":  at,
	}
	if clientID != nil {
		cols["client_id"] = *clientID
	}
	if rejectionReason != "" {
		cols["rejection_reason"] = rejectionReason
	}

	result := r.db.WithContext(ctx).Model(&models.CodeRequest{}).
		Where("id = ? AND status = ?", id, models.CodeRequestPending).
		Updates(cols)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}

	current, err := r.GetCodeRequest(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: code request is %s", e.ErrInvalidState, current.Status)
}

func (r *Repository) CountCodeRequests(ctx context.Context, status models.CodeRequestStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CodeRequest{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
