package db

import (
	"context"
	"time"

	e "github.com/gartstein/staffing/internal/portal/errors"
	"github.com/gartstein/staffing/internal/portal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateClient inserts a client. A duplicate access code yields ErrConflict.
func (r *Repository) CreateClient(ctx context.Context, client *models.Client) error {
	return translate(r.db.WithContext(ctx).Create(client).Error, "access code already in use")
}

func (r *Repository) GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	var client models.Client
	if err := r.db.WithContext(ctx).First(&client, "id = ?", id).Error; err != nil {
		return nil, translate(err, "client")
	}
	return &client, nil
}

// FindActiveClientByCode returns the active client holding code.
func (r *Repository) FindActiveClientByCode(ctx context.Context, code string) (*models.Client, error) {
	var client models.Client
	err := r.db.WithContext(ctx).
		Where("access_code = ? AND is_active = ?", code, true).
		First(&client).Error
	if err != nil {
		return nil, translate(err, "access code")
	}
	return &client, nil
}

func (r *Repository) ListClients(ctx context.Context) ([]models.Client, error) {
	var clients []models.Client
	err := r.db.WithContext(ctx).Order("created_at desc").Find(&clients).Error
	return clients, err
}

func (r *Repository) UpdateClient(ctx context.Context, update *models.ClientUpdate, at time.Time) error {
	cols := map[string]any{"updated_at": at}
	if update.CompanyName != nil {
		cols["company_name"] = *update.CompanyName
	}
	if update.ContactName != nil {
		cols["contact_name"] = *update.ContactName
	}
	if update.Email != nil {
		cols["email"] = *update.Email
	}
	if update.Phone != nil {
		cols["phone"] = *update.Phone
	}
	if update.CodeExpiresAt != nil {
		cols["code_expires_at"] = *update.CodeExpiresAt
	}
	if update.ClearCodeExpiry {
		cols["code_expires_at"] = nil
	}
	return r.updateClient(ctx, update.ID, cols)
}

func (r *Repository) SetClientActive(ctx context.Context, id uuid.UUID, active bool, at time.Time) error {
	return r.updateClient(ctx, id, map[string]any{"is_active": active, "updated_at": at})
}

// SetAccessCode replaces a client's code. A duplicate yields ErrConflict.
func (r *Repository) SetAccessCode(ctx context.Context, id uuid.UUID, code string, at time.Time) error {
	return r.updateClient(ctx, id, map[string]any{"access_code": code, "updated_at": at})
}

// RecordLogin increments the login counter and stamps the login time.
func (r *Repository) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.updateClient(ctx, id, map[string]any{
		"login_count":   gorm.Expr("login_count + ?", 1),
		"last_login_at": at,
		"updated_at":    at,
	})
}

func (r *Repository) updateClient(ctx context.Context, id uuid.UUID, cols map[string]any) error {
	result := r.db.WithContext(ctx).Model(&models.Client{}).Where("id = ?", id).Updates(cols)
	if result.Error != nil {
		return translate(result.Error, "access code already in use")
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

func (r *Repository) CountActiveClients(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Client{}).Where("is_active = ?", true).Count(&count).Error
	return count, err
}

// AddActivity appends an audit record.
func (r *Repository) AddActivity(ctx context.Context, activity *models.ClientActivity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

// ListActivities returns a client's audit trail, newest first.
func (r *Repository) ListActivities(ctx context.Context, clientID uuid.UUID) ([]models.ClientActivity, error) {
	var activities []models.ClientActivity
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at desc").
		Find(&activities).Error
	return activities, err
}
