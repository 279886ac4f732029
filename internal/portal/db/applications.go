package db

import (
	"context"

	"github.com/gartstein/staffing/internal/portal/models"
)

func (r *Repository) CreateJobApplication(ctx context.Context, app *models.JobApplication) error {
	return r.db.WithContext(ctx).Create(app).Error
}

func (r *Repository) ListJobApplications(ctx context.Context) ([]models.JobApplication, error) {
	var apps []models.JobApplication
	err := r.db.WithContext(ctx).Order("created_at desc").Find(&apps).Error
	return apps, err
}

func (r *Repository) CountJobApplications(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.JobApplication{}).Count(&count).Error
	return count, err
}
