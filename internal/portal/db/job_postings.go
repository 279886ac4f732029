package db

import (
	"context"
	"time"

	e "github.com/gartstein/staffing/internal/portal/errors"
	"github.com/gartstein/staffing/internal/portal/models"
	"github.com/google/uuid"
)

func (r *Repository) CreateJobPosting(ctx context.Context, posting *models.JobPosting) error {
	return r.db.WithContext(ctx).Create(posting).Error
}

func (r *Repository) GetJobPosting(ctx context.Context, id uuid.UUID) (*models.JobPosting, error) {
	var posting models.JobPosting
	if err := r.db.WithContext(ctx).First(&posting, "id = ?", id).Error; err != nil {
		return nil, translate(err, "job posting")
	}
	return &posting, nil
}

// ListJobPostings returns postings newest first, optionally filtered by status.
func (r *Repository) ListJobPostings(ctx context.Context, status *models.JobStatus) ([]models.JobPosting, error) {
	var postings []models.JobPosting
	q := r.db.WithContext(ctx).Order("created_at desc")
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	err := q.Find(&postings).Error
	return postings, err
}

func (r *Repository) ListJobPostingsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.JobPosting, error) {
	var postings []models.JobPosting
	err := r.db.WithContext(ctx).
		Where("owner_client_id = ?", ownerID).
		Order("created_at desc").
		Find(&postings).Error
	return postings, err
}

func (r *Repository) UpdateJobPostingStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, at time.Time) error {
	return r.UpdateJobPosting(ctx, id, map[string]any{"status": status}, at)
}

// UpdateJobPosting applies the column assignments in cols and stamps
// updated_at with at.
func (r *Repository) UpdateJobPosting(ctx context.Context, id uuid.UUID, cols map[string]any, at time.Time) error {
	assignments := make(map[string]any, len(cols)+1)
	for k, v := range cols {
		assignments[k] = v
	}
	assignments["updated_at"] = at

	result := r.db.WithContext(ctx).Model(&models.JobPosting{}).Where("id = ?", id).Updates(assignments)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteJobPosting(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.JobPosting{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

// CountJobPostingsByStatus returns a count for every known status,
// including zeros.
func (r *Repository) CountJobPostingsByStatus(ctx context.Context) (map[models.JobStatus]int64, error) {
	var rows []struct {
		Status models.JobStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&models.JobPosting{}).
		Select("status, count(*) as total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.JobStatus]int64, len(models.JobStatuses))
	for _, s := range models.JobStatuses {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}
