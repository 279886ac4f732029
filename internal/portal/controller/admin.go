package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/gartstein/staffing/internal/portal/auth"
	"github.com/gartstein/staffing/internal/portal/db"
	e "github.com/gartstein/staffing/internal/portal/errors"
	"github.com/gartstein/staffing/internal/portal/events"
	"github.com/gartstein/staffing/internal/portal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxBulkClients caps the size of a bulk generation request.
const MaxBulkClients = 100

// AdminService implements the admin workflow. Every operation requires an
// admin principal in the context.
type AdminService struct {
	repo     Repository
	codes    CodeGenerator
	sessions Sessions
	producer EventProducer
	logger   *zap.Logger
	now      func() time.Time
}

func NewAdminService(
	repo Repository,
	codes CodeGenerator,
	sessions Sessions,
	producer EventProducer,
	logger *zap.Logger,
) *AdminService {
	return &AdminService{
		repo:     repo,
		codes:    codes,
		sessions: sessions,
		producer: producer,
		logger:   logger.Named("admin_service"),
		now:      utcNow,
	}
}

// Approval is the outcome of approving a code request.
type Approval struct {
	Client     *models.Client `json:"client"`
	AccessCode string         `json:"access_code"`
}

func (s *AdminService) authorize(ctx context.Context) (*auth.Principal, error) {
	return auth.RequireRole(ctx, auth.RoleAdmin)
}

// ApproveCodeRequest mints a client with a new access code for a pending
// request and marks the request approved, atomically. A request that is no
// longer pending yields ErrInvalidState and leaves no client behind.
func (s *AdminService) ApproveCodeRequest(ctx context.Context, id uuid.UUID) (*Approval, error) {
	admin, err := s.authorize(ctx)
	if err != nil {
		return nil, err
	}

	var client *models.Client
	err = s.repo.WithTransaction(ctx, func(tx *db.Repository) error {
		req, err := tx.GetCodeRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != models.CodeRequestPending {
			return fmt.Errorf("%w: code request is %s", e.ErrInvalidState, req.Status)
		}

		now := s.now()
		client = &models.Client{
			ID:          uuid.New(),
			CompanyName: req.CompanyName,
			ContactName: req.ContactName,
			Email:       req.Email,
			Phone:       req.Phone,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := createClientWithCode(ctx, tx, s.codes, client); err != nil {
			return err
		}
		// Conditional on the request still being pending, so a concurrent
		// approval loses here and rolls its client back.
		return tx.ResolveCodeRequest(ctx, id, models.CodeRequestApproved, &client.ID, "", now)
	})
	if err != nil {
		return nil, wrapInternal(err, "approve code request")
	}

	s.logger.Info("Code request approved",
		zap.String("code_request_id", id.String()),
		zap.String("client_id", client.ID.String()),
		zap.String("admin", admin.Subject),
	)
	s.producer.Produce(events.CodeRequestApproved, id.String(), map[string]any{
		"code_request_id": id,
		"client":          client.Profile(),
	})
	return &Approval{Client: client, AccessCode: client.AccessCode}, nil
}

// RejectCodeRequest marks a pending request rejected with an optional reason.
func (s *AdminService) RejectCodeRequest(ctx context.Context, id uuid.UUID, reason string) error {
	admin, err := s.authorize(ctx)
	if err != nil {
		return err
	}
	input := struct {
		Reason string `json:"reason" validate:"max=2000"`
	}{Reason: reason}
	models.Normalize(&input)
	if err := models.Validate(&input); err != nil {
		return err
	}

	if err := s.repo.ResolveCodeRequest(ctx, id, models.CodeRequestRejected, nil, input.Reason, s.now()); err != nil {
		return wrapInternal(err, "reject code request")
	}

	s.logger.Info("Code request rejected",
		zap.String("code_request_id", id.String()),
		zap.String("admin", admin.Subject),
	)
	s.producer.Produce(events.CodeRequestRejected, id.String(), map[string]any{
		"code_request_id":  id,
		"rejection_reason": input.Reason,
	})
	return nil
}

// CreateClient inserts an active client under a newly generated access code.
func (s *AdminService) CreateClient(ctx context.Context, in *models.NewClientInput) (*models.Client, error) {
	if _, err := s.authorize(ctx); err != nil {
		return nil, err
	}
	return s.createClient(ctx, in)
}

func (s *AdminService) createClient(ctx context.Context, in *models.NewClientInput) (*models.Client, error) {
	models.Normalize(in)
	if err := models.Validate(in); err != nil {
		return nil, err
	}

	now := s.now()
	client := &models.Client{
		ID:          uuid.New(),
		CompanyName: in.CompanyName,
		ContactName: in.ContactName,
		Email:       in.Email,
		Phone:       in.Phone,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := createClientWithCode(ctx, s.repo, s.codes, client); err != nil {
		return nil, wrapInternal(err, "create client")
	}

	s.producer.Produce(events.ClientCreated, client.ID.String(), client.Profile())
	return client, nil
}

// BulkGenerateClients creates a client per entry. Entries succeed or fail
// independently and the result lists every entry in input order.
func (s *AdminService) BulkGenerateClients(ctx context.Context, inputs []models.NewClientInput) ([]models.BulkClientResult, error) {
	if _, err := s.authorize(ctx); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: clients must not be empty", e.ErrValidation)
	}
	if len(inputs) > MaxBulkClients {
		return nil, fmt.Errorf("%w: at most %d clients per request", e.ErrValidation, MaxBulkClients)
	}

	results := make([]models.BulkClientResult, len(inputs))
	failed := 0
	for i := range inputs {
		results[i].Index = i
		client, err := s.createClient(ctx, &inputs[i])
		if err != nil {
			failed++
			results[i].Error = err.Error()
			if e.Kind(err) == "internal" {
				s.logger.Error("Bulk client entry failed", zap.Int("index", i), zap.Error(err))
				results[i].Error = "internal server error"
			}
			continue
		}
		results[i].Success = true
		results[i].Client = client
		results[i].AccessCode = client.AccessCode
	}

	s.logger.Info("Bulk client generation finished",
		zap.Int("requested", len(inputs)),
		zap.Int("failed", failed),
	)
	return results, nil
}

// DeactivateClient disables a client. The row and its postings are kept.
func (s *AdminService) DeactivateClient(ctx context.Context, id uuid.UUID) error {
	if _, err := s.authorize(ctx); err != nil {
		return err
	}
	if err := s.repo.SetClientActive(ctx, id, false, s.now()); err != nil {
		return wrapInternal(err, "deactivate client")
	}
	s.producer.Produce(events.ClientDeactivated, id.String(), map[string]any{"client_id": id})
	return nil
}

// UpdateClient edits a client's contact data or code expiry.
func (s *AdminService) UpdateClient(ctx context.Context, update *models.ClientUpdate) (*models.Client, error) {
	if _, err := s.authorize(ctx); err != nil {
		return nil, err
	}
	if update.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: invalid client ID", e.ErrValidation)
	}
	models.Normalize(update)
	if err := models.Validate(update); err != nil {
		return nil, err
	}
	if update.ClearCodeExpiry && update.CodeExpiresAt != nil {
		return nil, fmt.Errorf("%w: code_expires_at and clear_code_expiry are exclusive", e.ErrValidation)
	}
	if update.CompanyName == nil && update.ContactName == nil && update.Email == nil &&
		update.Phone == nil && update.CodeExpiresAt == nil && !update.ClearCodeExpiry {
		return nil, fmt.Errorf("%w: no fields to update", e.ErrValidation)
	}

	if err := s.repo.UpdateClient(ctx, update, s.now()); err != nil {
		return nil, wrapInternal(err, "update client")
	}
	client, err := s.repo.GetClient(ctx, update.ID)
	if err != nil {
		return nil, wrapInternal(err, "get client")
	}

	s.producer.Produce(events.ClientUpdated, client.ID.String(), client.Profile())
	return client, nil
}

// RegenerateAccessCode replaces an active client's code. The old code stops
// verifying immediately.
func (s *AdminService) RegenerateAccessCode(ctx context.Context, id uuid.UUID) (string, error) {
	if _, err := s.authorize(ctx); err != nil {
		return "", err
	}
	client, err := s.repo.GetClient(ctx, id)
	if err != nil {
		return "", wrapInternal(err, "get client")
	}
	if !client.IsActive {
		return "", fmt.Errorf("%w: client is deactivated", e.ErrInvalidState)
	}

	code, err := withUniqueCode(ctx, s.codes, func(code string) error {
		return s.repo.SetAccessCode(ctx, id, code, s.now())
	})
	if err != nil {
		return "", wrapInternal(err, "regenerate access code")
	}

	s.producer.Produce(events.AccessCodeRegenerated, id.String(), map[string]any{"client_id": id})
	return code, nil
}

// SetJobPostingStatus overwrites a posting's status. Any status may follow
// any other.
func (s *AdminService) SetJobPostingStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) (*models.JobPosting, error) {
	if _, err := s.authorize(ctx); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown job status %q", e.ErrValidation, status)
	}

	if err := s.repo.UpdateJobPostingStatus(ctx, id, status, s.now()); err != nil {
		return nil, wrapInternal(err, "update job posting status")
	}
	posting, err := s.repo.GetJobPosting(ctx, id)
	if err != nil {
		return nil, wrapInternal(err, "get job posting")
	}

	s.producer.Produce(events.JobPostingStatusChange, id.String(), map[string]any{
		"job_posting_id": id,
		"status":         status,
	})
	return posting, nil
}

func (s *AdminService) ListClients(ctx context.Context) ([]models.Client, error) {
	if _, err := s.authorize(ctx); err != nil {
		return nil, err
	}
	clients, err := s.repo.ListClients(ctx)
	if err != nil {
		return nil, wrapInternal(err, "list clients")
	}
	return clients, nil
}

// GetClientDetail returns a client with its activity history, newest first.
func (s *AdminService) GetClientDetail(ctx context.Context, id uuid.UUID) (*models.ClientDetail, error) {
	if _, err := s.authorize(ctx); err != nil {
		return nil, err
	}
	client, err := s.repo.GetClient(ctx, id)
	if err != nil {
		return nil, wrapInternal(err, "get client")
	}
	activities, err := s.repo.ListActivities(ctx, id)
	if err != nil {
		return nil, wrapInternal(err, "list client activities")
	}
	return &models.ClientDetail{Client: client, Activities: activities}, nil
}

// ListCodeRequests returns code requests, optionally only those in status.
func (s *AdminService) ListCodeRequests(ctx context.Context, status *models.CodeRequestStatus) ([]models.CodeRequest, error) {
	if _, err := s.authorize(ctx); err != nil {
		return nil, err
	}
	if status != nil && !status.Terminal() && *status != models.CodeRequestPending {
		return nil, fmt.Errorf("%w: unknown code request status %q", e.ErrValidation, *status)
	}
	reqs, err := s.repo.ListCodeRequests(ctx, status)
	if err != nil {
		return nil, wrapInternal(err, "list code requests")
	}
	return reqs, nil
}

// ListJobPostings returns postings, optionally only those in status.
func (s *AdminService) ListJobPostings(ctx context.Context, status *models.JobStatus) ([]models.JobPosting, error) {
	if _, err := s.authorize(ctx); err != nil {
		return nil, err
	}
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown job status %q", e.ErrValidation, *status)
	}
	postings, err := s.repo.ListJobPostings(ctx, status)
	if err != nil {
		return nil, wrapInternal(err, "list job postings")
	}
	return postings, nil
}

func (s *AdminService) ListJobApplications(ctx context.Context) ([]models.JobApplication, error) {
	if _, err := s.authorize(ctx); err != nil {
		return nil, err
	}
	apps, err := s.repo.ListJobApplications(ctx)
	if err != nil {
		return nil, wrapInternal(err, "list job applications")
	}
	return apps, nil
}

// DashboardSummary aggregates the counters shown on the admin dashboard.
func (s *AdminService) DashboardSummary(ctx context.Context) (*models.DashboardSummary, error) {
	if _, err := s.authorize(ctx); err != nil {
		return nil, err
	}

	byStatus, err := s.repo.CountJobPostingsByStatus(ctx)
	if err != nil {
		return nil, wrapInternal(err, "count job postings")
	}
	pending, err := s.repo.CountCodeRequests(ctx, models.CodeRequestPending)
	if err != nil {
		return nil, wrapInternal(err, "count code requests")
	}
	active, err := s.repo.CountActiveClients(ctx)
	if err != nil {
		return nil, wrapInternal(err, "count clients")
	}
	apps, err := s.repo.CountJobApplications(ctx)
	if err != nil {
		return nil, wrapInternal(err, "count job applications")
	}

	return &models.DashboardSummary{
		JobPostingsByStatus: byStatus,
		PendingCodeRequests: pending,
		ActiveClients:       active,
		JobApplications:     apps,
	}, nil
}

// Logout revokes the admin's token.
func (s *AdminService) Logout(ctx context.Context) error {
	admin, err := s.authorize(ctx)
	if err != nil {
		return err
	}
	return s.sessions.Revoke(ctx, admin)
}
