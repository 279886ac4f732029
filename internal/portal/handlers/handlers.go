// Package handlers serves the portal services over HTTP-JSON. It bridges the
// chi transport layer and the controller package, translating request bodies
// and path parameters into service calls and service errors into status
// codes.
package handlers

import (
	"context"

	"github.com/gartstein/staffing/internal/portal/controller"
	"github.com/gartstein/staffing/internal/portal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Verifier checks access codes on behalf of anonymous callers.
type Verifier interface {
	Verify(ctx context.Context, code, ip string) (*models.Client, error)
}

// Intake accepts the public form submissions.
type Intake interface {
	SubmitJobPosting(ctx context.Context, in *models.JobPostingInput, ip string) (*models.JobPosting, error)
	SubmitCodeRequest(ctx context.Context, in *models.CodeRequestInput) (*models.CodeRequest, error)
	SubmitJobApplication(ctx context.Context, in *models.JobApplicationInput) (*models.JobApplication, error)
}

// Admin is the back-office surface. The principal is read from the context.
type Admin interface {
	ApproveCodeRequest(ctx context.Context, id uuid.UUID) (*controller.Approval, error)
	RejectCodeRequest(ctx context.Context, id uuid.UUID, reason string) error
	CreateClient(ctx context.Context, in *models.NewClientInput) (*models.Client, error)
	BulkGenerateClients(ctx context.Context, inputs []models.NewClientInput) ([]models.BulkClientResult, error)
	DeactivateClient(ctx context.Context, id uuid.UUID) error
	UpdateClient(ctx context.Context, update *models.ClientUpdate) (*models.Client, error)
	RegenerateAccessCode(ctx context.Context, id uuid.UUID) (string, error)
	SetJobPostingStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) (*models.JobPosting, error)
	ListClients(ctx context.Context) ([]models.Client, error)
	GetClientDetail(ctx context.Context, id uuid.UUID) (*models.ClientDetail, error)
	ListCodeRequests(ctx context.Context, status *models.CodeRequestStatus) ([]models.CodeRequest, error)
	ListJobPostings(ctx context.Context, status *models.JobStatus) ([]models.JobPosting, error)
	ListJobApplications(ctx context.Context) ([]models.JobApplication, error)
	DashboardSummary(ctx context.Context) (*models.DashboardSummary, error)
	Logout(ctx context.Context) error
}

// ClientPortal is the self-service surface of a logged-in client.
type ClientPortal interface {
	Login(ctx context.Context, code, ip string) (*controller.Session, error)
	Logout(ctx context.Context) error
	ListOwnPostings(ctx context.Context) ([]models.JobPosting, error)
	CreatePosting(ctx context.Context, in *models.JobPostingInput) (*models.JobPosting, error)
	UpdatePosting(ctx context.Context, update *models.JobPostingUpdate) (*models.JobPosting, error)
	DeletePosting(ctx context.Context, id uuid.UUID) error
}

// Handler holds the services behind the HTTP routes.
type Handler struct {
	verifier Verifier
	intake   Intake
	admin    Admin
	clients  ClientPortal
	logger   *zap.Logger
}

func NewHandler(verifier Verifier, intake Intake, admin Admin, clients ClientPortal, logger *zap.Logger) *Handler {
	return &Handler{
		verifier: verifier,
		intake:   intake,
		admin:    admin,
		clients:  clients,
		logger:   logger.Named("http_handler"),
	}
}
