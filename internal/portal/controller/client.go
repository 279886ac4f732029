package controller

import (
	"context"
	"errors"
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

// ClientService lets a verified client manage the postings it owns. Apart
// from Login, every operation requires a client principal whose client is
// still active. Postings owned by someone else are reported as not found.
type ClientService struct {
	repo     Repository
	verifier *VerificationService
	sessions Sessions
	producer EventProducer
	logger   *zap.Logger
	now      func() time.Time
}

func NewClientService(
	repo Repository,
	verifier *VerificationService,
	sessions Sessions,
	producer EventProducer,
	logger *zap.Logger,
) *ClientService {
	return &ClientService{
		repo:     repo,
		verifier: verifier,
		sessions: sessions,
		producer: producer,
		logger:   logger.Named("client_service"),
		now:      utcNow,
	}
}

// Session is a client login result.
type Session struct {
	Token     string               `json:"token"`
	ExpiresAt time.Time            `json:"expires_at"`
	Client    models.ClientProfile `json:"client"`
}

// Login verifies code and issues a client token. The verification counts as
// a login.
func (s *ClientService) Login(ctx context.Context, code, ip string) (*Session, error) {
	client, err := s.verifier.verify(ctx, code, ip, "client_login")
	if err != nil {
		return nil, err
	}
	token, p, err := s.sessions.Issue(auth.RoleClient, client.ID.String(), client.ID)
	if err != nil {
		return nil, wrapInternal(err, "issue client token")
	}
	return &Session{Token: token, ExpiresAt: p.ExpiresAt, Client: client.Profile()}, nil
}

// Logout revokes the client's token.
func (s *ClientService) Logout(ctx context.Context) error {
	p, err := auth.RequireRole(ctx, auth.RoleClient)
	if err != nil {
		return err
	}
	return s.sessions.Revoke(ctx, p)
}

// authorize resolves the calling client and rejects deactivated ones.
func (s *ClientService) authorize(ctx context.Context) (*models.Client, error) {
	p, err := auth.RequireRole(ctx, auth.RoleClient)
	if err != nil {
		return nil, err
	}
	client, err := s.repo.GetClient(ctx, p.ClientID)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown client", e.ErrUnauthorized)
		}
		return nil, wrapInternal(err, "get client")
	}
	if !client.IsActive {
		return nil, fmt.Errorf("%w: client account is deactivated", e.ErrUnauthorized)
	}
	return client, nil
}

// ListOwnPostings returns the caller's postings, newest first.
func (s *ClientService) ListOwnPostings(ctx context.Context) ([]models.JobPosting, error) {
	client, err := s.authorize(ctx)
	if err != nil {
		return nil, err
	}
	postings, err := s.repo.ListJobPostingsByOwner(ctx, client.ID)
	if err != nil {
		return nil, wrapInternal(err, "list job postings")
	}
	return postings, nil
}

// CreatePosting stores a posting owned by the caller. Blank contact fields
// are filled from the client record.
func (s *ClientService) CreatePosting(ctx context.Context, in *models.JobPostingInput) (*models.JobPosting, error) {
	client, err := s.authorize(ctx)
	if err != nil {
		return nil, err
	}
	models.Normalize(in)
	in.FillFrom(client)
	if err := models.Validate(in); err != nil {
		return nil, err
	}

	posting := newJobPosting(in, s.now())
	posting.IsExistingClient = true
	posting.OwnerClientID = &client.ID
	if err := s.repo.CreateJobPosting(ctx, posting); err != nil {
		return nil, wrapInternal(err, "create job posting")
	}

	s.producer.Produce(events.JobPostingSubmitted, posting.ID.String(), posting)
	return posting, nil
}

// UpdatePosting applies a partial edit to one of the caller's open postings.
func (s *ClientService) UpdatePosting(ctx context.Context, update *models.JobPostingUpdate) (*models.JobPosting, error) {
	client, err := s.authorize(ctx)
	if err != nil {
		return nil, err
	}
	models.Normalize(update)
	if err := models.Validate(update); err != nil {
		return nil, err
	}
	cols := update.Columns()
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", e.ErrValidation)
	}

	var posting *models.JobPosting
	err = s.repo.WithTransaction(ctx, func(tx *db.Repository) error {
		if _, err := editablePosting(ctx, tx, client.ID, update.ID); err != nil {
			return err
		}
		if err := tx.UpdateJobPosting(ctx, update.ID, cols, s.now()); err != nil {
			return err
		}
		posting, err = tx.GetJobPosting(ctx, update.ID)
		return err
	})
	if err != nil {
		return nil, wrapInternal(err, "update job posting")
	}

	s.producer.Produce(events.JobPostingUpdated, posting.ID.String(), posting)
	return posting, nil
}

// DeletePosting removes one of the caller's open postings.
func (s *ClientService) DeletePosting(ctx context.Context, id uuid.UUID) error {
	client, err := s.authorize(ctx)
	if err != nil {
		return err
	}

	err = s.repo.WithTransaction(ctx, func(tx *db.Repository) error {
		if _, err := editablePosting(ctx, tx, client.ID, id); err != nil {
			return err
		}
		return tx.DeleteJobPosting(ctx, id)
	})
	if err != nil {
		return wrapInternal(err, "delete job posting")
	}

	s.logger.Info("Job posting deleted by owner",
		zap.String("job_posting_id", id.String()),
		zap.String("client_id", client.ID.String()),
	)
	s.producer.Produce(events.JobPostingDeleted, id.String(), map[string]any{
		"job_posting_id": id,
		"client_id":      client.ID,
	})
	return nil
}

// editablePosting loads a posting owned by clientID that is not closed.
func editablePosting(ctx context.Context, repo *db.Repository, clientID, id uuid.UUID) (*models.JobPosting, error) {
	posting, err := repo.GetJobPosting(ctx, id)
	if err != nil {
		return nil, err
	}
	if posting.OwnerClientID == nil || *posting.OwnerClientID != clientID {
		return nil, fmt.Errorf("%w: job posting", e.ErrNotFound)
	}
	if posting.Status == models.JobStatusClosed {
		return nil, fmt.Errorf("%w: job posting is closed", e.ErrInvalidState)
	}
	return posting, nil
}
