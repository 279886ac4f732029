package controller

import (
	"context"
	"errors"
	"time"

	"github.com/gartstein/staffing/internal/portal/db"
	e "github.com/gartstein/staffing/internal/portal/errors"
	"github.com/gartstein/staffing/internal/portal/events"
	"github.com/gartstein/staffing/internal/portal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// IntakeService accepts the public forms. None of its operations need a
// principal.
type IntakeService struct {
	repo     Repository
	producer EventProducer
	logger   *zap.Logger
	now      func() time.Time
}

func NewIntakeService(repo Repository, producer EventProducer, logger *zap.Logger) *IntakeService {
	return &IntakeService{
		repo:     repo,
		producer: producer,
		logger:   logger.Named("intake_service"),
		now:      utcNow,
	}
}

// SubmitJobPosting stores a new posting in status new. When in.AccessCode
// verifies, blank contact fields are filled from the client, the posting is
// linked to it and the verification is recorded as a login. A code that does
// not verify never blocks the submission; the posting is stored unlinked.
func (s *IntakeService) SubmitJobPosting(ctx context.Context, in *models.JobPostingInput, ip string) (*models.JobPosting, error) {
	if err := rejectHoneypot(in.Website); err != nil {
		s.logger.Warn("Honeypot field filled on job posting form")
		return nil, err
	}
	models.Normalize(in)
	code := canonicalCode(in.AccessCode)

	var posting *models.JobPosting
	err := s.repo.WithTransaction(ctx, func(tx *db.Repository) error {
		now := s.now()

		var client *models.Client
		if code != "" {
			found, err := findVerifiableClient(ctx, tx, code, now)
			switch {
			case err == nil:
				client = found
				in.FillFrom(client)
			case errors.Is(err, e.ErrNotFound), errors.Is(err, e.ErrExpired):
				s.logger.Info("Job posting submitted with unusable access code", zap.String("reason", e.Kind(err)))
			default:
				return err
			}
		}

		if err := models.Validate(in); err != nil {
			return err
		}

		posting = newJobPosting(in, now)
		if client != nil {
			posting.IsExistingClient = true
			posting.OwnerClientID = &client.ID
			if err := recordLogin(ctx, tx, client, ip, "job_posting", now); err != nil {
				return err
			}
			details := datatypes.JSONMap{"job_posting_id": posting.ID.String()}
			if err := addActivity(ctx, tx, client.ID, models.ActivityJobPostingSubmitted, ip, details, now); err != nil {
				return err
			}
		}
		return tx.CreateJobPosting(ctx, posting)
	})
	if err != nil {
		return nil, wrapInternal(err, "submit job posting")
	}

	s.logger.Info("Job posting submitted",
		zap.String("job_posting_id", posting.ID.String()),
		zap.Bool("existing_client", posting.IsExistingClient),
	)
	s.producer.Produce(events.JobPostingSubmitted, posting.ID.String(), posting)
	return posting, nil
}

// SubmitCodeRequest queues a request for an access code in status pending.
func (s *IntakeService) SubmitCodeRequest(ctx context.Context, in *models.CodeRequestInput) (*models.CodeRequest, error) {
	if err := rejectHoneypot(in.Website); err != nil {
		s.logger.Warn("Honeypot field filled on code request form")
		return nil, err
	}
	models.Normalize(in)
	if err := models.Validate(in); err != nil {
		return nil, err
	}

	now := s.now()
	req := &models.CodeRequest{
		ID:          uuid.New(),
		CompanyName: in.CompanyName,
		ContactName: in.ContactName,
		Email:       in.Email,
		Phone:       in.Phone,
		Reason:      in.Reason,
		Status:      models.CodeRequestPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateCodeRequest(ctx, req); err != nil {
		return nil, wrapInternal(err, "create code request")
	}

	s.producer.Produce(events.CodeRequestSubmitted, req.ID.String(), req)
	return req, nil
}

// SubmitJobApplication stores a candidate's application.
func (s *IntakeService) SubmitJobApplication(ctx context.Context, in *models.JobApplicationInput) (*models.JobApplication, error) {
	if err := rejectHoneypot(in.Website); err != nil {
		s.logger.Warn("Honeypot field filled on job application form")
		return nil, err
	}
	models.Normalize(in)
	if err := models.Validate(in); err != nil {
		return nil, err
	}

	app := &models.JobApplication{
		ID:          uuid.New(),
		FullName:    in.FullName,
		Email:       in.Email,
		Phone:       in.Phone,
		Position:    in.Position,
		Location:    in.Location,
		ResumeURL:   in.ResumeURL,
		CoverLetter: in.CoverLetter,
		CreatedAt:   s.now(),
	}
	if err := s.repo.CreateJobApplication(ctx, app); err != nil {
		return nil, wrapInternal(err, "create job application")
	}

	s.producer.Produce(events.JobApplicationReceived, app.ID.String(), app)
	return app, nil
}

func newJobPosting(in *models.JobPostingInput, now time.Time) *models.JobPosting {
	return &models.JobPosting{
		ID:                   uuid.New(),
		ContactName:          in.ContactName,
		CompanyName:          in.CompanyName,
		Email:                in.Email,
		Phone:                in.Phone,
		JobTitle:             in.JobTitle,
		Location:             in.Location,
		EmploymentType:       in.EmploymentType,
		JobDescription:       in.JobDescription,
		SalaryRange:          in.SalaryRange,
		SpecialRequirements:  in.SpecialRequirements,
		AnticipatedStartDate: in.AnticipatedStartDate,
		Status:               models.JobStatusNew,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}
