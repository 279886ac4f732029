// Package controller implements the business logic of the portal: access
// code verification, public intake, the admin workflow and client
// self-service. Services resolve the caller from the context once at their
// boundary and talk to storage through Repository.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gartstein/staffing/internal/portal/accesscode"
	"github.com/gartstein/staffing/internal/portal/auth"
	"github.com/gartstein/staffing/internal/portal/db"
	e "github.com/gartstein/staffing/internal/portal/errors"
	"github.com/gartstein/staffing/internal/portal/events"
	"github.com/gartstein/staffing/internal/portal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// maxCodeAttempts bounds how many access codes are generated before a
// uniqueness conflict is surfaced.
const maxCodeAttempts = 5

type EventProducer interface {
	Produce(eventType events.EventType, key string, payload any)
}

// CodeGenerator mints access codes.
type CodeGenerator interface {
	Generate() (string, error)
}

// Sessions issues and revokes caller tokens.
type Sessions interface {
	Issue(role auth.Role, subject string, clientID uuid.UUID) (string, *auth.Principal, error)
	Revoke(ctx context.Context, p *auth.Principal) error
}

// Repository defines the storage the services need outside transactions.
// Transactional work runs against the concrete *db.Repository handed to
// WithTransaction.
type Repository interface {
	CreateClient(ctx context.Context, client *models.Client) error
	GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
	ListClients(ctx context.Context) ([]models.Client, error)
	UpdateClient(ctx context.Context, update *models.ClientUpdate, at time.Time) error
	SetClientActive(ctx context.Context, id uuid.UUID, active bool, at time.Time) error
	SetAccessCode(ctx context.Context, id uuid.UUID, code string, at time.Time) error
	CountActiveClients(ctx context.Context) (int64, error)
	ListActivities(ctx context.Context, clientID uuid.UUID) ([]models.ClientActivity, error)

	CreateCodeRequest(ctx context.Context, req *models.CodeRequest) error
	ListCodeRequests(ctx context.Context, status *models.CodeRequestStatus) ([]models.CodeRequest, error)
	CountCodeRequests(ctx context.Context, status models.CodeRequestStatus) (int64, error)
	ResolveCodeRequest(ctx context.Context, id uuid.UUID, status models.CodeRequestStatus,
		clientID *uuid.UUID, rejectionReason string, at time.Time) error

	GetJobPosting(ctx context.Context, id uuid.UUID) (*models.JobPosting, error)
	CreateJobPosting(ctx context.Context, posting *models.JobPosting) error
	ListJobPostings(ctx context.Context, status *models.JobStatus) ([]models.JobPosting, error)
	ListJobPostingsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.JobPosting, error)
	UpdateJobPostingStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, at time.Time) error
	CountJobPostingsByStatus(ctx context.Context) (map[models.JobStatus]int64, error)

	CreateJobApplication(ctx context.Context, app *models.JobApplication) error
	ListJobApplications(ctx context.Context) ([]models.JobApplication, error)
	CountJobApplications(ctx context.Context) (int64, error)

	WithTransaction(ctx context.Context, fn func(repo *db.Repository) error) error
}

// clientStore is satisfied by both Repository and *db.Repository, so client
// creation works at top level and inside a surrounding transaction.
type clientStore interface {
	WithTransaction(ctx context.Context, fn func(repo *db.Repository) error) error
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// withUniqueCode generates codes and hands them to apply until apply stops
// reporting ErrConflict or the attempts run out.
func withUniqueCode(ctx context.Context, codes CodeGenerator, apply func(code string) error) (string, error) {
	var code string
	op := func() error {
		var err error
		code, err = codes.Generate()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to generate access code: %w", err))
		}
		err = apply(code)
		if err != nil && !errors.Is(err, e.ErrConflict) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, maxCodeAttempts-1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return "", err
	}
	return code, nil
}

// createClientWithCode inserts client under a freshly generated code. Each
// attempt runs in its own (possibly nested) transaction so a unique
// violation does not poison an enclosing one.
func createClientWithCode(ctx context.Context, store clientStore, codes CodeGenerator, client *models.Client) error {
	_, err := withUniqueCode(ctx, codes, func(code string) error {
		client.AccessCode = code
		return store.WithTransaction(ctx, func(tx *db.Repository) error {
			return tx.CreateClient(ctx, client)
		})
	})
	if err != nil {
		client.AccessCode = ""
	}
	return err
}

// findVerifiableClient resolves code to an active client whose code has not
// expired. It has no side effects.
func findVerifiableClient(ctx context.Context, repo *db.Repository, code string, now time.Time) (*models.Client, error) {
	client, err := repo.FindActiveClientByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if client.CodeExpired(now) {
		return nil, fmt.Errorf("%w: access code expired", e.ErrExpired)
	}
	return client, nil
}

// recordLogin bumps the client's login counters and appends the audit
// record, mirroring the change on client.
func recordLogin(ctx context.Context, repo *db.Repository, client *models.Client, ip, source string, now time.Time) error {
	if err := repo.RecordLogin(ctx, client.ID, now); err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	if err := addActivity(ctx, repo, client.ID, models.ActivityLogin, ip, datatypes.JSONMap{"source": source}, now); err != nil {
		return err
	}
	client.LoginCount++
	client.LastLoginAt = &now
	return nil
}

func addActivity(ctx context.Context, repo *db.Repository, clientID uuid.UUID, kind, ip string, details datatypes.JSONMap, now time.Time) error {
	err := repo.AddActivity(ctx, &models.ClientActivity{
		ID:           uuid.New(),
		ClientID:     clientID,
		ActivityType: kind,
		IPAddress:    ip,
		Details:      details,
		CreatedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("failed to record %s activity: %w", kind, err)
	}
	return nil
}

// rejectHoneypot fails submissions whose hidden field was filled in. The
// error is indistinguishable in kind from an ordinary validation failure.
func rejectHoneypot(website string) error {
	if strings.TrimSpace(website) != "" {
		return fmt.Errorf("%w: submission could not be accepted", e.ErrValidation)
	}
	return nil
}

func canonicalCode(code string) string {
	if strings.TrimSpace(code) == "" {
		return ""
	}
	return accesscode.Canonical(code)
}

// wrapInternal annotates unexpected errors and passes taxonomy errors
// through untouched.
func wrapInternal(err error, action string) error {
	if e.Kind(err) != "internal" {
		return err
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}
